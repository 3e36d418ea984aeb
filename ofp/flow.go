/*
 * MIT License
 *
 * Copyright (c) 2025 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package ofp

import (
	"encoding/binary"

	"github.com/nabbar/goflow/errors"
	"github.com/nabbar/goflow/ofp/match"
)

// FlowModCommand is ofp_flow_mod_command.
type FlowModCommand uint8

const (
	FlowModAdd FlowModCommand = iota
	FlowModModify
	FlowModModifyStrict
	FlowModDelete
	FlowModDeleteStrict
)

// FlowMod is the decoded FLOW_MOD body, keyed per §3 by
// (table_id, priority, match, cookie_prefix).
type FlowMod struct {
	Cookie       uint64
	CookieMask   uint64
	TableID      uint8
	Command      FlowModCommand
	IdleTimeout  uint16
	HardTimeout  uint16
	Priority     uint16
	BufferID     uint32
	OutPort      uint32
	OutGroup     uint32
	Flags        uint16
	Match        match.Match
	Instructions []Instruction // OF1.2/1.3
	Actions      []Action      // OF1.0's flat action list
}

const flowModFixedLen = 40

func DecodeFlowMod(v Version, body []byte) (FlowMod, errors.Error) {
	if v == Version10 {
		return decodeFlowModV10(body)
	}
	return decodeFlowModV13(body)
}

func decodeFlowModV10(body []byte) (FlowMod, errors.Error) {
	// OF1.0 inlines a fixed ofp_match struct (40 bytes) before the rest.
	const matchV10Len = 40
	if len(body) < matchV10Len+24 {
		return FlowMod{}, ErrorTruncatedBody.Error()
	}

	rest := body[matchV10Len:]
	fm := FlowMod{
		Cookie:      binary.BigEndian.Uint64(rest[0:8]),
		Command:     FlowModCommand(binary.BigEndian.Uint16(rest[8:10])),
		IdleTimeout: binary.BigEndian.Uint16(rest[10:12]),
		HardTimeout: binary.BigEndian.Uint16(rest[12:14]),
		Priority:    binary.BigEndian.Uint16(rest[14:16]),
		BufferID:    binary.BigEndian.Uint32(rest[16:20]),
		OutPort:     uint32(binary.BigEndian.Uint16(rest[20:22])),
		Flags:       binary.BigEndian.Uint16(rest[22:24]),
	}

	actions, e := DecodeActionList(rest[24:])
	if e != nil {
		return FlowMod{}, e
	}
	fm.Actions = actions

	return fm, nil
}

func decodeFlowModV13(body []byte) (FlowMod, errors.Error) {
	if len(body) < flowModFixedLen {
		return FlowMod{}, ErrorTruncatedBody.Error()
	}

	fm := FlowMod{
		Cookie:      binary.BigEndian.Uint64(body[0:8]),
		CookieMask:  binary.BigEndian.Uint64(body[8:16]),
		TableID:     body[16],
		Command:     FlowModCommand(body[17]),
		IdleTimeout: binary.BigEndian.Uint16(body[18:20]),
		HardTimeout: binary.BigEndian.Uint16(body[20:22]),
		Priority:    binary.BigEndian.Uint16(body[22:24]),
		BufferID:    binary.BigEndian.Uint32(body[24:28]),
		OutPort:     binary.BigEndian.Uint32(body[28:32]),
		OutGroup:    binary.BigEndian.Uint32(body[32:36]),
		Flags:       binary.BigEndian.Uint16(body[36:38]),
	}

	m, consumed, e := match.Decode(body[flowModFixedLen:])
	if e != nil {
		return FlowMod{}, e
	}
	fm.Match = m

	instrs, e := DecodeInstructionList(body[flowModFixedLen+consumed:])
	if e != nil {
		return FlowMod{}, e
	}
	fm.Instructions = instrs

	return fm, nil
}

func EncodeFlowMod(v Version, fm FlowMod) []byte {
	if v == Version10 {
		return encodeFlowModV10(fm)
	}
	return encodeFlowModV13(fm)
}

func encodeFlowModV10(fm FlowMod) []byte {
	out := make([]byte, 40+24)
	rest := out[40:]
	binary.BigEndian.PutUint64(rest[0:8], fm.Cookie)
	binary.BigEndian.PutUint16(rest[8:10], uint16(fm.Command))
	binary.BigEndian.PutUint16(rest[10:12], fm.IdleTimeout)
	binary.BigEndian.PutUint16(rest[12:14], fm.HardTimeout)
	binary.BigEndian.PutUint16(rest[14:16], fm.Priority)
	binary.BigEndian.PutUint32(rest[16:20], fm.BufferID)
	binary.BigEndian.PutUint16(rest[20:22], uint16(fm.OutPort))
	binary.BigEndian.PutUint16(rest[22:24], fm.Flags)

	return append(out, EncodeActionList(fm.Actions)...)
}

func encodeFlowModV13(fm FlowMod) []byte {
	out := make([]byte, flowModFixedLen)
	binary.BigEndian.PutUint64(out[0:8], fm.Cookie)
	binary.BigEndian.PutUint64(out[8:16], fm.CookieMask)
	out[16] = fm.TableID
	out[17] = byte(fm.Command)
	binary.BigEndian.PutUint16(out[18:20], fm.IdleTimeout)
	binary.BigEndian.PutUint16(out[20:22], fm.HardTimeout)
	binary.BigEndian.PutUint16(out[22:24], fm.Priority)
	binary.BigEndian.PutUint32(out[24:28], fm.BufferID)
	binary.BigEndian.PutUint32(out[28:32], fm.OutPort)
	binary.BigEndian.PutUint32(out[32:36], fm.OutGroup)
	binary.BigEndian.PutUint16(out[36:38], fm.Flags)

	out = append(out, match.Encode(fm.Match)...)
	out = append(out, EncodeInstructionList(fm.Instructions)...)

	return out
}

// FlowRemovedReason is ofp_flow_removed_reason.
type FlowRemovedReason uint8

const (
	FlowRemovedIdleTimeout FlowRemovedReason = iota
	FlowRemovedHardTimeout
	FlowRemovedDelete
	FlowRemovedGroupDelete
)

// FlowRemoved is the decoded FLOW_REMOVED body.
type FlowRemoved struct {
	Cookie       uint64
	Priority     uint16
	Reason       FlowRemovedReason
	TableID      uint8
	DurationSec  uint32
	DurationNSec uint32
	IdleTimeout  uint16
	HardTimeout  uint16
	PacketCount  uint64
	ByteCount    uint64
	Match        match.Match
}

const flowRemovedFixedLen = 40

func DecodeFlowRemoved(v Version, body []byte) (FlowRemoved, errors.Error) {
	if len(body) < flowRemovedFixedLen {
		return FlowRemoved{}, ErrorTruncatedBody.Error()
	}

	fr := FlowRemoved{
		Cookie:       binary.BigEndian.Uint64(body[0:8]),
		Priority:     binary.BigEndian.Uint16(body[8:10]),
		Reason:       FlowRemovedReason(body[10]),
		TableID:      body[11],
		DurationSec:  binary.BigEndian.Uint32(body[12:16]),
		DurationNSec: binary.BigEndian.Uint32(body[16:20]),
		IdleTimeout:  binary.BigEndian.Uint16(body[20:22]),
		HardTimeout:  binary.BigEndian.Uint16(body[22:24]),
		PacketCount:  binary.BigEndian.Uint64(body[24:32]),
		ByteCount:    binary.BigEndian.Uint64(body[32:40]),
	}

	if v != Version10 && len(body) > flowRemovedFixedLen {
		m, _, e := match.Decode(body[flowRemovedFixedLen:])
		if e != nil {
			return FlowRemoved{}, e
		}
		fr.Match = m
	}

	return fr, nil
}

func EncodeFlowRemoved(v Version, fr FlowRemoved) []byte {
	out := make([]byte, flowRemovedFixedLen)
	binary.BigEndian.PutUint64(out[0:8], fr.Cookie)
	binary.BigEndian.PutUint16(out[8:10], fr.Priority)
	out[10] = byte(fr.Reason)
	out[11] = fr.TableID
	binary.BigEndian.PutUint32(out[12:16], fr.DurationSec)
	binary.BigEndian.PutUint32(out[16:20], fr.DurationNSec)
	binary.BigEndian.PutUint16(out[20:22], fr.IdleTimeout)
	binary.BigEndian.PutUint16(out[22:24], fr.HardTimeout)
	binary.BigEndian.PutUint64(out[24:32], fr.PacketCount)
	binary.BigEndian.PutUint64(out[32:40], fr.ByteCount)

	if v != Version10 {
		out = append(out, match.Encode(fr.Match)...)
	}

	return out
}
