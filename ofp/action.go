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
)

// ActionType is ofp_action_type.
type ActionType uint16

const (
	ActionOutput ActionType = iota
	ActionSetVlanVid
	ActionSetVlanPcp
	ActionStripVlan
	ActionSetDlSrc
	ActionSetDlDst
	ActionSetNwSrc
	ActionSetNwDst
	ActionSetNwTos
	ActionSetTpSrc
	ActionSetTpDst
	ActionEnqueue
	ActionPushVlan
	ActionPopVlan
	ActionGroup
	ActionSetQueue
	ActionSetField  ActionType = 25
	ActionExperimenter ActionType = 0xffff
)

// Action is one element of an action list (FLOW_MOD's APPLY_ACTIONS
// instruction body, or PACKET_OUT's action list directly — OF1.0's flat
// list is the degenerate single-instruction case per §4.5).
type Action struct {
	Type ActionType
	Port uint32    // ActionOutput
	Data []byte    // everything else, opaque
}

const actionHeaderLen = 4

func DecodeActionList(buf []byte) ([]Action, errors.Error) {
	var actions []Action

	for len(buf) > 0 {
		if len(buf) < actionHeaderLen {
			return nil, ErrorTruncatedBody.Error()
		}

		typ := ActionType(binary.BigEndian.Uint16(buf[0:2]))
		length := int(binary.BigEndian.Uint16(buf[2:4]))

		if length < actionHeaderLen || length > len(buf) {
			return nil, ErrorTruncatedBody.Error()
		}

		a := Action{Type: typ}
		body := buf[actionHeaderLen:length]

		if typ == ActionOutput && len(body) >= 4 {
			a.Port = binary.BigEndian.Uint32(body[0:4])
			if len(body) > 4 {
				a.Data = append([]byte(nil), body[4:]...)
			}
		} else {
			a.Data = append([]byte(nil), body...)
		}

		actions = append(actions, a)
		buf = buf[length:]
	}

	return actions, nil
}

func EncodeActionList(actions []Action) []byte {
	var out []byte

	for _, a := range actions {
		var body []byte

		if a.Type == ActionOutput {
			body = make([]byte, 4+len(a.Data))
			binary.BigEndian.PutUint32(body[0:4], a.Port)
			copy(body[4:], a.Data)
		} else {
			body = a.Data
		}

		length := actionHeaderLen + len(body)
		head := make([]byte, actionHeaderLen)
		binary.BigEndian.PutUint16(head[0:2], uint16(a.Type))
		binary.BigEndian.PutUint16(head[2:4], uint16(length+pad8(length)))

		out = append(out, head...)
		out = append(out, body...)
		out = append(out, make([]byte, pad8(length))...)
	}

	return out
}

// InstructionType is ofp_instruction_type (OF1.2/1.3).
type InstructionType uint16

const (
	InstructionGotoTable InstructionType = iota + 1
	InstructionWriteMetadata
	InstructionWriteActions
	InstructionApplyActions
	InstructionClearActions
	InstructionMeter
	InstructionExperimenter InstructionType = 0xffff
)

// Instruction is one element of a FLOW_MOD's instruction list.
type Instruction struct {
	Type     InstructionType
	TableID  uint8    // GotoTable
	MeterID  uint32   // Meter
	Actions  []Action // WriteActions / ApplyActions
	Metadata uint64   // WriteMetadata
	MetaMask uint64
}

const instructionHeaderLen = 4

func DecodeInstructionList(buf []byte) ([]Instruction, errors.Error) {
	var list []Instruction

	for len(buf) > 0 {
		if len(buf) < instructionHeaderLen {
			return nil, ErrorTruncatedBody.Error()
		}

		typ := InstructionType(binary.BigEndian.Uint16(buf[0:2]))
		length := int(binary.BigEndian.Uint16(buf[2:4]))

		if length < instructionHeaderLen || length > len(buf) {
			return nil, ErrorTruncatedBody.Error()
		}

		body := buf[instructionHeaderLen:length]
		ins := Instruction{Type: typ}

		switch typ {
		case InstructionGotoTable:
			if len(body) >= 1 {
				ins.TableID = body[0]
			}
		case InstructionWriteMetadata:
			if len(body) >= 16 {
				ins.Metadata = binary.BigEndian.Uint64(body[4:12])
				ins.MetaMask = binary.BigEndian.Uint64(body[12:20])
			}
		case InstructionWriteActions, InstructionApplyActions:
			actions, e := DecodeActionList(body[4:])
			if e != nil {
				return nil, e
			}
			ins.Actions = actions
		case InstructionMeter:
			if len(body) >= 4 {
				ins.MeterID = binary.BigEndian.Uint32(body[0:4])
			}
		}

		list = append(list, ins)
		buf = buf[length:]
	}

	return list, nil
}

func EncodeInstructionList(list []Instruction) []byte {
	var out []byte

	for _, ins := range list {
		var body []byte

		switch ins.Type {
		case InstructionGotoTable:
			body = make([]byte, 4)
			body[0] = ins.TableID
		case InstructionWriteMetadata:
			body = make([]byte, 20)
			binary.BigEndian.PutUint64(body[4:12], ins.Metadata)
			binary.BigEndian.PutUint64(body[12:20], ins.MetaMask)
		case InstructionWriteActions, InstructionApplyActions:
			actions := EncodeActionList(ins.Actions)
			body = make([]byte, 4+len(actions))
			copy(body[4:], actions)
		case InstructionMeter:
			body = make([]byte, 4)
			binary.BigEndian.PutUint32(body[0:4], ins.MeterID)
		}

		length := instructionHeaderLen + len(body)
		head := make([]byte, instructionHeaderLen)
		binary.BigEndian.PutUint16(head[0:2], uint16(ins.Type))
		binary.BigEndian.PutUint16(head[2:4], uint16(length))

		out = append(out, head...)
		out = append(out, body...)
	}

	return out
}
