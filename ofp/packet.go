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

// PacketInReason is ofp_packet_in_reason.
type PacketInReason uint8

const (
	PacketInReasonNoMatch PacketInReason = iota
	PacketInReasonAction
	PacketInReasonInvalidTTL
)

// PacketIn is the decoded body of a PACKET_IN message.
type PacketIn struct {
	BufferID uint32
	TotalLen uint16
	Reason   PacketInReason
	TableID  uint8
	Cookie   uint64
	InPort   uint32     // OF1.0 only
	Match    match.Match // OF1.2/1.3 only
	Data     []byte
}

func DecodePacketIn(v Version, body []byte) (PacketIn, errors.Error) {
	switch v {
	case Version10:
		if len(body) < 10 {
			return PacketIn{}, ErrorTruncatedBody.Error()
		}
		return PacketIn{
			BufferID: binary.BigEndian.Uint32(body[0:4]),
			TotalLen: binary.BigEndian.Uint16(body[4:6]),
			InPort:   uint32(binary.BigEndian.Uint16(body[6:8])),
			Reason:   PacketInReason(body[8]),
			Data:     append([]byte(nil), body[10:]...),
		}, nil
	default:
		if len(body) < 16 {
			return PacketIn{}, ErrorTruncatedBody.Error()
		}
		buf := binary.BigEndian.Uint32(body[0:4])
		total := binary.BigEndian.Uint16(body[4:6])
		reason := PacketInReason(body[6])
		table := body[7]
		cookie := binary.BigEndian.Uint64(body[8:16])

		rest := body[16:]
		m, consumed, e := match.Decode(rest)
		if e != nil {
			return PacketIn{}, e
		}
		rest = rest[consumed:]
		if len(rest) >= 2 {
			rest = rest[2:] // pad
		}

		return PacketIn{
			BufferID: buf,
			TotalLen: total,
			Reason:   reason,
			TableID:  table,
			Cookie:   cookie,
			Match:    m,
			Data:     append([]byte(nil), rest...),
		}, nil
	}
}

func EncodePacketIn(v Version, pi PacketIn) []byte {
	switch v {
	case Version10:
		buf := make([]byte, 10+len(pi.Data))
		binary.BigEndian.PutUint32(buf[0:4], pi.BufferID)
		binary.BigEndian.PutUint16(buf[4:6], pi.TotalLen)
		binary.BigEndian.PutUint16(buf[6:8], uint16(pi.InPort))
		buf[8] = byte(pi.Reason)
		copy(buf[10:], pi.Data)
		return buf
	default:
		head := make([]byte, 16)
		binary.BigEndian.PutUint32(head[0:4], pi.BufferID)
		binary.BigEndian.PutUint16(head[4:6], pi.TotalLen)
		head[6] = byte(pi.Reason)
		head[7] = pi.TableID
		binary.BigEndian.PutUint64(head[8:16], pi.Cookie)

		m := match.Encode(pi.Match)
		out := append(head, m...)
		out = append(out, 0, 0)
		out = append(out, pi.Data...)
		return out
	}
}

// PacketOut is the decoded body of a PACKET_OUT message.
type PacketOut struct {
	BufferID uint32
	InPort   uint32
	Actions  []Action
	Data     []byte
}

func DecodePacketOut(v Version, body []byte) (PacketOut, errors.Error) {
	if len(body) < 8 {
		return PacketOut{}, ErrorTruncatedBody.Error()
	}

	buf := binary.BigEndian.Uint32(body[0:4])
	inPort := binary.BigEndian.Uint32(body[4:8])

	var actLen int
	var off int

	if v == Version10 {
		if len(body) < 10 {
			return PacketOut{}, ErrorTruncatedBody.Error()
		}
		inPort = uint32(binary.BigEndian.Uint16(body[4:6]))
		actLen = int(binary.BigEndian.Uint16(body[6:8]))
		off = 8
	} else {
		actLen = int(binary.BigEndian.Uint16(body[8:10]))
		off = 8 + 4 // +2 actions_len + 2 pad
	}

	if off+actLen > len(body) {
		return PacketOut{}, ErrorTruncatedBody.Error()
	}

	actions, e := DecodeActionList(body[off : off+actLen])
	if e != nil {
		return PacketOut{}, e
	}

	return PacketOut{
		BufferID: buf,
		InPort:   inPort,
		Actions:  actions,
		Data:     append([]byte(nil), body[off+actLen:]...),
	}, nil
}

func EncodePacketOut(v Version, po PacketOut) []byte {
	actions := EncodeActionList(po.Actions)

	if v == Version10 {
		buf := make([]byte, 8)
		binary.BigEndian.PutUint32(buf[0:4], po.BufferID)
		binary.BigEndian.PutUint16(buf[4:6], uint16(po.InPort))
		binary.BigEndian.PutUint16(buf[6:8], uint16(len(actions)))
		buf = append(buf, actions...)
		buf = append(buf, po.Data...)
		return buf
	}

	buf := make([]byte, 12)
	binary.BigEndian.PutUint32(buf[0:4], po.BufferID)
	binary.BigEndian.PutUint32(buf[4:8], po.InPort)
	binary.BigEndian.PutUint16(buf[8:10], uint16(len(actions)))
	buf = append(buf, actions...)
	buf = append(buf, po.Data...)
	return buf
}
