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

// HeaderLen is the fixed size of every OpenFlow message header.
const HeaderLen = 8

// MaxFrameLen is the default cap on a single message's declared length.
const MaxFrameLen = 64 * 1024

// Type is the message type carried in header byte 1. Numeric values match
// OF1.3's ofp_type; OF1.0 and OF1.2 reuse the subset they define.
type Type uint8

const (
	TypeHello Type = iota
	TypeError
	TypeEchoRequest
	TypeEchoReply
	TypeExperimenter
	TypeFeaturesRequest
	TypeFeaturesReply
	TypeGetConfigRequest
	TypeGetConfigReply
	TypeSetConfig
	TypePacketIn
	TypeFlowRemoved
	TypePortStatus
	TypePacketOut
	TypeFlowMod
	TypeGroupMod
	TypePortMod
	TypeTableMod
	TypeMultipartRequest
	TypeMultipartReply
	TypeBarrierRequest
	TypeBarrierReply
	TypeQueueGetConfigRequest
	TypeQueueGetConfigReply
	TypeRoleRequest
	TypeRoleReply
	TypeGetAsyncRequest
	TypeGetAsyncReply
	TypeSetAsync
	TypeMeterMod
)

func (t Type) String() string {
	names := [...]string{
		"HELLO", "ERROR", "ECHO_REQUEST", "ECHO_REPLY", "EXPERIMENTER",
		"FEATURES_REQUEST", "FEATURES_REPLY", "GET_CONFIG_REQUEST",
		"GET_CONFIG_REPLY", "SET_CONFIG", "PACKET_IN", "FLOW_REMOVED",
		"PORT_STATUS", "PACKET_OUT", "FLOW_MOD", "GROUP_MOD", "PORT_MOD",
		"TABLE_MOD", "MULTIPART_REQUEST", "MULTIPART_REPLY",
		"BARRIER_REQUEST", "BARRIER_REPLY", "QUEUE_GET_CONFIG_REQUEST",
		"QUEUE_GET_CONFIG_REPLY", "ROLE_REQUEST", "ROLE_REPLY",
		"GET_ASYNC_REQUEST", "GET_ASYNC_REPLY", "SET_ASYNC", "METER_MOD",
	}
	if int(t) < len(names) {
		return names[t]
	}
	return "UNKNOWN"
}

// Header is the 8-byte envelope common to every OF message: version, type,
// total length (header + body) and the transaction id used to pair
// requests with replies.
type Header struct {
	Version Version
	Type    Type
	Length  uint16
	Xid     uint32
}

// Envelope is a parsed header paired with its still-opaque body bytes, the
// unit RofSock hands upward to RofConn.
type Envelope struct {
	Header Header
	Body   []byte
}

// DecodeHeader parses the first HeaderLen bytes of buf.
func DecodeHeader(buf []byte) (Header, errors.Error) {
	if len(buf) < HeaderLen {
		return Header{}, ErrorShortHeader.Error()
	}

	return Header{
		Version: Version(buf[0]),
		Type:    Type(buf[1]),
		Length:  binary.BigEndian.Uint16(buf[2:4]),
		Xid:     binary.BigEndian.Uint32(buf[4:8]),
	}, nil
}

// EncodeHeader writes h into the first HeaderLen bytes of buf, which must be
// at least HeaderLen long.
func EncodeHeader(h Header, buf []byte) {
	buf[0] = byte(h.Version)
	buf[1] = byte(h.Type)
	binary.BigEndian.PutUint16(buf[2:4], h.Length)
	binary.BigEndian.PutUint32(buf[4:8], h.Xid)
}

// DecodeEnvelope splits a complete, framed message (header+body, as handed
// up by RofSock) into an Envelope. It re-validates the length invariant
// RofSock already checked, since codecs may be called standalone in tests.
func DecodeEnvelope(frame []byte) (Envelope, errors.Error) {
	h, e := DecodeHeader(frame)
	if e != nil {
		return Envelope{}, e
	}

	if int(h.Length) != len(frame) {
		return Envelope{}, ErrorBodyLengthMismatch.Error()
	}

	if h.Length > MaxFrameLen {
		return Envelope{}, ErrorOversizeFrame.Error()
	}

	return Envelope{Header: h, Body: frame[HeaderLen:]}, nil
}

// EncodeEnvelope serializes header+body into one frame, filling in Length.
func EncodeEnvelope(h Header, body []byte) []byte {
	h.Length = uint16(HeaderLen + len(body))

	frame := make([]byte, h.Length)
	EncodeHeader(h, frame)
	copy(frame[HeaderLen:], body)

	return frame
}

// pad8 returns the number of padding bytes needed to round n up to a
// multiple of 8, per every OF structure's 8-byte alignment rule.
func pad8(n int) int {
	r := n % 8
	if r == 0 {
		return 0
	}
	return 8 - r
}
