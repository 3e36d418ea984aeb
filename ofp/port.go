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

// portLen is the encoded size of a single ofp_port structure, identical
// across the three supported versions (50 bytes).
const portLen = 50

// Port is the switch port record of §3, keyed by PortNo in a DpHandle's
// port table.
type Port struct {
	PortNo     uint32
	HWAddr     [6]byte
	Name       string
	Config     uint32
	State      uint32
	Curr       uint32
	Advertised uint32
	Supported  uint32
	Peer       uint32
	CurrSpeed  uint32
	MaxSpeed   uint32
}

func decodePort(buf []byte) (Port, errors.Error) {
	if len(buf) < portLen {
		return Port{}, ErrorTruncatedBody.Error()
	}

	var p Port
	p.PortNo = binary.BigEndian.Uint32(buf[0:4])
	copy(p.HWAddr[:], buf[4:10])

	name := buf[10:26]
	end := 0
	for end < len(name) && name[end] != 0 {
		end++
	}
	p.Name = string(name[:end])

	p.Config = binary.BigEndian.Uint32(buf[26:30])
	p.State = binary.BigEndian.Uint32(buf[30:34])
	p.Curr = binary.BigEndian.Uint32(buf[34:38])
	p.Advertised = binary.BigEndian.Uint32(buf[38:42])
	p.Supported = binary.BigEndian.Uint32(buf[42:46])
	p.Peer = binary.BigEndian.Uint32(buf[46:50])

	return p, nil
}

func encodePort(p Port) []byte {
	buf := make([]byte, portLen)
	binary.BigEndian.PutUint32(buf[0:4], p.PortNo)
	copy(buf[4:10], p.HWAddr[:])

	name := []byte(p.Name)
	if len(name) > 16 {
		name = name[:16]
	}
	copy(buf[10:26], name)

	binary.BigEndian.PutUint32(buf[26:30], p.Config)
	binary.BigEndian.PutUint32(buf[30:34], p.State)
	binary.BigEndian.PutUint32(buf[34:38], p.Curr)
	binary.BigEndian.PutUint32(buf[38:42], p.Advertised)
	binary.BigEndian.PutUint32(buf[42:46], p.Supported)
	binary.BigEndian.PutUint32(buf[46:50], p.Peer)

	return buf
}

func decodePortList(buf []byte) ([]Port, errors.Error) {
	var ports []Port

	for len(buf) >= portLen {
		p, e := decodePort(buf[:portLen])
		if e != nil {
			return nil, e
		}
		ports = append(ports, p)
		buf = buf[portLen:]
	}

	return ports, nil
}

// PortStatusReason is ofp_port_reason.
type PortStatusReason uint8

const (
	PortReasonAdd PortStatusReason = iota
	PortReasonDelete
	PortReasonModify
)

// PortStatus is the decoded body of a PORT_STATUS message (§4.4 "Port
// table"), mutating the DpHandle's port table outside the handshake.
type PortStatus struct {
	Reason PortStatusReason
	Port   Port
}

func DecodePortStatus(body []byte) (PortStatus, errors.Error) {
	if len(body) < 8+portLen {
		return PortStatus{}, ErrorTruncatedBody.Error()
	}

	p, e := decodePort(body[8 : 8+portLen])
	if e != nil {
		return PortStatus{}, e
	}

	return PortStatus{Reason: PortStatusReason(body[0]), Port: p}, nil
}

func EncodePortStatus(ps PortStatus) []byte {
	buf := make([]byte, 8+portLen)
	buf[0] = byte(ps.Reason)
	copy(buf[8:], encodePort(ps.Port))
	return buf
}
