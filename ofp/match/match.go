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

package match

import (
	"encoding/binary"
	"sort"

	"github.com/nabbar/goflow/errors"
)

// OXMClass is the TLV's oxm_class field; OpenflowBasic covers the standard
// match fields, Experimenter is preserved opaquely.
type OXMClass uint16

const (
	ClassNXM0          OXMClass = 0x0000
	ClassNXM1          OXMClass = 0x0001
	ClassOpenflowBasic OXMClass = 0x8000
	ClassExperimenter  OXMClass = 0xffff
)

// Field is a single decoded OXM TLV: `(class, field, hasmask, value, mask?)`
// per §3. Unknown class/field combinations are preserved as opaque Value
// bytes so pass-through proxies remain lossless (§4.5).
type Field struct {
	Class   OXMClass
	Field   uint8
	HasMask bool
	Value   []byte
	Mask    []byte
}

// key packs (class, field) into a single comparable value for canonical
// ordering (§3 "deterministic TLV order by (class,field)").
func (f Field) key() uint32 {
	return uint32(f.Class)<<8 | uint32(f.Field)
}

// Match is a version-tagged, ordered set of OXM fields.
type Match struct {
	Fields []Field
}

// Canonical returns a copy of m with its fields sorted by ascending
// (class, field), the order the wire codec always emits (§3, §4.5 item 2).
func (m Match) Canonical() Match {
	out := Match{Fields: append([]Field(nil), m.Fields...)}
	sort.SliceStable(out.Fields, func(i, j int) bool {
		return out.Fields[i].key() < out.Fields[j].key()
	})
	return out
}

// Decode parses an OXM match TLV list prefixed by the 4-byte ofp_match
// header (type, length) used inside FLOW_MOD/PACKET_IN bodies, returning
// the number of bytes consumed including the 8-byte-aligned padding.
func Decode(buf []byte) (Match, int, errors.Error) {
	if len(buf) < 4 {
		return Match{}, 0, ErrorTruncatedHeader.Error()
	}

	length := int(binary.BigEndian.Uint16(buf[2:4]))
	if length < 4 || length > len(buf) {
		return Match{}, 0, ErrorTruncatedTLV.Error()
	}

	fields, e := decodeFields(buf[4:length])
	if e != nil {
		return Match{}, 0, e
	}

	padded := length + pad8(length)
	if padded > len(buf) {
		padded = len(buf)
	}

	return Match{Fields: fields}, padded, nil
}

func decodeFields(buf []byte) ([]Field, errors.Error) {
	var fields []Field

	for len(buf) > 0 {
		if len(buf) < 4 {
			return nil, ErrorTruncatedHeader.Error()
		}

		class := OXMClass(binary.BigEndian.Uint16(buf[0:2]))
		fieldByte := buf[2]
		hasMask := fieldByte&0x01 != 0
		fieldNum := fieldByte >> 1
		valLen := int(buf[3])

		if 4+valLen > len(buf) {
			return nil, ErrorTruncatedTLV.Error()
		}

		payload := buf[4 : 4+valLen]
		f := Field{Class: class, Field: fieldNum, HasMask: hasMask}

		if hasMask {
			half := valLen / 2
			f.Value = append([]byte(nil), payload[:half]...)
			f.Mask = append([]byte(nil), payload[half:]...)
		} else {
			f.Value = append([]byte(nil), payload...)
		}

		fields = append(fields, f)
		buf = buf[4+valLen:]
	}

	return fields, nil
}

// Encode serializes m in canonical order, including the 4-byte ofp_match
// header and 8-byte-aligned padding.
func Encode(m Match) []byte {
	c := m.Canonical()

	var body []byte
	for _, f := range c.Fields {
		body = append(body, encodeField(f)...)
	}

	length := 4 + len(body)
	out := make([]byte, 4, length+pad8(length))
	binary.BigEndian.PutUint16(out[0:2], 1) // OFPMT_OXM
	binary.BigEndian.PutUint16(out[2:4], uint16(length))
	out = append(out, body...)
	out = out[:length+pad8(length)]

	return out
}

func encodeField(f Field) []byte {
	var payload []byte
	fieldByte := f.Field << 1

	if f.HasMask {
		fieldByte |= 0x01
		payload = append(append([]byte(nil), f.Value...), f.Mask...)
	} else {
		payload = append([]byte(nil), f.Value...)
	}

	head := make([]byte, 4)
	binary.BigEndian.PutUint16(head[0:2], uint16(f.Class))
	head[2] = fieldByte
	head[3] = byte(len(payload))

	return append(head, payload...)
}

func pad8(n int) int {
	r := n % 8
	if r == 0 {
		return 0
	}
	return 8 - r
}
