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

// helloElemType identifies a HELLO element (ofp_hello_elem_type).
type helloElemType uint16

const helloElemVersionBitmap helloElemType = 1

// Hello is the decoded body of a HELLO message. Bitmap is zero when the peer
// sent a bare HELLO with no OFPHET_VERSIONBITMAP element; RofConn then
// falls back to treating the header version as a singleton bitmap.
type Hello struct {
	Bitmap Bitmap
}

// DecodeHello parses a HELLO body. An empty body is valid (pre-1.3 peers).
func DecodeHello(body []byte) (Hello, errors.Error) {
	var h Hello

	for len(body) > 0 {
		if len(body) < 4 {
			return Hello{}, ErrorBadHelloElement.Error()
		}

		et := helloElemType(binary.BigEndian.Uint16(body[0:2]))
		elen := int(binary.BigEndian.Uint16(body[2:4]))

		if elen < 4 || elen > len(body) {
			return Hello{}, ErrorBadHelloElement.Error()
		}

		if et == helloElemVersionBitmap {
			bm, e := decodeVersionBitmap(body[4:elen])
			if e != nil {
				return Hello{}, e
			}
			h.Bitmap = h.Bitmap | bm
		}

		adv := elen + pad8(elen)
		if adv > len(body) {
			adv = len(body)
		}
		body = body[adv:]
	}

	return h, nil
}

func decodeVersionBitmap(payload []byte) (Bitmap, errors.Error) {
	var bm Bitmap

	for i := 0; i+4 <= len(payload); i += 4 {
		word := binary.BigEndian.Uint32(payload[i : i+4])
		for bit := 0; bit < 32; bit++ {
			if word&(1<<uint(bit)) != 0 {
				bm = bm.Add(Version(i*8 + bit))
			}
		}
	}

	return bm, nil
}

// EncodeHello serializes a HELLO body including the OFPHET_VERSIONBITMAP
// element when Bitmap is non-zero.
func EncodeHello(h Hello) []byte {
	if h.Bitmap == 0 {
		return nil
	}

	var top Version = h.Bitmap.Max()
	words := int(top)/32 + 1
	payload := make([]byte, words*4)

	for v := Version(1); v <= top; v++ {
		if h.Bitmap.Has(v) {
			idx := int(v) / 32
			bit := int(v) % 32
			binary.BigEndian.PutUint32(payload[idx*4:idx*4+4],
				binary.BigEndian.Uint32(payload[idx*4:idx*4+4])|(1<<uint(bit)))
		}
	}

	elen := 4 + len(payload)
	buf := make([]byte, elen+pad8(elen))
	binary.BigEndian.PutUint16(buf[0:2], uint16(helloElemVersionBitmap))
	binary.BigEndian.PutUint16(buf[2:4], uint16(elen))
	copy(buf[4:], payload)

	return buf
}
