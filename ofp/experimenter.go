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

// Experimenter is an opaque vendor-extension message, passed through to the
// application observer as-is (§4.5 "EXPERIMENTER message passthrough").
type Experimenter struct {
	ExperimenterID uint32
	ExpType        uint32
	Data           []byte
}

func DecodeExperimenter(body []byte) (Experimenter, errors.Error) {
	if len(body) < 8 {
		return Experimenter{}, ErrorTruncatedBody.Error()
	}

	return Experimenter{
		ExperimenterID: binary.BigEndian.Uint32(body[0:4]),
		ExpType:        binary.BigEndian.Uint32(body[4:8]),
		Data:           append([]byte(nil), body[8:]...),
	}, nil
}

func EncodeExperimenter(e Experimenter) []byte {
	buf := make([]byte, 8+len(e.Data))
	binary.BigEndian.PutUint32(buf[0:4], e.ExperimenterID)
	binary.BigEndian.PutUint32(buf[4:8], e.ExpType)
	copy(buf[8:], e.Data)
	return buf
}
