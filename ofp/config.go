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

// SwitchConfig is shared by GET_CONFIG_REPLY and SET_CONFIG (§4.4 step 3).
type SwitchConfig struct {
	Flags       uint16
	MissSendLen uint16
}

func DecodeSwitchConfig(body []byte) (SwitchConfig, errors.Error) {
	if len(body) < 4 {
		return SwitchConfig{}, ErrorTruncatedBody.Error()
	}

	return SwitchConfig{
		Flags:       binary.BigEndian.Uint16(body[0:2]),
		MissSendLen: binary.BigEndian.Uint16(body[2:4]),
	}, nil
}

func EncodeSwitchConfig(c SwitchConfig) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint16(buf[0:2], c.Flags)
	binary.BigEndian.PutUint16(buf[2:4], c.MissSendLen)
	return buf
}
