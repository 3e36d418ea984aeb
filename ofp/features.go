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

const featuresReplyFixedLen = 32

// FeaturesReply is the decoded FEATURES_REPLY body (§4.4 step 2). On
// OF1.0, Ports is populated inline; on OF1.2/1.3, Ports is left empty and
// the init sequence issues a follow-up MULTIPART/PORT_DESCRIPTION request
// (decided in SPEC_FULL.md's Open Questions).
type FeaturesReply struct {
	DatapathID   uint64
	NBuffers     uint32
	NTables      uint8
	AuxiliaryID  uint8
	Capabilities uint32
	Ports        []Port
}

func DecodeFeaturesReply(v Version, body []byte) (FeaturesReply, errors.Error) {
	if len(body) < featuresReplyFixedLen {
		return FeaturesReply{}, ErrorTruncatedBody.Error()
	}

	fr := FeaturesReply{
		DatapathID:   binary.BigEndian.Uint64(body[0:8]),
		NBuffers:     binary.BigEndian.Uint32(body[8:12]),
		NTables:      body[12],
	}

	if v == Version13 {
		fr.AuxiliaryID = body[13]
	}

	fr.Capabilities = binary.BigEndian.Uint32(body[16:20])

	if v == Version10 {
		ports, e := decodePortList(body[featuresReplyFixedLen:])
		if e != nil {
			return FeaturesReply{}, e
		}
		fr.Ports = ports
	}

	return fr, nil
}

func EncodeFeaturesReply(v Version, fr FeaturesReply) []byte {
	buf := make([]byte, featuresReplyFixedLen)
	binary.BigEndian.PutUint64(buf[0:8], fr.DatapathID)
	binary.BigEndian.PutUint32(buf[8:12], fr.NBuffers)
	buf[12] = fr.NTables

	if v == Version13 {
		buf[13] = fr.AuxiliaryID
	}

	binary.BigEndian.PutUint32(buf[16:20], fr.Capabilities)

	if v == Version10 {
		for _, p := range fr.Ports {
			buf = append(buf, encodePort(p)...)
		}
	}

	return buf
}

// FeaturesRequest has no body.
type FeaturesRequest struct{}

func EncodeFeaturesRequest(FeaturesRequest) []byte { return nil }
