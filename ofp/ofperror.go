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

// ErrorType is ofp_error_type, the high-level classification of an
// OFPT_ERROR reply.
type ErrorType uint16

const (
	ErrTypeHelloFailed ErrorType = iota
	ErrTypeBadRequest
	ErrTypeBadAction
	ErrTypeBadInstruction
	ErrTypeBadMatch
	ErrTypeFlowModFailed
	ErrTypeGroupModFailed
	ErrTypePortModFailed
	ErrTypeTableModFailed
	ErrTypeQueueOpFailed
	ErrTypeSwitchConfigFailed
	ErrTypeRoleRequestFailed
	ErrTypeMeterModFailed
	ErrTypeTableFeaturesFailed
	ErrTypeExperimenter ErrorType = 0xffff
)

// Hello-failed codes (ofp_hello_failed_code).
const (
	HelloFailedIncompatible uint16 = iota
	HelloFailedEperm
)

// Bad-request codes (ofp_bad_request_code), the subset the core needs.
const (
	BadRequestBadVersion uint16 = iota
	BadRequestBadType
)

// OfpError is the decoded body of an OFPT_ERROR message: a type/code pair
// plus up to the first 64 bytes of the message that triggered it.
type OfpError struct {
	Type ErrorType
	Code uint16
	Data []byte
}

func DecodeError(body []byte) (OfpError, errors.Error) {
	if len(body) < 4 {
		return OfpError{}, ErrorTruncatedBody.Error()
	}

	return OfpError{
		Type: ErrorType(binary.BigEndian.Uint16(body[0:2])),
		Code: binary.BigEndian.Uint16(body[2:4]),
		Data: append([]byte(nil), body[4:]...),
	}, nil
}

func EncodeError(e OfpError) []byte {
	buf := make([]byte, 4+len(e.Data))
	binary.BigEndian.PutUint16(buf[0:2], uint16(e.Type))
	binary.BigEndian.PutUint16(buf[2:4], e.Code)
	copy(buf[4:], e.Data)
	return buf
}

// NewHelloFailed builds the OFPET_HELLO_FAILED/OFPHFC_INCOMPATIBLE body sent
// when version negotiation fails (§4.2), echoing the peer's offending
// header bytes as Data per the OF spec's convention.
func NewHelloFailed(code uint16, offendingHeader []byte) OfpError {
	return OfpError{Type: ErrTypeHelloFailed, Code: code, Data: offendingHeader}
}

// NewBadRequest builds an OFPET_BAD_REQUEST body.
func NewBadRequest(code uint16, offending []byte) OfpError {
	return OfpError{Type: ErrTypeBadRequest, Code: code, Data: offending}
}
