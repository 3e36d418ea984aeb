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

// Package rofconn implements the per-connection state machine that turns a
// framed byte stream (rofsock.RofSock) into a negotiated, liveness-checked
// OpenFlow session: HELLO exchange, the controller-main FEATURES round,
// echo-based liveness, and xid allocation local to the connection.
package rofconn

import "github.com/nabbar/goflow/errors"

const (
	ErrorInvalidState errors.CodeError = iota + errors.MinPkgRofConn
	ErrorIncompatibleVersion
	ErrorUnexpectedMessage
	ErrorMalformedFrame
)

var isCodeError = false

func IsCodeError() bool {
	return isCodeError
}

func init() {
	isCodeError = errors.ExistInMapMessage(ErrorInvalidState)
	errors.RegisterIdFctMessage(ErrorInvalidState, getMessage)
}

func getMessage(code errors.CodeError) (message string) {
	switch code {
	case errors.UnknownError:
		return ""
	case ErrorInvalidState:
		return "rofconn: operation invalid in the current state"
	case ErrorIncompatibleVersion:
		return "rofconn: no common OpenFlow version with peer"
	case ErrorUnexpectedMessage:
		return "rofconn: unexpected message type for the current state"
	case ErrorMalformedFrame:
		return "rofconn: malformed message body"
	}

	return ""
}
