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

// Package rofchan implements the multi-connection channel that demultiplexes
// one logical OpenFlow session (a main connection plus zero or more
// auxiliary connections, keyed by aux_id) over one or more rofconn.Conn
// instances, deriving channel-level up/down events and applying the
// reconnect policy of §4.3.
package rofchan

import "github.com/nabbar/goflow/errors"

const (
	ErrorChanInvalid errors.CodeError = iota + errors.MinPkgRofChan
	ErrorChanNotFound
	ErrorChanAlreadyExists
)

var isCodeError = false

func IsCodeError() bool {
	return isCodeError
}

func init() {
	isCodeError = errors.ExistInMapMessage(ErrorChanInvalid)
	errors.RegisterIdFctMessage(ErrorChanInvalid, getMessage)
}

func getMessage(code errors.CodeError) (message string) {
	switch code {
	case errors.UnknownError:
		return ""
	case ErrorChanInvalid:
		return "rofchan: operation violates channel invariants"
	case ErrorChanNotFound:
		return "rofchan: no connection registered for that aux_id"
	case ErrorChanAlreadyExists:
		return "rofchan: aux_id already in use"
	}

	return ""
}
