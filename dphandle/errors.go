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

// Package dphandle drives the controller-side per-datapath session: the
// post-handshake init sequence (get-config, table-stats, running), the
// port table, request/reply correlation for application-originated
// requests, and the application observer callback set of §4.4.
package dphandle

import "github.com/nabbar/goflow/errors"

const (
	ErrorInitTimeout errors.CodeError = iota + errors.MinPkgDpHandle
	ErrorNotRunning
	ErrorUnexpectedReply
)

var isCodeError = false

func IsCodeError() bool {
	return isCodeError
}

func init() {
	isCodeError = errors.ExistInMapMessage(ErrorInitTimeout)
	errors.RegisterIdFctMessage(ErrorInitTimeout, getMessage)
}

func getMessage(code errors.CodeError) (message string) {
	switch code {
	case errors.UnknownError:
		return ""
	case ErrorInitTimeout:
		return "dphandle: init sequence reply-timer expired"
	case ErrorNotRunning:
		return "dphandle: operation requires the Running state"
	case ErrorUnexpectedReply:
		return "dphandle: reply received for no outstanding request"
	}

	return ""
}
