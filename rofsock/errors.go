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

// Package rofsock owns one byte-stream endpoint: non-blocking read via a
// reactor-registered socket, message framing on the OF header's length
// field, a bounded write queue with backpressure, and reconnect scheduling
// for active sockets.
package rofsock

import "github.com/nabbar/goflow/errors"

const (
	ErrorInvalidConfig errors.CodeError = iota + errors.MinPkgRofSock
	ErrorAlreadyStarted
	ErrorNotStarted
	ErrorBackpressure
	ErrorTransport
	ErrorFraming
)

var isCodeError = false

func IsCodeError() bool {
	return isCodeError
}

func init() {
	isCodeError = errors.ExistInMapMessage(ErrorInvalidConfig)
	errors.RegisterIdFctMessage(ErrorInvalidConfig, getMessage)
}

func getMessage(code errors.CodeError) (message string) {
	switch code {
	case errors.UnknownError:
		return ""
	case ErrorInvalidConfig:
		return "rofsock: invalid endpoint configuration"
	case ErrorAlreadyStarted:
		return "rofsock: socket already started"
	case ErrorNotStarted:
		return "rofsock: socket not started"
	case ErrorBackpressure:
		return "rofsock: write queue at high watermark"
	case ErrorTransport:
		return "rofsock: transport error"
	case ErrorFraming:
		return "rofsock: malformed frame"
	}

	return ""
}
