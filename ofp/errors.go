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

import "github.com/nabbar/goflow/errors"

const (
	ErrorShortHeader errors.CodeError = iota + errors.MinPkgOfp
	ErrorBodyLengthMismatch
	ErrorOversizeFrame
	ErrorUnknownVersion
	ErrorUnknownMessageType
	ErrorUnsupportedOnVersion
	ErrorTruncatedBody
	ErrorBadHelloElement
)

var isCodeError = false

func IsCodeError() bool {
	return isCodeError
}

func init() {
	isCodeError = errors.ExistInMapMessage(ErrorShortHeader)
	errors.RegisterIdFctMessage(ErrorShortHeader, getMessage)
}

func getMessage(code errors.CodeError) (message string) {
	switch code {
	case errors.UnknownError:
		return ""
	case ErrorShortHeader:
		return "ofp: frame shorter than the 8-byte header"
	case ErrorBodyLengthMismatch:
		return "ofp: declared length does not match body size"
	case ErrorOversizeFrame:
		return "ofp: frame exceeds the configured size cap"
	case ErrorUnknownVersion:
		return "ofp: unknown or unsupported wire version"
	case ErrorUnknownMessageType:
		return "ofp: unknown message type for this version"
	case ErrorUnsupportedOnVersion:
		return "ofp: message type not supported on this version"
	case ErrorTruncatedBody:
		return "ofp: body truncated before expected element boundary"
	case ErrorBadHelloElement:
		return "ofp: malformed HELLO element"
	}

	return ""
}
