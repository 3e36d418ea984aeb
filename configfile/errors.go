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

// Package configfile loads a list of rofsock.EndpointConfig (a
// controller's managed datapaths, or a datapath's set of controllers)
// from a YAML/JSON file via spf13/viper, the way the teacher's config
// components unmarshal a typed leaf config from a key of the process's
// viper instance. It is supplementary and optional: no core package
// imports it.
package configfile

import "github.com/nabbar/goflow/errors"

const (
	ErrorConfigRead errors.CodeError = iota + errors.MinPkgConfig
	ErrorConfigUnmarshal
	ErrorInvalidFamily
	ErrorInvalidTransport
	ErrorInvalidRole
	ErrorTLSLoad
	ErrorInvalidDuration
)

var isCodeError = false

func IsCodeError() bool {
	return isCodeError
}

func init() {
	isCodeError = errors.ExistInMapMessage(ErrorConfigRead)
	errors.RegisterIdFctMessage(ErrorConfigRead, getMessage)
}

func getMessage(code errors.CodeError) (message string) {
	switch code {
	case errors.UnknownError:
		return ""
	case ErrorConfigRead:
		return "configfile: could not read configuration source"
	case ErrorConfigUnmarshal:
		return "configfile: could not unmarshal endpoint list"
	case ErrorInvalidFamily:
		return "configfile: unrecognized address family"
	case ErrorInvalidTransport:
		return "configfile: unrecognized transport"
	case ErrorInvalidRole:
		return "configfile: unrecognized initial role"
	case ErrorTLSLoad:
		return "configfile: could not load TLS material"
	case ErrorInvalidDuration:
		return "configfile: unparseable duration value"
	}

	return ""
}
