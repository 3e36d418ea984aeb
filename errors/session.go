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

package errors

import "fmt"

// SessionTag identifies which OpenFlow session a CodeError happened on:
// the datapath it belongs to, the auxiliary connection within that
// session's channel (0 is always the main connection), and, when the
// failure is tied to a specific request/reply round, the xid that
// correlates them. It exists so a dphandle/ctlhandle/rofchan failure
// carries that context into logs and CodeErrorSlice/GetTraceSlice output
// without every call site formatting it by hand.
type SessionTag struct {
	Dpid  uint64
	AuxID uint8
	Xid   uint32
}

// String renders the tag the same way regardless of which fields are
// meaningful for a given call site; Xid of 0 is valid (HELLO and a few
// other messages legitimately use it) so it is always printed.
func (s SessionTag) String() string {
	return fmt.Sprintf("dpid=%#016x aux=%d xid=%d", s.Dpid, s.AuxID, s.Xid)
}

// WithSession records tag as a parent of e so the session it happened on
// survives into GetParent/CodeErrorSlice/GetTraceSlice without changing
// e's own code or message. Safe to call with a nil e.
func WithSession(e Error, tag SessionTag) Error {
	if e == nil {
		return nil
	}
	e.Add(fmt.Errorf("session[%s]", tag.String()))
	return e
}
