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

package dphandle

import (
	"sync"

	"github.com/nabbar/goflow/ofp"
)

// portTable is the switch port map of §4.4 "Port table": populated once at
// handshake from FEATURES_REPLY (OF1.0) or MULTIPART/PORT_DESCRIPTION
// (OF1.2/1.3), then mutated only by PORT_STATUS afterward.
type portTable struct {
	mu    sync.RWMutex
	ports map[uint32]ofp.Port
}

func newPortTable() *portTable {
	return &portTable{ports: make(map[uint32]ofp.Port)}
}

func (t *portTable) populate(ports []ofp.Port) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, p := range ports {
		t.ports[p.PortNo] = p
	}
}

// apply mutates the table per a PORT_STATUS message. DELETE is idempotent:
// a missing port_no is a no-op, logged by the caller.
func (t *portTable) apply(ps ofp.PortStatus) (changed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch ps.Reason {
	case ofp.PortReasonAdd, ofp.PortReasonModify:
		t.ports[ps.Port.PortNo] = ps.Port
		return true
	case ofp.PortReasonDelete:
		if _, ok := t.ports[ps.Port.PortNo]; !ok {
			return false
		}
		delete(t.ports, ps.Port.PortNo)
		return true
	default:
		return false
	}
}

func (t *portTable) snapshot() []ofp.Port {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]ofp.Port, 0, len(t.ports))
	for _, p := range t.ports {
		out = append(out, p)
	}
	return out
}

func (t *portTable) get(portNo uint32) (ofp.Port, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.ports[portNo]
	return p, ok
}
