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

package ctlhandle

import (
	"sync"

	"github.com/nabbar/goflow/ofp"
)

// portTable mirrors dphandle's port table, from the reporting side: it
// holds the ports this process itself will describe in PORT_DESCRIPTION
// replies and mutates on locally-originated PORT_STATUS.
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
