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

package xidstore

import (
	"sync"
	"time"

	"github.com/nabbar/goflow/errors"
)

// Entry is one outstanding transaction: the xid a request was sent with,
// the message kind it expects a reply for, and the deadline by which that
// reply must arrive.
type Entry struct {
	Xid        uint32
	MsgType    uint8
	MsgSubType uint16
	Deadline   time.Time
}

// Store is a per-message-type map of outstanding transactions. A zero Store
// is not usable; use New.
type Store interface {
	// NextAsyncXid returns a fresh xid from the monotonic counter, skipping
	// any value currently registered in the store under any message type.
	NextAsyncXid() (uint32, errors.Error)

	// RegisterSync allocates a fresh xid, registers it under msgType with
	// the given subtype and deadline, and returns it. It is the combination
	// the source calls get_sync_xid.
	RegisterSync(msgType uint8, msgSubType uint16, deadline time.Time) (uint32, errors.Error)

	// Release removes the entry for xid under msgType. A reply that
	// arrives for an xid already released (or never registered) is not an
	// error at this layer; callers distinguish that case with Lookup.
	Release(msgType uint8, xid uint32)

	// Lookup returns the entry registered under msgType for xid, if any.
	Lookup(msgType uint8, xid uint32) (Entry, bool)

	// ScanExpired collects every entry across all message types whose
	// deadline is at or before now, removes them from the store, and
	// returns them. Collection happens into a staging slice before any
	// deletion, so the scan never mutates a map while ranging it.
	ScanExpired(now time.Time) []Entry

	// Len reports the total number of outstanding entries across all
	// message types.
	Len() int
}

type store struct {
	mu   sync.Mutex
	next uint32
	byT  map[uint8]map[uint32]Entry
}

// New returns an empty Store with its async counter seeded at 1 (xid 0 is
// reserved by convention for unsolicited/asynchronous messages).
func New() Store {
	return &store{
		next: 1,
		byT:  make(map[uint8]map[uint32]Entry),
	}
}

func (s *store) inUse(xid uint32) bool {
	for _, m := range s.byT {
		if _, ok := m[xid]; ok {
			return true
		}
	}
	return false
}

func (s *store) NextAsyncXid() (uint32, errors.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := s.next
	for {
		x := s.next
		s.next++

		if !s.inUse(x) {
			return x, nil
		}

		if s.next == start {
			return 0, ErrorSpaceExhausted.Error()
		}
	}
}

func (s *store) RegisterSync(msgType uint8, msgSubType uint16, deadline time.Time) (uint32, errors.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := s.next
	var xid uint32
	found := false

	for {
		x := s.next
		s.next++

		if !s.inUse(x) {
			xid = x
			found = true
			break
		}

		if s.next == start {
			break
		}
	}

	if !found {
		return 0, ErrorSpaceExhausted.Error()
	}

	m, ok := s.byT[msgType]
	if !ok {
		m = make(map[uint32]Entry)
		s.byT[msgType] = m
	}

	m[xid] = Entry{Xid: xid, MsgType: msgType, MsgSubType: msgSubType, Deadline: deadline}

	return xid, nil
}

func (s *store) Release(msgType uint8, xid uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m, ok := s.byT[msgType]; ok {
		delete(m, xid)
	}
}

func (s *store) Lookup(msgType uint8, xid uint32) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.byT[msgType]
	if !ok {
		return Entry{}, false
	}

	e, ok := m[xid]
	return e, ok
}

func (s *store) ScanExpired(now time.Time) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	var staging []Entry

	for _, m := range s.byT {
		for _, e := range m {
			if !e.Deadline.After(now) {
				staging = append(staging, e)
			}
		}
	}

	for _, e := range staging {
		if m, ok := s.byT[e.MsgType]; ok {
			delete(m, e.Xid)
		}
	}

	return staging
}

func (s *store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, m := range s.byT {
		n += len(m)
	}
	return n
}
