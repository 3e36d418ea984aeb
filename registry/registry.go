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

// Package registry holds the one process-wide piece of shared state this
// runtime has (§5 "Shared resources"): a dpid -> Handle map used solely to
// detect a duplicate datapath id showing up on a new connection while an
// older handle for the same dpid is still alive. Each registration is also
// stamped with a human-readable session tag, since a raw uint64 dpid is
// awkward to grep for in logs and correlate across a reconnect.
package registry

import (
	stdatomic "sync/atomic"

	"github.com/rs/xid"

	"github.com/nabbar/goflow/atomic"
)

// Handle is the subset of dphandle.Handle the registry needs. Kept minimal
// and defined here (rather than imported from dphandle) so registry stays
// a leaf package dphandle depends on, not the other way around.
type Handle interface {
	Close() error
}

type binding struct {
	handle Handle
	tag    xid.ID
}

// Registry maps dpid -> Handle (plus a generated session tag) over a
// lock-free typed map, per §5's "Access is serialized by a mutex; lookups
// are O(1)" — the atomic map gives the same O(1) lookup without holding a
// mutex across every Register/Unregister/Lookup call.
type Registry struct {
	byDpid atomic.MapTyped[uint64, binding]
	count  int64
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{byDpid: atomic.NewMapTyped[uint64, binding]()}
}

// Register associates dpid with h and stamps the binding with a freshly
// generated xid.ID session tag, returned for logging. If a different handle
// was already registered for dpid, it is closed before being replaced — "the
// old TCP had died" is assumed and the stale handle is destroyed (§4.4).
func (r *Registry) Register(dpid uint64, h Handle) xid.ID {
	tag := xid.New()
	prev, loaded := r.byDpid.Swap(dpid, binding{handle: h, tag: tag})

	if !loaded {
		stdatomic.AddInt64(&r.count, 1)
	} else if prev.handle != h {
		_ = prev.handle.Close()
	}

	return tag
}

// Unregister removes dpid's entry, but only if it still points at h — a
// handle that lost a Register race to a newer one for the same dpid must
// not delete the newer entry on its own teardown.
func (r *Registry) Unregister(dpid uint64, h Handle) {
	cur, ok := r.byDpid.Load(dpid)
	if !ok || cur.handle != h {
		return
	}

	if r.byDpid.CompareAndDelete(dpid, cur) {
		stdatomic.AddInt64(&r.count, -1)
	}
}

// Lookup returns the handle currently registered for dpid, if any.
func (r *Registry) Lookup(dpid uint64) (Handle, bool) {
	b, ok := r.byDpid.Load(dpid)
	if !ok {
		return nil, false
	}
	return b.handle, true
}

// Tag returns the session tag stamped on dpid's current binding at the time
// of its last Register call, if any.
func (r *Registry) Tag(dpid uint64) (xid.ID, bool) {
	b, ok := r.byDpid.Load(dpid)
	if !ok {
		return xid.ID{}, false
	}
	return b.tag, true
}

// Len reports how many datapaths are currently registered.
func (r *Registry) Len() int {
	return int(stdatomic.LoadInt64(&r.count))
}
