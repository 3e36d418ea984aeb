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

package reactor

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/nabbar/goflow/errors"
)

// Pool hands out loops round-robin to new connections (§5 "worker pool of
// independent loops"), bounding how many loops may be concurrently active
// with a weighted semaphore rather than an unbounded goroutine-per-loop
// fan-out.
type Pool struct {
	sem   *semaphore.Weighted
	mu    sync.Mutex
	loops []*Loop
	next  uint64
}

// NewPool creates size loops, none yet started, guarded by a semaphore of
// the same weight so Acquire blocks once every loop is in use.
func NewPool(size int) *Pool {
	p := &Pool{
		sem:   semaphore.NewWeighted(int64(size)),
		loops: make([]*Loop, size),
	}
	for i := range p.loops {
		p.loops[i] = NewLoop()
	}
	return p
}

// Start launches every loop in the pool under ctx.
func (p *Pool) Start(ctx context.Context) error {
	for _, l := range p.loops {
		if err := l.Start(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Stop tears down every loop in the pool.
func (p *Pool) Stop(ctx context.Context) error {
	var first error
	for _, l := range p.loops {
		if err := l.Stop(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Acquire blocks until a loop slot is available (or ctx is done) and
// returns the next loop in round-robin order. Release must be called
// exactly once per successful Acquire.
func (p *Pool) Acquire(ctx context.Context) (*Loop, errors.Error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, ErrorPoolExhausted.Error()
	}

	idx := atomic.AddUint64(&p.next, 1) - 1

	p.mu.Lock()
	l := p.loops[int(idx)%len(p.loops)]
	p.mu.Unlock()

	return l, nil
}

// Release returns a slot acquired via Acquire to the pool.
func (p *Pool) Release() {
	p.sem.Release(1)
}

// Size reports how many loops the pool manages.
func (p *Pool) Size() int {
	return len(p.loops)
}
