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

// Package startstop wraps a start/stop function pair into a restartable,
// context-scoped goroutine: the lifecycle primitive every reactor loop and
// connection pump in this module is built on.
package startstop

import (
	"context"
	"sync"
	"time"
)

// Func is the shape of both the start and the stop callback. Start is
// expected to block until its context is cancelled; Stop runs once per
// Stop call that finds the runner running, with the context given to Stop,
// after the start function's context has been cancelled.
type Func func(ctx context.Context) error

// Runner restarts a Func pair under a cancellable child context and tracks
// whether it is currently running, plus for how long.
type Runner interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Restart(ctx context.Context) error
	IsRunning() bool
	Uptime() time.Duration
}

type runner struct {
	mu   sync.Mutex
	fnS  Func
	fnK  Func
	cncl context.CancelFunc
	done chan struct{}
	run  bool
	since time.Time
}

// New returns a Runner wrapping start/stop. The returned Runner is not yet
// running; call Start to launch it.
func New(start, stop Func) Runner {
	return &runner{fnS: start, fnK: stop}
}

func (r *runner) Start(ctx context.Context) error {
	r.mu.Lock()

	if r.run {
		r.mu.Unlock()
		_ = r.Stop(ctx)
		r.mu.Lock()
	}

	cctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	r.cncl = cancel
	r.done = done
	r.run = true
	r.since = time.Now()

	fn := r.fnS
	r.mu.Unlock()

	go func() {
		defer close(done)
		_ = fn(cctx)

		r.mu.Lock()
		r.run = false
		r.since = time.Time{}
		r.mu.Unlock()
	}()

	return nil
}

func (r *runner) Stop(ctx context.Context) error {
	r.mu.Lock()

	if !r.run {
		r.mu.Unlock()
		return nil
	}

	cancel := r.cncl
	done := r.done
	fn := r.fnK
	r.run = false
	r.since = time.Time{}
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
		}
	}

	if fn != nil {
		return fn(ctx)
	}

	return nil
}

func (r *runner) Restart(ctx context.Context) error {
	if err := r.Stop(ctx); err != nil {
		return err
	}
	return r.Start(ctx)
}

func (r *runner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.run
}

func (r *runner) Uptime() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.run || r.since.IsZero() {
		return 0
	}

	return time.Since(r.since)
}
