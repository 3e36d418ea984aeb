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
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nabbar/goflow/errors"
	"github.com/nabbar/goflow/runner/startstop"
)

// readChunk bounds how many bytes a single OnReadable invocation delivers;
// RofSock's framer accumulates across calls, so this only bounds per-turn
// copy size, not message size.
const readChunk = 4096

// Loop is the default Reactor: every registered socket gets its own
// read-pump goroutine bound to the loop's lifecycle, and every armed timer
// is a time.Timer wrapped so Cancel is idempotent. This mirrors "one OS
// thread per reactor" loosely — the Go runtime's own scheduler plays the
// role the source's epoll thread would — while keeping the single
// environment-abstraction surface the rest of the module programs against.
type Loop struct {
	mu     sync.Mutex
	run    startstop.Runner
	ctx    context.Context
	cancel context.CancelFunc
	next   uint64
	timers map[Token]*time.Timer
	socks  map[Token]net.Conn
}

// NewLoop returns a Loop that is not yet running; call Start.
func NewLoop() *Loop {
	l := &Loop{
		timers: make(map[Token]*time.Timer),
		socks:  make(map[Token]net.Conn),
	}

	l.run = startstop.New(
		func(ctx context.Context) error {
			l.mu.Lock()
			l.ctx, l.cancel = context.WithCancel(ctx)
			l.mu.Unlock()
			<-l.ctx.Done()
			return nil
		},
		func(ctx context.Context) error {
			l.mu.Lock()
			for tok, t := range l.timers {
				t.Stop()
				delete(l.timers, tok)
			}
			for tok, conn := range l.socks {
				_ = conn.Close()
				delete(l.socks, tok)
			}
			l.mu.Unlock()
			return nil
		},
	)

	return l
}

// Start launches the loop's background lifecycle under ctx.
func (l *Loop) Start(ctx context.Context) error {
	return l.run.Start(ctx)
}

// Stop tears down every registration and ends the loop.
func (l *Loop) Stop(ctx context.Context) error {
	return l.run.Stop(ctx)
}

func (l *Loop) IsRunning() bool {
	return l.run.IsRunning()
}

func (l *Loop) nextToken() Token {
	return Token(atomic.AddUint64(&l.next, 1))
}

func (l *Loop) RegisterSocket(conn net.Conn, ev SocketEvents) (Token, errors.Error) {
	l.mu.Lock()
	if !l.run.IsRunning() {
		l.mu.Unlock()
		return 0, ErrorLoopStopped.Error()
	}
	tok := l.nextToken()
	l.socks[tok] = conn
	ctx := l.ctx
	l.mu.Unlock()

	go l.pump(ctx, tok, conn, ev)

	return tok, nil
}

func (l *Loop) pump(ctx context.Context, tok Token, conn net.Conn, ev SocketEvents) {
	buf := make([]byte, readChunk)

	for {
		select {
		case <-ctx.Done():
			l.forgetSocket(tok)
			if ev.OnClosed != nil {
				ev.OnClosed(ctx.Err())
			}
			return
		default:
		}

		n, err := conn.Read(buf)
		if n > 0 && ev.OnReadable != nil {
			ev.OnReadable(buf[:n], n)
		}

		if err != nil {
			l.forgetSocket(tok)
			if ev.OnClosed != nil {
				ev.OnClosed(err)
			}
			return
		}
	}
}

func (l *Loop) forgetSocket(tok Token) {
	l.mu.Lock()
	delete(l.socks, tok)
	l.mu.Unlock()
}

func (l *Loop) ArmTimer(d time.Duration, kind TimerKind, fire func(Token, TimerKind)) (Token, errors.Error) {
	l.mu.Lock()
	if !l.run.IsRunning() {
		l.mu.Unlock()
		return 0, ErrorLoopStopped.Error()
	}
	tok := l.nextToken()
	l.mu.Unlock()

	t := time.AfterFunc(d, func() {
		l.mu.Lock()
		_, still := l.timers[tok]
		delete(l.timers, tok)
		l.mu.Unlock()

		if still && fire != nil {
			fire(tok, kind)
		}
	})

	l.mu.Lock()
	l.timers[tok] = t
	l.mu.Unlock()

	return tok, nil
}

func (l *Loop) Cancel(tok Token) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if t, ok := l.timers[tok]; ok {
		t.Stop()
		delete(l.timers, tok)
	}

	if conn, ok := l.socks[tok]; ok {
		_ = conn.Close()
		delete(l.socks, tok)
	}
}

func (l *Loop) Now() time.Time {
	return time.Now()
}
