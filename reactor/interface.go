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
	"net"
	"time"

	"github.com/nabbar/goflow/errors"
)

// Token identifies a registration (socket or timer) with a Reactor, handed
// back to Cancel.
type Token uint64

// TimerKind tags an armed timer with the handshake/liveness step it belongs
// to, so a fired timer's callback can report which deadline elapsed without
// a second lookup (§4.2/§4.4's named timer defaults).
type TimerKind uint8

const (
	TimerUnknown TimerKind = iota
	TimerHello
	TimerFeatures
	TimerGetConfig
	TimerStats
	TimerBarrier
	TimerEchoInterval
	TimerEchoTimeout
	TimerReconnect
)

func (k TimerKind) String() string {
	names := [...]string{
		"unknown", "hello", "features", "get_config", "stats",
		"barrier", "echo_interval", "echo_timeout", "reconnect",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return "unknown"
}

// SocketEvents is the pair of callbacks a registered socket is driven by.
// OnReadable fires whenever new bytes have been read into buf (the number
// of valid bytes is n); OnClosed fires once, when the connection ends for
// any reason (EOF, error, or Cancel).
type SocketEvents struct {
	OnReadable func(buf []byte, n int)
	OnClosed   func(err error)
}

// Reactor is the environment abstraction of §6: register_socket,
// arm_timer, cancel, now. The core depends only on this interface; Loop is
// the default implementation used when the embedder does not supply one.
type Reactor interface {
	// RegisterSocket begins pumping reads from conn, invoking ev.OnReadable
	// as data arrives and ev.OnClosed once when the socket stops producing
	// data. The returned token also identifies conn for writes issued
	// directly against it by the caller (the reactor does not multiplex
	// writes; only read readiness needs a callback in this runtime).
	RegisterSocket(conn net.Conn, ev SocketEvents) (Token, errors.Error)

	// ArmTimer schedules fire to run once after d elapses, tagged with
	// kind. Cancel before it fires to suppress it.
	ArmTimer(d time.Duration, kind TimerKind, fire func(Token, TimerKind)) (Token, errors.Error)

	// Cancel stops whatever tok refers to: an armed timer is stopped
	// before firing; a registered socket's read pump is torn down. Cancel
	// on an unknown or already-cancelled token is a silent no-op.
	Cancel(tok Token)

	// Now returns the reactor's notion of the current time, indirected so
	// tests can substitute a mock clock.
	Now() time.Time
}
