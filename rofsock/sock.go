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

package rofsock

import (
	"context"
	"crypto/tls"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nabbar/goflow/errors"
	"github.com/nabbar/goflow/logger"
	"github.com/nabbar/goflow/reactor"
)

// Observer receives the events a RofSock produces: the socket becoming
// usable (dialed or attached), complete frames (still undecoded, as
// ofp.DecodeEnvelope expects), and the terminal close.
type Observer interface {
	OnConnected()
	OnFrame(frame []byte)
	OnClosed(err error)
}

// dialFunc is substitutable in tests so S1-style scenarios don't need a
// real listening socket.
type dialFunc func(ctx context.Context, network, addr string, tlsCfg *tls.Config) (net.Conn, error)

func defaultDial(ctx context.Context, network, addr string, tlsCfg *tls.Config) (net.Conn, error) {
	d := net.Dialer{}
	if tlsCfg != nil {
		return (&tls.Dialer{NetDialer: &d, Config: tlsCfg}).DialContext(ctx, network, addr)
	}
	return d.DialContext(ctx, network, addr)
}

// RofSock owns one byte-stream endpoint. It frames inbound bytes into
// complete OF messages, queues outbound frames behind a bounded FIFO, and
// — for actively-dialed endpoints — reschedules itself after a transport
// error with exponential backoff.
type RofSock struct {
	id    string
	cfg   EndpointConfig
	react reactor.Reactor
	log   logger.Logger
	obs   Observer
	dial  dialFunc

	mu      sync.Mutex
	conn    net.Conn
	tok     reactor.Token
	framer  *framer
	started bool
	closing bool

	writeMu sync.Mutex
	writeQ  [][]byte
	writing bool

	backoff time.Duration
}

// New returns a RofSock that is not yet started. For an active endpoint,
// Start dials; for a passive (accepted) endpoint, call Attach with the
// already-accepted net.Conn before or instead of Start.
func New(cfg EndpointConfig, react reactor.Reactor, obs Observer, log logger.Logger) *RofSock {
	cfg = cfg.withDefaults()

	if log == nil {
		log = logger.New()
	}

	return &RofSock{
		id:     uuid.NewString(),
		cfg:    cfg,
		react:  react,
		log:    log,
		obs:    obs,
		dial:   defaultDial,
		framer: newFramer(cfg.MaxFrameLen),
	}
}

// ID is a stable trace id for this socket's lifetime, attached to every
// log entry it emits.
func (s *RofSock) ID() string {
	return s.id
}

// Attach wires an already-established net.Conn (typically a passively
// accepted one) into the reactor and begins framing reads from it.
func (s *RofSock) Attach(conn net.Conn) errors.Error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrorAlreadyStarted.Error()
	}
	s.conn = conn
	s.started = true
	s.mu.Unlock()

	if e := s.register(conn); e != nil {
		return e
	}
	if s.obs != nil {
		s.obs.OnConnected()
	}
	return nil
}

// Start begins the socket's lifecycle. Active endpoints dial RemoteAddr;
// passive endpoints must already have been Attach-ed and Start is then a
// no-op validity check.
func (s *RofSock) Start(ctx context.Context) errors.Error {
	s.mu.Lock()
	role := s.cfg.InitialRole
	alreadyStarted := s.started
	s.mu.Unlock()

	if role == RolePassiveAccepted {
		if !alreadyStarted {
			return ErrorNotStarted.Error()
		}
		return nil
	}

	if alreadyStarted {
		return ErrorAlreadyStarted.Error()
	}

	return s.dialAndRegister(ctx)
}

func (s *RofSock) network() string {
	switch s.cfg.Family {
	case FamilyINET:
		return "tcp4"
	case FamilyINET6:
		return "tcp6"
	default:
		return "tcp"
	}
}

func (s *RofSock) dialAndRegister(ctx context.Context) errors.Error {
	conn, err := s.dial(ctx, s.network(), s.cfg.RemoteAddr, s.cfg.TLSConfig)
	if err != nil {
		s.log.Warning("rofsock dial failed", "id", s.id, "addr", s.cfg.RemoteAddr, "error", err)
		s.scheduleReconnect(ctx)
		return ErrorTransport.Error(err)
	}

	s.mu.Lock()
	s.conn = conn
	s.started = true
	s.mu.Unlock()

	if e := s.register(conn); e != nil {
		return e
	}
	if s.obs != nil {
		s.obs.OnConnected()
	}
	return nil
}

func (s *RofSock) register(conn net.Conn) errors.Error {
	tok, e := s.react.RegisterSocket(conn, reactor.SocketEvents{
		OnReadable: s.onReadable,
		OnClosed:   s.onClosed,
	})
	if e != nil {
		return e
	}

	s.mu.Lock()
	s.tok = tok
	s.mu.Unlock()

	return nil
}

func (s *RofSock) onReadable(buf []byte, n int) {
	frames, err := s.framer.feed(buf[:n])
	for _, f := range frames {
		if s.obs != nil {
			s.obs.OnFrame(f)
		}
	}
	if err != nil {
		s.log.Error("rofsock framing error", "id", s.id, "error", err)
		s.mu.Lock()
		conn := s.conn
		s.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
	}
}

func (s *RofSock) onClosed(err error) {
	s.mu.Lock()
	active := s.cfg.InitialRole == RoleActive
	closing := s.closing
	s.started = false
	s.mu.Unlock()

	if s.obs != nil {
		s.obs.OnClosed(err)
	}

	if active && !closing {
		s.scheduleReconnect(context.Background())
	}
}

// scheduleReconnect arms a reconnect timer with the current backoff, then
// doubles it toward ReconnectMax for the next attempt.
func (s *RofSock) scheduleReconnect(ctx context.Context) {
	s.mu.Lock()
	if s.backoff <= 0 {
		s.backoff = s.cfg.ReconnectMin
	}
	d := s.backoff
	next := s.backoff * 2
	if next > s.cfg.ReconnectMax {
		next = s.cfg.ReconnectMax
	}
	s.backoff = next
	s.mu.Unlock()

	_, _ = s.react.ArmTimer(d, reactor.TimerReconnect, func(reactor.Token, reactor.TimerKind) {
		_ = s.dialAndRegister(ctx)
	})
}

// NotifyEstablished resets the reconnect backoff to its floor. Called by
// the connection layer once a HELLO exchange succeeds on this socket,
// matching §4.1's "reset the backoff on a successful HELLO exchange".
func (s *RofSock) NotifyEstablished() {
	s.mu.Lock()
	s.backoff = s.cfg.ReconnectMin
	s.mu.Unlock()
}

// Send enqueues frame for transmission. It fails with Backpressure once
// the outbound FIFO has reached HighWatermark; the caller must retry after
// a drain.
func (s *RofSock) Send(frame []byte) errors.Error {
	s.writeMu.Lock()
	if len(s.writeQ) >= s.cfg.HighWatermark {
		s.writeMu.Unlock()
		return ErrorBackpressure.Error()
	}

	cp := make([]byte, len(frame))
	copy(cp, frame)
	s.writeQ = append(s.writeQ, cp)
	already := s.writing
	s.writing = true
	s.writeMu.Unlock()

	if !already {
		go s.drain()
	}

	return nil
}

// drain pops queued frames front-first and writes them to the socket. Go's
// net.Conn.Write already blocks until the kernel can accept the bytes, so
// a dedicated drain goroutine plays the role the source's writable-fd
// callback would without needing a second reactor registration per socket.
func (s *RofSock) drain() {
	for {
		s.writeMu.Lock()
		if len(s.writeQ) == 0 {
			s.writing = false
			s.writeMu.Unlock()
			return
		}
		next := s.writeQ[0]
		s.writeQ = s.writeQ[1:]
		s.writeMu.Unlock()

		s.mu.Lock()
		conn := s.conn
		s.mu.Unlock()

		if conn == nil {
			continue
		}

		if _, err := conn.Write(next); err != nil {
			s.log.Warning("rofsock write failed", "id", s.id, "error", err)
			_ = conn.Close()
		}
	}
}

// QueueDepth reports how many frames are currently buffered for write,
// mainly for tests and metrics.
func (s *RofSock) QueueDepth() int {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return len(s.writeQ)
}

// isDraining reports whether the write queue still holds frames or drain
// is in the middle of writing the last one, so FlushAndClose doesn't close
// out from under an in-flight Write.
func (s *RofSock) isDraining() bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.writing || len(s.writeQ) > 0
}

// FlushAndClose waits up to timeout for the outbound queue to drain (so a
// just-enqueued fatal-error reply actually reaches the peer, per §4.2's
// "emitting an OF error reply where the protocol permits") and then closes
// the socket. A non-empty queue past the deadline is abandoned; Close still
// runs.
func (s *RofSock) FlushAndClose(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for s.isDraining() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	return s.Close()
}

// Reset closes the current transport the same way a transport error would,
// without setting the deliberate-teardown flag — an active-role socket's
// onClosed still sees closing==false and reschedules itself, so the caller
// gets a fresh dial rather than a dead entry. Used by rofchan to force an
// auxiliary's reconnect when its channel's main connection drops (§4.3).
func (s *RofSock) Reset() error {
	s.mu.Lock()
	conn := s.conn
	tok := s.tok
	s.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	if tok != 0 {
		s.react.Cancel(tok)
	}

	return nil
}

// Close tears down the socket without scheduling a reconnect, regardless
// of role — used when the owning connection/channel is being torn down
// deliberately.
func (s *RofSock) Close() error {
	s.mu.Lock()
	s.closing = true
	conn := s.conn
	tok := s.tok
	s.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	if tok != 0 {
		s.react.Cancel(tok)
	}

	return nil
}
