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

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/goflow/errors"
	"github.com/nabbar/goflow/reactor"
)

type captureObserver struct {
	mu     sync.Mutex
	frames [][]byte
	closed chan error
}

func newCaptureObserver() *captureObserver {
	return &captureObserver{closed: make(chan error, 1)}
}

func (c *captureObserver) OnConnected() {}

func (c *captureObserver) OnFrame(frame []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, append([]byte(nil), frame...))
}

func (c *captureObserver) OnClosed(err error) {
	select {
	case c.closed <- err:
	default:
	}
}

func (c *captureObserver) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

type fakeReactor struct {
	mu      sync.Mutex
	armed   []reactor.TimerKind
	fireNow bool
}

func (f *fakeReactor) RegisterSocket(conn net.Conn, ev reactor.SocketEvents) (reactor.Token, errors.Error) {
	return 1, nil
}

func (f *fakeReactor) ArmTimer(d time.Duration, kind reactor.TimerKind, fire func(reactor.Token, reactor.TimerKind)) (reactor.Token, errors.Error) {
	f.mu.Lock()
	f.armed = append(f.armed, kind)
	shouldFire := f.fireNow
	f.mu.Unlock()

	if shouldFire {
		fire(1, kind)
	}
	return 1, nil
}

func (f *fakeReactor) Cancel(reactor.Token) {}

func (f *fakeReactor) Now() time.Time { return time.Now() }

var assertDialErr = net.UnknownNetworkError("boom")

var _ = Describe("EndpointConfig", func() {
	It("requires a remote address for the active role", func() {
		cfg := EndpointConfig{InitialRole: RoleActive}
		Expect(cfg.Validate()).To(HaveOccurred())
	})

	It("rejects a TLS config on a plain transport", func() {
		cfg := EndpointConfig{
			InitialRole: RoleActive,
			RemoteAddr:  "127.0.0.1:6653",
			Transport:   TransportTCP,
			TLSConfig:   &tls.Config{},
		}
		Expect(cfg.Validate()).To(HaveOccurred())
	})
})

var _ = Describe("Sock", func() {
	It("delivers frames once attached", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		loop := reactor.NewLoop()
		Expect(loop.Start(ctx)).To(Succeed())
		defer func() { _ = loop.Stop(ctx) }()

		client, server := net.Pipe()
		defer client.Close()

		obs := newCaptureObserver()
		cfg := EndpointConfig{InitialRole: RolePassiveAccepted}
		s := New(cfg, loop, obs, nil)

		Expect(s.Attach(server)).To(BeNil())

		frame := mkFrame(7, 4)
		go func() { _, _ = client.Write(frame) }()

		Eventually(func() int { return obs.count() }, time.Second, 5*time.Millisecond).Should(Equal(1))
	})

	It("writes a queued frame on Send", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		loop := reactor.NewLoop()
		Expect(loop.Start(ctx)).To(Succeed())
		defer func() { _ = loop.Stop(ctx) }()

		client, server := net.Pipe()
		defer client.Close()

		obs := newCaptureObserver()
		cfg := EndpointConfig{InitialRole: RolePassiveAccepted}
		s := New(cfg, loop, obs, nil)
		Expect(s.Attach(server)).To(BeNil())

		frame := mkFrame(3, 0)
		readDone := make(chan []byte, 1)
		go func() {
			buf := make([]byte, 64)
			n, _ := client.Read(buf)
			readDone <- buf[:n]
		}()

		Expect(s.Send(frame)).To(BeNil())

		Eventually(readDone, time.Second).Should(Receive(Equal(frame)))
	})

	It("fails Send at the high watermark", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		loop := reactor.NewLoop()
		Expect(loop.Start(ctx)).To(Succeed())
		defer func() { _ = loop.Stop(ctx) }()

		client, server := net.Pipe()
		defer client.Close()

		obs := newCaptureObserver()
		cfg := EndpointConfig{InitialRole: RolePassiveAccepted, HighWatermark: 2}
		s := New(cfg, loop, obs, nil)
		Expect(s.Attach(server)).To(BeNil())

		// First frame: drain pops it immediately and blocks in conn.Write
		// because nothing reads the pipe's client side.
		Expect(s.Send(mkFrame(1, 0))).To(BeNil())
		time.Sleep(30 * time.Millisecond)

		Expect(s.Send(mkFrame(2, 0))).To(BeNil())
		Expect(s.Send(mkFrame(3, 0))).To(BeNil())

		e := s.Send(mkFrame(4, 0))
		Expect(e).ToNot(BeNil())
		Expect(e.IsCode(ErrorBackpressure)).To(BeTrue())

		// Drain the pipe so the blocked write completes and the test's conn
		// close doesn't race a pending Write.
		go func() {
			buf := make([]byte, 256)
			for {
				if _, err := client.Read(buf); err != nil {
					return
				}
			}
		}()
	})

	It("resets backoff when notified established", func() {
		cfg := EndpointConfig{
			InitialRole:  RoleActive,
			RemoteAddr:   "127.0.0.1:0",
			ReconnectMin: time.Second,
			ReconnectMax: 16 * time.Second,
		}.withDefaults()

		s := New(cfg, nil, nil, nil)
		s.backoff = 8 * time.Second

		s.NotifyEstablished()

		Expect(s.backoff).To(Equal(time.Second))
	})

	It("schedules a reconnect timer when the active role closes", func() {
		fr := &fakeReactor{}

		cfg := EndpointConfig{
			InitialRole: RoleActive,
			RemoteAddr:  "127.0.0.1:0",
		}.withDefaults()

		s := New(cfg, fr, newCaptureObserver(), nil)
		s.dial = func(ctx context.Context, network, addr string, tlsCfg *tls.Config) (net.Conn, error) {
			return nil, assertDialErr
		}

		s.onClosed(nil)

		fr.mu.Lock()
		defer fr.mu.Unlock()
		Expect(fr.armed).To(HaveLen(1))
		Expect(fr.armed[0]).To(Equal(reactor.TimerReconnect))
	})
})
