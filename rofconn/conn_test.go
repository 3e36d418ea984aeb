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

package rofconn_test

import (
	"context"
	"net"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/goflow/ofp"
	"github.com/nabbar/goflow/reactor"
	"github.com/nabbar/goflow/rofconn"
	"github.com/nabbar/goflow/rofsock"
)

// proxyObserver lets a test wire a *rofconn.Conn as a rofsock.Observer
// before the Conn itself exists, since New needs the already-built sock.
type proxyObserver struct {
	target rofsock.Observer
}

func (p *proxyObserver) OnConnected()       { p.target.OnConnected() }
func (p *proxyObserver) OnFrame(f []byte)   { p.target.OnFrame(f) }
func (p *proxyObserver) OnClosed(err error) { p.target.OnClosed(err) }

type recordingObserver struct {
	mu           sync.Mutex
	established  int
	disconnected []error
	messages     []ofp.Envelope
	estCh        chan struct{}
	discCh       chan struct{}
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{
		estCh:  make(chan struct{}, 4),
		discCh: make(chan struct{}, 4),
	}
}

func (r *recordingObserver) OnEstablished(*rofconn.Conn) {
	r.mu.Lock()
	r.established++
	r.mu.Unlock()
	r.estCh <- struct{}{}
}

func (r *recordingObserver) OnDisconnected(_ *rofconn.Conn, err error) {
	r.mu.Lock()
	r.disconnected = append(r.disconnected, err)
	r.mu.Unlock()
	r.discCh <- struct{}{}
}

func (r *recordingObserver) OnMessage(_ *rofconn.Conn, env ofp.Envelope) {
	r.mu.Lock()
	r.messages = append(r.messages, env)
	r.mu.Unlock()
}

// newHarness wires a Conn to one end of a net.Pipe, returning the peer's
// end of the pipe for the test to drive directly.
func newHarness(connCfg rofconn.Config) (peer net.Conn, conn *rofconn.Conn, obs *recordingObserver, loop *reactor.Loop, teardown func()) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)

	loop = reactor.NewLoop()
	Expect(loop.Start(ctx)).To(Succeed())

	client, server := net.Pipe()

	proxy := &proxyObserver{}
	sock := rofsock.New(rofsock.EndpointConfig{InitialRole: rofsock.RolePassiveAccepted}, loop, proxy, nil)

	obs = newRecordingObserver()
	conn = rofconn.New(connCfg, sock, loop, obs, nil)
	proxy.target = conn

	Expect(sock.Attach(server)).To(BeNil())

	teardown = func() {
		_ = client.Close()
		_ = loop.Stop(ctx)
		cancel()
	}

	return client, conn, obs, loop, teardown
}

func readFrame(peer net.Conn) []byte {
	hdr := make([]byte, ofp.HeaderLen)
	_, err := readFull(peer, hdr)
	Expect(err).ToNot(HaveOccurred())

	h, e := ofp.DecodeHeader(hdr)
	Expect(e).To(BeNil())

	frame := make([]byte, h.Length)
	copy(frame, hdr)
	if int(h.Length) > ofp.HeaderLen {
		_, err = readFull(peer, frame[ofp.HeaderLen:])
		Expect(err).ToNot(HaveOccurred())
	}
	return frame
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func peerHello(version ofp.Version, bitmap ofp.Bitmap) []byte {
	return ofp.EncodeEnvelope(ofp.Header{Version: version, Type: ofp.TypeHello, Xid: 99},
		ofp.EncodeHello(ofp.Hello{Bitmap: bitmap}))
}

var _ = Describe("Conn", func() {
	var teardown func()

	AfterEach(func() {
		if teardown != nil {
			teardown()
			teardown = nil
		}
	})

	It("establishes after HELLO only for a non-main controller", func() {
		cfg := rofconn.Config{LocalVersions: ofp.NewBitmap(ofp.Version13), IsControllerMain: false}
		peer, conn, obs, _, td := newHarness(cfg)
		teardown = td

		sent := readFrame(peer)
		h, e := ofp.DecodeHeader(sent)
		Expect(e).To(BeNil())
		Expect(h.Type).To(Equal(ofp.TypeHello))

		_, err := peer.Write(peerHello(ofp.Version13, ofp.NewBitmap(ofp.Version13)))
		Expect(err).ToNot(HaveOccurred())

		Eventually(obs.estCh, time.Second).Should(Receive())

		Expect(conn.State()).To(Equal(rofconn.StateEstablished))
		Expect(conn.NegotiatedVersion()).To(Equal(ofp.Version13))
	})

	It("runs a features round before establishing for a main controller", func() {
		cfg := rofconn.Config{LocalVersions: ofp.NewBitmap(ofp.Version13), IsControllerMain: true}
		peer, conn, obs, _, td := newHarness(cfg)
		teardown = td

		_ = readFrame(peer) // our HELLO
		_, err := peer.Write(peerHello(ofp.Version13, ofp.NewBitmap(ofp.Version13)))
		Expect(err).ToNot(HaveOccurred())

		featReq := readFrame(peer)
		h, e := ofp.DecodeHeader(featReq)
		Expect(e).To(BeNil())
		Expect(h.Type).To(Equal(ofp.TypeFeaturesRequest))

		Expect(conn.State()).To(Equal(rofconn.StateWaitForFeatures))

		fr := ofp.FeaturesReply{DatapathID: 42, NBuffers: 256, NTables: 1}
		reply := ofp.EncodeEnvelope(ofp.Header{Version: ofp.Version13, Type: ofp.TypeFeaturesReply, Xid: h.Xid},
			ofp.EncodeFeaturesReply(ofp.Version13, fr))
		_, err = peer.Write(reply)
		Expect(err).ToNot(HaveOccurred())

		Eventually(obs.estCh, time.Second).Should(Receive())

		Expect(conn.Features().DatapathID).To(Equal(uint64(42)))
	})

	It("closes the connection on an incompatible version", func() {
		cfg := rofconn.Config{LocalVersions: ofp.NewBitmap(ofp.Version13), IsControllerMain: false}
		peer, _, obs, _, td := newHarness(cfg)
		teardown = td

		_ = readFrame(peer) // our HELLO

		_, err := peer.Write(peerHello(ofp.Version10, ofp.NewBitmap(ofp.Version10)))
		Expect(err).ToNot(HaveOccurred())

		// The HELLO_FAILED error frame is sent before the socket closes.
		errFrame := readFrame(peer)
		h, e := ofp.DecodeHeader(errFrame)
		Expect(e).To(BeNil())
		Expect(h.Type).To(Equal(ofp.TypeError))

		Eventually(obs.discCh, time.Second).Should(Receive())
	})

	// Covers a peer whose HELLO carries no version bitmap element at all,
	// just the legacy header version field — negotiation must fall back
	// to that header version when it's within the local bitmap.
	It("negotiates a lower version from the header only", func() {
		cfg := rofconn.Config{LocalVersions: ofp.NewBitmap(ofp.Version10, ofp.Version12, ofp.Version13), IsControllerMain: false}
		peer, conn, obs, _, td := newHarness(cfg)
		teardown = td

		_ = readFrame(peer) // our HELLO

		_, err := peer.Write(peerHello(ofp.Version12, ofp.Bitmap(0)))
		Expect(err).ToNot(HaveOccurred())

		Eventually(obs.estCh, time.Second).Should(Receive())

		Expect(conn.State()).To(Equal(rofconn.StateEstablished))
		Expect(conn.NegotiatedVersion()).To(Equal(ofp.Version12))
	})

	It("auto-replies to an ECHO request", func() {
		cfg := rofconn.Config{LocalVersions: ofp.NewBitmap(ofp.Version13), IsControllerMain: false}
		peer, _, obs, _, td := newHarness(cfg)
		teardown = td

		_ = readFrame(peer)
		_, err := peer.Write(peerHello(ofp.Version13, ofp.NewBitmap(ofp.Version13)))
		Expect(err).ToNot(HaveOccurred())
		Eventually(obs.estCh, time.Second).Should(Receive())

		echoReq := ofp.EncodeEnvelope(ofp.Header{Version: ofp.Version13, Type: ofp.TypeEchoRequest, Xid: 55},
			ofp.EncodeEcho(ofp.Echo{Data: []byte("ping")}))
		_, err = peer.Write(echoReq)
		Expect(err).ToNot(HaveOccurred())

		reply := readFrame(peer)
		h, e := ofp.DecodeHeader(reply)
		Expect(e).To(BeNil())
		Expect(h.Type).To(Equal(ofp.TypeEchoReply))
		Expect(h.Xid).To(Equal(uint32(55)))
	})

	It("forwards an application message to the observer", func() {
		cfg := rofconn.Config{LocalVersions: ofp.NewBitmap(ofp.Version13), IsControllerMain: false}
		peer, _, obs, _, td := newHarness(cfg)
		teardown = td

		_ = readFrame(peer)
		_, err := peer.Write(peerHello(ofp.Version13, ofp.NewBitmap(ofp.Version13)))
		Expect(err).ToNot(HaveOccurred())
		Eventually(obs.estCh, time.Second).Should(Receive())

		pkt := ofp.EncodeEnvelope(ofp.Header{Version: ofp.Version13, Type: ofp.TypePacketIn, Xid: 1}, []byte{1, 2, 3, 4})
		_, err = peer.Write(pkt)
		Expect(err).ToNot(HaveOccurred())

		Eventually(func() int {
			obs.mu.Lock()
			defer obs.mu.Unlock()
			return len(obs.messages)
		}, time.Second, 5*time.Millisecond).Should(Equal(1))

		obs.mu.Lock()
		Expect(obs.messages[0].Header.Type).To(Equal(ofp.TypePacketIn))
		obs.mu.Unlock()
	})
})
