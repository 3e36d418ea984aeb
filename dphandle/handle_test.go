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

package dphandle_test

import (
	"context"
	"net"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/goflow/dphandle"
	"github.com/nabbar/goflow/ofp"
	"github.com/nabbar/goflow/reactor"
	"github.com/nabbar/goflow/registry"
	"github.com/nabbar/goflow/rofchan"
)

type recordingObserver struct {
	mu        sync.Mutex
	openCh    chan struct{}
	closeCh   chan struct{}
	portEvts  []ofp.PortStatus
	timeouts  []uint32
	statsXids []uint32
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{openCh: make(chan struct{}, 4), closeCh: make(chan struct{}, 4)}
}

func (o *recordingObserver) OnDpathOpen(h *dphandle.Handle)                        { o.openCh <- struct{}{} }
func (o *recordingObserver) OnDpathClose(h *dphandle.Handle, err error)            { o.closeCh <- struct{}{} }
func (o *recordingObserver) OnPacketIn(h *dphandle.Handle, pi ofp.PacketIn)        {}
func (o *recordingObserver) OnFlowRemoved(h *dphandle.Handle, fr ofp.FlowRemoved)  {}
func (o *recordingObserver) OnError(h *dphandle.Handle, oe ofp.OfpError)           {}
func (o *recordingObserver) OnExperimenter(h *dphandle.Handle, exp ofp.Experimenter) {}
func (o *recordingObserver) OnRoleReply(h *dphandle.Handle, r ofp.Role)            {}

func (o *recordingObserver) OnPortStatus(h *dphandle.Handle, ps ofp.PortStatus) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.portEvts = append(o.portEvts, ps)
}

func (o *recordingObserver) OnStatsReply(h *dphandle.Handle, xid uint32, mp ofp.Multipart) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.statsXids = append(o.statsXids, xid)
}

func (o *recordingObserver) OnRequestTimeout(h *dphandle.Handle, msgType uint8, xid uint32) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.timeouts = append(o.timeouts, xid)
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

func newLoop() (*reactor.Loop, func()) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)

	loop := reactor.NewLoop()
	Expect(loop.Start(ctx)).To(Succeed())

	return loop, func() {
		_ = loop.Stop(ctx)
		cancel()
	}
}

// newHandle wires a Chan through a ChanObserverProxy into a new Handle, the
// way an embedder resolves the construction-order cycle between the two.
func newHandle(loop *reactor.Loop, obs dphandle.Observer, reg *registry.Registry) (*dphandle.Handle, *rofchan.Chan) {
	proxy := &dphandle.ChanObserverProxy{}
	ch := rofchan.New(loop, proxy, nil)
	h := dphandle.New(ch, reg, obs, dphandle.Config{StepTimeout: 2 * time.Second}, loop, nil)
	proxy.Target = h
	return h, ch
}

// driveToRunning adopts a passive OF1.3 main connection, completes the
// HELLO+FEATURES round rofconn handles, then answers the three dphandle
// init-sequence requests (PORT_DESC, GET_CONFIG, TABLE_STATS) in order.
func driveToRunning(ch *rofchan.Chan, dpid uint64) (net.Conn, func()) {
	client, server := net.Pipe()

	_, e := ch.AdoptConn(rofchan.MainAuxID, server, rofchan.Params{
		LocalVersions:    ofp.NewBitmap(ofp.Version13),
		IsControllerMain: true,
	})
	Expect(e).To(BeNil())

	_ = readFrame(client) // our HELLO
	_, err := client.Write(peerHello(ofp.Version13, ofp.NewBitmap(ofp.Version13)))
	Expect(err).ToNot(HaveOccurred())

	featReq := readFrame(client)
	fh, de := ofp.DecodeHeader(featReq)
	Expect(de).To(BeNil())
	Expect(fh.Type).To(Equal(ofp.TypeFeaturesRequest))

	fr := ofp.FeaturesReply{DatapathID: dpid, NBuffers: 64, NTables: 2}
	_, err = client.Write(ofp.EncodeEnvelope(ofp.Header{Version: ofp.Version13, Type: ofp.TypeFeaturesReply, Xid: fh.Xid},
		ofp.EncodeFeaturesReply(ofp.Version13, fr)))
	Expect(err).ToNot(HaveOccurred())

	// PORT_DESC request/reply
	pdReq := readFrame(client)
	pdh, de := ofp.DecodeHeader(pdReq)
	Expect(de).To(BeNil())
	Expect(pdh.Type).To(Equal(ofp.TypeMultipartRequest))

	port := ofp.Port{PortNo: 1, Name: "eth0"}
	pdBody := ofp.EncodeMultipart(ofp.Multipart{Type: ofp.MultipartPortDesc, Body: encodePortsForTest(port)})
	_, err = client.Write(ofp.EncodeEnvelope(ofp.Header{Version: ofp.Version13, Type: ofp.TypeMultipartReply, Xid: pdh.Xid}, pdBody))
	Expect(err).ToNot(HaveOccurred())

	// GET_CONFIG request/reply
	gcReq := readFrame(client)
	gch, de := ofp.DecodeHeader(gcReq)
	Expect(de).To(BeNil())
	Expect(gch.Type).To(Equal(ofp.TypeGetConfigRequest))

	_, err = client.Write(ofp.EncodeEnvelope(ofp.Header{Version: ofp.Version13, Type: ofp.TypeGetConfigReply, Xid: gch.Xid},
		ofp.EncodeSwitchConfig(ofp.SwitchConfig{MissSendLen: 128})))
	Expect(err).ToNot(HaveOccurred())

	// TABLE_STATS request/reply
	tsReq := readFrame(client)
	tsh, de := ofp.DecodeHeader(tsReq)
	Expect(de).To(BeNil())
	Expect(tsh.Type).To(Equal(ofp.TypeMultipartRequest))

	tsBody := ofp.EncodeMultipart(ofp.Multipart{Type: ofp.MultipartTable})
	_, err = client.Write(ofp.EncodeEnvelope(ofp.Header{Version: ofp.Version13, Type: ofp.TypeMultipartReply, Xid: tsh.Xid}, tsBody))
	Expect(err).ToNot(HaveOccurred())

	return client, func() { _ = client.Close() }
}

func encodePortsForTest(ports ...ofp.Port) []byte {
	var out []byte
	for _, p := range ports {
		ps := ofp.EncodePortStatus(ofp.PortStatus{Reason: ofp.PortReasonAdd, Port: p})
		// EncodePortStatus includes an 8-byte status header we don't want
		// here; only the trailing encoded ofp_port bytes are needed.
		out = append(out, ps[8:]...)
	}
	return out
}

func portByNo(ports []ofp.Port, no uint32) (ofp.Port, bool) {
	for _, p := range ports {
		if p.PortNo == no {
			return p, true
		}
	}
	return ofp.Port{}, false
}

var _ = Describe("Handle", func() {
	var loop *reactor.Loop
	var stopLoop func()
	var cleanups []func()

	BeforeEach(func() {
		loop, stopLoop = newLoop()
		cleanups = nil
	})

	AfterEach(func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
		stopLoop()
	})

	It("reaches running after the init sequence", func() {
		obs := newRecordingObserver()
		reg := registry.New()
		h, ch := newHandle(loop, obs, reg)

		_, teardown := driveToRunning(ch, 42)
		cleanups = append(cleanups, teardown)

		Eventually(obs.openCh, 2*time.Second).Should(Receive())

		Expect(h.State()).To(Equal(dphandle.StateRunning))
		Expect(h.Dpid()).To(Equal(uint64(42)))
		Expect(h.SwitchConfig().MissSendLen).To(Equal(uint16(128)))
		Expect(h.Ports()).To(HaveLen(1))

		got, ok := reg.Lookup(42)
		Expect(ok).To(BeTrue())
		Expect(got).To(BeIdenticalTo(h))
	})

	It("evicts the old handle on a duplicate dpid", func() {
		reg := registry.New()

		obs1 := newRecordingObserver()
		h1, ch1 := newHandle(loop, obs1, reg)
		_, td1 := driveToRunning(ch1, 7)
		cleanups = append(cleanups, td1)
		Eventually(obs1.openCh, 2*time.Second).Should(Receive())

		obs2 := newRecordingObserver()
		h2, ch2 := newHandle(loop, obs2, reg)
		_, td2 := driveToRunning(ch2, 7)
		cleanups = append(cleanups, td2)
		Eventually(obs2.openCh, 2*time.Second).Should(Receive())

		got, ok := reg.Lookup(7)
		Expect(ok).To(BeTrue())
		Expect(got).To(BeIdenticalTo(h2))
		Expect(got).ToNot(BeIdenticalTo(h1))
	})

	It("mutates the port table on a PORT_STATUS message", func() {
		obs := newRecordingObserver()
		reg := registry.New()
		h, ch := newHandle(loop, obs, reg)

		client, teardown := driveToRunning(ch, 1)
		cleanups = append(cleanups, teardown)
		Eventually(obs.openCh, 2*time.Second).Should(Receive())

		ps := ofp.PortStatus{Reason: ofp.PortReasonAdd, Port: ofp.Port{PortNo: 5, Name: "eth5"}}
		_, err := client.Write(ofp.EncodeEnvelope(ofp.Header{Version: ofp.Version13, Type: ofp.TypePortStatus, Xid: 0}, ofp.EncodePortStatus(ps)))
		Expect(err).ToNot(HaveOccurred())

		Eventually(func() bool {
			_, ok := portByNo(h.Ports(), 5)
			return ok
		}, time.Second, 5*time.Millisecond).Should(BeTrue())
	})

	It("does not emit a close before a prior open", func() {
		obs := newRecordingObserver()
		reg := registry.New()
		_, ch := newHandle(loop, obs, reg)

		client, server := net.Pipe()
		cleanups = append(cleanups, func() { _ = client.Close() })

		_, e := ch.AdoptConn(rofchan.MainAuxID, server, rofchan.Params{
			LocalVersions:    ofp.NewBitmap(ofp.Version13),
			IsControllerMain: true,
		})
		Expect(e).To(BeNil())
		_ = readFrame(client)
		_ = client.Close()

		Consistently(obs.closeCh, 200*time.Millisecond).ShouldNot(Receive())
	})
})
