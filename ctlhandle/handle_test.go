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

package ctlhandle_test

import (
	"context"
	"net"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/goflow/ctlhandle"
	"github.com/nabbar/goflow/ofp"
	"github.com/nabbar/goflow/reactor"
	"github.com/nabbar/goflow/rofchan"
)

type recordingObserver struct {
	mu       sync.Mutex
	openCh   chan struct{}
	closeCh  chan struct{}
	flowMods []ofp.FlowMod
	roles    []ofp.Role
	pktOuts  []ofp.PacketOut
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{openCh: make(chan struct{}, 4), closeCh: make(chan struct{}, 4)}
}

func (o *recordingObserver) OnCtlOpen(h *ctlhandle.Handle)                         { o.openCh <- struct{}{} }
func (o *recordingObserver) OnCtlClose(h *ctlhandle.Handle, err error)             { o.closeCh <- struct{}{} }
func (o *recordingObserver) OnSetConfig(h *ctlhandle.Handle, sc ofp.SwitchConfig)  {}
func (o *recordingObserver) OnExperimenter(h *ctlhandle.Handle, exp ofp.Experimenter) {}

func (o *recordingObserver) OnFlowMod(h *ctlhandle.Handle, fm ofp.FlowMod) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.flowMods = append(o.flowMods, fm)
}

func (o *recordingObserver) OnPacketOut(h *ctlhandle.Handle, po ofp.PacketOut) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pktOuts = append(o.pktOuts, po)
}

func (o *recordingObserver) OnRoleRequest(h *ctlhandle.Handle, r ofp.Role) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.roles = append(o.roles, r)
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
	return ofp.EncodeEnvelope(ofp.Header{Version: version, Type: ofp.TypeHello, Xid: 77},
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

func testIdentity(dpid uint64) ctlhandle.Identity {
	return ctlhandle.Identity{
		DatapathID:   dpid,
		NBuffers:     64,
		NTables:      2,
		Capabilities: 0,
		Ports:        []ofp.Port{{PortNo: 1, Name: "eth0"}},
		SwitchConfig: ofp.SwitchConfig{MissSendLen: 128},
		TableStats:   []ofp.TableStats{{TableID: 0, ActiveCount: 3}},
	}
}

// newHandle wires a Chan through a ChanObserverProxy into a new Handle, the
// way an embedder resolves the construction-order cycle between the two.
func newHandle(loop *reactor.Loop, ident ctlhandle.Identity, obs ctlhandle.Observer) (*ctlhandle.Handle, *rofchan.Chan) {
	proxy := &ctlhandle.ChanObserverProxy{}
	ch := rofchan.New(loop, proxy, nil)
	h := ctlhandle.New(ch, ident, obs, loop, nil)
	proxy.Target = h
	return h, ch
}

// adoptAsDatapath connects a passive main connection with IsControllerMain
// false, the role a ctlhandle.Handle always plays, then completes HELLO so
// the channel becomes Established with no FEATURES round already run.
func adoptAsDatapath(ch *rofchan.Chan) (net.Conn, func()) {
	client, server := net.Pipe()

	_, e := ch.AdoptConn(rofchan.MainAuxID, server, rofchan.Params{
		LocalVersions:    ofp.NewBitmap(ofp.Version13),
		IsControllerMain: false,
	})
	Expect(e).To(BeNil())

	_ = readFrame(client) // its HELLO
	_, err := client.Write(peerHello(ofp.Version13, ofp.NewBitmap(ofp.Version13)))
	Expect(err).ToNot(HaveOccurred())

	return client, func() { _ = client.Close() }
}

func driveToRunning(client net.Conn, dpid uint64) {
	xid := uint32(100)

	_, err := client.Write(ofp.EncodeEnvelope(ofp.Header{Version: ofp.Version13, Type: ofp.TypeFeaturesRequest, Xid: xid}, nil))
	Expect(err).ToNot(HaveOccurred())
	frh, e := ofp.DecodeHeader(readFrame(client))
	Expect(e).To(BeNil())
	Expect(frh.Type).To(Equal(ofp.TypeFeaturesReply))
	Expect(frh.Xid).To(Equal(xid))

	xid++
	_, err = client.Write(ofp.EncodeEnvelope(ofp.Header{Version: ofp.Version13, Type: ofp.TypeGetConfigRequest, Xid: xid}, nil))
	Expect(err).ToNot(HaveOccurred())
	gch, e := ofp.DecodeHeader(readFrame(client))
	Expect(e).To(BeNil())
	Expect(gch.Type).To(Equal(ofp.TypeGetConfigReply))

	xid++
	pdReq := ofp.EncodeMultipart(ofp.Multipart{Type: ofp.MultipartPortDesc})
	_, err = client.Write(ofp.EncodeEnvelope(ofp.Header{Version: ofp.Version13, Type: ofp.TypeMultipartRequest, Xid: xid}, pdReq))
	Expect(err).ToNot(HaveOccurred())
	pdh, e := ofp.DecodeHeader(readFrame(client))
	Expect(e).To(BeNil())
	Expect(pdh.Type).To(Equal(ofp.TypeMultipartReply))

	xid++
	tsReq := ofp.EncodeMultipart(ofp.Multipart{Type: ofp.MultipartTable})
	_, err = client.Write(ofp.EncodeEnvelope(ofp.Header{Version: ofp.Version13, Type: ofp.TypeMultipartRequest, Xid: xid}, tsReq))
	Expect(err).ToNot(HaveOccurred())
	tsh, e := ofp.DecodeHeader(readFrame(client))
	Expect(e).To(BeNil())
	Expect(tsh.Type).To(Equal(ofp.TypeMultipartReply))
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

	It("responds to the full init sequence", func() {
		obs := newRecordingObserver()
		h, ch := newHandle(loop, testIdentity(9), obs)

		client, teardown := adoptAsDatapath(ch)
		cleanups = append(cleanups, teardown)
		driveToRunning(client, 9)

		Eventually(obs.openCh, 2*time.Second).Should(Receive())

		Expect(h.State()).To(Equal(ctlhandle.StateRunning))
		Expect(h.Ports()).To(HaveLen(1))
	})

	It("answers a barrier then a role request once running", func() {
		obs := newRecordingObserver()
		h, ch := newHandle(loop, testIdentity(3), obs)

		client, teardown := adoptAsDatapath(ch)
		cleanups = append(cleanups, teardown)
		driveToRunning(client, 3)
		Eventually(obs.openCh, 2*time.Second).Should(Receive())
		Expect(h.State()).To(Equal(ctlhandle.StateRunning))

		_, err := client.Write(ofp.EncodeEnvelope(ofp.Header{Version: ofp.Version13, Type: ofp.TypeBarrierRequest, Xid: 500}, nil))
		Expect(err).ToNot(HaveOccurred())
		bh, e := ofp.DecodeHeader(readFrame(client))
		Expect(e).To(BeNil())
		Expect(bh.Type).To(Equal(ofp.TypeBarrierReply))
		Expect(bh.Xid).To(Equal(uint32(500)))

		role := ofp.Role{Role: ofp.RoleMaster, GenerationID: 7}
		_, err = client.Write(ofp.EncodeEnvelope(ofp.Header{Version: ofp.Version13, Type: ofp.TypeRoleRequest, Xid: 501}, ofp.EncodeRole(role)))
		Expect(err).ToNot(HaveOccurred())
		rh, e := ofp.DecodeHeader(readFrame(client))
		Expect(e).To(BeNil())
		Expect(rh.Type).To(Equal(ofp.TypeRoleReply))

		Eventually(func() int {
			obs.mu.Lock()
			defer obs.mu.Unlock()
			return len(obs.roles)
		}, time.Second, 5*time.Millisecond).Should(Equal(1))
	})

	It("forwards a FLOW_MOD to the observer", func() {
		obs := newRecordingObserver()
		_, ch := newHandle(loop, testIdentity(4), obs)

		client, teardown := adoptAsDatapath(ch)
		cleanups = append(cleanups, teardown)
		driveToRunning(client, 4)
		Eventually(obs.openCh, 2*time.Second).Should(Receive())

		fm := ofp.FlowMod{TableID: 0, Priority: 10, Command: ofp.FlowModAdd}
		_, err := client.Write(ofp.EncodeEnvelope(ofp.Header{Version: ofp.Version13, Type: ofp.TypeFlowMod, Xid: 9}, ofp.EncodeFlowMod(ofp.Version13, fm)))
		Expect(err).ToNot(HaveOccurred())

		Eventually(func() int {
			obs.mu.Lock()
			defer obs.mu.Unlock()
			return len(obs.flowMods)
		}, time.Second, 5*time.Millisecond).Should(Equal(1))
	})

	It("sends a PACKET_IN and a PORT_STATUS", func() {
		obs := newRecordingObserver()
		h, ch := newHandle(loop, testIdentity(5), obs)

		client, teardown := adoptAsDatapath(ch)
		cleanups = append(cleanups, teardown)
		driveToRunning(client, 5)
		Eventually(obs.openCh, 2*time.Second).Should(Receive())

		Expect(h.SendPacketIn(ofp.Version13, ofp.PacketIn{BufferID: 1, InPort: 1, Data: []byte{0x01}})).To(BeNil())
		pih, e := ofp.DecodeHeader(readFrame(client))
		Expect(e).To(BeNil())
		Expect(pih.Type).To(Equal(ofp.TypePacketIn))

		ps := ofp.PortStatus{Reason: ofp.PortReasonModify, Port: ofp.Port{PortNo: 1, Name: "eth0", State: 1}}
		Expect(h.SendPortStatus(ofp.Version13, ps)).To(BeNil())
		psh, e := ofp.DecodeHeader(readFrame(client))
		Expect(e).To(BeNil())
		Expect(psh.Type).To(Equal(ofp.TypePortStatus))

		ports := h.Ports()
		Expect(ports).To(HaveLen(1))
		Expect(ports[0].State).To(Equal(uint32(1)))
	})
})
