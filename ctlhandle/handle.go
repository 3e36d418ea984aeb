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

package ctlhandle

import (
	"encoding/binary"
	"sync"

	"github.com/nabbar/goflow/errors"
	"github.com/nabbar/goflow/logger"
	"github.com/nabbar/goflow/ofp"
	"github.com/nabbar/goflow/reactor"
	"github.com/nabbar/goflow/rofchan"
)

// Identity is what this process reports about itself to a controller: the
// FEATURES_REPLY/GET_CONFIG_REPLY/TABLE_STATS fields a real datapath would
// have discovered locally. A Handle has no way to discover these on its
// own — unlike dphandle.Handle, which learns them from the peer — so the
// embedder supplies them at construction.
type Identity struct {
	DatapathID   uint64
	NBuffers     uint32
	NTables      uint8
	Capabilities uint32
	Ports        []ofp.Port
	SwitchConfig ofp.SwitchConfig
	TableStats   []ofp.TableStats
}

// Observer is the application capability set of a datapath-role process:
// ctl_open/ctl_close mirror dphandle's dpath_open/dpath_close, and the
// remaining callbacks surface the controller commands a real switch would
// act on (install a flow, emit a packet, change role).
type Observer interface {
	OnCtlOpen(h *Handle)
	OnCtlClose(h *Handle, err error)
	OnFlowMod(h *Handle, fm ofp.FlowMod)
	OnPacketOut(h *Handle, po ofp.PacketOut)
	OnSetConfig(h *Handle, sc ofp.SwitchConfig)
	OnRoleRequest(h *Handle, r ofp.Role)
	OnExperimenter(h *Handle, exp ofp.Experimenter)
}

// ChanObserverProxy breaks the same circular-construction cycle as
// dphandle.ChanObserverProxy: a rofchan.Chan needs its Observer before the
// Handle that will act as that observer can exist.
type ChanObserverProxy struct {
	Target rofchan.Observer
}

func (p *ChanObserverProxy) OnChannelEstablished(ch *rofchan.Chan) {
	p.Target.OnChannelEstablished(ch)
}

func (p *ChanObserverProxy) OnChannelDisconnected(ch *rofchan.Chan, err error) {
	p.Target.OnChannelDisconnected(ch, err)
}

func (p *ChanObserverProxy) OnMessage(ch *rofchan.Chan, auxID uint8, env ofp.Envelope) {
	p.Target.OnMessage(ch, auxID, env)
}

// Handle is a datapath-role process's session object (§4.4): "the mirror
// image for datapath-role processes ... initiates no init sequence and
// instead responds to features/get-config/stats requests; its state
// machine is otherwise identical."
type Handle struct {
	ch    *rofchan.Chan
	obs   Observer
	react reactor.Reactor
	log   logger.Logger
	ident Identity

	mu          sync.Mutex
	state       State
	version     ofp.Version
	role        ofp.Role
	openEmitted bool
	ports       *portTable
}

// New returns a Handle bound to ch, reporting ident when asked for its
// features/config/stats. Per ChanObserverProxy's doc comment, ch must
// already have been constructed with a proxy that forwards to this
// Handle.
func New(ch *rofchan.Chan, ident Identity, obs Observer, react reactor.Reactor, log logger.Logger) *Handle {
	if log == nil {
		log = logger.New()
	}
	h := &Handle{
		ch:    ch,
		obs:   obs,
		react: react,
		log:   log,
		ident: ident,
		state: StateAwaitFeaturesRequest,
		ports: newPortTable(),
	}
	h.ports.populate(ident.Ports)
	return h
}

// State reports the responder's current position in the mirrored init
// sequence.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Ports returns a snapshot of the locally-held port table.
func (h *Handle) Ports() []ofp.Port {
	return h.ports.snapshot()
}

// Close tears the handle down by dropping the channel's main connection.
func (h *Handle) Close() error {
	h.mu.Lock()
	h.state = StateClosed
	h.mu.Unlock()
	return h.ch.DropConn(rofchan.MainAuxID)
}

// OnChannelEstablished begins waiting for the controller's FEATURES_REQUEST
// — unlike dphandle, nothing is sent here; the mirrored sequence only
// responds.
func (h *Handle) OnChannelEstablished(ch *rofchan.Chan) {
	mainConn, ok := ch.Conn(rofchan.MainAuxID)
	if !ok {
		return
	}

	h.mu.Lock()
	h.version = mainConn.NegotiatedVersion()
	h.state = StateAwaitFeaturesRequest
	h.mu.Unlock()
}

// OnChannelDisconnected notifies ctl_close exactly once if ctl_open was
// ever emitted, mirroring dphandle.Handle.OnChannelDisconnected.
func (h *Handle) OnChannelDisconnected(ch *rofchan.Chan, err error) {
	h.mu.Lock()
	wasOpen := h.openEmitted
	h.openEmitted = false
	h.state = StateClosed
	h.mu.Unlock()

	if wasOpen && h.obs != nil {
		h.obs.OnCtlClose(h, err)
	}
}

// OnMessage answers the controller's init-sequence requests in order, and
// once Running, handles ongoing per-connection requests (SET_CONFIG,
// BARRIER, ROLE) directly or forwards application commands (FLOW_MOD,
// PACKET_OUT) to Observer.
func (h *Handle) OnMessage(ch *rofchan.Chan, auxID uint8, env ofp.Envelope) {
	h.mu.Lock()
	st := h.state
	version := h.version
	h.mu.Unlock()

	switch st {
	case StateAwaitFeaturesRequest:
		h.handleFeaturesRequest(env, version)
		return
	case StateAwaitGetConfigRequest:
		h.handleGetConfigRequest(env, version)
		return
	case StateAwaitStatsRequest:
		h.handleStatsRequest(env, version)
		return
	}

	h.dispatchRunning(env, version)
}

func (h *Handle) handleFeaturesRequest(env ofp.Envelope, version ofp.Version) {
	if env.Header.Type != ofp.TypeFeaturesRequest {
		h.log.Warning("ctlhandle unexpected message before features_request", "type", env.Header.Type.String())
		return
	}

	fr := ofp.FeaturesReply{
		DatapathID:   h.ident.DatapathID,
		NBuffers:     h.ident.NBuffers,
		NTables:      h.ident.NTables,
		Capabilities: h.ident.Capabilities,
	}
	if version == ofp.Version10 {
		fr.Ports = h.ident.Ports
	}

	reply := ofp.EncodeEnvelope(ofp.Header{Version: version, Type: ofp.TypeFeaturesReply, Xid: env.Header.Xid},
		ofp.EncodeFeaturesReply(version, fr))
	_ = h.ch.SendMessage(reply, rofchan.MainAuxID)

	h.mu.Lock()
	h.state = StateAwaitGetConfigRequest
	h.mu.Unlock()
}

func (h *Handle) handleGetConfigRequest(env ofp.Envelope, version ofp.Version) {
	if env.Header.Type != ofp.TypeGetConfigRequest {
		h.log.Warning("ctlhandle unexpected message before get_config_request", "type", env.Header.Type.String())
		return
	}

	reply := ofp.EncodeEnvelope(ofp.Header{Version: version, Type: ofp.TypeGetConfigReply, Xid: env.Header.Xid},
		ofp.EncodeSwitchConfig(h.ident.SwitchConfig))
	_ = h.ch.SendMessage(reply, rofchan.MainAuxID)

	h.mu.Lock()
	h.state = StateAwaitStatsRequest
	h.mu.Unlock()
}

func (h *Handle) handleStatsRequest(env ofp.Envelope, version ofp.Version) {
	if env.Header.Type != ofp.TypeMultipartRequest {
		h.log.Warning("ctlhandle unexpected message before stats request", "type", env.Header.Type.String())
		return
	}

	mp, e := ofp.DecodeMultipart(env.Body)
	if e != nil {
		h.log.Warning("ctlhandle malformed multipart request", "error", errors.WithSession(e, errors.SessionTag{Dpid: h.ident.DatapathID, Xid: env.Header.Xid}))
		return
	}

	switch mp.Type {
	case ofp.MultipartPortDesc:
		body := ofp.EncodeMultipart(ofp.Multipart{Type: ofp.MultipartPortDesc, Body: encodePorts(h.ports.snapshot())})
		reply := ofp.EncodeEnvelope(ofp.Header{Version: version, Type: ofp.TypeMultipartReply, Xid: env.Header.Xid}, body)
		_ = h.ch.SendMessage(reply, rofchan.MainAuxID)
		return
	case ofp.MultipartTable:
		body := ofp.EncodeMultipart(ofp.Multipart{Type: ofp.MultipartTable, Body: encodeTableStats(h.ident.TableStats)})
		reply := ofp.EncodeEnvelope(ofp.Header{Version: version, Type: ofp.TypeMultipartReply, Xid: env.Header.Xid}, body)
		_ = h.ch.SendMessage(reply, rofchan.MainAuxID)

		h.becomeRunning()
		return
	default:
		h.log.Debug("ctlhandle ignoring unsupported multipart request type during init", "type", mp.Type)
	}
}

func (h *Handle) becomeRunning() {
	h.mu.Lock()
	h.state = StateRunning
	already := h.openEmitted
	h.openEmitted = true
	h.mu.Unlock()

	if !already && h.obs != nil {
		h.obs.OnCtlOpen(h)
	}
}

func (h *Handle) dispatchRunning(env ofp.Envelope, version ofp.Version) {
	switch env.Header.Type {
	case ofp.TypeFlowMod:
		fm, e := ofp.DecodeFlowMod(version, env.Body)
		if e != nil {
			h.log.Warning("ctlhandle malformed flow_mod", "error", errors.WithSession(e, errors.SessionTag{Dpid: h.ident.DatapathID, Xid: env.Header.Xid}))
			return
		}
		if h.obs != nil {
			h.obs.OnFlowMod(h, fm)
		}
	case ofp.TypePacketOut:
		po, e := ofp.DecodePacketOut(version, env.Body)
		if e != nil {
			h.log.Warning("ctlhandle malformed packet_out", "error", errors.WithSession(e, errors.SessionTag{Dpid: h.ident.DatapathID, Xid: env.Header.Xid}))
			return
		}
		if h.obs != nil {
			h.obs.OnPacketOut(h, po)
		}
	case ofp.TypeSetConfig:
		sc, e := ofp.DecodeSwitchConfig(env.Body)
		if e != nil {
			h.log.Warning("ctlhandle malformed set_config", "error", errors.WithSession(e, errors.SessionTag{Dpid: h.ident.DatapathID, Xid: env.Header.Xid}))
			return
		}
		h.mu.Lock()
		h.ident.SwitchConfig = sc
		h.mu.Unlock()
		if h.obs != nil {
			h.obs.OnSetConfig(h, sc)
		}
	case ofp.TypeBarrierRequest:
		reply := ofp.EncodeEnvelope(ofp.Header{Version: version, Type: ofp.TypeBarrierReply, Xid: env.Header.Xid}, nil)
		_ = h.ch.SendMessage(reply, rofchan.MainAuxID)
	case ofp.TypeRoleRequest:
		r, e := ofp.DecodeRole(env.Body)
		if e != nil {
			h.log.Warning("ctlhandle malformed role_request", "error", errors.WithSession(e, errors.SessionTag{Dpid: h.ident.DatapathID, Xid: env.Header.Xid}))
			return
		}
		h.mu.Lock()
		h.role = r
		h.mu.Unlock()

		reply := ofp.EncodeEnvelope(ofp.Header{Version: version, Type: ofp.TypeRoleReply, Xid: env.Header.Xid}, ofp.EncodeRole(r))
		_ = h.ch.SendMessage(reply, rofchan.MainAuxID)

		if h.obs != nil {
			h.obs.OnRoleRequest(h, r)
		}
	case ofp.TypePortStatus:
		// Datapath-originated; a process never receives this from a
		// controller, so an incoming one here is a protocol violation.
		h.log.Warning("ctlhandle received controller-originated port_status, ignoring")
	case ofp.TypeExperimenter:
		exp, e := ofp.DecodeExperimenter(env.Body)
		if e != nil {
			h.log.Warning("ctlhandle malformed experimenter", "error", errors.WithSession(e, errors.SessionTag{Dpid: h.ident.DatapathID, Xid: env.Header.Xid}))
			return
		}
		if h.obs != nil {
			h.obs.OnExperimenter(h, exp)
		}
	default:
		h.log.Debug("ctlhandle dropping message with no Running-state handler", "type", env.Header.Type.String())
	}
}

// SendPacketIn sends a PACKET_IN to the controller, the datapath-side
// counterpart of dphandle.Handle's observer callback of the same name.
func (h *Handle) SendPacketIn(version ofp.Version, pi ofp.PacketIn) errors.Error {
	if h.State() != StateRunning {
		return ErrorNotRunning.Error()
	}
	frame := ofp.EncodeEnvelope(ofp.Header{Version: version, Type: ofp.TypePacketIn}, ofp.EncodePacketIn(version, pi))
	return h.ch.SendMessage(frame, rofchan.MainAuxID)
}

// SendPortStatus sends a PORT_STATUS notification to the controller and
// applies the same mutation to the local port table.
func (h *Handle) SendPortStatus(version ofp.Version, ps ofp.PortStatus) errors.Error {
	if h.State() != StateRunning {
		return ErrorNotRunning.Error()
	}
	h.ports.apply(ps)
	frame := ofp.EncodeEnvelope(ofp.Header{Version: version, Type: ofp.TypePortStatus}, ofp.EncodePortStatus(ps))
	return h.ch.SendMessage(frame, rofchan.MainAuxID)
}

func encodePorts(ports []ofp.Port) []byte {
	var out []byte
	for _, p := range ports {
		ps := ofp.EncodePortStatus(ofp.PortStatus{Reason: ofp.PortReasonAdd, Port: p})
		out = append(out, ps[8:]...)
	}
	return out
}

// encodeTableStats lays out the fixed 24-byte-per-entry format that
// ofp.DecodeTableStatsArray parses. ofp has no exported EncodeTableStats
// because no other package in this tree ever originates a TABLE_STATS
// reply — only a datapath-role responder does.
func encodeTableStats(stats []ofp.TableStats) []byte {
	out := make([]byte, 0, 24*len(stats))
	for _, s := range stats {
		buf := make([]byte, 24)
		buf[0] = s.TableID
		binary.BigEndian.PutUint32(buf[4:8], s.ActiveCount)
		binary.BigEndian.PutUint64(buf[8:16], s.LookupCount)
		binary.BigEndian.PutUint64(buf[16:24], s.MatchedCount)
		out = append(out, buf...)
	}
	return out
}
