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

package dphandle

import (
	"sync"
	"time"

	"github.com/nabbar/goflow/errors"
	"github.com/nabbar/goflow/logger"
	"github.com/nabbar/goflow/ofp"
	"github.com/nabbar/goflow/reactor"
	"github.com/nabbar/goflow/registry"
	"github.com/nabbar/goflow/rofchan"
	"github.com/nabbar/goflow/xidstore"
)

// Default reply-timer for each init-sequence step and the expiry scan
// cadence for application-originated request/reply correlation (§4.4).
const (
	DefaultStepTimeout        = 5 * time.Second
	DefaultExpiryScanInterval = 1 * time.Second
)

// Config tunes a Handle's timers.
type Config struct {
	StepTimeout        time.Duration
	ExpiryScanInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.StepTimeout <= 0 {
		c.StepTimeout = DefaultStepTimeout
	}
	if c.ExpiryScanInterval <= 0 {
		c.ExpiryScanInterval = DefaultExpiryScanInterval
	}
	return c
}

// Observer is the application capability set of §4.4: each callback takes
// the handle plus a decoded message, invoked synchronously on the I/O
// thread, and must not block.
type Observer interface {
	OnDpathOpen(h *Handle)
	OnDpathClose(h *Handle, err error)
	OnPacketIn(h *Handle, pi ofp.PacketIn)
	OnFlowRemoved(h *Handle, fr ofp.FlowRemoved)
	OnPortStatus(h *Handle, ps ofp.PortStatus)
	OnStatsReply(h *Handle, xid uint32, mp ofp.Multipart)
	OnError(h *Handle, oe ofp.OfpError)
	OnExperimenter(h *Handle, exp ofp.Experimenter)
	OnRoleReply(h *Handle, r ofp.Role)
	// OnRequestTimeout reports a SendRequest correlation entry whose
	// deadline elapsed with no reply (§4.4 "a single shared timer per
	// kind scans for expired entries").
	OnRequestTimeout(h *Handle, msgType uint8, xid uint32)
}

// ChanObserverProxy breaks the circular construction rofchan.New(react,
// obs, ...) / dphandle.New(ch, ...) requires: the channel needs its
// observer before the Handle that will BE that observer can exist.
//
//	proxy := &dphandle.ChanObserverProxy{}
//	ch := rofchan.New(react, proxy, log)
//	h := dphandle.New(ch, reg, obs, cfg, react, log)
//	proxy.Target = h
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

// Handle is one managed datapath (§4.4): it wraps a rofchan.Chan and
// drives the init sequence once the channel's main connection first
// becomes Established, then forwards application messages to Observer.
type Handle struct {
	cfg   Config
	ch    *rofchan.Chan
	reg   *registry.Registry
	obs   Observer
	react reactor.Reactor
	log   logger.Logger

	mu           sync.Mutex
	state        State
	dpid         uint64
	version      ofp.Version
	nBuffers     uint32
	nTables      uint8
	capabilities uint32
	switchConfig ofp.SwitchConfig
	tableStats   []ofp.TableStats
	openEmitted  bool
	stepXid      uint32
	stepTok      reactor.Token

	ports *portTable

	reqXids   xidstore.Store
	expiryTok reactor.Token
}

// New returns a Handle bound to ch. Per the ChanObserverProxy doc comment,
// ch must already have been constructed with a proxy that forwards to
// this Handle.
func New(ch *rofchan.Chan, reg *registry.Registry, obs Observer, cfg Config, react reactor.Reactor, log logger.Logger) *Handle {
	if log == nil {
		log = logger.New()
	}
	return &Handle{
		cfg:     cfg.withDefaults(),
		ch:      ch,
		reg:     reg,
		obs:     obs,
		react:   react,
		log:     log,
		state:   StateAwaitPortDesc,
		ports:   newPortTable(),
		reqXids: xidstore.New(),
	}
}

// Dpid returns the datapath id recorded from FEATURES_REPLY. Zero until
// the init sequence has begun.
func (h *Handle) Dpid() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dpid
}

// State reports the init-sequence/running state.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Ports returns a snapshot of the current port table.
func (h *Handle) Ports() []ofp.Port {
	return h.ports.snapshot()
}

// Version returns the negotiated OpenFlow version, valid from
// OnChannelEstablished onward.
func (h *Handle) Version() ofp.Version {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.version
}

// SwitchConfig returns the flags/miss-send-len recorded from
// GET_CONFIG_REPLY.
func (h *Handle) SwitchConfig() ofp.SwitchConfig {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.switchConfig
}

// TableStats returns the per-table counters recorded from the init
// sequence's MULTIPART/TABLE_STATS reply.
func (h *Handle) TableStats() []ofp.TableStats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]ofp.TableStats(nil), h.tableStats...)
}

// Close tears the handle down: cancels its timers, deregisters from the
// registry, and closes the underlying channel.
func (h *Handle) Close() error {
	h.mu.Lock()
	dpid := h.dpid
	h.state = StateClosed
	h.mu.Unlock()

	h.cancelStepTimer()
	h.cancelExpiryTimer()

	if h.reg != nil && dpid != 0 {
		h.reg.Unregister(dpid, h)
	}

	return h.ch.DropConn(rofchan.MainAuxID)
}

// Send encodes and sends a fire-and-forget application message (FLOW_MOD,
// PACKET_OUT, and the like) on the channel's main connection, with no
// reply expected and no xid tracking. Use SendRequest instead for
// anything whose reply must be correlated back to this call.
func (h *Handle) Send(version ofp.Version, msgType ofp.Type, body []byte) errors.Error {
	mainConn, ok := h.ch.Conn(rofchan.MainAuxID)
	if !ok {
		return ErrorNotRunning.Error()
	}

	xid, e := mainConn.NextAsyncXid()
	if e != nil {
		return e
	}

	frame := ofp.EncodeEnvelope(ofp.Header{Version: version, Type: msgType, Xid: xid}, body)
	return h.ch.SendMessage(frame, rofchan.MainAuxID)
}

// SendRequest encodes and sends an application-originated request on the
// channel's main connection, registering xid in this handle's own
// XidStore with deadline now+timeout for later correlation (§4.4
// "Request/reply correlation").
func (h *Handle) SendRequest(version ofp.Version, msgType ofp.Type, subType uint16, body []byte, timeout time.Duration) (uint32, errors.Error) {
	deadline := h.react.Now().Add(timeout)
	xid, e := h.reqXids.RegisterSync(uint8(msgType), subType, deadline)
	if e != nil {
		return 0, e
	}

	frame := ofp.EncodeEnvelope(ofp.Header{Version: version, Type: msgType, Xid: xid}, body)
	if e2 := h.ch.SendMessage(frame, rofchan.MainAuxID); e2 != nil {
		h.reqXids.Release(uint8(msgType), xid)
		return 0, e2
	}

	h.armExpiryScan()
	return xid, nil
}

func (h *Handle) cancelStepTimer() {
	h.mu.Lock()
	tok := h.stepTok
	h.stepTok = 0
	h.mu.Unlock()
	if tok != 0 {
		h.react.Cancel(tok)
	}
}

func (h *Handle) cancelExpiryTimer() {
	h.mu.Lock()
	tok := h.expiryTok
	h.expiryTok = 0
	h.mu.Unlock()
	if tok != 0 {
		h.react.Cancel(tok)
	}
}

func (h *Handle) armExpiryScan() {
	h.mu.Lock()
	already := h.expiryTok != 0
	h.mu.Unlock()
	if already {
		return
	}

	tok, _ := h.react.ArmTimer(h.cfg.ExpiryScanInterval, reactor.TimerUnknown, h.onExpiryScan)
	h.mu.Lock()
	h.expiryTok = tok
	h.mu.Unlock()
}

func (h *Handle) onExpiryScan(reactor.Token, reactor.TimerKind) {
	h.mu.Lock()
	h.expiryTok = 0
	h.mu.Unlock()

	expired := h.reqXids.ScanExpired(h.react.Now())
	for _, e := range expired {
		if h.obs != nil {
			h.obs.OnRequestTimeout(h, e.MsgType, e.Xid)
		}
	}

	if h.reqXids.Len() > 0 {
		h.armExpiryScan()
	}
}

// --- rofchan.Observer (via ChanObserverProxy) ---

// OnChannelEstablished begins the init sequence (§4.4), reading the dpid
// and FEATURES_REPLY fields RofConn already captured during the HELLO
// round instead of re-issuing FEATURES_REQUEST itself.
func (h *Handle) OnChannelEstablished(ch *rofchan.Chan) {
	mainConn, ok := ch.Conn(rofchan.MainAuxID)
	if !ok {
		return
	}
	fr := mainConn.Features()
	version := mainConn.NegotiatedVersion()

	h.mu.Lock()
	h.dpid = fr.DatapathID
	h.version = version
	h.nBuffers = fr.NBuffers
	h.nTables = fr.NTables
	h.capabilities = fr.Capabilities
	h.mu.Unlock()

	if h.reg != nil {
		tag := h.reg.Register(fr.DatapathID, h)
		h.log.Info("dphandle registered datapath", "dpid", fr.DatapathID, "session_tag", tag.String())
	}

	if version == ofp.Version10 {
		h.ports.populate(fr.Ports)
		h.beginGetConfig()
		return
	}

	h.beginPortDesc()
}

// OnChannelDisconnected tears the handle's timers down and, if the
// application was ever notified of dpath_open, notifies dpath_close
// exactly once (§4.4, §5 cancellation rules).
func (h *Handle) OnChannelDisconnected(ch *rofchan.Chan, err error) {
	h.cancelStepTimer()
	h.cancelExpiryTimer()

	h.mu.Lock()
	wasOpen := h.openEmitted
	h.openEmitted = false
	h.state = StateClosed
	h.mu.Unlock()

	if wasOpen && h.obs != nil {
		h.obs.OnDpathClose(h, err)
	}
}

// OnMessage dispatches an inbound application message: init-sequence
// replies drive the handshake forward; everything else, once Running, is
// either an application observer callback or a reply to a SendRequest
// correlation entry.
func (h *Handle) OnMessage(ch *rofchan.Chan, auxID uint8, env ofp.Envelope) {
	h.mu.Lock()
	st := h.state
	h.mu.Unlock()

	switch st {
	case StateAwaitPortDesc:
		h.handlePortDescReply(env)
		return
	case StateAwaitGetConfig:
		h.handleGetConfigReply(env)
		return
	case StateAwaitTableStats:
		h.handleTableStatsReply(env)
		return
	}

	h.dispatchRunning(env)
}

func (h *Handle) beginPortDesc() {
	h.mu.Lock()
	h.state = StateAwaitPortDesc
	version := h.version
	h.mu.Unlock()

	body := ofp.EncodeMultipart(ofp.Multipart{Type: ofp.MultipartPortDesc})
	xid, e := h.sendStep(version, ofp.TypeMultipartRequest, body, reactor.TimerStats)
	if e != nil {
		h.failInit(e)
		return
	}
	h.mu.Lock()
	h.stepXid = xid
	h.mu.Unlock()
}

func (h *Handle) handlePortDescReply(env ofp.Envelope) {
	if !h.matchesStep(env) {
		return
	}
	if env.Header.Type != ofp.TypeMultipartReply {
		h.failInit(ErrorUnexpectedReply.Error())
		return
	}

	mp, e := ofp.DecodeMultipart(env.Body)
	if e != nil {
		h.failInit(e)
		return
	}
	ports, e := ofp.DecodePortDescArray(mp.Body)
	if e != nil {
		h.failInit(e)
		return
	}

	h.ports.populate(ports)
	h.cancelStepTimer()
	h.beginGetConfig()
}

func (h *Handle) beginGetConfig() {
	h.mu.Lock()
	h.state = StateAwaitGetConfig
	version := h.version
	h.mu.Unlock()

	xid, e := h.sendStep(version, ofp.TypeGetConfigRequest, nil, reactor.TimerGetConfig)
	if e != nil {
		h.failInit(e)
		return
	}
	h.mu.Lock()
	h.stepXid = xid
	h.mu.Unlock()
}

func (h *Handle) handleGetConfigReply(env ofp.Envelope) {
	if !h.matchesStep(env) {
		return
	}
	if env.Header.Type != ofp.TypeGetConfigReply {
		h.failInit(ErrorUnexpectedReply.Error())
		return
	}

	sc, e := ofp.DecodeSwitchConfig(env.Body)
	if e != nil {
		h.failInit(e)
		return
	}

	h.mu.Lock()
	h.switchConfig = sc
	h.mu.Unlock()

	h.cancelStepTimer()
	h.beginTableStats()
}

func (h *Handle) beginTableStats() {
	h.mu.Lock()
	h.state = StateAwaitTableStats
	version := h.version
	h.mu.Unlock()

	body := ofp.EncodeMultipart(ofp.Multipart{Type: ofp.MultipartTable})
	xid, e := h.sendStep(version, ofp.TypeMultipartRequest, body, reactor.TimerStats)
	if e != nil {
		h.failInit(e)
		return
	}
	h.mu.Lock()
	h.stepXid = xid
	h.mu.Unlock()
}

func (h *Handle) handleTableStatsReply(env ofp.Envelope) {
	if !h.matchesStep(env) {
		return
	}
	if env.Header.Type != ofp.TypeMultipartReply {
		h.failInit(ErrorUnexpectedReply.Error())
		return
	}

	mp, e := ofp.DecodeMultipart(env.Body)
	if e != nil {
		h.failInit(e)
		return
	}
	stats, e := ofp.DecodeTableStatsArray(mp.Body)
	if e != nil {
		h.failInit(e)
		return
	}

	h.mu.Lock()
	h.tableStats = stats
	h.mu.Unlock()

	h.cancelStepTimer()
	h.becomeRunning()
}

func (h *Handle) becomeRunning() {
	h.mu.Lock()
	h.state = StateRunning
	already := h.openEmitted
	h.openEmitted = true
	h.mu.Unlock()

	if !already && h.obs != nil {
		h.obs.OnDpathOpen(h)
	}
}

// sendStep sends one init-sequence request and arms its reply-timer,
// returning the allocated xid.
func (h *Handle) sendStep(version ofp.Version, msgType ofp.Type, body []byte, kind reactor.TimerKind) (uint32, errors.Error) {
	mainConn, ok := h.ch.Conn(rofchan.MainAuxID)
	if !ok {
		return 0, ErrorNotRunning.Error()
	}

	xid, e := mainConn.NextAsyncXid()
	if e != nil {
		return 0, e
	}

	frame := ofp.EncodeEnvelope(ofp.Header{Version: version, Type: msgType, Xid: xid}, body)
	if e2 := h.ch.SendMessage(frame, rofchan.MainAuxID); e2 != nil {
		return 0, e2
	}

	tok, _ := h.react.ArmTimer(h.cfg.StepTimeout, kind, h.onStepTimeout)
	h.mu.Lock()
	h.stepTok = tok
	h.mu.Unlock()

	return xid, nil
}

func (h *Handle) matchesStep(env ofp.Envelope) bool {
	h.mu.Lock()
	xid := h.stepXid
	h.mu.Unlock()
	return env.Header.Xid == xid
}

func (h *Handle) onStepTimeout(reactor.Token, reactor.TimerKind) {
	h.mu.Lock()
	st := h.state
	h.mu.Unlock()

	if st == StateRunning || st == StateClosed {
		return
	}

	h.log.Warning("dphandle init sequence timed out", "state", st.String())
	h.failInit(ErrorInitTimeout.Error())
}

// failInit terminates the session on an init-sequence error, per §4.4 "If
// any reply-timer fires, the session is terminated (delete self, parent
// notified)".
func (h *Handle) failInit(e errors.Error) {
	e = errors.WithSession(e, errors.SessionTag{Dpid: h.Dpid()})
	h.log.Error("dphandle init sequence failed", "error", e)
	_ = h.Close()
}

func (h *Handle) dispatchRunning(env ofp.Envelope) {
	switch env.Header.Type {
	case ofp.TypePacketIn:
		pi, e := ofp.DecodePacketIn(h.version, env.Body)
		if e != nil {
			h.log.Warning("dphandle malformed packet_in", "error", errors.WithSession(e, errors.SessionTag{Dpid: h.Dpid(), Xid: env.Header.Xid}))
			return
		}
		if h.obs != nil {
			h.obs.OnPacketIn(h, pi)
		}
	case ofp.TypeFlowRemoved:
		fr, e := ofp.DecodeFlowRemoved(h.version, env.Body)
		if e != nil {
			h.log.Warning("dphandle malformed flow_removed", "error", errors.WithSession(e, errors.SessionTag{Dpid: h.Dpid(), Xid: env.Header.Xid}))
			return
		}
		if h.obs != nil {
			h.obs.OnFlowRemoved(h, fr)
		}
	case ofp.TypePortStatus:
		ps, e := ofp.DecodePortStatus(env.Body)
		if e != nil {
			h.log.Warning("dphandle malformed port_status", "error", errors.WithSession(e, errors.SessionTag{Dpid: h.Dpid(), Xid: env.Header.Xid}))
			return
		}
		h.ports.apply(ps)
		if h.obs != nil {
			h.obs.OnPortStatus(h, ps)
		}
	case ofp.TypeMultipartReply:
		mp, e := ofp.DecodeMultipart(env.Body)
		if e != nil {
			h.log.Warning("dphandle malformed stats reply", "error", errors.WithSession(e, errors.SessionTag{Dpid: h.Dpid(), Xid: env.Header.Xid}))
			return
		}
		if entry, ok := h.reqXids.Lookup(uint8(ofp.TypeMultipartRequest), env.Header.Xid); ok {
			h.reqXids.Release(uint8(ofp.TypeMultipartRequest), entry.Xid)
		}
		if h.obs != nil {
			h.obs.OnStatsReply(h, env.Header.Xid, mp)
		}
	case ofp.TypeRoleReply:
		r, e := ofp.DecodeRole(env.Body)
		if e != nil {
			h.log.Warning("dphandle malformed role_reply", "error", errors.WithSession(e, errors.SessionTag{Dpid: h.Dpid(), Xid: env.Header.Xid}))
			return
		}
		if entry, ok := h.reqXids.Lookup(uint8(ofp.TypeRoleRequest), env.Header.Xid); ok {
			h.reqXids.Release(uint8(ofp.TypeRoleRequest), entry.Xid)
		}
		if h.obs != nil {
			h.obs.OnRoleReply(h, r)
		}
	case ofp.TypeExperimenter:
		exp, e := ofp.DecodeExperimenter(env.Body)
		if e != nil {
			h.log.Warning("dphandle malformed experimenter", "error", errors.WithSession(e, errors.SessionTag{Dpid: h.Dpid(), Xid: env.Header.Xid}))
			return
		}
		if h.obs != nil {
			h.obs.OnExperimenter(h, exp)
		}
	case ofp.TypeError:
		oe, e := ofp.DecodeError(env.Body)
		if e != nil {
			h.log.Warning("dphandle malformed error message", "error", errors.WithSession(e, errors.SessionTag{Dpid: h.Dpid(), Xid: env.Header.Xid}))
			return
		}
		if h.obs != nil {
			h.obs.OnError(h, oe)
		}
	default:
		h.log.Debug("dphandle dropping message with no Running-state handler", "type", env.Header.Type.String())
	}
}
