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

package rofconn

import (
	"context"
	"sync"
	"time"

	"github.com/nabbar/goflow/errors"
	"github.com/nabbar/goflow/logger"
	"github.com/nabbar/goflow/ofp"
	"github.com/nabbar/goflow/reactor"
	"github.com/nabbar/goflow/rofsock"
	"github.com/nabbar/goflow/xidstore"
)

// Default handshake/liveness timer durations (§4.2/§4.4).
const (
	DefaultHelloTimeout    = 5 * time.Second
	DefaultFeaturesTimeout = 5 * time.Second
	DefaultEchoInterval    = 10 * time.Second
	DefaultEchoTimeout     = 5 * time.Second
)

// Config selects how a Conn behaves: which versions it advertises, and
// whether it runs the controller-main FEATURES round after HELLO.
type Config struct {
	LocalVersions ofp.Bitmap
	// IsControllerMain is true only for the controller-side main
	// connection of a channel (§4.2): it alone enters WaitForFeatures.
	// Auxiliary connections and datapath-side connections go straight to
	// Established once HELLO negotiates a version.
	IsControllerMain bool

	HelloTimeout    time.Duration
	FeaturesTimeout time.Duration
	EchoInterval    time.Duration
	EchoTimeout     time.Duration
}

func (c Config) withDefaults() Config {
	if c.HelloTimeout <= 0 {
		c.HelloTimeout = DefaultHelloTimeout
	}
	if c.FeaturesTimeout <= 0 {
		c.FeaturesTimeout = DefaultFeaturesTimeout
	}
	if c.EchoInterval <= 0 {
		c.EchoInterval = DefaultEchoInterval
	}
	if c.EchoTimeout <= 0 {
		c.EchoTimeout = DefaultEchoTimeout
	}
	return c
}

// Observer receives the connection-level events the owning RofChan (or a
// test harness) reacts to.
type Observer interface {
	OnEstablished(c *Conn)
	OnDisconnected(c *Conn, err error)
	OnMessage(c *Conn, env ofp.Envelope)
}

// Conn drives one socket through the state machine of §4.2. It implements
// rofsock.Observer so it can be handed directly to rofsock.New.
type Conn struct {
	cfg   Config
	sock  *rofsock.RofSock
	react reactor.Reactor
	log   logger.Logger
	obs   Observer
	xids  xidstore.Store

	mu         sync.Mutex
	state      State
	negotiated ofp.Version
	features   ofp.FeaturesReply

	helloTok    reactor.Token
	featuresTok reactor.Token
	echoArmTok  reactor.Token
	echoWaitTok reactor.Token
}

// New returns a Conn bound to sock, not yet connecting. The Conn is the
// rofsock.Observer for sock, so callers construct sock with a small
// forwarding observer and point it at the Conn once New returns, e.g.:
//
//	proxy := &forwarder{} // implements rofsock.Observer by calling proxy.target
//	sock := rofsock.New(epCfg, react, proxy, log)
//	c := rofconn.New(cfg, sock, react, obs, log)
//	proxy.target = c
//
// which is why New takes the already-built *rofsock.RofSock rather than
// building it itself.
func New(cfg Config, sock *rofsock.RofSock, react reactor.Reactor, obs Observer, log logger.Logger) *Conn {
	if log == nil {
		log = logger.New()
	}

	return &Conn{
		cfg:   cfg.withDefaults(),
		sock:  sock,
		react: react,
		log:   log,
		obs:   obs,
		xids:  xidstore.New(),
		state: StateDisconnected,
	}
}

// State reports the connection's current lifecycle state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// NegotiatedVersion returns the version agreed during HELLO, or
// ofp.VersionUnknown before negotiation completes.
func (c *Conn) NegotiatedVersion() ofp.Version {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.negotiated
}

// Features returns the FEATURES_REPLY recorded for this connection (only
// populated for controller-main connections, once Established).
func (c *Conn) Features() ofp.FeaturesReply {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.features
}

// Connect starts the socket. For an actively-dialed endpoint this records
// ConnectPending and issues the connect(); OnConnected may fire
// synchronously, from within this call. A passively accepted socket is not
// started through Connect: rofsock.Attach already fires OnConnected, after
// which Connect returns ErrorInvalidState.
func (c *Conn) Connect(ctx context.Context) errors.Error {
	c.mu.Lock()
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return ErrorInvalidState.Error()
	}
	c.state = StateConnectPending
	c.mu.Unlock()

	return c.sock.Start(ctx)
}

// Send queues frame on the underlying socket.
func (c *Conn) Send(frame []byte) errors.Error {
	return c.sock.Send(frame)
}

// NextAsyncXid allocates a fresh, currently-unused xid with no reply
// expectation attached.
func (c *Conn) NextAsyncXid() (uint32, errors.Error) {
	return c.xids.NextAsyncXid()
}

// RegisterSyncXid allocates a xid and registers it in this connection's
// local XidStore so ScanExpired/Lookup can correlate the eventual reply or
// detect its absence by deadline.
func (c *Conn) RegisterSyncXid(msgType uint8, msgSubType uint16, deadline time.Time) (uint32, errors.Error) {
	return c.xids.RegisterSync(msgType, msgSubType, deadline)
}

// ReleaseXid removes a pending correlation entry, normally called once its
// reply has arrived.
func (c *Conn) ReleaseXid(msgType uint8, xid uint32) {
	c.xids.Release(msgType, xid)
}

// LookupXid reports whether msgType/xid is still outstanding.
func (c *Conn) LookupXid(msgType uint8, xid uint32) (xidstore.Entry, bool) {
	return c.xids.Lookup(msgType, xid)
}

// Close tears the connection down deliberately: the underlying socket is
// closed without triggering its own reconnect logic (rofsock.Close, unlike
// a transport error, sets closing so OnClosed won't reschedule).
func (c *Conn) Close() error {
	c.cancelTimer(&c.helloTok)
	c.cancelTimer(&c.featuresTok)
	c.cancelTimer(&c.echoArmTok)
	c.cancelTimer(&c.echoWaitTok)
	return c.sock.Close()
}

func (c *Conn) cancelTimer(tok *reactor.Token) {
	c.mu.Lock()
	t := *tok
	*tok = 0
	c.mu.Unlock()

	if t != 0 {
		c.react.Cancel(t)
	}
}

// --- rofsock.Observer ---

// OnConnected implements rofsock.Observer: the socket transport is up,
// send HELLO and arm the handshake timer (§4.2 ConnectPending -> WaitForHello).
func (c *Conn) OnConnected() {
	c.mu.Lock()
	c.state = StateWaitForHello
	local := c.cfg.LocalVersions
	c.mu.Unlock()

	xid, _ := c.xids.NextAsyncXid()
	frame := ofp.EncodeEnvelope(ofp.Header{
		Version: local.Max(),
		Type:    ofp.TypeHello,
		Xid:     xid,
	}, ofp.EncodeHello(ofp.Hello{Bitmap: local}))

	_ = c.sock.Send(frame)

	tok, _ := c.react.ArmTimer(c.cfg.HelloTimeout, reactor.TimerHello, c.onHelloTimeout)
	c.mu.Lock()
	c.helloTok = tok
	c.mu.Unlock()
}

// OnFrame implements rofsock.Observer: dispatch a complete frame according
// to the current state.
func (c *Conn) OnFrame(frame []byte) {
	h, e := ofp.DecodeHeader(frame)
	if e != nil {
		c.fatal(e)
		return
	}
	body := frame[ofp.HeaderLen:]

	c.mu.Lock()
	st := c.state
	c.mu.Unlock()

	switch st {
	case StateWaitForHello:
		c.handleHello(h, body, frame)
	case StateWaitForFeatures:
		c.handleFeaturesReply(h, body)
	case StateEstablished:
		c.handleEstablished(h, body)
	default:
		c.log.Debug("rofconn dropping frame outside a receiving state", "state", st.String(), "type", h.Type.String())
	}
}

// OnClosed implements rofsock.Observer: the transport ended. State returns
// to Disconnected; rofsock itself decides whether to reconnect.
func (c *Conn) OnClosed(err error) {
	c.cancelTimer(&c.helloTok)
	c.cancelTimer(&c.featuresTok)
	c.cancelTimer(&c.echoArmTok)
	c.cancelTimer(&c.echoWaitTok)

	c.mu.Lock()
	c.state = StateDisconnected
	c.negotiated = ofp.VersionUnknown
	c.mu.Unlock()

	if c.obs != nil {
		c.obs.OnDisconnected(c, err)
	}
}

// fatal tears the connection down after a Framing/Protocol error. It gives
// the drain goroutine a short grace window to actually put a just-enqueued
// error reply on the wire before the socket is closed out from under it.
func (c *Conn) fatal(e errors.Error) {
	c.log.Error("rofconn fatal error, closing", "error", e)
	_ = c.sock.FlushAndClose(200 * time.Millisecond)
}

func (c *Conn) handleHello(h ofp.Header, body, rawFrame []byte) {
	if h.Type != ofp.TypeHello {
		c.fatal(ErrorUnexpectedMessage.Error())
		return
	}

	hello, e := ofp.DecodeHello(body)
	if e != nil {
		c.fatal(e)
		return
	}

	peer := hello.Bitmap
	if peer == 0 {
		// Bare HELLO: fall back to the header version as a singleton
		// bitmap, per §3.
		peer = ofp.NewBitmap(h.Version)
	}

	c.mu.Lock()
	local := c.cfg.LocalVersions
	c.mu.Unlock()

	negotiated := ofp.Negotiate(local, peer)
	if negotiated == ofp.VersionUnknown || !negotiated.Supported() {
		errFrame := ofp.EncodeEnvelope(ofp.Header{Version: local.Max(), Type: ofp.TypeError},
			ofp.EncodeError(ofp.NewHelloFailed(ofp.HelloFailedIncompatible, rawFrame)))
		_ = c.sock.Send(errFrame)
		c.fatal(ErrorIncompatibleVersion.Error())
		return
	}

	c.cancelTimer(&c.helloTok)
	c.sock.NotifyEstablished()

	c.mu.Lock()
	c.negotiated = negotiated
	isMain := c.cfg.IsControllerMain
	c.mu.Unlock()

	if isMain {
		c.mu.Lock()
		c.state = StateWaitForFeatures
		c.mu.Unlock()

		xid, _ := c.xids.NextAsyncXid()
		frame := ofp.EncodeEnvelope(ofp.Header{Version: negotiated, Type: ofp.TypeFeaturesRequest, Xid: xid}, nil)
		_ = c.sock.Send(frame)

		tok, _ := c.react.ArmTimer(c.cfg.FeaturesTimeout, reactor.TimerFeatures, c.onFeaturesTimeout)
		c.mu.Lock()
		c.featuresTok = tok
		c.mu.Unlock()
		return
	}

	c.becomeEstablished()
}

func (c *Conn) handleFeaturesReply(h ofp.Header, body []byte) {
	if h.Type != ofp.TypeFeaturesReply {
		c.fatal(ErrorUnexpectedMessage.Error())
		return
	}

	c.mu.Lock()
	negotiated := c.negotiated
	c.mu.Unlock()

	fr, e := ofp.DecodeFeaturesReply(negotiated, body)
	if e != nil {
		c.fatal(e)
		return
	}

	c.cancelTimer(&c.featuresTok)

	c.mu.Lock()
	c.features = fr
	c.mu.Unlock()

	c.becomeEstablished()
}

func (c *Conn) becomeEstablished() {
	c.mu.Lock()
	c.state = StateEstablished
	c.mu.Unlock()

	if c.obs != nil {
		c.obs.OnEstablished(c)
	}

	c.armEchoInterval()
}

func (c *Conn) handleEstablished(h ofp.Header, body []byte) {
	switch h.Type {
	case ofp.TypeEchoRequest:
		echo := ofp.DecodeEcho(body)
		reply := ofp.EncodeEnvelope(ofp.Header{Version: h.Version, Type: ofp.TypeEchoReply, Xid: h.Xid}, ofp.EncodeEcho(echo))
		_ = c.sock.Send(reply)
		return
	case ofp.TypeEchoReply:
		c.cancelTimer(&c.echoWaitTok)
		c.armEchoInterval()
		return
	}

	if c.obs != nil {
		c.obs.OnMessage(c, ofp.Envelope{Header: h, Body: body})
	}
}

func (c *Conn) armEchoInterval() {
	tok, _ := c.react.ArmTimer(c.cfg.EchoInterval, reactor.TimerEchoInterval, c.onEchoIntervalFire)
	c.mu.Lock()
	c.echoArmTok = tok
	c.mu.Unlock()
}

func (c *Conn) onEchoIntervalFire(reactor.Token, reactor.TimerKind) {
	c.mu.Lock()
	if c.state != StateEstablished {
		c.mu.Unlock()
		return
	}
	negotiated := c.negotiated
	c.mu.Unlock()

	xid, _ := c.xids.NextAsyncXid()
	frame := ofp.EncodeEnvelope(ofp.Header{Version: negotiated, Type: ofp.TypeEchoRequest, Xid: xid}, nil)
	_ = c.sock.Send(frame)

	tok, _ := c.react.ArmTimer(c.cfg.EchoTimeout, reactor.TimerEchoTimeout, c.onEchoTimeout)
	c.mu.Lock()
	c.echoWaitTok = tok
	c.mu.Unlock()
}

func (c *Conn) onEchoTimeout(reactor.Token, reactor.TimerKind) {
	c.mu.Lock()
	stale := c.state == StateEstablished
	c.mu.Unlock()

	if !stale {
		return
	}

	c.log.Warning("rofconn echo timeout, treating connection as stale")
	_ = c.sock.Close()
}

func (c *Conn) onHelloTimeout(reactor.Token, reactor.TimerKind) {
	c.mu.Lock()
	expired := c.state == StateWaitForHello
	c.mu.Unlock()

	if !expired {
		return
	}
	c.fatal(ErrorInvalidState.Error())
}

func (c *Conn) onFeaturesTimeout(reactor.Token, reactor.TimerKind) {
	c.mu.Lock()
	expired := c.state == StateWaitForFeatures
	c.mu.Unlock()

	if !expired {
		return
	}
	c.fatal(ErrorInvalidState.Error())
}
