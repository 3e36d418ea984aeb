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

package rofchan

import (
	"context"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/nabbar/goflow/errors"
	"github.com/nabbar/goflow/logger"
	"github.com/nabbar/goflow/ofp"
	"github.com/nabbar/goflow/reactor"
	"github.com/nabbar/goflow/rofconn"
	"github.com/nabbar/goflow/rofsock"
)

// MainAuxID is the distinguished aux_id that identifies a channel's main
// connection (§4.3).
const MainAuxID uint8 = 0

// Observer receives channel-level events. Per-auxiliary connection events
// are deliberately not part of this interface — §4.3 only surfaces the
// main connection's up/down edges at channel level; everything else is a
// log line.
type Observer interface {
	OnChannelEstablished(ch *Chan)
	OnChannelDisconnected(ch *Chan, err error)
	OnMessage(ch *Chan, auxID uint8, env ofp.Envelope)
}

// Params configures one connection within a channel. LocalVersions and
// IsControllerMain are only consulted for the main (aux_id 0); an
// auxiliary always inherits the main's negotiated version as a
// single-element bitmap and never runs the FEATURES round.
type Params struct {
	Sock             rofsock.EndpointConfig
	LocalVersions    ofp.Bitmap
	IsControllerMain bool

	HelloTimeout    time.Duration
	FeaturesTimeout time.Duration
	EchoInterval    time.Duration
	EchoTimeout     time.Duration
}

type entry struct {
	auxID     uint8
	conn      *rofconn.Conn
	sock      *rofsock.RofSock
	role      rofsock.Role
	insertSeq int
}

// rofsockProxy breaks the circular construction rofsock.New(cfg, obs, ...)
// / rofconn.New(cfg, sock, ...) requires: the sock needs its observer
// before the Conn that will BE that observer can be built.
type rofsockProxy struct {
	target rofsock.Observer
}

func (p *rofsockProxy) OnConnected()       { p.target.OnConnected() }
func (p *rofsockProxy) OnFrame(f []byte)   { p.target.OnFrame(f) }
func (p *rofsockProxy) OnClosed(err error) { p.target.OnClosed(err) }

// connProxy adapts rofconn.Observer callbacks to channel-level handling,
// tagging each with the aux_id the connection was registered under.
type connProxy struct {
	ch    *Chan
	auxID uint8
}

func (p *connProxy) OnEstablished(c *rofconn.Conn) {
	p.ch.onConnEstablished(p.auxID)
}

func (p *connProxy) OnDisconnected(c *rofconn.Conn, err error) {
	p.ch.onConnDisconnected(p.auxID, err)
}

func (p *connProxy) OnMessage(c *rofconn.Conn, env ofp.Envelope) {
	if p.ch.obs != nil {
		p.ch.obs.OnMessage(p.ch, p.auxID, env)
	}
}

// Chan is the multi-connection channel of §4.3: an aux_id-keyed map of
// RofConns representing one logical OpenFlow session.
type Chan struct {
	react reactor.Reactor
	log   logger.Logger
	obs   Observer

	mu              sync.Mutex
	conns           map[uint8]*entry
	seq             int
	mainEstablished bool
}

// New returns an empty channel, ready for AddConn/AdoptConn.
func New(react reactor.Reactor, obs Observer, log logger.Logger) *Chan {
	if log == nil {
		log = logger.New()
	}
	return &Chan{
		react: react,
		log:   log,
		obs:   obs,
		conns: make(map[uint8]*entry),
	}
}

// IsEstablished reports whether the main connection exists and is
// Established, per §4.3's derived channel state.
func (ch *Chan) IsEstablished() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.mainEstablished
}

// Conn returns the RofConn registered under auxID, if any.
func (ch *Chan) Conn(auxID uint8) (*rofconn.Conn, bool) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	e, ok := ch.conns[auxID]
	if !ok {
		return nil, false
	}
	return e.conn, true
}

func (ch *Chan) buildConn(auxID uint8, p Params) (*rofconn.Conn, *rofsock.RofSock) {
	proxy := &rofsockProxy{}
	sock := rofsock.New(p.Sock, ch.react, proxy, ch.log)

	cc := rofconn.Config{
		LocalVersions:    p.LocalVersions,
		IsControllerMain: p.IsControllerMain,
		HelloTimeout:     p.HelloTimeout,
		FeaturesTimeout:  p.FeaturesTimeout,
		EchoInterval:     p.EchoInterval,
		EchoTimeout:      p.EchoTimeout,
	}

	conn := rofconn.New(cc, sock, ch.react, &connProxy{ch: ch, auxID: auxID}, ch.log)
	proxy.target = conn
	return conn, sock
}

// checkAuxPreconditions enforces §4.3's invariants for inserting a new
// connection: aux_id 0 must not already exist (use DropConn first to
// replace a main), a non-zero aux_id requires an Established main whose
// negotiated version is at least OF_1_3, and the aux_id must be unused.
func (ch *Chan) checkAuxPreconditions(auxID uint8) (mainVersion ofp.Version, e errors.Error) {
	if _, exists := ch.conns[auxID]; exists {
		return ofp.VersionUnknown, ErrorChanAlreadyExists.Error()
	}

	if auxID == MainAuxID {
		return ofp.VersionUnknown, nil
	}

	main, ok := ch.conns[MainAuxID]
	if !ok || main.conn.State() != rofconn.StateEstablished {
		return ofp.VersionUnknown, ErrorChanInvalid.Error()
	}

	v := main.conn.NegotiatedVersion()
	if v < ofp.Version13 {
		return ofp.VersionUnknown, ErrorChanInvalid.Error()
	}

	return v, nil
}

// AddConn creates and connects a new RofConn under auxID (§4.3 add_conn).
func (ch *Chan) AddConn(ctx context.Context, auxID uint8, p Params) (*rofconn.Conn, errors.Error) {
	ch.mu.Lock()
	mainVersion, e := ch.checkAuxPreconditions(auxID)
	if e != nil {
		ch.mu.Unlock()
		return nil, e
	}

	if auxID != MainAuxID {
		p.LocalVersions = ofp.NewBitmap(mainVersion)
		p.IsControllerMain = false
	}

	conn, sock := ch.buildConn(auxID, p)
	ch.conns[auxID] = &entry{auxID: auxID, conn: conn, sock: sock, role: p.Sock.InitialRole, insertSeq: ch.seq}
	ch.seq++
	ch.mu.Unlock()

	if e := conn.Connect(ctx); e != nil {
		ch.mu.Lock()
		delete(ch.conns, auxID)
		ch.mu.Unlock()
		return nil, e
	}

	return conn, nil
}

// AdoptConn wires an already-accepted net.Conn in as auxID's connection
// (§4.3 add_conn(existing_conn, aux_id)). Preconditions are identical to
// AddConn.
func (ch *Chan) AdoptConn(auxID uint8, netConn net.Conn, p Params) (*rofconn.Conn, errors.Error) {
	p.Sock.InitialRole = rofsock.RolePassiveAccepted

	ch.mu.Lock()
	mainVersion, e := ch.checkAuxPreconditions(auxID)
	if e != nil {
		ch.mu.Unlock()
		return nil, e
	}

	if auxID != MainAuxID {
		p.LocalVersions = ofp.NewBitmap(mainVersion)
		p.IsControllerMain = false
	}

	conn, sock := ch.buildConn(auxID, p)
	ch.conns[auxID] = &entry{auxID: auxID, conn: conn, sock: sock, role: rofsock.RolePassiveAccepted, insertSeq: ch.seq}
	ch.seq++
	ch.mu.Unlock()

	if e := sock.Attach(netConn); e != nil {
		ch.mu.Lock()
		delete(ch.conns, auxID)
		ch.mu.Unlock()
		return nil, e
	}

	return conn, nil
}

// DropConn tears down the connection registered under auxID. Dropping the
// main while auxiliaries exist first drops all auxiliaries in reverse
// insertion order, per §4.3.
func (ch *Chan) DropConn(auxID uint8) errors.Error {
	ch.mu.Lock()
	e, ok := ch.conns[auxID]
	if !ok {
		ch.mu.Unlock()
		return ErrorChanNotFound.Error()
	}

	var toDrop []*entry
	if auxID == MainAuxID {
		for id, aux := range ch.conns {
			if id != MainAuxID {
				toDrop = append(toDrop, aux)
			}
		}
		sort.Slice(toDrop, func(i, j int) bool { return toDrop[i].insertSeq > toDrop[j].insertSeq })
	}
	ch.mu.Unlock()

	for _, aux := range toDrop {
		_ = aux.conn.Close()
		ch.mu.Lock()
		delete(ch.conns, aux.auxID)
		ch.mu.Unlock()
	}

	_ = e.conn.Close()
	ch.mu.Lock()
	delete(ch.conns, auxID)
	was := auxID == MainAuxID && ch.mainEstablished
	if auxID == MainAuxID {
		ch.mainEstablished = false
	}
	ch.mu.Unlock()

	if was && ch.obs != nil {
		ch.obs.OnChannelDisconnected(ch, nil)
	}

	return nil
}

// SendMessage routes frame to the connection registered under auxID
// (default MainAuxID for the main connection), per §4.3 send_message.
func (ch *Chan) SendMessage(frame []byte, auxID uint8) errors.Error {
	ch.mu.Lock()
	e, ok := ch.conns[auxID]
	ch.mu.Unlock()

	if !ok {
		return ErrorChanNotFound.Error()
	}
	return e.conn.Send(frame)
}

func (ch *Chan) onConnEstablished(auxID uint8) {
	if auxID != MainAuxID {
		ch.log.Debug("rofchan auxiliary connection established", "aux_id", auxID)
		return
	}

	ch.mu.Lock()
	was := ch.mainEstablished
	ch.mainEstablished = true
	ch.mu.Unlock()

	if !was && ch.obs != nil {
		ch.obs.OnChannelEstablished(ch)
	}
}

// onConnDisconnected applies §4.3's reconnect policy: an active main's
// auxiliaries are force-closed but kept in the map so their own rofsock
// reconnects them preserving aux ids; a passive main's death drops
// everything. An active auxiliary reconnects on its own (rofsock already
// does this); a passive auxiliary is simply dropped from the map.
func (ch *Chan) onConnDisconnected(auxID uint8, err error) {
	ch.mu.Lock()
	e, ok := ch.conns[auxID]
	if !ok {
		ch.mu.Unlock()
		return
	}

	if auxID != MainAuxID {
		role := e.role
		ch.mu.Unlock()

		if role == rofsock.RolePassiveAccepted {
			ch.mu.Lock()
			delete(ch.conns, auxID)
			ch.mu.Unlock()
		}
		ch.log.Debug("rofchan auxiliary connection disconnected", "aux_id", auxID)
		return
	}

	was := ch.mainEstablished
	ch.mainEstablished = false
	role := e.role

	var others []*entry
	for id, aux := range ch.conns {
		if id != MainAuxID {
			others = append(others, aux)
		}
	}
	ch.mu.Unlock()

	if was && ch.obs != nil {
		ch.obs.OnChannelDisconnected(ch, err)
	}

	if role == rofsock.RoleActive {
		// Force each auxiliary's transport down so its own active-role
		// rofsock reconnects it; the aux_id entry stays in the map.
		for _, aux := range others {
			_ = aux.sock.Reset()
		}
		return
	}

	for _, aux := range others {
		_ = aux.conn.Close()
	}
	ch.mu.Lock()
	for _, aux := range others {
		delete(ch.conns, aux.auxID)
	}
	delete(ch.conns, MainAuxID)
	ch.mu.Unlock()
}
