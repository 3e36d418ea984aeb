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
	"crypto/tls"
	"net"
	"time"

	"github.com/nabbar/goflow/errors"
)

// Family is the address family an endpoint resolves over.
type Family uint8

const (
	FamilyINET Family = iota
	FamilyINET6
)

// Transport selects whether the endpoint speaks plain TCP or TLS-over-TCP.
type Transport uint8

const (
	TransportTCP Transport = iota
	TransportTLS
)

// Role describes how a connection came to exist: dialed out by us, or
// handed to us by a listener's Accept.
type Role uint8

const (
	RoleActive Role = iota
	RolePassiveAccepted
)

// Default controller ports: 6633 is the legacy OpenFlow port, 6653 the
// IANA-assigned one.
const (
	DefaultPortLegacy = 6633
	DefaultPortIANA   = 6653
)

// Backoff bounds for active-socket reconnection (§4.1).
const (
	DefaultReconnectMin = 1 * time.Second
	DefaultReconnectMax = 16 * time.Second
)

// DefaultHighWatermark bounds the outbound write FIFO before send_message
// starts failing with Backpressure.
const DefaultHighWatermark = 256

// DefaultMaxFrameLen mirrors ofp.MaxFrameLen so rofsock can reject an
// oversize declared length before ofp ever sees the bytes.
const DefaultMaxFrameLen = 64 * 1024

// EndpointConfig is per-connection configuration (§6 "Endpoint
// configuration"): family, transport, addresses, optional TLS, and how the
// connection came to exist.
type EndpointConfig struct {
	Family        Family
	Transport     Transport
	RemoteAddr    string
	LocalAddrHint string
	TLSConfig     *tls.Config
	InitialRole   Role

	HighWatermark int
	MaxFrameLen   int
	ReconnectMin  time.Duration
	ReconnectMax  time.Duration
}

// Validate checks the configuration is internally consistent, the way the
// teacher's socket/config package validates a Client/Server pair: address
// resolvable for the declared transport, TLS only paired with TransportTLS.
func (c *EndpointConfig) Validate() errors.Error {
	if c.RemoteAddr == "" && c.InitialRole == RoleActive {
		return ErrorInvalidConfig.Error()
	}

	if c.Transport == TransportTLS && c.TLSConfig == nil {
		return ErrorInvalidConfig.Error()
	}

	if c.Transport != TransportTLS && c.TLSConfig != nil {
		return ErrorInvalidConfig.Error()
	}

	if c.InitialRole == RoleActive {
		network := "tcp"
		if c.Family == FamilyINET {
			network = "tcp4"
		} else {
			network = "tcp6"
		}

		if _, err := net.ResolveTCPAddr(network, c.RemoteAddr); err != nil {
			if _, err2 := net.ResolveTCPAddr("tcp", c.RemoteAddr); err2 != nil {
				return ErrorInvalidConfig.Error(err)
			}
		}
	}

	return nil
}

// withDefaults returns a copy of c with zero-valued tunables replaced by
// package defaults.
func (c EndpointConfig) withDefaults() EndpointConfig {
	if c.HighWatermark <= 0 {
		c.HighWatermark = DefaultHighWatermark
	}
	if c.MaxFrameLen <= 0 {
		c.MaxFrameLen = DefaultMaxFrameLen
	}
	if c.ReconnectMin <= 0 {
		c.ReconnectMin = DefaultReconnectMin
	}
	if c.ReconnectMax <= 0 {
		c.ReconnectMax = DefaultReconnectMax
	}
	return c
}
