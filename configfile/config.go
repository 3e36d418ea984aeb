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

package configfile

import (
	"crypto/tls"
	"crypto/x509"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/nabbar/goflow/duration"
	"github.com/nabbar/goflow/errors"
	"github.com/nabbar/goflow/rofsock"
)

// TLSSpec is the viper-decodable form of a TLS endpoint's material: file
// paths rather than a live *tls.Config, which viper has no decode hook
// for.
type TLSSpec struct {
	CertFile           string `mapstructure:"cert_file"`
	KeyFile            string `mapstructure:"key_file"`
	CAFile             string `mapstructure:"ca_file"`
	ServerName         string `mapstructure:"server_name"`
	InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify"`
}

// EndpointSpec is the viper-decodable form of rofsock.EndpointConfig: one
// entry per managed datapath (controller side) or per controller
// (datapath side).
type EndpointSpec struct {
	Family        string `mapstructure:"family"`
	Transport     string `mapstructure:"transport"`
	RemoteAddr    string `mapstructure:"remote_addr"`
	LocalAddrHint string `mapstructure:"local_addr_hint"`
	InitialRole   string `mapstructure:"initial_role"`
	HighWatermark int    `mapstructure:"high_watermark"`
	MaxFrameLen   int    `mapstructure:"max_frame_len"`
	// ReconnectMin/ReconnectMax are plain strings, parsed through
	// duration.Parse rather than mapstructure's time.Duration hook, so
	// a quoted scalar round-trips the way the rest of the teacher's
	// config surface handles duration fields.
	ReconnectMin string   `mapstructure:"reconnect_min"`
	ReconnectMax string   `mapstructure:"reconnect_max"`
	TLS          *TLSSpec `mapstructure:"tls"`
}

// Load reads path (any format viper auto-detects from its extension —
// YAML, JSON, TOML) and unmarshals the list of endpoints found under key
// into ready-to-use rofsock.EndpointConfig values.
func Load(path, key string) ([]rofsock.EndpointConfig, errors.Error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, ErrorConfigRead.Error(err)
	}

	return LoadFrom(v, key)
}

// LoadFrom unmarshals the endpoint list under key from an
// already-initialized *viper.Viper, the way the teacher's
// configModel._ComponentGetConfig unmarshals a typed leaf config out of
// the process-wide viper instance by key rather than owning its own file
// handle.
func LoadFrom(v *viper.Viper, key string) ([]rofsock.EndpointConfig, errors.Error) {
	var specs []EndpointSpec

	if err := v.UnmarshalKey(key, &specs); err != nil {
		return nil, ErrorConfigUnmarshal.Error(err)
	}

	out := make([]rofsock.EndpointConfig, 0, len(specs))
	for _, s := range specs {
		cfg, e := s.toEndpointConfig()
		if e != nil {
			return nil, e
		}
		out = append(out, cfg)
	}

	return out, nil
}

func (s EndpointSpec) toEndpointConfig() (rofsock.EndpointConfig, errors.Error) {
	family, e := parseFamily(s.Family)
	if e != nil {
		return rofsock.EndpointConfig{}, e
	}

	transport, e := parseTransport(s.Transport)
	if e != nil {
		return rofsock.EndpointConfig{}, e
	}

	role, e := parseRole(s.InitialRole)
	if e != nil {
		return rofsock.EndpointConfig{}, e
	}

	reconnectMin, e := parseDuration(s.ReconnectMin)
	if e != nil {
		return rofsock.EndpointConfig{}, e
	}

	reconnectMax, e := parseDuration(s.ReconnectMax)
	if e != nil {
		return rofsock.EndpointConfig{}, e
	}

	cfg := rofsock.EndpointConfig{
		Family:        family,
		Transport:     transport,
		RemoteAddr:    s.RemoteAddr,
		LocalAddrHint: s.LocalAddrHint,
		InitialRole:   role,
		HighWatermark: s.HighWatermark,
		MaxFrameLen:   s.MaxFrameLen,
		ReconnectMin:  reconnectMin,
		ReconnectMax:  reconnectMax,
	}

	if s.TLS != nil {
		tlsCfg, e := s.TLS.toTLSConfig()
		if e != nil {
			return rofsock.EndpointConfig{}, e
		}
		cfg.TLSConfig = tlsCfg
	}

	return cfg, nil
}

// parseDuration accepts an empty string as "use rofsock's own zero-value
// default" and otherwise parses through duration.Parse, which in turn
// falls back to time.ParseDuration for anything without day notation.
func parseDuration(v string) (time.Duration, errors.Error) {
	if v == "" {
		return 0, nil
	}
	d, err := duration.Parse(v)
	if err != nil {
		return 0, ErrorInvalidDuration.Error(err)
	}
	return time.Duration(d), nil
}

func parseFamily(v string) (rofsock.Family, errors.Error) {
	switch strings.ToLower(v) {
	case "", "inet", "ip4":
		return rofsock.FamilyINET, nil
	case "inet6", "ip6":
		return rofsock.FamilyINET6, nil
	default:
		return 0, ErrorInvalidFamily.Error()
	}
}

func parseTransport(v string) (rofsock.Transport, errors.Error) {
	switch strings.ToLower(v) {
	case "", "tcp":
		return rofsock.TransportTCP, nil
	case "tls":
		return rofsock.TransportTLS, nil
	default:
		return 0, ErrorInvalidTransport.Error()
	}
}

func parseRole(v string) (rofsock.Role, errors.Error) {
	switch strings.ToLower(v) {
	case "", "active":
		return rofsock.RoleActive, nil
	case "passive":
		return rofsock.RolePassiveAccepted, nil
	default:
		return 0, ErrorInvalidRole.Error()
	}
}

func (s TLSSpec) toTLSConfig() (*tls.Config, errors.Error) {
	cfg := &tls.Config{
		ServerName:         s.ServerName,
		InsecureSkipVerify: s.InsecureSkipVerify,
	}

	if s.CertFile != "" && s.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(s.CertFile, s.KeyFile)
		if err != nil {
			return nil, ErrorTLSLoad.Error(err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}

	if s.CAFile != "" {
		pem, err := os.ReadFile(s.CAFile)
		if err != nil {
			return nil, ErrorTLSLoad.Error(err)
		}

		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, ErrorTLSLoad.Error()
		}
		cfg.RootCAs = pool
	}

	return cfg, nil
}
