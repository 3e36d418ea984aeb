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

// Package metrics exports the runtime's own health as Prometheus series:
// how many channels are up, how often request/reply correlation times out,
// and how often a connection applies write backpressure. It is ambient
// instrumentation, not a core invariant — nothing in rofchan, dphandle or
// ctlhandle imports it; the embedding application wires callbacks into it.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is a registered set of counters/gauges for one runtime instance.
// Each field is safe for concurrent use, per prometheus/client_golang's own
// contract.
type Metrics struct {
	reg *prometheus.Registry

	ChannelsUp      prometheus.Gauge
	ChannelEvents   *prometheus.CounterVec
	XidTimeouts     *prometheus.CounterVec
	Backpressure    *prometheus.CounterVec
	InitStepLatency *prometheus.HistogramVec
}

// New registers a fresh metric set against its own prometheus.Registry,
// namespaced under namespace (e.g. "goflow"), and isolated from the global
// default registry so multiple runtime instances in one process (as in a
// test binary) don't collide on metric names.
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		reg: reg,

		ChannelsUp: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "channels_up",
			Help:      "Number of rofchan.Chan instances currently Established.",
		}),
		ChannelEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channel_events_total",
			Help:      "Channel lifecycle transitions, labeled by event (established, disconnected).",
		}, []string{"event"}),
		XidTimeouts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "xid_timeouts_total",
			Help:      "Request/reply correlation entries that expired before a matching reply arrived, labeled by OpenFlow message type.",
		}, []string{"msg_type"}),
		Backpressure: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backpressure_events_total",
			Help:      "Writes that blocked or were dropped because a connection's send queue was full, labeled by connection role (main, auxiliary).",
		}, []string{"role"}),
		InitStepLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "init_step_latency_seconds",
			Help:      "Time from sending a datapath init-sequence request to its matching reply, labeled by step (features, get_config, table_stats).",
			Buckets:   prometheus.DefBuckets,
		}, []string{"step"}),
	}
}

// Handler returns the HTTP handler that exposes this instance's registry in
// the Prometheus text exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// ChannelEstablished records a channel reaching Established and adjusts the
// live gauge upward.
func (m *Metrics) ChannelEstablished() {
	m.ChannelsUp.Inc()
	m.ChannelEvents.WithLabelValues("established").Inc()
}

// ChannelDisconnected records a channel leaving Established and adjusts the
// live gauge downward.
func (m *Metrics) ChannelDisconnected() {
	m.ChannelsUp.Dec()
	m.ChannelEvents.WithLabelValues("disconnected").Inc()
}

// XidTimeout records a request/reply correlation entry expiring without a
// matching reply, for the given OpenFlow message type name (e.g.
// "features_request", "multipart_request").
func (m *Metrics) XidTimeout(msgType string) {
	m.XidTimeouts.WithLabelValues(msgType).Inc()
}

// BackpressureEvent records a blocked or dropped write on a connection of
// the given role ("main" or "auxiliary").
func (m *Metrics) BackpressureEvent(role string) {
	m.Backpressure.WithLabelValues(role).Inc()
}

// ObserveInitStep records the latency between a step's request and its
// matching reply, for the given step name ("features", "get_config",
// "table_stats").
func (m *Metrics) ObserveInitStep(step string, seconds float64) {
	m.InitStepLatency.WithLabelValues(step).Observe(seconds)
}
