// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the bridge's Prometheus collectors.
type Metrics struct {
	Requests     *prometheus.CounterVec
	StreamDeltas prometheus.Counter
	Duration     *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "llmtrans_requests_total",
			Help: "Translation requests handled by the bridge.",
		}, []string{"mode", "stream", "outcome"}),
		StreamDeltas: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "llmtrans_stream_deltas_total",
			Help: "Deltas relayed to streaming clients.",
		}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "llmtrans_request_duration_seconds",
			Help:    "Time from request to final delta or buffered answer.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"mode", "stream"}),
	}
	reg.MustRegister(m.Requests, m.StreamDeltas, m.Duration)
	return m
}
