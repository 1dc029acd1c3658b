// Copyright (C) 2026 V2X Hub contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package metrics is the observability layer: counters and
// histograms for publish/decode/dispatch activity.
// It is deliberately internal — nothing in the public
// packages (pkg/channel, pkg/plugin, pkg/broker/...) needs to know
// these are Prometheus collectors rather than no-ops.
//
// Package-level prometheus.New*Vec collectors, registered via
// MustRegister in init().
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "tmxcore"

var (
	PublishTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_total",
			Help:      "Envelopes published by a channel, labeled by topic and outcome.",
		},
		[]string{"topic", "outcome"},
	)

	DecodeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_total",
			Help:      "Payload decode attempts, labeled by codec and outcome.",
		},
		[]string{"codec", "outcome"},
	)

	EncodeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "encode_total",
			Help:      "Payload encode attempts, labeled by codec and outcome.",
		},
		[]string{"codec", "outcome"},
	)

	DispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_total",
			Help:      "Handler dispatches, labeled by topic and outcome.",
		},
		[]string{"topic", "outcome"},
	)

	DispatchLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_latency_seconds",
			Help:      "Time spent running a single handler invocation.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"topic"},
	)

	BrokerConnectionState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "broker_connection_state",
			Help:      "Current broker.Context lifecycle state (0=uninitialized..4=registered), labeled by scheme and context id.",
		},
		[]string{"scheme", "context_id"},
	)
)

func init() {
	prometheus.MustRegister(
		PublishTotal,
		DecodeTotal,
		EncodeTotal,
		DispatchTotal,
		DispatchLatencySeconds,
		BrokerConnectionState,
	)
}

// Outcome labels shared by every counter above.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)
