// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package telemetry wires grandpa's round-chaining coordinator up to
// prometheus metrics. It never decides policy — the coordinator calls
// these methods as a side effect of its own decisions, exactly where
// the teacher's engine packages call into metric.Metrics.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the prometheus collectors New registers. The
// coordinator updates PrevotesTotal, PrecommitsTotal and
// FinalizedHeight; nothing in this module updates the others.
type Metrics struct {
	RoundNumber      prometheus.Gauge
	PrevotesTotal    prometheus.Counter
	PrecommitsTotal  prometheus.Counter
	Equivocations    prometheus.Counter
	FinalizedHeight  prometheus.Gauge
	CatchUpRequests  prometheus.Counter
	RoundDuration    prometheus.Histogram
}

// New registers and returns a Metrics bound to registerer. Callers
// typically pass a prometheus.Registry scoped to their node.
func New(registerer prometheus.Registerer, namespace string) (*Metrics, error) {
	m := &Metrics{
		RoundNumber: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "grandpa_round_number",
			Help: "Current voting round number.",
		}),
		PrevotesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "grandpa_prevotes_total",
			Help: "Total prevotes accepted across all rounds.",
		}),
		PrecommitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "grandpa_precommits_total",
			Help: "Total precommits accepted across all rounds.",
		}),
		Equivocations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "grandpa_equivocations_total",
			Help: "Total equivocations detected.",
		}),
		FinalizedHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "grandpa_finalized_height",
			Help: "Height of the most recently finalized block.",
		}),
		CatchUpRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "grandpa_catch_up_requests_total",
			Help: "Total catch-up requests sent.",
		}),
		RoundDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "grandpa_round_duration_seconds",
			Help:    "Wall-clock time from round start to completability.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	for _, c := range []prometheus.Collector{
		m.RoundNumber, m.PrevotesTotal, m.PrecommitsTotal, m.Equivocations,
		m.FinalizedHeight, m.CatchUpRequests, m.RoundDuration,
	} {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// NewNoOp returns a Metrics whose collectors are registered only with
// a fresh private registry that nothing exposes, for use in tests that
// don't care about metrics output.
func NewNoOp() *Metrics {
	m, err := New(prometheus.NewRegistry(), "grandpa_test")
	if err != nil {
		panic(err)
	}
	return m
}
