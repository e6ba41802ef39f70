// Package metrics exposes the Session Orchestrator's Prometheus
// instrumentation, grounded on the pack's gateway metrics (same
// promauto-registered-globals shape).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ivr_sessions_active",
		Help: "Currently active call sessions",
	})

	SessionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ivr_sessions_total",
		Help: "Total sessions created",
	})

	TurnDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ivr_turn_stage_duration_seconds",
		Help:    "Per-stage latency within a single turn",
		Buckets: []float64{0.05, 0.1, 0.2, 0.3, 0.5, 0.8, 1.0, 2.0, 5.0},
	}, []string{"stage"})

	TurnsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ivr_turns_total",
		Help: "Total completed dialog turns",
	})

	BargeIns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ivr_barge_ins_total",
		Help: "Total barge-in events detected",
	})

	Nudges = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ivr_nudges_total",
		Help: "Total silence nudge prompts spoken",
	})

	Escalations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ivr_escalations_total",
		Help: "Total conversations that escalated to a human",
	})

	ProviderErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ivr_provider_errors_total",
		Help: "Upstream provider error counts by kind",
	}, []string{"provider", "error_type"})

	ASRConfidence = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ivr_asr_confidence",
		Help:    "ASR confidence score per accepted transcript",
		Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
	})

	HousekeepingRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ivr_housekeeping_runs_total",
		Help: "Total background housekeeping sweeps",
	})
)
