package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	toggleChangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pkm",
		Name:      "phase_toggle_requests_total",
		Help:      "Phase toggle requests by toggle, requested value and outcome (changed, noop, error).",
	}, []string{"toggle", "value", "outcome"})

	cascadeProposalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pkm",
		Name:      "cascade_proposals_total",
		Help:      "Proposals whose status was changed by a phase cascade.",
	}, []string{"rule"})

	cascadeFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pkm",
		Name:      "cascade_failures_total",
		Help:      "Proposals skipped or aborted during a phase cascade.",
	}, []string{"rule"})

	cascadeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pkm",
		Name:      "cascade_duration_seconds",
		Help:      "Wall time of one cascade rule.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"rule"})

	assessmentSavesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pkm",
		Name:      "assessment_saves_total",
		Help:      "Assessment save attempts by kind and outcome.",
	}, []string{"kind", "outcome"})

	currentPhaseGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "pkm",
		Name:      "current_phase",
		Help:      "1 for the active phase, 0 otherwise.",
	}, []string{"phase"})
)
