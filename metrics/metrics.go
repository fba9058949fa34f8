// Package metrics declares the service's prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result labels for MergesTotal.
const (
	ResultChanged   = "changed"
	ResultUnchanged = "unchanged"
	ResultDuplicate = "duplicate"
	ResultRejected  = "rejected"
	ResultFailed    = "failed"
)

var (
	MergesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "badge_merges_total",
			Help: "Progress updates applied, by badge kind and result",
		},
		[]string{"kind", "result"},
	)

	MergeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "badge_merge_duration_seconds",
			Help:    "Duration of one read-merge-write cycle",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	TiersAchieved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "badge_tiers_achieved_total",
			Help: "Tiers of leveled badges newly achieved",
		},
		[]string{"badge_id"},
	)

	BadgesCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "badge_completions_total",
			Help: "Badges whose completion instant was first set",
		},
		[]string{"badge_id"},
	)

	StoreConflictRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "badge_store_conflict_retries_total",
			Help: "Read-merge-write cycles restarted after losing an insert race",
		},
	)

	BackfillRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "badge_backfill_records_total",
			Help: "Backfill records processed, by outcome",
		},
		[]string{"outcome"}, // "applied", "skipped", "failed"
	)

	BackfillObjects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "badge_backfill_objects_total",
			Help: "Backfill objects imported from the bucket, by status",
		},
		[]string{"status"},
	)

	PollEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "badge_poll_events_total",
			Help: "Events received from the upstream feed, by outcome",
		},
		[]string{"outcome"},
	)

	PollFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "badge_poll_failures_total",
			Help: "Failed polls of the upstream event feed",
		},
	)

	BreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "badge_poll_breaker_state",
			Help: "Event feed circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
	)
)

// ObserveMerge records one merge attempt.
func ObserveMerge(kind, result string, started time.Time) {
	MergesTotal.WithLabelValues(kind, result).Inc()
	MergeDuration.WithLabelValues(kind).Observe(time.Since(started).Seconds())
}
