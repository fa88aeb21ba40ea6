package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BootstrapJoinsInitiated tracks join attempts started, by role.
	BootstrapJoinsInitiated = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bootstrap",
			Name:      "joins_initiated_total",
			Help:      "Total number of join attempts initiated",
		},
		[]string{"role"}, // responder
	)

	// BootstrapJoinsCompleted tracks completed joins by outcome.
	BootstrapJoinsCompleted = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bootstrap",
			Name:      "joins_completed_total",
			Help:      "Total number of join attempts completed",
		},
		[]string{"status"}, // ok
	)

	// BootstrapJoinsFailed tracks join failures by reason.
	BootstrapJoinsFailed = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bootstrap",
			Name:      "joins_failed_total",
			Help:      "Total number of failed join attempts by reason",
		},
		// no_root_key, malformed, invalid_signature, mesh_mismatch,
		// node_pubkey_mismatch, expired, manifest_unverifiable,
		// manifest_behind, jti_consumed, no_manifest
		[]string{"reason"},
	)

	// BootstrapJoinDuration tracks join stage durations.
	BootstrapJoinDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "bootstrap",
			Name:      "join_duration_seconds",
			Help:      "Join stage duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to 4s
		},
		[]string{"stage"}, // join
	)
)
