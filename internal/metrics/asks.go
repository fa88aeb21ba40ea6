package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AsksCreated tracks asks registered with the pending-reply table.
	AsksCreated = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "asks",
			Name:      "created_total",
			Help:      "Total number of asks registered",
		},
		[]string{"status"}, // registered, rejected
	)

	// AsksPending tracks asks currently awaiting a reply.
	AsksPending = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "asks",
			Name:      "pending",
			Help:      "Number of asks currently awaiting a reply",
		},
	)

	// AsksTimedOut tracks asks whose deadline elapsed with no reply.
	AsksTimedOut = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "asks",
			Name:      "timed_out_total",
			Help:      "Total number of asks that timed out",
		},
	)

	// AsksResolved tracks asks that received a matching reply.
	AsksResolved = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "asks",
			Name:      "resolved_total",
			Help:      "Total number of asks resolved by a reply",
		},
	)

	// AskWaitDuration tracks how long callers waited for a reply.
	AskWaitDuration = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "asks",
			Name:      "wait_duration_seconds",
			Help:      "Time spent waiting for an ask reply, in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to 16s
		},
	)
)
