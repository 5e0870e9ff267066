// Package metrics exposes the engine's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReservationsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_reservations_created_total",
		Help: "Reservations that reached the active state.",
	})

	ReservationsReleased = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_reservations_released_total",
		Help: "Reservations released voluntarily (cart removal or replacement).",
	})

	ReservationsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_reservations_expired_total",
		Help: "Reservations reclaimed after their hold lapsed.",
	})

	ReservationsCommitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_reservations_committed_total",
		Help: "Reservations converted into final sales.",
	})

	CommitsTruncated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_commits_truncated_total",
		Help: "Commits that fulfilled fewer units than the shopper held.",
	})

	InsufficientStock = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_insufficient_stock_total",
		Help: "Reserve attempts rejected because available stock was short.",
	})

	InvariantViolations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_invariant_violations_total",
		Help: "Counter mutations refused because they would go negative. Always zero in correct operation.",
	})

	UnitsReclaimed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_units_reclaimed_total",
		Help: "Stock units returned to available by the expiry sweeper.",
	})

	SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "inventory_sweep_duration_seconds",
		Help:    "Duration of one full sweeper pass.",
		Buckets: prometheus.DefBuckets,
	})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "inventory_http_request_duration_seconds",
		Help:    "HTTP request latency by route and status class.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "status"})
)
