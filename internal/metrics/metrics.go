package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Total HTTP requests partitioned by method, route, and status code
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	HTTPInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Number of HTTP requests currently being served",
		},
	)

	// Dispatch attempts partitioned by channel and result (sent, failed)
	DispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_dispatch_total",
			Help: "Dispatch attempts by channel and result",
		},
		[]string{"channel", "result"},
	)

	DispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scheduler_dispatch_duration_seconds",
			Help:    "Time spent in a single channel adapter call",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"channel"},
	)

	SweepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_sweeps_total",
			Help: "Completed sweeps by trigger",
		},
		[]string{"trigger"},
	)

	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scheduler_sweep_duration_seconds",
			Help:    "Sweep latencies in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Entries whose terminal write found them no longer AGENDADO
	SweepConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scheduler_sweep_conflicts_total",
			Help: "Dispatched entries that were canceled or updated before their result was stored",
		},
	)

	OnceTriggers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_once_triggers_total",
			Help: "One-off sweep triggers by outcome (scheduled, fired, expired)",
		},
		[]string{"outcome"},
	)
)
