// Package metrics holds the Prometheus collectors shared across the application.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Todo list metrics.
var (
	Mutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mytodos_mutations_total",
			Help: "Total number of todo list mutations by operation",
		},
		[]string{"op"},
	)

	CommitFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mytodos_commit_failures_total",
			Help: "Total number of commits whose storage write failed",
		},
	)

	Items = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mytodos_items",
			Help: "Number of todo items currently held",
		},
	)

	CorruptLoads = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mytodos_corrupt_loads_total",
			Help: "Total number of loads that found unreadable persisted state",
		},
	)

	WebSocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mytodos_websocket_clients",
			Help: "Number of connected websocket clients",
		},
	)
)

// HTTP metrics.
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)
