package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequests counts served requests by route, method and status code.
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPDuration tracks request latency per route.
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_request_duration_seconds",
			Help: "Duration of HTTP requests in seconds",
			Buckets: []float64{
				0.005, // 5ms
				0.01,  // 10ms
				0.025, // 25ms
				0.05,  // 50ms
				0.1,   // 100ms
				0.25,  // 250ms
				0.5,   // 500ms
				1.0,   // 1s
				2.5,   // 2.5s
				5.0,   // 5s
			},
		},
		[]string{"method", "route"},
	)

	// TransactionTransitions counts committed status changes.
	TransactionTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transaction_transitions_total",
			Help: "Committed transaction status transitions",
		},
		[]string{"from", "to"},
	)

	// TicketsSold counts tickets of transactions that reached DONE.
	TicketsSold = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tickets_sold_total",
		Help: "Tickets of completed transactions",
	})

	JobsScheduled = promauto.NewCounterVec(
		prometheus.CounterOpts{Name: "jobs_scheduled_total", Help: "Deferred jobs scheduled"},
		[]string{"kind"},
	)
	JobsFired = promauto.NewCounterVec(
		prometheus.CounterOpts{Name: "jobs_fired_total", Help: "Deferred jobs claimed and run"},
		[]string{"kind"},
	)
	JobsRemoved = promauto.NewCounterVec(
		prometheus.CounterOpts{Name: "jobs_removed_total", Help: "Deferred jobs removed before firing"},
		[]string{"kind"},
	)

	// SweepRows counts rows changed by the periodic sweep, by target.
	SweepRows = promauto.NewCounterVec(
		prometheus.CounterOpts{Name: "sweep_rows_total", Help: "Rows changed by the periodic sweep"},
		[]string{"target"},
	)

	// EmailsSent counts outgoing mail by result (sent, failed).
	EmailsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{Name: "emails_total", Help: "Transactional emails by result"},
		[]string{"template", "result"},
	)

	// CacheLookups counts response cache hits and misses by backend.
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{Name: "response_cache_lookups_total", Help: "Response cache lookups"},
		[]string{"backend", "result"},
	)
)

// RecordTransition records one committed status change.
func RecordTransition(from, to string) {
	TransactionTransitions.WithLabelValues(from, to).Inc()
}
