// Package metrics registers the engine's Prometheus collectors: tool-loop
// iteration counts, order transitions, reservation contention, and archive
// throughput.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// EngineMetrics instruments the tool-dispatch loop.
type EngineMetrics struct {
	ToolCallsTotal     *prometheus.CounterVec
	ToolLoopIterations prometheus.Histogram
	ToolLoopCapHits    prometheus.Counter
	TurnDuration       prometheus.Histogram
}

// OrderMetrics instruments order lifecycle transitions and stock.
type OrderMetrics struct {
	Transitions       *prometheus.CounterVec
	StockDecrementFail prometheus.Counter
}

// ReservationMetrics instruments reservation creation and contention.
type ReservationMetrics struct {
	Created    prometheus.Counter
	SlotTaken  prometheus.Counter
}

// SchedulerMetrics instruments the two background workers.
type SchedulerMetrics struct {
	CompleterRuns    prometheus.Counter
	CompleterOrders  prometheus.Counter
	ArchiveRuns      prometheus.Counter
	ArchivedOrders   prometheus.Counter
	ArchiveFailures  prometheus.Counter
}

// HTTPMetrics instruments the admin/webhook HTTP surface.
type HTTPMetrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewEngineMetrics registers and returns the engine collector set.
func NewEngineMetrics() *EngineMetrics {
	return &EngineMetrics{
		ToolCallsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "convoyd_tool_calls_total",
				Help: "Total number of tool invocations by tool name and outcome.",
			},
			[]string{"tool", "outcome"},
		),
		ToolLoopIterations: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "convoyd_tool_loop_iterations",
				Help:    "Number of tool-call iterations per conversational turn.",
				Buckets: prometheus.LinearBuckets(1, 1, 8),
			},
		),
		ToolLoopCapHits: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "convoyd_tool_loop_cap_hits_total",
				Help: "Total number of turns that hit the tool-loop iteration cap.",
			},
		),
		TurnDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "convoyd_turn_duration_seconds",
				Help:    "Wall-clock duration of a full conversational turn.",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}

// NewOrderMetrics registers and returns the order collector set.
func NewOrderMetrics() *OrderMetrics {
	return &OrderMetrics{
		Transitions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "convoyd_order_transitions_total",
				Help: "Total number of order status transitions by target status.",
			},
			[]string{"status"},
		),
		StockDecrementFail: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "convoyd_order_insufficient_stock_total",
				Help: "Total number of order confirmations rejected for insufficient stock.",
			},
		),
	}
}

// NewReservationMetrics registers and returns the reservation collector set.
func NewReservationMetrics() *ReservationMetrics {
	return &ReservationMetrics{
		Created: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "convoyd_reservations_created_total",
				Help: "Total number of confirmed reservations created.",
			},
		),
		SlotTaken: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "convoyd_reservation_slot_taken_total",
				Help: "Total number of reservation creations rejected for slot contention.",
			},
		),
	}
}

// NewSchedulerMetrics registers and returns the scheduler collector set.
func NewSchedulerMetrics() *SchedulerMetrics {
	return &SchedulerMetrics{
		CompleterRuns: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "convoyd_scheduled_request_completer_runs_total",
				Help: "Total number of ScheduledRequestCompleter ticks.",
			},
		),
		CompleterOrders: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "convoyd_scheduled_request_completer_orders_total",
				Help: "Total number of orders auto-completed by ScheduledRequestCompleter.",
			},
		),
		ArchiveRuns: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "convoyd_archive_worker_runs_total",
				Help: "Total number of ArchiveWorker ticks.",
			},
		),
		ArchivedOrders: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "convoyd_archived_orders_total",
				Help: "Total number of orders moved to the cold store.",
			},
		),
		ArchiveFailures: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "convoyd_archive_failures_total",
				Help: "Total number of archive attempts that failed and will be retried.",
			},
		),
	}
}

// NewHTTPMetrics registers and returns the HTTP collector set.
func NewHTTPMetrics() *HTTPMetrics {
	return &HTTPMetrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "convoyd_http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "convoyd_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

// RecordHTTPRequest records one completed HTTP request.
func (m *HTTPMetrics) RecordHTTPRequest(method, route, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, route, status).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
