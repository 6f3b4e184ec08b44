// Package scheduler runs the background workers: ScheduledRequestCompleter
// (ticks every minute), ArchiveWorker (ticks daily), and the idle-session
// reaper. Both are idempotent, batch-bounded, and safe to run as singletons
// across multiple processes via a Redis advisory lock.
package scheduler

import (
	"context"
	"time"

	"github.com/ahmadsadek12/convoyd/internal/logging"
	"github.com/ahmadsadek12/convoyd/internal/metrics"
	"github.com/ahmadsadek12/convoyd/internal/orders"
)

// OrderStore is the subset of orders.Store the completer needs.
type OrderStore interface {
	ListDueScheduledRequests(ctx context.Context, now time.Time, limit int) ([]orders.Order, error)
	CompleteOrder(ctx context.Context, businessID, orderID, changedBy string) (*orders.Order, error)
}

// completerChangedBy is recorded on the status-history row the completer
// appends, distinguishing automatic transitions from customer- or
// employee-initiated ones.
const completerChangedBy = "scheduler:completer"

// ScheduledRequestCompleter auto-completes scheduled requests whose
// scheduled_for has passed. Completion never re-reads the catalog: order
// items are priced and named at confirmation time, so a deleted item does
// not block or alter the transition.
type ScheduledRequestCompleter struct {
	orders    OrderStore
	batchSize int
	metrics   *metrics.SchedulerMetrics
}

// NewScheduledRequestCompleter builds a completer over orderStore, batching
// at most batchSize rows per tick.
func NewScheduledRequestCompleter(orderStore OrderStore, batchSize int, m *metrics.SchedulerMetrics) *ScheduledRequestCompleter {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &ScheduledRequestCompleter{orders: orderStore, batchSize: batchSize, metrics: m}
}

// Run selects due scheduled requests and completes each as its own
// transaction; one failure is logged and does not block the rest of the
// batch.
func (c *ScheduledRequestCompleter) Run(ctx context.Context, now time.Time) error {
	if c.metrics != nil {
		c.metrics.CompleterRuns.Inc()
	}

	due, err := c.orders.ListDueScheduledRequests(ctx, now, c.batchSize)
	if err != nil {
		return err
	}

	for _, order := range due {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := c.orders.CompleteOrder(ctx, order.BusinessID, order.ID, completerChangedBy); err != nil {
			logging.Logger().Warn(
				"scheduled request auto-completion failed",
				"order_id", order.ID,
				"business_id", order.BusinessID,
				"err", err,
			)
			continue
		}
		if c.metrics != nil {
			c.metrics.CompleterOrders.Inc()
		}
	}
	return nil
}
