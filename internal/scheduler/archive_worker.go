package scheduler

import (
	"context"
	"time"

	"github.com/ahmadsadek12/convoyd/internal/logging"
	"github.com/ahmadsadek12/convoyd/internal/metrics"
)

// ArchivableLister is the subset of orders.Store the worker needs to find
// candidates; it returns bare order ids.
type ArchivableLister interface {
	ListArchivable(ctx context.Context, cutoff time.Time, limit int) ([]string, error)
}

// Archiver moves one order from the operational store to the cold store.
type Archiver interface {
	Archive(ctx context.Context, orderID string) error
}

// ArchiveWorker moves terminated orders older than the configured age from
// the operational store to the cold store.
type ArchiveWorker struct {
	lister    ArchivableLister
	archiver  Archiver
	batchSize int
	age       time.Duration
	metrics   *metrics.SchedulerMetrics
}

// NewArchiveWorker builds a worker over lister/archiver, selecting orders
// whose terminal timestamp is older than age and batching at batchSize
// rows.
func NewArchiveWorker(lister ArchivableLister, archiver Archiver, batchSize int, age time.Duration, m *metrics.SchedulerMetrics) *ArchiveWorker {
	if batchSize <= 0 {
		batchSize = 100
	}
	if age <= 0 {
		age = 24 * time.Hour
	}
	return &ArchiveWorker{lister: lister, archiver: archiver, batchSize: batchSize, age: age, metrics: m}
}

// Run selects archivable orders and archives each independently; a failure
// is logged and retried on the next tick.
func (w *ArchiveWorker) Run(ctx context.Context, now time.Time) error {
	if w.metrics != nil {
		w.metrics.ArchiveRuns.Inc()
	}

	cutoff := now.Add(-w.age)
	ids, err := w.lister.ListArchivable(ctx, cutoff, w.batchSize)
	if err != nil {
		return err
	}

	for _, id := range ids {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := w.archiver.Archive(ctx, id); err != nil {
			logging.Logger().Warn("order archive failed", "order_id", id, "err", err)
			if w.metrics != nil {
				w.metrics.ArchiveFailures.Inc()
			}
			continue
		}
		if w.metrics != nil {
			w.metrics.ArchivedOrders.Inc()
		}
	}
	return nil
}
