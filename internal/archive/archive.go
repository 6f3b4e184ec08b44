// Package archive implements the atomic move of a terminated order from the
// operational Postgres store to the append-only cold store. The pipeline is
// idempotent: a re-run after a partial failure either finds the operational
// row already gone (no-op) or upserts the same order_log document again,
// never producing a duplicate.
package archive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ahmadsadek12/convoyd/internal/coldstore"
	"github.com/ahmadsadek12/convoyd/internal/orders"
)

// OrderStore is the subset of orders.Store the pipeline needs, named so
// tests can substitute a fake without standing up Postgres.
type OrderStore interface {
	LoadForArchive(ctx context.Context, orderID string) (*orders.Order, []orders.OrderItem, []orders.StatusHistoryEntry, error)
	DeleteArchived(ctx context.Context, orderID string) error
}

// ColdStore is the subset of coldstore.Store the pipeline needs.
type ColdStore interface {
	Upsert(ctx context.Context, log coldstore.OrderLog) error
}

// Pipeline moves one order at a time from the operational store to the cold
// store in four steps.
type Pipeline struct {
	orders    OrderStore
	coldStore ColdStore
	now       func() time.Time
}

// New builds a Pipeline over the operational order store and the cold store.
func New(orderStore OrderStore, coldStore ColdStore) *Pipeline {
	return &Pipeline{orders: orderStore, coldStore: coldStore, now: time.Now}
}

// Archive runs the four-step pipeline for one order_id:
//  1. read the order, its items, and its full status history;
//  2. construct the immutable order_log document;
//  3. insert (upsert) it into the cold store;
//  4. delete the operational rows (history, items, order) in one transaction.
//
// If step 3 fails, the operational row is left untouched and the next
// scheduled run retries from step 1. If step 3 succeeds but step 4 fails,
// the order exists transiently in both stores; the next run's upsert is a
// no-op and the delete is retried.
func (p *Pipeline) Archive(ctx context.Context, orderID string) error {
	order, items, history, err := p.orders.LoadForArchive(ctx, orderID)
	if errors.Is(err, orders.ErrNotFound) {
		return nil // already archived and deleted by an earlier run
	}
	if err != nil {
		return fmt.Errorf("load order %s: %w", orderID, err)
	}
	if !order.Status.Terminal() {
		return fmt.Errorf("archive: order %s is not in a terminal state (%s)", orderID, order.Status)
	}

	log := buildOrderLog(order, items, history, p.now())
	if err := p.coldStore.Upsert(ctx, log); err != nil {
		return fmt.Errorf("upsert order log %s: %w", orderID, err)
	}
	if err := p.orders.DeleteArchived(ctx, orderID); err != nil {
		return fmt.Errorf("delete archived order %s: %w", orderID, err)
	}
	return nil
}

func buildOrderLog(order *orders.Order, items []orders.OrderItem, history []orders.StatusHistoryEntry, now time.Time) coldstore.OrderLog {
	log := coldstore.OrderLog{
		OrderID:         order.ID,
		BusinessID:      order.BusinessID,
		UserID:          order.UserID,
		CustomerPhone:   order.CustomerPhone,
		DeliveryType:    order.DeliveryType.String,
		LocationAddress: order.LocationAddress.String,
		Subtotal:        order.Subtotal,
		DeliveryPrice:   order.DeliveryPrice,
		Total:           order.Total,
		PaymentMethod:   order.PaymentMethod.String,
		PaymentStatus:   order.PaymentStatus.String,
		LanguageUsed:    order.LanguageUsed.String,
		OrderSource:     order.OrderSource,
		FinalStatus:     string(order.Status),
		ArchivedAt:      now,
	}
	if order.ScheduledFor.Valid {
		t := order.ScheduledFor.Time
		log.ScheduledFor = &t
	}
	if order.CompletedAt.Valid {
		t := order.CompletedAt.Time
		log.CompletedAt = &t
	}
	if order.CancelledAt.Valid {
		t := order.CancelledAt.Time
		log.CancelledAt = &t
	}

	log.Items = make([]coldstore.OrderLogItem, 0, len(items))
	for _, it := range items {
		log.Items = append(log.Items, coldstore.OrderLogItem{
			ItemID:      it.ItemID,
			Name:        it.NameAtTime,
			Quantity:    it.Quantity,
			PriceAtTime: it.PriceAtTime,
			CostAtTime:  it.CostAtTime.Float64,
			Notes:       it.Notes.String,
		})
	}

	log.StatusTimeline = make([]coldstore.StatusEvent, 0, len(history))
	for _, h := range history {
		log.StatusTimeline = append(log.StatusTimeline, coldstore.StatusEvent{
			Status:    string(h.Status),
			ChangedBy: h.ChangedBy,
			ChangedAt: h.ChangedAt,
		})
	}
	return log
}
