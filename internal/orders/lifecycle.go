package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ahmadsadek12/convoyd/internal/dbx"
)

// ConfirmOrder transitions a cart row into accepted (or ongoing, when
// scheduled_for is within 5 minutes of now), decrementing stock per line
// and clearing the cart under a single transaction. Line prices are not
// rewritten here; each line keeps the price_at_time recorded when it was
// added to the cart.
func (s *Store) ConfirmOrder(ctx context.Context, businessID, orderID, changedBy string, now time.Time) (*Order, error) {
	var result *Order
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		order, err := s.lockOrder(ctx, tx, businessID, orderID)
		if err != nil {
			return err
		}
		if order.Status != StatusCart {
			return ErrInvalidTransition
		}
		items, err := s.listItems(ctx, tx, order.ID)
		if err != nil {
			return err
		}

		for _, it := range items {
			if err := s.catalog.DecrementStock(ctx, tx, it.ItemID, it.Quantity); err != nil {
				return fmt.Errorf("item %s: %w", it.ItemID, err)
			}
		}

		next := nextStatusForConfirm(order.ScheduledFor, now)
		notes := strings.TrimPrefix(order.Notes.String, cartNotesSentinel)
		notes = strings.TrimPrefix(notes, " ")
		if _, err := tx.ExecContext(ctx, `
			UPDATE orders SET status = $1, notes = $2, first_response_at = COALESCE(first_response_at, now()),
			                   updated_at = now()
			WHERE id = $3`, next, sql.NullString{String: notes, Valid: notes != ""}, order.ID); err != nil {
			return fmt.Errorf("confirm order: %w", err)
		}
		if err := s.appendHistory(ctx, tx, order.ID, next, changedBy); err != nil {
			return err
		}
		for _, it := range items {
			if _, err := tx.ExecContext(ctx, `UPDATE items SET times_ordered = times_ordered + 1 WHERE id = $1`, it.ItemID); err != nil {
				return fmt.Errorf("increment times_ordered: %w", err)
			}
		}

		order.Status = next
		result = order
		return nil
	})
	if err != nil {
		if s.metrics != nil && errors.Is(err, ErrInsufficientStock) {
			s.metrics.StockDecrementFail.Inc()
		}
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.Transitions.WithLabelValues(string(result.Status)).Inc()
	}
	return result, nil
}

// nextStatusForConfirm picks a cart's initial post-confirmation status:
// ongoing when scheduled_for is within 5 minutes of now, accepted
// otherwise. An order with no scheduled_for is always accepted, since
// ongoing is only reachable for a scheduled request.
func nextStatusForConfirm(scheduledFor sql.NullTime, now time.Time) Status {
	if scheduledFor.Valid && scheduledFor.Time.Sub(now) <= 5*time.Minute {
		return StatusOngoing
	}
	return StatusAccepted
}

// CompleteOrder transitions an order into completed, incrementing
// times_delivered for each line.
func (s *Store) CompleteOrder(ctx context.Context, businessID, orderID, changedBy string) (*Order, error) {
	var result *Order
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		order, err := s.lockOrder(ctx, tx, businessID, orderID)
		if err != nil {
			return err
		}
		if order.Status != StatusAccepted && order.Status != StatusOngoing && order.Status != StatusReady {
			return ErrInvalidTransition
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE orders SET status = 'completed', completed_at = now(), updated_at = now() WHERE id = $1`, order.ID); err != nil {
			return fmt.Errorf("complete order: %w", err)
		}
		if err := s.appendHistory(ctx, tx, order.ID, StatusCompleted, changedBy); err != nil {
			return err
		}
		items, err := s.listItems(ctx, tx, order.ID)
		if err != nil {
			return err
		}
		for _, it := range items {
			if _, err := tx.ExecContext(ctx, `UPDATE items SET times_delivered = times_delivered + $1 WHERE id = $2`, it.Quantity, it.ItemID); err != nil {
				return fmt.Errorf("increment times_delivered: %w", err)
			}
		}
		order.Status = StatusCompleted
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.Transitions.WithLabelValues(string(StatusCompleted)).Inc()
	}
	return result, nil
}

// CancelOrder transitions an order into cancelled, enforcing the
// cancelable-before-hours window when the order's items declare one.
func (s *Store) CancelOrder(ctx context.Context, businessID, orderID, changedBy string, now time.Time) (*Order, error) {
	var result *Order
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		order, err := s.lockOrder(ctx, tx, businessID, orderID)
		if err != nil {
			return err
		}
		if order.Status.Terminal() {
			return ErrInvalidTransition
		}
		eligible, err := s.cancellationEligible(ctx, tx, order, now)
		if err != nil {
			return err
		}
		if !eligible {
			return ErrCancelDeadline
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE orders SET status = 'cancelled', cancelled_at = now(), updated_at = now() WHERE id = $1`, order.ID); err != nil {
			return fmt.Errorf("cancel order: %w", err)
		}
		if err := s.appendHistory(ctx, tx, order.ID, StatusCancelled, changedBy); err != nil {
			return err
		}
		order.Status = StatusCancelled
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.Transitions.WithLabelValues(string(StatusCancelled)).Inc()
	}
	return result, nil
}

// CancellationDeadlinePassed loads orderID and reports whether its
// cancellation window has passed, for validate_cancellation_eligibility to
// consult without taking the row lock CancelOrder uses.
func (s *Store) CancellationDeadlinePassed(ctx context.Context, businessID, orderID string, now time.Time) (*Order, bool, error) {
	order, _, err := s.GetOrder(ctx, businessID, orderID)
	if err != nil {
		return nil, false, err
	}
	eligible, err := s.cancellationEligible(ctx, s.db.DB, order, now)
	if err != nil {
		return nil, false, err
	}
	return order, !eligible, nil
}

// cancellationEligible checks each line's item-level
// cancelable_before_hours, requiring the scheduled/created time to still be
// outside every window.
func (s *Store) cancellationEligible(ctx context.Context, tx queryer, order *Order, now time.Time) (bool, error) {
	reference := order.CreatedAt
	if order.ScheduledFor.Valid {
		reference = order.ScheduledFor.Time
	}
	rows, err := tx.QueryContext(ctx, `
		SELECT oi.item_id, i.cancelable_before_hours
		FROM order_items oi JOIN items i ON i.id = oi.item_id
		WHERE oi.order_id = $1 AND i.cancelable_before_hours IS NOT NULL`, order.ID)
	if err != nil {
		return false, fmt.Errorf("load cancellation windows: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var itemID string
		var hours int
		if err := rows.Scan(&itemID, &hours); err != nil {
			return false, err
		}
		if cancellationDeadlinePassed(reference, hours, now) {
			return false, nil
		}
	}
	return true, rows.Err()
}

// cancellationDeadlinePassed reports whether now is past reference minus
// the item's cancelable-before-hours window.
func cancellationDeadlinePassed(reference time.Time, hours int, now time.Time) bool {
	deadline := reference.Add(-time.Duration(hours) * time.Hour)
	return now.After(deadline)
}

// AmendDeliveryPrice updates delivery_price and recomputes total; only
// valid on accepted orders with delivery_type = delivery.
func (s *Store) AmendDeliveryPrice(ctx context.Context, businessID, orderID string, price float64) (*Order, error) {
	var result *Order
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		order, err := s.lockOrder(ctx, tx, businessID, orderID)
		if err != nil {
			return err
		}
		if order.Status != StatusAccepted || order.DeliveryType.String != string(DeliveryDelivery) {
			return ErrDeliveryPriceScope
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE orders SET delivery_price = $1, total = subtotal + $1, updated_at = now() WHERE id = $2`,
			price, order.ID); err != nil {
			return fmt.Errorf("amend delivery price: %w", err)
		}
		order.DeliveryPrice = price
		order.Total = order.Subtotal + price
		result = order
		return nil
	})
	return result, err
}

// RejectOrder transitions any non-terminal order (cart, accepted, ongoing
// or ready) into rejected, used when the business declines a scheduled
// request.
func (s *Store) RejectOrder(ctx context.Context, businessID, orderID, changedBy string) (*Order, error) {
	var result *Order
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		order, err := s.lockOrder(ctx, tx, businessID, orderID)
		if err != nil {
			return err
		}
		if order.Status.Terminal() {
			return ErrInvalidTransition
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE orders SET status = 'rejected', updated_at = now() WHERE id = $1`, order.ID); err != nil {
			return fmt.Errorf("reject order: %w", err)
		}
		if err := s.appendHistory(ctx, tx, order.ID, StatusRejected, changedBy); err != nil {
			return err
		}
		order.Status = StatusRejected
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.Transitions.WithLabelValues(string(StatusRejected)).Inc()
	}
	return result, nil
}

// ListDueScheduledRequests returns scheduled requests whose scheduled_for
// has passed and are still in accepted/ongoing/ready, for
// ScheduledRequestCompleter.
func (s *Store) ListDueScheduledRequests(ctx context.Context, now time.Time, limit int) ([]Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, business_id, user_id, customer_phone_number, delivery_type, status, request_type,
		       scheduled_for, subtotal, delivery_price, total, payment_method, payment_status, notes,
		       location_address, language_used, order_source, first_response_at, completed_at,
		       cancelled_at, created_at, updated_at
		FROM orders
		WHERE request_type = 'scheduled_request' AND status IN ('accepted', 'ongoing', 'ready')
		  AND scheduled_for IS NOT NULL AND scheduled_for <= $1
		ORDER BY scheduled_for
		LIMIT $2`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list due scheduled requests: %w", err)
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.BusinessID, &o.UserID, &o.CustomerPhone, &o.DeliveryType, &o.Status,
			&o.RequestType, &o.ScheduledFor, &o.Subtotal, &o.DeliveryPrice, &o.Total, &o.PaymentMethod,
			&o.PaymentStatus, &o.Notes, &o.LocationAddress, &o.LanguageUsed, &o.OrderSource,
			&o.FirstResponseAt, &o.CompletedAt, &o.CancelledAt, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// ListArchivable returns terminal orders older than cutoff, for ArchiveWorker.
func (s *Store) ListArchivable(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM orders
		WHERE status IN ('completed', 'cancelled', 'rejected') AND updated_at <= $1
		ORDER BY updated_at LIMIT $2`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list archivable orders: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListHistory returns an order's append-only status history, oldest first,
// for the archive pipeline's status_timeline.
func (s *Store) ListHistory(ctx context.Context, orderID string) ([]StatusHistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, order_id, status, changed_by, changed_at
		FROM order_status_history WHERE order_id = $1 ORDER BY changed_at`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list status history: %w", err)
	}
	defer rows.Close()

	var out []StatusHistoryEntry
	for rows.Next() {
		var h StatusHistoryEntry
		if err := rows.Scan(&h.ID, &h.OrderID, &h.Status, &h.ChangedBy, &h.ChangedAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// LoadForArchive loads a terminal order, its items, and its full status
// history by id alone (no business scope), since ListArchivable selects
// candidates across all tenants and the ArchiveWorker operates process-wide.
func (s *Store) LoadForArchive(ctx context.Context, orderID string) (*Order, []OrderItem, []StatusHistoryEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, business_id, user_id, customer_phone_number, delivery_type, status, request_type,
		       scheduled_for, subtotal, delivery_price, total, payment_method, payment_status, notes,
		       location_address, language_used, order_source, first_response_at, completed_at,
		       cancelled_at, created_at, updated_at
		FROM orders WHERE id = $1`, orderID)
	order, err := scanOrder(row)
	if err != nil {
		if dbx.IsNoRows(err) {
			return nil, nil, nil, ErrNotFound
		}
		return nil, nil, nil, fmt.Errorf("load order %s for archive: %w", orderID, err)
	}
	items, err := s.listItems(ctx, s.db.DB, order.ID)
	if err != nil {
		return nil, nil, nil, err
	}
	history, err := s.ListHistory(ctx, order.ID)
	if err != nil {
		return nil, nil, nil, err
	}
	return order, items, history, nil
}

// DeleteArchived removes a terminal order's status history, items, and the
// order row itself in one transaction, the operational-store half of the
// archive pipeline's atomic move. Only terminal orders may be deleted.
func (s *Store) DeleteArchived(ctx context.Context, orderID string) error {
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		var status Status
		if err := tx.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, orderID).Scan(&status); err != nil {
			if isNoRows(err) {
				return nil // already deleted by a prior, partially-failed run
			}
			return fmt.Errorf("lock order %s for delete: %w", orderID, err)
		}
		if !status.Terminal() {
			return fmt.Errorf("%w: order %s is not terminal", ErrInvalidTransition, orderID)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM order_status_history WHERE order_id = $1`, orderID); err != nil {
			return fmt.Errorf("delete status history: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = $1`, orderID); err != nil {
			return fmt.Errorf("delete order items: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, orderID); err != nil {
			return fmt.Errorf("delete order: %w", err)
		}
		return nil
	})
}

func (s *Store) lockOrder(ctx context.Context, tx *sql.Tx, businessID, orderID string) (*Order, error) {
	var o Order
	row := tx.QueryRowContext(ctx, `
		SELECT id, business_id, user_id, customer_phone_number, delivery_type, status, request_type,
		       scheduled_for, subtotal, delivery_price, total, payment_method, payment_status, notes,
		       location_address, language_used, order_source, first_response_at, completed_at,
		       cancelled_at, created_at, updated_at
		FROM orders WHERE id = $1 AND business_id = $2 FOR UPDATE`, orderID, businessID)
	if err := row.Scan(&o.ID, &o.BusinessID, &o.UserID, &o.CustomerPhone, &o.DeliveryType, &o.Status,
		&o.RequestType, &o.ScheduledFor, &o.Subtotal, &o.DeliveryPrice, &o.Total, &o.PaymentMethod,
		&o.PaymentStatus, &o.Notes, &o.LocationAddress, &o.LanguageUsed, &o.OrderSource,
		&o.FirstResponseAt, &o.CompletedAt, &o.CancelledAt, &o.CreatedAt, &o.UpdatedAt); err != nil {
		if isNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lock order %s: %w", orderID, err)
	}
	return &o, nil
}

func isNoRows(err error) bool {
	return err == sql.ErrNoRows
}
