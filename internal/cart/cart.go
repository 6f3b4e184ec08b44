// Package cart implements the cart manager: the high-level line-item
// operations the tool layer calls during a conversation, built directly on
// top of internal/orders' cart-status row since a cart is that row. Every
// mutation re-prices from the catalog's current price, never trusting a
// stale price carried in conversation state.
package cart

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ahmadsadek12/convoyd/internal/catalog"
	"github.com/ahmadsadek12/convoyd/internal/dbx"
	"github.com/ahmadsadek12/convoyd/internal/orders"
)

// Errors returned by cart operations.
var (
	ErrItemNotAvailable = errors.New("cart: item not available")
	ErrLineNotFound     = errors.New("cart: line not found")
	ErrEmptyCart        = errors.New("cart: cart has no lines")
)

// Manager implements the cart operations contract over a Postgres-backed
// orders.Store.
type Manager struct {
	db      *dbx.DB
	catalog *catalog.Store
	orders  *orders.Store
}

// NewManager builds a Manager.
func NewManager(db *dbx.DB, catalogStore *catalog.Store, orderStore *orders.Store) *Manager {
	return &Manager{db: db, catalog: catalogStore, orders: orderStore}
}

// GetOrCreate returns the customer's open cart, creating one if absent.
func (m *Manager) GetOrCreate(ctx context.Context, businessID, ownerID, customerPhone, source string) (*orders.Order, []orders.OrderItem, error) {
	return m.orders.GetOrCreateCart(ctx, businessID, ownerID, customerPhone, source)
}

// AddLine adds qty of itemID to the cart, merging into an existing line
// with the same (item, notes) pair rather than creating a duplicate row.
func (m *Manager) AddLine(ctx context.Context, businessID, ownerID, customerPhone, itemID string, qty int, notes string) (*orders.Order, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("cart: quantity must be positive")
	}
	item, err := m.catalog.GetItem(ctx, businessID, itemID)
	if err != nil {
		return nil, err
	}
	if item.Availability != catalog.AvailabilityAvailable {
		return nil, ErrItemNotAvailable
	}

	cartOrder, _, err := m.orders.GetOrCreateCart(ctx, businessID, ownerID, customerPhone, "chat")
	if err != nil {
		return nil, err
	}

	var result *orders.Order
	err = m.db.WithTx(ctx, func(tx *sql.Tx) error {
		var existingID string
		var existingQty int
		lookupErr := tx.QueryRowContext(ctx, `
			SELECT id, quantity FROM order_items
			WHERE order_id = $1 AND item_id = $2 AND COALESCE(notes, '') = $3`,
			cartOrder.ID, itemID, notes).Scan(&existingID, &existingQty)
		switch {
		case lookupErr == nil:
			if _, err := tx.ExecContext(ctx, `
				UPDATE order_items SET quantity = $1, price_at_time = $2, cost_at_time = $3, name_at_time = $4
				WHERE id = $5`, existingQty+qty, item.Price, item.Cost, item.Name, existingID); err != nil {
				return fmt.Errorf("merge line: %w", err)
			}
		case dbx.IsNoRows(lookupErr):
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO order_items (id, order_id, item_id, quantity, price_at_time, cost_at_time, name_at_time, notes)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				uuid.NewString(), cartOrder.ID, itemID, qty, item.Price, item.Cost, item.Name, nullableNotes(notes)); err != nil {
				return fmt.Errorf("insert line: %w", err)
			}
		default:
			return fmt.Errorf("lookup existing line: %w", lookupErr)
		}
		return recompute(ctx, tx, cartOrder.ID)
	})
	if err != nil {
		return nil, err
	}
	result, _, err = m.orders.GetCart(ctx, businessID, ownerID, customerPhone)
	return result, err
}

// UpdateLine sets a line's quantity, re-pricing from the catalog's current
// price. A qty of zero removes the line.
func (m *Manager) UpdateLine(ctx context.Context, businessID, ownerID, customerPhone, lineID string, qty int) (*orders.Order, error) {
	if qty == 0 {
		return m.RemoveLine(ctx, businessID, ownerID, customerPhone, lineID)
	}
	cartOrder, _, err := m.orders.GetCart(ctx, businessID, ownerID, customerPhone)
	if err != nil {
		return nil, err
	}
	if cartOrder == nil {
		return nil, ErrEmptyCart
	}

	err = m.db.WithTx(ctx, func(tx *sql.Tx) error {
		var itemID string
		if err := tx.QueryRowContext(ctx, `
			SELECT item_id FROM order_items WHERE id = $1 AND order_id = $2`, lineID, cartOrder.ID).Scan(&itemID); err != nil {
			if dbx.IsNoRows(err) {
				return ErrLineNotFound
			}
			return fmt.Errorf("lookup line: %w", err)
		}
		item, err := m.catalog.GetItem(ctx, businessID, itemID)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE order_items SET quantity = $1, price_at_time = $2, cost_at_time = $3 WHERE id = $4`,
			qty, item.Price, item.Cost, lineID); err != nil {
			return fmt.Errorf("update line: %w", err)
		}
		return recompute(ctx, tx, cartOrder.ID)
	})
	if err != nil {
		return nil, err
	}
	result, _, err := m.orders.GetCart(ctx, businessID, ownerID, customerPhone)
	return result, err
}

// RemoveLine deletes a line entirely.
func (m *Manager) RemoveLine(ctx context.Context, businessID, ownerID, customerPhone, lineID string) (*orders.Order, error) {
	cartOrder, _, err := m.orders.GetCart(ctx, businessID, ownerID, customerPhone)
	if err != nil {
		return nil, err
	}
	if cartOrder == nil {
		return nil, ErrEmptyCart
	}
	err = m.db.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM order_items WHERE id = $1 AND order_id = $2`, lineID, cartOrder.ID)
		if err != nil {
			return fmt.Errorf("remove line: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrLineNotFound
		}
		return recompute(ctx, tx, cartOrder.ID)
	})
	if err != nil {
		return nil, err
	}
	result, _, err := m.orders.GetCart(ctx, businessID, ownerID, customerPhone)
	return result, err
}

// SetDeliveryType records whether the order is takeaway, delivery, or
// on-site, with the drop-off address for delivery. An empty address keeps
// whatever was set earlier; switching away from delivery clears it.
func (m *Manager) SetDeliveryType(ctx context.Context, businessID, ownerID, customerPhone string, deliveryType orders.DeliveryType, address string) (*orders.Order, error) {
	cartOrder, _, err := m.orders.GetCart(ctx, businessID, ownerID, customerPhone)
	if err != nil {
		return nil, err
	}
	if cartOrder == nil {
		return nil, ErrEmptyCart
	}
	if deliveryType == orders.DeliveryDelivery {
		_, err = m.db.ExecContext(ctx, `
			UPDATE orders SET delivery_type = $1, location_address = COALESCE($2, location_address), updated_at = now() WHERE id = $3`,
			deliveryType, nullableNotes(address), cartOrder.ID)
	} else {
		_, err = m.db.ExecContext(ctx, `
			UPDATE orders SET delivery_type = $1, location_address = NULL, updated_at = now() WHERE id = $2`,
			deliveryType, cartOrder.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("set delivery type: %w", err)
	}
	result, _, err := m.orders.GetCart(ctx, businessID, ownerID, customerPhone)
	return result, err
}

// SetNotes records free-text customer notes, re-applying the cart sentinel prefix.
func (m *Manager) SetNotes(ctx context.Context, businessID, ownerID, customerPhone, notes string) (*orders.Order, error) {
	cartOrder, _, err := m.orders.GetCart(ctx, businessID, ownerID, customerPhone)
	if err != nil {
		return nil, err
	}
	if cartOrder == nil {
		return nil, ErrEmptyCart
	}
	if _, err := m.db.ExecContext(ctx, `UPDATE orders SET notes = $1, updated_at = now() WHERE id = $2`,
		"__cart__ "+notes, cartOrder.ID); err != nil {
		return nil, fmt.Errorf("set notes: %w", err)
	}
	result, _, err := m.orders.GetCart(ctx, businessID, ownerID, customerPhone)
	return result, err
}

// SetScheduled marks the cart as a scheduled request for a future time.
func (m *Manager) SetScheduled(ctx context.Context, businessID, ownerID, customerPhone string, when time.Time) (*orders.Order, error) {
	cartOrder, _, err := m.orders.GetCart(ctx, businessID, ownerID, customerPhone)
	if err != nil {
		return nil, err
	}
	if cartOrder == nil {
		return nil, ErrEmptyCart
	}
	if _, err := m.db.ExecContext(ctx, `
		UPDATE orders SET request_type = 'scheduled_request', scheduled_for = $1, updated_at = now() WHERE id = $2`,
		when, cartOrder.ID); err != nil {
		return nil, fmt.Errorf("set scheduled: %w", err)
	}
	result, _, err := m.orders.GetCart(ctx, businessID, ownerID, customerPhone)
	return result, err
}

// Clear deletes the cart row and its lines outright, so the next
// GetOrCreate starts fresh.
func (m *Manager) Clear(ctx context.Context, businessID, ownerID, customerPhone string) error {
	cartOrder, _, err := m.orders.GetCart(ctx, businessID, ownerID, customerPhone)
	if err != nil {
		return err
	}
	if cartOrder == nil {
		return nil
	}
	return m.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = $1`, cartOrder.ID); err != nil {
			return fmt.Errorf("clear cart lines: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, cartOrder.ID); err != nil {
			return fmt.Errorf("clear cart row: %w", err)
		}
		return nil
	})
}

func recompute(ctx context.Context, tx *sql.Tx, orderID string) error {
	var subtotal float64
	if err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(price_at_time * quantity), 0) FROM order_items WHERE order_id = $1`, orderID,
	).Scan(&subtotal); err != nil {
		return fmt.Errorf("sum cart lines: %w", err)
	}
	_, err := tx.ExecContext(ctx, `
		UPDATE orders SET subtotal = $1, total = $1 + delivery_price, updated_at = now() WHERE id = $2`, subtotal, orderID)
	if err != nil {
		return fmt.Errorf("recompute cart totals: %w", err)
	}
	return nil
}

func nullableNotes(notes string) sql.NullString {
	if notes == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: notes, Valid: true}
}
