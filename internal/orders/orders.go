// Package orders implements the order lifecycle state machine: cart
// representation, transactional confirmation with stock decrement under row
// lock, completion, delivery-price amendment, and cancellation, plus the
// append-only status history invariant. The cart's own high-level
// operations are built on top of this package in internal/cart, since a
// cart is literally an order row in status "cart".
package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ahmadsadek12/convoyd/internal/catalog"
	"github.com/ahmadsadek12/convoyd/internal/dbx"
	"github.com/ahmadsadek12/convoyd/internal/metrics"
)

// Status is an order's lifecycle state.
type Status string

const (
	StatusCart      Status = "cart"
	StatusAccepted  Status = "accepted"
	StatusOngoing   Status = "ongoing"
	StatusReady     Status = "ready"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusRejected  Status = "rejected"
)

// Terminal reports whether s is a terminal status.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusRejected
}

// RequestType distinguishes immediate orders from scheduled requests.
type RequestType string

const (
	RequestTypeOrder            RequestType = "order"
	RequestTypeScheduledRequest RequestType = "scheduled_request"
)

// DeliveryType is how the order will reach the customer.
type DeliveryType string

const (
	DeliveryTakeaway DeliveryType = "takeaway"
	DeliveryDelivery DeliveryType = "delivery"
	DeliveryOnSite   DeliveryType = "on_site"
)

// cartNotesSentinel marks a cart-status order's notes field. Real customer
// notes follow the sentinel.
const cartNotesSentinel = "__cart__"

// Order is one row of the orders table.
type Order struct {
	ID              string
	BusinessID      string
	UserID          string
	CustomerPhone   string
	DeliveryType    sql.NullString
	Status          Status
	RequestType     RequestType
	ScheduledFor    sql.NullTime
	Subtotal        float64
	DeliveryPrice   float64
	Total           float64
	PaymentMethod   sql.NullString
	PaymentStatus   sql.NullString
	Notes           sql.NullString
	LocationAddress sql.NullString
	LanguageUsed    sql.NullString
	OrderSource     string
	FirstResponseAt sql.NullTime
	CompletedAt     sql.NullTime
	CancelledAt     sql.NullTime
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CustomerNotes strips the cart sentinel prefix, if present.
func (o Order) CustomerNotes() string {
	if !o.Notes.Valid {
		return ""
	}
	return strings.TrimPrefix(strings.TrimPrefix(o.Notes.String, cartNotesSentinel), " ")
}

// OrderItem is one line of an order.
type OrderItem struct {
	ID          string
	OrderID     string
	ItemID      string
	Quantity    int
	PriceAtTime float64
	CostAtTime  sql.NullFloat64
	NameAtTime  string
	Notes       sql.NullString
}

// StatusHistoryEntry is one append-only history row.
type StatusHistoryEntry struct {
	ID        string
	OrderID   string
	Status    Status
	ChangedBy string
	ChangedAt time.Time
}

// Errors returned by order operations; all are surfaced to the LLM as typed
// tool-result codes by internal/tools.
var (
	ErrNotFound           = errors.New("orders: not found")
	ErrInvalidTransition  = errors.New("orders: invalid transition")
	ErrInsufficientStock  = catalog.ErrInsufficientStock
	ErrCancelDeadline     = errors.New("orders: cancellation deadline passed")
	ErrDeliveryPriceScope = errors.New("orders: delivery price amendment only allowed on accepted delivery orders")
)

// Store is the order lifecycle access layer.
type Store struct {
	db      *dbx.DB
	catalog *catalog.Store
	metrics *metrics.OrderMetrics
}

// NewStore builds a Store over db, using catalogStore for pricing and stock.
func NewStore(db *dbx.DB, catalogStore *catalog.Store, m *metrics.OrderMetrics) *Store {
	return &Store{db: db, catalog: catalogStore, metrics: m}
}

// GetCart returns the single cart-status row for (business, owner,
// customer), or nil if none exists.
func (s *Store) GetCart(ctx context.Context, businessID, ownerID, customerPhone string) (*Order, []OrderItem, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, business_id, user_id, customer_phone_number, delivery_type, status, request_type,
		       scheduled_for, subtotal, delivery_price, total, payment_method, payment_status, notes,
		       location_address, language_used, order_source, first_response_at, completed_at,
		       cancelled_at, created_at, updated_at
		FROM orders WHERE business_id = $1 AND user_id = $2 AND customer_phone_number = $3 AND status = 'cart'`,
		businessID, ownerID, customerPhone)
	order, err := scanOrder(row)
	if err != nil {
		if dbx.IsNoRows(err) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	items, err := s.listItems(ctx, s.db.DB, order.ID)
	if err != nil {
		return nil, nil, err
	}
	return order, items, nil
}

// GetOrCreateCart returns the existing cart row or creates a fresh one.
func (s *Store) GetOrCreateCart(ctx context.Context, businessID, ownerID, customerPhone, source string) (*Order, []OrderItem, error) {
	order, items, err := s.GetCart(ctx, businessID, ownerID, customerPhone)
	if err != nil {
		return nil, nil, err
	}
	if order != nil {
		return order, items, nil
	}

	id := uuid.NewString()
	now := time.Now()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO orders (id, business_id, user_id, customer_phone_number, status, request_type,
		                     subtotal, delivery_price, total, notes, order_source, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'cart', 'order', 0, 0, 0, $5, $6, $7, $7)`,
		id, businessID, ownerID, customerPhone, cartNotesSentinel, source, now)
	if err != nil {
		return nil, nil, fmt.Errorf("create cart: %w", err)
	}
	return s.GetCart(ctx, businessID, ownerID, customerPhone)
}

// GetOrder loads an order by id, scoped to businessID.
func (s *Store) GetOrder(ctx context.Context, businessID, orderID string) (*Order, []OrderItem, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, business_id, user_id, customer_phone_number, delivery_type, status, request_type,
		       scheduled_for, subtotal, delivery_price, total, payment_method, payment_status, notes,
		       location_address, language_used, order_source, first_response_at, completed_at,
		       cancelled_at, created_at, updated_at
		FROM orders WHERE id = $1 AND business_id = $2`, orderID, businessID)
	order, err := scanOrder(row)
	if err != nil {
		if dbx.IsNoRows(err) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}
	items, err := s.listItems(ctx, s.db.DB, order.ID)
	if err != nil {
		return nil, nil, err
	}
	return order, items, nil
}

func (s *Store) listItems(ctx context.Context, q queryer, orderID string) ([]OrderItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, order_id, item_id, quantity, price_at_time, cost_at_time, name_at_time, notes
		FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ItemID, &it.Quantity, &it.PriceAtTime, &it.CostAtTime, &it.NameAtTime, &it.Notes); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// recomputeTotals updates subtotal/total for a cart row from its current
// lines, keeping `total = subtotal + delivery_price` at all times.
func (s *Store) recomputeTotals(ctx context.Context, tx *sql.Tx, orderID string) error {
	var subtotal float64
	if err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(price_at_time * quantity), 0) FROM order_items WHERE order_id = $1`, orderID,
	).Scan(&subtotal); err != nil {
		return fmt.Errorf("sum order items: %w", err)
	}
	_, err := tx.ExecContext(ctx, `
		UPDATE orders SET subtotal = $1, total = $1 + delivery_price, updated_at = now() WHERE id = $2`,
		subtotal, orderID)
	if err != nil {
		return fmt.Errorf("recompute totals: %w", err)
	}
	return nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func scanOrder(row *sql.Row) (*Order, error) {
	var o Order
	if err := row.Scan(&o.ID, &o.BusinessID, &o.UserID, &o.CustomerPhone, &o.DeliveryType, &o.Status,
		&o.RequestType, &o.ScheduledFor, &o.Subtotal, &o.DeliveryPrice, &o.Total, &o.PaymentMethod,
		&o.PaymentStatus, &o.Notes, &o.LocationAddress, &o.LanguageUsed, &o.OrderSource,
		&o.FirstResponseAt, &o.CompletedAt, &o.CancelledAt, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *Store) appendHistory(ctx context.Context, tx *sql.Tx, orderID string, status Status, changedBy string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO order_status_history (id, order_id, status, changed_by, changed_at)
		VALUES ($1, $2, $3, $4, now())`, uuid.NewString(), orderID, status, changedBy)
	if err != nil {
		return fmt.Errorf("append status history: %w", err)
	}
	return nil
}
