// Package catalog is the read-mostly store for items, categories, menus,
// opening hours, and tables, plus the small write path the admin HTTP
// surface needs for CRUD. Opening-hours lookup resolves branch-level rows
// first and falls back to the business level.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ahmadsadek12/convoyd/internal/dbx"
)

// Availability is an item's customer-facing visibility state.
type Availability string

const (
	AvailabilityAvailable   Availability = "available"
	AvailabilityUnavailable Availability = "unavailable"
	AvailabilityHidden      Availability = "hidden"
)

// ItemType distinguishes goods (physical stock) from services (bookable time).
type ItemType string

const (
	ItemTypeGood    ItemType = "good"
	ItemTypeService ItemType = "service"
)

// Item is a catalog entry.
type Item struct {
	ID                    string
	BusinessID            string
	OwnerUserID           string
	MenuID                sql.NullString
	CategoryID            sql.NullString
	Name                  string
	Description           sql.NullString
	ItemType              ItemType
	Price                 float64
	Cost                  sql.NullFloat64
	PreparationMinutes    sql.NullInt32
	DurationMinutes       sql.NullInt32
	IsSchedulable         bool
	MinScheduleHours      int
	CancelableBeforeHours sql.NullInt32
	StockQuantity         sql.NullInt32
	TimesOrdered          int
	TimesDelivered        int
	Availability          Availability
	DeletedAt             sql.NullTime
}

// Visible reports whether the item may appear in customer-facing search.
func (i Item) Visible() bool {
	return i.Availability != AvailabilityHidden && !i.DeletedAt.Valid
}

// Table is a reservable table.
type Table struct {
	ID            string
	BusinessID    string
	OwnerUserID   string
	TableNumber   int
	MinSeats      int
	MaxSeats      int
	PositionLabel sql.NullString
	IsActive      bool
}

// OpeningHours is one (owner, day_of_week) row.
type OpeningHours struct {
	OwnerType     string
	OwnerID       string
	DayOfWeek     int
	OpenTime      sql.NullString
	CloseTime     sql.NullString
	IsClosed      bool
	LastOrderTime sql.NullString
}

// OwnerType values for opening-hours lookup.
const (
	OwnerTypeBusiness = "business"
	OwnerTypeBranch   = "branch"
)

// Store is the catalog read/write access layer over Postgres.
type Store struct {
	db *dbx.DB
}

// NewStore builds a Store over db.
func NewStore(db *dbx.DB) *Store {
	return &Store{db: db}
}

// GetItem loads one item by id, scoped to businessID.
func (s *Store) GetItem(ctx context.Context, businessID, itemID string) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, business_id, owner_user_id, menu_id, category_id, name, description,
		       item_type, price, cost, preparation_time_minutes, duration_minutes,
		       is_schedulable, min_schedule_hours, cancelable_before_hours, stock_quantity,
		       times_ordered, times_delivered, availability, deleted_at
		FROM items WHERE id = $1 AND business_id = $2`, itemID, businessID)
	return scanItem(row)
}

// SearchItems returns visible items for ownerUserID matching a case-
// insensitive name substring (empty query returns all visible items).
func (s *Store) SearchItems(ctx context.Context, ownerUserID, query string) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, business_id, owner_user_id, menu_id, category_id, name, description,
		       item_type, price, cost, preparation_time_minutes, duration_minutes,
		       is_schedulable, min_schedule_hours, cancelable_before_hours, stock_quantity,
		       times_ordered, times_delivered, availability, deleted_at
		FROM items
		WHERE owner_user_id = $1
		  AND availability != 'hidden' AND deleted_at IS NULL
		  AND ($2 = '' OR name ILIKE '%' || $2 || '%')
		ORDER BY name`, ownerUserID, strings.TrimSpace(query))
	if err != nil {
		return nil, fmt.Errorf("search items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		item, err := scanItemRow(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// CreateItemParams are the admin-supplied fields for a new catalog item.
type CreateItemParams struct {
	BusinessID         string
	OwnerUserID        string
	MenuID             sql.NullString
	CategoryID         sql.NullString
	Name               string
	Description        sql.NullString
	ItemType           ItemType
	Price              float64
	Cost               sql.NullFloat64
	PreparationMinutes sql.NullInt32
	DurationMinutes    sql.NullInt32
	IsSchedulable      bool
	MinScheduleHours   int
	StockQuantity      sql.NullInt32
}

// CreateItem inserts a new catalog item, defaulting availability to available.
func (s *Store) CreateItem(ctx context.Context, p CreateItemParams) (*Item, error) {
	id := uuid.NewString()
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO items (
			id, business_id, owner_user_id, menu_id, category_id, name, description,
			item_type, price, cost, preparation_time_minutes, duration_minutes,
			is_schedulable, min_schedule_hours, stock_quantity, availability,
			times_ordered, times_delivered
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, 'available', 0, 0
		)
		RETURNING id, business_id, owner_user_id, menu_id, category_id, name, description,
		          item_type, price, cost, preparation_time_minutes, duration_minutes,
		          is_schedulable, min_schedule_hours, cancelable_before_hours, stock_quantity,
		          times_ordered, times_delivered, availability, deleted_at`,
		id, p.BusinessID, p.OwnerUserID, p.MenuID, p.CategoryID, p.Name, p.Description,
		p.ItemType, p.Price, p.Cost, p.PreparationMinutes, p.DurationMinutes,
		p.IsSchedulable, p.MinScheduleHours, p.StockQuantity,
	)
	item, err := scanItem(row)
	if err != nil {
		return nil, fmt.Errorf("create item: %w", err)
	}
	return item, nil
}

// SetAvailability updates one item's customer-facing visibility state.
func (s *Store) SetAvailability(ctx context.Context, businessID, itemID string, availability Availability) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE items SET availability = $1 WHERE id = $2 AND business_id = $3`,
		availability, itemID, businessID)
	if err != nil {
		return fmt.Errorf("set item %s availability: %w", itemID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("item %s not found for business %s", itemID, businessID)
	}
	return nil
}

// UpdatePrice changes one item's price, used by the admin surface's menu
// pricing editor.
func (s *Store) UpdatePrice(ctx context.Context, businessID, itemID string, price float64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE items SET price = $1 WHERE id = $2 AND business_id = $3`, price, itemID, businessID)
	if err != nil {
		return fmt.Errorf("update item %s price: %w", itemID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("item %s not found for business %s", itemID, businessID)
	}
	return nil
}

// SoftDelete marks an item deleted without removing its row, preserving
// historical order_items that reference it.
func (s *Store) SoftDelete(ctx context.Context, businessID, itemID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE items SET deleted_at = now() WHERE id = $1 AND business_id = $2 AND deleted_at IS NULL`,
		itemID, businessID)
	if err != nil {
		return fmt.Errorf("soft delete item %s: %w", itemID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("item %s not found or already deleted for business %s", itemID, businessID)
	}
	return nil
}

// DecrementStock is issued by the orders package inside its confirmation
// transaction; catalog itself never decrements outside a caller-supplied
// tx.
func (s *Store) DecrementStock(ctx context.Context, tx *sql.Tx, itemID string, qty int) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE items SET stock_quantity = stock_quantity - $1
		WHERE id = $2 AND stock_quantity IS NOT NULL AND stock_quantity >= $1`,
		qty, itemID)
	if err != nil {
		return fmt.Errorf("decrement stock for %s: %w", itemID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("decrement stock rows affected: %w", err)
	}
	if affected == 0 {
		// Either the item has unlimited stock (NULL) or insufficient stock.
		// Distinguish the two so callers can treat unlimited stock as a no-op.
		var stock sql.NullInt32
		if err := tx.QueryRowContext(ctx, `SELECT stock_quantity FROM items WHERE id = $1 FOR UPDATE`, itemID).Scan(&stock); err != nil {
			return fmt.Errorf("read stock for %s: %w", itemID, err)
		}
		if !stock.Valid {
			return nil // unlimited stock
		}
		return ErrInsufficientStock
	}
	return nil
}

// ErrInsufficientStock is returned by DecrementStock when the row-locked
// conditional UPDATE affects zero rows and the item's stock is not
// unlimited.
var ErrInsufficientStock = fmt.Errorf("catalog: insufficient stock")

// GetTable loads one table by id.
func (s *Store) GetTable(ctx context.Context, ownerUserID, tableID string) (*Table, error) {
	var t Table
	var pos sql.NullString
	row := s.db.QueryRowContext(ctx, `
		SELECT id, business_id, owner_user_id, table_number, min_seats, max_seats, position_label, is_active
		FROM tables WHERE id = $1 AND owner_user_id = $2`, tableID, ownerUserID)
	if err := row.Scan(&t.ID, &t.BusinessID, &t.OwnerUserID, &t.TableNumber, &t.MinSeats, &t.MaxSeats, &pos, &t.IsActive); err != nil {
		if dbx.IsNoRows(err) {
			return nil, fmt.Errorf("table %s: %w", tableID, sql.ErrNoRows)
		}
		return nil, fmt.Errorf("get table %s: %w", tableID, err)
	}
	t.PositionLabel = pos
	return &t, nil
}

// ListTables returns the active tables (is_active = true) for ownerUserID,
// ordered by table_number; inactive tables are not included.
func (s *Store) ListTables(ctx context.Context, ownerUserID string) ([]Table, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, business_id, owner_user_id, table_number, min_seats, max_seats, position_label, is_active
		FROM tables WHERE owner_user_id = $1 AND is_active = true
		ORDER BY table_number`, ownerUserID)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var out []Table
	for rows.Next() {
		var t Table
		var pos sql.NullString
		if err := rows.Scan(&t.ID, &t.BusinessID, &t.OwnerUserID, &t.TableNumber, &t.MinSeats, &t.MaxSeats, &pos, &t.IsActive); err != nil {
			return nil, err
		}
		t.PositionLabel = pos
		out = append(out, t)
	}
	return out, rows.Err()
}

// EffectiveOpeningHours resolves opening hours for a given day, checking
// branch-level rows first and falling back to the business level.
func (s *Store) EffectiveOpeningHours(ctx context.Context, businessID string, branchID string, dayOfWeek int) (*OpeningHours, error) {
	if branchID != "" {
		hours, err := s.openingHoursFor(ctx, OwnerTypeBranch, branchID, dayOfWeek)
		if err == nil {
			return hours, nil
		}
		if !dbx.IsNoRows(err) {
			return nil, err
		}
	}
	hours, err := s.openingHoursFor(ctx, OwnerTypeBusiness, businessID, dayOfWeek)
	if err != nil {
		if dbx.IsNoRows(err) {
			// No configured hours at all: treat as closed rather than silently open.
			return &OpeningHours{OwnerType: OwnerTypeBusiness, OwnerID: businessID, DayOfWeek: dayOfWeek, IsClosed: true}, nil
		}
		return nil, err
	}
	return hours, nil
}

func (s *Store) openingHoursFor(ctx context.Context, ownerType, ownerID string, dayOfWeek int) (*OpeningHours, error) {
	var h OpeningHours
	row := s.db.QueryRowContext(ctx, `
		SELECT owner_type, owner_id, day_of_week, open_time, close_time, is_closed, last_order_time
		FROM opening_hours WHERE owner_type = $1 AND owner_id = $2 AND day_of_week = $3`,
		ownerType, ownerID, dayOfWeek)
	if err := row.Scan(&h.OwnerType, &h.OwnerID, &h.DayOfWeek, &h.OpenTime, &h.CloseTime, &h.IsClosed, &h.LastOrderTime); err != nil {
		return nil, err
	}
	return &h, nil
}

// IsOpenAt reports whether hours covers clock time t (HH:MM, minute
// precision), treating is_closed or missing bounds as closed.
func (h OpeningHours) IsOpenAt(clock time.Time) bool {
	if h.IsClosed || !h.OpenTime.Valid || !h.CloseTime.Valid {
		return false
	}
	hhmm := clock.Format("15:04")
	return hhmm >= h.OpenTime.String && hhmm <= h.CloseTime.String
}

// PastLastOrderTime reports whether clock is at or past last_order_time, when configured.
func (h OpeningHours) PastLastOrderTime(clock time.Time) bool {
	if !h.LastOrderTime.Valid {
		return false
	}
	return clock.Format("15:04") >= h.LastOrderTime.String
}

func scanItem(row *sql.Row) (*Item, error) {
	var i Item
	if err := row.Scan(&i.ID, &i.BusinessID, &i.OwnerUserID, &i.MenuID, &i.CategoryID, &i.Name, &i.Description,
		&i.ItemType, &i.Price, &i.Cost, &i.PreparationMinutes, &i.DurationMinutes,
		&i.IsSchedulable, &i.MinScheduleHours, &i.CancelableBeforeHours, &i.StockQuantity,
		&i.TimesOrdered, &i.TimesDelivered, &i.Availability, &i.DeletedAt); err != nil {
		if dbx.IsNoRows(err) {
			return nil, fmt.Errorf("item not found: %w", sql.ErrNoRows)
		}
		return nil, fmt.Errorf("scan item: %w", err)
	}
	return &i, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItemRow(row rowScanner) (*Item, error) {
	var i Item
	if err := row.Scan(&i.ID, &i.BusinessID, &i.OwnerUserID, &i.MenuID, &i.CategoryID, &i.Name, &i.Description,
		&i.ItemType, &i.Price, &i.Cost, &i.PreparationMinutes, &i.DurationMinutes,
		&i.IsSchedulable, &i.MinScheduleHours, &i.CancelableBeforeHours, &i.StockQuantity,
		&i.TimesOrdered, &i.TimesDelivered, &i.Availability, &i.DeletedAt); err != nil {
		return nil, fmt.Errorf("scan item row: %w", err)
	}
	return &i, nil
}
