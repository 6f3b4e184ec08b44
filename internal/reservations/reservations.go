// Package reservations implements the table/appointment allocator:
// availability derived from confirmed bookings rather than a stored
// calendar, auto-selection with a smallest-fit tie-break, and slot
// exclusion enforced by the database's partial unique index rather than an
// application-level lock, mirroring the catalog package's reliance on
// conditional SQL over read-then-write races.
package reservations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/google/uuid"

	"github.com/ahmadsadek12/convoyd/internal/catalog"
	"github.com/ahmadsadek12/convoyd/internal/dbx"
	"github.com/ahmadsadek12/convoyd/internal/metrics"
)

// Type distinguishes a restaurant table booking from a generic appointment slot.
type Type string

const (
	TypeTable       Type = "table"
	TypeAppointment Type = "appointment"
)

// Status is a reservation's lifecycle state.
type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
	StatusNoShow    Status = "no_show"
)

// Reservation is one row of the reservations table.
type Reservation struct {
	ID              string
	BusinessID      string
	OwnerUserID     string
	TableID         sql.NullString
	CustomerPhone   string
	CustomerName    string
	Date            time.Time
	Time            string
	NumberOfGuests  sql.NullInt32
	ReservationType Type
	Status          Status
	CreatedAt       time.Time
}

// Item is a pre-ordered line attached to a reservation.
type Item struct {
	ID            string
	ReservationID string
	ItemID        string
	Quantity      int
	PriceAtTime   float64
	NameAtTime    string
	Notes         sql.NullString
}

// Errors returned by reservation operations.
var (
	ErrSlotTaken    = errors.New("reservations: slot already taken")
	ErrNoTableFits  = errors.New("reservations: no table fits the requested party size")
	ErrNotFound     = errors.New("reservations: not found")
	ErrNotConfirmed = errors.New("reservations: reservation is not confirmed")
)

const pqUniqueViolation = "23505"

// isUniqueViolation reports whether err (or anything it wraps) is a
// Postgres unique-violation, the signal the partial unique index on
// (table_id, reservation_date, reservation_time) WHERE status = 'confirmed'
// raises when two confirmations race for the same slot.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}

// Store is the reservation access layer.
type Store struct {
	db      *dbx.DB
	catalog *catalog.Store
	metrics *metrics.ReservationMetrics
}

// NewStore builds a Store.
func NewStore(db *dbx.DB, catalogStore *catalog.Store, m *metrics.ReservationMetrics) *Store {
	return &Store{db: db, catalog: catalogStore, metrics: m}
}

// AvailableTables returns the tables at ownerUserID not already confirmed
// for (date, time). Availability is derived from the absence of a
// confirmed reservation row, never a separately maintained flag.
func (s *Store) AvailableTables(ctx context.Context, ownerUserID string, date time.Time, timeOfDay string) ([]catalog.Table, error) {
	tables, err := s.catalog.ListTables(ctx, ownerUserID)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT table_id FROM reservations
		WHERE owner_user_id = $1 AND reservation_date = $2 AND reservation_time = $3 AND status = 'confirmed'`,
		ownerUserID, date, timeOfDay)
	if err != nil {
		return nil, fmt.Errorf("list taken tables: %w", err)
	}
	defer rows.Close()

	taken := make(map[string]bool)
	for rows.Next() {
		var id sql.NullString
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		if id.Valid {
			taken[id.String] = true
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var available []catalog.Table
	for _, t := range tables {
		if !taken[t.ID] {
			available = append(available, t)
		}
	}
	return available, nil
}

// selectTable picks the smallest-capacity table that still fits partySize
// within its [min_seats, max_seats] range, breaking ties by table_number.
func selectTable(tables []catalog.Table, partySize int) (*catalog.Table, error) {
	var candidates []catalog.Table
	for _, t := range tables {
		if t.MinSeats <= partySize && t.MaxSeats >= partySize {
			candidates = append(candidates, t)
		}
	}
	if len(candidates) == 0 {
		return nil, ErrNoTableFits
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].MaxSeats != candidates[j].MaxSeats {
			return candidates[i].MaxSeats < candidates[j].MaxSeats
		}
		return candidates[i].TableNumber < candidates[j].TableNumber
	})
	return &candidates[0], nil
}

// resolveTableByNumber picks the caller's explicit table choice from the
// available set, validating it still fits partySize.
func resolveTableByNumber(tables []catalog.Table, tableNumber, partySize int) (*catalog.Table, error) {
	for _, t := range tables {
		if t.TableNumber != tableNumber {
			continue
		}
		if t.MinSeats > partySize || t.MaxSeats < partySize {
			return nil, ErrNoTableFits
		}
		picked := t
		return &picked, nil
	}
	return nil, ErrNoTableFits
}

// filterByPosition narrows candidates to those whose position_label
// contains pref, case-insensitively.
func filterByPosition(tables []catalog.Table, pref string) []catalog.Table {
	pref = strings.ToLower(pref)
	var out []catalog.Table
	for _, t := range tables {
		if t.PositionLabel.Valid && strings.Contains(strings.ToLower(t.PositionLabel.String), pref) {
			out = append(out, t)
		}
	}
	return out
}

// CreateTableReservation resolves a table (the caller's explicit
// tableNumber when given, else auto-selection optionally narrowed by
// positionPref) and inserts a confirmed reservation, relying on the
// partial unique index to reject concurrent double-booking of the same
// slot.
func (s *Store) CreateTableReservation(ctx context.Context, businessID, ownerUserID, customerPhone, customerName string, date time.Time, timeOfDay string, partySize int, tableNumber *int, positionPref string) (*Reservation, error) {
	available, err := s.AvailableTables(ctx, ownerUserID, date, timeOfDay)
	if err != nil {
		return nil, err
	}

	var table *catalog.Table
	if tableNumber != nil {
		table, err = resolveTableByNumber(available, *tableNumber, partySize)
		if err != nil {
			return nil, err
		}
	} else {
		candidates := available
		if positionPref != "" {
			candidates = filterByPosition(available, positionPref)
		}
		table, err = selectTable(candidates, partySize)
		if err != nil {
			return nil, err
		}
	}

	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO reservations (id, business_user_id, owner_user_id, table_id, customer_phone_number,
		                           customer_name, reservation_date, reservation_time, number_of_guests,
		                           reservation_type, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'table', 'confirmed', now())`,
		id, businessID, ownerUserID, table.ID, customerPhone, customerName, date, timeOfDay, partySize)
	if err != nil {
		if isUniqueViolation(err) {
			if s.metrics != nil {
				s.metrics.SlotTaken.Inc()
			}
			return nil, ErrSlotTaken
		}
		return nil, fmt.Errorf("create reservation: %w", err)
	}
	if s.metrics != nil {
		s.metrics.Created.Inc()
	}
	return s.Get(ctx, businessID, id)
}

// Get loads a reservation by id, scoped to businessID.
func (s *Store) Get(ctx context.Context, businessID, id string) (*Reservation, error) {
	var r Reservation
	row := s.db.QueryRowContext(ctx, `
		SELECT id, business_user_id, owner_user_id, table_id, customer_phone_number, customer_name,
		       reservation_date, reservation_time, number_of_guests, reservation_type, status, created_at
		FROM reservations WHERE id = $1 AND business_user_id = $2`, id, businessID)
	if err := row.Scan(&r.ID, &r.BusinessID, &r.OwnerUserID, &r.TableID, &r.CustomerPhone, &r.CustomerName,
		&r.Date, &r.Time, &r.NumberOfGuests, &r.ReservationType, &r.Status, &r.CreatedAt); err != nil {
		if dbx.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get reservation %s: %w", id, err)
	}
	return &r, nil
}

// Cancel transitions a reservation to cancelled, freeing its slot for reuse
// (the partial unique index only covers status = confirmed).
func (s *Store) Cancel(ctx context.Context, businessID, id string) (*Reservation, error) {
	return s.UpdateStatus(ctx, businessID, id, StatusCancelled)
}

// UpdateStatus transitions a confirmed reservation to cancelled, completed,
// or no_show. Cancelling or completing releases the slot automatically,
// since availability is derived rather than stored.
func (s *Store) UpdateStatus(ctx context.Context, businessID, id string, status Status) (*Reservation, error) {
	if status != StatusCancelled && status != StatusCompleted && status != StatusNoShow {
		return nil, fmt.Errorf("reservations: %q is not a valid target status", status)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE reservations SET status = $1 WHERE id = $2 AND business_user_id = $3 AND status = 'confirmed'`,
		status, id, businessID)
	if err != nil {
		return nil, fmt.Errorf("update reservation status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return s.Get(ctx, businessID, id)
}

// AddPreOrderedItem attaches a pre-ordered line to a reservation,
// snapshotting the item's current price. Only permitted while the
// reservation is still confirmed.
func (s *Store) AddPreOrderedItem(ctx context.Context, businessID, reservationID, itemID string, qty int, notes string) error {
	reservation, err := s.Get(ctx, businessID, reservationID)
	if err != nil {
		return err
	}
	if reservation.Status != StatusConfirmed {
		return ErrNotConfirmed
	}
	item, err := s.catalog.GetItem(ctx, businessID, itemID)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO reservation_items (id, reservation_id, item_id, quantity, price_at_time, name_at_time, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.NewString(), reservationID, itemID, qty, item.Price, item.Name, nullNotes(notes))
	if err != nil {
		return fmt.Errorf("add pre-ordered item: %w", err)
	}
	return nil
}

// RemoveItem deletes a pre-ordered line from a still-confirmed reservation.
func (s *Store) RemoveItem(ctx context.Context, businessID, reservationID, itemLineID string) error {
	reservation, err := s.Get(ctx, businessID, reservationID)
	if err != nil {
		return err
	}
	if reservation.Status != StatusConfirmed {
		return ErrNotConfirmed
	}
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM reservation_items WHERE id = $1 AND reservation_id = $2`, itemLineID, reservationID)
	if err != nil {
		return fmt.Errorf("remove pre-ordered item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListItems returns a reservation's pre-ordered lines.
func (s *Store) ListItems(ctx context.Context, reservationID string) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, reservation_id, item_id, quantity, price_at_time, name_at_time, notes
		FROM reservation_items WHERE reservation_id = $1`, reservationID)
	if err != nil {
		return nil, fmt.Errorf("list pre-ordered items: %w", err)
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.ReservationID, &it.ItemID, &it.Quantity, &it.PriceAtTime, &it.NameAtTime, &it.Notes); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func nullNotes(notes string) sql.NullString {
	if notes == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: notes, Valid: true}
}
