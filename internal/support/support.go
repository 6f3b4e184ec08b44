// Package support implements the human-assistance ticket thread: tickets
// auto-linked to the session, and optionally the order or reservation, that
// prompted them.
package support

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ahmadsadek12/convoyd/internal/dbx"
	"github.com/ahmadsadek12/convoyd/internal/session"
)

// Status is a ticket's lifecycle state.
type Status string

const (
	StatusOpen            Status = "open"
	StatusInProgress      Status = "in_progress"
	StatusWaitingCustomer Status = "waiting_customer"
	StatusClosed          Status = "closed"
)

// Priority is a ticket's urgency.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Ticket is one support_tickets row.
type Ticket struct {
	ID                    string
	BusinessID            string
	CustomerID            string
	RelatedOrderID        sql.NullString
	RelatedReservationID  sql.NullString
	SessionID             sql.NullString
	Subject               sql.NullString
	Status                Status
	Priority              Priority
	AssignedEmployeeID    sql.NullString
	CreatedAt             time.Time
}

// Message is one support_ticket_messages row.
type Message struct {
	ID        string
	TicketID  string
	Sender    session.SenderType
	Body      string
	CreatedAt time.Time
}

// ErrNotFound means no ticket row matches the lookup.
var ErrNotFound = errors.New("support: not found")

// Store is the support access layer.
type Store struct {
	db *dbx.DB
}

// NewStore builds a Store.
func NewStore(db *dbx.DB) *Store {
	return &Store{db: db}
}

// OpenTicketParams carries the optional linkage fields for a new ticket.
type OpenTicketParams struct {
	BusinessID           string
	CustomerID           string
	SessionID            string
	RelatedOrderID       string
	RelatedReservationID string
	Subject              string
	Priority             Priority
}

// Open creates a new ticket in the open state, auto-linked to whichever of
// session/order/reservation the caller supplies.
func (s *Store) Open(ctx context.Context, p OpenTicketParams) (*Ticket, error) {
	if p.Priority == "" {
		p.Priority = PriorityMedium
	}
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO support_tickets (id, business_id, customer_id, related_order_id, related_reservation_id,
		                              session_id, subject, status, priority, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'open', $8, now())`,
		id, p.BusinessID, p.CustomerID, nullable(p.RelatedOrderID), nullable(p.RelatedReservationID),
		nullable(p.SessionID), nullable(p.Subject), p.Priority)
	if err != nil {
		return nil, fmt.Errorf("open ticket: %w", err)
	}
	return s.Get(ctx, p.BusinessID, id)
}

// Get loads a ticket by id, scoped to businessID.
func (s *Store) Get(ctx context.Context, businessID, id string) (*Ticket, error) {
	var t Ticket
	row := s.db.QueryRowContext(ctx, `
		SELECT id, business_id, customer_id, related_order_id, related_reservation_id, session_id,
		       subject, status, priority, assigned_employee_id, created_at
		FROM support_tickets WHERE id = $1 AND business_id = $2`, id, businessID)
	if err := row.Scan(&t.ID, &t.BusinessID, &t.CustomerID, &t.RelatedOrderID, &t.RelatedReservationID,
		&t.SessionID, &t.Subject, &t.Status, &t.Priority, &t.AssignedEmployeeID, &t.CreatedAt); err != nil {
		if dbx.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get ticket %s: %w", id, err)
	}
	return &t, nil
}

// Assign sets the employee responsible for a ticket and marks it in_progress.
func (s *Store) Assign(ctx context.Context, ticketID, employeeID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE support_tickets SET assigned_employee_id = $1, status = 'in_progress' WHERE id = $2`,
		employeeID, ticketID)
	if err != nil {
		return fmt.Errorf("assign ticket: %w", err)
	}
	return nil
}

// SetStatus transitions a ticket's status.
func (s *Store) SetStatus(ctx context.Context, ticketID string, status Status) error {
	_, err := s.db.ExecContext(ctx, `UPDATE support_tickets SET status = $1 WHERE id = $2`, status, ticketID)
	if err != nil {
		return fmt.Errorf("set ticket status: %w", err)
	}
	return nil
}

// AppendMessage records one thread entry.
func (s *Store) AppendMessage(ctx context.Context, ticketID string, sender session.SenderType, body string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO support_ticket_messages (id, ticket_id, sender_type, body, created_at)
		VALUES ($1, $2, $3, $4, now())`, uuid.NewString(), ticketID, sender, body)
	if err != nil {
		return fmt.Errorf("append ticket message: %w", err)
	}
	return nil
}

// Thread returns a ticket's messages, oldest first.
func (s *Store) Thread(ctx context.Context, ticketID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ticket_id, sender_type, body, created_at
		FROM support_ticket_messages WHERE ticket_id = $1 ORDER BY created_at`, ticketID)
	if err != nil {
		return nil, fmt.Errorf("load ticket thread: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.TicketID, &m.Sender, &m.Body, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func nullable(v string) sql.NullString {
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}
