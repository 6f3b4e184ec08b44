// Package session persists chat sessions and their transcripts in a
// Postgres-backed store so a human agent and the engine see the same state,
// and implements the bot/human handover protocol.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ahmadsadek12/convoyd/internal/dbx"
)

// State is a chat session's handover state.
type State string

const (
	StateBotActive   State = "bot_active"
	StateHumanLocked State = "human_locked"
	StateClosed      State = "closed"
)

// SenderType identifies who authored a chat message.
type SenderType string

const (
	SenderCustomer SenderType = "customer"
	SenderBot      SenderType = "bot"
	SenderEmployee SenderType = "employee"
	SenderSystem   SenderType = "system"
)

// Session is one chat_sessions row.
type Session struct {
	ID                 string
	BusinessID         string
	CustomerID         string
	Platform           string
	State              State
	AssignedEmployeeID sql.NullString
	LastActivityAt     time.Time
	CreatedAt          time.Time
}

// Message is one chat_messages row.
type Message struct {
	ID        string
	SessionID string
	Sender    SenderType
	Body      string
	CreatedAt time.Time
}

// ErrNotFound means no session row matches the lookup.
var ErrNotFound = errors.New("session: not found")

// ErrHumanLocked is returned when the engine attempts to respond to a
// session a human employee currently owns.
var ErrHumanLocked = errors.New("session: locked to a human agent")

// Store is the session access layer.
type Store struct {
	db *dbx.DB
}

// NewStore builds a Store.
func NewStore(db *dbx.DB) *Store {
	return &Store{db: db}
}

// GetOrCreate returns the active (non-closed) session for (businessID,
// customerID, platform), creating a fresh bot_active one if none exists.
func (s *Store) GetOrCreate(ctx context.Context, businessID, customerID, platform string) (*Session, error) {
	sess, err := s.getActive(ctx, businessID, customerID, platform)
	if err != nil {
		return nil, err
	}
	if sess != nil {
		return sess, nil
	}

	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO chat_sessions (id, business_id, customer_id, platform, state, last_activity_at, created_at)
		VALUES ($1, $2, $3, $4, 'bot_active', now(), now())`, id, businessID, customerID, platform)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return s.Get(ctx, id)
}

func (s *Store) getActive(ctx context.Context, businessID, customerID, platform string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, business_id, customer_id, platform, state, assigned_employee_id, last_activity_at, created_at
		FROM chat_sessions
		WHERE business_id = $1 AND customer_id = $2 AND platform = $3 AND state != 'closed'
		ORDER BY created_at DESC LIMIT 1`, businessID, customerID, platform)
	sess, err := scanSession(row)
	if err != nil {
		if dbx.IsNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return sess, nil
}

// Get loads a session by id.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, business_id, customer_id, platform, state, assigned_employee_id, last_activity_at, created_at
		FROM chat_sessions WHERE id = $1`, id)
	sess, err := scanSession(row)
	if err != nil {
		if dbx.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return sess, nil
}

// AppendMessage records one transcript entry and bumps last_activity_at.
func (s *Store) AppendMessage(ctx context.Context, sessionID string, sender SenderType, body string) error {
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO chat_messages (id, session_id, sender_type, body, created_at)
			VALUES ($1, $2, $3, $4, now())`, uuid.NewString(), sessionID, sender, body); err != nil {
			return fmt.Errorf("append message: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE chat_sessions SET last_activity_at = now() WHERE id = $1`, sessionID); err != nil {
			return fmt.Errorf("bump session activity: %w", err)
		}
		return nil
	})
}

// History returns the transcript for a session, oldest first.
func (s *Store) History(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, sender_type, body, created_at
		FROM chat_messages WHERE session_id = $1 ORDER BY created_at DESC LIMIT $2`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Sender, &m.Body, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, rows.Err()
}

// HandToHuman locks the session, taking the bot out of the loop. An empty
// employeeID leaves the session unassigned for the pickup queue.
func (s *Store) HandToHuman(ctx context.Context, sessionID, employeeID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE chat_sessions SET state = 'human_locked', assigned_employee_id = NULLIF($1, '') WHERE id = $2 AND state != 'closed'`,
		employeeID, sessionID)
	if err != nil {
		return fmt.Errorf("hand to human: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ReturnToBot releases a human lock, re-enabling automatic replies.
func (s *Store) ReturnToBot(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE chat_sessions SET state = 'bot_active', assigned_employee_id = NULL WHERE id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("return to bot: %w", err)
	}
	return nil
}

// Close marks a session closed; it no longer counts as active for GetOrCreate.
func (s *Store) Close(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE chat_sessions SET state = 'closed' WHERE id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	return nil
}

// ReapIdle closes every bot_active session whose last_activity_at is older
// than idleSince, per the configured idle-session timeout.
func (s *Store) ReapIdle(ctx context.Context, idleSince time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE chat_sessions SET state = 'closed' WHERE state = 'bot_active' AND last_activity_at < $1`, idleSince)
	if err != nil {
		return 0, fmt.Errorf("reap idle sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func scanSession(row *sql.Row) (*Session, error) {
	var s Session
	if err := row.Scan(&s.ID, &s.BusinessID, &s.CustomerID, &s.Platform, &s.State, &s.AssignedEmployeeID,
		&s.LastActivityAt, &s.CreatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}
