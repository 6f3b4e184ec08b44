package scheduler

import (
	"context"
	"time"

	"github.com/ahmadsadek12/convoyd/internal/logging"
)

// SessionStore is the subset of session.Store the reaper needs.
type SessionStore interface {
	ReapIdle(ctx context.Context, idleSince time.Time) (int64, error)
}

// SessionReaper closes bot_active sessions that have seen no activity for
// the configured idle interval. Closed sessions cannot be resumed; a later
// inbound message opens a fresh one.
type SessionReaper struct {
	sessions SessionStore
	idle     time.Duration
}

// NewSessionReaper builds a reaper with the given idle interval.
func NewSessionReaper(sessions SessionStore, idle time.Duration) *SessionReaper {
	if idle <= 0 {
		idle = 30 * time.Minute
	}
	return &SessionReaper{sessions: sessions, idle: idle}
}

// Run closes every session idle since now minus the interval.
func (r *SessionReaper) Run(ctx context.Context, now time.Time) error {
	n, err := r.sessions.ReapIdle(ctx, now.Add(-r.idle))
	if err != nil {
		return err
	}
	if n > 0 {
		logging.Logger().Info("reaped idle sessions", "count", n)
	}
	return nil
}
