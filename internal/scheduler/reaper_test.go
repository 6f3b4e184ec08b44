package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSessionStore struct {
	gotSince time.Time
	reaped   int64
	err      error
}

func (f *fakeSessionStore) ReapIdle(_ context.Context, idleSince time.Time) (int64, error) {
	f.gotSince = idleSince
	return f.reaped, f.err
}

func TestSessionReaper_UsesConfiguredIdleInterval(t *testing.T) {
	store := &fakeSessionStore{reaped: 3}
	reaper := NewSessionReaper(store, 45*time.Minute)

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, reaper.Run(context.Background(), now))
	assert.Equal(t, now.Add(-45*time.Minute), store.gotSince)
}

func TestSessionReaper_DefaultsIdleInterval(t *testing.T) {
	store := &fakeSessionStore{}
	reaper := NewSessionReaper(store, 0)

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, reaper.Run(context.Background(), now))
	assert.Equal(t, now.Add(-30*time.Minute), store.gotSince)
}

func TestSessionReaper_PropagatesStoreError(t *testing.T) {
	store := &fakeSessionStore{err: errors.New("db down")}
	reaper := NewSessionReaper(store, time.Hour)
	require.Error(t, reaper.Run(context.Background(), time.Now()))
}
