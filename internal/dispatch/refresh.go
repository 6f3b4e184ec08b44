package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ahmadsadek12/convoyd/internal/lock"
)

// refreshLockTTL bounds how long one process may hold a tenant's token
// refresh lock; a rotation is a single upsert, so seconds suffice.
const refreshLockTTL = 30 * time.Second

// ErrRefreshInProgress is returned when another process holds the tenant's
// refresh lock; the caller retries with the credentials already on file.
var ErrRefreshInProgress = errors.New("dispatch: a credential refresh is already in progress")

// TokenRotator serializes per-tenant channel-credential rotation behind a
// Redis lock, so two dashboard saves or two lazy refreshes for the same
// tenant never interleave.
type TokenRotator struct {
	store      *IntegrationStore
	locks      *lock.Client
	dispatcher *Dispatcher
}

// NewTokenRotator builds a TokenRotator. locks may be nil in tests, in
// which case rotation runs unguarded.
func NewTokenRotator(store *IntegrationStore, locks *lock.Client, dispatcher *Dispatcher) *TokenRotator {
	return &TokenRotator{store: store, locks: locks, dispatcher: dispatcher}
}

// Rotate stores creds as the tenant's new integration record and drops the
// cached sender so the next Send authenticates with the new token.
func (r *TokenRotator) Rotate(ctx context.Context, creds Credentials) error {
	if creds.BusinessID == "" || creds.Platform == "" {
		return fmt.Errorf("dispatch: rotation needs a business id and platform")
	}

	release, err := r.acquire(ctx, creds.BusinessID, creds.Platform)
	if err != nil {
		return err
	}
	defer release()

	if err := r.store.Upsert(ctx, creds); err != nil {
		return err
	}
	if r.dispatcher != nil {
		r.dispatcher.Invalidate(creds.BusinessID, creds.Platform)
	}
	return nil
}

func (r *TokenRotator) acquire(ctx context.Context, businessID, platform string) (func(), error) {
	if r.locks == nil {
		return func() {}, nil
	}
	handle, acquired, err := r.locks.Acquire(ctx, lock.ChannelTokenRefreshKey(businessID, platform), refreshLockTTL)
	if err != nil {
		return nil, fmt.Errorf("dispatch: acquire refresh lock: %w", err)
	}
	if !acquired {
		return nil, ErrRefreshInProgress
	}
	return func() { _ = handle.Release(ctx) }, nil
}
