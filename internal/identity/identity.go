// Package identity resolves business, branch, employee, and customer
// principals from a channel-qualified phone identity, and gates engine
// access on the tenant's addon/subscription state.
package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ahmadsadek12/convoyd/internal/dbx"
)

// Kind is a principal variant.
type Kind string

const (
	KindAdmin         Kind = "admin"
	KindBusinessOwner Kind = "business_owner"
	KindBranch        Kind = "branch"
	KindEmployee      Kind = "employee"
)

// ErrEngineDisabled is returned when a tenant's base_bot addon is inactive.
// base_bot acts as the tenant-level master switch for the whole engine.
var ErrEngineDisabled = errors.New("identity: engine disabled for this business (base_bot addon inactive)")

// ErrPrincipalNotFound means no user row matches the lookup.
var ErrPrincipalNotFound = errors.New("identity: principal not found")

// Principal is a resolved user row.
type Principal struct {
	ID           string
	Kind         Kind
	ParentUserID string
	BusinessType string
	Name         string
	Timezone     string
}

// BusinessID returns the principal's owning business id: itself for an
// owner/admin, its parent for a branch or employee.
func (p Principal) BusinessID() string {
	if p.Kind == KindBranch || p.Kind == KindEmployee {
		return p.ParentUserID
	}
	return p.ID
}

// Context is the resolved tenant context for one inbound message: business,
// owner, optional branch, and the customer phone.
type Context struct {
	Business      Principal
	Owner         Principal
	Branch        *Principal
	CustomerPhone string
	Platform      string
}

// Store resolves principals and addon state from the operational database.
type Store struct {
	db *dbx.DB
}

// NewStore builds a Store over db.
func NewStore(db *dbx.DB) *Store {
	return &Store{db: db}
}

// GetPrincipal loads a user row by id.
func (s *Store) GetPrincipal(ctx context.Context, id string) (*Principal, error) {
	var p Principal
	var parent sql.NullString
	row := s.db.QueryRowContext(ctx, `
		SELECT id, kind, parent_user_id, business_type, name, timezone
		FROM users WHERE id = $1`, id)
	if err := row.Scan(&p.ID, &p.Kind, &parent, &p.BusinessType, &p.Name, &p.Timezone); err != nil {
		if dbx.IsNoRows(err) {
			return nil, ErrPrincipalNotFound
		}
		return nil, fmt.Errorf("get principal %s: %w", id, err)
	}
	p.ParentUserID = parent.String
	return &p, nil
}

// IsAddonActive checks whether (business_id, addon_key) is active.
func (s *Store) IsAddonActive(ctx context.Context, businessID, addonKey string) (bool, error) {
	var status string
	row := s.db.QueryRowContext(ctx, `
		SELECT status FROM business_addons WHERE business_id = $1 AND addon_key = $2`,
		businessID, addonKey)
	if err := row.Scan(&status); err != nil {
		if dbx.IsNoRows(err) {
			return false, nil
		}
		return false, fmt.Errorf("check addon %s for %s: %w", addonKey, businessID, err)
	}
	return status == "active", nil
}

// ListActiveAddons returns the set of addon keys currently active for a
// business, used to build the tool catalog's eligibility context.
func (s *Store) ListActiveAddons(ctx context.Context, businessID string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT addon_key FROM business_addons WHERE business_id = $1 AND status = 'active'`, businessID)
	if err != nil {
		return nil, fmt.Errorf("list active addons for %s: %w", businessID, err)
	}
	defer rows.Close()

	addons := make(map[string]bool)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		addons[key] = true
	}
	return addons, rows.Err()
}

// SetAddonStatus activates or deactivates businessID's addonKey, used by
// the admin surface's addon-toggle endpoint (the base_bot key is the
// tenant-level master switch gating every other engine operation).
func (s *Store) SetAddonStatus(ctx context.Context, businessID, addonKey string, active bool) error {
	status := "inactive"
	if active {
		status = "active"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO business_addons (business_id, addon_key, status)
		VALUES ($1, $2, $3)
		ON CONFLICT (business_id, addon_key) DO UPDATE SET status = EXCLUDED.status`,
		businessID, addonKey, status)
	if err != nil {
		return fmt.Errorf("set addon %s=%s for %s: %w", addonKey, status, businessID, err)
	}
	return nil
}

// ResolveContext resolves the full tenant context for an owner principal
// handling a message from customerPhone on platform, enforcing the base_bot
// master switch before anything else runs.
func (s *Store) ResolveContext(ctx context.Context, ownerUserID, customerPhone, platform string) (*Context, error) {
	owner, err := s.GetPrincipal(ctx, ownerUserID)
	if err != nil {
		return nil, err
	}

	businessID := owner.BusinessID()
	active, err := s.IsAddonActive(ctx, businessID, "base_bot")
	if err != nil {
		return nil, err
	}
	if !active {
		return nil, ErrEngineDisabled
	}

	business := owner
	if owner.Kind == KindBranch || owner.Kind == KindEmployee {
		business, err = s.GetPrincipal(ctx, businessID)
		if err != nil {
			return nil, err
		}
	}

	tenantCtx := &Context{
		Business:      *business,
		Owner:         *owner,
		CustomerPhone: customerPhone,
		Platform:      platform,
	}
	if owner.Kind == KindBranch {
		tenantCtx.Branch = owner
	}
	return tenantCtx, nil
}
