package dispatch

import (
	"context"
	"fmt"

	"github.com/ahmadsadek12/convoyd/internal/dbx"
)

// IntegrationStore loads per-tenant channel credentials from the
// bot_integrations table.
type IntegrationStore struct {
	db *dbx.DB
}

// NewIntegrationStore builds an IntegrationStore over db.
func NewIntegrationStore(db *dbx.DB) *IntegrationStore {
	return &IntegrationStore{db: db}
}

// Get implements CredentialsStore.
func (s *IntegrationStore) Get(ctx context.Context, businessID, platform string) (Credentials, error) {
	var creds Credentials
	creds.BusinessID = businessID
	creds.Platform = platform

	var phoneOrPageID *string
	err := s.db.QueryRowContext(ctx, `
		SELECT access_token, phone_or_page_id
		FROM bot_integrations
		WHERE business_id = $1 AND platform = $2`, businessID, platform,
	).Scan(&creds.AccessToken, &phoneOrPageID)
	if err != nil {
		if dbx.IsNoRows(err) {
			return Credentials{}, fmt.Errorf("no %s integration configured for business %s", platform, businessID)
		}
		return Credentials{}, fmt.Errorf("load %s credentials for business %s: %w", platform, businessID, err)
	}
	if phoneOrPageID != nil {
		creds.PhoneOrPageID = *phoneOrPageID
	}
	return creds, nil
}

// ResolveBusinessID maps an inbound webhook's channel-native sender id
// (WhatsApp phone_number_id, Telegram bot id, IG/FB page id) back to the
// owning business, so the webhook handler can resolve a principal before
// the engine ever sees the message.
func (s *IntegrationStore) ResolveBusinessID(ctx context.Context, platform, phoneOrPageID string) (string, error) {
	var businessID string
	err := s.db.QueryRowContext(ctx, `
		SELECT business_id FROM bot_integrations
		WHERE platform = $1 AND phone_or_page_id = $2`, platform, phoneOrPageID,
	).Scan(&businessID)
	if err != nil {
		if dbx.IsNoRows(err) {
			return "", fmt.Errorf("no business registered for %s sender %s", platform, phoneOrPageID)
		}
		return "", fmt.Errorf("resolve business for %s sender %s: %w", platform, phoneOrPageID, err)
	}
	return businessID, nil
}

// Upsert stores or replaces businessID's credentials for platform, used by
// the admin surface's integration-connect endpoint.
func (s *IntegrationStore) Upsert(ctx context.Context, creds Credentials) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bot_integrations (business_id, platform, access_token, phone_or_page_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (business_id, platform)
		DO UPDATE SET access_token = EXCLUDED.access_token, phone_or_page_id = EXCLUDED.phone_or_page_id`,
		creds.BusinessID, creds.Platform, creds.AccessToken, creds.PhoneOrPageID)
	if err != nil {
		return fmt.Errorf("upsert %s integration for business %s: %w", creds.Platform, creds.BusinessID, err)
	}
	return nil
}
