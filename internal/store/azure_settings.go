package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"sigdesk.app/server/core/db"
	"sigdesk.app/server/internal/model"
)

const azureSettingsColumns = `organization_id, tenant_id, client_id, secret_ciphertext, secret_nonce,
	consent_granted_at, last_verified_at, last_sync_at, created_at, updated_at`

type azureSettingsStore struct {
	db db.DBTX
}

func newAzureSettingsStore(conn db.DBTX) AzureSettingsStore {
	return &azureSettingsStore{db: conn}
}

func (s *azureSettingsStore) Get(ctx context.Context, orgID int64) (*model.AzureSettings, error) {
	settings, err := scanAzureSettings(s.db.QueryRow(ctx, `
		SELECT `+azureSettingsColumns+` FROM azure_settings WHERE organization_id = $1`, orgID))
	return settings, notFound(err)
}

// Upsert replaces tenant, client and secret. Changing the tenant or client
// clears verification and consent since they no longer apply.
func (s *azureSettingsStore) Upsert(ctx context.Context, settings *model.AzureSettings) error {
	row, err := scanAzureSettings(s.db.QueryRow(ctx, `
		INSERT INTO azure_settings (organization_id, tenant_id, client_id, secret_ciphertext, secret_nonce)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (organization_id) DO UPDATE SET
			tenant_id = EXCLUDED.tenant_id,
			client_id = EXCLUDED.client_id,
			secret_ciphertext = EXCLUDED.secret_ciphertext,
			secret_nonce = EXCLUDED.secret_nonce,
			last_verified_at = CASE
				WHEN azure_settings.tenant_id = EXCLUDED.tenant_id AND azure_settings.client_id = EXCLUDED.client_id
				THEN azure_settings.last_verified_at END,
			consent_granted_at = CASE
				WHEN azure_settings.tenant_id = EXCLUDED.tenant_id AND azure_settings.client_id = EXCLUDED.client_id
				THEN azure_settings.consent_granted_at END,
			updated_at = now()
		RETURNING `+azureSettingsColumns,
		settings.OrganizationID, settings.TenantID, settings.ClientID, settings.SecretCiphertext, settings.SecretNonce))
	if err != nil {
		return err
	}
	*settings = *row
	return nil
}

func (s *azureSettingsStore) MarkVerified(ctx context.Context, orgID int64, at time.Time) error {
	return requireRow(s.db.Exec(ctx, `
		UPDATE azure_settings SET last_verified_at = $2, updated_at = now() WHERE organization_id = $1`, orgID, at))
}

func (s *azureSettingsStore) MarkSynced(ctx context.Context, orgID int64, at time.Time) error {
	return requireRow(s.db.Exec(ctx, `
		UPDATE azure_settings SET last_sync_at = $2, updated_at = now() WHERE organization_id = $1`, orgID, at))
}

// MarkConsented records admin consent only when it was granted for the
// configured tenant.
func (s *azureSettingsStore) MarkConsented(ctx context.Context, orgID int64, tenantID string, at time.Time) error {
	return requireRow(s.db.Exec(ctx, `
		UPDATE azure_settings SET consent_granted_at = $3, updated_at = now()
		WHERE organization_id = $1 AND tenant_id = $2`, orgID, tenantID, at))
}

func scanAzureSettings(row pgx.Row) (*model.AzureSettings, error) {
	var a model.AzureSettings
	if err := row.Scan(&a.OrganizationID, &a.TenantID, &a.ClientID, &a.SecretCiphertext, &a.SecretNonce,
		&a.ConsentGrantedAt, &a.LastVerifiedAt, &a.LastSyncAt, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}
