package model

import "time"

// AzureSettings holds one organization's app registration. The client secret
// is only ever persisted sealed.
type AzureSettings struct {
	OrganizationID   int64      `json:"organization_id"`
	TenantID         string     `json:"tenant_id"`
	ClientID         string     `json:"client_id"`
	SecretCiphertext []byte     `json:"-"`
	SecretNonce      []byte     `json:"-"`
	ConsentGrantedAt *time.Time `json:"consent_granted_at,omitempty"`
	LastVerifiedAt   *time.Time `json:"last_verified_at,omitempty"`
	LastSyncAt       *time.Time `json:"last_sync_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func (s *AzureSettings) HasSecret() bool {
	return len(s.SecretCiphertext) > 0 && len(s.SecretNonce) > 0
}
