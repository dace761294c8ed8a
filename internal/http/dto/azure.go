package dto

import (
	"time"

	"sigdesk.app/server/internal/model"
)

type SaveAzureSettingsRequest struct {
	ClientSecret *string `json:"client_secret,omitempty" binding:"omitempty,min=1,max=1024"`
	TenantID     string  `json:"tenant_id" binding:"required,tenant_id"`
	ClientID     string  `json:"client_id" binding:"required,client_id"`
}

// AzureSettingsResponse never carries the client secret, only whether one
// is stored.
type AzureSettingsResponse struct {
	ConsentGrantedAt *time.Time `json:"consent_granted_at,omitempty"`
	LastVerifiedAt   *time.Time `json:"last_verified_at,omitempty"`
	LastSyncAt       *time.Time `json:"last_sync_at,omitempty"`
	TenantID         string     `json:"tenant_id"`
	ClientID         string     `json:"client_id"`
	HasSecret        bool       `json:"has_secret"`
	ConsentGranted   bool       `json:"consent_granted"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

type ConsentURLResponse struct {
	URL string `json:"url"`
}

func ToAzureSettingsResponse(s *model.AzureSettings) *AzureSettingsResponse {
	return &AzureSettingsResponse{
		ConsentGrantedAt: s.ConsentGrantedAt,
		LastVerifiedAt:   s.LastVerifiedAt,
		LastSyncAt:       s.LastSyncAt,
		TenantID:         s.TenantID,
		ClientID:         s.ClientID,
		HasSecret:        s.HasSecret(),
		ConsentGranted:   s.ConsentGrantedAt != nil,
		UpdatedAt:        s.UpdatedAt,
	}
}
