package model

import "time"

// SignatureTemplate is an HTML fragment with {{placeholder}} tokens. HTML is
// stored already sanitized.
type SignatureTemplate struct {
	ID             int64     `json:"id"`
	OrganizationID int64     `json:"organization_id"`
	Name           string    `json:"name"`
	Description    *string   `json:"description,omitempty"`
	HTML           string    `json:"html"`
	IsDefault      bool      `json:"is_default"`
	CreatedBy      int64     `json:"created_by"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
