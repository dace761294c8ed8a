package dto

import "time"

type AuthURLResponse struct {
	AuthorizationURL string `json:"authorization_url"`
	State            string `json:"state"`
}

type ExchangeRequest struct {
	Code        string  `json:"code" binding:"required,max=512"`
	InviteToken *string `json:"invite_token,omitempty" binding:"omitempty,max=128"`
}

type ExchangeResponse struct {
	User      UserResponse `json:"user"`
	SessionID string       `json:"session_id"`
	ExpiresAt time.Time    `json:"expires_at"`
}

type SessionResponse struct {
	User            UserResponse `json:"user"`
	HasOrganization bool         `json:"has_organization"`
}
