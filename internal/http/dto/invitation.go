package dto

import (
	"time"

	"sigdesk.app/server/internal/model"
)

type CreateInvitationRequest struct {
	Email string `json:"email" binding:"required,max=254"`
	Role  string `json:"role,omitempty" binding:"omitempty,oneof=admin member"`
}

type InvitationResponse struct {
	AcceptedAt *time.Time `json:"accepted_at,omitempty"`
	ID         int64      `json:"id,string"`
	Email      string     `json:"email"`
	Role       string     `json:"role"`
	Status     string     `json:"status"`
	ExpiresAt  time.Time  `json:"expires_at"`
	CreatedAt  time.Time  `json:"created_at"`
}

type CreateInvitationResponse struct {
	Invitation InvitationResponse `json:"invitation"`
	InviteURL  string             `json:"invite_url"`
}

type ValidateInvitationResponse struct {
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
	Valid     bool      `json:"valid"`
}

func ToInvitationResponse(inv *model.Invitation) InvitationResponse {
	return InvitationResponse{
		AcceptedAt: inv.AcceptedAt,
		ID:         inv.ID,
		Email:      inv.Email,
		Role:       string(inv.Role),
		Status:     string(inv.Status),
		ExpiresAt:  inv.ExpiresAt,
		CreatedAt:  inv.CreatedAt,
	}
}

func ToInvitationResponses(invs []model.Invitation) []InvitationResponse {
	out := make([]InvitationResponse, 0, len(invs))
	for i := range invs {
		out = append(out, ToInvitationResponse(&invs[i]))
	}
	return out
}
