package dto

import (
	"time"

	"sigdesk.app/server/internal/model"
)

type CreateOrganizationRequest struct {
	Name   string  `json:"name" binding:"required,max=100"`
	Slug   *string `json:"slug,omitempty" binding:"omitempty,slug"`
	Domain *string `json:"domain,omitempty" binding:"omitempty,max=253"`
}

type UpdateOrganizationRequest struct {
	Name   *string `json:"name,omitempty" binding:"omitempty,max=100"`
	Domain *string `json:"domain,omitempty" binding:"omitempty,max=253"`
}

type OrganizationResponse struct {
	Domain      *string   `json:"domain,omitempty"`
	ID          int64     `json:"id,string"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	AdminUserID int64     `json:"admin_user_id,string"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func ToOrganizationResponse(org *model.Organization) *OrganizationResponse {
	return &OrganizationResponse{
		Domain:      org.Domain,
		ID:          org.ID,
		Name:        org.Name,
		Slug:        org.Slug,
		AdminUserID: org.AdminUserID,
		CreatedAt:   org.CreatedAt,
		UpdatedAt:   org.UpdatedAt,
	}
}
