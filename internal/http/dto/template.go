package dto

import (
	"time"

	"sigdesk.app/server/internal/model"
)

type CreateTemplateRequest struct {
	Description *string `json:"description,omitempty" binding:"omitempty,max=500"`
	Name        string  `json:"name" binding:"required,max=100"`
	HTML        string  `json:"html" binding:"required"`
	IsDefault   bool    `json:"is_default"`
}

type UpdateTemplateRequest struct {
	Name        *string `json:"name,omitempty" binding:"omitempty,max=100"`
	Description *string `json:"description,omitempty" binding:"omitempty,max=500"`
	HTML        *string `json:"html,omitempty"`
}

type PreviewTemplateRequest struct {
	DirectoryUserID *string `json:"directory_user_id,omitempty" binding:"omitempty,numeric"`
	HTML            string  `json:"html" binding:"required"`
}

type PreviewTemplateResponse struct {
	HTML string `json:"html"`
}

type TemplateResponse struct {
	Description    *string   `json:"description,omitempty"`
	ID             int64     `json:"id,string"`
	OrganizationID int64     `json:"organization_id,string"`
	CreatedBy      int64     `json:"created_by,string"`
	Name           string    `json:"name"`
	HTML           string    `json:"html"`
	IsDefault      bool      `json:"is_default"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func ToTemplateResponse(t *model.SignatureTemplate) TemplateResponse {
	return TemplateResponse{
		Description:    t.Description,
		ID:             t.ID,
		OrganizationID: t.OrganizationID,
		CreatedBy:      t.CreatedBy,
		Name:           t.Name,
		HTML:           t.HTML,
		IsDefault:      t.IsDefault,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}

func ToTemplateResponses(tpls []model.SignatureTemplate) []TemplateResponse {
	out := make([]TemplateResponse, 0, len(tpls))
	for i := range tpls {
		out = append(out, ToTemplateResponse(&tpls[i]))
	}
	return out
}
