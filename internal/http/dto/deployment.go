package dto

import (
	"time"

	"sigdesk.app/server/internal/model"
)

type CreateDeploymentRequest struct {
	// TemplateID falls back to the organization's default template.
	TemplateID *string `json:"template_id,omitempty" binding:"omitempty,numeric"`
}

type ListQuery struct {
	Limit  int32 `form:"limit" binding:"omitempty,min=1,max=200"`
	Offset int32 `form:"offset" binding:"omitempty,min=0"`
}

type DeploymentResponse struct {
	Error       *string    `json:"error,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	ID          int64      `json:"id,string"`
	TemplateID  int64      `json:"template_id,string"`
	RequestedBy int64      `json:"requested_by,string"`
	Status      string     `json:"status"`
	TotalUsers  int32      `json:"total_users"`
	Succeeded   int32      `json:"succeeded"`
	Failed      int32      `json:"failed"`
	CreatedAt   time.Time  `json:"created_at"`
}

type SignatureResponse struct {
	DeploymentID    int64     `json:"deployment_id,string"`
	DirectoryUserID int64     `json:"directory_user_id,string"`
	HTML            string    `json:"html"`
	DeployedAt      time.Time `json:"deployed_at"`
}

func ToDeploymentResponse(d *model.Deployment) DeploymentResponse {
	return DeploymentResponse{
		Error:       d.Error,
		StartedAt:   d.StartedAt,
		FinishedAt:  d.FinishedAt,
		ID:          d.ID,
		TemplateID:  d.TemplateID,
		RequestedBy: d.RequestedBy,
		Status:      string(d.Status),
		TotalUsers:  d.TotalUsers,
		Succeeded:   d.Succeeded,
		Failed:      d.Failed,
		CreatedAt:   d.CreatedAt,
	}
}

func ToDeploymentResponses(ds []model.Deployment) []DeploymentResponse {
	out := make([]DeploymentResponse, 0, len(ds))
	for i := range ds {
		out = append(out, ToDeploymentResponse(&ds[i]))
	}
	return out
}

func ToSignatureResponse(s *model.DeployedSignature) SignatureResponse {
	return SignatureResponse{
		DeploymentID:    s.DeploymentID,
		DirectoryUserID: s.DirectoryUserID,
		HTML:            s.HTML,
		DeployedAt:      s.DeployedAt,
	}
}
