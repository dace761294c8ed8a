package model

import "time"

type DeploymentStatus string

const (
	DeploymentStatusQueued    DeploymentStatus = "queued"
	DeploymentStatusRunning   DeploymentStatus = "running"
	DeploymentStatusCompleted DeploymentStatus = "completed"
	DeploymentStatusFailed    DeploymentStatus = "failed"
)

func (s DeploymentStatus) IsTerminal() bool {
	return s == DeploymentStatusCompleted || s == DeploymentStatusFailed
}

type Deployment struct {
	ID             int64            `json:"id"`
	OrganizationID int64            `json:"organization_id"`
	TemplateID     int64            `json:"template_id"`
	Status         DeploymentStatus `json:"status"`
	TotalUsers     int32            `json:"total_users"`
	Succeeded      int32            `json:"succeeded"`
	Failed         int32            `json:"failed"`
	Error          *string          `json:"error,omitempty"`
	RequestedBy    int64            `json:"requested_by"`
	CreatedAt      time.Time        `json:"created_at"`
	StartedAt      *time.Time       `json:"started_at,omitempty"`
	FinishedAt     *time.Time       `json:"finished_at,omitempty"`
}

// DeployedSignature is the rendered signature for one directory user produced
// by a deployment. The most recent row per user is the live signature.
type DeployedSignature struct {
	DeploymentID    int64     `json:"deployment_id"`
	DirectoryUserID int64     `json:"directory_user_id"`
	OrganizationID  int64     `json:"organization_id"`
	HTML            string    `json:"html"`
	DeployedAt      time.Time `json:"deployed_at"`
}
