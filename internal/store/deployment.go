package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"sigdesk.app/server/core/db"
	"sigdesk.app/server/internal/model"
)

const deploymentColumns = `id, organization_id, template_id, status, total_users, succeeded, failed, error,
	requested_by, created_at, started_at, finished_at`

type deploymentStore struct {
	db db.DBTX
}

func newDeploymentStore(conn db.DBTX) DeploymentStore {
	return &deploymentStore{db: conn}
}

func (s *deploymentStore) Create(ctx context.Context, d *model.Deployment) error {
	row, err := scanDeployment(s.db.QueryRow(ctx, `
		INSERT INTO deployments (id, organization_id, template_id, status, requested_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+deploymentColumns,
		d.ID, d.OrganizationID, d.TemplateID, string(d.Status), d.RequestedBy))
	if err != nil {
		return err
	}
	*d = *row
	return nil
}

func (s *deploymentStore) GetByID(ctx context.Context, orgID, id int64) (*model.Deployment, error) {
	d, err := scanDeployment(s.db.QueryRow(ctx, `
		SELECT `+deploymentColumns+` FROM deployments WHERE organization_id = $1 AND id = $2`, orgID, id))
	return d, notFound(err)
}

func (s *deploymentStore) List(ctx context.Context, orgID int64, limit, offset int32) ([]model.Deployment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+deploymentColumns+` FROM deployments
		WHERE organization_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`, orgID, limit, offset)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanDeployment)
}

func (s *deploymentStore) HasActive(ctx context.Context, orgID int64) (bool, error) {
	var active bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM deployments WHERE organization_id = $1 AND status IN ('queued', 'running'))`,
		orgID).Scan(&active)
	return active, err
}

// MarkRunning moves a queued deployment to running. A redelivered task for a
// deployment that already left the queue gets ErrNotFound.
func (s *deploymentStore) MarkRunning(ctx context.Context, id int64, at time.Time) error {
	return requireRow(s.db.Exec(ctx, `
		UPDATE deployments SET status = 'running', started_at = $2
		WHERE id = $1 AND status IN ('queued', 'running')`, id, at))
}

func (s *deploymentStore) Finish(ctx context.Context, d *model.Deployment) error {
	row, err := scanDeployment(s.db.QueryRow(ctx, `
		UPDATE deployments SET status = $2, total_users = $3, succeeded = $4, failed = $5, error = $6,
			finished_at = $7
		WHERE id = $1
		RETURNING `+deploymentColumns,
		d.ID, string(d.Status), d.TotalUsers, d.Succeeded, d.Failed, d.Error, d.FinishedAt))
	if err != nil {
		return notFound(err)
	}
	*d = *row
	return nil
}

func scanDeployment(row pgx.Row) (*model.Deployment, error) {
	var (
		d      model.Deployment
		status string
	)
	if err := row.Scan(&d.ID, &d.OrganizationID, &d.TemplateID, &status, &d.TotalUsers, &d.Succeeded, &d.Failed,
		&d.Error, &d.RequestedBy, &d.CreatedAt, &d.StartedAt, &d.FinishedAt); err != nil {
		return nil, err
	}
	d.Status = model.DeploymentStatus(status)
	return &d, nil
}
