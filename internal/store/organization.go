package store

import (
	"context"

	"github.com/jackc/pgx/v5"

	"sigdesk.app/server/core/db"
	"sigdesk.app/server/internal/model"
)

const organizationColumns = `id, admin_user_id, name, slug, domain, is_deleted, created_at, updated_at`

type organizationStore struct {
	db db.DBTX
}

func newOrganizationStore(conn db.DBTX) OrganizationStore {
	return &organizationStore{db: conn}
}

func (s *organizationStore) GetByID(ctx context.Context, id int64) (*model.Organization, error) {
	org, err := scanOrganization(s.db.QueryRow(ctx, `
		SELECT `+organizationColumns+` FROM organizations WHERE id = $1 AND NOT is_deleted`, id))
	return org, notFound(err)
}

// GetBySlug includes soft-deleted rows: their slugs stay reserved.
func (s *organizationStore) GetBySlug(ctx context.Context, slug string) (*model.Organization, error) {
	org, err := scanOrganization(s.db.QueryRow(ctx, `
		SELECT `+organizationColumns+` FROM organizations WHERE slug = $1`, slug))
	return org, notFound(err)
}

func (s *organizationStore) Create(ctx context.Context, org *model.Organization) error {
	row, err := scanOrganization(s.db.QueryRow(ctx, `
		INSERT INTO organizations (id, admin_user_id, name, slug, domain)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+organizationColumns,
		org.ID, org.AdminUserID, org.Name, org.Slug, org.Domain))
	if err != nil {
		return err
	}
	*org = *row
	return nil
}

func (s *organizationStore) Update(ctx context.Context, org *model.Organization) error {
	row, err := scanOrganization(s.db.QueryRow(ctx, `
		UPDATE organizations SET name = $2, domain = $3, admin_user_id = $4, updated_at = now()
		WHERE id = $1 AND NOT is_deleted
		RETURNING `+organizationColumns,
		org.ID, org.Name, org.Domain, org.AdminUserID))
	if err != nil {
		return notFound(err)
	}
	*org = *row
	return nil
}

func (s *organizationStore) Delete(ctx context.Context, id int64) error {
	return requireRow(s.db.Exec(ctx, `
		UPDATE organizations SET is_deleted = true, updated_at = now() WHERE id = $1 AND NOT is_deleted`, id))
}

func scanOrganization(row pgx.Row) (*model.Organization, error) {
	var o model.Organization
	if err := row.Scan(&o.ID, &o.AdminUserID, &o.Name, &o.Slug, &o.Domain, &o.IsDeleted, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	return &o, nil
}
