package store

import (
	"context"

	"github.com/jackc/pgx/v5"

	"sigdesk.app/server/core/db"
	"sigdesk.app/server/internal/model"
)

const templateColumns = `id, organization_id, name, description, html, is_default, created_by, created_at, updated_at`

type templateStore struct {
	db db.DBTX
}

func newTemplateStore(conn db.DBTX) TemplateStore {
	return &templateStore{db: conn}
}

func (s *templateStore) Create(ctx context.Context, tpl *model.SignatureTemplate) error {
	row, err := scanTemplate(s.db.QueryRow(ctx, `
		INSERT INTO signature_templates (id, organization_id, name, description, html, is_default, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+templateColumns,
		tpl.ID, tpl.OrganizationID, tpl.Name, tpl.Description, tpl.HTML, tpl.IsDefault, tpl.CreatedBy))
	if err != nil {
		return err
	}
	*tpl = *row
	return nil
}

func (s *templateStore) GetByID(ctx context.Context, orgID, id int64) (*model.SignatureTemplate, error) {
	tpl, err := scanTemplate(s.db.QueryRow(ctx, `
		SELECT `+templateColumns+` FROM signature_templates WHERE organization_id = $1 AND id = $2`, orgID, id))
	return tpl, notFound(err)
}

func (s *templateStore) GetDefault(ctx context.Context, orgID int64) (*model.SignatureTemplate, error) {
	tpl, err := scanTemplate(s.db.QueryRow(ctx, `
		SELECT `+templateColumns+` FROM signature_templates WHERE organization_id = $1 AND is_default`, orgID))
	return tpl, notFound(err)
}

func (s *templateStore) List(ctx context.Context, orgID int64) ([]model.SignatureTemplate, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+templateColumns+` FROM signature_templates
		WHERE organization_id = $1
		ORDER BY is_default DESC, updated_at DESC, id DESC`, orgID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanTemplate)
}

func (s *templateStore) Update(ctx context.Context, tpl *model.SignatureTemplate) error {
	row, err := scanTemplate(s.db.QueryRow(ctx, `
		UPDATE signature_templates SET name = $3, description = $4, html = $5, updated_at = now()
		WHERE organization_id = $1 AND id = $2
		RETURNING `+templateColumns,
		tpl.OrganizationID, tpl.ID, tpl.Name, tpl.Description, tpl.HTML))
	if err != nil {
		return notFound(err)
	}
	*tpl = *row
	return nil
}

func (s *templateStore) Delete(ctx context.Context, orgID, id int64) error {
	return requireRow(s.db.Exec(ctx, `
		DELETE FROM signature_templates WHERE organization_id = $1 AND id = $2`, orgID, id))
}

func (s *templateStore) ClearDefault(ctx context.Context, orgID int64) error {
	_, err := s.db.Exec(ctx, `
		UPDATE signature_templates SET is_default = false, updated_at = now()
		WHERE organization_id = $1 AND is_default`, orgID)
	return err
}

func (s *templateStore) SetDefault(ctx context.Context, orgID, id int64) error {
	return requireRow(s.db.Exec(ctx, `
		UPDATE signature_templates SET is_default = true, updated_at = now()
		WHERE organization_id = $1 AND id = $2`, orgID, id))
}

func scanTemplate(row pgx.Row) (*model.SignatureTemplate, error) {
	var t model.SignatureTemplate
	if err := row.Scan(&t.ID, &t.OrganizationID, &t.Name, &t.Description, &t.HTML, &t.IsDefault, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}
