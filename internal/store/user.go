package store

import (
	"context"

	"github.com/jackc/pgx/v5"

	"sigdesk.app/server/core/db"
	"sigdesk.app/server/internal/model"
)

const userColumns = `id, organization_id, role, name, email, avatar_url, workos_id, created_at, updated_at`

type userStore struct {
	db db.DBTX
}

func newUserStore(conn db.DBTX) UserStore {
	return &userStore{db: conn}
}

func (s *userStore) GetByID(ctx context.Context, id int64) (*model.User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	return u, notFound(err)
}

func (s *userStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	return u, notFound(err)
}

func (s *userStore) GetByWorkOSID(ctx context.Context, workOSID string) (*model.User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE workos_id = $1`, workOSID))
	return u, notFound(err)
}

func (s *userStore) Create(ctx context.Context, user *model.User) error {
	if user.Role == "" {
		user.Role = model.RoleMember
	}
	row, err := scanUser(s.db.QueryRow(ctx, `
		INSERT INTO users (id, organization_id, role, name, email, avatar_url, workos_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+userColumns,
		user.ID, user.OrganizationID, string(user.Role), user.Name, user.Email, user.AvatarURL, user.WorkOSID))
	if err != nil {
		return err
	}
	*user = *row
	return nil
}

func (s *userStore) Update(ctx context.Context, user *model.User) error {
	row, err := scanUser(s.db.QueryRow(ctx, `
		UPDATE users SET name = $2, email = $3, avatar_url = $4, workos_id = $5, updated_at = now()
		WHERE id = $1
		RETURNING `+userColumns,
		user.ID, user.Name, user.Email, user.AvatarURL, user.WorkOSID))
	if err != nil {
		return notFound(err)
	}
	*user = *row
	return nil
}

func (s *userStore) UpsertByWorkOSID(ctx context.Context, user *model.User) error {
	if user.Role == "" {
		user.Role = model.RoleMember
	}
	row, err := scanUser(s.db.QueryRow(ctx, `
		INSERT INTO users (id, organization_id, role, name, email, avatar_url, workos_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (workos_id) DO UPDATE
		SET name = EXCLUDED.name, email = EXCLUDED.email, avatar_url = EXCLUDED.avatar_url, updated_at = now()
		RETURNING `+userColumns,
		user.ID, user.OrganizationID, string(user.Role), user.Name, user.Email, user.AvatarURL, user.WorkOSID))
	if err != nil {
		return err
	}
	*user = *row
	return nil
}

func (s *userStore) SetMembership(ctx context.Context, userID int64, orgID *int64, role model.Role) error {
	return requireRow(s.db.Exec(ctx, `
		UPDATE users SET organization_id = $2, role = $3, updated_at = now() WHERE id = $1`,
		userID, orgID, string(role)))
}

func (s *userStore) ListByOrganization(ctx context.Context, orgID int64) ([]model.User, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+userColumns+` FROM users WHERE organization_id = $1 ORDER BY created_at, id`, orgID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanUser)
}

func (s *userStore) CountAdmins(ctx context.Context, orgID int64) (int, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id FROM users WHERE organization_id = $1 AND role = 'admin' FOR UPDATE`, orgID)
	if err != nil {
		return 0, err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var (
		u    model.User
		role string
	)
	if err := row.Scan(&u.ID, &u.OrganizationID, &role, &u.Name, &u.Email, &u.AvatarURL, &u.WorkOSID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Role = model.Role(role)
	return &u, nil
}
