package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"sigdesk.app/server/core/db"
	"sigdesk.app/server/internal/model"
)

const directoryUserColumns = `id, organization_id, azure_object_id, display_name, given_name, surname, mail,
	user_principal_name, job_title, department, company_name, office_location, business_phone,
	mobile_phone, account_enabled, synced_at, created_at`

type directoryUserStore struct {
	db db.DBTX
}

func newDirectoryUserStore(conn db.DBTX) DirectoryUserStore {
	return &directoryUserStore{db: conn}
}

func (s *directoryUserStore) Upsert(ctx context.Context, u *model.DirectoryUser) error {
	row, err := scanDirectoryUser(s.db.QueryRow(ctx, `
		INSERT INTO directory_users (
			id, organization_id, azure_object_id, display_name, given_name, surname, mail,
			user_principal_name, job_title, department, company_name, office_location,
			business_phone, mobile_phone, account_enabled, synced_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (organization_id, azure_object_id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			given_name = EXCLUDED.given_name,
			surname = EXCLUDED.surname,
			mail = EXCLUDED.mail,
			user_principal_name = EXCLUDED.user_principal_name,
			job_title = EXCLUDED.job_title,
			department = EXCLUDED.department,
			company_name = EXCLUDED.company_name,
			office_location = EXCLUDED.office_location,
			business_phone = EXCLUDED.business_phone,
			mobile_phone = EXCLUDED.mobile_phone,
			account_enabled = EXCLUDED.account_enabled,
			synced_at = EXCLUDED.synced_at
		RETURNING `+directoryUserColumns,
		u.ID, u.OrganizationID, u.AzureObjectID, u.DisplayName, u.GivenName, u.Surname, u.Mail,
		u.UserPrincipalName, u.JobTitle, u.Department, u.CompanyName, u.OfficeLocation,
		u.BusinessPhone, u.MobilePhone, u.AccountEnabled, u.SyncedAt))
	if err != nil {
		return err
	}
	*u = *row
	return nil
}

func (s *directoryUserStore) GetByID(ctx context.Context, orgID, id int64) (*model.DirectoryUser, error) {
	u, err := scanDirectoryUser(s.db.QueryRow(ctx, `
		SELECT `+directoryUserColumns+` FROM directory_users WHERE organization_id = $1 AND id = $2`, orgID, id))
	return u, notFound(err)
}

func (s *directoryUserStore) List(ctx context.Context, orgID int64, f DirectoryUserFilter) ([]model.DirectoryUser, error) {
	where, args := directoryUserWhere(orgID, f)
	query := `SELECT ` + directoryUserColumns + ` FROM directory_users WHERE ` + where +
		` ORDER BY display_name, id`
	if f.Limit > 0 {
		args = append(args, f.Limit, f.Offset)
		query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanDirectoryUser)
}

func (s *directoryUserStore) Count(ctx context.Context, orgID int64, f DirectoryUserFilter) (int64, error) {
	where, args := directoryUserWhere(orgID, f)
	var n int64
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM directory_users WHERE `+where, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *directoryUserStore) DeleteStale(ctx context.Context, orgID int64, before time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM directory_users WHERE organization_id = $1 AND synced_at < $2`, orgID, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func directoryUserWhere(orgID int64, f DirectoryUserFilter) (string, []any) {
	clauses := []string{"organization_id = $1"}
	args := []any{orgID}

	if f.EnabledOnly {
		clauses = append(clauses, "account_enabled")
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		args = append(args, "%"+escapeLike(search)+"%")
		n := len(args)
		clauses = append(clauses, fmt.Sprintf(
			"(display_name ILIKE $%d OR mail ILIKE $%d OR user_principal_name ILIKE $%d OR department ILIKE $%d)",
			n, n, n, n))
	}
	return strings.Join(clauses, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func scanDirectoryUser(row pgx.Row) (*model.DirectoryUser, error) {
	var u model.DirectoryUser
	if err := row.Scan(&u.ID, &u.OrganizationID, &u.AzureObjectID, &u.DisplayName, &u.GivenName, &u.Surname,
		&u.Mail, &u.UserPrincipalName, &u.JobTitle, &u.Department, &u.CompanyName, &u.OfficeLocation,
		&u.BusinessPhone, &u.MobilePhone, &u.AccountEnabled, &u.SyncedAt, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}
