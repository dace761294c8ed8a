package store

import (
	"context"

	"github.com/jackc/pgx/v5"

	"sigdesk.app/server/core/db"
	"sigdesk.app/server/internal/model"
)

const invitationColumns = `id, organization_id, email, role, token, status, invited_by, accepted_by, expires_at, created_at, accepted_at`

type invitationStore struct {
	db db.DBTX
}

func newInvitationStore(conn db.DBTX) InvitationStore {
	return &invitationStore{db: conn}
}

func (s *invitationStore) Create(ctx context.Context, inv *model.Invitation) error {
	row, err := scanInvitation(s.db.QueryRow(ctx, `
		INSERT INTO invitations (id, organization_id, email, role, token, status, invited_by, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+invitationColumns,
		inv.ID, inv.OrganizationID, inv.Email, string(inv.Role), inv.Token, string(inv.Status), inv.InvitedBy, inv.ExpiresAt))
	if err != nil {
		return err
	}
	*inv = *row
	return nil
}

func (s *invitationStore) GetByID(ctx context.Context, orgID, id int64) (*model.Invitation, error) {
	inv, err := scanInvitation(s.db.QueryRow(ctx, `
		SELECT `+invitationColumns+` FROM invitations WHERE organization_id = $1 AND id = $2`, orgID, id))
	return inv, notFound(err)
}

func (s *invitationStore) GetByToken(ctx context.Context, token string) (*model.Invitation, error) {
	inv, err := scanInvitation(s.db.QueryRow(ctx, `
		SELECT `+invitationColumns+` FROM invitations WHERE token = $1`, token))
	return inv, notFound(err)
}

func (s *invitationStore) GetValidByToken(ctx context.Context, token string) (*model.Invitation, error) {
	inv, err := scanInvitation(s.db.QueryRow(ctx, `
		SELECT `+invitationColumns+` FROM invitations
		WHERE token = $1 AND status = 'pending' AND expires_at > now()`, token))
	return inv, notFound(err)
}

func (s *invitationStore) GetPendingByEmail(ctx context.Context, orgID int64, email string) (*model.Invitation, error) {
	inv, err := scanInvitation(s.db.QueryRow(ctx, `
		SELECT `+invitationColumns+` FROM invitations
		WHERE organization_id = $1 AND email = $2 AND status = 'pending' AND expires_at > now()`, orgID, email))
	return inv, notFound(err)
}

func (s *invitationStore) Accept(ctx context.Context, id int64, userID int64) (*model.Invitation, error) {
	inv, err := scanInvitation(s.db.QueryRow(ctx, `
		UPDATE invitations SET status = 'accepted', accepted_by = $2, accepted_at = now()
		WHERE id = $1 AND status = 'pending'
		RETURNING `+invitationColumns, id, userID))
	return inv, notFound(err)
}

func (s *invitationStore) Revoke(ctx context.Context, orgID, id int64) (*model.Invitation, error) {
	inv, err := scanInvitation(s.db.QueryRow(ctx, `
		UPDATE invitations SET status = 'revoked'
		WHERE organization_id = $1 AND id = $2 AND status = 'pending'
		RETURNING `+invitationColumns, orgID, id))
	return inv, notFound(err)
}

func (s *invitationStore) ListByOrganization(ctx context.Context, orgID int64, limit, offset int32) ([]model.Invitation, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+invitationColumns+` FROM invitations
		WHERE organization_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`, orgID, limit, offset)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanInvitation)
}

func (s *invitationStore) ExpireOld(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE invitations SET status = 'expired' WHERE status = 'pending' AND expires_at <= now()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanInvitation(row pgx.Row) (*model.Invitation, error) {
	var (
		inv          model.Invitation
		role, status string
	)
	if err := row.Scan(&inv.ID, &inv.OrganizationID, &inv.Email, &role, &inv.Token, &status,
		&inv.InvitedBy, &inv.AcceptedBy, &inv.ExpiresAt, &inv.CreatedAt, &inv.AcceptedAt); err != nil {
		return nil, err
	}
	inv.Role = model.Role(role)
	inv.Status = model.InvitationStatus(status)
	return &inv, nil
}
