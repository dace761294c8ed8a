package store

import (
	"context"

	"github.com/jackc/pgx/v5"

	"sigdesk.app/server/core/db"
	"sigdesk.app/server/internal/model"
)

const sessionColumns = `id, user_id, workos_session_id, created_at, expires_at`

type sessionStore struct {
	db db.DBTX
}

func newSessionStore(conn db.DBTX) SessionStore {
	return &sessionStore{db: conn}
}

func (s *sessionStore) GetByID(ctx context.Context, id int64) (*model.Session, error) {
	sess, err := scanSession(s.db.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id))
	return sess, notFound(err)
}

func (s *sessionStore) GetValid(ctx context.Context, id int64) (*model.Session, error) {
	sess, err := scanSession(s.db.QueryRow(ctx, `
		SELECT `+sessionColumns+` FROM sessions WHERE id = $1 AND expires_at > now()`, id))
	return sess, notFound(err)
}

func (s *sessionStore) Create(ctx context.Context, session *model.Session) error {
	row, err := scanSession(s.db.QueryRow(ctx, `
		INSERT INTO sessions (id, user_id, workos_session_id, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING `+sessionColumns,
		session.ID, session.UserID, session.WorkOSSessionID, session.ExpiresAt))
	if err != nil {
		return err
	}
	*session = *row
	return nil
}

func (s *sessionStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

func (s *sessionStore) DeleteByUser(ctx context.Context, userID int64) error {
	_, err := s.db.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	return err
}

func (s *sessionStore) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= now()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanSession(row pgx.Row) (*model.Session, error) {
	var s model.Session
	if err := row.Scan(&s.ID, &s.UserID, &s.WorkOSSessionID, &s.CreatedAt, &s.ExpiresAt); err != nil {
		return nil, err
	}
	return &s, nil
}
