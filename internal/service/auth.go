package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"sigdesk.app/server/common/id"
	"sigdesk.app/server/internal/model"
	"sigdesk.app/server/internal/sanitize"
	"sigdesk.app/server/internal/store"
)

const SessionDuration = 7 * 24 * time.Hour

var (
	ErrInvalidCode    = errors.New("invalid authorization code")
	ErrUserNotFound   = errors.New("user not found")
	ErrSessionExpired = errors.New("session expired")
)

type AuthService interface {
	GetAuthorizationURL(state string) (string, error)
	HandleCallback(ctx context.Context, code string) (*model.User, *model.Session, error)
	ValidateSession(ctx context.Context, sessionID int64) (*model.User, error)
	Logout(ctx context.Context, sessionID int64) error
	// PurgeExpired deletes expired sessions and returns how many were removed.
	PurgeExpired(ctx context.Context) (int64, error)
}

type authService struct {
	identity     IdentityProvider
	userStore    store.UserStore
	sessionStore store.SessionStore
	now          func() time.Time
}

func NewAuthService(identity IdentityProvider, userStore store.UserStore, sessionStore store.SessionStore) AuthService {
	return &authService{
		identity:     identity,
		userStore:    userStore,
		sessionStore: sessionStore,
		now:          time.Now,
	}
}

func (s *authService) GetAuthorizationURL(state string) (string, error) {
	return s.identity.AuthorizationURL(state)
}

func (s *authService) HandleCallback(ctx context.Context, code string) (*model.User, *model.Session, error) {
	if strings.TrimSpace(code) == "" {
		return nil, nil, ErrInvalidCode
	}

	ident, err := s.identity.Authenticate(ctx, code)
	if err != nil {
		slog.ErrorContext(ctx, "failed to authenticate with code", "error", err)
		return nil, nil, ErrInvalidCode
	}

	var avatarURL *string
	if u, ok := sanitize.URL(ident.AvatarURL); ok {
		avatarURL = &u
	}

	user := &model.User{
		ID:        id.New(),
		Role:      model.RoleMember,
		Name:      buildUserName(ident),
		Email:     strings.ToLower(strings.TrimSpace(ident.Email)),
		AvatarURL: avatarURL,
		WorkOSID:  &ident.ID,
	}

	if err := s.userStore.UpsertByWorkOSID(ctx, user); err != nil {
		slog.ErrorContext(ctx, "failed to upsert user",
			"error", err,
			"email", user.Email,
			"workos_id", ident.ID,
		)
		return nil, nil, fmt.Errorf("upserting user: %w", err)
	}

	session := &model.Session{
		ID:        id.New(),
		UserID:    user.ID,
		ExpiresAt: s.now().Add(SessionDuration),
	}

	if err := s.sessionStore.Create(ctx, session); err != nil {
		slog.ErrorContext(ctx, "failed to create session",
			"error", err,
			"user_id", user.ID,
		)
		return nil, nil, fmt.Errorf("creating session: %w", err)
	}

	slog.InfoContext(ctx, "user authenticated",
		"user_id", user.ID,
		"session_id", session.ID,
	)

	return user, session, nil
}

func (s *authService) ValidateSession(ctx context.Context, sessionID int64) (*model.User, error) {
	session, err := s.sessionStore.GetValid(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrSessionExpired
		}
		return nil, fmt.Errorf("getting session: %w", err)
	}

	user, err := s.userStore.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("getting user: %w", err)
	}

	return user, nil
}

func (s *authService) Logout(ctx context.Context, sessionID int64) error {
	if err := s.sessionStore.Delete(ctx, sessionID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

func (s *authService) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.sessionStore.DeleteExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("deleting expired sessions: %w", err)
	}
	return n, nil
}

func buildUserName(ident *Identity) string {
	first := sanitize.Text(ident.FirstName)
	last := sanitize.Text(ident.LastName)
	switch {
	case first != "" && last != "":
		return first + " " + last
	case first != "":
		return first
	case last != "":
		return last
	}
	return strings.ToLower(strings.TrimSpace(ident.Email))
}
