package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"sigdesk.app/server/common/id"
	"sigdesk.app/server/internal/model"
	"sigdesk.app/server/internal/store"
	"sigdesk.app/server/internal/validate"
)

const (
	InviteTokenLength = 32
	InviteExpiryDays  = 7
)

var (
	ErrInviteNotFound      = errors.New("invitation not found")
	ErrInviteExpired       = errors.New("invitation has expired")
	ErrInviteAlreadyUsed   = errors.New("invitation has already been used")
	ErrInviteRevoked       = errors.New("invitation has been revoked")
	ErrEmailMismatch       = errors.New("authenticated email does not match invitation")
	ErrInvitePendingExists = errors.New("a pending invitation already exists for this email")
)

type InvitationService interface {
	Create(ctx context.Context, orgID int64, email string, role model.Role, invitedBy int64) (*model.Invitation, string, error)
	ValidateToken(ctx context.Context, token string) (*model.Invitation, error)
	// Accept joins user to the inviting organization with the invited role.
	Accept(ctx context.Context, token string, user *model.User) (*model.Invitation, error)
	Revoke(ctx context.Context, orgID, id int64) (*model.Invitation, error)
	List(ctx context.Context, orgID int64, limit, offset int32) ([]model.Invitation, error)
	// ExpireOld marks pending invitations past their expiry as expired.
	ExpireOld(ctx context.Context) (int64, error)
}

type invitationService struct {
	txRunner     TxRunner
	invStore     store.InvitationStore
	userStore    store.UserStore
	dashboardURL string
	now          func() time.Time
}

func NewInvitationService(txRunner TxRunner, invStore store.InvitationStore, userStore store.UserStore, dashboardURL string) InvitationService {
	return &invitationService{
		txRunner:     txRunner,
		invStore:     invStore,
		userStore:    userStore,
		dashboardURL: dashboardURL,
		now:          time.Now,
	}
}

func (s *invitationService) Create(ctx context.Context, orgID int64, email string, role model.Role, invitedBy int64) (*model.Invitation, string, error) {
	email, err := validate.Email(email)
	if err != nil {
		return nil, "", err
	}
	if role == "" {
		role = model.RoleMember
	}
	if !role.IsValid() {
		return nil, "", ErrInvalidRole
	}

	existingUser, err := s.userStore.GetByEmail(ctx, email)
	switch {
	case err == nil && existingUser.BelongsTo(orgID):
		return nil, "", ErrAlreadyMember
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return nil, "", fmt.Errorf("checking existing user: %w", err)
	}

	existing, err := s.invStore.GetPendingByEmail(ctx, orgID, email)
	switch {
	case err == nil && existing.IsValid():
		return nil, "", ErrInvitePendingExists
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return nil, "", fmt.Errorf("checking pending invitations: %w", err)
	}

	token, err := generateSecureToken(InviteTokenLength)
	if err != nil {
		return nil, "", fmt.Errorf("generating token: %w", err)
	}

	inv := &model.Invitation{
		ID:             id.New(),
		OrganizationID: orgID,
		Email:          email,
		Role:           role,
		Token:          token,
		Status:         model.InvitationStatusPending,
		InvitedBy:      &invitedBy,
		ExpiresAt:      s.now().Add(InviteExpiryDays * 24 * time.Hour),
	}

	if err := s.invStore.Create(ctx, inv); err != nil {
		return nil, "", fmt.Errorf("creating invitation: %w", err)
	}

	inviteURL := fmt.Sprintf("%s/invite?token=%s", s.dashboardURL, url.QueryEscape(token))

	slog.InfoContext(ctx, "invitation created",
		"invitation_id", inv.ID,
		"role", role,
		"expires_at", inv.ExpiresAt,
	)

	return inv, inviteURL, nil
}

func (s *invitationService) ValidateToken(ctx context.Context, token string) (*model.Invitation, error) {
	if token == "" {
		return nil, ErrInviteNotFound
	}

	inv, err := s.invStore.GetValidByToken(ctx, token)
	if err == nil {
		return inv, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("getting invitation: %w", err)
	}

	// Look the token up again regardless of state to say why it is unusable.
	inv, err = s.invStore.GetByToken(ctx, token)
	if err != nil {
		return nil, ErrInviteNotFound
	}
	switch inv.Status {
	case model.InvitationStatusAccepted:
		return nil, ErrInviteAlreadyUsed
	case model.InvitationStatusRevoked:
		return nil, ErrInviteRevoked
	case model.InvitationStatusExpired:
		return nil, ErrInviteExpired
	}
	if !s.now().Before(inv.ExpiresAt) {
		return nil, ErrInviteExpired
	}
	return nil, ErrInviteNotFound
}

func (s *invitationService) Accept(ctx context.Context, token string, user *model.User) (*model.Invitation, error) {
	inv, err := s.ValidateToken(ctx, token)
	if err != nil {
		return nil, err
	}

	if !strings.EqualFold(inv.Email, user.Email) {
		slog.WarnContext(ctx, "email mismatch on invitation acceptance",
			"invitation_id", inv.ID,
			"user_id", user.ID,
		)
		return nil, ErrEmailMismatch
	}
	if user.OrganizationID != nil {
		return nil, ErrAlreadyMember
	}

	var accepted *model.Invitation
	err = s.txRunner.WithTx(ctx, func(sp StoreProvider) error {
		var err error
		accepted, err = sp.Invitations().Accept(ctx, inv.ID, user.ID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInviteAlreadyUsed
			}
			return fmt.Errorf("accepting invitation: %w", err)
		}
		if err := sp.Users().SetMembership(ctx, user.ID, &inv.OrganizationID, inv.Role); err != nil {
			return fmt.Errorf("joining organization: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	user.OrganizationID = &inv.OrganizationID
	user.Role = inv.Role

	slog.InfoContext(ctx, "invitation accepted",
		"invitation_id", inv.ID,
		"organization_id", inv.OrganizationID,
		"user_id", user.ID,
	)

	return accepted, nil
}

func (s *invitationService) Revoke(ctx context.Context, orgID, id int64) (*model.Invitation, error) {
	inv, err := s.invStore.Revoke(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInviteNotFound
		}
		return nil, fmt.Errorf("revoking invitation: %w", err)
	}

	slog.InfoContext(ctx, "invitation revoked", "invitation_id", id)
	return inv, nil
}

func (s *invitationService) List(ctx context.Context, orgID int64, limit, offset int32) ([]model.Invitation, error) {
	return s.invStore.ListByOrganization(ctx, orgID, limit, offset)
}

func (s *invitationService) ExpireOld(ctx context.Context) (int64, error) {
	n, err := s.invStore.ExpireOld(ctx)
	if err != nil {
		return 0, fmt.Errorf("expiring invitations: %w", err)
	}
	return n, nil
}

func generateSecureToken(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(bytes), nil
}
