package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"sigdesk.app/server/internal/model"
	"sigdesk.app/server/internal/store"
)

var (
	ErrMemberNotFound = errors.New("member not found")
	ErrLastAdmin      = errors.New("organization must keep at least one admin")
	ErrInvalidRole    = errors.New("role must be admin or member")
)

type UserService interface {
	ListMembers(ctx context.Context, orgID int64) ([]model.User, error)
	ChangeRole(ctx context.Context, orgID, userID int64, role model.Role) (*model.User, error)
	// RemoveMember detaches the user from the organization and ends their sessions.
	RemoveMember(ctx context.Context, orgID, userID int64) error
}

type userService struct {
	txRunner  TxRunner
	userStore store.UserStore
}

func NewUserService(txRunner TxRunner, userStore store.UserStore) UserService {
	return &userService{
		txRunner:  txRunner,
		userStore: userStore,
	}
}

func (s *userService) ListMembers(ctx context.Context, orgID int64) ([]model.User, error) {
	users, err := s.userStore.ListByOrganization(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("listing members: %w", err)
	}
	return users, nil
}

func (s *userService) ChangeRole(ctx context.Context, orgID, userID int64, role model.Role) (*model.User, error) {
	if !role.IsValid() {
		return nil, ErrInvalidRole
	}

	var updated *model.User
	err := s.txRunner.WithTx(ctx, func(sp StoreProvider) error {
		member, err := getMember(ctx, sp.Users(), orgID, userID)
		if err != nil {
			return err
		}
		if member.Role == role {
			updated = member
			return nil
		}
		if member.IsAdmin() {
			if err := ensureAnotherAdmin(ctx, sp.Users(), orgID); err != nil {
				return err
			}
		}
		if err := sp.Users().SetMembership(ctx, userID, &orgID, role); err != nil {
			return fmt.Errorf("changing role: %w", err)
		}
		member.Role = role
		updated = member
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "member role changed", "member_id", userID, "role", role)
	return updated, nil
}

func (s *userService) RemoveMember(ctx context.Context, orgID, userID int64) error {
	err := s.txRunner.WithTx(ctx, func(sp StoreProvider) error {
		member, err := getMember(ctx, sp.Users(), orgID, userID)
		if err != nil {
			return err
		}
		if member.IsAdmin() {
			if err := ensureAnotherAdmin(ctx, sp.Users(), orgID); err != nil {
				return err
			}
		}
		if err := sp.Users().SetMembership(ctx, userID, nil, model.RoleMember); err != nil {
			return fmt.Errorf("removing member: %w", err)
		}
		if err := sp.Sessions().DeleteByUser(ctx, userID); err != nil {
			return fmt.Errorf("ending member sessions: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "member removed", "member_id", userID)
	return nil
}

func getMember(ctx context.Context, users store.UserStore, orgID, userID int64) (*model.User, error) {
	u, err := users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, fmt.Errorf("getting member: %w", err)
	}
	if !u.BelongsTo(orgID) {
		return nil, ErrMemberNotFound
	}
	return u, nil
}

// ensureAnotherAdmin fails when demoting or removing one admin would leave none.
func ensureAnotherAdmin(ctx context.Context, users store.UserStore, orgID int64) error {
	admins, err := users.CountAdmins(ctx, orgID)
	if err != nil {
		return fmt.Errorf("counting admins: %w", err)
	}
	if admins <= 1 {
		return ErrLastAdmin
	}
	return nil
}
