package service

import (
	"context"
	"fmt"

	"github.com/workos/workos-go/v6/pkg/usermanagement"

	"sigdesk.app/server/core/config"
)

// Identity is the profile returned by the sign-in provider.
type Identity struct {
	ID        string
	Email     string
	FirstName string
	LastName  string
	AvatarURL string
}

// IdentityProvider wraps the hosted sign-in flow.
type IdentityProvider interface {
	AuthorizationURL(state string) (string, error)
	Authenticate(ctx context.Context, code string) (*Identity, error)
}

type workOSIdentityProvider struct {
	cfg config.WorkOSConfig
}

// NewWorkOSIdentityProvider signs users in through WorkOS AuthKit.
func NewWorkOSIdentityProvider(cfg config.WorkOSConfig) IdentityProvider {
	usermanagement.SetAPIKey(cfg.APIKey)
	return &workOSIdentityProvider{cfg: cfg}
}

func (p *workOSIdentityProvider) AuthorizationURL(state string) (string, error) {
	url, err := usermanagement.GetAuthorizationURL(usermanagement.GetAuthorizationURLOpts{
		ClientID:    p.cfg.ClientID,
		RedirectURI: p.cfg.RedirectURI,
		State:       state,
		Provider:    "authkit",
	})
	if err != nil {
		return "", fmt.Errorf("generating authorization URL: %w", err)
	}
	return url.String(), nil
}

func (p *workOSIdentityProvider) Authenticate(ctx context.Context, code string) (*Identity, error) {
	resp, err := usermanagement.AuthenticateWithCode(ctx, usermanagement.AuthenticateWithCodeOpts{
		ClientID: p.cfg.ClientID,
		Code:     code,
	})
	if err != nil {
		return nil, fmt.Errorf("authenticating with code: %w", err)
	}

	u := resp.User
	return &Identity{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		AvatarURL: u.ProfilePictureURL,
	}, nil
}
