package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"sigdesk.app/server/common"
	"sigdesk.app/server/common/id"
	"sigdesk.app/server/internal/model"
	"sigdesk.app/server/internal/store"
	"sigdesk.app/server/internal/validate"
)

const maxSlugAttempts = 20

var (
	ErrOrganizationNotFound = errors.New("organization not found")
	ErrAlreadyMember        = errors.New("user already belongs to an organization")
)

type OrganizationInput struct {
	Name   string
	Slug   *string
	Domain *string
}

type OrganizationUpdate struct {
	Name   *string
	Domain *string
}

type OrganizationService interface {
	// Create makes a new organization with creator as its first admin.
	Create(ctx context.Context, creator *model.User, in OrganizationInput) (*model.Organization, error)
	Get(ctx context.Context, orgID int64) (*model.Organization, error)
	Update(ctx context.Context, orgID int64, in OrganizationUpdate) (*model.Organization, error)
}

type organizationService struct {
	txRunner TxRunner
	orgStore store.OrganizationStore
}

func NewOrganizationService(txRunner TxRunner, orgStore store.OrganizationStore) OrganizationService {
	return &organizationService{txRunner: txRunner, orgStore: orgStore}
}

func (s *organizationService) Create(ctx context.Context, creator *model.User, in OrganizationInput) (*model.Organization, error) {
	if creator.OrganizationID != nil {
		return nil, ErrAlreadyMember
	}

	name, err := validate.Name(in.Name)
	if err != nil {
		return nil, err
	}
	domain, err := normalizeDomain(in.Domain)
	if err != nil {
		return nil, err
	}

	org := &model.Organization{
		ID:          id.New(),
		AdminUserID: creator.ID,
		Name:        name,
		Domain:      domain,
	}

	err = s.txRunner.WithTx(ctx, func(sp StoreProvider) error {
		slug, err := ensureSlug(ctx, sp.Organizations(), name, in.Slug)
		if err != nil {
			return err
		}
		org.Slug = slug

		if err := sp.Organizations().Create(ctx, org); err != nil {
			return fmt.Errorf("creating organization: %w", err)
		}
		if err := sp.Users().SetMembership(ctx, creator.ID, &org.ID, model.RoleAdmin); err != nil {
			return fmt.Errorf("adding creator as admin: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	creator.OrganizationID = &org.ID
	creator.Role = model.RoleAdmin

	slog.InfoContext(ctx, "organization created",
		"organization_id", org.ID,
		"slug", org.Slug,
		"admin_user_id", creator.ID)

	return org, nil
}

func (s *organizationService) Get(ctx context.Context, orgID int64) (*model.Organization, error) {
	org, err := s.orgStore.GetByID(ctx, orgID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("getting organization: %w", err)
	}
	return org, nil
}

func (s *organizationService) Update(ctx context.Context, orgID int64, in OrganizationUpdate) (*model.Organization, error) {
	org, err := s.Get(ctx, orgID)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		name, err := validate.Name(*in.Name)
		if err != nil {
			return nil, err
		}
		org.Name = name
	}
	if in.Domain != nil {
		if *in.Domain == "" {
			org.Domain = nil
		} else {
			domain, err := normalizeDomain(in.Domain)
			if err != nil {
				return nil, err
			}
			org.Domain = domain
		}
	}

	if err := s.orgStore.Update(ctx, org); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("updating organization: %w", err)
	}
	return org, nil
}

// ensureSlug picks the requested slug (or one derived from name) and appends
// a numeric suffix until it is free.
func ensureSlug(ctx context.Context, orgs store.OrganizationStore, name string, slug *string) (string, error) {
	input := name
	if slug != nil && *slug != "" {
		input = *slug
	}

	base, err := common.Slugify(input, "org")
	if err != nil {
		return "", fmt.Errorf("generating slug: %w", err)
	}

	candidate := base
	for i := 1; i <= maxSlugAttempts+1; i++ {
		_, err := orgs.GetBySlug(ctx, candidate)
		if errors.Is(err, store.ErrNotFound) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("checking slug availability: %w", err)
		}
		candidate = common.SlugWithSuffix(base, i)
	}

	return "", fmt.Errorf("unable to find available slug for %q", base)
}

func normalizeDomain(domain *string) (*string, error) {
	if domain == nil || *domain == "" {
		return nil, nil
	}
	d, err := validate.Domain(*domain)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
