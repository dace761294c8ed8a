package store

import (
	"context"
	"errors"
	"time"

	"sigdesk.app/server/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// UserStore defines the contract for user data access
type UserStore interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByWorkOSID(ctx context.Context, workOSID string) (*model.User, error)
	Create(ctx context.Context, user *model.User) error
	Update(ctx context.Context, user *model.User) error
	// UpsertByWorkOSID refreshes the profile of a returning user and keeps
	// their organization and role.
	UpsertByWorkOSID(ctx context.Context, user *model.User) error
	// SetMembership moves a user into (or, with nil orgID, out of) an organization.
	SetMembership(ctx context.Context, userID int64, orgID *int64, role model.Role) error
	ListByOrganization(ctx context.Context, orgID int64) ([]model.User, error)
	// CountAdmins locks the organization's admin rows when called inside a
	// transaction so concurrent demotions serialize.
	CountAdmins(ctx context.Context, orgID int64) (int, error)
}

// OrganizationStore defines the contract for organization data access
type OrganizationStore interface {
	GetByID(ctx context.Context, id int64) (*model.Organization, error)
	GetBySlug(ctx context.Context, slug string) (*model.Organization, error)
	Create(ctx context.Context, org *model.Organization) error
	Update(ctx context.Context, org *model.Organization) error
	Delete(ctx context.Context, id int64) error // soft delete
}

// SessionStore defines the contract for session data access
type SessionStore interface {
	GetByID(ctx context.Context, id int64) (*model.Session, error)
	GetValid(ctx context.Context, id int64) (*model.Session, error) // checks expiry
	Create(ctx context.Context, session *model.Session) error
	Delete(ctx context.Context, id int64) error
	DeleteByUser(ctx context.Context, userID int64) error
	DeleteExpired(ctx context.Context) (int64, error)
}

// InvitationStore defines the contract for organization invitations
type InvitationStore interface {
	Create(ctx context.Context, inv *model.Invitation) error
	GetByID(ctx context.Context, orgID, id int64) (*model.Invitation, error)
	GetByToken(ctx context.Context, token string) (*model.Invitation, error)
	GetValidByToken(ctx context.Context, token string) (*model.Invitation, error)
	GetPendingByEmail(ctx context.Context, orgID int64, email string) (*model.Invitation, error)
	Accept(ctx context.Context, id int64, userID int64) (*model.Invitation, error)
	Revoke(ctx context.Context, orgID, id int64) (*model.Invitation, error)
	ListByOrganization(ctx context.Context, orgID int64, limit, offset int32) ([]model.Invitation, error)
	ExpireOld(ctx context.Context) (int64, error)
}

// TemplateStore defines the contract for signature templates. Every read is
// scoped to an organization.
type TemplateStore interface {
	Create(ctx context.Context, tpl *model.SignatureTemplate) error
	GetByID(ctx context.Context, orgID, id int64) (*model.SignatureTemplate, error)
	GetDefault(ctx context.Context, orgID int64) (*model.SignatureTemplate, error)
	List(ctx context.Context, orgID int64) ([]model.SignatureTemplate, error)
	Update(ctx context.Context, tpl *model.SignatureTemplate) error
	Delete(ctx context.Context, orgID, id int64) error
	ClearDefault(ctx context.Context, orgID int64) error
	SetDefault(ctx context.Context, orgID, id int64) error
}

// AzureSettingsStore defines the contract for per-organization Azure AD settings
type AzureSettingsStore interface {
	Get(ctx context.Context, orgID int64) (*model.AzureSettings, error)
	Upsert(ctx context.Context, s *model.AzureSettings) error
	MarkVerified(ctx context.Context, orgID int64, at time.Time) error
	MarkSynced(ctx context.Context, orgID int64, at time.Time) error
	MarkConsented(ctx context.Context, orgID int64, tenantID string, at time.Time) error
}

type DirectoryUserFilter struct {
	Search      string
	EnabledOnly bool
	Limit       int32
	Offset      int32
}

// DirectoryUserStore defines the contract for users synced from Azure AD
type DirectoryUserStore interface {
	// Upsert inserts or refreshes by (organization, azure object id) and
	// fills in ID and CreatedAt.
	Upsert(ctx context.Context, u *model.DirectoryUser) error
	GetByID(ctx context.Context, orgID, id int64) (*model.DirectoryUser, error)
	List(ctx context.Context, orgID int64, f DirectoryUserFilter) ([]model.DirectoryUser, error)
	Count(ctx context.Context, orgID int64, f DirectoryUserFilter) (int64, error)
	// DeleteStale removes users not seen by the sync that started at before.
	DeleteStale(ctx context.Context, orgID int64, before time.Time) (int64, error)
}

// DeploymentStore defines the contract for signature deployments
type DeploymentStore interface {
	Create(ctx context.Context, d *model.Deployment) error
	GetByID(ctx context.Context, orgID, id int64) (*model.Deployment, error)
	List(ctx context.Context, orgID int64, limit, offset int32) ([]model.Deployment, error)
	HasActive(ctx context.Context, orgID int64) (bool, error)
	MarkRunning(ctx context.Context, id int64, at time.Time) error
	Finish(ctx context.Context, d *model.Deployment) error
}

// DeployedSignatureStore defines the contract for rendered signatures
type DeployedSignatureStore interface {
	InsertBatch(ctx context.Context, sigs []model.DeployedSignature) error
	Latest(ctx context.Context, orgID, directoryUserID int64) (*model.DeployedSignature, error)
}
