package worker

import (
	"context"

	"sigdesk.app/server/internal/queue"
	"sigdesk.app/server/internal/service"
	"sigdesk.app/server/internal/store"
)

// Consumer abstracts the message queue for testability.
type Consumer interface {
	Read(ctx context.Context) ([]queue.Message, error)
	Ack(ctx context.Context, msg queue.Message) error
	Requeue(ctx context.Context, msg queue.Message, errMsg string) error
	SendDLQ(ctx context.Context, msg queue.Message, errMsg string) error
}

// StoreProvider is the part of service.StoreProvider the worker touches.
// cmd/worker adapts the database to it.
type StoreProvider interface {
	Organizations() store.OrganizationStore
	Templates() store.TemplateStore
	DirectoryUsers() store.DirectoryUserStore
	Deployments() store.DeploymentStore
	DeployedSignatures() store.DeployedSignatureStore
}

type TxRunner interface {
	WithTx(ctx context.Context, fn func(stores StoreProvider) error) error
}

// DirectorySyncer refreshes an organization's directory users from Azure AD.
type DirectorySyncer interface {
	Sync(ctx context.Context, orgID int64) (*service.SyncResult, error)
}

// DeploymentRunner renders and records one deployment.
type DeploymentRunner interface {
	Run(ctx context.Context, orgID, deploymentID int64) error
	// Abandon marks a deployment failed after its task is dead-lettered.
	Abandon(ctx context.Context, orgID, deploymentID int64, cause string) error
}

type SessionPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

type InvitationExpirer interface {
	ExpireOld(ctx context.Context) (int64, error)
}
