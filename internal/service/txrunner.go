package service

import (
	"context"

	"sigdesk.app/server/core/db"
	"sigdesk.app/server/internal/store"
)

// StoreProvider exposes the stores a transactional operation may touch.
type StoreProvider interface {
	Users() store.UserStore
	Organizations() store.OrganizationStore
	Sessions() store.SessionStore
	Invitations() store.InvitationStore
	Templates() store.TemplateStore
	AzureSettings() store.AzureSettingsStore
	DirectoryUsers() store.DirectoryUserStore
	Deployments() store.DeploymentStore
	DeployedSignatures() store.DeployedSignatureStore
}

// TxRunner runs functions within a transaction and provides stores bound to that transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(stores StoreProvider) error) error
}

type dbTxRunner struct {
	db *db.DB
}

// NewTxRunner builds a TxRunner backed by the core DB.
func NewTxRunner(db *db.DB) TxRunner {
	return &dbTxRunner{db: db}
}

func (r *dbTxRunner) WithTx(ctx context.Context, fn func(stores StoreProvider) error) error {
	return r.db.WithTx(ctx, func(tx db.DBTX) error {
		return fn(store.NewStores(tx))
	})
}
