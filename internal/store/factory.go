package store

import (
	"sigdesk.app/server/core/db"
)

// Stores builds typed stores over one connection: the pool for plain calls,
// a pgx.Tx inside TxRunner.
type Stores struct {
	db db.DBTX
}

func NewStores(conn db.DBTX) *Stores {
	return &Stores{db: conn}
}

func (s *Stores) Users() UserStore {
	return newUserStore(s.db)
}

func (s *Stores) Organizations() OrganizationStore {
	return newOrganizationStore(s.db)
}

func (s *Stores) Sessions() SessionStore {
	return newSessionStore(s.db)
}

func (s *Stores) Invitations() InvitationStore {
	return newInvitationStore(s.db)
}

func (s *Stores) Templates() TemplateStore {
	return newTemplateStore(s.db)
}

func (s *Stores) AzureSettings() AzureSettingsStore {
	return newAzureSettingsStore(s.db)
}

func (s *Stores) DirectoryUsers() DirectoryUserStore {
	return newDirectoryUserStore(s.db)
}

func (s *Stores) Deployments() DeploymentStore {
	return newDeploymentStore(s.db)
}

func (s *Stores) DeployedSignatures() DeployedSignatureStore {
	return newDeployedSignatureStore(s.db)
}
