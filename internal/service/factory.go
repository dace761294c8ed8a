package service

import (
	"sigdesk.app/server/core/config"
	"sigdesk.app/server/internal/queue"
	"sigdesk.app/server/internal/store"
)

type Services struct {
	stores       *store.Stores
	txRunner     TxRunner
	identity     IdentityProvider
	sealer       SecretSealer
	azureClients DirectoryClientFactory
	producer     queue.Producer
	azureCfg     config.AzureConfig
	dashboardURL string
}

type Deps struct {
	Stores       *store.Stores
	TxRunner     TxRunner
	Identity     IdentityProvider
	Sealer       SecretSealer
	AzureClients DirectoryClientFactory
	Producer     queue.Producer
	AzureConfig  config.AzureConfig
	DashboardURL string
}

func NewServices(d Deps) *Services {
	return &Services{
		stores:       d.Stores,
		txRunner:     d.TxRunner,
		identity:     d.Identity,
		sealer:       d.Sealer,
		azureClients: d.AzureClients,
		producer:     d.Producer,
		azureCfg:     d.AzureConfig,
		dashboardURL: d.DashboardURL,
	}
}

func (s *Services) Auth() AuthService {
	return NewAuthService(s.identity, s.stores.Users(), s.stores.Sessions())
}

func (s *Services) Users() UserService {
	return NewUserService(s.txRunner, s.stores.Users())
}

func (s *Services) Organizations() OrganizationService {
	return NewOrganizationService(s.txRunner, s.stores.Organizations())
}

func (s *Services) Invitations() InvitationService {
	return NewInvitationService(s.txRunner, s.stores.Invitations(), s.stores.Users(), s.dashboardURL)
}

func (s *Services) Templates() TemplateService {
	return NewTemplateService(s.txRunner, s.stores.Templates(), s.stores.Organizations(), s.stores.DirectoryUsers())
}

func (s *Services) AzureSettings() AzureSettingsService {
	return NewAzureSettingsService(s.stores.AzureSettings(), s.sealer, s.azureClients, s.azureCfg)
}

func (s *Services) Directory() DirectoryService {
	return NewDirectoryService(s.txRunner, s.stores.DirectoryUsers(), s.AzureSettings(), s.producer)
}

func (s *Services) Deployments() DeploymentService {
	return NewDeploymentService(s.txRunner, s.stores, s.AzureSettings(), s.producer)
}
