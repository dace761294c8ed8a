package service_test

import (
	"context"
	"net/url"
	"time"

	"sigdesk.app/server/internal/azure"
	"sigdesk.app/server/internal/model"
	"sigdesk.app/server/internal/queue"
	"sigdesk.app/server/internal/service"
	"sigdesk.app/server/internal/store"
)

type mockUserStore struct {
	getByIDFn          func(ctx context.Context, id int64) (*model.User, error)
	getByEmailFn       func(ctx context.Context, email string) (*model.User, error)
	upsertByWorkOSIDFn func(ctx context.Context, user *model.User) error
	setMembershipFn    func(ctx context.Context, userID int64, orgID *int64, role model.Role) error
	listByOrgFn        func(ctx context.Context, orgID int64) ([]model.User, error)
	countAdminsFn      func(ctx context.Context, orgID int64) (int, error)
}

func (m *mockUserStore) GetByID(ctx context.Context, id int64) (*model.User, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, store.ErrNotFound
}

func (m *mockUserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	if m.getByEmailFn != nil {
		return m.getByEmailFn(ctx, email)
	}
	return nil, store.ErrNotFound
}

func (m *mockUserStore) GetByWorkOSID(_ context.Context, _ string) (*model.User, error) {
	return nil, store.ErrNotFound
}

func (m *mockUserStore) Create(_ context.Context, _ *model.User) error {
	return nil
}

func (m *mockUserStore) Update(_ context.Context, _ *model.User) error {
	return nil
}

func (m *mockUserStore) UpsertByWorkOSID(ctx context.Context, user *model.User) error {
	if m.upsertByWorkOSIDFn != nil {
		return m.upsertByWorkOSIDFn(ctx, user)
	}
	return nil
}

func (m *mockUserStore) SetMembership(ctx context.Context, userID int64, orgID *int64, role model.Role) error {
	if m.setMembershipFn != nil {
		return m.setMembershipFn(ctx, userID, orgID, role)
	}
	return nil
}

func (m *mockUserStore) ListByOrganization(ctx context.Context, orgID int64) ([]model.User, error) {
	if m.listByOrgFn != nil {
		return m.listByOrgFn(ctx, orgID)
	}
	return nil, nil
}

func (m *mockUserStore) CountAdmins(ctx context.Context, orgID int64) (int, error) {
	if m.countAdminsFn != nil {
		return m.countAdminsFn(ctx, orgID)
	}
	return 0, nil
}

type mockOrganizationStore struct {
	getByIDFn   func(ctx context.Context, id int64) (*model.Organization, error)
	getBySlugFn func(ctx context.Context, slug string) (*model.Organization, error)
	createFn    func(ctx context.Context, org *model.Organization) error
	updateFn    func(ctx context.Context, org *model.Organization) error
	createCalls int
}

func (m *mockOrganizationStore) GetByID(ctx context.Context, id int64) (*model.Organization, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, store.ErrNotFound
}

func (m *mockOrganizationStore) GetBySlug(ctx context.Context, slug string) (*model.Organization, error) {
	if m.getBySlugFn != nil {
		return m.getBySlugFn(ctx, slug)
	}
	return nil, store.ErrNotFound
}

func (m *mockOrganizationStore) Create(ctx context.Context, org *model.Organization) error {
	m.createCalls++
	if m.createFn != nil {
		return m.createFn(ctx, org)
	}
	return nil
}

func (m *mockOrganizationStore) Update(ctx context.Context, org *model.Organization) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, org)
	}
	return nil
}

func (m *mockOrganizationStore) Delete(_ context.Context, _ int64) error {
	return nil
}

type mockSessionStore struct {
	getValidFn      func(ctx context.Context, id int64) (*model.Session, error)
	createFn        func(ctx context.Context, session *model.Session) error
	deleteFn        func(ctx context.Context, id int64) error
	deleteByUserFn  func(ctx context.Context, userID int64) error
	deleteExpiredFn func(ctx context.Context) (int64, error)
}

func (m *mockSessionStore) GetByID(_ context.Context, _ int64) (*model.Session, error) {
	return nil, store.ErrNotFound
}

func (m *mockSessionStore) GetValid(ctx context.Context, id int64) (*model.Session, error) {
	if m.getValidFn != nil {
		return m.getValidFn(ctx, id)
	}
	return nil, store.ErrNotFound
}

func (m *mockSessionStore) Create(ctx context.Context, session *model.Session) error {
	if m.createFn != nil {
		return m.createFn(ctx, session)
	}
	return nil
}

func (m *mockSessionStore) Delete(ctx context.Context, id int64) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockSessionStore) DeleteByUser(ctx context.Context, userID int64) error {
	if m.deleteByUserFn != nil {
		return m.deleteByUserFn(ctx, userID)
	}
	return nil
}

func (m *mockSessionStore) DeleteExpired(ctx context.Context) (int64, error) {
	if m.deleteExpiredFn != nil {
		return m.deleteExpiredFn(ctx)
	}
	return 0, nil
}

type mockInvitationStore struct {
	createFn            func(ctx context.Context, inv *model.Invitation) error
	getByTokenFn        func(ctx context.Context, token string) (*model.Invitation, error)
	getValidByTokenFn   func(ctx context.Context, token string) (*model.Invitation, error)
	getPendingByEmailFn func(ctx context.Context, orgID int64, email string) (*model.Invitation, error)
	acceptFn            func(ctx context.Context, id, userID int64) (*model.Invitation, error)
	revokeFn            func(ctx context.Context, orgID, id int64) (*model.Invitation, error)
	listFn              func(ctx context.Context, orgID int64, limit, offset int32) ([]model.Invitation, error)
	expireOldFn         func(ctx context.Context) (int64, error)
}

func (m *mockInvitationStore) Create(ctx context.Context, inv *model.Invitation) error {
	if m.createFn != nil {
		return m.createFn(ctx, inv)
	}
	return nil
}

func (m *mockInvitationStore) GetByID(_ context.Context, _, _ int64) (*model.Invitation, error) {
	return nil, store.ErrNotFound
}

func (m *mockInvitationStore) GetByToken(ctx context.Context, token string) (*model.Invitation, error) {
	if m.getByTokenFn != nil {
		return m.getByTokenFn(ctx, token)
	}
	return nil, store.ErrNotFound
}

func (m *mockInvitationStore) GetValidByToken(ctx context.Context, token string) (*model.Invitation, error) {
	if m.getValidByTokenFn != nil {
		return m.getValidByTokenFn(ctx, token)
	}
	return nil, store.ErrNotFound
}

func (m *mockInvitationStore) GetPendingByEmail(ctx context.Context, orgID int64, email string) (*model.Invitation, error) {
	if m.getPendingByEmailFn != nil {
		return m.getPendingByEmailFn(ctx, orgID, email)
	}
	return nil, store.ErrNotFound
}

func (m *mockInvitationStore) Accept(ctx context.Context, id, userID int64) (*model.Invitation, error) {
	if m.acceptFn != nil {
		return m.acceptFn(ctx, id, userID)
	}
	return nil, store.ErrNotFound
}

func (m *mockInvitationStore) Revoke(ctx context.Context, orgID, id int64) (*model.Invitation, error) {
	if m.revokeFn != nil {
		return m.revokeFn(ctx, orgID, id)
	}
	return nil, store.ErrNotFound
}

func (m *mockInvitationStore) ListByOrganization(ctx context.Context, orgID int64, limit, offset int32) ([]model.Invitation, error) {
	if m.listFn != nil {
		return m.listFn(ctx, orgID, limit, offset)
	}
	return nil, nil
}

func (m *mockInvitationStore) ExpireOld(ctx context.Context) (int64, error) {
	if m.expireOldFn != nil {
		return m.expireOldFn(ctx)
	}
	return 0, nil
}

type mockTemplateStore struct {
	createFn       func(ctx context.Context, tpl *model.SignatureTemplate) error
	getByIDFn      func(ctx context.Context, orgID, id int64) (*model.SignatureTemplate, error)
	getDefaultFn   func(ctx context.Context, orgID int64) (*model.SignatureTemplate, error)
	listFn         func(ctx context.Context, orgID int64) ([]model.SignatureTemplate, error)
	updateFn       func(ctx context.Context, tpl *model.SignatureTemplate) error
	deleteFn       func(ctx context.Context, orgID, id int64) error
	clearDefaultFn func(ctx context.Context, orgID int64) error
	setDefaultFn   func(ctx context.Context, orgID, id int64) error
}

func (m *mockTemplateStore) Create(ctx context.Context, tpl *model.SignatureTemplate) error {
	if m.createFn != nil {
		return m.createFn(ctx, tpl)
	}
	return nil
}

func (m *mockTemplateStore) GetByID(ctx context.Context, orgID, id int64) (*model.SignatureTemplate, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, orgID, id)
	}
	return nil, store.ErrNotFound
}

func (m *mockTemplateStore) GetDefault(ctx context.Context, orgID int64) (*model.SignatureTemplate, error) {
	if m.getDefaultFn != nil {
		return m.getDefaultFn(ctx, orgID)
	}
	return nil, store.ErrNotFound
}

func (m *mockTemplateStore) List(ctx context.Context, orgID int64) ([]model.SignatureTemplate, error) {
	if m.listFn != nil {
		return m.listFn(ctx, orgID)
	}
	return nil, nil
}

func (m *mockTemplateStore) Update(ctx context.Context, tpl *model.SignatureTemplate) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, tpl)
	}
	return nil
}

func (m *mockTemplateStore) Delete(ctx context.Context, orgID, id int64) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, orgID, id)
	}
	return nil
}

func (m *mockTemplateStore) ClearDefault(ctx context.Context, orgID int64) error {
	if m.clearDefaultFn != nil {
		return m.clearDefaultFn(ctx, orgID)
	}
	return nil
}

func (m *mockTemplateStore) SetDefault(ctx context.Context, orgID, id int64) error {
	if m.setDefaultFn != nil {
		return m.setDefaultFn(ctx, orgID, id)
	}
	return nil
}

type mockAzureSettingsStore struct {
	getFn           func(ctx context.Context, orgID int64) (*model.AzureSettings, error)
	upsertFn        func(ctx context.Context, s *model.AzureSettings) error
	markVerifiedFn  func(ctx context.Context, orgID int64, at time.Time) error
	markSyncedFn    func(ctx context.Context, orgID int64, at time.Time) error
	markConsentedFn func(ctx context.Context, orgID int64, tenantID string, at time.Time) error
}

func (m *mockAzureSettingsStore) Get(ctx context.Context, orgID int64) (*model.AzureSettings, error) {
	if m.getFn != nil {
		return m.getFn(ctx, orgID)
	}
	return nil, store.ErrNotFound
}

func (m *mockAzureSettingsStore) Upsert(ctx context.Context, s *model.AzureSettings) error {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, s)
	}
	return nil
}

func (m *mockAzureSettingsStore) MarkVerified(ctx context.Context, orgID int64, at time.Time) error {
	if m.markVerifiedFn != nil {
		return m.markVerifiedFn(ctx, orgID, at)
	}
	return nil
}

func (m *mockAzureSettingsStore) MarkSynced(ctx context.Context, orgID int64, at time.Time) error {
	if m.markSyncedFn != nil {
		return m.markSyncedFn(ctx, orgID, at)
	}
	return nil
}

func (m *mockAzureSettingsStore) MarkConsented(ctx context.Context, orgID int64, tenantID string, at time.Time) error {
	if m.markConsentedFn != nil {
		return m.markConsentedFn(ctx, orgID, tenantID, at)
	}
	return nil
}

type mockDirectoryUserStore struct {
	upsertFn      func(ctx context.Context, u *model.DirectoryUser) error
	getByIDFn     func(ctx context.Context, orgID, id int64) (*model.DirectoryUser, error)
	listFn        func(ctx context.Context, orgID int64, f store.DirectoryUserFilter) ([]model.DirectoryUser, error)
	countFn       func(ctx context.Context, orgID int64, f store.DirectoryUserFilter) (int64, error)
	deleteStaleFn func(ctx context.Context, orgID int64, before time.Time) (int64, error)
}

func (m *mockDirectoryUserStore) Upsert(ctx context.Context, u *model.DirectoryUser) error {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, u)
	}
	return nil
}

func (m *mockDirectoryUserStore) GetByID(ctx context.Context, orgID, id int64) (*model.DirectoryUser, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, orgID, id)
	}
	return nil, store.ErrNotFound
}

func (m *mockDirectoryUserStore) List(ctx context.Context, orgID int64, f store.DirectoryUserFilter) ([]model.DirectoryUser, error) {
	if m.listFn != nil {
		return m.listFn(ctx, orgID, f)
	}
	return nil, nil
}

func (m *mockDirectoryUserStore) Count(ctx context.Context, orgID int64, f store.DirectoryUserFilter) (int64, error) {
	if m.countFn != nil {
		return m.countFn(ctx, orgID, f)
	}
	return 0, nil
}

func (m *mockDirectoryUserStore) DeleteStale(ctx context.Context, orgID int64, before time.Time) (int64, error) {
	if m.deleteStaleFn != nil {
		return m.deleteStaleFn(ctx, orgID, before)
	}
	return 0, nil
}

type mockDeploymentStore struct {
	createFn    func(ctx context.Context, d *model.Deployment) error
	getByIDFn   func(ctx context.Context, orgID, id int64) (*model.Deployment, error)
	listFn      func(ctx context.Context, orgID int64, limit, offset int32) ([]model.Deployment, error)
	hasActiveFn func(ctx context.Context, orgID int64) (bool, error)
	finishFn    func(ctx context.Context, d *model.Deployment) error
}

func (m *mockDeploymentStore) Create(ctx context.Context, d *model.Deployment) error {
	if m.createFn != nil {
		return m.createFn(ctx, d)
	}
	return nil
}

func (m *mockDeploymentStore) GetByID(ctx context.Context, orgID, id int64) (*model.Deployment, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, orgID, id)
	}
	return nil, store.ErrNotFound
}

func (m *mockDeploymentStore) List(ctx context.Context, orgID int64, limit, offset int32) ([]model.Deployment, error) {
	if m.listFn != nil {
		return m.listFn(ctx, orgID, limit, offset)
	}
	return nil, nil
}

func (m *mockDeploymentStore) HasActive(ctx context.Context, orgID int64) (bool, error) {
	if m.hasActiveFn != nil {
		return m.hasActiveFn(ctx, orgID)
	}
	return false, nil
}

func (m *mockDeploymentStore) MarkRunning(_ context.Context, _ int64, _ time.Time) error {
	return nil
}

func (m *mockDeploymentStore) Finish(ctx context.Context, d *model.Deployment) error {
	if m.finishFn != nil {
		return m.finishFn(ctx, d)
	}
	return nil
}

type mockDeployedSignatureStore struct {
	latestFn func(ctx context.Context, orgID, directoryUserID int64) (*model.DeployedSignature, error)
}

func (m *mockDeployedSignatureStore) InsertBatch(_ context.Context, _ []model.DeployedSignature) error {
	return nil
}

func (m *mockDeployedSignatureStore) Latest(ctx context.Context, orgID, directoryUserID int64) (*model.DeployedSignature, error) {
	if m.latestFn != nil {
		return m.latestFn(ctx, orgID, directoryUserID)
	}
	return nil, store.ErrNotFound
}

// mockStoreProvider hands out whichever mocks a test sets, falling back to
// empty ones.
type mockStoreProvider struct {
	users       *mockUserStore
	orgs        *mockOrganizationStore
	sessions    *mockSessionStore
	invitations *mockInvitationStore
	templates   *mockTemplateStore
	azure       *mockAzureSettingsStore
	directory   *mockDirectoryUserStore
	deployments *mockDeploymentStore
	signatures  *mockDeployedSignatureStore
}

func newMockStoreProvider() *mockStoreProvider {
	return &mockStoreProvider{
		users:       &mockUserStore{},
		orgs:        &mockOrganizationStore{},
		sessions:    &mockSessionStore{},
		invitations: &mockInvitationStore{},
		templates:   &mockTemplateStore{},
		azure:       &mockAzureSettingsStore{},
		directory:   &mockDirectoryUserStore{},
		deployments: &mockDeploymentStore{},
		signatures:  &mockDeployedSignatureStore{},
	}
}

func (m *mockStoreProvider) Users() store.UserStore                   { return m.users }
func (m *mockStoreProvider) Organizations() store.OrganizationStore   { return m.orgs }
func (m *mockStoreProvider) Sessions() store.SessionStore             { return m.sessions }
func (m *mockStoreProvider) Invitations() store.InvitationStore       { return m.invitations }
func (m *mockStoreProvider) Templates() store.TemplateStore           { return m.templates }
func (m *mockStoreProvider) AzureSettings() store.AzureSettingsStore  { return m.azure }
func (m *mockStoreProvider) DirectoryUsers() store.DirectoryUserStore { return m.directory }
func (m *mockStoreProvider) Deployments() store.DeploymentStore       { return m.deployments }
func (m *mockStoreProvider) DeployedSignatures() store.DeployedSignatureStore {
	return m.signatures
}

type mockTxRunner struct {
	stores  service.StoreProvider
	txCalls int
}

func (m *mockTxRunner) WithTx(_ context.Context, fn func(stores service.StoreProvider) error) error {
	m.txCalls++
	return fn(m.stores)
}

type mockIdentityProvider struct {
	authURLFn      func(state string) (string, error)
	authenticateFn func(ctx context.Context, code string) (*service.Identity, error)
}

func (m *mockIdentityProvider) AuthorizationURL(state string) (string, error) {
	if m.authURLFn != nil {
		return m.authURLFn(state)
	}
	return "https://auth.example.com/authorize?state=" + state, nil
}

func (m *mockIdentityProvider) Authenticate(ctx context.Context, code string) (*service.Identity, error) {
	if m.authenticateFn != nil {
		return m.authenticateFn(ctx, code)
	}
	return nil, nil
}

type mockDirectory struct {
	listUsersFn      func(ctx context.Context, opts azure.ListOptions) ([]azure.User, error)
	testConnectionFn func(ctx context.Context) (*azure.TenantInfo, error)
}

func (m *mockDirectory) ListUsers(ctx context.Context, opts azure.ListOptions) ([]azure.User, error) {
	if m.listUsersFn != nil {
		return m.listUsersFn(ctx, opts)
	}
	return nil, nil
}

func (m *mockDirectory) GetUser(_ context.Context, _ string) (*azure.User, error) {
	return nil, azure.ErrUserNotFound
}

func (m *mockDirectory) TestConnection(ctx context.Context) (*azure.TenantInfo, error) {
	if m.testConnectionFn != nil {
		return m.testConnectionFn(ctx)
	}
	return &azure.TenantInfo{}, nil
}

type mockClientFactory struct {
	directory azure.Directory
	err       error
	lastCreds azure.Credentials
	forgotten []string
}

func (m *mockClientFactory) Client(creds azure.Credentials) (azure.Directory, error) {
	m.lastCreds = creds
	if m.err != nil {
		return nil, m.err
	}
	return m.directory, nil
}

func (m *mockClientFactory) Forget(tenantID, clientID string) {
	m.forgotten = append(m.forgotten, tenantID+"|"+clientID)
}

type mockProducer struct {
	enqueueFn func(ctx context.Context, task queue.Task) error
	tasks     []queue.Task
}

func (m *mockProducer) Enqueue(ctx context.Context, task queue.Task) error {
	m.tasks = append(m.tasks, task)
	if m.enqueueFn != nil {
		return m.enqueueFn(ctx, task)
	}
	return nil
}

func (m *mockProducer) Close() error {
	return nil
}

type mockAzureSettingsService struct {
	settings  *model.AzureSettings
	directory azure.Directory
	err       error
}

func (m *mockAzureSettingsService) Get(context.Context, int64) (*model.AzureSettings, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.settings == nil {
		return nil, service.ErrAzureNotConfigured
	}
	return m.settings, nil
}

func (m *mockAzureSettingsService) Save(context.Context, int64, service.AzureSettingsInput) (*model.AzureSettings, error) {
	return m.settings, m.err
}

func (m *mockAzureSettingsService) TestConnection(context.Context, int64) (*azure.TenantInfo, error) {
	return &azure.TenantInfo{}, m.err
}

func (m *mockAzureSettingsService) ConsentURL(context.Context, int64) (string, error) {
	return "", m.err
}

func (m *mockAzureSettingsService) CompleteConsent(context.Context, url.Values) (int64, error) {
	return 0, m.err
}

func (m *mockAzureSettingsService) Directory(context.Context, int64) (azure.Directory, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.directory, nil
}
