package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"sigdesk.app/server/core/config"
	"sigdesk.app/server/internal/azure"
	"sigdesk.app/server/internal/model"
	"sigdesk.app/server/internal/store"
	"sigdesk.app/server/internal/validate"
)

const (
	ConsentStateTTL    = 15 * time.Minute
	maxClientSecretLen = 1024
)

var consentStateAAD = []byte("azure-consent-state")

var (
	ErrAzureNotConfigured    = errors.New("azure settings are not configured")
	ErrAzureSecretRequired   = errors.New("client secret is required")
	ErrInvalidConsentState   = errors.New("consent state is invalid or expired")
	ErrConsentTenantMismatch = errors.New("consent was granted for a different tenant")
)

// SecretSealer encrypts client secrets at rest.
type SecretSealer interface {
	Seal(plaintext, aad []byte) (ciphertext, nonce []byte, err error)
	Open(ciphertext, nonce, aad []byte) ([]byte, error)
}

// DirectoryClientFactory hands out Graph clients per app registration.
type DirectoryClientFactory interface {
	Client(creds azure.Credentials) (azure.Directory, error)
	Forget(tenantID, clientID string)
}

type AzureSettingsInput struct {
	TenantID string
	ClientID string
	// ClientSecret may be omitted to keep the stored secret for the same app.
	ClientSecret *string
}

type AzureSettingsService interface {
	// Get never exposes the client secret.
	Get(ctx context.Context, orgID int64) (*model.AzureSettings, error)
	Save(ctx context.Context, orgID int64, in AzureSettingsInput) (*model.AzureSettings, error)
	TestConnection(ctx context.Context, orgID int64) (*azure.TenantInfo, error)
	ConsentURL(ctx context.Context, orgID int64) (string, error)
	// CompleteConsent records the admin-consent redirect and returns the
	// organization it belongs to.
	CompleteConsent(ctx context.Context, q url.Values) (int64, error)
	// Directory returns a Graph client for the organization's tenant.
	Directory(ctx context.Context, orgID int64) (azure.Directory, error)
}

type azureSettingsService struct {
	settingsStore store.AzureSettingsStore
	sealer        SecretSealer
	factory       DirectoryClientFactory
	cfg           config.AzureConfig
	now           func() time.Time
}

func NewAzureSettingsService(
	settingsStore store.AzureSettingsStore,
	sealer SecretSealer,
	factory DirectoryClientFactory,
	cfg config.AzureConfig,
) AzureSettingsService {
	return &azureSettingsService{
		settingsStore: settingsStore,
		sealer:        sealer,
		factory:       factory,
		cfg:           cfg,
		now:           time.Now,
	}
}

func (s *azureSettingsService) Get(ctx context.Context, orgID int64) (*model.AzureSettings, error) {
	settings, err := s.settingsStore.Get(ctx, orgID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrAzureNotConfigured
		}
		return nil, fmt.Errorf("getting azure settings: %w", err)
	}
	return settings, nil
}

func (s *azureSettingsService) Save(ctx context.Context, orgID int64, in AzureSettingsInput) (*model.AzureSettings, error) {
	tenantID, err := validate.TenantID(in.TenantID)
	if err != nil {
		return nil, err
	}
	clientID, err := validate.ClientID(in.ClientID)
	if err != nil {
		return nil, err
	}

	existing, err := s.settingsStore.Get(ctx, orgID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("getting azure settings: %w", err)
	}

	settings := &model.AzureSettings{
		OrganizationID: orgID,
		TenantID:       tenantID,
		ClientID:       clientID,
	}

	secret := ""
	if in.ClientSecret != nil {
		secret = strings.TrimSpace(*in.ClientSecret)
	}
	switch {
	case secret != "":
		if len(secret) > maxClientSecretLen {
			return nil, fmt.Errorf("client secret must be at most %d characters", maxClientSecretLen)
		}
		ct, nonce, err := s.sealer.Seal([]byte(secret), settingsAAD(orgID))
		if err != nil {
			return nil, fmt.Errorf("sealing client secret: %w", err)
		}
		settings.SecretCiphertext, settings.SecretNonce = ct, nonce
	case existing != nil && existing.HasSecret() && existing.ClientID == clientID:
		settings.SecretCiphertext, settings.SecretNonce = existing.SecretCiphertext, existing.SecretNonce
	default:
		return nil, ErrAzureSecretRequired
	}

	if err := s.settingsStore.Upsert(ctx, settings); err != nil {
		return nil, fmt.Errorf("saving azure settings: %w", err)
	}

	if existing != nil {
		s.factory.Forget(existing.TenantID, existing.ClientID)
	}

	slog.InfoContext(ctx, "azure settings saved",
		"tenant_id", tenantID,
		"client_id", clientID,
		"secret_rotated", secret != "")

	return settings, nil
}

func (s *azureSettingsService) TestConnection(ctx context.Context, orgID int64) (*azure.TenantInfo, error) {
	dir, err := s.Directory(ctx, orgID)
	if err != nil {
		return nil, err
	}

	info, err := dir.TestConnection(ctx)
	if err != nil {
		slog.WarnContext(ctx, "azure connection test failed", "error", err)
		return nil, err
	}

	if err := s.settingsStore.MarkVerified(ctx, orgID, s.now().UTC()); err != nil {
		return nil, fmt.Errorf("recording verification: %w", err)
	}
	return info, nil
}

func (s *azureSettingsService) Directory(ctx context.Context, orgID int64) (azure.Directory, error) {
	settings, err := s.Get(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if !settings.HasSecret() {
		return nil, ErrAzureSecretRequired
	}

	secret, err := s.sealer.Open(settings.SecretCiphertext, settings.SecretNonce, settingsAAD(orgID))
	if err != nil {
		return nil, fmt.Errorf("opening client secret: %w", err)
	}

	return s.factory.Client(azure.Credentials{
		TenantID:     settings.TenantID,
		ClientID:     settings.ClientID,
		ClientSecret: string(secret),
	})
}

func (s *azureSettingsService) ConsentURL(ctx context.Context, orgID int64) (string, error) {
	settings, err := s.Get(ctx, orgID)
	if err != nil {
		return "", err
	}

	state, err := s.sealState(orgID)
	if err != nil {
		return "", err
	}
	return azure.AdminConsentURL(settings.ClientID, s.cfg.ConsentRedirectURI, state, settings.TenantID), nil
}

func (s *azureSettingsService) CompleteConsent(ctx context.Context, q url.Values) (int64, error) {
	result, err := azure.ParseConsentCallback(q)
	if err != nil {
		return 0, err
	}

	orgID, err := s.openState(result.State)
	if err != nil {
		return 0, err
	}

	if err := s.settingsStore.MarkConsented(ctx, orgID, result.TenantID, s.now().UTC()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, ErrConsentTenantMismatch
		}
		return 0, fmt.Errorf("recording consent: %w", err)
	}

	slog.InfoContext(ctx, "azure admin consent recorded",
		"organization_id", orgID,
		"tenant_id", result.TenantID)
	return orgID, nil
}

// sealState encodes the organization and an expiry so the unauthenticated
// consent redirect can be tied back to the org that started it.
func (s *azureSettingsService) sealState(orgID int64) (string, error) {
	payload := strconv.FormatInt(orgID, 10) + ":" + strconv.FormatInt(s.now().Add(ConsentStateTTL).Unix(), 10)
	ct, nonce, err := s.sealer.Seal([]byte(payload), consentStateAAD)
	if err != nil {
		return "", fmt.Errorf("sealing consent state: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteByte(byte(len(nonce)))
	buf.Write(nonce)
	buf.Write(ct)
	return base64.RawURLEncoding.EncodeToString(buf.Bytes()), nil
}

func (s *azureSettingsService) openState(state string) (int64, error) {
	raw, err := base64.RawURLEncoding.DecodeString(state)
	if err != nil || len(raw) < 2 {
		return 0, ErrInvalidConsentState
	}
	n := int(raw[0])
	if len(raw) < 1+n {
		return 0, ErrInvalidConsentState
	}

	plain, err := s.sealer.Open(raw[1+n:], raw[1:1+n], consentStateAAD)
	if err != nil {
		return 0, ErrInvalidConsentState
	}

	orgPart, expPart, ok := strings.Cut(string(plain), ":")
	if !ok {
		return 0, ErrInvalidConsentState
	}
	orgID, err := strconv.ParseInt(orgPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidConsentState
	}
	exp, err := strconv.ParseInt(expPart, 10, 64)
	if err != nil || !s.now().Before(time.Unix(exp, 0)) {
		return 0, ErrInvalidConsentState
	}
	return orgID, nil
}

// settingsAAD binds a sealed secret to its organization.
func settingsAAD(orgID int64) []byte {
	return []byte("azure-settings:" + strconv.FormatInt(orgID, 10))
}
