// Package azure talks to Microsoft Graph on behalf of one customer tenant.
package azure

import (
	"context"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	abstractions "github.com/microsoft/kiota-abstractions-go"
	azauth "github.com/microsoft/kiota-authentication-azure-go"
	msgraphsdk "github.com/microsoftgraph/msgraph-sdk-go"
)

const (
	GraphScope       = "https://graph.microsoft.com/.default"
	DefaultPageSize  = int32(100)
	MaxPageSize      = int32(999)
	defaultTimeout   = 30 * time.Second
	loginEndpoint    = "https://login.microsoftonline.com"
	consentTenantAny = "organizations"
)

// Credentials identify an app registration in a customer tenant.
type Credentials struct {
	TenantID     string
	ClientID     string
	ClientSecret string
}

func (c Credentials) Validate() error {
	if c.TenantID == "" || c.ClientID == "" || c.ClientSecret == "" {
		return fmt.Errorf("%w: tenant id, client id and secret are required", ErrInvalidCredentials)
	}
	return nil
}

// Directory is the read-only view of a tenant the rest of the app needs.
type Directory interface {
	ListUsers(ctx context.Context, opts ListOptions) ([]User, error)
	GetUser(ctx context.Context, idOrUPN string) (*User, error)
	TestConnection(ctx context.Context) (*TenantInfo, error)
}

type Options struct {
	PageSize int32
	Timeout  time.Duration
}

func (o Options) withDefaults() Options {
	if o.PageSize <= 0 {
		o.PageSize = DefaultPageSize
	}
	if o.PageSize > MaxPageSize {
		o.PageSize = MaxPageSize
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	return o
}

// Client is a Graph client bound to one tenant's app credentials.
type Client struct {
	graph    *msgraphsdk.GraphServiceClient
	tenantID string
	opts     Options
}

// NewClient authenticates with the client-credentials flow against tenant.
// No token is fetched until the first request.
func NewClient(creds Credentials, opts Options) (*Client, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	cred, err := azidentity.NewClientSecretCredential(creds.TenantID, creds.ClientID, creds.ClientSecret, nil)
	if err != nil {
		return nil, fmt.Errorf("creating client secret credential: %w", err)
	}

	authProvider, err := azauth.NewAzureIdentityAuthenticationProviderWithScopes(cred, []string{GraphScope})
	if err != nil {
		return nil, fmt.Errorf("creating graph auth provider: %w", err)
	}

	adapter, err := msgraphsdk.NewGraphRequestAdapter(authProvider)
	if err != nil {
		return nil, fmt.Errorf("creating graph request adapter: %w", err)
	}

	return NewClientWithAdapter(adapter, creds.TenantID, opts), nil
}

// NewClientWithAdapter wraps an existing request adapter, e.g. one pointed at
// a national cloud or a test server.
func NewClientWithAdapter(adapter abstractions.RequestAdapter, tenantID string, opts Options) *Client {
	return &Client{
		graph:    msgraphsdk.NewGraphServiceClient(adapter),
		tenantID: tenantID,
		opts:     opts.withDefaults(),
	}
}

func (c *Client) TenantID() string { return c.tenantID }

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.opts.Timeout)
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
