package azure

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"
	"sync"
)

// ClientFactory hands out one Client per app registration so token caches
// are shared across requests for the same tenant.
type ClientFactory struct {
	mu      sync.Mutex
	clients map[string]*Client
	opts    Options
	newFn   func(Credentials, Options) (*Client, error)
}

func NewClientFactory(opts Options) *ClientFactory {
	return &ClientFactory{
		clients: map[string]*Client{},
		opts:    opts,
		newFn:   NewClient,
	}
}

// Client returns the cached client for creds, creating it on first use.
// A rotated secret replaces the previous client for that app.
func (f *ClientFactory) Client(creds Credentials) (Directory, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	key := cacheKey(creds)

	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.clients[key]; ok {
		return c, nil
	}

	c, err := f.newFn(creds, f.opts)
	if err != nil {
		return nil, err
	}
	f.forgetLocked(creds.TenantID, creds.ClientID)
	f.clients[key] = c

	slog.Debug("azure client created", "tenant_id", creds.TenantID, "cached_clients", len(f.clients))
	return c, nil
}

// Forget drops every cached client for the tenant/app pair.
func (f *ClientFactory) Forget(tenantID, clientID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forgetLocked(tenantID, clientID)
}

func (f *ClientFactory) forgetLocked(tenantID, clientID string) {
	prefix := tenantID + "|" + clientID + "|"
	for k := range f.clients {
		if strings.HasPrefix(k, prefix) {
			delete(f.clients, k)
		}
	}
}

func (f *ClientFactory) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clients)
}

func cacheKey(c Credentials) string {
	sum := sha256.Sum256([]byte(c.ClientSecret))
	return c.TenantID + "|" + c.ClientID + "|" + hex.EncodeToString(sum[:8])
}
