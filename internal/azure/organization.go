package azure

import (
	"context"
	"fmt"
)

// TenantInfo is what a successful connection test reports back to admins.
type TenantInfo struct {
	TenantID        string   `json:"tenant_id"`
	DisplayName     string   `json:"display_name"`
	DefaultDomain   string   `json:"default_domain,omitempty"`
	VerifiedDomains []string `json:"verified_domains"`
}

// TestConnection proves the credentials work by reading the tenant's
// organization record, which needs only Organization.Read.All / User.Read.All.
func (c *Client) TestConnection(ctx context.Context) (*TenantInfo, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	result, err := c.graph.Organization().Get(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("reading organization: %w", mapError(err))
	}
	if result == nil || len(result.GetValue()) == 0 {
		return nil, ErrTenantNotFound
	}

	org := result.GetValue()[0]
	info := &TenantInfo{
		TenantID:        deref(org.GetId()),
		DisplayName:     deref(org.GetDisplayName()),
		VerifiedDomains: []string{},
	}
	if info.TenantID == "" {
		info.TenantID = c.tenantID
	}
	for _, d := range org.GetVerifiedDomains() {
		name := deref(d.GetName())
		if name == "" {
			continue
		}
		info.VerifiedDomains = append(info.VerifiedDomains, name)
		if deref(d.GetIsDefault()) {
			info.DefaultDomain = name
		}
	}
	return info, nil
}
