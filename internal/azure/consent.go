package azure

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// AdminConsentURL builds the Microsoft identity platform admin-consent link
// for a multi-tenant app. An empty tenant lets any work account's admin
// consent.
func AdminConsentURL(clientID, redirectURI, state, tenant string) string {
	if tenant == "" {
		tenant = consentTenantAny
	}
	q := url.Values{}
	q.Set("client_id", clientID)
	q.Set("scope", GraphScope)
	q.Set("redirect_uri", redirectURI)
	if state != "" {
		q.Set("state", state)
	}
	return fmt.Sprintf("%s/%s/v2.0/adminconsent?%s", loginEndpoint, url.PathEscape(tenant), q.Encode())
}

// ConsentResult is the outcome of a successful admin-consent redirect.
type ConsentResult struct {
	TenantID string
	State    string
}

// ParseConsentCallback reads the query Microsoft appends to the redirect URI.
func ParseConsentCallback(q url.Values) (*ConsentResult, error) {
	if e := q.Get("error"); e != "" {
		desc := strings.TrimSpace(q.Get("error_description"))
		if desc == "" {
			return nil, fmt.Errorf("%w: %s", ErrConsentDenied, e)
		}
		// error_description carries trace ids after the first line.
		desc, _, _ = strings.Cut(desc, "\n")
		return nil, fmt.Errorf("%w: %s: %s", ErrConsentDenied, e, desc)
	}

	if !strings.EqualFold(q.Get("admin_consent"), "true") {
		return nil, fmt.Errorf("%w: admin_consent flag missing", ErrConsentDenied)
	}

	tenant := strings.ToLower(strings.TrimSpace(q.Get("tenant")))
	if _, err := uuid.Parse(tenant); err != nil || len(tenant) != 36 {
		return nil, fmt.Errorf("%w: invalid tenant in callback", ErrConsentDenied)
	}

	return &ConsentResult{TenantID: tenant, State: q.Get("state")}, nil
}
