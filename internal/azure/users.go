package azure

import (
	"context"
	"fmt"
	"log/slog"

	graphcore "github.com/microsoftgraph/msgraph-sdk-go-core"
	"github.com/microsoftgraph/msgraph-sdk-go/models"
	"github.com/microsoftgraph/msgraph-sdk-go/users"
)

// userFields are the profile attributes signatures draw on.
var userFields = []string{
	"id", "displayName", "givenName", "surname", "mail", "userPrincipalName",
	"jobTitle", "department", "companyName", "officeLocation",
	"businessPhones", "mobilePhone", "accountEnabled",
}

// User is a Graph user reduced to signature-relevant attributes.
type User struct {
	ObjectID          string
	DisplayName       string
	GivenName         string
	Surname           string
	Mail              string
	UserPrincipalName string
	JobTitle          string
	Department        string
	CompanyName       string
	OfficeLocation    string
	BusinessPhone     string
	MobilePhone       string
	AccountEnabled    bool
}

type ListOptions struct {
	// Filter is an OData $filter expression, e.g. "accountEnabled eq true".
	Filter string
	// Limit stops iteration after this many users; zero means all.
	Limit int
}

// ListUsers returns every user in the tenant, following @odata.nextLink until
// the last page. Users with neither mail nor UPN are skipped.
func (c *Client) ListUsers(ctx context.Context, opts ListOptions) ([]User, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	pageSize := c.opts.PageSize
	query := users.UsersRequestBuilderGetQueryParameters{
		Select: userFields,
		Top:    &pageSize,
	}
	if opts.Filter != "" {
		query.Filter = &opts.Filter
	}

	result, err := c.graph.Users().Get(ctx, &users.UsersRequestBuilderGetRequestConfiguration{
		QueryParameters: &query,
	})
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", mapError(err))
	}
	if result == nil {
		return nil, nil
	}

	iter, err := graphcore.NewPageIterator[models.Userable](
		result,
		c.graph.GetAdapter(),
		models.CreateUserCollectionResponseFromDiscriminatorValue,
	)
	if err != nil {
		return nil, fmt.Errorf("creating user page iterator: %w", err)
	}

	var (
		out     []User
		skipped int
	)
	err = iter.Iterate(ctx, func(u models.Userable) bool {
		user := toUser(u)
		if user.Mail == "" && user.UserPrincipalName == "" {
			skipped++
			return true
		}
		out = append(out, user)
		return opts.Limit <= 0 || len(out) < opts.Limit
	})
	if err != nil {
		return nil, fmt.Errorf("iterating users: %w", mapError(err))
	}

	slog.DebugContext(ctx, "listed azure users",
		"tenant_id", c.tenantID,
		"count", len(out),
		"skipped", skipped)

	return out, nil
}

// GetUser fetches one user by object id or user principal name.
func (c *Client) GetUser(ctx context.Context, idOrUPN string) (*User, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	u, err := c.graph.Users().ByUserId(idOrUPN).Get(ctx, &users.UserItemRequestBuilderGetRequestConfiguration{
		QueryParameters: &users.UserItemRequestBuilderGetQueryParameters{Select: userFields},
	})
	if err != nil {
		return nil, fmt.Errorf("getting user %s: %w", idOrUPN, mapError(err))
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	user := toUser(u)
	return &user, nil
}

func toUser(u models.Userable) User {
	user := User{
		ObjectID:          deref(u.GetId()),
		DisplayName:       deref(u.GetDisplayName()),
		GivenName:         deref(u.GetGivenName()),
		Surname:           deref(u.GetSurname()),
		Mail:              deref(u.GetMail()),
		UserPrincipalName: deref(u.GetUserPrincipalName()),
		JobTitle:          deref(u.GetJobTitle()),
		Department:        deref(u.GetDepartment()),
		CompanyName:       deref(u.GetCompanyName()),
		OfficeLocation:    deref(u.GetOfficeLocation()),
		MobilePhone:       deref(u.GetMobilePhone()),
		AccountEnabled:    deref(u.GetAccountEnabled()),
	}
	if phones := u.GetBusinessPhones(); len(phones) > 0 {
		user.BusinessPhone = phones[0]
	}
	return user
}
