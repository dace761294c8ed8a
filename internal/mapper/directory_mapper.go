// Package mapper converts external directory records into stored models.
package mapper

import (
	"strings"
	"time"

	"sigdesk.app/server/internal/azure"
	"sigdesk.app/server/internal/model"
	"sigdesk.app/server/internal/sanitize"
)

// Field length caps applied before storage; Graph allows longer values than
// any signature layout can use.
const (
	maxNameField  = 256
	maxOtherField = 128
)

type DirectoryUserMapper struct {
	now func() time.Time
}

func NewDirectoryUserMapper() *DirectoryUserMapper {
	return &DirectoryUserMapper{now: time.Now}
}

// Map converts a Graph user into a directory user row for orgID. Every text
// attribute is stripped of markup since it ends up inside signature HTML.
func (m *DirectoryUserMapper) Map(orgID int64, u azure.User) *model.DirectoryUser {
	return &model.DirectoryUser{
		OrganizationID:    orgID,
		AzureObjectID:     u.ObjectID,
		DisplayName:       clean(u.DisplayName, maxNameField),
		GivenName:         clean(u.GivenName, maxNameField),
		Surname:           clean(u.Surname, maxNameField),
		Mail:              strings.ToLower(clean(u.Mail, maxNameField)),
		UserPrincipalName: strings.ToLower(clean(u.UserPrincipalName, maxNameField)),
		JobTitle:          clean(u.JobTitle, maxOtherField),
		Department:        clean(u.Department, maxOtherField),
		CompanyName:       clean(u.CompanyName, maxOtherField),
		OfficeLocation:    clean(u.OfficeLocation, maxOtherField),
		BusinessPhone:     clean(u.BusinessPhone, maxOtherField),
		MobilePhone:       clean(u.MobilePhone, maxOtherField),
		AccountEnabled:    u.AccountEnabled,
		SyncedAt:          m.now().UTC(),
	}
}

// MapAll maps users, dropping entries without an object id.
func (m *DirectoryUserMapper) MapAll(orgID int64, users []azure.User) []*model.DirectoryUser {
	out := make([]*model.DirectoryUser, 0, len(users))
	for _, u := range users {
		if u.ObjectID == "" {
			continue
		}
		out = append(out, m.Map(orgID, u))
	}
	return out
}

func clean(s string, max int) string {
	s = sanitize.Text(s)
	if r := []rune(s); len(r) > max {
		s = strings.TrimSpace(string(r[:max]))
	}
	return s
}
