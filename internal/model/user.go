package model

import "time"

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleMember:
		return true
	}
	return false
}

type User struct {
	ID             int64     `json:"id"`
	OrganizationID *int64    `json:"organization_id,omitempty"`
	Role           Role      `json:"role"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	AvatarURL      *string   `json:"avatar_url,omitempty"`
	WorkOSID       *string   `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// BelongsTo reports whether the user is a member of orgID.
func (u *User) BelongsTo(orgID int64) bool {
	return u.OrganizationID != nil && *u.OrganizationID == orgID
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
