package model

import "time"

type Organization struct {
	ID          int64     `json:"id"`
	AdminUserID int64     `json:"admin_user_id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Domain      *string   `json:"domain,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	IsDeleted   bool      `json:"-"`
}
