package dto

import (
	"strconv"
	"time"

	"sigdesk.app/server/internal/model"
)

type UserResponse struct {
	AvatarURL      *string   `json:"avatar_url,omitempty"`
	OrganizationID *string   `json:"organization_id,omitempty"`
	ID             int64     `json:"id,string"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Role           string    `json:"role"`
	CreatedAt      time.Time `json:"created_at"`
}

type ChangeRoleRequest struct {
	Role string `json:"role" binding:"required,oneof=admin member"`
}

func ToUserResponse(u *model.User) UserResponse {
	return UserResponse{
		AvatarURL:      u.AvatarURL,
		OrganizationID: FormatIDPtr(u.OrganizationID),
		ID:             u.ID,
		Name:           u.Name,
		Email:          u.Email,
		Role:           string(u.Role),
		CreatedAt:      u.CreatedAt,
	}
}

func ToUserResponses(users []model.User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for i := range users {
		out = append(out, ToUserResponse(&users[i]))
	}
	return out
}

// FormatIDPtr renders an optional snowflake id as a JSON-safe string.
func FormatIDPtr(id *int64) *string {
	if id == nil {
		return nil
	}
	s := strconv.FormatInt(*id, 10)
	return &s
}
