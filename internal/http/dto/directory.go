package dto

import (
	"time"

	"sigdesk.app/server/internal/model"
	"sigdesk.app/server/internal/service"
)

type ListDirectoryUsersQuery struct {
	Search      string `form:"search" binding:"omitempty,max=100"`
	Limit       int32  `form:"limit" binding:"omitempty,min=1,max=200"`
	Offset      int32  `form:"offset" binding:"omitempty,min=0"`
	EnabledOnly bool   `form:"enabled_only"`
}

type DirectoryUserResponse struct {
	ID                int64     `json:"id,string"`
	AzureObjectID     string    `json:"azure_object_id"`
	DisplayName       string    `json:"display_name"`
	GivenName         string    `json:"given_name,omitempty"`
	Surname           string    `json:"surname,omitempty"`
	Email             string    `json:"email"`
	UserPrincipalName string    `json:"user_principal_name"`
	JobTitle          string    `json:"job_title,omitempty"`
	Department        string    `json:"department,omitempty"`
	CompanyName       string    `json:"company_name,omitempty"`
	OfficeLocation    string    `json:"office_location,omitempty"`
	BusinessPhone     string    `json:"business_phone,omitempty"`
	MobilePhone       string    `json:"mobile_phone,omitempty"`
	AccountEnabled    bool      `json:"account_enabled"`
	SyncedAt          time.Time `json:"synced_at"`
}

type DirectoryUserListResponse struct {
	Users  []DirectoryUserResponse `json:"users"`
	Total  int64                   `json:"total"`
	Limit  int32                   `json:"limit"`
	Offset int32                   `json:"offset"`
}

type SyncRequestedResponse struct {
	Status string `json:"status"`
}

func ToDirectoryUserResponse(u *model.DirectoryUser) DirectoryUserResponse {
	return DirectoryUserResponse{
		ID:                u.ID,
		AzureObjectID:     u.AzureObjectID,
		DisplayName:       u.DisplayName,
		GivenName:         u.GivenName,
		Surname:           u.Surname,
		Email:             u.PrimaryEmail(),
		UserPrincipalName: u.UserPrincipalName,
		JobTitle:          u.JobTitle,
		Department:        u.Department,
		CompanyName:       u.CompanyName,
		OfficeLocation:    u.OfficeLocation,
		BusinessPhone:     u.BusinessPhone,
		MobilePhone:       u.MobilePhone,
		AccountEnabled:    u.AccountEnabled,
		SyncedAt:          u.SyncedAt,
	}
}

func ToDirectoryUserListResponse(page *service.DirectoryUserPage) DirectoryUserListResponse {
	users := make([]DirectoryUserResponse, 0, len(page.Users))
	for i := range page.Users {
		users = append(users, ToDirectoryUserResponse(&page.Users[i]))
	}
	return DirectoryUserListResponse{
		Users:  users,
		Total:  page.Total,
		Limit:  page.Limit,
		Offset: page.Offset,
	}
}
