package model

import "time"

// DirectoryUser is a mailbox owner synced from the organization's Azure AD.
// Unique per (OrganizationID, AzureObjectID).
type DirectoryUser struct {
	ID                int64     `json:"id"`
	OrganizationID    int64     `json:"organization_id"`
	AzureObjectID     string    `json:"azure_object_id"`
	DisplayName       string    `json:"display_name"`
	GivenName         string    `json:"given_name"`
	Surname           string    `json:"surname"`
	Mail              string    `json:"mail"`
	UserPrincipalName string    `json:"user_principal_name"`
	JobTitle          string    `json:"job_title"`
	Department        string    `json:"department"`
	CompanyName       string    `json:"company_name"`
	OfficeLocation    string    `json:"office_location"`
	BusinessPhone     string    `json:"business_phone"`
	MobilePhone       string    `json:"mobile_phone"`
	AccountEnabled    bool      `json:"account_enabled"`
	SyncedAt          time.Time `json:"synced_at"`
	CreatedAt         time.Time `json:"created_at"`
}

// PrimaryEmail falls back to the UPN for accounts without a mailbox address.
func (u *DirectoryUser) PrimaryEmail() string {
	if u.Mail != "" {
		return u.Mail
	}
	return u.UserPrincipalName
}
