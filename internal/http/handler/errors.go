package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"sigdesk.app/server/core/db"
	"sigdesk.app/server/internal/azure"
	"sigdesk.app/server/internal/service"
	"sigdesk.app/server/internal/signature"
	"sigdesk.app/server/internal/store"
	"sigdesk.app/server/internal/validate"
)

type errorMapping struct {
	target error
	status int
	// detail returns the full wrapped message, which for validation errors
	// names the offending field or placeholder.
	detail bool
}

var errorMappings = []errorMapping{
	{validate.ErrInvalidEmail, http.StatusBadRequest, true},
	{validate.ErrInvalidGUID, http.StatusBadRequest, true},
	{validate.ErrInvalidName, http.StatusBadRequest, true},
	{validate.ErrInvalidSlug, http.StatusBadRequest, true},
	{validate.ErrInvalidURL, http.StatusBadRequest, true},
	{validate.ErrInvalidTemplate, http.StatusBadRequest, true},
	{validate.ErrInvalidDomain, http.StatusBadRequest, true},
	{signature.ErrUnknownPlaceholder, http.StatusBadRequest, true},
	{service.ErrInvalidRole, http.StatusBadRequest, false},
	{service.ErrInvalidCode, http.StatusBadRequest, false},
	{service.ErrDescriptionTooLong, http.StatusBadRequest, false},
	{service.ErrAzureSecretRequired, http.StatusBadRequest, false},
	{service.ErrInvalidConsentState, http.StatusBadRequest, false},
	{azure.ErrConsentDenied, http.StatusBadRequest, false},

	{service.ErrSessionExpired, http.StatusUnauthorized, false},

	{service.ErrEmailMismatch, http.StatusForbidden, false},
	{service.ErrConsentTenantMismatch, http.StatusForbidden, false},

	{service.ErrOrganizationNotFound, http.StatusNotFound, false},
	{service.ErrUserNotFound, http.StatusNotFound, false},
	{service.ErrMemberNotFound, http.StatusNotFound, false},
	{service.ErrInviteNotFound, http.StatusNotFound, false},
	{service.ErrTemplateNotFound, http.StatusNotFound, false},
	{service.ErrDirectoryUserNotFound, http.StatusNotFound, false},
	{service.ErrDeploymentNotFound, http.StatusNotFound, false},
	{service.ErrSignatureNotFound, http.StatusNotFound, false},
	{service.ErrAzureNotConfigured, http.StatusNotFound, false},
	{store.ErrNotFound, http.StatusNotFound, false},

	{service.ErrAlreadyMember, http.StatusConflict, false},
	{service.ErrInvitePendingExists, http.StatusConflict, false},
	{service.ErrLastAdmin, http.StatusConflict, false},
	{service.ErrTemplateInUse, http.StatusConflict, false},
	{service.ErrDeploymentInProgress, http.StatusConflict, false},

	{service.ErrInviteExpired, http.StatusGone, false},
	{service.ErrInviteAlreadyUsed, http.StatusGone, false},
	{service.ErrInviteRevoked, http.StatusGone, false},

	{azure.ErrInvalidCredentials, http.StatusUnprocessableEntity, false},
	{azure.ErrTenantNotFound, http.StatusUnprocessableEntity, false},
	{azure.ErrForbidden, http.StatusUnprocessableEntity, false},
	{azure.ErrUserNotFound, http.StatusUnprocessableEntity, false},
	{azure.ErrUnavailable, http.StatusBadGateway, false},
}

// respondError writes {"error": msg} with the status mapped from err.
// Unmapped errors are logged and reported as "failed to <action>".
func respondError(c *gin.Context, err error, action string) {
	status, msg := classifyError(err)
	if status == http.StatusInternalServerError {
		slog.ErrorContext(c.Request.Context(), "failed to "+action, "error", err)
		msg = "failed to " + action
	} else if status >= 500 {
		slog.WarnContext(c.Request.Context(), "upstream failure", "action", action, "error", err)
	}
	c.JSON(status, gin.H{"error": msg})
}

func classifyError(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			if m.detail {
				return m.status, err.Error()
			}
			return m.status, m.target.Error()
		}
	}
	if db.IsUniqueViolation(err) {
		return http.StatusConflict, "resource already exists"
	}
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return http.StatusRequestEntityTooLarge, "request body too large"
	}
	return http.StatusInternalServerError, ""
}

// respondBindError reports a ShouldBind failure as 400, or 413 when the body
// exceeded the configured limit.
func respondBindError(c *gin.Context, err error) {
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": bindErrorMessage(err)})
}

func bindErrorMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request body"
	}
	fields := validate.Errors(err)
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+" "+fields[k])
	}
	return strings.Join(parts, "; ")
}

func parseIDParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

func parseOptionalID(raw *string) (*int64, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(*raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, errors.New("invalid id")
	}
	return &id, nil
}
