package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"sigdesk.app/server/internal/azure"
	"sigdesk.app/server/internal/http/dto"
	"sigdesk.app/server/internal/http/middleware"
	"sigdesk.app/server/internal/service"
)

const azureSettingsPath = "/settings/azure"

type AzureHandler struct {
	azureService service.AzureSettingsService
	dashboardURL string
}

func NewAzureHandler(azureService service.AzureSettingsService, dashboardURL string) *AzureHandler {
	return &AzureHandler{
		azureService: azureService,
		dashboardURL: strings.TrimRight(dashboardURL, "/"),
	}
}

func (h *AzureHandler) GetSettings(c *gin.Context) {
	ctx := c.Request.Context()

	settings, err := h.azureService.Get(ctx, middleware.OrganizationID(ctx))
	if err != nil {
		respondError(c, err, "get azure settings")
		return
	}

	c.JSON(http.StatusOK, dto.ToAzureSettingsResponse(settings))
}

func (h *AzureHandler) SaveSettings(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.SaveAzureSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	settings, err := h.azureService.Save(ctx, middleware.OrganizationID(ctx), service.AzureSettingsInput{
		TenantID:     req.TenantID,
		ClientID:     req.ClientID,
		ClientSecret: req.ClientSecret,
	})
	if err != nil {
		respondError(c, err, "save azure settings")
		return
	}

	c.JSON(http.StatusOK, dto.ToAzureSettingsResponse(settings))
}

func (h *AzureHandler) TestConnection(c *gin.Context) {
	ctx := c.Request.Context()

	info, err := h.azureService.TestConnection(ctx, middleware.OrganizationID(ctx))
	if err != nil {
		respondError(c, err, "test azure connection")
		return
	}

	c.JSON(http.StatusOK, info)
}

func (h *AzureHandler) ConsentURL(c *gin.Context) {
	ctx := c.Request.Context()

	consentURL, err := h.azureService.ConsentURL(ctx, middleware.OrganizationID(ctx))
	if err != nil {
		respondError(c, err, "build consent URL")
		return
	}

	c.JSON(http.StatusOK, dto.ConsentURLResponse{URL: consentURL})
}

// ConsentCallback receives Microsoft's admin-consent redirect. It carries no
// session, so the organization comes from the sealed state, and the browser is
// sent back to the dashboard either way.
func (h *AzureHandler) ConsentCallback(c *gin.Context) {
	ctx := c.Request.Context()

	_, err := h.azureService.CompleteConsent(ctx, c.Request.URL.Query())
	if err != nil {
		slog.WarnContext(ctx, "azure consent callback failed", "error", err)
		c.Redirect(http.StatusFound, h.consentRedirect("error", consentErrorCode(err)))
		return
	}

	c.Redirect(http.StatusFound, h.consentRedirect("granted", ""))
}

func (h *AzureHandler) consentRedirect(outcome, reason string) string {
	q := url.Values{"consent": {outcome}}
	if reason != "" {
		q.Set("reason", reason)
	}
	return h.dashboardURL + azureSettingsPath + "?" + q.Encode()
}

func consentErrorCode(err error) string {
	switch {
	case errors.Is(err, azure.ErrConsentDenied):
		return "denied"
	case errors.Is(err, service.ErrInvalidConsentState):
		return "invalid_state"
	case errors.Is(err, service.ErrConsentTenantMismatch):
		return "tenant_mismatch"
	default:
		return "failed"
	}
}
