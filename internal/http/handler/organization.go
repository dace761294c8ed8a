package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"sigdesk.app/server/internal/http/dto"
	"sigdesk.app/server/internal/http/middleware"
	"sigdesk.app/server/internal/service"
)

type OrganizationHandler struct {
	orgService service.OrganizationService
}

func NewOrganizationHandler(orgService service.OrganizationService) *OrganizationHandler {
	return &OrganizationHandler{orgService: orgService}
}

// Create makes the caller the first admin of a new organization.
func (h *OrganizationHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()
	user := middleware.GetUser(ctx)

	var req dto.CreateOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	org, err := h.orgService.Create(ctx, user, service.OrganizationInput{
		Name:   req.Name,
		Slug:   req.Slug,
		Domain: req.Domain,
	})
	if err != nil {
		respondError(c, err, "create organization")
		return
	}

	c.JSON(http.StatusCreated, dto.ToOrganizationResponse(org))
}

func (h *OrganizationHandler) GetCurrent(c *gin.Context) {
	ctx := c.Request.Context()

	org, err := h.orgService.Get(ctx, middleware.OrganizationID(ctx))
	if err != nil {
		respondError(c, err, "get organization")
		return
	}

	c.JSON(http.StatusOK, dto.ToOrganizationResponse(org))
}

func (h *OrganizationHandler) UpdateCurrent(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.UpdateOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	org, err := h.orgService.Update(ctx, middleware.OrganizationID(ctx), service.OrganizationUpdate{
		Name:   req.Name,
		Domain: req.Domain,
	})
	if err != nil {
		respondError(c, err, "update organization")
		return
	}

	c.JSON(http.StatusOK, dto.ToOrganizationResponse(org))
}
