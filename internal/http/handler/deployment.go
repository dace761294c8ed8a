package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"sigdesk.app/server/internal/http/dto"
	"sigdesk.app/server/internal/http/middleware"
	"sigdesk.app/server/internal/service"
)

type DeploymentHandler struct {
	deploymentService service.DeploymentService
}

func NewDeploymentHandler(deploymentService service.DeploymentService) *DeploymentHandler {
	return &DeploymentHandler{deploymentService: deploymentService}
}

func (h *DeploymentHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()
	user := middleware.GetUser(ctx)

	var req dto.CreateDeploymentRequest
	// An empty body deploys the default template.
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondBindError(c, err)
		return
	}

	templateID, err := parseOptionalID(req.TemplateID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid template_id"})
		return
	}

	d, err := h.deploymentService.Create(ctx, middleware.OrganizationID(ctx), user.ID, templateID)
	if err != nil {
		respondError(c, err, "create deployment")
		return
	}

	c.JSON(http.StatusAccepted, dto.ToDeploymentResponse(d))
}

func (h *DeploymentHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	var q dto.ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondBindError(c, err)
		return
	}

	ds, err := h.deploymentService.List(ctx, middleware.OrganizationID(ctx), q.Limit, q.Offset)
	if err != nil {
		respondError(c, err, "list deployments")
		return
	}

	c.JSON(http.StatusOK, gin.H{"deployments": dto.ToDeploymentResponses(ds)})
}

func (h *DeploymentHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	d, err := h.deploymentService.Get(ctx, middleware.OrganizationID(ctx), id)
	if err != nil {
		respondError(c, err, "get deployment")
		return
	}

	c.JSON(http.StatusOK, dto.ToDeploymentResponse(d))
}
