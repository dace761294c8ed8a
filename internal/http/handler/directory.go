package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"sigdesk.app/server/internal/http/dto"
	"sigdesk.app/server/internal/http/middleware"
	"sigdesk.app/server/internal/service"
	"sigdesk.app/server/internal/store"
)

type DirectoryHandler struct {
	directoryService  service.DirectoryService
	deploymentService service.DeploymentService
}

func NewDirectoryHandler(directoryService service.DirectoryService, deploymentService service.DeploymentService) *DirectoryHandler {
	return &DirectoryHandler{
		directoryService:  directoryService,
		deploymentService: deploymentService,
	}
}

func (h *DirectoryHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	var q dto.ListDirectoryUsersQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondBindError(c, err)
		return
	}

	page, err := h.directoryService.List(ctx, middleware.OrganizationID(ctx), store.DirectoryUserFilter{
		Search:      q.Search,
		EnabledOnly: q.EnabledOnly,
		Limit:       q.Limit,
		Offset:      q.Offset,
	})
	if err != nil {
		respondError(c, err, "list directory users")
		return
	}

	c.JSON(http.StatusOK, dto.ToDirectoryUserListResponse(page))
}

func (h *DirectoryHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	u, err := h.directoryService.Get(ctx, middleware.OrganizationID(ctx), id)
	if err != nil {
		respondError(c, err, "get directory user")
		return
	}

	c.JSON(http.StatusOK, dto.ToDirectoryUserResponse(u))
}

// Sync queues a background directory sync; progress shows up in
// last_sync_at on the Azure settings.
func (h *DirectoryHandler) Sync(c *gin.Context) {
	ctx := c.Request.Context()

	if err := h.directoryService.RequestSync(ctx, middleware.OrganizationID(ctx)); err != nil {
		respondError(c, err, "request directory sync")
		return
	}

	c.JSON(http.StatusAccepted, dto.SyncRequestedResponse{Status: "queued"})
}

// Signature returns the live signature last deployed for a directory user.
func (h *DirectoryHandler) Signature(c *gin.Context) {
	ctx := c.Request.Context()

	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	sig, err := h.deploymentService.LatestSignature(ctx, middleware.OrganizationID(ctx), id)
	if err != nil {
		respondError(c, err, "get signature")
		return
	}

	c.JSON(http.StatusOK, dto.ToSignatureResponse(sig))
}
