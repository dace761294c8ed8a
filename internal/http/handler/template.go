package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"sigdesk.app/server/internal/http/dto"
	"sigdesk.app/server/internal/http/middleware"
	"sigdesk.app/server/internal/service"
)

type TemplateHandler struct {
	templateService service.TemplateService
}

func NewTemplateHandler(templateService service.TemplateService) *TemplateHandler {
	return &TemplateHandler{templateService: templateService}
}

func (h *TemplateHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	tpls, err := h.templateService.List(ctx, middleware.OrganizationID(ctx))
	if err != nil {
		respondError(c, err, "list templates")
		return
	}

	c.JSON(http.StatusOK, gin.H{"templates": dto.ToTemplateResponses(tpls)})
}

func (h *TemplateHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()
	user := middleware.GetUser(ctx)

	var req dto.CreateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	tpl, err := h.templateService.Create(ctx, middleware.OrganizationID(ctx), user.ID, service.TemplateInput{
		Name:        req.Name,
		Description: req.Description,
		HTML:        req.HTML,
		IsDefault:   req.IsDefault,
	})
	if err != nil {
		respondError(c, err, "create template")
		return
	}

	c.JSON(http.StatusCreated, dto.ToTemplateResponse(tpl))
}

func (h *TemplateHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	tpl, err := h.templateService.Get(ctx, middleware.OrganizationID(ctx), id)
	if err != nil {
		respondError(c, err, "get template")
		return
	}

	c.JSON(http.StatusOK, dto.ToTemplateResponse(tpl))
}

func (h *TemplateHandler) Update(c *gin.Context) {
	ctx := c.Request.Context()

	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	tpl, err := h.templateService.Update(ctx, middleware.OrganizationID(ctx), id, service.TemplateUpdate{
		Name:        req.Name,
		Description: req.Description,
		HTML:        req.HTML,
	})
	if err != nil {
		respondError(c, err, "update template")
		return
	}

	c.JSON(http.StatusOK, dto.ToTemplateResponse(tpl))
}

func (h *TemplateHandler) Delete(c *gin.Context) {
	ctx := c.Request.Context()

	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.templateService.Delete(ctx, middleware.OrganizationID(ctx), id); err != nil {
		respondError(c, err, "delete template")
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *TemplateHandler) SetDefault(c *gin.Context) {
	ctx := c.Request.Context()

	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	tpl, err := h.templateService.SetDefault(ctx, middleware.OrganizationID(ctx), id)
	if err != nil {
		respondError(c, err, "set default template")
		return
	}

	c.JSON(http.StatusOK, dto.ToTemplateResponse(tpl))
}

func (h *TemplateHandler) Preview(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.PreviewTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	directoryUserID, err := parseOptionalID(req.DirectoryUserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid directory_user_id"})
		return
	}

	html, err := h.templateService.Preview(ctx, middleware.OrganizationID(ctx), req.HTML, directoryUserID)
	if err != nil {
		respondError(c, err, "preview template")
		return
	}

	c.JSON(http.StatusOK, dto.PreviewTemplateResponse{HTML: html})
}
