package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"sigdesk.app/server/internal/http/dto"
	"sigdesk.app/server/internal/http/middleware"
	"sigdesk.app/server/internal/model"
	"sigdesk.app/server/internal/service"
)

type InvitationHandler struct {
	invitationService service.InvitationService
}

func NewInvitationHandler(invitationService service.InvitationService) *InvitationHandler {
	return &InvitationHandler{invitationService: invitationService}
}

func (h *InvitationHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()
	user := middleware.GetUser(ctx)

	var req dto.CreateInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	inv, inviteURL, err := h.invitationService.Create(ctx, middleware.OrganizationID(ctx), req.Email, model.Role(req.Role), user.ID)
	if err != nil {
		respondError(c, err, "create invitation")
		return
	}

	c.JSON(http.StatusCreated, dto.CreateInvitationResponse{
		Invitation: dto.ToInvitationResponse(inv),
		InviteURL:  inviteURL,
	})
}

func (h *InvitationHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	var q dto.ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondBindError(c, err)
		return
	}

	invs, err := h.invitationService.List(ctx, middleware.OrganizationID(ctx), q.Limit, q.Offset)
	if err != nil {
		respondError(c, err, "list invitations")
		return
	}

	c.JSON(http.StatusOK, gin.H{"invitations": dto.ToInvitationResponses(invs)})
}

func (h *InvitationHandler) Revoke(c *gin.Context) {
	ctx := c.Request.Context()

	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	inv, err := h.invitationService.Revoke(ctx, middleware.OrganizationID(ctx), id)
	if err != nil {
		respondError(c, err, "revoke invitation")
		return
	}

	c.JSON(http.StatusOK, dto.ToInvitationResponse(inv))
}

// Validate is public: the dashboard calls it before sign-in to show who the
// invitation is for.
func (h *InvitationHandler) Validate(c *gin.Context) {
	ctx := c.Request.Context()

	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token is required"})
		return
	}

	inv, err := h.invitationService.ValidateToken(ctx, token)
	if err != nil {
		respondError(c, err, "validate invitation")
		return
	}

	c.JSON(http.StatusOK, dto.ValidateInvitationResponse{
		Email:     inv.Email,
		Role:      string(inv.Role),
		ExpiresAt: inv.ExpiresAt,
		Valid:     true,
	})
}
