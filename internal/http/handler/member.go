package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"sigdesk.app/server/internal/http/dto"
	"sigdesk.app/server/internal/http/middleware"
	"sigdesk.app/server/internal/model"
	"sigdesk.app/server/internal/service"
)

type MemberHandler struct {
	userService service.UserService
}

func NewMemberHandler(userService service.UserService) *MemberHandler {
	return &MemberHandler{userService: userService}
}

func (h *MemberHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	users, err := h.userService.ListMembers(ctx, middleware.OrganizationID(ctx))
	if err != nil {
		respondError(c, err, "list members")
		return
	}

	c.JSON(http.StatusOK, gin.H{"members": dto.ToUserResponses(users)})
}

func (h *MemberHandler) ChangeRole(c *gin.Context) {
	ctx := c.Request.Context()

	userID, ok := parseIDParam(c, "user_id")
	if !ok {
		return
	}

	var req dto.ChangeRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	user, err := h.userService.ChangeRole(ctx, middleware.OrganizationID(ctx), userID, model.Role(req.Role))
	if err != nil {
		respondError(c, err, "change role")
		return
	}

	slog.InfoContext(ctx, "member role changed", "member_id", userID, "role", req.Role)
	c.JSON(http.StatusOK, dto.ToUserResponse(user))
}

func (h *MemberHandler) Remove(c *gin.Context) {
	ctx := c.Request.Context()

	userID, ok := parseIDParam(c, "user_id")
	if !ok {
		return
	}

	if err := h.userService.RemoveMember(ctx, middleware.OrganizationID(ctx), userID); err != nil {
		respondError(c, err, "remove member")
		return
	}

	slog.InfoContext(ctx, "member removed", "member_id", userID)
	c.Status(http.StatusNoContent)
}
