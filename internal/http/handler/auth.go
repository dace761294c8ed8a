package handler

import (
	"crypto/rand"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"sigdesk.app/server/internal/http/dto"
	"sigdesk.app/server/internal/http/middleware"
	"sigdesk.app/server/internal/service"
)

type AuthHandler struct {
	authService       service.AuthService
	invitationService service.InvitationService
}

func NewAuthHandler(authService service.AuthService, invitationService service.InvitationService) *AuthHandler {
	return &AuthHandler{
		authService:       authService,
		invitationService: invitationService,
	}
}

// GetAuthURL returns the WorkOS authorization URL and the state the dashboard
// must check on the redirect back.
func (h *AuthHandler) GetAuthURL(c *gin.Context) {
	state, err := generateState()
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "failed to generate state", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate state"})
		return
	}

	authURL, err := h.authService.GetAuthorizationURL(state)
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "failed to get authorization URL", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get authorization URL"})
		return
	}

	c.JSON(http.StatusOK, dto.AuthURLResponse{
		AuthorizationURL: authURL,
		State:            state,
	})
}

// Exchange trades an authorization code for a session. With an invite token
// the new user also joins the inviting organization; if that fails the
// session is discarded so the caller is not left half signed in.
func (h *AuthHandler) Exchange(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.ExchangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	user, session, err := h.authService.HandleCallback(ctx, req.Code)
	if err != nil {
		slog.WarnContext(ctx, "failed to exchange code", "error", err)
		respondError(c, err, "exchange code")
		return
	}

	if req.InviteToken != nil && *req.InviteToken != "" {
		if _, err := h.invitationService.Accept(ctx, *req.InviteToken, user); err != nil {
			slog.WarnContext(ctx, "failed to accept invitation during exchange",
				"error", err,
				"user_id", user.ID,
			)
			if delErr := h.authService.Logout(ctx, session.ID); delErr != nil {
				slog.WarnContext(ctx, "failed to delete session after invite failure",
					"error", delErr,
					"session_id", session.ID,
				)
			}
			respondError(c, err, "accept invitation")
			return
		}
	}

	c.JSON(http.StatusOK, dto.ExchangeResponse{
		User:      dto.ToUserResponse(user),
		SessionID: strconv.FormatInt(session.ID, 10),
		ExpiresAt: session.ExpiresAt,
	})
}

func (h *AuthHandler) ValidateSession(c *gin.Context) {
	ctx := c.Request.Context()

	sessionID, err := middleware.ParseSessionID(c.GetHeader(middleware.SessionIDHeader))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session ID required"})
		return
	}

	user, err := h.authService.ValidateSession(ctx, sessionID)
	if err != nil {
		respondError(c, err, "validate session")
		return
	}

	c.JSON(http.StatusOK, dto.SessionResponse{
		User:            dto.ToUserResponse(user),
		HasOrganization: user.OrganizationID != nil,
	})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	ctx := c.Request.Context()

	sessionID, err := middleware.ParseSessionID(c.GetHeader(middleware.SessionIDHeader))
	if err == nil {
		if err := h.authService.Logout(ctx, sessionID); err != nil {
			slog.WarnContext(ctx, "failed to delete session", "error", err, "session_id", sessionID)
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
