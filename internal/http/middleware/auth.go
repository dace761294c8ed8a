package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"sigdesk.app/server/common/logger"
	"sigdesk.app/server/internal/model"
	"sigdesk.app/server/internal/service"
)

const SessionIDHeader = "X-Session-ID"

type contextKey string

const (
	userContextKey      contextKey = "user"
	sessionIDContextKey contextKey = "session_id"
)

// RequireSession resolves the X-Session-ID header to a user and stores both
// on the request context.
func RequireSession(authService service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		sessionID, err := ParseSessionID(c.GetHeader(SessionIDHeader))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
			return
		}

		user, err := authService.ValidateSession(ctx, sessionID)
		if err != nil {
			if errors.Is(err, service.ErrSessionExpired) || errors.Is(err, service.ErrUserNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
				return
			}
			slog.ErrorContext(ctx, "failed to validate session", "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to validate session"})
			return
		}

		ctx = context.WithValue(ctx, userContextKey, user)
		ctx = context.WithValue(ctx, sessionIDContextKey, sessionID)
		ctx = logger.WithLogFields(ctx, logger.LogFields{
			UserID:         &user.ID,
			OrganizationID: user.OrganizationID,
		})
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// RequireOrganization rejects users that have not created or joined an
// organization yet. Must run after RequireSession.
func RequireOrganization() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := GetUser(c.Request.Context())
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
			return
		}
		if user.OrganizationID == nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "organization membership required"})
			return
		}
		c.Next()
	}
}

// RequireRole allows only users holding role. Must run after RequireSession.
func RequireRole(role model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := GetUser(c.Request.Context())
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
			return
		}
		if user.Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": string(role) + " role required"})
			return
		}
		c.Next()
	}
}

func GetUser(ctx context.Context) *model.User {
	user, _ := ctx.Value(userContextKey).(*model.User)
	return user
}

func GetSessionID(ctx context.Context) int64 {
	sessionID, _ := ctx.Value(sessionIDContextKey).(int64)
	return sessionID
}

// OrganizationID returns the current user's organization, or 0.
func OrganizationID(ctx context.Context) int64 {
	user := GetUser(ctx)
	if user == nil || user.OrganizationID == nil {
		return 0
	}
	return *user.OrganizationID
}

// WithUser is used by tests and by handlers that authenticate inline.
func WithUser(ctx context.Context, user *model.User, sessionID int64) context.Context {
	ctx = context.WithValue(ctx, userContextKey, user)
	return context.WithValue(ctx, sessionIDContextKey, sessionID)
}

func ParseSessionID(raw string) (int64, error) {
	if raw == "" {
		return 0, errors.New("session id is required")
	}
	sessionID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || sessionID <= 0 {
		return 0, errors.New("invalid session id")
	}
	return sessionID, nil
}
