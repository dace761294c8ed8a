package router

import (
	"github.com/gin-gonic/gin"

	"sigdesk.app/server/internal/http/handler"
	"sigdesk.app/server/internal/http/middleware"
)

// AuthRouter applies the strict sign-in limit to the endpoints that talk to
// WorkOS; session checks use the general API budget.
func AuthRouter(router *gin.RouterGroup, h *handler.AuthHandler, limiters Limiters) {
	signIn := middleware.RateLimit(limiters.Auth)
	api := middleware.RateLimit(limiters.API)

	router.GET("/url", signIn, h.GetAuthURL)
	router.POST("/exchange", signIn, h.Exchange)
	router.GET("/validate", api, h.ValidateSession)
	router.POST("/logout", api, h.Logout)
}
