package router

import (
	"github.com/gin-gonic/gin"

	"sigdesk.app/server/internal/http/handler"
)

// PublicRouter holds the endpoints reached without a session: invitation
// previews and Microsoft's consent redirect.
func PublicRouter(router *gin.RouterGroup, invitations *handler.InvitationHandler, azure *handler.AzureHandler) {
	router.GET("/invitations/validate", invitations.Validate)
	router.GET("/azure/consent/callback", azure.ConsentCallback)
}

// OrganizationRouter lets signed-in users without an organization create one;
// the current organization needs membership.
func OrganizationRouter(router *gin.RouterGroup, h *handler.OrganizationHandler, requireOrg, admin gin.HandlerFunc) {
	router.POST("", h.Create)
	router.GET("/current", requireOrg, h.GetCurrent)
	router.PATCH("/current", requireOrg, admin, h.UpdateCurrent)
}

func MemberRouter(router *gin.RouterGroup, h *handler.MemberHandler, admin gin.HandlerFunc) {
	router.GET("", h.List)
	router.PATCH("/:user_id/role", admin, h.ChangeRole)
	router.DELETE("/:user_id", admin, h.Remove)
}

func InvitationRouter(router *gin.RouterGroup, h *handler.InvitationHandler) {
	router.POST("", h.Create)
	router.GET("", h.List)
	router.POST("/:id/revoke", h.Revoke)
}

func TemplateRouter(router *gin.RouterGroup, h *handler.TemplateHandler) {
	router.GET("", h.List)
	router.POST("", h.Create)
	router.POST("/preview", h.Preview)
	router.GET("/:id", h.Get)
	router.PUT("/:id", h.Update)
	router.DELETE("/:id", h.Delete)
	router.POST("/:id/default", h.SetDefault)
}

func AzureRouter(router *gin.RouterGroup, h *handler.AzureHandler, admin, sensitive gin.HandlerFunc) {
	router.GET("/settings", h.GetSettings)
	router.PUT("/settings", admin, sensitive, h.SaveSettings)
	router.POST("/test", admin, sensitive, h.TestConnection)
	router.GET("/consent-url", admin, h.ConsentURL)
}

func DirectoryRouter(router *gin.RouterGroup, h *handler.DirectoryHandler, sensitive gin.HandlerFunc) {
	router.GET("/users", h.List)
	router.GET("/users/:id", h.Get)
	router.GET("/users/:id/signature", h.Signature)
	router.POST("/sync", sensitive, h.Sync)
}

func DeploymentRouter(router *gin.RouterGroup, h *handler.DeploymentHandler, sensitive gin.HandlerFunc) {
	router.POST("", sensitive, h.Create)
	router.GET("", h.List)
	router.GET("/:id", h.Get)
}
