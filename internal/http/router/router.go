package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"sigdesk.app/server/internal/http/handler"
	"sigdesk.app/server/internal/http/middleware"
	"sigdesk.app/server/internal/model"
	"sigdesk.app/server/internal/service"
)

type RouterConfig struct {
	DashboardURL string
	Limiters     Limiters
}

func SetupRoutes(router *gin.Engine, services *service.Services, cfg RouterConfig) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authHandler := handler.NewAuthHandler(services.Auth(), services.Invitations())
	AuthRouter(router.Group("/auth"), authHandler, cfg.Limiters)

	invitationHandler := handler.NewInvitationHandler(services.Invitations())
	azureHandler := handler.NewAzureHandler(services.AzureSettings(), cfg.DashboardURL)

	v1 := router.Group("/api/v1")
	{
		PublicRouter(v1.Group("", middleware.RateLimit(cfg.Limiters.Public)), invitationHandler, azureHandler)

		authed := v1.Group("",
			middleware.RequireSession(services.Auth()),
			middleware.RateLimit(cfg.Limiters.API),
		)

		requireOrg := middleware.RequireOrganization()
		admin := middleware.RequireRole(model.RoleAdmin)

		orgHandler := handler.NewOrganizationHandler(services.Organizations())
		OrganizationRouter(authed.Group("/organizations"), orgHandler, requireOrg, admin)

		tenant := authed.Group("", requireOrg)

		memberHandler := handler.NewMemberHandler(services.Users())
		MemberRouter(tenant.Group("/members"), memberHandler, admin)

		InvitationRouter(tenant.Group("/invitations", admin), invitationHandler)

		templateHandler := handler.NewTemplateHandler(services.Templates())
		TemplateRouter(tenant.Group("/templates"), templateHandler)

		AzureRouter(tenant.Group("/azure"), azureHandler, admin, middleware.RateLimit(cfg.Limiters.Sensitive))

		directoryHandler := handler.NewDirectoryHandler(services.Directory(), services.Deployments())
		DirectoryRouter(tenant.Group("/directory"), directoryHandler, middleware.RateLimit(cfg.Limiters.Sensitive))

		deploymentHandler := handler.NewDeploymentHandler(services.Deployments())
		DeploymentRouter(tenant.Group("/deployments"), deploymentHandler, middleware.RateLimit(cfg.Limiters.Sensitive))
	}
}
