package api

import (
	"net/http"

	hospitalityHandler "hospitality-server/internal/hospitality/handler"

	"github.com/gin-gonic/gin"
)

type API struct {
	router             *gin.RouterGroup
	hospitalityHandler hospitalityHandler.Handler
}

func New(router *gin.RouterGroup, hospitalityHandler hospitalityHandler.Handler) API {
	return API{
		router:             router,
		hospitalityHandler: hospitalityHandler,
	}
}

func (a *API) RegisterRoutes() {
	a.Health()
	apiGroup := a.router.Group("/api")
	{
		hospitalityGroup := apiGroup.Group("/hospitality")
		hospitalityGroup.POST("/events", a.hospitalityHandler.HandleIngest)
		hospitalityGroup.POST("/actions/:action_id/outcome", a.hospitalityHandler.HandleReportOutcome)
		hospitalityGroup.GET("/visitors/:identity_key/state", a.hospitalityHandler.HandleGetVisitorState)
		hospitalityGroup.GET("/visitors/:identity_key/cooldowns", a.hospitalityHandler.HandleGetVisitorCooldowns)
		hospitalityGroup.GET("/rules", a.hospitalityHandler.HandleGetRules)
		hospitalityGroup.GET("/rules/:rule_id/stats", a.hospitalityHandler.HandleGetRuleStats)
		hospitalityGroup.POST("/rules/refresh", a.hospitalityHandler.HandleRefreshCatalog)
	}
}

func (a *API) Health() {
	a.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})
}
