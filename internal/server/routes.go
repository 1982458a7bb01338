package server

import (
	"github.com/OFFIS-RIT/herbflow/backend/internal/server/middleware"
	"github.com/OFFIS-RIT/herbflow/backend/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api")

	// Dataset routes
	apiRoutes.GET("/dataset", routes.GetDatasetHandler)
	apiRoutes.POST("/dataset/refresh", routes.PostRefreshHandler, middleware.AuthMiddleware, middleware.RequirePermission(middleware.PermissionDatasetRefresh))

	// Analysis routes
	apiRoutes.GET("/prescriptions", routes.GetPrescriptionsHandler)
	apiRoutes.GET("/prescriptions/:name/flow", routes.GetPrescriptionFlowHandler)
	apiRoutes.GET("/prescriptions/:name/mechanisms", routes.GetPrescriptionMechanismsHandler)
	apiRoutes.GET("/compare", routes.GetCompareHandler)
	apiRoutes.GET("/insights", routes.GetInsightsHandler)
}
