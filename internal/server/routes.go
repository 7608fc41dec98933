package server

import (
	"github.com/entlink/entlink/internal/server/middleware"
	"github.com/entlink/entlink/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)

	// Resolution routes
	apiRoutes.GET("/sources", routes.GetSourcesHandler)
	apiRoutes.POST("/resolve", routes.ResolveBatchHandler, middleware.RequirePermission("resolve.run"))

	// Extraction routes
	apiRoutes.POST("/extract", routes.ExtractHandler, middleware.RequirePermission("extract.run"))

	// Graph routes
	apiRoutes.POST("/graphs", routes.CreateGraphHandler, middleware.RequirePermission("graph.create"))
	apiRoutes.GET("/graphs/:id", routes.GetGraphHandler, middleware.RequireAnyPermission("graph.view", "graph.create"))
	apiRoutes.DELETE("/graphs/:id", routes.DeleteGraphHandler, middleware.RequirePermission("graph.delete"))

	// Cache routes
	apiRoutes.DELETE("/cache/:source", routes.InvalidateCacheHandler, middleware.RequirePermission("cache.invalidate"))
}
