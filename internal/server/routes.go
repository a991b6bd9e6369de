package server

import (
	"mosaic/internal/server/middleware"
	"mosaic/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)

	// Note processing
	apiRoutes.POST("/process", routes.ProcessNoteHandler)
	apiRoutes.GET("/notes/:id", routes.GetNoteHandler)

	// Knowledge graph
	apiRoutes.GET("/mosaic/graph", routes.GetGraphHandler)
	apiRoutes.POST("/mosaic/projections", routes.ComputeProjectionsHandler)
	apiRoutes.POST("/entities/resolve", routes.ResolveEntitiesHandler)

	// Diagnostics
	apiRoutes.GET("/debug/processing-logs", routes.GetProcessingLogsHandler)
}
