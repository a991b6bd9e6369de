package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"mosaic/internal/server/middleware"
	"mosaic/pkg/logger"
)

func GetGraphHandler(c echo.Context) error {
	user := c.(*middleware.AppContext).User
	if user == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	graph, err := app.Graph.Build(ctx, user.UserID)
	if err != nil {
		logger.Error("Failed to build graph", "user", user.UserID, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
	}

	return c.JSON(http.StatusOK, graph)
}
