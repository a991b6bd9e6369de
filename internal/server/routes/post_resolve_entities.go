package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"mosaic/internal/server/middleware"
	"mosaic/pkg/logger"
)

func ResolveEntitiesHandler(c echo.Context) error {
	user := c.(*middleware.AppContext).User
	if user == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	merged, err := app.Graph.ResolveAndMerge(ctx, user.UserID)
	if err != nil {
		logger.Error("Entity resolution failed", "user", user.UserID, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"message": "Entity resolution complete",
		"merged":  merged,
	})
}
