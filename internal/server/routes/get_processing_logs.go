package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"mosaic/internal/server/middleware"
	"mosaic/pkg/logger"
)

func GetProcessingLogsHandler(c echo.Context) error {
	type logParams struct {
		ItemID string `query:"item_id"`
		Limit  int    `query:"limit" validate:"omitempty,min=1,max=500"`
		Offset int    `query:"offset" validate:"omitempty,min=0"`
	}

	params := new(logParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid request params"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid request params"})
	}
	if params.Limit == 0 {
		params.Limit = 100
	}

	user := c.(*middleware.AppContext).User
	if user == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	logs, err := app.Store.ListLogs(ctx, user.UserID, params.ItemID, params.Limit, params.Offset)
	if err != nil {
		logger.Error("Failed to list processing logs", "user", user.UserID, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
	}

	stats, err := app.Store.LogStats(ctx, user.UserID)
	if err != nil {
		logger.Error("Failed to load processing log stats", "user", user.UserID, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"logs":  logs,
		"stats": stats,
	})
}
