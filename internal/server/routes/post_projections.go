package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"mosaic/internal/server/middleware"
	"mosaic/pkg/logger"
	"mosaic/pkg/projection"
)

func ComputeProjectionsHandler(c echo.Context) error {
	type projectionParams struct {
		Method string `json:"method" validate:"omitempty,oneof=random similarity"`
	}

	params := new(projectionParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid request params"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid request params"})
	}
	if params.Method == "" {
		params.Method = string(projection.MethodSimilarity)
	}

	user := c.(*middleware.AppContext).User
	if user == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	projections, err := app.Projection.Compute(ctx, user.UserID, projection.Method(params.Method))
	if err != nil {
		logger.Error("Failed to compute projections", "user", user.UserID, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"method":      params.Method,
		"count":       len(projections),
		"projections": projections,
	})
}
