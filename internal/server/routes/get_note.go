package routes

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"mosaic/internal/server/middleware"
	"mosaic/pkg/common"
	"mosaic/pkg/logger"
)

func GetNoteHandler(c echo.Context) error {
	type noteParams struct {
		NoteID string `param:"id" validate:"required"`
	}

	params := new(noteParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid request params"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid request params"})
	}

	user := c.(*middleware.AppContext).User
	if user == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	note, err := app.Store.GetNote(ctx, params.NoteID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"message": "Note not found"})
		}
		logger.Error("Failed to load note", "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
	}
	if note.UserID != user.UserID {
		return c.JSON(http.StatusForbidden, map[string]string{"message": "Unauthorized"})
	}

	return c.JSON(http.StatusOK, note)
}
