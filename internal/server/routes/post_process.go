package routes

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"mosaic/internal/queue"
	"mosaic/internal/server/middleware"
	"mosaic/pkg/common"
	"mosaic/pkg/logger"
)

func ProcessNoteHandler(c echo.Context) error {
	type processParams struct {
		NoteID string `json:"note_id" validate:"required"`
	}

	params := new(processParams)
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
	if note.Status == common.StatusProcessing {
		return c.JSON(http.StatusConflict, map[string]string{"message": "Note is already processing"})
	}

	if app.Queue != nil {
		msg, err := json.Marshal(queue.NoteProcessMsg{
			NoteID: note.ID,
			UserID: user.UserID,
		})
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
		}
		if err := queue.PublishFIFO(app.Queue, queue.ProcessQueue, msg); err != nil {
			logger.Error("Failed to publish process message", "note", note.ID, "err", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
		}
	} else {
		// Detach from the request context so the run survives the response.
		app.Runner.ProcessAsync(context.Background(), note.ID)
	}

	return c.JSON(http.StatusAccepted, map[string]string{
		"message": "Processing queued",
		"note_id": note.ID,
	})
}
