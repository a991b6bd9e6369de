package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"mosaic/pkg/common"
	"mosaic/pkg/graph"
	"mosaic/pkg/logger"
	"mosaic/pkg/pipeline"
)

// NoteProcessMsg asks the worker to run the processing pipeline for one note.
type NoteProcessMsg struct {
	Message string `json:"message,omitempty"`
	NoteID  string `json:"note_id"`
	UserID  string `json:"user_id"`
}

// EntityResolveMsg asks the worker to deduplicate a user's entities.
type EntityResolveMsg struct {
	Message string `json:"message,omitempty"`
	UserID  string `json:"user_id"`
}

// ProcessNoteMessage handles one message from the process queue. A note that
// is already being processed or no longer exists is not an error worth
// retrying; the message is consumed.
func ProcessNoteMessage(ctx context.Context, runner *pipeline.Runner, msg string) error {
	data := new(NoteProcessMsg)
	if err := json.Unmarshal([]byte(msg), data); err != nil {
		return fmt.Errorf("malformed process message: %w", err)
	}
	if data.NoteID == "" {
		return fmt.Errorf("process message without note_id: %w", common.ErrValidation)
	}

	result, err := runner.Process(ctx, data.NoteID)
	if errors.Is(err, common.ErrAlreadyProcessing) || errors.Is(err, common.ErrNotFound) {
		logger.Info("[Queue] Skipping note", "note", data.NoteID, "reason", err)
		return nil
	}
	if err != nil {
		return err
	}
	logger.Info("[Queue] Note processed", "note", data.NoteID,
		"chunks", result.ChunkCount, "tags", len(result.Tags),
		"tasks", result.TaskCount, "events", result.EventCount,
		"duration_ms", result.ProcessingTimeMs)
	return nil
}

// ProcessResolveMessage handles one message from the resolve queue.
func ProcessResolveMessage(ctx context.Context, engine *graph.Engine, msg string) error {
	data := new(EntityResolveMsg)
	if err := json.Unmarshal([]byte(msg), data); err != nil {
		return fmt.Errorf("malformed resolve message: %w", err)
	}
	if data.UserID == "" {
		return fmt.Errorf("resolve message without user_id: %w", common.ErrValidation)
	}

	merged, err := engine.ResolveAndMerge(ctx, data.UserID)
	if err != nil {
		return err
	}
	logger.Info("[Queue] Entity resolution done", "user", data.UserID, "merged", merged)
	return nil
}
