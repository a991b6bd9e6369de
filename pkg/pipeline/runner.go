package pipeline

import (
	"context"

	"mosaic/internal/util"
	"mosaic/pkg/logger"

	"golang.org/x/sync/semaphore"
)

// Runner bounds how many notes are processed concurrently. Queue consumers
// and HTTP handlers share one Runner so the AI providers see a predictable
// request rate regardless of how work arrives.
type Runner struct {
	processor *Processor
	slots     *semaphore.Weighted
}

// NewRunner creates a Runner with the given concurrency. A non-positive
// value falls back to the PIPELINE_WORKERS environment variable, default 4.
func NewRunner(processor *Processor, workers int) *Runner {
	if workers <= 0 {
		workers = int(util.GetEnvNumeric("PIPELINE_WORKERS", 4))
	}
	if workers <= 0 {
		workers = 1
	}
	return &Runner{
		processor: processor,
		slots:     semaphore.NewWeighted(int64(workers)),
	}
}

// Process runs one note synchronously, waiting for a worker slot first.
func (r *Runner) Process(ctx context.Context, noteID string) (*Result, error) {
	if err := r.slots.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer r.slots.Release(1)
	return r.processor.ProcessItem(ctx, noteID)
}

// ProcessAsync runs one note in the background. Errors are logged and
// otherwise dropped; the processing log carries the durable record.
func (r *Runner) ProcessAsync(ctx context.Context, noteID string) {
	go func() {
		if _, err := r.Process(ctx, noteID); err != nil {
			logger.Error("[Pipeline] background processing failed", "note", noteID, "err", err)
		}
	}()
}
