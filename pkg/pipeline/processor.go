// Package pipeline drives a note through its full processing run: claim,
// optional transcription, chunking, embedding, summarization, and the
// fail-soft enrichment steps, with every attempt recorded in the processing
// log.
package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"mosaic/internal/util"
	"mosaic/pkg/ai"
	"mosaic/pkg/chunker"
	"mosaic/pkg/common"
	"mosaic/pkg/extract"
	"mosaic/pkg/graph"
	"mosaic/pkg/logger"
	"mosaic/pkg/store"
)

const (
	operationNoteProcessing = "note_processing"

	// embedPacing spaces consecutive chunk embedding calls to stay under
	// provider rate limits.
	embedPacing = 200 * time.Millisecond
)

// genericTitle matches placeholder titles that should be replaced with a
// generated one.
var genericTitle = regexp.MustCompile(`(?i)^(untitled|new note|voice note|note \d+)`)

// FileFetcher retrieves stored binary objects, used for voice note audio.
type FileFetcher interface {
	GetFile(ctx context.Context, key string) ([]byte, error)
}

// Processor runs the processing pipeline for single notes.
type Processor struct {
	store     store.Storage
	client    ai.NoteAIClient
	extractor *extract.Extractor
	graph     *graph.Engine
	files     FileFetcher

	// embedDelay is the pause between chunk embedding calls. Tests zero it.
	embedDelay time.Duration
}

// NewProcessor wires a Processor. files may be nil when voice notes are not
// in play; audio notes then fail with a logged error instead of panicking.
func NewProcessor(st store.Storage, client ai.NoteAIClient, files FileFetcher) *Processor {
	return &Processor{
		store:      st,
		client:     client,
		extractor:  extract.NewExtractor(client),
		graph:      graph.NewEngine(st, client),
		files:      files,
		embedDelay: embedPacing,
	}
}

// Result summarizes one successful processing run.
type Result struct {
	Summary          string   `json:"summary"`
	Tags             []string `json:"tags"`
	ChunkCount       int      `json:"chunk_count"`
	TaskCount        int      `json:"task_count"`
	EventCount       int      `json:"event_count"`
	ProcessingTimeMs int64    `json:"processing_time_ms"`
}

// ProcessItem runs the whole pipeline for one note.
//
// The claim is a compare-and-swap: a note already being processed returns
// common.ErrAlreadyProcessing and nothing else happens. Core steps
// (transcription when needed, chunking, embeddings, summary) abort the run,
// set the note to error, and close the log row as failed. Enrichment steps
// after the summary (tags, chunk persistence, tasks, events, entities) are
// fail-soft: their errors are logged and the run still completes.
func (p *Processor) ProcessItem(ctx context.Context, noteID string) (*Result, error) {
	note, err := p.store.ClaimNote(ctx, noteID)
	if err != nil {
		return nil, fmt.Errorf("claim note %s: %w", noteID, err)
	}

	start := time.Now()
	logID, err := p.store.LogStart(ctx, note.ID, operationNoteProcessing, "")
	if err != nil {
		return nil, fmt.Errorf("open processing log: %w", err)
	}

	result, err := p.run(ctx, note, logID, start)
	if err != nil {
		logger.Error("[Pipeline] processing failed", "note", note.ID, "err", err)
		if statusErr := p.store.SetNoteStatus(ctx, note.ID, common.StatusError); statusErr != nil {
			logger.Error("[Pipeline] could not mark note as errored", "note", note.ID, "err", statusErr)
		}
		if logErr := p.store.LogFail(ctx, logID, "Processing failed", err.Error(),
			time.Since(start).Milliseconds()); logErr != nil {
			logger.Error("[Pipeline] could not close processing log", "note", note.ID, "err", logErr)
		}
		return nil, err
	}
	return result, nil
}

func (p *Processor) run(ctx context.Context, note *common.Note, logID string, start time.Time) (*Result, error) {
	text := note.RawText
	if strings.TrimSpace(text) == "" && note.AudioKey != "" {
		transcript, err := p.transcribe(ctx, note)
		if err != nil {
			return nil, err
		}
		text = transcript
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("note has no content: %w", common.ErrValidation)
	}

	chunks, err := chunker.Split(text, chunker.Options{})
	if err != nil {
		return nil, fmt.Errorf("chunking: %w", err)
	}

	chunks, embeddings, err := p.embedChunks(ctx, chunks)
	if err != nil {
		return nil, err
	}

	summary, err := p.extractor.Summarize(ctx, text)
	if err != nil {
		return nil, err
	}

	title := note.Title
	if title == "" || genericTitle.MatchString(title) {
		title = p.extractor.SuggestTitle(ctx, text)
	}

	if err := p.store.UpdateNoteResults(ctx, note.ID, title, summary.Summary,
		summary.Language, common.StatusProcessed); err != nil {
		return nil, fmt.Errorf("persist results: %w", err)
	}

	tags := p.storeTags(ctx, note.ID, summary.Tags)
	p.storeChunks(ctx, note.ID, chunks, embeddings)
	tasks := p.storeTasks(ctx, note, summary.Tasks)
	events := p.storeEvents(ctx, note, summary.CalendarEvents)
	p.storeEntities(ctx, note, text)

	message := fmt.Sprintf("Successfully processed: %d chunks, %d tags, %d tasks, %d events",
		len(chunks), len(tags), tasks, events)
	if err := p.store.LogComplete(ctx, logID, message, time.Since(start).Milliseconds()); err != nil {
		logger.Error("[Pipeline] could not close processing log", "note", note.ID, "err", err)
	}
	logger.Info("[Pipeline] note processed", "note", note.ID, "chunks", len(chunks),
		"tags", len(tags), "tasks", tasks, "events", events)
	return &Result{
		Summary:          summary.Summary,
		Tags:             tags,
		ChunkCount:       len(chunks),
		TaskCount:        tasks,
		EventCount:       events,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}, nil
}

func (p *Processor) transcribe(ctx context.Context, note *common.Note) (string, error) {
	if p.files == nil {
		return "", fmt.Errorf("audio note %s: no file storage configured: %w",
			note.ID, common.ErrConfiguration)
	}

	audio, err := p.files.GetFile(ctx, note.AudioKey)
	if err != nil {
		return "", common.NewExternalServiceError("storage", err)
	}

	language := ""
	if l, ok := note.Metadata["language"].(string); ok {
		language = l
	}
	transcript, err := p.client.GenerateAudioTranscription(ctx, audio, language)
	if err != nil {
		return "", common.NewExternalServiceError("transcription", err)
	}
	transcript = util.SanitizeText(transcript)
	if strings.TrimSpace(transcript) == "" {
		return "", fmt.Errorf("empty transcription for note %s: %w", note.ID, common.ErrValidation)
	}

	if err := p.store.SetNoteText(ctx, note.ID, transcript,
		map[string]any{"transcribed": true}); err != nil {
		return "", fmt.Errorf("store transcript: %w", err)
	}
	return transcript, nil
}

// embedChunks embeds each chunk in order and returns the chunks that got an
// embedding. A chunk whose embedding call fails is logged and dropped; only
// when every chunk fails is the run itself considered broken.
func (p *Processor) embedChunks(ctx context.Context, chunks []string) ([]string, [][]float32, error) {
	kept := make([]string, 0, len(chunks))
	embeddings := make([][]float32, 0, len(chunks))
	var lastErr error
	for i, chunk := range chunks {
		if i > 0 && p.embedDelay > 0 {
			select {
			case <-time.After(p.embedDelay):
			case <-ctx.Done():
				return nil, nil, ctx.Err()
			}
		}
		embedding, err := p.client.GenerateEmbedding(ctx, []byte(chunk))
		if err != nil {
			logger.Warn("[Pipeline] chunk embedding failed, skipping chunk",
				"chunk", i, "err", err)
			lastErr = err
			continue
		}
		kept = append(kept, chunk)
		embeddings = append(embeddings, embedding)
	}
	if len(kept) == 0 {
		return nil, nil, common.NewExternalServiceError("embedding", lastErr)
	}
	return kept, embeddings, nil
}

func (p *Processor) storeTags(ctx context.Context, noteID string, names []string) []string {
	var stored []string
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		tagID, err := p.store.EnsureTag(ctx, name)
		if err != nil {
			logger.Warn("[Pipeline] tag upsert failed", "tag", name, "err", err)
			continue
		}
		if err := p.store.LinkNoteTag(ctx, noteID, tagID); err != nil {
			logger.Warn("[Pipeline] tag link failed", "tag", name, "err", err)
			continue
		}
		stored = append(stored, name)
	}
	return stored
}

func (p *Processor) storeChunks(ctx context.Context, noteID string, chunks []string, embeddings [][]float32) {
	rows := make([]common.Chunk, len(chunks))
	for i, text := range chunks {
		rows[i] = common.Chunk{
			Text:          text,
			Embedding:     embeddings[i],
			OrderIndex:    i,
			TokenEstimate: chunker.EstimateTokens(text),
		}
	}
	if err := p.store.ReplaceChunks(ctx, noteID, rows); err != nil {
		logger.Warn("[Pipeline] chunk persistence failed", "note", noteID, "err", err)
	}
}

func (p *Processor) storeTasks(ctx context.Context, note *common.Note, drafts []extract.TaskDraft) int {
	stored := 0
	for _, draft := range drafts {
		if strings.TrimSpace(draft.Title) == "" {
			continue
		}
		priority := strings.ToLower(draft.Priority)
		if priority != "low" && priority != "high" {
			priority = "medium"
		}
		task := &common.Task{
			UserID:       note.UserID,
			Title:        draft.Title,
			Description:  draft.Description,
			Priority:     priority,
			DueDate:      parseWhen(draft.DueDate),
			SourceNoteID: note.ID,
			SourceType:   "ai_generated",
			Metadata:     map[string]any{"extracted_from_note": true},
		}
		if _, err := p.store.CreateTask(ctx, task); err != nil {
			logger.Warn("[Pipeline] task creation failed", "title", draft.Title, "err", err)
			continue
		}
		stored++
	}
	return stored
}

func (p *Processor) storeEvents(ctx context.Context, note *common.Note, drafts []extract.EventDraft) int {
	stored := 0
	for _, draft := range drafts {
		if strings.TrimSpace(draft.Title) == "" {
			continue
		}
		start := parseWhen(draft.StartDatetime)
		if start == nil {
			logger.Warn("[Pipeline] event skipped, unparseable start",
				"title", draft.Title, "start", draft.StartDatetime)
			continue
		}
		event := &common.CalendarEvent{
			UserID:        note.UserID,
			Title:         draft.Title,
			Description:   draft.Description,
			Location:      draft.Location,
			StartDatetime: *start,
			EndDatetime:   parseWhen(draft.EndDatetime),
			AllDay:        draft.AllDay,
			SourceNoteID:  note.ID,
			SourceType:    "ai_generated",
			Metadata:      map[string]any{"extracted_from_note": true},
		}
		if _, err := p.store.CreateEvent(ctx, event); err != nil {
			logger.Warn("[Pipeline] event creation failed", "title", draft.Title, "err", err)
			continue
		}
		stored++
	}
	return stored
}

func (p *Processor) storeEntities(ctx context.Context, note *common.Note, text string) {
	if _, err := p.graph.ProcessItemEntities(ctx, note.UserID, common.ItemTypeNote,
		note.ID, text); err != nil {
		logger.Warn("[Pipeline] entity extraction failed", "note", note.ID, "err", err)
	}
}

// parseWhen accepts the datetime shapes the model tends to produce.
func parseWhen(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	for _, layout := range []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, value); err == nil {
			return &t
		}
	}
	return nil
}
