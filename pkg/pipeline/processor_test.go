package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"

	"mosaic/pkg/ai"
	"mosaic/pkg/ai/aitest"
	"mosaic/pkg/common"
	"mosaic/pkg/store/memory"
)

type fetcherFunc func(ctx context.Context, key string) ([]byte, error)

func (f fetcherFunc) GetFile(ctx context.Context, key string) ([]byte, error) {
	return f(ctx, key)
}

func applyOpts(opts []ai.GenerateOption) ai.GenerateOptions {
	var o ai.GenerateOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// summaryAwareStub answers the summary prompt with the given JSON and the
// title prompt with the given title.
func summaryAwareStub(summaryJSON, title string) *aitest.StubClient {
	return &aitest.StubClient{
		CompletionFunc: func(ctx context.Context, prompt string, opts ...ai.GenerateOption) (string, error) {
			o := applyOpts(opts)
			if len(o.SystemPrompts) > 0 && o.SystemPrompts[0] == ai.TitlePrompt {
				return title, nil
			}
			return summaryJSON, nil
		},
	}
}

func newTestProcessor(st *memory.MemoryStorage, client ai.NoteAIClient, files FileFetcher) *Processor {
	p := NewProcessor(st, client, files)
	p.embedDelay = 0
	return p
}

func TestProcessItem(t *testing.T) {
	st := memory.NewMemoryStorage()
	client := summaryAwareStub(`{
		"summary": "A reminder to buy milk at the store.",
		"tags": ["shopping"],
		"language": "en",
		"tasks": [{"title": "Buy milk", "priority": "high", "due_date": "2026-08-31T17:00:00Z"}],
		"calendar_events": [{"title": "Store run", "start_datetime": "2026-08-31 17:00"}]
	}`, "Grocery Errand")
	p := newTestProcessor(st, client, nil)
	ctx := context.Background()

	noteID := st.AddNote(&common.Note{
		UserID:  "u1",
		RawText: "Buy milk tomorrow at 5pm at the store",
	})
	result, err := p.ProcessItem(ctx, noteID)
	if err != nil {
		t.Fatalf("ProcessItem: %v", err)
	}
	if result.Summary != "A reminder to buy milk at the store." {
		t.Errorf("result summary = %q", result.Summary)
	}
	if !slices.Equal(result.Tags, []string{"shopping"}) {
		t.Errorf("result tags = %v, want [shopping]", result.Tags)
	}
	if result.ChunkCount != 1 || result.TaskCount != 1 || result.EventCount != 1 {
		t.Errorf("result counts = %d/%d/%d, want 1/1/1",
			result.ChunkCount, result.TaskCount, result.EventCount)
	}
	if result.ProcessingTimeMs < 0 {
		t.Errorf("result processing time = %d", result.ProcessingTimeMs)
	}

	note, err := st.GetNote(ctx, noteID)
	if err != nil {
		t.Fatal(err)
	}
	if note.Status != common.StatusProcessed {
		t.Errorf("status = %s, want processed", note.Status)
	}
	if note.Title != "Grocery Errand" {
		t.Errorf("title = %q, want generated title", note.Title)
	}
	if note.Summary != "A reminder to buy milk at the store." {
		t.Errorf("summary = %q", note.Summary)
	}
	if note.Language != "en" {
		t.Errorf("language = %q, want en", note.Language)
	}
	if !slices.Contains(note.Tags, "shopping") {
		t.Errorf("tags = %v, want shopping", note.Tags)
	}

	chunks := st.Chunks(noteID)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if len(chunks[0].Embedding) == 0 {
		t.Error("chunk stored without embedding")
	}

	tasks, _ := st.ListTasks(ctx, "u1")
	if len(tasks) != 1 {
		t.Fatalf("got %d tasks, want 1", len(tasks))
	}
	task := tasks[0]
	if task.SourceType != "ai_generated" || task.SourceNoteID != noteID {
		t.Errorf("task provenance = %s/%s", task.SourceType, task.SourceNoteID)
	}
	if task.Priority != "high" || task.DueDate == nil {
		t.Errorf("task priority/due = %s/%v", task.Priority, task.DueDate)
	}
	if extracted, _ := task.Metadata["extracted_from_note"].(bool); !extracted {
		t.Error("task metadata missing extracted_from_note")
	}

	events, _ := st.ListEvents(ctx, "u1")
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].SourceType != "ai_generated" {
		t.Errorf("event source type = %s", events[0].SourceType)
	}

	logs, _ := st.ListLogs(ctx, "u1", noteID, 10, 0)
	if len(logs) != 1 {
		t.Fatalf("got %d log rows, want 1", len(logs))
	}
	if logs[0].Status != common.LogCompleted {
		t.Errorf("log status = %s, want completed", logs[0].Status)
	}
	want := "Successfully processed: 1 chunks, 1 tags, 1 tasks, 1 events"
	if logs[0].Message != want {
		t.Errorf("log message = %q, want %q", logs[0].Message, want)
	}
}

func TestProcessItemKeepsMeaningfulTitle(t *testing.T) {
	st := memory.NewMemoryStorage()
	client := summaryAwareStub(`{"summary": "s", "tags": [], "language": "en"}`, "Generated")
	p := newTestProcessor(st, client, nil)

	noteID := st.AddNote(&common.Note{
		UserID: "u1", Title: "Budget planning", RawText: "some text",
	})
	if _, err := p.ProcessItem(context.Background(), noteID); err != nil {
		t.Fatal(err)
	}
	note, _ := st.GetNote(context.Background(), noteID)
	if note.Title != "Budget planning" {
		t.Errorf("title = %q, existing titles must be kept", note.Title)
	}
}

func TestReprocessingAccumulatesTags(t *testing.T) {
	st := memory.NewMemoryStorage()
	calls := 0
	client := &aitest.StubClient{
		CompletionFunc: func(ctx context.Context, prompt string, opts ...ai.GenerateOption) (string, error) {
			o := applyOpts(opts)
			if len(o.SystemPrompts) > 0 && o.SystemPrompts[0] == ai.TitlePrompt {
				return "Title", nil
			}
			calls++
			if calls == 1 {
				return `{"summary": "s", "tags": ["finance"], "language": "en"}`, nil
			}
			return `{"summary": "s", "tags": ["budget"], "language": "en"}`, nil
		},
	}
	p := newTestProcessor(st, client, nil)
	ctx := context.Background()

	noteID := st.AddNote(&common.Note{UserID: "u1", RawText: "quarterly numbers"})
	if _, err := p.ProcessItem(ctx, noteID); err != nil {
		t.Fatal(err)
	}
	if _, err := p.ProcessItem(ctx, noteID); err != nil {
		t.Fatal(err)
	}

	tags, _ := st.NoteTags(ctx, noteID)
	if !slices.Equal(tags, []string{"budget", "finance"}) {
		t.Errorf("tags after rerun = %v, want both runs' tags", tags)
	}
}

func TestEmbeddingFailureMarksNoteErrored(t *testing.T) {
	st := memory.NewMemoryStorage()
	client := &aitest.StubClient{
		EmbeddingFunc: func(ctx context.Context, input []byte) ([]float32, error) {
			return nil, errors.New("embedding provider down")
		},
	}
	p := newTestProcessor(st, client, nil)
	ctx := context.Background()

	noteID := st.AddNote(&common.Note{UserID: "u1", RawText: "some text"})
	_, err := p.ProcessItem(ctx, noteID)
	if err == nil {
		t.Fatal("expected error")
	}
	var svcErr *common.ExternalServiceError
	if !errors.As(err, &svcErr) || svcErr.Service != "embedding" {
		t.Errorf("error = %v, want embedding service error", err)
	}

	note, _ := st.GetNote(ctx, noteID)
	if note.Status != common.StatusError {
		t.Errorf("status = %s, want error", note.Status)
	}

	logs, _ := st.ListLogs(ctx, "u1", noteID, 10, 0)
	if len(logs) != 1 {
		t.Fatalf("got %d log rows, want exactly 1", len(logs))
	}
	if logs[0].Status != common.LogFailed {
		t.Errorf("log status = %s, want failed", logs[0].Status)
	}
	if !strings.Contains(logs[0].ErrorDetails, "embedding") {
		t.Errorf("error details = %q", logs[0].ErrorDetails)
	}
}

func TestPartialEmbeddingFailureKeepsRemainingChunks(t *testing.T) {
	st := memory.NewMemoryStorage()
	client := summaryAwareStub(`{"summary": "s", "tags": [], "language": "en"}`, "Title")
	embedCalls := 0
	client.EmbeddingFunc = func(ctx context.Context, input []byte) ([]float32, error) {
		embedCalls++
		if embedCalls == 2 {
			return nil, errors.New("transient embedding failure")
		}
		return []float32{0.1, 0.2}, nil
	}
	p := newTestProcessor(st, client, nil)
	ctx := context.Background()

	// Long enough to split into several chunks.
	text := strings.Repeat("Another sentence about the quarterly budget review. ", 500)
	noteID := st.AddNote(&common.Note{UserID: "u1", RawText: text})

	result, err := p.ProcessItem(ctx, noteID)
	if err != nil {
		t.Fatalf("ProcessItem: %v", err)
	}
	if embedCalls < 3 {
		t.Fatalf("got %d embedding calls, want a multi-chunk note", embedCalls)
	}

	note, _ := st.GetNote(ctx, noteID)
	if note.Status != common.StatusProcessed {
		t.Errorf("status = %s, want processed despite one failed chunk", note.Status)
	}

	chunks := st.Chunks(noteID)
	if len(chunks) != embedCalls-1 {
		t.Errorf("got %d stored chunks, want %d (failed chunk skipped)", len(chunks), embedCalls-1)
	}
	if result.ChunkCount != embedCalls-1 {
		t.Errorf("result chunk count = %d, want %d", result.ChunkCount, embedCalls-1)
	}

	logs, _ := st.ListLogs(ctx, "u1", noteID, 10, 0)
	if len(logs) != 1 || logs[0].Status != common.LogCompleted {
		t.Fatalf("logs = %+v, want a single completed entry", logs)
	}
}

func TestSummaryFailureMarksNoteErrored(t *testing.T) {
	st := memory.NewMemoryStorage()
	client := &aitest.StubClient{
		CompletionFunc: func(ctx context.Context, prompt string, opts ...ai.GenerateOption) (string, error) {
			return "", errors.New("model unavailable")
		},
	}
	p := newTestProcessor(st, client, nil)
	ctx := context.Background()

	noteID := st.AddNote(&common.Note{UserID: "u1", RawText: "some text"})
	if _, err := p.ProcessItem(ctx, noteID); err == nil {
		t.Fatal("expected error")
	}
	note, _ := st.GetNote(ctx, noteID)
	if note.Status != common.StatusError {
		t.Errorf("status = %s, want error", note.Status)
	}
}

func TestProcessItemAlreadyProcessing(t *testing.T) {
	st := memory.NewMemoryStorage()
	p := newTestProcessor(st, &aitest.StubClient{}, nil)
	ctx := context.Background()

	noteID := st.AddNote(&common.Note{
		UserID: "u1", RawText: "text", Status: common.StatusProcessing,
	})
	_, err := p.ProcessItem(ctx, noteID)
	if !errors.Is(err, common.ErrAlreadyProcessing) {
		t.Fatalf("err = %v, want ErrAlreadyProcessing", err)
	}

	logs, _ := st.ListLogs(ctx, "u1", noteID, 10, 0)
	if len(logs) != 0 {
		t.Errorf("got %d log rows, want none for a rejected claim", len(logs))
	}
}

func TestProcessItemMissingNote(t *testing.T) {
	st := memory.NewMemoryStorage()
	p := newTestProcessor(st, &aitest.StubClient{}, nil)
	_, err := p.ProcessItem(context.Background(), "no-such-note")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestProcessItemEmptyNote(t *testing.T) {
	st := memory.NewMemoryStorage()
	p := newTestProcessor(st, &aitest.StubClient{}, nil)
	ctx := context.Background()

	noteID := st.AddNote(&common.Note{UserID: "u1", RawText: "   "})
	_, err := p.ProcessItem(ctx, noteID)
	if !errors.Is(err, common.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
	note, _ := st.GetNote(ctx, noteID)
	if note.Status != common.StatusError {
		t.Errorf("status = %s, want error", note.Status)
	}
}

func TestVoiceNoteTranscription(t *testing.T) {
	st := memory.NewMemoryStorage()
	client := summaryAwareStub(`{"summary": "s", "tags": [], "language": "en"}`, "Call Mom")
	client.TranscriptionFunc = func(ctx context.Context, audio []byte, language string) (string, error) {
		if string(audio) != "fake-audio" {
			return "", fmt.Errorf("unexpected audio payload")
		}
		return "Remember to call mom", nil
	}
	files := fetcherFunc(func(ctx context.Context, key string) ([]byte, error) {
		if key != "audio/v1.ogg" {
			return nil, fmt.Errorf("unknown key %s", key)
		}
		return []byte("fake-audio"), nil
	})
	p := newTestProcessor(st, client, files)
	ctx := context.Background()

	noteID := st.AddNote(&common.Note{
		UserID:   "u1",
		AudioKey: "audio/v1.ogg",
		Metadata: map[string]any{"language": "en"},
	})
	if _, err := p.ProcessItem(ctx, noteID); err != nil {
		t.Fatalf("ProcessItem: %v", err)
	}

	note, _ := st.GetNote(ctx, noteID)
	if note.Status != common.StatusProcessed {
		t.Errorf("status = %s, want processed", note.Status)
	}
	if note.RawText != "Remember to call mom" {
		t.Errorf("raw text = %q, want transcript", note.RawText)
	}
	if transcribed, _ := note.Metadata["transcribed"].(bool); !transcribed {
		t.Error("metadata missing transcribed flag")
	}
}

func TestVoiceNoteWithoutFileStorage(t *testing.T) {
	st := memory.NewMemoryStorage()
	p := newTestProcessor(st, &aitest.StubClient{}, nil)
	ctx := context.Background()

	noteID := st.AddNote(&common.Note{UserID: "u1", AudioKey: "audio/v1.ogg"})
	_, err := p.ProcessItem(ctx, noteID)
	if !errors.Is(err, common.ErrConfiguration) {
		t.Fatalf("err = %v, want ErrConfiguration", err)
	}
}
