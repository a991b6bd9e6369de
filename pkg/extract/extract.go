package extract

import (
	"context"
	"strings"

	"mosaic/internal/util"
	"mosaic/pkg/ai"
	"mosaic/pkg/common"
	"mosaic/pkg/logger"
)

const (
	maxSummaryInput    = 4000
	maxTitleInput      = 2000
	maxExtractionInput = 8000

	fallbackTitle = "Untitled Note"
)

// TaskDraft is an actionable item proposed by the model from note content.
type TaskDraft struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority,omitempty"`
	DueDate     string `json:"due_date,omitempty"`
}

// EventDraft is a calendar event proposed by the model from note content.
type EventDraft struct {
	Title         string `json:"title"`
	Description   string `json:"description,omitempty"`
	Location      string `json:"location,omitempty"`
	StartDatetime string `json:"start_datetime,omitempty"`
	EndDatetime   string `json:"end_datetime,omitempty"`
	AllDay        bool   `json:"all_day,omitempty"`
}

// SummaryResult is the combined output of the single summary pass: a short
// summary plus tags, detected language, and any tasks or events found.
type SummaryResult struct {
	Summary        string       `json:"summary"`
	Tags           []string     `json:"tags"`
	Language       string       `json:"language"`
	Tasks          []TaskDraft  `json:"tasks,omitempty"`
	CalendarEvents []EventDraft `json:"calendar_events,omitempty"`
}

// ExtractedEntity is a single entity found in note text.
type ExtractedEntity struct {
	Name        string         `json:"name"`
	Type        string         `json:"type"`
	Description string         `json:"description,omitempty"`
	Properties  map[string]any `json:"properties,omitempty"`
	Confidence  float64        `json:"confidence"`
}

// ExtractedRelationship links two extracted entities by name.
type ExtractedRelationship struct {
	Source     string         `json:"source"`
	Target     string         `json:"target"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties,omitempty"`
}

// ExtractionResult holds everything the entity extraction pass produced.
type ExtractionResult struct {
	Entities      []ExtractedEntity       `json:"entities"`
	Relationships []ExtractedRelationship `json:"relationships"`
}

// Extractor wraps an AI client with the structured extraction passes used
// during note processing.
type Extractor struct {
	client ai.NoteAIClient
}

// NewExtractor creates an Extractor backed by the given AI client.
func NewExtractor(client ai.NoteAIClient) *Extractor {
	return &Extractor{client: client}
}

// errorSummary is returned alongside the error when the summary call itself
// fails, so callers still have something safe to persist.
func errorSummary() *SummaryResult {
	return &SummaryResult{
		Summary:  "Error processing content",
		Tags:     []string{"processing-error"},
		Language: "unknown",
	}
}

// Summarize runs the combined summary/tags/language/tasks/events pass over
// the given text.
//
// A failed model call is returned as an error (wrapped as an external service
// failure) together with a safe placeholder result. A response that is not
// valid JSON is not an error: the raw text is degraded into a minimal result
// so a flaky model never aborts processing on its own.
func (e *Extractor) Summarize(ctx context.Context, text string) (*SummaryResult, error) {
	content, err := e.client.GenerateCompletion(
		ctx,
		util.TruncateRunesafe(text, maxSummaryInput),
		ai.WithSystemPrompts(ai.SummaryPrompt),
		ai.WithTemperature(0.3),
		ai.WithMaxTokens(500),
	)
	if err != nil {
		return errorSummary(), common.NewExternalServiceError("extraction", err)
	}
	if strings.TrimSpace(content) == "" {
		return errorSummary(), common.NewExternalServiceError("extraction", common.ErrValidation)
	}

	var result SummaryResult
	if err := ai.UnmarshalFlexible(content, &result); err != nil {
		logger.Warn("[Extract] summary response not parseable, using fallback", "err", err)
		return &SummaryResult{
			Summary:  util.TruncateRunesafe(content, 200) + "...",
			Tags:     []string{"ai-generated"},
			Language: "unknown",
		}, nil
	}

	if result.Summary == "" {
		result.Summary = "No summary available"
	}
	if result.Tags == nil {
		result.Tags = []string{}
	}
	if result.Language == "" {
		result.Language = "unknown"
	}
	return &result, nil
}

// SuggestTitle generates a short descriptive title for the given text.
// It never fails: any model error degrades to a generic title.
func (e *Extractor) SuggestTitle(ctx context.Context, text string) string {
	title, err := e.client.GenerateCompletion(
		ctx,
		util.TruncateRunesafe(text, maxTitleInput),
		ai.WithSystemPrompts(ai.TitlePrompt),
		ai.WithTemperature(0.3),
		ai.WithMaxTokens(20),
	)
	if err != nil {
		logger.Warn("[Extract] title generation failed", "err", err)
		return fallbackTitle
	}

	title = strings.TrimSpace(title)
	if len(title) < 2 {
		return fallbackTitle
	}
	if len(title) > 100 {
		return util.TruncateRunesafe(title, 97) + "..."
	}
	return title
}

// Entities extracts entities and relationships from note text. The pass is
// fail-soft: any model or parse failure yields an empty result so entity
// extraction never blocks the rest of the pipeline.
func (e *Extractor) Entities(ctx context.Context, text string) ExtractionResult {
	var result ExtractionResult
	err := e.client.GenerateCompletionWithFormat(
		ctx,
		"entity_extraction",
		"Entities and relationships found in a note",
		util.TruncateRunesafe(text, maxExtractionInput),
		&result,
		ai.WithSystemPrompts(ai.EntityExtractionPrompt),
		ai.WithTemperature(0.1),
	)
	if err != nil {
		logger.Warn("[Extract] entity extraction failed", "err", err)
		return ExtractionResult{}
	}
	if result.Entities == nil {
		result.Entities = []ExtractedEntity{}
	}
	if result.Relationships == nil {
		result.Relationships = []ExtractedRelationship{}
	}
	return result
}

// EntityEmbeddingText builds the canonical text used to embed an entity.
func EntityEmbeddingText(e ExtractedEntity) string {
	return e.Type + ": " + e.Name + ". " + e.Description
}
