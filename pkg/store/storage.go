package store

import (
	"context"

	"mosaic/pkg/common"
)

// Storage defines the persistence interface for notes and everything derived
// from them: chunks, tags, tasks, events, entities with relationships and
// provenance, the append-only processing log, and 2D projections.
//
// Two implementations exist: a PostgreSQL/pgvector store for production and
// an in-memory store for tests.
type Storage interface {
	// Notes.
	GetNote(ctx context.Context, id string) (*common.Note, error)
	// ClaimNote atomically moves a note from raw/processed/error to
	// processing and returns it. A note already in processing yields
	// common.ErrAlreadyProcessing; an unknown id yields common.ErrNotFound.
	ClaimNote(ctx context.Context, id string) (*common.Note, error)
	SetNoteStatus(ctx context.Context, id string, status common.ItemStatus) error
	// SetNoteText stores transcribed text and merges the given metadata keys.
	SetNoteText(ctx context.Context, id string, rawText string, metadata map[string]any) error
	// UpdateNoteResults persists the outcome of a successful processing run.
	UpdateNoteResults(ctx context.Context, id string, title, summary, language string, status common.ItemStatus) error
	// ListProcessedNotes returns all processed notes of a user, tags included.
	ListProcessedNotes(ctx context.Context, userID string) ([]common.Note, error)
	// FirstChunkEmbedding returns the stored embedding of a note's first
	// chunk, or nil when the note has no embedded chunks.
	FirstChunkEmbedding(ctx context.Context, noteID string) ([]float32, error)

	// Chunks. ReplaceChunks deletes all prior chunks of the note and stores
	// the given ones in a single transaction.
	ReplaceChunks(ctx context.Context, noteID string, chunks []common.Chunk) error

	// Tags. EnsureTag upserts by name and returns the tag id; linking is
	// idempotent per (note, tag).
	EnsureTag(ctx context.Context, name string) (string, error)
	LinkNoteTag(ctx context.Context, noteID, tagID string) error
	NoteTags(ctx context.Context, noteID string) ([]string, error)

	// Tasks and calendar events.
	CreateTask(ctx context.Context, task *common.Task) (string, error)
	CreateEvent(ctx context.Context, event *common.CalendarEvent) (string, error)
	ListTasks(ctx context.Context, userID string) ([]common.Task, error)
	ListEvents(ctx context.Context, userID string) ([]common.CalendarEvent, error)

	// Entities. UpsertEntity keys on (user, lowercase name, type): the
	// description is kept unless the new one is non-empty, properties are
	// shallow-merged with new keys winning, and the embedding is replaced.
	UpsertEntity(ctx context.Context, entity common.Entity) (string, error)
	// UpsertRelationship keys on (source, target, type) and merges
	// properties on conflict.
	UpsertRelationship(ctx context.Context, rel common.EntityRelationship) error
	// AddEntitySource appends a provenance row; sources are never deduplicated.
	AddEntitySource(ctx context.Context, src common.EntitySource) error
	ListEntities(ctx context.Context, userID string) ([]common.Entity, error)
	ListRelationships(ctx context.Context, userID string) ([]common.EntityRelationship, error)
	ListEntitySources(ctx context.Context, userID string) ([]common.EntitySource, error)
	// MergeEntities repoints all relationships and sources of duplicateID to
	// primaryID and deletes the duplicate, atomically. Relationship rows that
	// would collide after repointing are merged property-wise.
	MergeEntities(ctx context.Context, primaryID, duplicateID string) error

	// Processing log.
	LogStart(ctx context.Context, itemID, operation, message string) (string, error)
	LogComplete(ctx context.Context, logID, message string, processingTimeMs int64) error
	LogFail(ctx context.Context, logID, message, errorDetails string, processingTimeMs int64) error
	ListLogs(ctx context.Context, userID, itemID string, limit, offset int) ([]common.ProcessingLog, error)
	LogStats(ctx context.Context, userID string) (*common.LogStats, error)

	// Projections, upserted per (user, item type, item id).
	SaveProjections(ctx context.Context, userID string, projections []common.Projection) error
	GetProjections(ctx context.Context, userID string) ([]common.Projection, error)
}
