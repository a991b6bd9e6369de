package common

import "time"

// ItemType identifies which kind of source item owns a piece of derived data.
type ItemType string

const (
	ItemTypeNote   ItemType = "note"
	ItemTypeTask   ItemType = "task"
	ItemTypeEvent  ItemType = "event"
	ItemTypeEntity ItemType = "entity"
)

// ItemStatus is the processing state of a note. Notes start out raw,
// move to processing when a pipeline run claims them, and end up
// processed or error. Both terminal states can be re-entered through
// an explicit rerun.
type ItemStatus string

const (
	StatusRaw        ItemStatus = "raw"
	StatusProcessing ItemStatus = "processing"
	StatusProcessed  ItemStatus = "processed"
	StatusError      ItemStatus = "error"
)

// Note is a user-owned piece of free-form content: typed text, a
// transcribed voice message, or an uploaded document. Derived data
// (chunks, tags, tasks, events, entities) hangs off the note and is
// rebuilt wholesale when the note is reprocessed.
type Note struct {
	ID         string         `json:"id"`
	UserID     string         `json:"user_id"`
	Title      string         `json:"title"`
	RawText    string         `json:"raw_text"`
	Summary    string         `json:"summary"`
	Language   string         `json:"language"`
	SourceType string         `json:"source_type"`
	AudioKey   string         `json:"audio_key,omitempty"`
	Status     ItemStatus     `json:"status"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Tags       []string       `json:"tags,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Chunk is a bounded substring of a note, embedded independently for
// semantic search. OrderIndex is strictly increasing per note; all
// chunks of a note are replaced atomically on reprocessing.
type Chunk struct {
	ID            string    `json:"id"`
	NoteID        string    `json:"note_id"`
	Text          string    `json:"text"`
	Embedding     []float32 `json:"embedding,omitempty"`
	OrderIndex    int       `json:"order_index"`
	TokenEstimate int       `json:"token_estimate"`
	CreatedAt     time.Time `json:"created_at"`
}

// Task is an actionable item, either created manually or extracted
// from a note by the pipeline (SourceType "ai_generated").
type Task struct {
	ID           string         `json:"id"`
	UserID       string         `json:"user_id"`
	Title        string         `json:"title"`
	Description  string         `json:"description,omitempty"`
	Status       string         `json:"status"`
	Priority     string         `json:"priority"`
	DueDate      *time.Time     `json:"due_date,omitempty"`
	SourceNoteID string         `json:"source_note_id,omitempty"`
	SourceType   string         `json:"source_type"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// CalendarEvent is a scheduled occurrence, manual or extracted.
type CalendarEvent struct {
	ID            string         `json:"id"`
	UserID        string         `json:"user_id"`
	Title         string         `json:"title"`
	Description   string         `json:"description,omitempty"`
	Location      string         `json:"location,omitempty"`
	StartDatetime time.Time      `json:"start_datetime"`
	EndDatetime   *time.Time     `json:"end_datetime,omitempty"`
	AllDay        bool           `json:"all_day"`
	SourceNoteID  string         `json:"source_note_id,omitempty"`
	SourceType    string         `json:"source_type"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// EntityType classifies a named real-world concept.
type EntityType string

const (
	EntityPerson       EntityType = "person"
	EntityOrganization EntityType = "organization"
	EntityLocation     EntityType = "location"
	EntityConcept      EntityType = "concept"
	EntityDate         EntityType = "date"
	EntityEvent        EntityType = "event"
)

// Entity is a named concept extracted from content. At rest there is
// at most one entity per (user, lowercase name, type); extraction may
// propose duplicates, the resolver merges them.
type Entity struct {
	ID          string         `json:"id"`
	UserID      string         `json:"user_id"`
	Name        string         `json:"name"`
	Type        EntityType     `json:"type"`
	Description string         `json:"description,omitempty"`
	Properties  map[string]any `json:"properties,omitempty"`
	Embedding   []float32      `json:"embedding,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// EntityRelationship is a directed edge between two entities, unique
// per (source, target, type). Repeated extraction merges properties
// instead of duplicating rows.
type EntityRelationship struct {
	SourceEntityID string         `json:"source_entity_id"`
	TargetEntityID string         `json:"target_entity_id"`
	Type           string         `json:"type"`
	Properties     map[string]any `json:"properties,omitempty"`
}

// EntitySource is an append-only provenance link recording that an
// entity was mentioned by a source item. Never deduplicated.
type EntitySource struct {
	EntityID      string   `json:"entity_id"`
	SourceType    ItemType `json:"source_type"`
	SourceID      string   `json:"source_id"`
	ExtractedFrom string   `json:"extracted_from,omitempty"`
}

// LogStatus is the state of a single processing attempt.
type LogStatus string

const (
	LogStarted   LogStatus = "started"
	LogCompleted LogStatus = "completed"
	LogFailed    LogStatus = "failed"
)

// ProcessingLog is one row of the append-only audit trail. A started
// row opens an attempt; exactly one terminal transition (completed or
// failed) closes it. Rows are never mutated otherwise.
type ProcessingLog struct {
	ID               string    `json:"id"`
	ItemID           string    `json:"item_id"`
	Operation        string    `json:"operation"`
	Status           LogStatus `json:"status"`
	Message          string    `json:"message,omitempty"`
	ErrorDetails     string    `json:"error_details,omitempty"`
	ProcessingTimeMs int64     `json:"processing_time_ms,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// LogStats aggregates the processing log for one user.
type LogStats struct {
	Total           int     `json:"total"`
	Completed       int     `json:"completed"`
	Failed          int     `json:"failed"`
	InProgress      int     `json:"in_progress"`
	AvgProcessingMs float64 `json:"avg_processing_time"`
}

// EdgeType classifies how two graph nodes are connected.
type EdgeType string

const (
	EdgeExplicit   EdgeType = "explicit"
	EdgeSimilar    EdgeType = "similar"
	EdgeSharedTags EdgeType = "shared_tags"
	EdgeTemporal   EdgeType = "temporal"
)

// GraphNode is one vertex of the assembled knowledge graph: a note,
// task, calendar event, or entity, with enough payload to render and
// to compute similarity.
type GraphNode struct {
	ID        string         `json:"id"`
	Type      ItemType       `json:"type"`
	Title     string         `json:"title"`
	Content   string         `json:"content"`
	Embedding []float32      `json:"embedding,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Tags      []string       `json:"tags,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	X         *float64       `json:"x,omitempty"`
	Y         *float64       `json:"y,omitempty"`
}

// GraphEdge is a derived connection between two nodes. Edges are
// recomputed per graph request and never persisted.
type GraphEdge struct {
	SourceID string   `json:"source"`
	TargetID string   `json:"target"`
	Type     EdgeType `json:"type"`
	Label    string   `json:"label,omitempty"`
}

// Graph is the full node/edge set assembled for one user.
type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// Projection is a persisted 2D coordinate for one visualized item,
// upserted on recompute. Its lifecycle is independent of the item it
// describes; stale entries are overwritten, never enforced.
type Projection struct {
	UserID   string   `json:"user_id"`
	ItemType ItemType `json:"item_type"`
	ItemID   string   `json:"item_id"`
	X        float64  `json:"x"`
	Y        float64  `json:"y"`
}
