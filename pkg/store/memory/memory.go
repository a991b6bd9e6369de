// Package memory provides an in-memory Storage implementation used by tests
// and local development. All operations are safe for concurrent use.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"mosaic/pkg/common"
	"mosaic/pkg/store"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

type relKey struct {
	source string
	target string
	typ    string
}

// MemoryStorage holds everything in maps guarded by a single mutex. The
// entity upsert, merge, and log semantics mirror the PostgreSQL store.
type MemoryStorage struct {
	mu sync.Mutex

	notes       map[string]*common.Note
	chunks      map[string][]common.Chunk
	tagIDs      map[string]string          // name -> id
	tagNames    map[string]string          // id -> name
	noteTags    map[string]map[string]bool // noteID -> tag id set
	tasks       map[string]*common.Task
	events      map[string]*common.CalendarEvent
	entities    map[string]*common.Entity
	relations   map[relKey]common.EntityRelationship
	sources     []common.EntitySource
	logs        []*common.ProcessingLog
	logIndex    map[string]*common.ProcessingLog
	projections map[string]common.Projection
}

var _ store.Storage = (*MemoryStorage)(nil)

// NewMemoryStorage returns an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		notes:       make(map[string]*common.Note),
		chunks:      make(map[string][]common.Chunk),
		tagIDs:      make(map[string]string),
		tagNames:    make(map[string]string),
		noteTags:    make(map[string]map[string]bool),
		tasks:       make(map[string]*common.Task),
		events:      make(map[string]*common.CalendarEvent),
		entities:    make(map[string]*common.Entity),
		relations:   make(map[relKey]common.EntityRelationship),
		logIndex:    make(map[string]*common.ProcessingLog),
		projections: make(map[string]common.Projection),
	}
}

func newID() string {
	id, err := gonanoid.New()
	if err != nil {
		panic(err)
	}
	return id
}

// AddNote seeds a note, assigning an id and timestamps if missing.
func (s *MemoryStorage) AddNote(note *common.Note) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if note.ID == "" {
		note.ID = newID()
	}
	if note.Status == "" {
		note.Status = common.StatusRaw
	}
	if note.CreatedAt.IsZero() {
		note.CreatedAt = time.Now()
	}
	note.UpdatedAt = note.CreatedAt
	cp := *note
	s.notes[note.ID] = &cp
	return note.ID
}

func (s *MemoryStorage) GetNote(ctx context.Context, id string) (*common.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	note, ok := s.notes[id]
	if !ok {
		return nil, fmt.Errorf("note %s: %w", id, common.ErrNotFound)
	}
	cp := *note
	cp.Tags = s.noteTagNamesLocked(id)
	return &cp, nil
}

func (s *MemoryStorage) ClaimNote(ctx context.Context, id string) (*common.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	note, ok := s.notes[id]
	if !ok {
		return nil, fmt.Errorf("note %s: %w", id, common.ErrNotFound)
	}
	if note.Status == common.StatusProcessing {
		return nil, fmt.Errorf("note %s: %w", id, common.ErrAlreadyProcessing)
	}
	note.Status = common.StatusProcessing
	note.UpdatedAt = time.Now()
	cp := *note
	cp.Tags = s.noteTagNamesLocked(id)
	return &cp, nil
}

func (s *MemoryStorage) SetNoteStatus(ctx context.Context, id string, status common.ItemStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	note, ok := s.notes[id]
	if !ok {
		return fmt.Errorf("note %s: %w", id, common.ErrNotFound)
	}
	note.Status = status
	note.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStorage) SetNoteText(ctx context.Context, id string, rawText string, metadata map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	note, ok := s.notes[id]
	if !ok {
		return fmt.Errorf("note %s: %w", id, common.ErrNotFound)
	}
	note.RawText = rawText
	if len(metadata) > 0 {
		if note.Metadata == nil {
			note.Metadata = make(map[string]any)
		}
		for k, v := range metadata {
			note.Metadata[k] = v
		}
	}
	note.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStorage) UpdateNoteResults(ctx context.Context, id string, title, summary, language string, status common.ItemStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	note, ok := s.notes[id]
	if !ok {
		return fmt.Errorf("note %s: %w", id, common.ErrNotFound)
	}
	note.Title = title
	note.Summary = summary
	note.Language = language
	note.Status = status
	note.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStorage) ListProcessedNotes(ctx context.Context, userID string) ([]common.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []common.Note
	for _, note := range s.notes {
		if note.UserID != userID || note.Status != common.StatusProcessed {
			continue
		}
		cp := *note
		cp.Tags = s.noteTagNamesLocked(note.ID)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStorage) FirstChunkEmbedding(ctx context.Context, noteID string) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chunks := s.chunks[noteID]
	if len(chunks) == 0 || len(chunks[0].Embedding) == 0 {
		return nil, nil
	}
	emb := make([]float32, len(chunks[0].Embedding))
	copy(emb, chunks[0].Embedding)
	return emb, nil
}

func (s *MemoryStorage) ReplaceChunks(ctx context.Context, noteID string, chunks []common.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.notes[noteID]; !ok {
		return fmt.Errorf("note %s: %w", noteID, common.ErrNotFound)
	}
	replacement := make([]common.Chunk, len(chunks))
	now := time.Now()
	for i, c := range chunks {
		c.ID = newID()
		c.NoteID = noteID
		c.CreatedAt = now
		replacement[i] = c
	}
	sort.Slice(replacement, func(i, j int) bool { return replacement[i].OrderIndex < replacement[j].OrderIndex })
	s.chunks[noteID] = replacement
	return nil
}

// Chunks returns the stored chunks of a note, for tests.
func (s *MemoryStorage) Chunks(noteID string) []common.Chunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]common.Chunk, len(s.chunks[noteID]))
	copy(out, s.chunks[noteID])
	return out
}

func (s *MemoryStorage) EnsureTag(ctx context.Context, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return "", fmt.Errorf("empty tag name: %w", common.ErrValidation)
	}
	if id, ok := s.tagIDs[name]; ok {
		return id, nil
	}
	id := newID()
	s.tagIDs[name] = id
	s.tagNames[id] = name
	return id, nil
}

func (s *MemoryStorage) LinkNoteTag(ctx context.Context, noteID, tagID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.notes[noteID]; !ok {
		return fmt.Errorf("note %s: %w", noteID, common.ErrNotFound)
	}
	if _, ok := s.tagNames[tagID]; !ok {
		return fmt.Errorf("tag %s: %w", tagID, common.ErrNotFound)
	}
	if s.noteTags[noteID] == nil {
		s.noteTags[noteID] = make(map[string]bool)
	}
	s.noteTags[noteID][tagID] = true
	return nil
}

func (s *MemoryStorage) NoteTags(ctx context.Context, noteID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.noteTagNamesLocked(noteID), nil
}

func (s *MemoryStorage) noteTagNamesLocked(noteID string) []string {
	var names []string
	for tagID := range s.noteTags[noteID] {
		names = append(names, s.tagNames[tagID])
	}
	sort.Strings(names)
	return names
}

func (s *MemoryStorage) CreateTask(ctx context.Context, task *common.Task) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *task
	cp.ID = newID()
	if cp.Status == "" {
		cp.Status = "pending"
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	s.tasks[cp.ID] = &cp
	return cp.ID, nil
}

func (s *MemoryStorage) CreateEvent(ctx context.Context, event *common.CalendarEvent) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *event
	cp.ID = newID()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	s.events[cp.ID] = &cp
	return cp.ID, nil
}

func (s *MemoryStorage) ListTasks(ctx context.Context, userID string) ([]common.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []common.Task
	for _, t := range s.tasks {
		if t.UserID == userID {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStorage) ListEvents(ctx context.Context, userID string) ([]common.CalendarEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []common.CalendarEvent
	for _, e := range s.events {
		if e.UserID == userID {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStorage) UpsertEntity(ctx context.Context, entity common.Entity) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, existing := range s.entities {
		if existing.UserID != entity.UserID || existing.Type != entity.Type {
			continue
		}
		if !strings.EqualFold(existing.Name, entity.Name) {
			continue
		}
		if entity.Description != "" {
			existing.Description = entity.Description
		}
		if len(entity.Properties) > 0 {
			if existing.Properties == nil {
				existing.Properties = make(map[string]any)
			}
			for k, v := range entity.Properties {
				existing.Properties[k] = v
			}
		}
		if entity.Embedding != nil {
			existing.Embedding = append([]float32(nil), entity.Embedding...)
		}
		existing.UpdatedAt = now
		return existing.ID, nil
	}

	cp := entity
	cp.ID = newID()
	cp.Embedding = append([]float32(nil), entity.Embedding...)
	cp.CreatedAt = now
	cp.UpdatedAt = now
	s.entities[cp.ID] = &cp
	return cp.ID, nil
}

func (s *MemoryStorage) UpsertRelationship(ctx context.Context, rel common.EntityRelationship) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entities[rel.SourceEntityID]; !ok {
		return fmt.Errorf("entity %s: %w", rel.SourceEntityID, common.ErrNotFound)
	}
	if _, ok := s.entities[rel.TargetEntityID]; !ok {
		return fmt.Errorf("entity %s: %w", rel.TargetEntityID, common.ErrNotFound)
	}
	s.upsertRelationshipLocked(rel)
	return nil
}

func (s *MemoryStorage) upsertRelationshipLocked(rel common.EntityRelationship) {
	key := relKey{source: rel.SourceEntityID, target: rel.TargetEntityID, typ: rel.Type}
	if existing, ok := s.relations[key]; ok {
		if len(rel.Properties) > 0 {
			if existing.Properties == nil {
				existing.Properties = make(map[string]any)
			}
			for k, v := range rel.Properties {
				existing.Properties[k] = v
			}
		}
		s.relations[key] = existing
		return
	}
	s.relations[key] = rel
}

func (s *MemoryStorage) AddEntitySource(ctx context.Context, src common.EntitySource) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entities[src.EntityID]; !ok {
		return fmt.Errorf("entity %s: %w", src.EntityID, common.ErrNotFound)
	}
	s.sources = append(s.sources, src)
	return nil
}

func (s *MemoryStorage) ListEntities(ctx context.Context, userID string) ([]common.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []common.Entity
	for _, e := range s.entities {
		if e.UserID != userID {
			continue
		}
		cp := *e
		cp.Embedding = append([]float32(nil), e.Embedding...)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStorage) ListRelationships(ctx context.Context, userID string) ([]common.EntityRelationship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []common.EntityRelationship
	for _, rel := range s.relations {
		src, ok := s.entities[rel.SourceEntityID]
		if !ok || src.UserID != userID {
			continue
		}
		out = append(out, rel)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SourceEntityID != out[j].SourceEntityID {
			return out[i].SourceEntityID < out[j].SourceEntityID
		}
		if out[i].TargetEntityID != out[j].TargetEntityID {
			return out[i].TargetEntityID < out[j].TargetEntityID
		}
		return out[i].Type < out[j].Type
	})
	return out, nil
}

func (s *MemoryStorage) ListEntitySources(ctx context.Context, userID string) ([]common.EntitySource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []common.EntitySource
	for _, src := range s.sources {
		ent, ok := s.entities[src.EntityID]
		if !ok || ent.UserID != userID {
			continue
		}
		out = append(out, src)
	}
	return out, nil
}

func (s *MemoryStorage) MergeEntities(ctx context.Context, primaryID, duplicateID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entities[primaryID]; !ok {
		return fmt.Errorf("entity %s: %w", primaryID, common.ErrNotFound)
	}
	if _, ok := s.entities[duplicateID]; !ok {
		return fmt.Errorf("entity %s: %w", duplicateID, common.ErrNotFound)
	}

	for key, rel := range s.relations {
		if rel.SourceEntityID != duplicateID && rel.TargetEntityID != duplicateID {
			continue
		}
		delete(s.relations, key)
		if rel.SourceEntityID == duplicateID {
			rel.SourceEntityID = primaryID
		}
		if rel.TargetEntityID == duplicateID {
			rel.TargetEntityID = primaryID
		}
		s.upsertRelationshipLocked(rel)
	}

	for i := range s.sources {
		if s.sources[i].EntityID == duplicateID {
			s.sources[i].EntityID = primaryID
		}
	}

	delete(s.entities, duplicateID)
	return nil
}

func (s *MemoryStorage) LogStart(ctx context.Context, itemID, operation, message string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := &common.ProcessingLog{
		ID:        newID(),
		ItemID:    itemID,
		Operation: operation,
		Status:    common.LogStarted,
		Message:   message,
		CreatedAt: time.Now(),
	}
	s.logs = append(s.logs, log)
	s.logIndex[log.ID] = log
	return log.ID, nil
}

func (s *MemoryStorage) LogComplete(ctx context.Context, logID, message string, processingTimeMs int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log, ok := s.logIndex[logID]
	if !ok {
		return fmt.Errorf("log %s: %w", logID, common.ErrNotFound)
	}
	log.Status = common.LogCompleted
	log.Message = message
	log.ProcessingTimeMs = processingTimeMs
	return nil
}

func (s *MemoryStorage) LogFail(ctx context.Context, logID, message, errorDetails string, processingTimeMs int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log, ok := s.logIndex[logID]
	if !ok {
		return fmt.Errorf("log %s: %w", logID, common.ErrNotFound)
	}
	log.Status = common.LogFailed
	log.Message = message
	log.ErrorDetails = errorDetails
	log.ProcessingTimeMs = processingTimeMs
	return nil
}

func (s *MemoryStorage) ListLogs(ctx context.Context, userID, itemID string, limit, offset int) ([]common.ProcessingLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []common.ProcessingLog
	for i := len(s.logs) - 1; i >= 0; i-- {
		log := s.logs[i]
		note, ok := s.notes[log.ItemID]
		if !ok || note.UserID != userID {
			continue
		}
		if itemID != "" && log.ItemID != itemID {
			continue
		}
		out = append(out, *log)
	}
	if offset > 0 {
		if offset >= len(out) {
			return nil, nil
		}
		out = out[offset:]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStorage) LogStats(ctx context.Context, userID string) (*common.LogStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := &common.LogStats{}
	var totalMs int64
	var timed int
	for _, log := range s.logs {
		note, ok := s.notes[log.ItemID]
		if !ok || note.UserID != userID {
			continue
		}
		stats.Total++
		switch log.Status {
		case common.LogCompleted:
			stats.Completed++
		case common.LogFailed:
			stats.Failed++
		case common.LogStarted:
			stats.InProgress++
		}
		if log.ProcessingTimeMs > 0 {
			totalMs += log.ProcessingTimeMs
			timed++
		}
	}
	if timed > 0 {
		stats.AvgProcessingMs = float64(totalMs) / float64(timed)
	}
	return stats, nil
}

func projectionKey(p common.Projection) string {
	return p.UserID + "|" + string(p.ItemType) + "|" + p.ItemID
}

func (s *MemoryStorage) SaveProjections(ctx context.Context, userID string, projections []common.Projection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range projections {
		p.UserID = userID
		s.projections[projectionKey(p)] = p
	}
	return nil
}

func (s *MemoryStorage) GetProjections(ctx context.Context, userID string) ([]common.Projection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []common.Projection
	for _, p := range s.projections {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ItemType != out[j].ItemType {
			return out[i].ItemType < out[j].ItemType
		}
		return out[i].ItemID < out[j].ItemID
	})
	return out, nil
}
