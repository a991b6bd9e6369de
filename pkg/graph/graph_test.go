package graph

import (
	"context"
	"errors"
	"testing"
	"time"

	"mosaic/pkg/ai"
	"mosaic/pkg/ai/aitest"
	"mosaic/pkg/common"
	"mosaic/pkg/extract"
	"mosaic/pkg/store/memory"
)

func edgesBetween(edges []common.GraphEdge, a, b string, typ common.EdgeType) int {
	count := 0
	for _, e := range edges {
		if e.Type != typ {
			continue
		}
		if (e.SourceID == a && e.TargetID == b) || (e.SourceID == b && e.TargetID == a) {
			count++
		}
	}
	return count
}

func TestProcessItemEntities(t *testing.T) {
	st := memory.NewMemoryStorage()
	client := &aitest.StubClient{
		FormatFunc: func(ctx context.Context, name, description, prompt string, out any, opts ...ai.GenerateOption) error {
			result := out.(*extract.ExtractionResult)
			result.Entities = []extract.ExtractedEntity{
				{Name: "Alice", Type: "person", Description: "a colleague"},
				{Name: "Acme Corp", Type: "organization"},
				{Name: "", Type: "person"},
				{Name: "Something", Type: "widget"},
			}
			result.Relationships = []extract.ExtractedRelationship{
				{Source: "alice", Target: "ACME CORP", Type: "works_at"},
				{Source: "Alice", Target: "Nobody", Type: "knows"},
			}
			return nil
		},
	}
	engine := NewEngine(st, client)

	noteID := st.AddNote(&common.Note{UserID: "u1", RawText: "Alice works at Acme Corp."})
	result, err := engine.ProcessItemEntities(context.Background(), "u1", common.ItemTypeNote, noteID, "Alice works at Acme Corp.")
	if err != nil {
		t.Fatalf("ProcessItemEntities: %v", err)
	}
	if result.Entities != 3 {
		t.Errorf("stored %d entities, want 3", result.Entities)
	}
	if result.Relationships != 1 {
		t.Errorf("stored %d relationships, want 1", result.Relationships)
	}

	entities, _ := st.ListEntities(context.Background(), "u1")
	byName := make(map[string]common.Entity)
	for _, e := range entities {
		byName[e.Name] = e
	}
	if byName["Alice"].Type != common.EntityPerson {
		t.Errorf("Alice type = %s, want person", byName["Alice"].Type)
	}
	if byName["Something"].Type != common.EntityConcept {
		t.Errorf("unknown entity type should normalize to concept, got %s", byName["Something"].Type)
	}

	rels, _ := st.ListRelationships(context.Background(), "u1")
	if len(rels) != 1 {
		t.Fatalf("got %d relationships, want 1", len(rels))
	}
	if rels[0].SourceEntityID != byName["Alice"].ID || rels[0].TargetEntityID != byName["Acme Corp"].ID {
		t.Error("relationship endpoints not resolved case-insensitively within the batch")
	}
	if rels[0].Type != "works_at" {
		t.Errorf("relationship type = %q, want works_at", rels[0].Type)
	}

	sources, _ := st.ListEntitySources(context.Background(), "u1")
	if len(sources) != 3 {
		t.Fatalf("got %d entity sources, want 3", len(sources))
	}
	for _, src := range sources {
		if src.SourceID != noteID || src.SourceType != common.ItemTypeNote {
			t.Errorf("source row points at %s/%s, want note/%s", src.SourceType, src.SourceID, noteID)
		}
		if src.ExtractedFrom == "" {
			t.Error("source row missing excerpt")
		}
	}
}

func TestProcessItemEntitiesSkipsOnEmbeddingFailure(t *testing.T) {
	st := memory.NewMemoryStorage()
	client := &aitest.StubClient{
		FormatFunc: func(ctx context.Context, name, description, prompt string, out any, opts ...ai.GenerateOption) error {
			result := out.(*extract.ExtractionResult)
			result.Entities = []extract.ExtractedEntity{
				{Name: "Good", Type: "concept"},
				{Name: "Bad", Type: "concept"},
			}
			return nil
		},
		EmbeddingFunc: func(ctx context.Context, input []byte) ([]float32, error) {
			if string(input) == extract.EntityEmbeddingText(extract.ExtractedEntity{Name: "Bad", Type: "concept"}) {
				return nil, errors.New("embedding down")
			}
			return []float32{1, 0, 0}, nil
		},
	}
	engine := NewEngine(st, client)

	result, err := engine.ProcessItemEntities(context.Background(), "u1", common.ItemTypeNote, "n1", "text")
	if err != nil {
		t.Fatalf("ProcessItemEntities: %v", err)
	}
	if result.Entities != 1 {
		t.Errorf("stored %d entities, want 1 (the failing one skipped)", result.Entities)
	}
}

func TestResolveAndMerge(t *testing.T) {
	st := memory.NewMemoryStorage()
	engine := NewEngine(st, &aitest.StubClient{})
	ctx := context.Background()

	primary, _ := st.UpsertEntity(ctx, common.Entity{
		UserID: "u1", Name: "OpenAI", Type: common.EntityOrganization,
		Embedding: []float32{1, 0, 0},
	})
	dup, _ := st.UpsertEntity(ctx, common.Entity{
		UserID: "u1", Name: "Open AI", Type: common.EntityOrganization,
		Embedding: []float32{0.99, 0.1, 0},
	})
	// Same embedding but different type stays separate.
	other, _ := st.UpsertEntity(ctx, common.Entity{
		UserID: "u1", Name: "OpenAI", Type: common.EntityConcept,
		Embedding: []float32{1, 0, 0},
	})
	partner, _ := st.UpsertEntity(ctx, common.Entity{
		UserID: "u1", Name: "Sam", Type: common.EntityPerson,
		Embedding: []float32{0, 1, 0},
	})
	if err := st.UpsertRelationship(ctx, common.EntityRelationship{
		SourceEntityID: dup, TargetEntityID: partner, Type: "founded_by",
	}); err != nil {
		t.Fatal(err)
	}

	merged, err := engine.ResolveAndMerge(ctx, "u1")
	if err != nil {
		t.Fatalf("ResolveAndMerge: %v", err)
	}
	if merged != 1 {
		t.Fatalf("merged %d entities, want 1", merged)
	}

	entities, _ := st.ListEntities(ctx, "u1")
	if len(entities) != 3 {
		t.Fatalf("got %d entities after merge, want 3", len(entities))
	}
	for _, e := range entities {
		if e.ID == dup {
			t.Error("duplicate entity still present after merge")
		}
	}
	_ = other

	rels, _ := st.ListRelationships(ctx, "u1")
	if len(rels) != 1 || rels[0].SourceEntityID != primary {
		t.Errorf("relationship not repointed to primary: %+v", rels)
	}

	// A second pass finds nothing left to merge.
	merged, err = engine.ResolveAndMerge(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if merged != 0 {
		t.Errorf("second pass merged %d entities, want 0", merged)
	}
}

func TestBuildEdges(t *testing.T) {
	st := memory.NewMemoryStorage()
	client := &aitest.StubClient{Dim: 3}
	engine := NewEngine(st, client)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	note1 := st.AddNote(&common.Note{
		UserID: "u1", Title: "First", Summary: "first note",
		Status: common.StatusProcessed, CreatedAt: base,
	})
	note2 := st.AddNote(&common.Note{
		UserID: "u1", Title: "Second", Summary: "second note",
		Status: common.StatusProcessed, CreatedAt: base.Add(time.Hour),
	})
	note3 := st.AddNote(&common.Note{
		UserID: "u1", Title: "Third", Summary: "third note",
		Status: common.StatusProcessed, CreatedAt: base.Add(48 * time.Hour),
	})
	st.ReplaceChunks(ctx, note1, []common.Chunk{{Text: "a", Embedding: []float32{1, 0, 0}}})
	st.ReplaceChunks(ctx, note2, []common.Chunk{{Text: "b", Embedding: []float32{0.9, 0.43, 0}}})
	st.ReplaceChunks(ctx, note3, []common.Chunk{{Text: "c", Embedding: []float32{0, 1, 0}}})

	financeTag, _ := st.EnsureTag(ctx, "finance")
	st.LinkNoteTag(ctx, note1, financeTag)
	st.LinkNoteTag(ctx, note3, financeTag)

	ent1, _ := st.UpsertEntity(ctx, common.Entity{
		UserID: "u1", Name: "Budget", Type: common.EntityConcept,
		Embedding: []float32{1, 0, 0},
	})
	ent2, _ := st.UpsertEntity(ctx, common.Entity{
		UserID: "u1", Name: "Quarterly Review", Type: common.EntityEvent,
		Embedding: []float32{1, 0, 0},
	})
	st.UpsertRelationship(ctx, common.EntityRelationship{
		SourceEntityID: ent1, TargetEntityID: ent2, Type: "discussed_at",
	})
	st.AddEntitySource(ctx, common.EntitySource{
		EntityID: ent1, SourceType: common.ItemTypeNote, SourceID: note1,
	})

	graph, err := engine.Build(ctx, "u1")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(graph.Nodes) != 5 {
		t.Fatalf("got %d nodes, want 5", len(graph.Nodes))
	}

	if n := edgesBetween(graph.Edges, note1, note2, common.EdgeSimilar); n != 1 {
		t.Errorf("similar edges between close notes = %d, want 1", n)
	}
	if n := edgesBetween(graph.Edges, note1, note3, common.EdgeSimilar); n != 0 {
		t.Errorf("similar edges between orthogonal notes = %d, want 0", n)
	}
	if n := edgesBetween(graph.Edges, ent1, ent2, common.EdgeSimilar); n != 0 {
		t.Errorf("entity pairs must not get similarity edges, got %d", n)
	}

	if n := edgesBetween(graph.Edges, note1, note3, common.EdgeSharedTags); n != 1 {
		t.Errorf("shared tag edges = %d, want 1", n)
	}

	if n := edgesBetween(graph.Edges, note1, note2, common.EdgeTemporal); n != 1 {
		t.Errorf("temporal edges within window = %d, want 1", n)
	}
	if n := edgesBetween(graph.Edges, note1, note3, common.EdgeTemporal); n != 0 {
		t.Errorf("temporal edges outside window = %d, want 0", n)
	}

	if n := edgesBetween(graph.Edges, ent1, ent2, common.EdgeExplicit); n != 1 {
		t.Errorf("relationship edges = %d, want 1", n)
	}
	if n := edgesBetween(graph.Edges, ent1, note1, common.EdgeExplicit); n != 1 {
		t.Errorf("mention edges = %d, want 1", n)
	}
}

func TestBuildSkipsContentlessNotes(t *testing.T) {
	st := memory.NewMemoryStorage()
	engine := NewEngine(st, &aitest.StubClient{Dim: 3})
	ctx := context.Background()

	st.AddNote(&common.Note{UserID: "u1", Status: common.StatusProcessed})
	kept := st.AddNote(&common.Note{
		UserID: "u1", Title: "Kept", Summary: "has content",
		Status: common.StatusProcessed,
	})

	graph, err := engine.Build(ctx, "u1")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(graph.Nodes) != 1 {
		t.Fatalf("got %d nodes, want only the note with content", len(graph.Nodes))
	}
	if graph.Nodes[0].ID != kept {
		t.Errorf("node = %s, want %s", graph.Nodes[0].ID, kept)
	}
}

func TestTemporalWindowBoundary(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	nodes := []common.GraphNode{
		{ID: "a", Type: common.ItemTypeNote, CreatedAt: base},
		{ID: "b", Type: common.ItemTypeNote, CreatedAt: base.Add(24 * time.Hour)},
		{ID: "c", Type: common.ItemTypeNote, CreatedAt: base.Add(24*time.Hour - time.Second)},
	}
	edges := derivedEdges(nodes)
	if n := edgesBetween(edges, "a", "b", common.EdgeTemporal); n != 0 {
		t.Errorf("exactly 24h apart must not connect, got %d edges", n)
	}
	if n := edgesBetween(edges, "a", "c", common.EdgeTemporal); n != 1 {
		t.Errorf("just under 24h apart must connect, got %d edges", n)
	}
}

func TestBuildAppliesProjections(t *testing.T) {
	st := memory.NewMemoryStorage()
	engine := NewEngine(st, &aitest.StubClient{})
	ctx := context.Background()

	noteID := st.AddNote(&common.Note{
		UserID: "u1", Title: "Positioned", Summary: "s",
		Status: common.StatusProcessed,
	})
	st.SaveProjections(ctx, "u1", []common.Projection{
		{ItemType: common.ItemTypeNote, ItemID: noteID, X: 3.5, Y: -2},
	})

	graph, err := engine.Build(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(graph.Nodes) != 1 {
		t.Fatalf("got %d nodes, want 1", len(graph.Nodes))
	}
	node := graph.Nodes[0]
	if node.X == nil || node.Y == nil {
		t.Fatal("projection coordinates not applied")
	}
	if *node.X != 3.5 || *node.Y != -2 {
		t.Errorf("coordinates = (%v, %v), want (3.5, -2)", *node.X, *node.Y)
	}
}
