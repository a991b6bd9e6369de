package graph

import (
	"context"
	"fmt"
	"time"

	"mosaic/internal/util"
	"mosaic/pkg/common"
	"mosaic/pkg/logger"
)

const temporalWindow = 24 * time.Hour

// Build assembles the full graph for one user: processed notes, tasks,
// calendar events, and entities as nodes, connected by explicit mention and
// relationship edges plus derived similarity, shared-tag, and temporal edges.
// Edges are recomputed on every call and never persisted.
//
// Stored 2D projections are merged into the nodes when present; nodes without
// a stored projection keep nil coordinates.
func (e *Engine) Build(ctx context.Context, userID string) (*common.Graph, error) {
	nodes, err := e.collectNodes(ctx, userID)
	if err != nil {
		return nil, err
	}

	edges, err := e.explicitEdges(ctx, userID, nodes)
	if err != nil {
		return nil, err
	}
	edges = append(edges, derivedEdges(nodes)...)

	if err := e.applyProjections(ctx, userID, nodes); err != nil {
		return nil, err
	}

	logger.Info("[Graph] assembled", "user", userID, "nodes", len(nodes), "edges", len(edges))
	return &common.Graph{Nodes: nodes, Edges: edges}, nil
}

func (e *Engine) collectNodes(ctx context.Context, userID string) ([]common.GraphNode, error) {
	var nodes []common.GraphNode

	notes, err := e.store.ListProcessedNotes(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	for _, note := range notes {
		content := note.Summary
		if content == "" {
			content = util.TruncateRunesafe(note.RawText, 200)
		}
		// A note with neither text nor a title has nothing to show and
		// nothing to embed.
		if content == "" && note.Title == "" {
			continue
		}
		embedding, err := e.store.FirstChunkEmbedding(ctx, note.ID)
		if err != nil {
			return nil, fmt.Errorf("chunk embedding for note %s: %w", note.ID, err)
		}
		if len(embedding) == 0 {
			embedding = e.embedOrNil(ctx, note.Title+" "+content)
		}
		nodes = append(nodes, common.GraphNode{
			ID:        note.ID,
			Type:      common.ItemTypeNote,
			Title:     note.Title,
			Content:   content,
			Embedding: embedding,
			Tags:      note.Tags,
			CreatedAt: note.CreatedAt,
		})
	}

	tasks, err := e.store.ListTasks(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	for _, task := range tasks {
		nodes = append(nodes, common.GraphNode{
			ID:        task.ID,
			Type:      common.ItemTypeTask,
			Title:     task.Title,
			Content:   task.Description,
			Embedding: e.embedOrNil(ctx, task.Title+" "+task.Description),
			Metadata:  map[string]any{"status": task.Status, "priority": task.Priority},
			CreatedAt: task.CreatedAt,
		})
	}

	events, err := e.store.ListEvents(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	for _, event := range events {
		nodes = append(nodes, common.GraphNode{
			ID:        event.ID,
			Type:      common.ItemTypeEvent,
			Title:     event.Title,
			Content:   event.Description,
			Embedding: e.embedOrNil(ctx, event.Title+" "+event.Description),
			Metadata:  map[string]any{"start_datetime": event.StartDatetime},
			CreatedAt: event.CreatedAt,
		})
	}

	entities, err := e.store.ListEntities(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	for _, ent := range entities {
		embedding := ent.Embedding
		if len(embedding) == 0 {
			embedding = e.embedOrNil(ctx, string(ent.Type)+": "+ent.Name+". "+ent.Description)
		}
		nodes = append(nodes, common.GraphNode{
			ID:        ent.ID,
			Type:      common.ItemTypeEntity,
			Title:     ent.Name,
			Content:   ent.Description,
			Embedding: embedding,
			Metadata:  map[string]any{"entity_type": string(ent.Type)},
			CreatedAt: ent.CreatedAt,
		})
	}

	return nodes, nil
}

// embedOrNil computes an on-demand embedding for nodes without a stored one.
// Failures degrade to a node without similarity edges instead of failing the
// whole graph.
func (e *Engine) embedOrNil(ctx context.Context, text string) []float32 {
	embedding, err := e.client.GenerateEmbedding(ctx, []byte(text))
	if err != nil {
		logger.Warn("[Graph] node embedding failed", "err", err)
		return nil
	}
	return embedding
}

// explicitEdges builds entity relationship edges and entity mention edges.
// Endpoints missing from the node set are dropped.
func (e *Engine) explicitEdges(ctx context.Context, userID string, nodes []common.GraphNode) ([]common.GraphEdge, error) {
	present := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		present[n.ID] = true
	}

	var edges []common.GraphEdge

	relationships, err := e.store.ListRelationships(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list relationships: %w", err)
	}
	for _, rel := range relationships {
		if !present[rel.SourceEntityID] || !present[rel.TargetEntityID] {
			continue
		}
		edges = append(edges, common.GraphEdge{
			SourceID: rel.SourceEntityID,
			TargetID: rel.TargetEntityID,
			Type:     common.EdgeExplicit,
			Label:    rel.Type,
		})
	}

	sources, err := e.store.ListEntitySources(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list entity sources: %w", err)
	}
	seen := make(map[string]bool)
	for _, src := range sources {
		if !present[src.EntityID] || !present[src.SourceID] {
			continue
		}
		key := src.EntityID + "|" + src.SourceID
		if seen[key] {
			continue
		}
		seen[key] = true
		edges = append(edges, common.GraphEdge{
			SourceID: src.EntityID,
			TargetID: src.SourceID,
			Type:     common.EdgeExplicit,
			Label:    "mentions",
		})
	}

	return edges, nil
}

// derivedEdges computes similarity, shared-tag, and temporal edges over all
// node pairs. Entity pairs are excluded from similarity edges since their
// relationships are modeled explicitly.
func derivedEdges(nodes []common.GraphNode) []common.GraphEdge {
	var edges []common.GraphEdge
	for i := 0; i < len(nodes); i++ {
		for j := i + 1; j < len(nodes); j++ {
			a, b := nodes[i], nodes[j]

			bothEntities := a.Type == common.ItemTypeEntity && b.Type == common.ItemTypeEntity
			if !bothEntities && len(a.Embedding) > 0 && len(b.Embedding) > 0 {
				if util.Cosine(a.Embedding, b.Embedding) > similarEdgeThreshold {
					edges = append(edges, common.GraphEdge{
						SourceID: a.ID, TargetID: b.ID, Type: common.EdgeSimilar,
					})
				}
			}

			if a.Type == common.ItemTypeNote && b.Type == common.ItemTypeNote {
				if shared := sharedTag(a.Tags, b.Tags); shared != "" {
					edges = append(edges, common.GraphEdge{
						SourceID: a.ID, TargetID: b.ID, Type: common.EdgeSharedTags,
						Label: "#" + shared,
					})
				}
			}

			if delta := a.CreatedAt.Sub(b.CreatedAt); delta.Abs() < temporalWindow {
				edges = append(edges, common.GraphEdge{
					SourceID: a.ID, TargetID: b.ID, Type: common.EdgeTemporal,
				})
			}
		}
	}
	return edges
}

func sharedTag(a, b []string) string {
	if len(a) == 0 || len(b) == 0 {
		return ""
	}
	set := make(map[string]bool, len(a))
	for _, t := range a {
		set[t] = true
	}
	for _, t := range b {
		if set[t] {
			return t
		}
	}
	return ""
}

func (e *Engine) applyProjections(ctx context.Context, userID string, nodes []common.GraphNode) error {
	projections, err := e.store.GetProjections(ctx, userID)
	if err != nil {
		return fmt.Errorf("get projections: %w", err)
	}
	if len(projections) == 0 {
		return nil
	}

	coords := make(map[string]common.Projection, len(projections))
	for _, p := range projections {
		coords[p.ItemID] = p
	}
	for i := range nodes {
		if p, ok := coords[nodes[i].ID]; ok && p.ItemType == nodes[i].Type {
			x, y := p.X, p.Y
			nodes[i].X = &x
			nodes[i].Y = &y
		}
	}
	return nil
}
