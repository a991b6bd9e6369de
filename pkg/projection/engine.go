package projection

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"mosaic/pkg/common"
	"mosaic/pkg/graph"
	"mosaic/pkg/logger"
	"mosaic/pkg/store"
)

// Method selects the placement algorithm.
type Method string

const (
	MethodRandom     Method = "random"
	MethodSimilarity Method = "similarity"
)

// Engine computes and persists 2D projections for a user's graph.
type Engine struct {
	store store.Storage
	graph *graph.Engine
	seed  func() int64
}

// NewEngine creates a projection Engine. Coordinates are recomputed from the
// current graph on every call and upserted per item.
func NewEngine(st store.Storage, graphEngine *graph.Engine) *Engine {
	return &Engine{
		store: st,
		graph: graphEngine,
		seed:  func() int64 { return time.Now().UnixNano() },
	}
}

// WithSeed pins the random source, making layouts reproducible.
func (e *Engine) WithSeed(seed int64) *Engine {
	e.seed = func() int64 { return seed }
	return e
}

// Compute assembles the user's graph, places every node with the requested
// method, and persists the coordinates. It returns the computed projections.
// An unknown method falls back to the similarity layout.
func (e *Engine) Compute(ctx context.Context, userID string, method Method) ([]common.Projection, error) {
	g, err := e.graph.Build(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("build graph: %w", err)
	}
	if len(g.Nodes) == 0 {
		return nil, nil
	}

	items := make([]Item, len(g.Nodes))
	for i, node := range g.Nodes {
		items[i] = Item{ID: node.ID, Type: node.Type, Embedding: node.Embedding}
	}

	rng := rand.New(rand.NewSource(e.seed()))
	var projections []common.Projection
	switch method {
	case MethodRandom:
		projections = RandomProjection(items, rng)
	default:
		projections = SimilarityLayout(items, rng)
	}

	if err := e.store.SaveProjections(ctx, userID, projections); err != nil {
		return nil, fmt.Errorf("save projections: %w", err)
	}
	logger.Info("[Projection] computed", "user", userID, "method", method, "items", len(projections))
	return projections, nil
}
