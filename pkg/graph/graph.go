// Package graph maintains the knowledge graph derived from a user's content:
// it ingests extracted entities, resolves duplicates by embedding similarity,
// and assembles the node/edge view served to clients.
package graph

import (
	"mosaic/pkg/ai"
	"mosaic/pkg/extract"
	"mosaic/pkg/store"
)

const (
	// mergeThreshold is the cosine similarity above which two same-typed
	// entities are considered duplicates.
	mergeThreshold = 0.85

	// similarEdgeThreshold is the cosine similarity above which two graph
	// nodes get a similar edge.
	similarEdgeThreshold = 0.7

	// sourceExcerptLen bounds the provenance excerpt stored per mention.
	sourceExcerptLen = 500
)

// Engine bundles the storage and AI dependencies of the graph operations.
type Engine struct {
	store     store.Storage
	client    ai.NoteAIClient
	extractor *extract.Extractor
}

// NewEngine creates a graph Engine on top of the given storage and AI client.
func NewEngine(st store.Storage, client ai.NoteAIClient) *Engine {
	return &Engine{
		store:     st,
		client:    client,
		extractor: extract.NewExtractor(client),
	}
}
