package graph

import (
	"context"
	"fmt"

	"mosaic/internal/util"
	"mosaic/pkg/logger"
)

// ResolveAndMerge finds duplicate entities for the user and merges each
// duplicate into its earlier-created counterpart. Two entities are duplicates
// when they share a type and their embeddings have cosine similarity above
// the merge threshold.
//
// The scan is a single pass: an entity that was already merged away is never
// considered again in the same call, so chains of near-duplicates may take
// more than one invocation to collapse fully.
func (e *Engine) ResolveAndMerge(ctx context.Context, userID string) (int, error) {
	entities, err := e.store.ListEntities(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("list entities: %w", err)
	}

	merged := 0
	gone := make(map[string]bool)
	for i := 0; i < len(entities); i++ {
		if gone[entities[i].ID] || len(entities[i].Embedding) == 0 {
			continue
		}
		for j := i + 1; j < len(entities); j++ {
			if gone[entities[j].ID] || len(entities[j].Embedding) == 0 {
				continue
			}
			if entities[i].Type != entities[j].Type {
				continue
			}

			similarity := util.Cosine(entities[i].Embedding, entities[j].Embedding)
			if similarity <= mergeThreshold {
				continue
			}

			logger.Info("[Graph] merging duplicate entity",
				"primary", entities[i].Name, "duplicate", entities[j].Name,
				"similarity", similarity)
			if err := e.store.MergeEntities(ctx, entities[i].ID, entities[j].ID); err != nil {
				return merged, fmt.Errorf("merge %s into %s: %w", entities[j].ID, entities[i].ID, err)
			}
			gone[entities[j].ID] = true
			merged++
		}
	}

	if merged > 0 {
		logger.Info("[Graph] entity resolution complete", "user", userID, "merged", merged)
	}
	return merged, nil
}
