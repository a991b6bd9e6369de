package graph

import (
	"context"
	"fmt"
	"strings"

	"mosaic/internal/util"
	"mosaic/pkg/common"
	"mosaic/pkg/extract"
	"mosaic/pkg/logger"
)

var validEntityTypes = map[common.EntityType]bool{
	common.EntityPerson:       true,
	common.EntityOrganization: true,
	common.EntityLocation:     true,
	common.EntityConcept:      true,
	common.EntityDate:         true,
	common.EntityEvent:        true,
}

func normalizeEntityType(t string) common.EntityType {
	typ := common.EntityType(strings.ToLower(strings.TrimSpace(t)))
	if !validEntityTypes[typ] {
		return common.EntityConcept
	}
	return typ
}

// IngestResult reports what one extraction pass persisted.
type IngestResult struct {
	Entities      int
	Relationships int
}

// ProcessItemEntities extracts entities and relationships from the given text
// and persists them for the owning item. Entities are upserted by (user, name,
// type), each mention gets an append-only provenance row, and relationship
// endpoints are resolved only against the entities of this same pass.
//
// An embedding failure on one entity skips that entity and moves on; the
// remaining entities and relationships are still stored.
func (e *Engine) ProcessItemEntities(ctx context.Context, userID string, itemType common.ItemType, itemID, text string) (*IngestResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("empty item text: %w", common.ErrValidation)
	}

	extraction := e.extractor.Entities(ctx, text)
	result := &IngestResult{}
	batch := extract.NewBatch()
	excerpt := util.TruncateRunesafe(text, sourceExcerptLen)

	for _, ent := range extraction.Entities {
		name := strings.TrimSpace(ent.Name)
		if name == "" {
			continue
		}

		embedding, err := e.client.GenerateEmbedding(ctx, []byte(extract.EntityEmbeddingText(ent)))
		if err != nil {
			logger.Warn("[Graph] entity embedding failed, skipping entity",
				"entity", name, "err", err)
			continue
		}

		id, err := e.store.UpsertEntity(ctx, common.Entity{
			UserID:      userID,
			Name:        name,
			Type:        normalizeEntityType(ent.Type),
			Description: strings.TrimSpace(ent.Description),
			Properties:  ent.Properties,
			Embedding:   embedding,
		})
		if err != nil {
			return result, fmt.Errorf("store entity %q: %w", name, err)
		}
		batch.Put(name, id)
		result.Entities++

		if err := e.store.AddEntitySource(ctx, common.EntitySource{
			EntityID:      id,
			SourceType:    itemType,
			SourceID:      itemID,
			ExtractedFrom: excerpt,
		}); err != nil {
			return result, fmt.Errorf("link entity %q to source: %w", name, err)
		}
	}

	for _, rel := range extraction.Relationships {
		sourceID, ok := batch.Resolve(rel.Source)
		if !ok {
			continue
		}
		targetID, ok := batch.Resolve(rel.Target)
		if !ok {
			continue
		}
		if sourceID == targetID {
			continue
		}

		relType := strings.TrimSpace(rel.Type)
		if relType == "" {
			relType = "related_to"
		}
		if err := e.store.UpsertRelationship(ctx, common.EntityRelationship{
			SourceEntityID: sourceID,
			TargetEntityID: targetID,
			Type:           relType,
			Properties:     rel.Properties,
		}); err != nil {
			return result, fmt.Errorf("store relationship %s->%s: %w", rel.Source, rel.Target, err)
		}
		result.Relationships++
	}

	logger.Info("[Graph] entity extraction stored",
		"item", itemID, "entities", result.Entities, "relationships", result.Relationships)
	return result, nil
}
