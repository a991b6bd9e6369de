package pgx

import (
	"context"
	"fmt"

	"mosaic/pkg/common"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/pgvector/pgvector-go"
)

// UpsertEntity keys on (user_id, lower(name), type). On conflict the
// description survives unless the new one is non-empty, properties are
// shallow-merged with the new keys winning, and the embedding is replaced.
func (s *DBStorage) UpsertEntity(ctx context.Context, entity common.Entity) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", err
	}

	var entityID string
	err = s.conn.QueryRow(ctx,
		`INSERT INTO entities (id, user_id, name, type, description, properties, embedding)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)
		 ON CONFLICT (user_id, LOWER(name), type) DO UPDATE
		 SET description = COALESCE(NULLIF($5, ''), entities.description),
		     properties = COALESCE(entities.properties, '{}'::jsonb) || $6,
		     embedding = $7,
		     updated_at = NOW()
		 RETURNING id`,
		id, entity.UserID, entity.Name, entity.Type, entity.Description,
		entity.Properties, pgvector.NewVector(entity.Embedding)).Scan(&entityID)
	if err != nil {
		return "", fmt.Errorf("upsert entity: %w", err)
	}
	return entityID, nil
}

func (s *DBStorage) UpsertRelationship(ctx context.Context, rel common.EntityRelationship) error {
	_, err := s.conn.Exec(ctx,
		`INSERT INTO entity_relationships (source_entity_id, target_entity_id, relationship_type, properties)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (source_entity_id, target_entity_id, relationship_type) DO UPDATE
		 SET properties = COALESCE(entity_relationships.properties, '{}'::jsonb) || $4`,
		rel.SourceEntityID, rel.TargetEntityID, rel.Type, rel.Properties)
	if err != nil {
		return fmt.Errorf("upsert relationship: %w", err)
	}
	return nil
}

func (s *DBStorage) AddEntitySource(ctx context.Context, src common.EntitySource) error {
	_, err := s.conn.Exec(ctx,
		`INSERT INTO entity_sources (entity_id, source_type, source_id, extracted_from)
		 VALUES ($1, $2, $3, NULLIF($4, ''))`,
		src.EntityID, src.SourceType, src.SourceID, src.ExtractedFrom)
	if err != nil {
		return fmt.Errorf("add entity source: %w", err)
	}
	return nil
}

func (s *DBStorage) ListEntities(ctx context.Context, userID string) ([]common.Entity, error) {
	rows, err := s.conn.Query(ctx,
		`SELECT id, user_id, name, type, COALESCE(description, ''),
		        COALESCE(properties, '{}'::jsonb), embedding, created_at, updated_at
		 FROM entities
		 WHERE user_id = $1
		 ORDER BY created_at`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	defer rows.Close()

	var entities []common.Entity
	for rows.Next() {
		var e common.Entity
		var vec pgvector.Vector
		if err := rows.Scan(
			&e.ID, &e.UserID, &e.Name, &e.Type, &e.Description,
			&e.Properties, &vec, &e.CreatedAt, &e.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		e.Embedding = vec.Slice()
		entities = append(entities, e)
	}
	return entities, rows.Err()
}

func (s *DBStorage) ListRelationships(ctx context.Context, userID string) ([]common.EntityRelationship, error) {
	rows, err := s.conn.Query(ctx,
		`SELECT er.source_entity_id, er.target_entity_id, er.relationship_type,
		        COALESCE(er.properties, '{}'::jsonb)
		 FROM entity_relationships er
		 JOIN entities e ON e.id = er.source_entity_id
		 WHERE e.user_id = $1`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list relationships: %w", err)
	}
	defer rows.Close()

	var rels []common.EntityRelationship
	for rows.Next() {
		var r common.EntityRelationship
		if err := rows.Scan(&r.SourceEntityID, &r.TargetEntityID, &r.Type, &r.Properties); err != nil {
			return nil, fmt.Errorf("scan relationship: %w", err)
		}
		rels = append(rels, r)
	}
	return rels, rows.Err()
}

func (s *DBStorage) ListEntitySources(ctx context.Context, userID string) ([]common.EntitySource, error) {
	rows, err := s.conn.Query(ctx,
		`SELECT es.entity_id, es.source_type, es.source_id, COALESCE(es.extracted_from, '')
		 FROM entity_sources es
		 JOIN entities e ON e.id = es.entity_id
		 WHERE e.user_id = $1`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list entity sources: %w", err)
	}
	defer rows.Close()

	var sources []common.EntitySource
	for rows.Next() {
		var src common.EntitySource
		if err := rows.Scan(&src.EntityID, &src.SourceType, &src.SourceID, &src.ExtractedFrom); err != nil {
			return nil, fmt.Errorf("scan entity source: %w", err)
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

// MergeEntities folds duplicateID into primaryID in one transaction:
// relationships are repointed (merging property maps where the repointed row
// collides with an existing one), provenance rows move over, and the
// duplicate row is deleted.
func (s *DBStorage) MergeEntities(ctx context.Context, primaryID, duplicateID string) error {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("merge entities: %w", err)
	}
	defer tx.Rollback(ctx)

	// Repoint via insert-with-conflict-merge rather than a bare UPDATE, which
	// would trip the (source, target, type) unique index when the primary
	// already has the same edge.
	_, err = tx.Exec(ctx,
		`INSERT INTO entity_relationships (source_entity_id, target_entity_id, relationship_type, properties)
		 SELECT $1, target_entity_id, relationship_type, COALESCE(properties, '{}'::jsonb)
		 FROM entity_relationships
		 WHERE source_entity_id = $2
		 ON CONFLICT (source_entity_id, target_entity_id, relationship_type) DO UPDATE
		 SET properties = COALESCE(entity_relationships.properties, '{}'::jsonb) || EXCLUDED.properties`,
		primaryID, duplicateID)
	if err != nil {
		return fmt.Errorf("repoint outgoing relationships: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO entity_relationships (source_entity_id, target_entity_id, relationship_type, properties)
		 SELECT source_entity_id, $1, relationship_type, COALESCE(properties, '{}'::jsonb)
		 FROM entity_relationships
		 WHERE target_entity_id = $2 AND source_entity_id <> $1
		 ON CONFLICT (source_entity_id, target_entity_id, relationship_type) DO UPDATE
		 SET properties = COALESCE(entity_relationships.properties, '{}'::jsonb) || EXCLUDED.properties`,
		primaryID, duplicateID)
	if err != nil {
		return fmt.Errorf("repoint incoming relationships: %w", err)
	}

	_, err = tx.Exec(ctx,
		`DELETE FROM entity_relationships
		 WHERE source_entity_id = $1 OR target_entity_id = $1`,
		duplicateID)
	if err != nil {
		return fmt.Errorf("drop duplicate relationships: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE entity_sources SET entity_id = $1 WHERE entity_id = $2`,
		primaryID, duplicateID)
	if err != nil {
		return fmt.Errorf("repoint entity sources: %w", err)
	}

	tag, err := tx.Exec(ctx, `DELETE FROM entities WHERE id = $1`, duplicateID)
	if err != nil {
		return fmt.Errorf("delete duplicate entity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("entity %s: %w", duplicateID, common.ErrNotFound)
	}

	return tx.Commit(ctx)
}
