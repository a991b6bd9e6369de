package pgx

import (
	"context"
	"fmt"

	"mosaic/pkg/common"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

func (s *DBStorage) SaveProjections(ctx context.Context, userID string, projections []common.Projection) error {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("save projections: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, p := range projections {
		id, err := gonanoid.New()
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO mosaic_projections (id, user_id, item_type, item_id, x, y)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (user_id, item_type, item_id)
			 DO UPDATE SET x = $5, y = $6, updated_at = NOW()`,
			id, userID, p.ItemType, p.ItemID, p.X, p.Y)
		if err != nil {
			return fmt.Errorf("upsert projection %s/%s: %w", p.ItemType, p.ItemID, err)
		}
	}
	return tx.Commit(ctx)
}

func (s *DBStorage) GetProjections(ctx context.Context, userID string) ([]common.Projection, error) {
	rows, err := s.conn.Query(ctx,
		`SELECT item_type, item_id, x, y
		 FROM mosaic_projections
		 WHERE user_id = $1`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("get projections: %w", err)
	}
	defer rows.Close()

	projections := []common.Projection{}
	for rows.Next() {
		p := common.Projection{UserID: userID}
		if err := rows.Scan(&p.ItemType, &p.ItemID, &p.X, &p.Y); err != nil {
			return nil, fmt.Errorf("scan projection: %w", err)
		}
		projections = append(projections, p)
	}
	return projections, rows.Err()
}
