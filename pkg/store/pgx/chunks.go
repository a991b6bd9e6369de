package pgx

import (
	"context"
	"fmt"

	"mosaic/pkg/common"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/pgvector/pgvector-go"
)

// ReplaceChunks swaps out all chunks of a note in one transaction, so a
// failed rerun never leaves a mix of old and new chunks behind.
func (s *DBStorage) ReplaceChunks(ctx context.Context, noteID string, chunks []common.Chunk) error {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("replace chunks: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM chunks WHERE note_id = $1`, noteID); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}

	for _, c := range chunks {
		id, err := gonanoid.New()
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO chunks (id, note_id, chunk_text, embedding, order_index, token_estimate)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			id, noteID, c.Text, pgvector.NewVector(c.Embedding), c.OrderIndex, c.TokenEstimate)
		if err != nil {
			return fmt.Errorf("insert chunk %d: %w", c.OrderIndex, err)
		}
	}

	return tx.Commit(ctx)
}
