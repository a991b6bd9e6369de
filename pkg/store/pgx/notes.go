package pgx

import (
	"context"
	"errors"
	"fmt"

	"mosaic/pkg/common"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
)

const noteColumns = `id, user_id, COALESCE(title, ''), COALESCE(raw_text, ''),
	COALESCE(summary, ''), COALESCE(language, ''), COALESCE(source_type, ''),
	COALESCE(audio_key, ''), status, COALESCE(metadata, '{}'::jsonb), created_at, updated_at`

func scanNote(row pgxv5.Row) (*common.Note, error) {
	var n common.Note
	err := row.Scan(
		&n.ID, &n.UserID, &n.Title, &n.RawText,
		&n.Summary, &n.Language, &n.SourceType,
		&n.AudioKey, &n.Status, &n.Metadata, &n.CreatedAt, &n.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *DBStorage) GetNote(ctx context.Context, id string) (*common.Note, error) {
	note, err := scanNote(s.conn.QueryRow(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE id = $1`, id))
	if errors.Is(err, pgxv5.ErrNoRows) {
		return nil, fmt.Errorf("note %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get note: %w", err)
	}
	tags, err := s.NoteTags(ctx, id)
	if err != nil {
		return nil, err
	}
	note.Tags = tags
	return note, nil
}

func (s *DBStorage) ClaimNote(ctx context.Context, id string) (*common.Note, error) {
	note, err := scanNote(s.conn.QueryRow(ctx,
		`UPDATE notes SET status = 'processing', updated_at = NOW()
		 WHERE id = $1 AND status <> 'processing'
		 RETURNING `+noteColumns, id))
	if errors.Is(err, pgxv5.ErrNoRows) {
		var exists bool
		if err := s.conn.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM notes WHERE id = $1)`, id).Scan(&exists); err != nil {
			return nil, fmt.Errorf("claim note: %w", err)
		}
		if !exists {
			return nil, fmt.Errorf("note %s: %w", id, common.ErrNotFound)
		}
		return nil, fmt.Errorf("note %s: %w", id, common.ErrAlreadyProcessing)
	}
	if err != nil {
		return nil, fmt.Errorf("claim note: %w", err)
	}
	tags, err := s.NoteTags(ctx, id)
	if err != nil {
		return nil, err
	}
	note.Tags = tags
	return note, nil
}

func (s *DBStorage) SetNoteStatus(ctx context.Context, id string, status common.ItemStatus) error {
	tag, err := s.conn.Exec(ctx,
		`UPDATE notes SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("set note status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("note %s: %w", id, common.ErrNotFound)
	}
	return nil
}

func (s *DBStorage) SetNoteText(ctx context.Context, id string, rawText string, metadata map[string]any) error {
	tag, err := s.conn.Exec(ctx,
		`UPDATE notes
		 SET raw_text = $2,
		     metadata = COALESCE(metadata, '{}'::jsonb) || $3,
		     updated_at = NOW()
		 WHERE id = $1`,
		id, rawText, metadata)
	if err != nil {
		return fmt.Errorf("set note text: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("note %s: %w", id, common.ErrNotFound)
	}
	return nil
}

func (s *DBStorage) UpdateNoteResults(ctx context.Context, id string, title, summary, language string, status common.ItemStatus) error {
	tag, err := s.conn.Exec(ctx,
		`UPDATE notes
		 SET title = $2, summary = $3, language = $4, status = $5, updated_at = NOW()
		 WHERE id = $1`,
		id, title, summary, language, status)
	if err != nil {
		return fmt.Errorf("update note results: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("note %s: %w", id, common.ErrNotFound)
	}
	return nil
}

func (s *DBStorage) ListProcessedNotes(ctx context.Context, userID string) ([]common.Note, error) {
	rows, err := s.conn.Query(ctx,
		`SELECT n.id, n.user_id, COALESCE(n.title, ''), COALESCE(n.raw_text, ''),
		        COALESCE(n.summary, ''), COALESCE(n.language, ''), COALESCE(n.source_type, ''),
		        COALESCE(n.audio_key, ''), n.status, COALESCE(n.metadata, '{}'::jsonb),
		        n.created_at, n.updated_at,
		        COALESCE(array_agg(t.name) FILTER (WHERE t.name IS NOT NULL), '{}')
		 FROM notes n
		 LEFT JOIN note_tags nt ON n.id = nt.note_id
		 LEFT JOIN tags t ON nt.tag_id = t.id
		 WHERE n.user_id = $1 AND n.status = 'processed'
		 GROUP BY n.id
		 ORDER BY n.created_at`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	var notes []common.Note
	for rows.Next() {
		var n common.Note
		if err := rows.Scan(
			&n.ID, &n.UserID, &n.Title, &n.RawText,
			&n.Summary, &n.Language, &n.SourceType,
			&n.AudioKey, &n.Status, &n.Metadata,
			&n.CreatedAt, &n.UpdatedAt, &n.Tags,
		); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

func (s *DBStorage) FirstChunkEmbedding(ctx context.Context, noteID string) ([]float32, error) {
	var vec pgvector.Vector
	err := s.conn.QueryRow(ctx,
		`SELECT embedding FROM chunks
		 WHERE note_id = $1 AND embedding IS NOT NULL
		 ORDER BY order_index LIMIT 1`,
		noteID).Scan(&vec)
	if errors.Is(err, pgxv5.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("first chunk embedding: %w", err)
	}
	return vec.Slice(), nil
}
