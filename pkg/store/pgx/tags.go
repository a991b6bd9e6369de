package pgx

import (
	"context"
	"fmt"
	"strings"

	"mosaic/pkg/common"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

func (s *DBStorage) EnsureTag(ctx context.Context, name string) (string, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return "", fmt.Errorf("empty tag name: %w", common.ErrValidation)
	}

	id, err := gonanoid.New()
	if err != nil {
		return "", err
	}

	// Insert-or-select; the DO UPDATE makes RETURNING yield the existing row.
	var tagID string
	err = s.conn.QueryRow(ctx,
		`INSERT INTO tags (id, name) VALUES ($1, $2)
		 ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		 RETURNING id`,
		id, name).Scan(&tagID)
	if err != nil {
		return "", fmt.Errorf("ensure tag: %w", err)
	}
	return tagID, nil
}

func (s *DBStorage) LinkNoteTag(ctx context.Context, noteID, tagID string) error {
	_, err := s.conn.Exec(ctx,
		`INSERT INTO note_tags (note_id, tag_id) VALUES ($1, $2)
		 ON CONFLICT (note_id, tag_id) DO NOTHING`,
		noteID, tagID)
	if err != nil {
		return fmt.Errorf("link note tag: %w", err)
	}
	return nil
}

func (s *DBStorage) NoteTags(ctx context.Context, noteID string) ([]string, error) {
	rows, err := s.conn.Query(ctx,
		`SELECT t.name FROM tags t
		 JOIN note_tags nt ON nt.tag_id = t.id
		 WHERE nt.note_id = $1
		 ORDER BY t.name`,
		noteID)
	if err != nil {
		return nil, fmt.Errorf("note tags: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
