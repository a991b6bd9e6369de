// Package pgx implements the Storage interface on PostgreSQL with pgvector.
package pgx

import (
	"context"

	"mosaic/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
	Begin(ctx context.Context) (pgxv5.Tx, error)
}

// DBStorage implements store.Storage using PostgreSQL. Vector columns use
// pgvector; jsonb columns are read and written as map[string]any.
type DBStorage struct {
	conn pgxIConn
}

var _ store.Storage = (*DBStorage)(nil)

// NewDBStorage creates a DBStorage on an existing connection or pool.
func NewDBStorage(conn pgxIConn) *DBStorage {
	return &DBStorage{conn: conn}
}
