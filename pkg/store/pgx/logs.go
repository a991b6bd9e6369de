package pgx

import (
	"context"
	"fmt"

	"mosaic/pkg/common"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

func (s *DBStorage) LogStart(ctx context.Context, itemID, operation, message string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", err
	}
	_, err = s.conn.Exec(ctx,
		`INSERT INTO processing_logs (id, item_id, operation, status, message)
		 VALUES ($1, $2, $3, 'started', NULLIF($4, ''))`,
		id, itemID, operation, message)
	if err != nil {
		return "", fmt.Errorf("log start: %w", err)
	}
	return id, nil
}

func (s *DBStorage) LogComplete(ctx context.Context, logID, message string, processingTimeMs int64) error {
	tag, err := s.conn.Exec(ctx,
		`UPDATE processing_logs
		 SET status = 'completed', message = NULLIF($2, ''), processing_time_ms = $3
		 WHERE id = $1`,
		logID, message, processingTimeMs)
	if err != nil {
		return fmt.Errorf("log complete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("log %s: %w", logID, common.ErrNotFound)
	}
	return nil
}

func (s *DBStorage) LogFail(ctx context.Context, logID, message, errorDetails string, processingTimeMs int64) error {
	tag, err := s.conn.Exec(ctx,
		`UPDATE processing_logs
		 SET status = 'failed', message = $2, error_details = NULLIF($3, ''),
		     processing_time_ms = $4
		 WHERE id = $1`,
		logID, message, errorDetails, processingTimeMs)
	if err != nil {
		return fmt.Errorf("log fail: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("log %s: %w", logID, common.ErrNotFound)
	}
	return nil
}

func (s *DBStorage) ListLogs(ctx context.Context, userID, itemID string, limit, offset int) ([]common.ProcessingLog, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.conn.Query(ctx,
		`SELECT pl.id, pl.item_id, pl.operation, pl.status,
		        COALESCE(pl.message, ''), COALESCE(pl.error_details, ''),
		        COALESCE(pl.processing_time_ms, 0), pl.created_at
		 FROM processing_logs pl
		 JOIN notes n ON pl.item_id = n.id
		 WHERE n.user_id = $1 AND ($2 = '' OR pl.item_id = $2)
		 ORDER BY pl.created_at DESC
		 LIMIT $3 OFFSET $4`,
		userID, itemID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	defer rows.Close()

	var logs []common.ProcessingLog
	for rows.Next() {
		var l common.ProcessingLog
		if err := rows.Scan(
			&l.ID, &l.ItemID, &l.Operation, &l.Status,
			&l.Message, &l.ErrorDetails, &l.ProcessingTimeMs, &l.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func (s *DBStorage) LogStats(ctx context.Context, userID string) (*common.LogStats, error) {
	var stats common.LogStats
	var avg *float64
	err := s.conn.QueryRow(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE pl.status = 'completed'),
		        COUNT(*) FILTER (WHERE pl.status = 'failed'),
		        COUNT(*) FILTER (WHERE pl.status = 'started'),
		        AVG(pl.processing_time_ms)
		 FROM processing_logs pl
		 JOIN notes n ON pl.item_id = n.id
		 WHERE n.user_id = $1`,
		userID).Scan(&stats.Total, &stats.Completed, &stats.Failed, &stats.InProgress, &avg)
	if err != nil {
		return nil, fmt.Errorf("log stats: %w", err)
	}
	if avg != nil {
		stats.AvgProcessingMs = *avg
	}
	return &stats, nil
}
