package pgx

import (
	"context"
	"fmt"

	"mosaic/pkg/common"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

func (s *DBStorage) CreateTask(ctx context.Context, task *common.Task) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", err
	}
	status := task.Status
	if status == "" {
		status = "pending"
	}
	_, err = s.conn.Exec(ctx,
		`INSERT INTO tasks (id, user_id, title, description, status, priority, due_date,
		                    source_note_id, source_type, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, $10)`,
		id, task.UserID, task.Title, task.Description, status, task.Priority,
		task.DueDate, task.SourceNoteID, task.SourceType, task.Metadata)
	if err != nil {
		return "", fmt.Errorf("create task: %w", err)
	}
	return id, nil
}

func (s *DBStorage) CreateEvent(ctx context.Context, event *common.CalendarEvent) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", err
	}
	_, err = s.conn.Exec(ctx,
		`INSERT INTO calendar_events (id, user_id, title, description, location,
		                              start_datetime, end_datetime, all_day,
		                              source_note_id, source_type, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), $10, $11)`,
		id, event.UserID, event.Title, event.Description, event.Location,
		event.StartDatetime, event.EndDatetime, event.AllDay,
		event.SourceNoteID, event.SourceType, event.Metadata)
	if err != nil {
		return "", fmt.Errorf("create event: %w", err)
	}
	return id, nil
}

func (s *DBStorage) ListTasks(ctx context.Context, userID string) ([]common.Task, error) {
	rows, err := s.conn.Query(ctx,
		`SELECT id, user_id, title, COALESCE(description, ''), status,
		        COALESCE(priority, ''), due_date, COALESCE(source_note_id, ''),
		        COALESCE(source_type, ''), COALESCE(metadata, '{}'::jsonb), created_at
		 FROM tasks
		 WHERE user_id = $1
		 ORDER BY created_at`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []common.Task
	for rows.Next() {
		var t common.Task
		if err := rows.Scan(
			&t.ID, &t.UserID, &t.Title, &t.Description, &t.Status,
			&t.Priority, &t.DueDate, &t.SourceNoteID,
			&t.SourceType, &t.Metadata, &t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *DBStorage) ListEvents(ctx context.Context, userID string) ([]common.CalendarEvent, error) {
	rows, err := s.conn.Query(ctx,
		`SELECT id, user_id, title, COALESCE(description, ''), COALESCE(location, ''),
		        start_datetime, end_datetime, all_day, COALESCE(source_note_id, ''),
		        COALESCE(source_type, ''), COALESCE(metadata, '{}'::jsonb), created_at
		 FROM calendar_events
		 WHERE user_id = $1
		 ORDER BY created_at`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []common.CalendarEvent
	for rows.Next() {
		var e common.CalendarEvent
		if err := rows.Scan(
			&e.ID, &e.UserID, &e.Title, &e.Description, &e.Location,
			&e.StartDatetime, &e.EndDatetime, &e.AllDay, &e.SourceNoteID,
			&e.SourceType, &e.Metadata, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
