// Package repository provides data access for the connection audit trail.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/wsbridge/backend/internal/model"
)

// ConnectionRepository provides data access for connection records. It
// satisfies lifecycle.Recorder.
type ConnectionRepository struct {
	db *sql.DB
}

// NewConnectionRepository creates a new ConnectionRepository.
func NewConnectionRepository(db *sql.DB) *ConnectionRepository {
	return &ConnectionRepository{db: db}
}

// RecordOpen inserts a new record for a connection that just opened.
func (r *ConnectionRepository) RecordOpen(ctx context.Context, rec *model.ConnectionRecord) error {
	query := `
		INSERT INTO connections (id, route, remote_addr, connected_at)
		VALUES (?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		rec.ID,
		rec.Route,
		rec.RemoteAddr,
		rec.ConnectedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record open: %w", err)
	}

	return nil
}

// RecordClose fills in the closing half of an existing record.
func (r *ConnectionRepository) RecordClose(ctx context.Context, rec *model.ConnectionRecord) error {
	query := `
		UPDATE connections
		SET closed_at = ?, close_code = ?, close_reason = ?,
		    messages_in = ?, messages_out = ?, handler_error = ?
		WHERE id = ?
	`

	res, err := r.db.ExecContext(ctx, query,
		rec.ClosedAt,
		rec.CloseCode,
		rec.CloseReason,
		rec.MessagesIn,
		rec.MessagesOut,
		nullableString(rec.HandlerError),
		rec.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to record close: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to record close: %w", err)
	}
	if n == 0 {
		return model.ErrRecordNotFound
	}

	return nil
}

// GetByID retrieves a connection record by its ID.
func (r *ConnectionRepository) GetByID(ctx context.Context, id string) (*model.ConnectionRecord, error) {
	query := `
		SELECT id, route, remote_addr, connected_at, closed_at,
		       close_code, close_reason, messages_in, messages_out, handler_error
		FROM connections
		WHERE id = ?
	`

	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, model.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}

	return rec, nil
}

// ListRecent retrieves the most recent connection records, newest first.
func (r *ConnectionRepository) ListRecent(ctx context.Context, limit int) ([]*model.ConnectionRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, route, remote_addr, connected_at, closed_at,
		       close_code, close_reason, messages_in, messages_out, handler_error
		FROM connections
		ORDER BY connected_at DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var records []*model.ConnectionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	return records, nil
}

// DeleteOlderThan removes closed-connection records whose connect time is
// before cutoff. Returns the number of records removed.
func (r *ConnectionRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM connections WHERE connected_at < ? AND closed_at IS NOT NULL`

	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune records: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to prune records: %w", err)
	}
	return n, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*model.ConnectionRecord, error) {
	rec := &model.ConnectionRecord{}
	var closedAt sql.NullTime
	var closeCode sql.NullInt64
	var closeReason sql.NullString
	var handlerError sql.NullString

	err := s.Scan(
		&rec.ID,
		&rec.Route,
		&rec.RemoteAddr,
		&rec.ConnectedAt,
		&closedAt,
		&closeCode,
		&closeReason,
		&rec.MessagesIn,
		&rec.MessagesOut,
		&handlerError,
	)
	if err != nil {
		return nil, err
	}

	if closedAt.Valid {
		t := closedAt.Time
		rec.ClosedAt = &t
	}
	if closeCode.Valid {
		rec.CloseCode = int(closeCode.Int64)
	}
	if closeReason.Valid {
		rec.CloseReason = closeReason.String
	}
	if handlerError.Valid {
		rec.HandlerError = handlerError.String
	}

	return rec, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
