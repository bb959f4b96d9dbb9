package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lherron/ghl2hs/internal/domain"
)

// RecordFailure upserts a failure record; a repeated failure overwrites the previous one
func (s *Store) RecordFailure(ctx context.Context, f domain.FailureRecord) error {
	ts := f.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO hubspot_failed_migrations (entity_type, ghl_id, reason, detail, failed_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (entity_type, ghl_id) DO UPDATE SET
			reason = excluded.reason,
			detail = excluded.detail,
			failed_at = excluded.failed_at
	`, string(f.EntityType), f.SourceID, f.Reason, f.Detail, ts.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to record failure %s/%s: %w", f.EntityType, f.SourceID, err)
	}
	return nil
}

// GetFailure returns the failure record of one source record, or domain.ErrNotFound
func (s *Store) GetFailure(ctx context.Context, entity domain.EntityType, sourceID string) (*domain.FailureRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT entity_type, ghl_id, reason, detail, failed_at
		FROM hubspot_failed_migrations WHERE entity_type = ? AND ghl_id = ?
	`, string(entity), sourceID)
	f, err := scanFailure(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("failure %s/%s: %w", entity, sourceID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get failure: %w", err)
	}
	return f, nil
}

// ListFailures returns failure records, newest first, optionally filtered by entity
func (s *Store) ListFailures(ctx context.Context, entity domain.EntityType, limit int) ([]domain.FailureRecord, error) {
	query := `SELECT entity_type, ghl_id, reason, detail, failed_at FROM hubspot_failed_migrations`
	var args []interface{}
	if entity != "" {
		query += " WHERE entity_type = ?"
		args = append(args, string(entity))
	}
	query += " ORDER BY failed_at DESC, ghl_id LIMIT ?"
	args = append(args, pageLimit(limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list failures: %w", err)
	}
	defer rows.Close()

	var out []domain.FailureRecord
	for rows.Next() {
		f, err := scanFailure(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan failure: %w", err)
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

// CountFailures returns the number of failure records for an entity
func (s *Store) CountFailures(ctx context.Context, entity domain.EntityType) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM hubspot_failed_migrations WHERE entity_type = ?", string(entity)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count failures: %w", err)
	}
	return n, nil
}

func scanFailure(row rowScanner) (*domain.FailureRecord, error) {
	var (
		f          domain.FailureRecord
		entityType string
		failedAt   string
	)
	if err := row.Scan(&entityType, &f.SourceID, &f.Reason, &f.Detail, &failedAt); err != nil {
		return nil, err
	}
	f.EntityType = domain.EntityType(entityType)
	f.Timestamp = parseTimestamp(failedAt)
	return &f, nil
}
