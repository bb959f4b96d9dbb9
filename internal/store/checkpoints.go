package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lherron/ghl2hs/internal/domain"
)

// GetCheckpoint returns the checkpoint of a stream, or nil when none exists
func (s *Store) GetCheckpoint(ctx context.Context, streamID string) (*domain.Checkpoint, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT stream_id, entity_type, last_key, last_sub_key, counters, updated_at
		FROM hubspot_transfer_checkpoints WHERE stream_id = ?
	`, streamID)
	cp, err := scanCheckpoint(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get checkpoint %s: %w", streamID, err)
	}
	return cp, nil
}

// PutCheckpoint overwrites the checkpoint of a stream
func (s *Store) PutCheckpoint(ctx context.Context, cp domain.Checkpoint) error {
	counters, err := encodeCounters(cp.Counters)
	if err != nil {
		return fmt.Errorf("failed to encode counters: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO hubspot_transfer_checkpoints (stream_id, entity_type, last_key, last_sub_key, counters, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (stream_id) DO UPDATE SET
			entity_type = excluded.entity_type,
			last_key = excluded.last_key,
			last_sub_key = excluded.last_sub_key,
			counters = excluded.counters,
			updated_at = excluded.updated_at
	`, cp.StreamID, string(cp.EntityType), cp.LastKey, cp.LastSubKey, counters, s.timestamp())
	if err != nil {
		return fmt.Errorf("failed to put checkpoint %s: %w", cp.StreamID, err)
	}
	return nil
}

// ListCheckpoints returns the checkpoints of an entity, or all when entity is empty
func (s *Store) ListCheckpoints(ctx context.Context, entity domain.EntityType) ([]*domain.Checkpoint, error) {
	query := `SELECT stream_id, entity_type, last_key, last_sub_key, counters, updated_at FROM hubspot_transfer_checkpoints`
	var args []interface{}
	if entity != "" {
		query += " WHERE entity_type = ?"
		args = append(args, string(entity))
	}
	query += " ORDER BY stream_id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	defer rows.Close()

	var out []*domain.Checkpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint: %w", err)
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}

func scanCheckpoint(row rowScanner) (*domain.Checkpoint, error) {
	var (
		cp         domain.Checkpoint
		entityType string
		counters   string
		updatedAt  string
	)
	if err := row.Scan(&cp.StreamID, &entityType, &cp.LastKey, &cp.LastSubKey, &counters, &updatedAt); err != nil {
		return nil, err
	}
	cp.EntityType = domain.EntityType(entityType)
	cp.UpdatedAt = parseTimestamp(updatedAt)
	if counters != "" && counters != "{}" {
		if err := json.Unmarshal([]byte(counters), &cp.Counters); err != nil {
			return nil, fmt.Errorf("invalid counters for %s: %w", cp.StreamID, err)
		}
	}
	return &cp, nil
}
