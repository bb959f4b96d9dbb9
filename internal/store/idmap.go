package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lherron/ghl2hs/internal/domain"
)

// GetMapping returns the destination id recorded for (sourceID, objectType)
func (s *Store) GetMapping(ctx context.Context, sourceID string, objectType domain.ObjectType) (string, bool, error) {
	var destID string
	err := s.db.QueryRowContext(ctx, `
		SELECT hubspot_id FROM "GHLHubspotIdMap"
		WHERE ghl_id = ? AND object_type_id = ?
	`, sourceID, string(objectType)).Scan(&destID)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get mapping %s/%s: %w", objectType, sourceID, err)
	}
	return destID, true, nil
}

// PutMapping upserts an identity mapping; the last write wins
func (s *Store) PutMapping(ctx context.Context, m domain.IdentityMapping) error {
	if m.SourceID == "" || m.DestinationID == "" || m.ObjectType == "" {
		return fmt.Errorf("incomplete mapping %+v", m)
	}
	now := s.timestamp()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO "GHLHubspotIdMap" (ghl_id, object_type_id, hubspot_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (ghl_id, object_type_id) DO UPDATE SET
			hubspot_id = excluded.hubspot_id,
			updated_at = excluded.updated_at
	`, m.SourceID, string(m.ObjectType), m.DestinationID, now, now)
	if err != nil {
		return fmt.Errorf("failed to put mapping %s/%s: %w", m.ObjectType, m.SourceID, err)
	}
	return nil
}

// ListMappings returns mappings of one object type ordered by source id
func (s *Store) ListMappings(ctx context.Context, objectType domain.ObjectType, limit int) ([]domain.IdentityMapping, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ghl_id, hubspot_id, object_type_id, created_at, updated_at
		FROM "GHLHubspotIdMap"
		WHERE object_type_id = ?
		ORDER BY ghl_id
		LIMIT ?
	`, string(objectType), pageLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list mappings: %w", err)
	}
	defer rows.Close()

	var out []domain.IdentityMapping
	for rows.Next() {
		var m domain.IdentityMapping
		var objType, createdAt, updatedAt string
		if err := rows.Scan(&m.SourceID, &m.DestinationID, &objType, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan mapping: %w", err)
		}
		m.ObjectType = domain.ObjectType(objType)
		m.CreatedAt = parseTimestamp(createdAt)
		m.UpdatedAt = parseTimestamp(updatedAt)
		out = append(out, m)
	}
	return out, rows.Err()
}

// CountMappings returns how many mappings exist for an object type
func (s *Store) CountMappings(ctx context.Context, objectType domain.ObjectType) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM "GHLHubspotIdMap" WHERE object_type_id = ?`, string(objectType)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count mappings: %w", err)
	}
	return n, nil
}
