package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lherron/ghl2hs/internal/domain"
)

// ResetStream deletes every identity mapping of objectType, every failure of
// entity, and the named checkpoint (all checkpoints of entity when streamID
// is empty). It is only ever invoked explicitly by an operator.
func (s *Store) ResetStream(ctx context.Context, entity domain.EntityType, objectType domain.ObjectType, streamID string) (domain.ResetResult, error) {
	var result domain.ResetResult

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM "GHLHubspotIdMap" WHERE object_type_id = ?`, string(objectType))
		if err != nil {
			return fmt.Errorf("failed to delete mappings: %w", err)
		}
		result.Mappings, _ = res.RowsAffected()

		res, err = tx.ExecContext(ctx, `DELETE FROM hubspot_failed_migrations WHERE entity_type = ?`, string(entity))
		if err != nil {
			return fmt.Errorf("failed to delete failures: %w", err)
		}
		result.Failures, _ = res.RowsAffected()

		if streamID != "" {
			res, err = tx.ExecContext(ctx, `DELETE FROM hubspot_transfer_checkpoints WHERE stream_id = ?`, streamID)
		} else {
			res, err = tx.ExecContext(ctx, `DELETE FROM hubspot_transfer_checkpoints WHERE entity_type = ?`, string(entity))
		}
		if err != nil {
			return fmt.Errorf("failed to delete checkpoints: %w", err)
		}
		result.Checkpoints, _ = res.RowsAffected()
		return nil
	})

	return result, err
}

// Status summarizes staged documents and migration progress for one entity
func (s *Store) Status(ctx context.Context, entity domain.EntityType, objectType domain.ObjectType) (*domain.StreamStatus, error) {
	st := &domain.StreamStatus{EntityType: entity}
	var err error
	if st.Documents, err = s.CountDocuments(ctx, entity); err != nil {
		return nil, err
	}
	if objectType != "" {
		if st.Mappings, err = s.CountMappings(ctx, objectType); err != nil {
			return nil, err
		}
	}
	if st.Failures, err = s.CountFailures(ctx, entity); err != nil {
		return nil, err
	}
	if st.Checkpoints, err = s.ListCheckpoints(ctx, entity); err != nil {
		return nil, err
	}
	return st, nil
}
