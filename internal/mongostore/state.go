package mongostore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/lherron/ghl2hs/internal/domain"
)

// GetMapping returns the destination id mapped to a source record
func (s *Store) GetMapping(ctx context.Context, sourceID string, objectType domain.ObjectType) (string, bool, error) {
	var m domain.IdentityMapping
	err := s.db.Collection(IdentityMapCollection).FindOne(ctx, bson.M{
		"ghlId":        sourceID,
		"objectTypeId": string(objectType),
	}).Decode(&m)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get mapping %s/%s: %w", objectType, sourceID, err)
	}
	return m.DestinationID, true, nil
}

// PutMapping upserts a mapping; the last write wins
func (s *Store) PutMapping(ctx context.Context, m domain.IdentityMapping) error {
	if m.SourceID == "" || m.DestinationID == "" || m.ObjectType == "" {
		return fmt.Errorf("incomplete mapping %+v", m)
	}
	now := s.now().UTC()
	_, err := s.db.Collection(IdentityMapCollection).UpdateOne(ctx,
		bson.M{"ghlId": m.SourceID, "objectTypeId": string(m.ObjectType)},
		bson.M{
			"$set":         bson.M{"hubspotId": m.DestinationID, "updatedAt": now},
			"$setOnInsert": bson.M{"createdAt": now},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to put mapping %s/%s: %w", m.ObjectType, m.SourceID, err)
	}
	return nil
}

// ListMappings returns mappings of one object type (all when empty) ordered by source id
func (s *Store) ListMappings(ctx context.Context, objectType domain.ObjectType, limit int) ([]domain.IdentityMapping, error) {
	filter := bson.M{}
	if objectType != "" {
		filter["objectTypeId"] = string(objectType)
	}
	opts := options.Find().SetSort(bson.D{{Key: "ghlId", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := s.db.Collection(IdentityMapCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list mappings: %w", err)
	}
	var out []domain.IdentityMapping
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode mappings: %w", err)
	}
	return out, nil
}

// GetCheckpoint returns the checkpoint of a stream, or nil when none exists
func (s *Store) GetCheckpoint(ctx context.Context, streamID string) (*domain.Checkpoint, error) {
	var cp domain.Checkpoint
	err := s.db.Collection(CheckpointCollection).FindOne(ctx, bson.M{"_id": streamID}).Decode(&cp)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get checkpoint %s: %w", streamID, err)
	}
	return &cp, nil
}

// PutCheckpoint overwrites the checkpoint of a stream
func (s *Store) PutCheckpoint(ctx context.Context, cp domain.Checkpoint) error {
	cp.UpdatedAt = s.now().UTC()
	_, err := s.db.Collection(CheckpointCollection).ReplaceOne(ctx,
		bson.M{"_id": cp.StreamID}, cp, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to put checkpoint %s: %w", cp.StreamID, err)
	}
	return nil
}

// ListCheckpoints returns the checkpoints of an entity, or all when entity is empty
func (s *Store) ListCheckpoints(ctx context.Context, entity domain.EntityType) ([]*domain.Checkpoint, error) {
	filter := bson.M{}
	if entity != "" {
		filter["entityType"] = string(entity)
	}
	cur, err := s.db.Collection(CheckpointCollection).Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	var out []*domain.Checkpoint
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoints: %w", err)
	}
	return out, nil
}

// RecordFailure upserts the failure of one source record
func (s *Store) RecordFailure(ctx context.Context, f domain.FailureRecord) error {
	if f.Timestamp.IsZero() {
		f.Timestamp = s.now().UTC()
	}
	_, err := s.db.Collection(FailureCollection).UpdateOne(ctx,
		bson.M{"entityType": string(f.EntityType), "ghlId": f.SourceID},
		bson.M{"$set": bson.M{"reason": f.Reason, "detail": f.Detail, "timestamp": f.Timestamp}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to record failure %s/%s: %w", f.EntityType, f.SourceID, err)
	}
	return nil
}

// GetFailure returns the failure record of one source record, or domain.ErrNotFound
func (s *Store) GetFailure(ctx context.Context, entity domain.EntityType, sourceID string) (*domain.FailureRecord, error) {
	var f domain.FailureRecord
	err := s.db.Collection(FailureCollection).FindOne(ctx, bson.M{"entityType": string(entity), "ghlId": sourceID}).Decode(&f)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("failure %s/%s: %w", entity, sourceID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get failure: %w", err)
	}
	return &f, nil
}

// ListFailures returns failure records, newest first, optionally filtered by entity
func (s *Store) ListFailures(ctx context.Context, entity domain.EntityType, limit int) ([]domain.FailureRecord, error) {
	filter := bson.M{}
	if entity != "" {
		filter["entityType"] = string(entity)
	}
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := s.db.Collection(FailureCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list failures: %w", err)
	}
	var out []domain.FailureRecord
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode failures: %w", err)
	}
	return out, nil
}

// ResetStream deletes every identity mapping of objectType, every failure of
// entity, and the named checkpoint (all checkpoints of entity when streamID
// is empty).
func (s *Store) ResetStream(ctx context.Context, entity domain.EntityType, objectType domain.ObjectType, streamID string) (domain.ResetResult, error) {
	var result domain.ResetResult

	res, err := s.db.Collection(IdentityMapCollection).DeleteMany(ctx, bson.M{"objectTypeId": string(objectType)})
	if err != nil {
		return result, fmt.Errorf("failed to delete mappings: %w", err)
	}
	result.Mappings = res.DeletedCount

	res, err = s.db.Collection(FailureCollection).DeleteMany(ctx, bson.M{"entityType": string(entity)})
	if err != nil {
		return result, fmt.Errorf("failed to delete failures: %w", err)
	}
	result.Failures = res.DeletedCount

	cpFilter := bson.M{"entityType": string(entity)}
	if streamID != "" {
		cpFilter = bson.M{"_id": streamID}
	}
	res, err = s.db.Collection(CheckpointCollection).DeleteMany(ctx, cpFilter)
	if err != nil {
		return result, fmt.Errorf("failed to delete checkpoints: %w", err)
	}
	result.Checkpoints = res.DeletedCount
	return result, nil
}

// Status summarizes staged documents and migration progress for one entity
func (s *Store) Status(ctx context.Context, entity domain.EntityType, objectType domain.ObjectType) (*domain.StreamStatus, error) {
	st := &domain.StreamStatus{EntityType: entity}
	var err error
	if st.Documents, err = s.CountDocuments(ctx, entity); err != nil {
		return nil, err
	}
	if objectType != "" {
		st.Mappings, err = s.db.Collection(IdentityMapCollection).CountDocuments(ctx, bson.M{"objectTypeId": string(objectType)})
		if err != nil {
			return nil, fmt.Errorf("failed to count mappings: %w", err)
		}
	}
	st.Failures, err = s.db.Collection(FailureCollection).CountDocuments(ctx, bson.M{"entityType": string(entity)})
	if err != nil {
		return nil, fmt.Errorf("failed to count failures: %w", err)
	}
	if st.Checkpoints, err = s.ListCheckpoints(ctx, entity); err != nil {
		return nil, err
	}
	return st, nil
}
