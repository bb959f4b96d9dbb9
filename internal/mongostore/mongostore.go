// Package mongostore is the MongoDB staging store. It keeps the collection
// layout the extraction scripts write: one collection per entity plus the
// identity map, checkpoint and failure collections.
package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/lherron/ghl2hs/internal/domain"
)

// Collection names
const (
	IdentityMapCollection = "GHLHubspotIdMap"
	CheckpointCollection  = "hubspot_transfer_checkpoints"
	FailureCollection     = "hubspot_failed_migrations"
)

// Store is a staging store backed by one MongoDB database
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	now    func() time.Time
}

// Connect opens a client, verifies it with a ping and ensures indexes exist
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	if uri == "" {
		return nil, &domain.ConfigError{Field: "mongo uri", Reason: "is required"}
	}
	if database == "" {
		return nil, &domain.ConfigError{Field: "mongo database", Reason: "is required"}
	}

	clientOptions := options.Client().ApplyURI(uri).
		SetMaxPoolSize(10).
		SetConnectTimeout(5 * time.Second).
		SetSocketTimeout(30 * time.Second)

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(connectCtx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancelPing := context.WithTimeout(ctx, 5*time.Second)
	defer cancelPing()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	s := &Store{client: client, db: client.Database(database), now: time.Now}
	if err := s.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

// Close disconnects the client
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Database exposes the underlying database
func (s *Store) Database() *mongo.Database {
	return s.db
}

// EnsureIndexes creates the unique indexes the store relies on. Creating an
// index that already exists is a no-op.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	for _, entity := range domain.StagedEntities {
		models := []mongo.IndexModel{{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("id_unique"),
		}}
		if field := domain.ParentField(entity); field != "" {
			models = append(models, mongo.IndexModel{
				Keys:    bson.D{{Key: field, Value: 1}, {Key: "_id", Value: 1}},
				Options: options.Index().SetName(field + "_position"),
			})
		}
		if _, err := s.db.Collection(string(entity)).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", entity, err)
		}
	}

	state := map[string][]mongo.IndexModel{
		IdentityMapCollection: {
			{
				Keys:    bson.D{{Key: "ghlId", Value: 1}, {Key: "objectTypeId", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("ghlId_objectTypeId_unique"),
			},
			{
				Keys:    bson.D{{Key: "objectTypeId", Value: 1}},
				Options: options.Index().SetName("objectTypeId"),
			},
		},
		CheckpointCollection: {
			{
				Keys:    bson.D{{Key: "entityType", Value: 1}},
				Options: options.Index().SetName("entityType"),
			},
		},
		FailureCollection: {
			{
				Keys:    bson.D{{Key: "entityType", Value: 1}, {Key: "ghlId", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("entityType_ghlId_unique"),
			},
		},
	}
	for name, models := range state {
		if _, err := s.db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", name, err)
		}
	}
	return nil
}
