package mongostore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/lherron/ghl2hs/internal/domain"
)

const defaultPageSize = 100

// UpsertDocument replaces the document with the same source id. A
// replacement keeps the existing _id, so a re-extracted record keeps its
// position relative to checkpoints.
func (s *Store) UpsertDocument(ctx context.Context, collection domain.EntityType, doc domain.Document) error {
	if doc.ID == "" {
		return fmt.Errorf("document in %s has no id", collection)
	}
	body, ok := toBSON(doc.Body).(bson.M)
	if !ok {
		return fmt.Errorf("document %s is not an object", doc.ID)
	}
	delete(body, "_id")
	body["id"] = doc.ID

	_, err := s.db.Collection(string(collection)).ReplaceOne(ctx,
		bson.M{"id": doc.ID}, body, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert document %s/%s: %w", collection, doc.ID, err)
	}
	return nil
}

// GetDocument returns one document by source id, or domain.ErrNotFound
func (s *Store) GetDocument(ctx context.Context, collection domain.EntityType, id string) (domain.Document, error) {
	var raw bson.M
	err := s.db.Collection(string(collection)).FindOne(ctx, bson.M{"id": id}).Decode(&raw)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Document{}, fmt.Errorf("%s %s: %w", collection, id, domain.ErrNotFound)
		}
		return domain.Document{}, fmt.Errorf("failed to get document %s/%s: %w", collection, id, err)
	}
	return toDocument(collection, raw), nil
}

// ListAfter returns documents in _id order strictly after afterKey
func (s *Store) ListAfter(ctx context.Context, collection domain.EntityType, afterKey string, limit int) ([]domain.Document, error) {
	filter := bson.M{}
	if afterKey != "" {
		oid, err := primitive.ObjectIDFromHex(afterKey)
		if err != nil {
			return nil, fmt.Errorf("invalid position %q: %w", afterKey, err)
		}
		filter["_id"] = bson.M{"$gt": oid}
	}
	return s.find(ctx, collection, filter, limit)
}

// ListChildren returns the documents of a nested collection belonging to
// parentID, in _id order strictly after afterKey.
func (s *Store) ListChildren(ctx context.Context, collection domain.EntityType, parentID, afterKey string, limit int) ([]domain.Document, error) {
	field := domain.ParentField(collection)
	if field == "" {
		return nil, fmt.Errorf("%s is not a nested collection", collection)
	}
	filter := bson.M{field: parentID}
	if afterKey != "" {
		oid, err := primitive.ObjectIDFromHex(afterKey)
		if err != nil {
			return nil, fmt.Errorf("invalid position %q: %w", afterKey, err)
		}
		filter["_id"] = bson.M{"$gt": oid}
	}
	return s.find(ctx, collection, filter, limit)
}

// CountDocuments counts the documents of a collection
func (s *Store) CountDocuments(ctx context.Context, collection domain.EntityType) (int64, error) {
	n, err := s.db.Collection(string(collection)).CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", collection, err)
	}
	return n, nil
}

func (s *Store) find(ctx context.Context, collection domain.EntityType, filter bson.M, limit int) ([]domain.Document, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}).SetLimit(int64(limit))
	cur, err := s.db.Collection(string(collection)).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}
	defer cur.Close(ctx)

	var docs []domain.Document
	for cur.Next(ctx) {
		var raw bson.M
		if err := cur.Decode(&raw); err != nil {
			return nil, fmt.Errorf("failed to decode %s document: %w", collection, err)
		}
		docs = append(docs, toDocument(collection, raw))
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s: %w", collection, err)
	}
	return docs, nil
}

func toDocument(collection domain.EntityType, raw bson.M) domain.Document {
	var key string
	if oid, ok := raw["_id"].(primitive.ObjectID); ok {
		key = oid.Hex()
	}
	delete(raw, "_id")
	body, _ := fromBSON(raw).(map[string]interface{})
	doc := domain.NewDocument(body)
	doc.Key = key
	if field := domain.ParentField(collection); field != "" {
		doc.ParentID = doc.Str(field)
	}
	return doc
}

// toBSON converts a decoded JSON value into values the driver stores natively
func toBSON(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(bson.M, len(t))
		for k, item := range t {
			out[k] = toBSON(item)
		}
		return out
	case []interface{}:
		out := make(bson.A, len(t))
		for i, item := range t {
			out[i] = toBSON(item)
		}
		return out
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	}
	return v
}

// fromBSON converts driver values back into the JSON shapes documents use
func fromBSON(v interface{}) interface{} {
	switch t := v.(type) {
	case bson.M:
		return fromBSON(map[string]interface{}(t))
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, item := range t {
			out[k] = fromBSON(item)
		}
		return out
	case bson.D:
		out := make(map[string]interface{}, len(t))
		for _, e := range t {
			out[e.Key] = fromBSON(e.Value)
		}
		return out
	case bson.A:
		return fromBSON([]interface{}(t))
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = fromBSON(item)
		}
		return out
	case int32:
		return json.Number(strconv.FormatInt(int64(t), 10))
	case int64:
		return json.Number(strconv.FormatInt(t, 10))
	case float64:
		return json.Number(strconv.FormatFloat(t, 'f', -1, 64))
	case primitive.DateTime:
		return t.Time().UTC().Format(time.RFC3339Nano)
	case primitive.ObjectID:
		return t.Hex()
	case primitive.Decimal128:
		return json.Number(t.String())
	}
	return v
}
