package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/lherron/ghl2hs/internal/domain"
)

// UpsertDocument stores a source document, overwriting any previous copy with
// the same id. The surrogate key of an existing document is preserved so
// re-extraction never moves a record past a checkpoint.
func (s *Store) UpsertDocument(ctx context.Context, collection domain.EntityType, doc domain.Document) error {
	if doc.ID == "" {
		return fmt.Errorf("document in %s has no id", collection)
	}
	body, err := doc.JSON()
	if err != nil {
		return fmt.Errorf("failed to encode document %s: %w", doc.ID, err)
	}

	parentID := doc.ParentID
	if parentID == "" {
		if field := domain.ParentField(collection); field != "" {
			parentID = doc.Str(field)
		}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, parent_id, body, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET
			parent_id = excluded.parent_id,
			body = excluded.body,
			updated_at = excluded.updated_at
	`, string(collection), doc.ID, nullString(parentID), string(body), s.timestamp())
	if err != nil {
		return fmt.Errorf("failed to upsert document %s/%s: %w", collection, doc.ID, err)
	}
	return nil
}

// GetDocument returns one document by source id, or domain.ErrNotFound
func (s *Store) GetDocument(ctx context.Context, collection domain.EntityType, id string) (domain.Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT seq, id, COALESCE(parent_id, ''), body FROM documents
		WHERE collection = ? AND id = ?
	`, string(collection), id)
	doc, err := scanDocument(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.Document{}, fmt.Errorf("%s %s: %w", collection, id, domain.ErrNotFound)
		}
		return domain.Document{}, fmt.Errorf("failed to get document %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

// ListAfter returns up to limit documents of a collection whose surrogate key
// is strictly greater than afterKey, in ascending key order. An empty
// afterKey starts from the beginning.
func (s *Store) ListAfter(ctx context.Context, collection domain.EntityType, afterKey string, limit int) ([]domain.Document, error) {
	after, err := parseKey(afterKey)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, id, COALESCE(parent_id, ''), body FROM documents
		WHERE collection = ? AND seq > ?
		ORDER BY seq ASC
		LIMIT ?
	`, string(collection), after, pageLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}
	return scanDocuments(rows)
}

// ListChildren pages through the documents of a nested collection that belong
// to parentID, strictly after afterKey.
func (s *Store) ListChildren(ctx context.Context, collection domain.EntityType, parentID, afterKey string, limit int) ([]domain.Document, error) {
	after, err := parseKey(afterKey)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, id, COALESCE(parent_id, ''), body FROM documents
		WHERE collection = ? AND parent_id = ? AND seq > ?
		ORDER BY seq ASC
		LIMIT ?
	`, string(collection), parentID, after, pageLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s of %s: %w", collection, parentID, err)
	}
	return scanDocuments(rows)
}

// CountDocuments returns the number of staged documents in a collection
func (s *Store) CountDocuments(ctx context.Context, collection domain.EntityType) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents WHERE collection = ?", string(collection)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", collection, err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row rowScanner) (domain.Document, error) {
	var (
		seq      int64
		id       string
		parentID string
		body     string
	)
	if err := row.Scan(&seq, &id, &parentID, &body); err != nil {
		return domain.Document{}, err
	}
	doc, err := domain.DecodeDocument([]byte(body))
	if err != nil {
		return domain.Document{}, fmt.Errorf("document %s: %w", id, err)
	}
	doc.Key = strconv.FormatInt(seq, 10)
	doc.ID = id
	doc.ParentID = parentID
	return doc, nil
}

func scanDocuments(rows *sql.Rows) ([]domain.Document, error) {
	defer rows.Close()
	var docs []domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating documents: %w", err)
	}
	return docs, nil
}

func parseKey(key string) (int64, error) {
	if key == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(key, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid position %q: %w", key, err)
	}
	return n, nil
}

func pageLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	return limit
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// encodeCounters serializes checkpoint counters
func encodeCounters(counters map[string]int) (string, error) {
	if len(counters) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(counters)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
