package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/lherron/ghl2hs/internal/db"
	"github.com/lherron/ghl2hs/internal/domain"
	"github.com/lherron/ghl2hs/internal/store"
)

// TempStore creates a temporary staging store for testing
func TempStore(t *testing.T) (*store.Store, string) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "staging.db")

	database, err := db.Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	if err := database.Migrate(); err != nil {
		database.Close()
		t.Fatalf("Failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		database.Close()
	})

	return store.New(database), dbPath
}

// Stage loads source documents into a collection
func Stage(t *testing.T, s *store.Store, collection domain.EntityType, bodies ...map[string]interface{}) {
	t.Helper()
	for _, body := range bodies {
		if err := s.UpsertDocument(context.Background(), collection, domain.NewDocument(body)); err != nil {
			t.Fatalf("Failed to stage %s document: %v", collection, err)
		}
	}
}

// WriteFile writes content to a file in a temporary directory
func WriteFile(t *testing.T, dir, filename, content string) string {
	t.Helper()
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write file %s: %v", path, err)
	}
	return path
}
