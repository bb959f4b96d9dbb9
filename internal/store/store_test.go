package store

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/lherron/ghl2hs/internal/db"
	"github.com/lherron/ghl2hs/internal/domain"
)

// setupTestStore creates a temporary staging store with migrations applied.
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	database, err := db.Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := database.Migrate(); err != nil {
		t.Fatalf("failed to migrate db: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return New(database)
}

func stage(t *testing.T, s *Store, collection domain.EntityType, bodies ...map[string]interface{}) {
	t.Helper()
	for _, body := range bodies {
		if err := s.UpsertDocument(context.Background(), collection, domain.NewDocument(body)); err != nil {
			t.Fatalf("UpsertDocument failed: %v", err)
		}
	}
}

func TestUpsertDocumentPreservesKey(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	stage(t, s, domain.EntityContacts,
		map[string]interface{}{"id": "c1", "email": "a@b.com"},
		map[string]interface{}{"id": "c2", "email": "c@d.com"},
	)
	first, err := s.GetDocument(ctx, domain.EntityContacts, "c1")
	if err != nil {
		t.Fatalf("GetDocument failed: %v", err)
	}

	// Re-extraction overwrites the body but keeps the position
	stage(t, s, domain.EntityContacts, map[string]interface{}{"id": "c1", "email": "new@b.com"})

	again, err := s.GetDocument(ctx, domain.EntityContacts, "c1")
	if err != nil {
		t.Fatalf("GetDocument failed: %v", err)
	}
	if again.Key != first.Key {
		t.Errorf("expected key %s to be preserved, got %s", first.Key, again.Key)
	}
	if got := again.Str("email"); got != "new@b.com" {
		t.Errorf("expected overwritten email, got %q", got)
	}

	n, err := s.CountDocuments(ctx, domain.EntityContacts)
	if err != nil {
		t.Fatalf("CountDocuments failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 documents, got %d", n)
	}
}

func TestUpsertDocumentRequiresID(t *testing.T) {
	s := setupTestStore(t)
	err := s.UpsertDocument(context.Background(), domain.EntityContacts, domain.NewDocument(map[string]interface{}{"email": "x@y.z"}))
	if err == nil {
		t.Fatal("expected error for document without id")
	}
}

func TestGetDocumentNotFound(t *testing.T) {
	s := setupTestStore(t)
	_, err := s.GetDocument(context.Background(), domain.EntityContacts, "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListAfterPagesInInsertionOrder(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	// ids deliberately out of lexical order: position follows insertion
	for _, id := range []string{"z", "a", "m", "b", "y"} {
		stage(t, s, domain.EntityContacts, map[string]interface{}{"id": id})
	}
	stage(t, s, domain.EntityNotes, map[string]interface{}{"id": "n1"})

	var seen []string
	after := ""
	for {
		page, err := s.ListAfter(ctx, domain.EntityContacts, after, 2)
		if err != nil {
			t.Fatalf("ListAfter failed: %v", err)
		}
		if len(page) == 0 {
			break
		}
		for _, doc := range page {
			seen = append(seen, doc.ID)
			after = doc.Key
		}
	}

	want := []string{"z", "a", "m", "b", "y"}
	if len(seen) != len(want) {
		t.Fatalf("expected %v, got %v", want, seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], seen[i])
		}
	}
}

func TestListAfterRejectsInvalidKey(t *testing.T) {
	s := setupTestStore(t)
	if _, err := s.ListAfter(context.Background(), domain.EntityContacts, "not-a-number", 10); err == nil {
		t.Fatal("expected error for invalid key")
	}
}

func TestListChildren(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	stage(t, s, domain.EntityMessages,
		map[string]interface{}{"id": "m1", "conversationId": "conv1"},
		map[string]interface{}{"id": "m2", "conversationId": "conv2"},
		map[string]interface{}{"id": "m3", "conversationId": "conv1"},
	)

	all, err := s.ListChildren(ctx, domain.EntityMessages, "conv1", "", 0)
	if err != nil {
		t.Fatalf("ListChildren failed: %v", err)
	}
	if len(all) != 2 || all[0].ID != "m1" || all[1].ID != "m3" {
		t.Fatalf("unexpected children: %+v", all)
	}
	if all[0].ParentID != "conv1" {
		t.Errorf("expected parent conv1, got %q", all[0].ParentID)
	}

	rest, err := s.ListChildren(ctx, domain.EntityMessages, "conv1", all[0].Key, 0)
	if err != nil {
		t.Fatalf("ListChildren failed: %v", err)
	}
	if len(rest) != 1 || rest[0].ID != "m3" {
		t.Fatalf("expected only m3 after m1, got %+v", rest)
	}
}

func TestMappingUpsertLastWriteWins(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	if _, ok, err := s.GetMapping(ctx, "c1", domain.ObjectContact); err != nil || ok {
		t.Fatalf("expected no mapping, got ok=%v err=%v", ok, err)
	}

	for _, dest := range []string{"100", "200"} {
		if err := s.PutMapping(ctx, domain.IdentityMapping{SourceID: "c1", DestinationID: dest, ObjectType: domain.ObjectContact}); err != nil {
			t.Fatalf("PutMapping failed: %v", err)
		}
	}
	if err := s.PutMapping(ctx, domain.IdentityMapping{SourceID: "c1", DestinationID: "900", ObjectType: domain.ObjectCompany}); err != nil {
		t.Fatalf("PutMapping failed: %v", err)
	}

	dest, ok, err := s.GetMapping(ctx, "c1", domain.ObjectContact)
	if err != nil || !ok {
		t.Fatalf("GetMapping failed: ok=%v err=%v", ok, err)
	}
	if dest != "200" {
		t.Errorf("expected last write 200, got %s", dest)
	}

	dest, _, _ = s.GetMapping(ctx, "c1", domain.ObjectCompany)
	if dest != "900" {
		t.Errorf("expected company mapping 900, got %s", dest)
	}

	n, _ := s.CountMappings(ctx, domain.ObjectContact)
	if n != 1 {
		t.Errorf("expected 1 contact mapping, got %d", n)
	}
}

func TestPutMappingRejectsIncomplete(t *testing.T) {
	s := setupTestStore(t)
	if err := s.PutMapping(context.Background(), domain.IdentityMapping{SourceID: "c1", ObjectType: domain.ObjectContact}); err == nil {
		t.Fatal("expected error for mapping without destination id")
	}
}

func TestCheckpointRoundtrip(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	cp, err := s.GetCheckpoint(ctx, "contacts")
	if err != nil {
		t.Fatalf("GetCheckpoint failed: %v", err)
	}
	if cp != nil {
		t.Fatalf("expected nil checkpoint, got %+v", cp)
	}

	for i := 1; i <= 3; i++ {
		err := s.PutCheckpoint(ctx, domain.Checkpoint{
			StreamID:   "conversations",
			EntityType: domain.EntityConversations,
			LastKey:    "7",
			LastSubKey: strconv.Itoa(i),
			Counters:   map[string]int{"processed": i},
		})
		if err != nil {
			t.Fatalf("PutCheckpoint failed: %v", err)
		}
	}

	cp, err = s.GetCheckpoint(ctx, "conversations")
	if err != nil {
		t.Fatalf("GetCheckpoint failed: %v", err)
	}
	if cp.LastKey != "7" || cp.LastSubKey != "3" {
		t.Errorf("unexpected position %s/%s", cp.LastKey, cp.LastSubKey)
	}
	if cp.Counters["processed"] != 3 {
		t.Errorf("expected processed=3, got %v", cp.Counters)
	}
	if cp.UpdatedAt.IsZero() {
		t.Error("expected updated_at to be set")
	}
}

func TestRecordFailureOverwrites(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	for _, reason := range []string{"missing mapping", "create failed"} {
		err := s.RecordFailure(ctx, domain.FailureRecord{EntityType: domain.EntityOpportunities, SourceID: "o1", Reason: reason})
		if err != nil {
			t.Fatalf("RecordFailure failed: %v", err)
		}
	}

	f, err := s.GetFailure(ctx, domain.EntityOpportunities, "o1")
	if err != nil {
		t.Fatalf("GetFailure failed: %v", err)
	}
	if f.Reason != "create failed" {
		t.Errorf("expected latest reason, got %q", f.Reason)
	}

	list, err := s.ListFailures(ctx, "", 10)
	if err != nil {
		t.Fatalf("ListFailures failed: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("expected 1 failure, got %d", len(list))
	}
}

func TestResetStream(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	s.PutMapping(ctx, domain.IdentityMapping{SourceID: "c1", DestinationID: "1", ObjectType: domain.ObjectContact})
	s.PutMapping(ctx, domain.IdentityMapping{SourceID: "c2", DestinationID: "2", ObjectType: domain.ObjectContact})
	s.PutMapping(ctx, domain.IdentityMapping{SourceID: "o1", DestinationID: "3", ObjectType: domain.ObjectDeal})
	s.RecordFailure(ctx, domain.FailureRecord{EntityType: domain.EntityContacts, SourceID: "c3", Reason: "missing email"})
	s.RecordFailure(ctx, domain.FailureRecord{EntityType: domain.EntityOpportunities, SourceID: "o2", Reason: "missing dealstage"})
	s.PutCheckpoint(ctx, domain.Checkpoint{StreamID: "contacts", EntityType: domain.EntityContacts, LastKey: "5"})
	s.PutCheckpoint(ctx, domain.Checkpoint{StreamID: "contacts-backfill", EntityType: domain.EntityContacts, LastKey: "9"})
	s.PutCheckpoint(ctx, domain.Checkpoint{StreamID: "opportunities", EntityType: domain.EntityOpportunities, LastKey: "2"})

	res, err := s.ResetStream(ctx, domain.EntityContacts, domain.ObjectContact, "contacts")
	if err != nil {
		t.Fatalf("ResetStream failed: %v", err)
	}
	if res.Mappings != 2 || res.Failures != 1 || res.Checkpoints != 1 {
		t.Errorf("unexpected reset result %+v", res)
	}

	if cp, _ := s.GetCheckpoint(ctx, "contacts-backfill"); cp == nil {
		t.Error("named reset should keep other checkpoints of the entity")
	}
	if _, ok, _ := s.GetMapping(ctx, "o1", domain.ObjectDeal); !ok {
		t.Error("reset must not touch other object types")
	}

	res, err = s.ResetStream(ctx, domain.EntityContacts, domain.ObjectContact, "")
	if err != nil {
		t.Fatalf("ResetStream failed: %v", err)
	}
	if res.Checkpoints != 1 {
		t.Errorf("expected remaining contacts checkpoint to be removed, got %+v", res)
	}
	if cp, _ := s.GetCheckpoint(ctx, "opportunities"); cp == nil {
		t.Error("reset must not touch other entities' checkpoints")
	}
}

func TestStatus(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	stage(t, s, domain.EntityContacts, map[string]interface{}{"id": "c1"}, map[string]interface{}{"id": "c2"})
	s.PutMapping(ctx, domain.IdentityMapping{SourceID: "c1", DestinationID: "1", ObjectType: domain.ObjectContact})
	s.RecordFailure(ctx, domain.FailureRecord{EntityType: domain.EntityContacts, SourceID: "c2", Reason: "missing email"})
	s.PutCheckpoint(ctx, domain.Checkpoint{StreamID: "contacts", EntityType: domain.EntityContacts, LastKey: "2"})

	st, err := s.Status(ctx, domain.EntityContacts, domain.ObjectContact)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if st.Documents != 2 || st.Mappings != 1 || st.Failures != 1 || len(st.Checkpoints) != 1 {
		t.Errorf("unexpected status %+v", st)
	}
}
