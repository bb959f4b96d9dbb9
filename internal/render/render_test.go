package render

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lherron/ghl2hs/internal/domain"
	"github.com/lherron/ghl2hs/internal/migrate"
	"github.com/lherron/ghl2hs/internal/schema"
)

func sampleSummary() migrate.Summary {
	return migrate.Summary{
		Stream:    "contacts",
		Entity:    domain.EntityContacts,
		RunID:     "run-1",
		Processed: 3,
		Created:   1,
		Skipped:   map[domain.SkipReason]int{domain.SkipMissingEmail: 2},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatTable, false},
		{"JSON", FormatJSON, false},
		{"yaml", FormatYAML, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSummaryTable(t *testing.T) {
	var buf bytes.Buffer
	if err := NewRenderer(&buf, Options{}).Summary(sampleSummary()); err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"contacts  run run-1", "COUNTER", "skipped (missing email)", "created"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestSummaryStructured(t *testing.T) {
	var buf bytes.Buffer
	if err := NewRenderer(&buf, Options{Format: FormatJSON}).Summary(sampleSummary()); err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	var got map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got["created"] != float64(1) {
		t.Errorf("created = %v, want 1", got["created"])
	}

	buf.Reset()
	if err := NewRenderer(&buf, Options{Format: FormatYAML}).Summary(sampleSummary()); err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	var y map[string]interface{}
	if err := yaml.Unmarshal(buf.Bytes(), &y); err != nil {
		t.Fatalf("invalid YAML: %v", err)
	}
	if y["stream"] != "contacts" {
		t.Errorf("stream = %v, want contacts", y["stream"])
	}
}

func TestStatusRowsPerCheckpoint(t *testing.T) {
	var buf bytes.Buffer
	statuses := []*domain.StreamStatus{
		{EntityType: domain.EntityContacts, Documents: 10, Mappings: 4},
		{EntityType: domain.EntityConversations, Documents: 2, Checkpoints: []*domain.Checkpoint{
			{StreamID: "conversations", LastKey: "7", LastSubKey: "12", UpdatedAt: time.Now()},
		}},
	}
	if err := NewRenderer(&buf, Options{Porcelain: true}).Status(statuses); err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[2], "conversations\t7/12") {
		t.Errorf("unexpected checkpoint row %q", lines[2])
	}
}

func TestFailuresTruncatesDetail(t *testing.T) {
	var buf bytes.Buffer
	failures := []domain.FailureRecord{{EntityType: domain.EntityContacts, SourceID: "c1", Reason: "create failed", Detail: strings.Repeat("x", 200)}}
	if err := NewRenderer(&buf, Options{}).Failures(failures); err != nil {
		t.Fatalf("Failures failed: %v", err)
	}
	if strings.Contains(buf.String(), strings.Repeat("x", 81)) {
		t.Error("detail was not truncated")
	}
}

func TestPropertyPlanCounts(t *testing.T) {
	var buf bytes.Buffer
	changes := []schema.PropertyChange{
		{Name: "a", Action: schema.ActionCreate, Diff: "+name: a\n"},
		{Name: "b", Action: schema.ActionUnchanged},
	}
	if err := NewRenderer(&buf, Options{}).PropertyPlan(domain.ObjectContact, changes); err != nil {
		t.Fatalf("PropertyPlan failed: %v", err)
	}
	if !strings.Contains(buf.String(), "contact: 1 to create, 0 differ, 1 unchanged") {
		t.Errorf("unexpected plan output:\n%s", buf.String())
	}
}
