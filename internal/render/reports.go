package render

import (
	"fmt"
	"strconv"
	"time"

	"github.com/lherron/ghl2hs/internal/domain"
	"github.com/lherron/ghl2hs/internal/migrate"
	"github.com/lherron/ghl2hs/internal/schema"
)

const timeFormat = "2006-01-02 15:04:05"

// Summary renders the counters of one stream run
func (r *Renderer) Summary(s migrate.Summary) error {
	if ok, err := r.Structured(s); ok {
		return err
	}

	rows := [][]string{
		{"processed", strconv.Itoa(s.Processed)},
		{"created", strconv.Itoa(s.Created)},
		{"skipped (already mapped)", strconv.Itoa(s.SkippedAlreadyMapped)},
		{"skipped (no id)", strconv.Itoa(s.SkippedNoID)},
	}
	for _, reason := range s.SkipReasons() {
		rows = append(rows, []string{fmt.Sprintf("skipped (%s)", reason), strconv.Itoa(s.Skipped[reason])})
	}
	rows = append(rows,
		[]string{"errors", strconv.Itoa(s.Errors)},
		[]string{"conflicts", strconv.Itoa(s.Conflicts)},
		[]string{"companies created", strconv.Itoa(s.CompaniesCreated)},
		[]string{"associations created", strconv.Itoa(s.AssociationsCreated)},
		[]string{"associations skipped", strconv.Itoa(s.AssociationsSkipped)},
	)

	title := s.Stream
	if s.DryRun {
		title += " (dry run)"
	}
	if !r.opts.Porcelain {
		fmt.Fprintf(r.writer, "%s  run %s\n\n", title, s.RunID)
	}
	return r.RenderTable([]string{"COUNTER", "VALUE"}, rows)
}

// Status renders persisted progress per entity
func (r *Renderer) Status(statuses []*domain.StreamStatus) error {
	if ok, err := r.Structured(statuses); ok {
		return err
	}

	headers := []string{"ENTITY", "STAGED", "MAPPED", "FAILURES", "STREAM", "LAST KEY", "UPDATED"}
	var rows [][]string
	for _, st := range statuses {
		base := []string{
			string(st.EntityType),
			strconv.FormatInt(st.Documents, 10),
			strconv.FormatInt(st.Mappings, 10),
			strconv.FormatInt(st.Failures, 10),
		}
		if len(st.Checkpoints) == 0 {
			rows = append(rows, append(base, "-", "-", "-"))
			continue
		}
		for _, cp := range st.Checkpoints {
			key := cp.LastKey
			if cp.LastSubKey != "" {
				key += "/" + cp.LastSubKey
			}
			rows = append(rows, append(append([]string{}, base...), cp.StreamID, key, formatTime(cp.UpdatedAt)))
		}
	}
	return r.RenderTable(headers, rows)
}

// Failures renders failure records for triage
func (r *Renderer) Failures(failures []domain.FailureRecord) error {
	if ok, err := r.Structured(failures); ok {
		return err
	}

	headers := []string{"ENTITY", "GHL ID", "REASON", "DETAIL", "WHEN"}
	rows := make([][]string, 0, len(failures))
	for _, f := range failures {
		rows = append(rows, []string{string(f.EntityType), f.SourceID, f.Reason, truncate(f.Detail, 80), formatTime(f.Timestamp)})
	}
	return r.RenderTable(headers, rows)
}

// Mappings renders identity mappings
func (r *Renderer) Mappings(mappings []domain.IdentityMapping) error {
	if ok, err := r.Structured(mappings); ok {
		return err
	}

	headers := []string{"OBJECT", "GHL ID", "HUBSPOT ID", "UPDATED"}
	rows := make([][]string, 0, len(mappings))
	for _, m := range mappings {
		rows = append(rows, []string{string(m.ObjectType), m.SourceID, m.DestinationID, formatTime(m.UpdatedAt)})
	}
	return r.RenderTable(headers, rows)
}

// PropertyPlan renders a schema plan; table output prints each diff
func (r *Renderer) PropertyPlan(objectType domain.ObjectType, changes []schema.PropertyChange) error {
	if ok, err := r.Structured(changes); ok {
		return err
	}

	counts := map[string]int{}
	for _, c := range changes {
		counts[c.Action]++
		if c.Diff != "" {
			fmt.Fprint(r.writer, c.Diff)
		}
	}
	fmt.Fprintf(r.writer, "%s: %d to create, %d differ, %d unchanged\n",
		objectType, counts[schema.ActionCreate], counts[schema.ActionUpdate], counts[schema.ActionUnchanged])
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeFormat)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
