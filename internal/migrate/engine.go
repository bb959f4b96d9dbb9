// Package migrate moves staged source records into the destination CRM.
//
// Every stream runs the same loop: resume from the checkpoint, walk staged
// documents in surrogate-key order, consult the identity map, let the entity
// migrator plan the object, create it, map it, associate it and advance the
// checkpoint. A record's failure is logged and counted; only storage and
// configuration failures abort the stream.
package migrate

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/lherron/ghl2hs/internal/domain"
	"github.com/lherron/ghl2hs/internal/hubspot"
	"github.com/lherron/ghl2hs/internal/logger"
	"github.com/lherron/ghl2hs/internal/metrics"
	"github.com/lherron/ghl2hs/internal/schema"
)

const defaultPageSize = 100

// DryRunSuffix marks the checkpoint of a dry run so it never moves the real
// stream's position
const DryRunSuffix = ".dry-run"

// ImportTagProperty carries the import tag on every created object
const ImportTagProperty = "ghl_import_tag"

// Staging is the staging store as seen by the engine
type Staging interface {
	ListAfter(ctx context.Context, collection domain.EntityType, afterKey string, limit int) ([]domain.Document, error)
	ListChildren(ctx context.Context, collection domain.EntityType, parentID, afterKey string, limit int) ([]domain.Document, error)
	GetDocument(ctx context.Context, collection domain.EntityType, id string) (domain.Document, error)
	GetMapping(ctx context.Context, sourceID string, objectType domain.ObjectType) (string, bool, error)
	PutMapping(ctx context.Context, m domain.IdentityMapping) error
	GetCheckpoint(ctx context.Context, streamID string) (*domain.Checkpoint, error)
	PutCheckpoint(ctx context.Context, cp domain.Checkpoint) error
	RecordFailure(ctx context.Context, f domain.FailureRecord) error
}

// Destination is the destination CRM as seen by the engine
type Destination interface {
	CreateObject(ctx context.Context, objectType domain.ObjectType, properties map[string]string) (*hubspot.Object, error)
	Search(ctx context.Context, objectType domain.ObjectType, filters []hubspot.Filter, properties []string, after string) (*hubspot.SearchPage, error)
	AssociationLabels(ctx context.Context, from, to domain.ObjectType) ([]hubspot.AssociationType, error)
	Associate(ctx context.Context, from domain.ObjectType, fromID string, to domain.ObjectType, toID string, types ...hubspot.AssociationType) error
	Pipelines(ctx context.Context, objectType domain.ObjectType) ([]hubspot.Pipeline, error)
}

// StreamConfig describes one stream invocation
type StreamConfig struct {
	Entity domain.EntityType
	// StreamID names the checkpoint; defaults to the entity name. Dry runs
	// checkpoint under StreamID + DryRunSuffix.
	StreamID string
	// Collection overrides the staging collection read; defaults to the entity
	// name, or the parent collection of a nested stream
	Collection domain.EntityType
	Resume     bool
	// Limit caps the number of records processed in this run (0 = no cap)
	Limit    int
	DryRun   bool
	PageSize int

	DealStage      string
	Pipeline       string
	CalendarObject domain.ObjectType
	ImportTag      string
}

func (c StreamConfig) withDefaults() StreamConfig {
	if c.StreamID == "" {
		c.StreamID = string(c.Entity)
	}
	if c.DryRun && !strings.HasSuffix(c.StreamID, DryRunSuffix) {
		c.StreamID += DryRunSuffix
	}
	if c.PageSize <= 0 {
		c.PageSize = defaultPageSize
	}
	return c
}

// Summary counts the outcomes of one run
type Summary struct {
	Stream               string                    `json:"stream"`
	Entity               domain.EntityType         `json:"entity"`
	RunID                string                    `json:"runId"`
	DryRun               bool                      `json:"dryRun"`
	Processed            int                       `json:"processed"`
	Created              int                       `json:"created"`
	SkippedAlreadyMapped int                       `json:"skippedAlreadyMapped"`
	SkippedNoID          int                       `json:"skippedNoId"`
	Skipped              map[domain.SkipReason]int `json:"skipped,omitempty"`
	Errors               int                       `json:"errors"`
	Conflicts            int                       `json:"conflicts"`
	CompaniesCreated     int                       `json:"companiesCreated"`
	AssociationsCreated  int                       `json:"associationsCreated"`
	AssociationsSkipped  int                       `json:"associationsSkipped"`
}

func newSummary(cfg StreamConfig, runID string) Summary {
	return Summary{
		Stream:  cfg.StreamID,
		Entity:  cfg.Entity,
		RunID:   runID,
		DryRun:  cfg.DryRun,
		Skipped: make(map[domain.SkipReason]int),
	}
}

// Add accumulates the counters of another summary
func (s *Summary) Add(o Summary) {
	s.Processed += o.Processed
	s.Created += o.Created
	s.SkippedAlreadyMapped += o.SkippedAlreadyMapped
	s.SkippedNoID += o.SkippedNoID
	s.Errors += o.Errors
	s.Conflicts += o.Conflicts
	s.CompaniesCreated += o.CompaniesCreated
	s.AssociationsCreated += o.AssociationsCreated
	s.AssociationsSkipped += o.AssociationsSkipped
	if len(o.Skipped) > 0 && s.Skipped == nil {
		s.Skipped = make(map[domain.SkipReason]int)
	}
	for reason, n := range o.Skipped {
		s.Skipped[reason] += n
	}
}

// SkippedTotal sums every skip reason
func (s Summary) SkippedTotal() int {
	total := 0
	for _, n := range s.Skipped {
		total += n
	}
	return total
}

// Counters flattens the summary into the form persisted with checkpoints
func (s Summary) Counters() map[string]int {
	out := map[string]int{
		"processed":            s.Processed,
		"created":              s.Created,
		"skippedAlreadyMapped": s.SkippedAlreadyMapped,
		"skippedNoId":          s.SkippedNoID,
		"errors":               s.Errors,
		"conflicts":            s.Conflicts,
		"companiesCreated":     s.CompaniesCreated,
		"associationsCreated":  s.AssociationsCreated,
		"associationsSkipped":  s.AssociationsSkipped,
	}
	for reason, n := range s.Skipped {
		out["skipped:"+string(reason)] = n
	}
	return out
}

// SkipReasons returns the recorded skip reasons in a stable order
func (s Summary) SkipReasons() []domain.SkipReason {
	out := make([]domain.SkipReason, 0, len(s.Skipped))
	for reason := range s.Skipped {
		out = append(out, reason)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Engine runs migration streams
type Engine struct {
	staging Staging
	dest    Destination
	log     *logrus.Logger
	rules   schema.FieldRules
	tracer  trace.Tracer
	metrics *metrics.Recorder
	now     func() time.Time
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the logger
func WithLogger(l *logrus.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithRules replaces the field rules table
func WithRules(r schema.FieldRules) Option {
	return func(e *Engine) {
		e.rules = r
	}
}

// WithTracer sets the tracer spans are started from
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

// WithMetrics records per-record outcomes
func WithMetrics(m *metrics.Recorder) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// NewEngine creates an engine over a staging store and a destination
func NewEngine(staging Staging, dest Destination, opts ...Option) *Engine {
	e := &Engine{
		staging: staging,
		dest:    dest,
		log:     logger.Discard(),
		rules:   schema.DefaultFieldRules,
		tracer:  otel.Tracer("ghl2hs/migrate"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run migrates one stream and returns the counters of this run. The returned
// error is non-nil only for conditions that stop the stream.
func (e *Engine) Run(ctx context.Context, cfg StreamConfig) (Summary, error) {
	cfg = cfg.withDefaults()

	m, err := MigratorFor(cfg)
	if err != nil {
		return Summary{}, err
	}
	if cfg.Collection == "" {
		cfg.Collection = cfg.Entity
		if nested, ok := m.(NestedMigrator); ok {
			cfg.Collection = nested.ParentCollection()
		}
	}

	rc := newRunContext(cfg, e.staging, e.dest, e.rules, e.log)
	sum := newSummary(cfg, rc.RunID)

	ctx, span := e.tracer.Start(ctx, "migrate.stream", trace.WithAttributes(
		attribute.String("ghl2hs.stream", cfg.StreamID),
		attribute.String("ghl2hs.entity", string(cfg.Entity)),
		attribute.String("ghl2hs.run_id", rc.RunID),
		attribute.Bool("ghl2hs.dry_run", cfg.DryRun),
	))
	defer span.End()

	var cp *domain.Checkpoint
	if cfg.Resume {
		cp, err = e.staging.GetCheckpoint(ctx, cfg.StreamID)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return sum, fmt.Errorf("failed to read checkpoint %s: %w", cfg.StreamID, err)
		}
	}

	st := &streamState{rc: rc, sum: &sum, base: map[string]int{}}
	if cp != nil {
		st.lastKey = cp.LastKey
		st.lastSubKey = cp.LastSubKey
		for k, v := range cp.Counters {
			st.base[k] = v
		}
		logger.WithTrace(ctx, rc.Log).WithFields(logrus.Fields{
			"last_key":     cp.LastKey,
			"last_sub_key": cp.LastSubKey,
		}).Info("resuming from checkpoint")
	} else {
		logger.WithTrace(ctx, rc.Log).Info("starting from the beginning")
	}

	if nested, ok := m.(NestedMigrator); ok {
		err = e.runNested(ctx, st, nested)
	} else {
		err = e.runFlat(ctx, st, m)
	}

	fields := logrus.Fields{
		"processed": sum.Processed,
		"created":   sum.Created,
		"mapped":    sum.SkippedAlreadyMapped,
		"skipped":   sum.SkippedTotal(),
		"errors":    sum.Errors,
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		rc.Log.WithFields(fields).WithError(err).Error("stream stopped")
		return sum, err
	}
	rc.Log.WithFields(fields).Info("stream complete")
	return sum, nil
}

type streamState struct {
	rc         *RunContext
	sum        *Summary
	base       map[string]int
	lastKey    string
	lastSubKey string
}

func (st *streamState) limitReached() bool {
	limit := st.rc.Config.Limit
	return limit > 0 && st.sum.Processed >= limit
}

func (e *Engine) runFlat(ctx context.Context, st *streamState, m Migrator) error {
	cfg := st.rc.Config
	for {
		page, err := e.staging.ListAfter(ctx, cfg.Collection, st.lastKey, cfg.PageSize)
		if err != nil {
			return fmt.Errorf("failed to list %s: %w", cfg.Collection, err)
		}
		if len(page) == 0 {
			return nil
		}
		for _, doc := range page {
			if st.limitReached() {
				return nil
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := e.process(ctx, st, m, doc); err != nil {
				return err
			}
			st.lastKey = doc.Key
			if err := e.saveCheckpoint(ctx, st); err != nil {
				return err
			}
		}
	}
}

// runNested walks parents in key order and each parent's children in key
// order. LastKey is the last fully processed parent; LastSubKey is the last
// processed child of the parent after it.
func (e *Engine) runNested(ctx context.Context, st *streamState, m NestedMigrator) error {
	cfg := st.rc.Config
	defer func() { st.rc.parent = nil }()
	for {
		parents, err := e.staging.ListAfter(ctx, cfg.Collection, st.lastKey, cfg.PageSize)
		if err != nil {
			return fmt.Errorf("failed to list %s: %w", cfg.Collection, err)
		}
		if len(parents) == 0 {
			return nil
		}
		for i := range parents {
			parent := parents[i]
			st.rc.parent = &parent
			if parent.ID != "" {
				if err := e.runChildren(ctx, st, m, parent); err != nil {
					return err
				}
				if st.limitReached() {
					return nil
				}
			}
			st.lastKey = parent.Key
			st.lastSubKey = ""
			if err := e.saveCheckpoint(ctx, st); err != nil {
				return err
			}
		}
	}
}

// runChildren processes the children of one parent. It returns early, with
// the parent left incomplete, once the record limit is hit.
func (e *Engine) runChildren(ctx context.Context, st *streamState, m NestedMigrator, parent domain.Document) error {
	cfg := st.rc.Config
	for {
		children, err := e.staging.ListChildren(ctx, m.ChildCollection(), parent.ID, st.lastSubKey, cfg.PageSize)
		if err != nil {
			return fmt.Errorf("failed to list %s of %s: %w", m.ChildCollection(), parent.ID, err)
		}
		if len(children) == 0 {
			return nil
		}
		for _, child := range children {
			if st.limitReached() {
				return nil
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := e.process(ctx, st, m, child); err != nil {
				return err
			}
			st.lastSubKey = child.Key
			if err := e.saveCheckpoint(ctx, st); err != nil {
				return err
			}
		}
	}
}

func (e *Engine) saveCheckpoint(ctx context.Context, st *streamState) error {
	counters := make(map[string]int, len(st.base))
	for k, v := range st.base {
		counters[k] = v
	}
	for k, v := range st.sum.Counters() {
		counters[k] += v
	}
	cp := domain.Checkpoint{
		StreamID:   st.rc.Config.StreamID,
		EntityType: st.rc.Config.Entity,
		LastKey:    st.lastKey,
		LastSubKey: st.lastSubKey,
		Counters:   counters,
		UpdatedAt:  e.now().UTC(),
	}
	if err := e.staging.PutCheckpoint(ctx, cp); err != nil {
		return fmt.Errorf("failed to advance checkpoint %s: %w", cp.StreamID, err)
	}
	return nil
}

// process runs one record through identity check, planning and creation.
// Errors it returns stop the stream; record-level failures are absorbed.
func (e *Engine) process(ctx context.Context, st *streamState, m Migrator, doc domain.Document) error {
	rc, sum := st.rc, st.sum
	sum.Processed++

	ctx, span := e.tracer.Start(ctx, "migrate.record", trace.WithAttributes(
		attribute.String("ghl2hs.ghl_id", doc.ID),
		attribute.String("ghl2hs.key", doc.Key),
	))
	defer span.End()

	if doc.ID == "" {
		sum.SkippedNoID++
		e.outcome(rc, "skipped_no_id")
		logger.WithTrace(ctx, rc.Log).WithField("key", doc.Key).Warn("record has no id")
		return nil
	}
	log := logger.WithTrace(ctx, rc.fieldLog(doc))

	objectType := m.ObjectType(doc)
	if _, mapped, err := rc.Mapping(ctx, doc.ID, objectType); err != nil {
		return err
	} else if mapped {
		sum.SkippedAlreadyMapped++
		e.outcome(rc, "skipped_already_mapped")
		log.Debug("already mapped")
		return nil
	}

	plan, err := m.Plan(ctx, rc, doc)
	if err != nil {
		if IsStorageError(err) || domain.IsConfigError(err) {
			return err
		}
		span.SetStatus(codes.Error, err.Error())
		return e.fail(ctx, st, doc, log, "plan failed", err.Error())
	}
	if plan.Skip != "" {
		sum.Skipped[plan.Skip]++
		e.outcome(rc, outcomeLabel(plan.Skip))
		log.WithField("reason", plan.Skip).Info("skipped: " + plan.Detail)
		return e.recordFailure(ctx, rc, doc, string(plan.Skip), plan.Detail)
	}
	if plan.ObjectType == "" {
		plan.ObjectType = objectType
	}
	if len(plan.Missing) > 0 {
		log.WithField("missing", plan.Missing).Warn("creating without unmigrated relations")
		if err := e.recordFailure(ctx, rc, doc, string(domain.SkipMissingMapping), strings.Join(plan.Missing, ", ")); err != nil {
			return err
		}
	}
	e.tag(rc, plan.Properties)

	if rc.Config.DryRun {
		sum.Created++
		if plan.Companion != nil {
			sum.CompaniesCreated++
		}
		e.outcome(rc, "dry_run")
		log.WithFields(logrus.Fields{
			"object_type":  plan.ObjectType,
			"properties":   plan.Properties,
			"associations": len(plan.Associations),
		}).Info("dry run: would create")
		return nil
	}

	obj, err := e.dest.CreateObject(ctx, plan.ObjectType, plan.Properties)
	if err != nil {
		if hubspot.IsConflict(err) {
			return e.reconcile(ctx, st, doc, plan.ObjectType, log, err)
		}
		span.SetStatus(codes.Error, err.Error())
		return e.fail(ctx, st, doc, log, "create failed", err.Error())
	}
	if err := e.putMapping(ctx, doc.ID, obj.ID, plan.ObjectType); err != nil {
		return err
	}
	sum.Created++
	log.WithField("hubspot_id", obj.ID).Info("created " + string(plan.ObjectType))

	problems, err := e.associate(ctx, st, doc, plan, obj.ID, log)
	if err != nil {
		return err
	}
	if len(problems) > 0 {
		span.SetStatus(codes.Error, "association failed")
		return e.fail(ctx, st, doc, log, "association failed", strings.Join(problems, "; "))
	}
	e.outcome(rc, "created")
	return nil
}

// associate creates the companion object and every planned association.
// It returns descriptions of required links that could not be made.
func (e *Engine) associate(ctx context.Context, st *streamState, doc domain.Document, plan *Plan, destID string, log *logrus.Entry) ([]string, error) {
	rc, sum := st.rc, st.sum
	var problems []string

	if c := plan.Companion; c != nil {
		companionID, ok, err := rc.Mapping(ctx, doc.ID, c.ObjectType)
		if err != nil {
			return nil, err
		}
		if !ok {
			e.tag(rc, c.Properties)
			obj, err := e.dest.CreateObject(ctx, c.ObjectType, c.Properties)
			if err != nil {
				problems = append(problems, fmt.Sprintf("create %s: %v", c.ObjectType, err))
			} else {
				if err := e.putMapping(ctx, doc.ID, obj.ID, c.ObjectType); err != nil {
					return nil, err
				}
				companionID = obj.ID
				sum.CompaniesCreated++
				log.WithField("hubspot_id", obj.ID).Info("created companion " + string(c.ObjectType))
			}
		}
		if companionID != "" {
			link := AssociationPlan{ToObjectType: c.ObjectType, ToID: companionID, Label: c.Label, Required: c.Required}
			if err := e.link(ctx, rc, plan.ObjectType, destID, link); err != nil {
				if c.Required {
					problems = append(problems, err.Error())
				} else {
					sum.AssociationsSkipped++
					log.WithError(err).Warn("companion association skipped")
				}
			} else {
				sum.AssociationsCreated++
			}
		}
	}

	for _, a := range plan.Associations {
		if err := e.link(ctx, rc, plan.ObjectType, destID, a); err != nil {
			if a.Required {
				problems = append(problems, err.Error())
				continue
			}
			sum.AssociationsSkipped++
			log.WithError(err).WithField("to", a.ToObjectType).Warn("association skipped")
			continue
		}
		sum.AssociationsCreated++
	}
	return problems, nil
}

func (e *Engine) link(ctx context.Context, rc *RunContext, from domain.ObjectType, fromID string, a AssociationPlan) error {
	t, err := rc.ResolveAssociationType(ctx, from, a.ToObjectType, a.Label)
	if err != nil {
		return err
	}
	if err := e.dest.Associate(ctx, from, fromID, a.ToObjectType, a.ToID, t); err != nil {
		return fmt.Errorf("associate %s %s to %s %s: %w", from, fromID, a.ToObjectType, a.ToID, err)
	}
	return nil
}

var existingIDPattern = regexp.MustCompile(`Existing ID:\s*(\d+)`)

// reconcile handles a create conflict. When the destination names the
// existing object its id is mapped so later runs skip the record.
func (e *Engine) reconcile(ctx context.Context, st *streamState, doc domain.Document, objectType domain.ObjectType, log *logrus.Entry, cause error) error {
	st.sum.Conflicts++
	if match := existingIDPattern.FindStringSubmatch(cause.Error()); match != nil {
		if err := e.putMapping(ctx, doc.ID, match[1], objectType); err != nil {
			return err
		}
		e.outcome(st.rc, "conflict")
		log.WithField("hubspot_id", match[1]).Info("already exists, mapped existing object")
		return nil
	}
	e.outcome(st.rc, "conflict")
	log.WithError(cause).Warn("already exists")
	return e.recordFailure(ctx, st.rc, doc, "conflict", cause.Error())
}

func (e *Engine) fail(ctx context.Context, st *streamState, doc domain.Document, log *logrus.Entry, reason, detail string) error {
	st.sum.Errors++
	e.outcome(st.rc, "error")
	log.WithField("reason", reason).Error(detail)
	return e.recordFailure(ctx, st.rc, doc, reason, detail)
}

// recordFailure writes the failure log. Dry runs only count.
func (e *Engine) recordFailure(ctx context.Context, rc *RunContext, doc domain.Document, reason, detail string) error {
	if rc.Config.DryRun {
		return nil
	}
	err := e.staging.RecordFailure(ctx, domain.FailureRecord{
		EntityType: rc.Config.Entity,
		SourceID:   doc.ID,
		Reason:     reason,
		Detail:     detail,
		Timestamp:  e.now().UTC(),
	})
	if err != nil {
		return fatal(fmt.Errorf("failed to record failure for %s: %w", doc.ID, err))
	}
	return nil
}

func (e *Engine) putMapping(ctx context.Context, sourceID, destID string, objectType domain.ObjectType) error {
	now := e.now().UTC()
	err := e.staging.PutMapping(ctx, domain.IdentityMapping{
		SourceID:      sourceID,
		DestinationID: destID,
		ObjectType:    objectType,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		return fatal(fmt.Errorf("failed to map %s to %s %s: %w", sourceID, objectType, destID, err))
	}
	return nil
}

func (e *Engine) tag(rc *RunContext, props map[string]string) {
	if rc.Config.ImportTag != "" && props != nil {
		props[ImportTagProperty] = rc.Config.ImportTag
	}
}

func (e *Engine) outcome(rc *RunContext, outcome string) {
	e.metrics.RecordOutcome(rc.Config.StreamID, outcome)
}
