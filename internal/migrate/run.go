package migrate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/lherron/ghl2hs/internal/domain"
	"github.com/lherron/ghl2hs/internal/hubspot"
	"github.com/lherron/ghl2hs/internal/schema"
)

// storageError marks a staging failure, which aborts the stream instead of
// failing a single record.
type storageError struct {
	err error
}

func (e *storageError) Error() string { return e.err.Error() }
func (e *storageError) Unwrap() error { return e.err }

func fatal(err error) error {
	if err == nil {
		return nil
	}
	var se *storageError
	if errors.As(err, &se) {
		return err
	}
	return &storageError{err: err}
}

// IsStorageError reports whether err came from the staging store
func IsStorageError(err error) bool {
	var se *storageError
	return errors.As(err, &se)
}

type assocKey struct {
	from, to domain.ObjectType
}

// RunContext carries per-invocation state. Its caches live exactly as long
// as one stream run, so nothing leaks between streams or tests.
type RunContext struct {
	RunID  string
	Config StreamConfig
	Log    *logrus.Entry

	started time.Time

	staging Staging
	dest    Destination
	rules   schema.FieldRules

	assocTypes   map[assocKey][]hubspot.AssociationType
	defs         map[string]schema.FieldDefinitions
	pipelines    []hubspot.Pipeline
	pipesReady   bool
	companyProps map[string]map[string]string

	parent *domain.Document
}

func newRunContext(cfg StreamConfig, staging Staging, dest Destination, rules schema.FieldRules, log *logrus.Logger) *RunContext {
	runID := uuid.NewString()
	return &RunContext{
		RunID:   runID,
		Config:  cfg,
		started: time.Now().UTC(),
		Log: log.WithFields(logrus.Fields{
			"stream": cfg.StreamID,
			"run_id": runID,
		}),
		staging:      staging,
		dest:         dest,
		rules:        rules,
		assocTypes:   make(map[assocKey][]hubspot.AssociationType),
		defs:         make(map[string]schema.FieldDefinitions),
		companyProps: make(map[string]map[string]string),
	}
}

// Rules returns the field rules table in effect
func (rc *RunContext) Rules() schema.FieldRules {
	return rc.rules
}

// Parent returns the parent document of the record being planned in a nested stream
func (rc *RunContext) Parent() *domain.Document {
	return rc.parent
}

// Mapping looks up the destination id of an already migrated source record
func (rc *RunContext) Mapping(ctx context.Context, sourceID string, objectType domain.ObjectType) (string, bool, error) {
	id, ok, err := rc.staging.GetMapping(ctx, sourceID, objectType)
	if err != nil {
		return "", false, fatal(err)
	}
	return id, ok, nil
}

// FieldDefinitions returns the staged custom field definitions of a model,
// loading them on first use.
func (rc *RunContext) FieldDefinitions(ctx context.Context, model string) (schema.FieldDefinitions, error) {
	if defs, ok := rc.defs[model]; ok {
		return defs, nil
	}
	all, err := LoadFieldDefinitions(ctx, rc.staging)
	if err != nil {
		return nil, fatal(err)
	}
	defs := schema.NewFieldDefinitions(model, all)
	rc.defs[model] = defs
	return defs, nil
}

// LoadFieldDefinitions reads every staged custom field definition
func LoadFieldDefinitions(ctx context.Context, staging Staging) ([]domain.CustomFieldDefinition, error) {
	var out []domain.CustomFieldDefinition
	after := ""
	for {
		page, err := staging.ListAfter(ctx, domain.EntityCustomFields, after, defaultPageSize)
		if err != nil {
			return nil, fmt.Errorf("failed to load custom field definitions: %w", err)
		}
		if len(page) == 0 {
			return out, nil
		}
		for _, doc := range page {
			out = append(out, domain.FieldDefinitionFromDocument(doc))
			after = doc.Key
		}
	}
}

// DealStage resolves the pipeline and stage new deals are created in:
// the configured stage, else the first open stage of the default pipeline.
func (rc *RunContext) DealStage(ctx context.Context) (pipeline, stage string, ok bool, err error) {
	if rc.Config.DealStage != "" {
		return rc.Config.Pipeline, rc.Config.DealStage, true, nil
	}
	if rc.Config.DryRun {
		return "", "", false, nil
	}
	if !rc.pipesReady {
		pipes, err := rc.dest.Pipelines(ctx, domain.ObjectDeal)
		if err != nil {
			return "", "", false, fmt.Errorf("failed to list deal pipelines: %w", err)
		}
		rc.pipelines = pipes
		rc.pipesReady = true
	}
	pipeline, stage, ok = hubspot.DefaultStage(rc.pipelines, rc.Config.Pipeline)
	return pipeline, stage, ok, nil
}

// CompanyProperties fetches properties of a migrated company, cached per run.
// Lookups are skipped in dry-run mode.
func (rc *RunContext) CompanyProperties(ctx context.Context, companyID string, names ...string) (map[string]string, error) {
	if rc.Config.DryRun || companyID == "" {
		return nil, nil
	}
	if props, ok := rc.companyProps[companyID]; ok {
		return props, nil
	}
	page, err := rc.dest.Search(ctx, domain.ObjectCompany, []hubspot.Filter{hubspot.Eq("hs_object_id", companyID)}, names, "")
	if err != nil {
		return nil, fmt.Errorf("failed to look up company %s: %w", companyID, err)
	}
	var props map[string]string
	if len(page.Results) > 0 {
		props = page.Results[0].Properties
	}
	rc.companyProps[companyID] = props
	return props, nil
}

// fieldLog returns the run logger tagged with a record id
func (rc *RunContext) fieldLog(doc domain.Document) *logrus.Entry {
	return rc.Log.WithField("ghl_id", doc.ID)
}

func outcomeLabel(reason domain.SkipReason) string {
	return "skipped_" + strings.ReplaceAll(string(reason), " ", "_")
}
