package migrate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/lherron/ghl2hs/internal/domain"
	"github.com/lherron/ghl2hs/internal/schema"
)

// MigratorFor returns the migrator of a stream's entity
func MigratorFor(cfg StreamConfig) (Migrator, error) {
	switch cfg.Entity {
	case domain.EntityContacts:
		return contactMigrator{}, nil
	case domain.EntityCompanies:
		return companyMigrator{}, nil
	case domain.EntityOpportunities:
		return opportunityMigrator{}, nil
	case domain.EntityCalendars:
		if cfg.CalendarObject == "" {
			return nil, &domain.ConfigError{Field: "calendar object", Reason: "is required to migrate calendars"}
		}
		return calendarMigrator{object: cfg.CalendarObject}, nil
	case domain.EntityAppointments:
		return appointmentMigrator{calendarObject: cfg.CalendarObject}, nil
	case domain.EntityConversations:
		return conversationMigrator{}, nil
	case domain.EntityNotes:
		return noteMigrator{}, nil
	}
	return nil, fmt.Errorf("no migrator for entity %q", cfg.Entity)
}

// customProperties shapes the custom field bag stored under any of fields
func customProperties(ctx context.Context, rc *RunContext, doc domain.Document, model string, object domain.ObjectType, fields ...string) (map[string]string, error) {
	values, defs, err := customValues(ctx, rc, doc, model, fields...)
	if err != nil || len(values) == 0 {
		return map[string]string{}, err
	}
	return schema.CustomFieldProperties(object, values, defs, rc.Rules()), nil
}

// customValues renames the custom fields stored under any of fields to their
// definition names. Definitions are only loaded when the record has custom
// fields.
func customValues(ctx context.Context, rc *RunContext, doc domain.Document, model string, fields ...string) (map[string]interface{}, schema.FieldDefinitions, error) {
	present := false
	for _, field := range fields {
		if doc.Value(field) != nil {
			present = true
		}
	}
	if !present {
		return nil, nil, nil
	}

	defs, err := rc.FieldDefinitions(ctx, model)
	if err != nil {
		return nil, nil, err
	}
	out := make(map[string]interface{})
	for _, field := range fields {
		for name, v := range schema.ShapeCustomFields(doc.Value(field), defs) {
			out[name] = v
		}
	}
	return out, defs, nil
}

func titleWords(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return ""
	}
	return cases.Title(language.Und).String(s)
}

// timestampOf reads the first parseable timestamp among paths
func timestampOf(doc domain.Document, paths ...string) (time.Time, bool) {
	for _, p := range paths {
		if t, ok := schema.ParseTime(doc.Value(p)); ok && !t.IsZero() {
			return t, true
		}
	}
	return time.Time{}, false
}

// hubspotTime is the millisecond timestamp form accepted by datetime properties
func hubspotTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

func mergeProps(dst, src map[string]string) {
	for k, v := range src {
		if _, exists := dst[k]; !exists {
			dst[k] = v
		}
	}
}
