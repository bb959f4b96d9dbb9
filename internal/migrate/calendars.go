package migrate

import (
	"context"
	"strconv"
	"strings"

	"github.com/lherron/ghl2hs/internal/domain"
)

// calendarMigrator creates calendars as records of a portal custom object
type calendarMigrator struct {
	object domain.ObjectType
}

func (calendarMigrator) Entity() domain.EntityType { return domain.EntityCalendars }

func (m calendarMigrator) ObjectType(domain.Document) domain.ObjectType { return m.object }

func (m calendarMigrator) Plan(_ context.Context, _ *RunContext, doc domain.Document) (*Plan, error) {
	name := strings.TrimSpace(doc.Str("name"))
	if name == "" {
		return skip(domain.SkipMissingName, "calendar %s has no name", doc.ID), nil
	}

	props := map[string]string{
		"name":            name,
		"ghl_calendar_id": doc.ID,
	}
	setIf(props, "description", doc.Str("description"))
	setIf(props, "calendar_type", doc.Str("calendarType"))
	setIf(props, "slug", doc.Str("slug"))
	setIf(props, "widget_slug", doc.Str("widgetSlug"))
	if active, ok := doc.Value("isActive").(bool); ok {
		props["is_active"] = strconv.FormatBool(active)
	}

	return &Plan{ObjectType: m.object, Properties: props}, nil
}
