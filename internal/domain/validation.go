package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned by staging lookups that find nothing
var ErrNotFound = errors.New("not found")

// MigratableEntities lists the streams that can be migrated, in dependency order
var MigratableEntities = []EntityType{
	EntityContacts,
	EntityCompanies,
	EntityOpportunities,
	EntityCalendars,
	EntityAppointments,
	EntityConversations,
	EntityNotes,
}

// StagedEntities lists every staging collection
var StagedEntities = []EntityType{
	EntityContacts,
	EntityCompanies,
	EntityOpportunities,
	EntityCalendars,
	EntityAppointments,
	EntityConversations,
	EntityMessages,
	EntityNotes,
	EntityCustomFields,
}

// ValidateEntityType validates a migratable stream name
func ValidateEntityType(s string) (EntityType, error) {
	for _, e := range MigratableEntities {
		if string(e) == s {
			return e, nil
		}
	}
	return "", fmt.Errorf("invalid entity: must be one of: %s", joinEntities(MigratableEntities))
}

// ValidateStagedEntity validates a staging collection name
func ValidateStagedEntity(s string) (EntityType, error) {
	for _, e := range StagedEntities {
		if string(e) == s {
			return e, nil
		}
	}
	return "", fmt.Errorf("invalid collection: must be one of: %s", joinEntities(StagedEntities))
}

func joinEntities(entities []EntityType) string {
	names := make([]string, len(entities))
	for i, e := range entities {
		names[i] = string(e)
	}
	return strings.Join(names, ", ")
}

// ValidateTimestamp validates and parses an ISO8601 timestamp. Source
// exports mix RFC3339 with and without fractional seconds, and bare dates.
func ValidateTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp format: expected ISO8601/RFC3339")
}

// ConfigError is a fatal configuration problem detected before any stream starts
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %s %s", e.Field, e.Reason)
}

// IsConfigError reports whether err is a ConfigError
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
