package domain

import (
	"time"
)

// EntityType names a source entity and its staging collection
type EntityType string

const (
	EntityContacts      EntityType = "contacts"
	EntityCompanies     EntityType = "companies"
	EntityOpportunities EntityType = "opportunities"
	EntityCalendars     EntityType = "calendars"
	EntityAppointments  EntityType = "appointments"
	EntityConversations EntityType = "conversations"
	EntityMessages      EntityType = "messages"
	EntityNotes         EntityType = "notes"
	EntityCustomFields  EntityType = "custom_fields"
)

// ObjectType names a destination object type. Standard CRM objects use
// their singular name; custom objects use the portal's object type id.
type ObjectType string

const (
	ObjectContact ObjectType = "contact"
	ObjectCompany ObjectType = "company"
	ObjectDeal    ObjectType = "deal"
	ObjectMeeting ObjectType = "meeting"
	ObjectNote    ObjectType = "note"
	ObjectEmail   ObjectType = "email"
	ObjectCall    ObjectType = "call"
)

// APIName returns the path segment used by the destination object API
func (o ObjectType) APIName() string {
	switch o {
	case ObjectCompany:
		return "companies"
	case ObjectContact, ObjectDeal, ObjectMeeting, ObjectNote, ObjectEmail, ObjectCall:
		return string(o) + "s"
	default:
		return string(o)
	}
}

// SkipReason is the reason recorded when a record is deliberately not created
type SkipReason string

const (
	SkipMissingEmail     SkipReason = "missing email"
	SkipMissingStage     SkipReason = "missing dealstage"
	SkipMissingMapping   SkipReason = "missing mapping"
	SkipEmptyBody        SkipReason = "empty body"
	SkipMissingName      SkipReason = "missing name"
	SkipMissingTimestamp SkipReason = "missing timestamp"
)

// IdentityMapping links a source record to the destination object created for it.
// Unique on (SourceID, ObjectType).
type IdentityMapping struct {
	SourceID      string     `json:"ghlId" bson:"ghlId"`
	DestinationID string     `json:"hubspotId" bson:"hubspotId"`
	ObjectType    ObjectType `json:"objectTypeId" bson:"objectTypeId"`
	CreatedAt     time.Time  `json:"createdAt" bson:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt" bson:"updatedAt"`
}

// Checkpoint is the durable cursor of one migration stream.
// LastSubKey is set only by streams that iterate nested collections.
type Checkpoint struct {
	StreamID   string         `json:"streamId" bson:"_id"`
	EntityType EntityType     `json:"entityType" bson:"entityType"`
	LastKey    string         `json:"lastKey" bson:"lastKey"`
	LastSubKey string         `json:"lastSubKey,omitempty" bson:"lastSubKey,omitempty"`
	Counters   map[string]int `json:"counters,omitempty" bson:"counters,omitempty"`
	UpdatedAt  time.Time      `json:"updatedAt" bson:"updatedAt"`
}

// FailureRecord is kept for manual triage, keyed by (EntityType, SourceID)
type FailureRecord struct {
	EntityType EntityType `json:"entityType" bson:"entityType"`
	SourceID   string     `json:"ghlId" bson:"ghlId"`
	Reason     string     `json:"reason" bson:"reason"`
	Detail     string     `json:"detail,omitempty" bson:"detail,omitempty"`
	Timestamp  time.Time  `json:"timestamp" bson:"timestamp"`
}

// ResetResult reports what an explicit stream reset removed
type ResetResult struct {
	Mappings    int64 `json:"mappings"`
	Failures    int64 `json:"failures"`
	Checkpoints int64 `json:"checkpoints"`
}

// StreamStatus summarizes persisted progress for one entity
type StreamStatus struct {
	EntityType  EntityType    `json:"entityType"`
	Documents   int64         `json:"documents"`
	Mappings    int64         `json:"mappings"`
	Failures    int64         `json:"failures"`
	Checkpoints []*Checkpoint `json:"checkpoints,omitempty"`
}

// CustomFieldDefinition describes a source-defined custom field
type CustomFieldDefinition struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	FieldKey        string   `json:"fieldKey,omitempty"`
	DataType        string   `json:"dataType"`
	Model           string   `json:"model"`
	PicklistOptions []string `json:"picklistOptions,omitempty"`
}

// CustomFieldValue is the array-shaped custom field container used by opportunities
type CustomFieldValue struct {
	ID    string
	Value interface{}
}

// DestinationProperty is a destination property definition
type DestinationProperty struct {
	Name      string           `json:"name"`
	Label     string           `json:"label"`
	Type      string           `json:"type"`
	FieldType string           `json:"fieldType"`
	GroupName string           `json:"groupName"`
	Options   []PropertyOption `json:"options,omitempty"`
}

// PropertyOption is one enumeration value of a destination property
type PropertyOption struct {
	Label        string `json:"label"`
	Value        string `json:"value"`
	DisplayOrder int    `json:"displayOrder"`
}
