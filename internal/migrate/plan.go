package migrate

import (
	"context"
	"fmt"

	"github.com/lherron/ghl2hs/internal/domain"
)

// Migrator turns one source record into a creation plan. Implementations
// perform cross-reference resolution and property shaping only; the engine
// owns identity checks, creation, associations and checkpoints.
type Migrator interface {
	Entity() domain.EntityType
	// ObjectType is the destination object type a record maps to. It is
	// called before Plan so the identity map can be checked first.
	ObjectType(doc domain.Document) domain.ObjectType
	Plan(ctx context.Context, rc *RunContext, doc domain.Document) (*Plan, error)
}

// NestedMigrator is implemented by streams that iterate a child collection
// under each parent document, tracking a compound position. Children whose
// parent is not staged are never visited.
type NestedMigrator interface {
	Migrator
	ParentCollection() domain.EntityType
	ChildCollection() domain.EntityType
}

// Plan is everything needed to create one destination object
type Plan struct {
	ObjectType   domain.ObjectType
	Properties   map[string]string
	Associations []AssociationPlan
	Companion    *CompanionPlan

	// Skip marks the record as deliberately not created
	Skip   domain.SkipReason
	Detail string

	// Missing lists optional relations that could not be resolved. Each is
	// recorded as a "missing mapping" failure but creation still proceeds.
	Missing []string
}

// AssociationPlan links the created object to an already migrated one
type AssociationPlan struct {
	ToObjectType domain.ObjectType
	ToID         string
	Label        string
	Required     bool
}

// CompanionPlan is a second object created alongside the main one and
// identity-mapped under the same source id.
type CompanionPlan struct {
	ObjectType domain.ObjectType
	Properties map[string]string
	// Label and Required describe the association from the main object
	Label    string
	Required bool
}

// skip builds a plan that creates nothing
func skip(reason domain.SkipReason, format string, args ...interface{}) *Plan {
	return &Plan{Skip: reason, Detail: fmt.Sprintf(format, args...)}
}

// optionalAssociation appends an association when the related source record
// has been migrated, or notes the gap when it has not.
func (p *Plan) optionalAssociation(ctx context.Context, rc *RunContext, sourceID string, to domain.ObjectType) error {
	if sourceID == "" {
		return nil
	}
	destID, ok, err := rc.Mapping(ctx, sourceID, to)
	if err != nil {
		return err
	}
	if !ok {
		p.Missing = append(p.Missing, fmt.Sprintf("%s %s", to, sourceID))
		return nil
	}
	p.Associations = append(p.Associations, AssociationPlan{ToObjectType: to, ToID: destID})
	return nil
}

// setIf assigns a property when the value is non-empty
func setIf(props map[string]string, name, value string) {
	if value != "" {
		props[name] = value
	}
}
