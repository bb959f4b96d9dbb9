package migrate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lherron/ghl2hs/internal/domain"
	"github.com/lherron/ghl2hs/internal/hubspot"
)

// ErrNoAssociationType is returned when no association type links two object types
var ErrNoAssociationType = errors.New("no association type")

// ResolveAssociationType picks the association type from one object type to
// another. A descriptor whose label matches preferredLabel wins; otherwise
// the platform-defined default is used. Lookups are cached per run.
func (rc *RunContext) ResolveAssociationType(ctx context.Context, from, to domain.ObjectType, preferredLabel string) (hubspot.AssociationType, error) {
	key := assocKey{from: from, to: to}
	types, ok := rc.assocTypes[key]
	if !ok {
		var err error
		types, err = rc.dest.AssociationLabels(ctx, from, to)
		if err != nil {
			return hubspot.AssociationType{}, fmt.Errorf("failed to look up %s->%s association types: %w", from, to, err)
		}
		rc.assocTypes[key] = types
	}

	t, ok := selectAssociationType(types, preferredLabel)
	if !ok {
		return hubspot.AssociationType{}, fmt.Errorf("%w from %s to %s", ErrNoAssociationType, from, to)
	}
	return t, nil
}

func selectAssociationType(types []hubspot.AssociationType, preferredLabel string) (hubspot.AssociationType, bool) {
	if preferredLabel != "" {
		for _, t := range types {
			if strings.EqualFold(strings.TrimSpace(t.Label), preferredLabel) {
				return t, true
			}
		}
	}
	var first *hubspot.AssociationType
	for i, t := range types {
		if t.Category != hubspot.CategoryHubSpotDefined {
			continue
		}
		if t.Label == "" {
			return t, true
		}
		if first == nil {
			first = &types[i]
		}
	}
	if first != nil {
		return *first, true
	}
	return hubspot.AssociationType{}, false
}
