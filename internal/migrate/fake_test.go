package migrate

import (
	"context"
	"fmt"
	"sync"

	"github.com/lherron/ghl2hs/internal/domain"
	"github.com/lherron/ghl2hs/internal/hubspot"
)

type createCall struct {
	ObjectType domain.ObjectType
	Properties map[string]string
}

type associateCall struct {
	From, To     domain.ObjectType
	FromID, ToID string
	Type         hubspot.AssociationType
}

// fakeDestination records every call and hands out sequential ids
type fakeDestination struct {
	mu sync.Mutex

	nextID     int
	creates    []createCall
	associates []associateCall
	searches   int
	labelCalls int
	pipeCalls  int

	pipelines []hubspot.Pipeline
	labels    map[string][]hubspot.AssociationType
	objects   map[string]map[string]string

	// failCreate returns an error for objects whose property matches
	failCreate func(domain.ObjectType, map[string]string) error
}

func newFakeDestination() *fakeDestination {
	return &fakeDestination{
		nextID:  100,
		objects: make(map[string]map[string]string),
		labels: map[string][]hubspot.AssociationType{
			"contact->company": {
				{Category: hubspot.CategoryHubSpotDefined, TypeID: 279},
				{Category: hubspot.CategoryHubSpotDefined, TypeID: 1, Label: "Primary"},
			},
		},
	}
}

func (f *fakeDestination) CreateObject(_ context.Context, objectType domain.ObjectType, properties map[string]string) (*hubspot.Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	props := make(map[string]string, len(properties))
	for k, v := range properties {
		props[k] = v
	}
	f.creates = append(f.creates, createCall{ObjectType: objectType, Properties: props})
	if f.failCreate != nil {
		if err := f.failCreate(objectType, props); err != nil {
			return nil, err
		}
	}
	f.nextID++
	id := fmt.Sprintf("%d", f.nextID)
	f.objects[id] = props
	return &hubspot.Object{ID: id, Properties: props}, nil
}

func (f *fakeDestination) Search(_ context.Context, _ domain.ObjectType, filters []hubspot.Filter, _ []string, _ string) (*hubspot.SearchPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches++
	page := &hubspot.SearchPage{}
	for _, flt := range filters {
		if flt.PropertyName == "hs_object_id" {
			if props, ok := f.objects[flt.Value]; ok {
				page.Results = append(page.Results, hubspot.Object{ID: flt.Value, Properties: props})
			}
		}
	}
	page.Total = len(page.Results)
	return page, nil
}

func (f *fakeDestination) AssociationLabels(_ context.Context, from, to domain.ObjectType) ([]hubspot.AssociationType, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.labelCalls++
	if types, ok := f.labels[string(from)+"->"+string(to)]; ok {
		return types, nil
	}
	return []hubspot.AssociationType{{Category: hubspot.CategoryHubSpotDefined, TypeID: 999}}, nil
}

func (f *fakeDestination) Associate(_ context.Context, from domain.ObjectType, fromID string, to domain.ObjectType, toID string, types ...hubspot.AssociationType) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	call := associateCall{From: from, To: to, FromID: fromID, ToID: toID}
	if len(types) > 0 {
		call.Type = types[0]
	}
	f.associates = append(f.associates, call)
	return nil
}

func (f *fakeDestination) Pipelines(_ context.Context, _ domain.ObjectType) ([]hubspot.Pipeline, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pipeCalls++
	return f.pipelines, nil
}

func (f *fakeDestination) createsOf(objectType domain.ObjectType) []createCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []createCall
	for _, c := range f.creates {
		if c.ObjectType == objectType {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeDestination) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.creates) + len(f.associates) + f.searches + f.labelCalls + f.pipeCalls
}
