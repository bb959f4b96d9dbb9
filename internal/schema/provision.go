package schema

import (
	"context"
	"fmt"
	"sort"

	"github.com/pmezard/go-difflib/difflib"
	"gopkg.in/yaml.v3"

	"github.com/lherron/ghl2hs/internal/domain"
	"github.com/lherron/ghl2hs/internal/hubspot"
)

// PropertyAPI is the part of the destination client provisioning needs
type PropertyAPI interface {
	GetProperty(ctx context.Context, objectType domain.ObjectType, name string) (*domain.DestinationProperty, error)
	CreateProperty(ctx context.Context, objectType domain.ObjectType, prop domain.DestinationProperty) (*domain.DestinationProperty, error)
}

// PropertyChange is one planned difference against the destination
type PropertyChange struct {
	Name   string `json:"name"`
	Action string `json:"action"`
	Diff   string `json:"diff,omitempty"`
}

// Plan actions
const (
	ActionCreate    = "create"
	ActionUpdate    = "differs"
	ActionUnchanged = "unchanged"
)

// DesiredProperties maps every definition to its destination property,
// dropping later definitions whose slug collides with an earlier one.
func DesiredProperties(defs []domain.CustomFieldDefinition, group string) []domain.DestinationProperty {
	seen := make(map[string]bool, len(defs))
	out := make([]domain.DestinationProperty, 0, len(defs))
	for _, def := range defs {
		prop := MapFieldDefinitionToProperty(def, group)
		if seen[prop.Name] {
			continue
		}
		seen[prop.Name] = true
		out = append(out, prop)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Plan compares desired properties with the destination without changing anything
func Plan(ctx context.Context, api PropertyAPI, objectType domain.ObjectType, desired []domain.DestinationProperty) ([]PropertyChange, error) {
	changes := make([]PropertyChange, 0, len(desired))
	for _, want := range desired {
		have, err := api.GetProperty(ctx, objectType, want.Name)
		if err != nil {
			if hubspot.IsNotFound(err) {
				changes = append(changes, PropertyChange{Name: want.Name, Action: ActionCreate, Diff: diffProperties(nil, &want)})
				continue
			}
			return changes, fmt.Errorf("failed to get property %s: %w", want.Name, err)
		}
		if d := diffProperties(have, &want); d != "" {
			changes = append(changes, PropertyChange{Name: want.Name, Action: ActionUpdate, Diff: d})
		} else {
			changes = append(changes, PropertyChange{Name: want.Name, Action: ActionUnchanged})
		}
	}
	return changes, nil
}

// SyncResult counts the outcome of a sync
type SyncResult struct {
	Created  int `json:"created"`
	Existing int `json:"existing"`
}

// Sync creates every desired property that is absent. A 404 on lookup means
// create; a 409 on create means another writer got there first.
func Sync(ctx context.Context, api PropertyAPI, objectType domain.ObjectType, desired []domain.DestinationProperty) (SyncResult, error) {
	var res SyncResult
	for _, want := range desired {
		_, err := api.GetProperty(ctx, objectType, want.Name)
		if err == nil {
			res.Existing++
			continue
		}
		if !hubspot.IsNotFound(err) {
			return res, fmt.Errorf("failed to get property %s: %w", want.Name, err)
		}
		if _, err := api.CreateProperty(ctx, objectType, want); err != nil {
			if hubspot.IsConflict(err) {
				res.Existing++
				continue
			}
			return res, fmt.Errorf("failed to create property %s: %w", want.Name, err)
		}
		res.Created++
	}
	return res, nil
}

// comparable view of a property; the destination adds fields we never send
type propertyView struct {
	Name      string   `yaml:"name"`
	Label     string   `yaml:"label"`
	Type      string   `yaml:"type"`
	FieldType string   `yaml:"fieldType"`
	GroupName string   `yaml:"groupName"`
	Options   []string `yaml:"options,omitempty"`
}

func viewOf(p *domain.DestinationProperty) string {
	if p == nil {
		return ""
	}
	v := propertyView{Name: p.Name, Label: p.Label, Type: p.Type, FieldType: p.FieldType, GroupName: p.GroupName}
	for _, opt := range p.Options {
		v.Options = append(v.Options, opt.Value+" = "+opt.Label)
	}
	data, err := yaml.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

func diffProperties(have, want *domain.DestinationProperty) string {
	a, b := viewOf(have), viewOf(want)
	if a == b {
		return ""
	}
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(a),
		B:        difflib.SplitLines(b),
		FromFile: "destination",
		ToFile:   "desired",
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return ""
	}
	return text
}
