package schema

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lherron/ghl2hs/internal/domain"
)

// Transform names the value conversion a field rule applies
type Transform string

const (
	TransformIdentity  Transform = "identity"
	TransformDate      Transform = "date_iso8601"
	TransformLocale    Transform = "locale"
	TransformEnumLabel Transform = "enum_label"
)

// FieldRule routes one known source field to a fixed destination property
type FieldRule struct {
	SourceFieldID string            `yaml:"source_field_id"`
	Object        domain.ObjectType `yaml:"object"`
	Property      string            `yaml:"property"`
	Transform     Transform         `yaml:"transform"`
}

// FieldRules is an ordered rules table. A source field may feed several
// objects (the contact's apex id lands on both the contact and its company).
type FieldRules []FieldRule

// FieldRulesVersion identifies the built-in table below. Bump it whenever a
// row is added, removed or changed.
const FieldRulesVersion = 3

// DefaultFieldRules is the built-in table. Source field ids match either the
// field's id or its field key.
var DefaultFieldRules = FieldRules{
	{SourceFieldID: "contact.preferred_language", Object: domain.ObjectContact, Property: "hs_language", Transform: TransformLocale},
	{SourceFieldID: "contact.date_of_birth", Object: domain.ObjectContact, Property: "date_of_birth", Transform: TransformDate},
	{SourceFieldID: "contact.lead_source", Object: domain.ObjectContact, Property: "ghl_lead_source", Transform: TransformEnumLabel},
	{SourceFieldID: "contact.service_interest", Object: domain.ObjectContact, Property: "service_interest", Transform: TransformEnumLabel},
	{SourceFieldID: "contact.apex_id", Object: domain.ObjectContact, Property: "apex_id", Transform: TransformIdentity},
	{SourceFieldID: "contact.apex_id", Object: domain.ObjectCompany, Property: "apex_id", Transform: TransformIdentity},
	{SourceFieldID: "contact.company_website", Object: domain.ObjectCompany, Property: "domain", Transform: TransformIdentity},
	{SourceFieldID: "contact.industry", Object: domain.ObjectCompany, Property: "ghl_industry", Transform: TransformEnumLabel},
	{SourceFieldID: "opportunity.close_date", Object: domain.ObjectDeal, Property: "closedate", Transform: TransformDate},
	{SourceFieldID: "opportunity.lead_source", Object: domain.ObjectDeal, Property: "ghl_lead_source", Transform: TransformEnumLabel},
	{SourceFieldID: "opportunity.service_type", Object: domain.ObjectDeal, Property: "service_type", Transform: TransformEnumLabel},
	{SourceFieldID: "opportunity.preferred_language", Object: domain.ObjectDeal, Property: "deal_language", Transform: TransformLocale},
}

// Match returns the rules for a field id, also trying the definition's id and key
func (r FieldRules) Match(object domain.ObjectType, id string, def domain.CustomFieldDefinition) []FieldRule {
	var out []FieldRule
	for _, rule := range r {
		if rule.Object != object {
			continue
		}
		if rule.SourceFieldID == id ||
			(def.ID != "" && rule.SourceFieldID == def.ID) ||
			(def.FieldKey != "" && rule.SourceFieldID == def.FieldKey) {
			out = append(out, rule)
		}
	}
	return out
}

// Apply converts a raw value; an empty result means "omit the property"
func (rule FieldRule) Apply(raw interface{}) string {
	s := strings.TrimSpace(domain.Stringify(raw))
	if s == "" {
		return ""
	}
	switch rule.Transform {
	case TransformDate:
		if t, ok := ParseTime(raw); ok {
			return t.Format(time.RFC3339)
		}
		return ""
	case TransformLocale:
		return LocaleCode(s)
	case TransformEnumLabel:
		return EnumLabel(s)
	default:
		return s
	}
}

// LocaleCode maps a language label to the destination's locale code
func LocaleCode(label string) string {
	switch strings.ToLower(foldDiacritics(strings.TrimSpace(label))) {
	case "spanish", "espanol", "es":
		return "es"
	default:
		return "en"
	}
}

// EnumLabel normalizes an enumeration label: trim, lowercase, and collapse
// every run of non-alphanumerics to a single underscore.
func EnumLabel(label string) string {
	s := strings.ToLower(strings.TrimSpace(label))
	var b strings.Builder
	inRun := false
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			inRun = false
			continue
		}
		if !inRun {
			b.WriteByte('_')
			inRun = true
		}
	}
	return b.String()
}

// Validate checks every row names a known transform and a target
func (r FieldRules) Validate() error {
	for i, rule := range r {
		if rule.SourceFieldID == "" || rule.Property == "" || rule.Object == "" {
			return fmt.Errorf("field rule %d: source_field_id, object and property are required", i)
		}
		switch rule.Transform {
		case TransformIdentity, TransformDate, TransformLocale, TransformEnumLabel:
		default:
			return fmt.Errorf("field rule %d: unknown transform %q", i, rule.Transform)
		}
	}
	return nil
}

// LoadFieldRules reads additional rows from a YAML file and appends them to
// the built-in table.
func LoadFieldRules(path string) (FieldRules, error) {
	rules := append(FieldRules(nil), DefaultFieldRules...)
	if path == "" {
		return rules, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read field rules: %w", err)
	}
	var extra FieldRules
	if err := yaml.Unmarshal(data, &extra); err != nil {
		return nil, fmt.Errorf("failed to parse field rules %s: %w", path, err)
	}
	for i := range extra {
		if extra[i].Transform == "" {
			extra[i].Transform = TransformIdentity
		}
	}
	if err := extra.Validate(); err != nil {
		return nil, err
	}
	return append(rules, extra...), nil
}
