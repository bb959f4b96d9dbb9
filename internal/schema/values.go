package schema

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lherron/ghl2hs/internal/domain"
)

// FieldDefinitions indexes custom field definitions by id and by field key
type FieldDefinitions map[string]domain.CustomFieldDefinition

// NewFieldDefinitions builds the index for one model ("contact", "opportunity", ...).
// An empty model keeps every definition.
func NewFieldDefinitions(model string, defs []domain.CustomFieldDefinition) FieldDefinitions {
	out := make(FieldDefinitions, len(defs)*2)
	for _, def := range defs {
		if model != "" && def.Model != "" && !strings.EqualFold(def.Model, model) {
			continue
		}
		if def.ID != "" {
			out[def.ID] = def
		}
		if def.FieldKey != "" {
			if _, exists := out[def.FieldKey]; !exists {
				out[def.FieldKey] = def
			}
		}
	}
	return out
}

// Lookup finds a definition by field id or field key
func (d FieldDefinitions) Lookup(id string) (domain.CustomFieldDefinition, bool) {
	def, ok := d[id]
	return def, ok
}

// Unique returns each definition once, ordered by id
func (d FieldDefinitions) Unique() []domain.CustomFieldDefinition {
	seen := make(map[string]bool, len(d))
	var out []domain.CustomFieldDefinition
	for _, def := range d {
		if seen[def.ID] {
			continue
		}
		seen[def.ID] = true
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ByName indexes the definitions by their trimmed name, the keys the shape
// functions produce. The lowest id wins when two definitions share a name.
func (d FieldDefinitions) ByName() map[string]domain.CustomFieldDefinition {
	out := make(map[string]domain.CustomFieldDefinition)
	for _, def := range d.Unique() {
		name := strings.TrimSpace(def.Name)
		if _, exists := out[name]; name != "" && !exists {
			out[name] = def
		}
	}
	return out
}

// ShapeCustomFieldValues renames a field-id keyed value bag to field names,
// falling back to the raw id for undefined fields. When two ids share a
// name the value of the greater id wins.
func ShapeCustomFieldValues(values map[string]interface{}, defs FieldDefinitions) map[string]interface{} {
	ids := make([]string, 0, len(values))
	for id := range values {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make(map[string]interface{}, len(values))
	for _, id := range ids {
		out[fieldName(id, defs)] = values[id]
	}
	return out
}

// ShapeCustomFieldArray applies the same renaming to the {id, value} array container
func ShapeCustomFieldArray(values []domain.CustomFieldValue, defs FieldDefinitions) map[string]interface{} {
	out := make(map[string]interface{}, len(values))
	for _, cf := range values {
		out[fieldName(cf.ID, defs)] = cf.Value
	}
	return out
}

func fieldName(id string, defs FieldDefinitions) string {
	if def, ok := defs.Lookup(id); ok && strings.TrimSpace(def.Name) != "" {
		return strings.TrimSpace(def.Name)
	}
	return id
}

// ShapeCustomFields renames a record's custom fields in either container
// shape: a map keyed by field id, or an array of {id, value}. Anything else
// yields nil.
func ShapeCustomFields(raw interface{}, defs FieldDefinitions) map[string]interface{} {
	switch v := raw.(type) {
	case map[string]interface{}:
		return ShapeCustomFieldValues(v, defs)
	case []interface{}:
		return ShapeCustomFieldArray(domain.CustomFieldArray(v), defs)
	}
	return nil
}

// shapedField resolves the definition behind one key of a shaped bag. Keys
// are definition names, or raw ids for fields without a name.
func shapedField(key string, byName map[string]domain.CustomFieldDefinition, defs FieldDefinitions) (domain.CustomFieldDefinition, bool) {
	if def, ok := byName[key]; ok {
		return def, true
	}
	return defs.Lookup(key)
}

// CustomFieldProperties turns a shaped custom field bag into destination
// property values for one object type. Rows of the rules table take
// precedence; other fields are named from their definition and formatted by
// its data type. Empty values are dropped.
func CustomFieldProperties(object domain.ObjectType, shaped map[string]interface{}, defs FieldDefinitions, rules FieldRules) map[string]string {
	props := make(map[string]string, len(shaped))
	byName := defs.ByName()

	keys := make([]string, 0, len(shaped))
	for key := range shaped {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		raw := shaped[key]
		def, known := shapedField(key, byName, defs)

		if matched := rules.Match(object, key, def); len(matched) > 0 {
			for _, rule := range matched {
				if v := rule.Apply(raw); v != "" {
					props[rule.Property] = v
				}
			}
			continue
		}

		var name, value string
		if known {
			name = MapFieldDefinitionToProperty(def, "").Name
			value = FormatValue(def, raw)
		} else {
			name = CustomPropertyName(key)
			value = strings.TrimSpace(domain.Stringify(raw))
		}
		if value != "" {
			props[name] = value
		}
	}
	return props
}

// RuleProperties applies only the rules table to a shaped custom field bag.
// Fields without a matching rule are ignored.
func RuleProperties(object domain.ObjectType, shaped map[string]interface{}, defs FieldDefinitions, rules FieldRules) map[string]string {
	props := make(map[string]string)
	byName := defs.ByName()
	for key, raw := range shaped {
		def, _ := shapedField(key, byName, defs)
		for _, rule := range rules.Match(object, key, def) {
			if v := rule.Apply(raw); v != "" {
				props[rule.Property] = v
			}
		}
	}
	return props
}

// FormatValue renders a raw source value into the destination wire form for
// the property derived from def.
func FormatValue(def domain.CustomFieldDefinition, raw interface{}) string {
	if raw == nil {
		return ""
	}
	switch kindOf(def) {
	case kindDate:
		if t, ok := ParseTime(raw); ok {
			return t.Format("2006-01-02")
		}
	case kindDatetime:
		if t, ok := ParseTime(raw); ok {
			return t.Format(time.RFC3339)
		}
	case kindNumber:
		return formatNumber(raw)
	case kindBoolean:
		if b, ok := parseBool(raw); ok {
			return strconv.FormatBool(b)
		}
		return ""
	case kindSelect, kindCheckbox:
		return formatOptions(def, raw)
	}
	return strings.TrimSpace(domain.Stringify(raw))
}

func formatOptions(def domain.CustomFieldDefinition, raw interface{}) string {
	values := optionValues(BuildOptions(def.PicklistOptions))

	var labels []string
	switch v := raw.(type) {
	case []interface{}:
		for _, item := range v {
			labels = append(labels, domain.Stringify(item))
		}
	case []string:
		labels = v
	default:
		labels = []string{domain.Stringify(v)}
	}

	out := make([]string, 0, len(labels))
	for _, label := range labels {
		label = strings.TrimSpace(label)
		if label == "" {
			continue
		}
		if value, ok := values[label]; ok {
			out = append(out, value)
		} else {
			out = append(out, OptionValue(label))
		}
	}
	return strings.Join(out, ";")
}

func formatNumber(raw interface{}) string {
	switch v := raw.(type) {
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case string:
		cleaned := strings.NewReplacer(",", "", "$", "", " ", "").Replace(v)
		if f, err := strconv.ParseFloat(cleaned, 64); err == nil {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
		return ""
	}
	return strings.TrimSpace(domain.Stringify(raw))
}

func parseBool(raw interface{}) (bool, bool) {
	switch v := raw.(type) {
	case bool:
		return v, true
	case []interface{}:
		return len(v) > 0, true
	}
	switch strings.ToLower(strings.TrimSpace(domain.Stringify(raw))) {
	case "true", "yes", "y", "1", "on", "checked":
		return true, true
	case "false", "no", "n", "0", "off", "":
		return false, true
	}
	return false, false
}

// ParseTime accepts ISO8601 strings and epoch milliseconds
func ParseTime(raw interface{}) (time.Time, bool) {
	switch v := raw.(type) {
	case json.Number:
		if ms, err := v.Int64(); err == nil {
			return time.UnixMilli(ms).UTC(), true
		}
	case float64:
		return time.UnixMilli(int64(v)).UTC(), true
	case int64:
		return time.UnixMilli(v).UTC(), true
	case string:
		if t, err := domain.ValidateTimestamp(v); err == nil {
			return t, true
		}
		if ms, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return time.UnixMilli(ms).UTC(), true
		}
	}
	return time.Time{}, false
}
