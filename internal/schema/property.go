package schema

import (
	"strconv"
	"strings"

	"github.com/lherron/ghl2hs/internal/domain"
)

// DefaultGroup is the property group custom fields are provisioned into
const DefaultGroup = "ghl_custom_fields"

// CustomNamespace prefixes custom property names that would otherwise land
// on a property the migrators write themselves
const CustomNamespace = "ghl"

// reservedProperties are written by the entity migrators. Names under the
// hs_ and ghl_ prefixes are reserved as well.
var reservedProperties = map[string]bool{
	"address": true, "amount": true, "city": true, "closedate": true,
	"company": true, "country": true, "dealname": true, "dealstage": true,
	"description": true, "domain": true, "email": true, "firstname": true,
	"lastname": true, "name": true, "phone": true, "pipeline": true,
	"state": true, "website": true, "zip": true,
}

// CustomPropertyName names the destination property of a custom field label.
// A name that collides with a reserved property is namespaced.
func CustomPropertyName(label string) string {
	name := PropertyNameFromLabel(label)
	if reservedProperties[name] || strings.HasPrefix(name, "hs_") || strings.HasPrefix(name, CustomNamespace+"_") {
		return NamespacedPropertyName(CustomNamespace, label)
	}
	return name
}

type propertyKind struct {
	Type      string
	FieldType string
}

var (
	kindText     = propertyKind{Type: "string", FieldType: "text"}
	kindTextarea = propertyKind{Type: "string", FieldType: "textarea"}
	kindNumber   = propertyKind{Type: "number", FieldType: "number"}
	kindDate     = propertyKind{Type: "date", FieldType: "date"}
	kindDatetime = propertyKind{Type: "datetime", FieldType: "date"}
	kindSelect   = propertyKind{Type: "enumeration", FieldType: "select"}
	kindCheckbox = propertyKind{Type: "enumeration", FieldType: "checkbox"}
	kindPhone    = propertyKind{Type: "string", FieldType: "phonenumber"}
	kindFile     = propertyKind{Type: "string", FieldType: "file"}
	kindBoolean  = propertyKind{Type: "enumeration", FieldType: "booleancheckbox"}
)

const booleanDataType = "BOOLEAN"

// dataTypes maps source field data types to destination property kinds.
// Anything absent maps to a single-line text property.
var dataTypes = map[string]propertyKind{
	"TEXT":             kindText,
	"LARGE_TEXT":       kindTextarea,
	"TEXTBOX_LIST":     kindTextarea,
	"NUMERICAL":        kindNumber,
	"MONETORY":         kindNumber,
	"MONETARY":         kindNumber,
	"DATE":             kindDate,
	"DATETIME":         kindDatetime,
	"SINGLE_OPTIONS":   kindSelect,
	"RADIO":            kindSelect,
	"MULTIPLE_OPTIONS": kindCheckbox,
	"CHECKBOX":         kindCheckbox,
	"PHONE":            kindPhone,
	"EMAIL":            kindText,
	"FILE_UPLOAD":      kindFile,
	"BOOLEAN":          kindBoolean,
	"TOGGLE":           kindBoolean,
}

// effectiveDataType resolves the data type a definition is mapped as.
// A checkbox without picklist options is a single boolean tick box.
func effectiveDataType(def domain.CustomFieldDefinition) string {
	dt := strings.ToUpper(strings.TrimSpace(def.DataType))
	if dt == "TOGGLE" || (dt == "CHECKBOX" && len(def.PicklistOptions) == 0) {
		return booleanDataType
	}
	return dt
}

func kindOf(def domain.CustomFieldDefinition) propertyKind {
	if k, ok := dataTypes[effectiveDataType(def)]; ok {
		return k
	}
	return kindText
}

// MapFieldDefinitionToProperty derives the destination property for a source
// custom field definition. The result is deterministic for a given input.
func MapFieldDefinitionToProperty(def domain.CustomFieldDefinition, group string) domain.DestinationProperty {
	if group == "" {
		group = DefaultGroup
	}
	label := strings.TrimSpace(def.Name)
	if label == "" {
		label = def.ID
	}

	kind := kindOf(def)
	prop := domain.DestinationProperty{
		Name:      CustomPropertyName(label),
		Label:     label,
		Type:      kind.Type,
		FieldType: kind.FieldType,
		GroupName: group,
	}

	switch kind {
	case kindBoolean:
		prop.Options = []domain.PropertyOption{
			{Label: "True", Value: "true", DisplayOrder: 0},
			{Label: "False", Value: "false", DisplayOrder: 1},
		}
	case kindSelect, kindCheckbox:
		prop.Options = BuildOptions(def.PicklistOptions)
	}
	return prop
}

// BuildOptions turns picklist labels into enumeration options. Labels whose
// values collide get a numeric suffix in order of appearance: the second
// "A-B" after "A B" becomes "a_b_2".
func BuildOptions(labels []string) []domain.PropertyOption {
	seen := make(map[string]bool, len(labels))
	options := make([]domain.PropertyOption, 0, len(labels))
	for _, raw := range labels {
		label := strings.TrimSpace(raw)
		if label == "" {
			continue
		}
		base := OptionValue(label)
		value := base
		for n := 2; seen[value]; n++ {
			value = base + "_" + strconv.Itoa(n)
		}
		seen[value] = true
		options = append(options, domain.PropertyOption{
			Label:        label,
			Value:        value,
			DisplayOrder: len(options),
		})
	}
	return options
}

// optionValues indexes the options of a property by label
func optionValues(options []domain.PropertyOption) map[string]string {
	m := make(map[string]string, len(options))
	for _, opt := range options {
		if _, ok := m[opt.Label]; !ok {
			m[opt.Label] = opt.Value
		}
	}
	return m
}
