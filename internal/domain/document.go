package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Document is a source record staged verbatim. Key is the staging store's
// insertion-order surrogate key; ID is the stable source identifier.
type Document struct {
	Key      string
	ID       string
	ParentID string
	Body     map[string]interface{}
}

// NewDocument builds a document from a decoded JSON object, taking ID from its "id" field
func NewDocument(body map[string]interface{}) Document {
	doc := Document{Body: body}
	doc.ID = doc.Str("id")
	return doc
}

// DecodeDocument parses a JSON object into a document
func DecodeDocument(data []byte) (Document, error) {
	var body map[string]interface{}
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		return Document{}, fmt.Errorf("invalid document: %w", err)
	}
	if body == nil {
		return Document{}, fmt.Errorf("invalid document: not a JSON object")
	}
	return NewDocument(body), nil
}

// Value walks a dotted path through nested objects
func (d Document) Value(path string) interface{} {
	return lookup(d.Body, path)
}

// Str returns the value at path rendered as a trimmed string, or "" when absent
func (d Document) Str(path string) string {
	return strings.TrimSpace(Stringify(d.Value(path)))
}

// FirstStr returns the first non-empty string among the given paths
func (d Document) FirstStr(paths ...string) string {
	for _, p := range paths {
		if s := d.Str(p); s != "" {
			return s
		}
	}
	return ""
}

// Int returns the value at path as an integer
func (d Document) Int(path string) (int64, bool) {
	switch v := d.Value(path).(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, true
		}
		if f, err := v.Float64(); err == nil {
			return int64(f), true
		}
	case float64:
		return int64(v), true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case string:
		if i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return i, true
		}
	}
	return 0, false
}

// Strings returns the value at path as a string slice
func (d Document) Strings(path string) []string {
	switch v := d.Value(path).(type) {
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s := strings.TrimSpace(Stringify(item)); s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return v
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	}
	return nil
}

// Map returns the nested object at path
func (d Document) Map(path string) map[string]interface{} {
	m, _ := d.Value(path).(map[string]interface{})
	return m
}

// JSON encodes the document body
func (d Document) JSON() ([]byte, error) {
	return json.Marshal(d.Body)
}

func lookup(m map[string]interface{}, path string) interface{} {
	if m == nil {
		return nil
	}
	if v, ok := m[path]; ok {
		return v
	}
	head, rest, found := strings.Cut(path, ".")
	if !found {
		return nil
	}
	child, ok := m[head].(map[string]interface{})
	if !ok {
		return nil
	}
	return lookup(child, rest)
}

// Stringify renders a loosely-typed JSON value as a string
func Stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case []interface{}:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s := Stringify(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ";")
	case []string:
		return strings.Join(t, ";")
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(data)
	}
}

// FieldDefinitionFromDocument reads a custom field definition staged in the custom_fields collection
func FieldDefinitionFromDocument(doc Document) CustomFieldDefinition {
	def := CustomFieldDefinition{
		ID:       doc.ID,
		Name:     doc.Str("name"),
		FieldKey: doc.Str("fieldKey"),
		DataType: strings.ToUpper(doc.Str("dataType")),
		Model:    doc.Str("model"),
	}
	def.PicklistOptions = doc.Strings("picklistOptions")
	return def
}

// CustomFieldArray reads an array of {id, value} entries. Both "value" and
// "fieldValue" keys are accepted.
func CustomFieldArray(v interface{}) []CustomFieldValue {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]CustomFieldValue, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		id := strings.TrimSpace(Stringify(m["id"]))
		if id == "" {
			continue
		}
		value, ok := m["value"]
		if !ok {
			value = m["fieldValue"]
		}
		out = append(out, CustomFieldValue{ID: id, Value: value})
	}
	return out
}

// ParentField names the body field that links a nested collection to its parent
func ParentField(collection EntityType) string {
	switch collection {
	case EntityMessages:
		return "conversationId"
	case EntityNotes:
		return "contactId"
	}
	return ""
}
