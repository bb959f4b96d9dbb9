package domain

import (
	"reflect"
	"testing"
)

func TestObjectTypeAPIName(t *testing.T) {
	tests := []struct {
		obj  ObjectType
		want string
	}{
		{ObjectContact, "contacts"},
		{ObjectCompany, "companies"},
		{ObjectDeal, "deals"},
		{ObjectMeeting, "meetings"},
		{ObjectNote, "notes"},
		{ObjectEmail, "emails"},
		{ObjectCall, "calls"},
		{ObjectType("2-1234567"), "2-1234567"},
	}

	for _, tt := range tests {
		t.Run(string(tt.obj), func(t *testing.T) {
			if got := tt.obj.APIName(); got != tt.want {
				t.Errorf("APIName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeDocument(t *testing.T) {
	doc, err := DecodeDocument([]byte(`{"id":"c1","email":" A@B.com ","contact":{"id":"x9"},"tags":["a",""," b"],"type":3}`))
	if err != nil {
		t.Fatalf("DecodeDocument() unexpected error: %v", err)
	}
	if doc.ID != "c1" {
		t.Errorf("ID = %q, want c1", doc.ID)
	}
	if got := doc.Str("email"); got != "A@B.com" {
		t.Errorf("Str(email) = %q", got)
	}
	if got := doc.Str("contact.id"); got != "x9" {
		t.Errorf("Str(contact.id) = %q", got)
	}
	if got := doc.Strings("tags"); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("Strings(tags) = %v", got)
	}
	if n, ok := doc.Int("type"); !ok || n != 3 {
		t.Errorf("Int(type) = %d, %v", n, ok)
	}
	if _, ok := doc.Int("missing"); ok {
		t.Error("Int(missing) should not be ok")
	}
	if got := doc.FirstStr("missing", "contact.id"); got != "x9" {
		t.Errorf("FirstStr() = %q", got)
	}
}

func TestDecodeDocumentRejectsNonObject(t *testing.T) {
	for _, input := range []string{`[1,2]`, `null`, `"x"`, `{`} {
		if _, err := DecodeDocument([]byte(input)); err == nil {
			t.Errorf("DecodeDocument(%s) expected error", input)
		}
	}
}

func TestStringify(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		want string
	}{
		{"nil", nil, ""},
		{"float", 12.5, "12.5"},
		{"whole float", float64(1700000000000), "1700000000000"},
		{"bool", true, "true"},
		{"list", []interface{}{"a", nil, "b"}, "a;b"},
		{"object", map[string]interface{}{"k": "v"}, `{"k":"v"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Stringify(tt.in); got != tt.want {
				t.Errorf("Stringify() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCustomFieldArray(t *testing.T) {
	raw := []interface{}{
		map[string]interface{}{"id": "f1", "fieldValue": "x"},
		map[string]interface{}{"id": "f2", "value": 3.0},
		map[string]interface{}{"value": "orphan"},
		"junk",
	}
	got := CustomFieldArray(raw)
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].ID != "f1" || got[0].Value != "x" {
		t.Errorf("first entry = %+v", got[0])
	}
	if got[1].ID != "f2" || got[1].Value != 3.0 {
		t.Errorf("second entry = %+v", got[1])
	}
}

func TestFieldDefinitionFromDocument(t *testing.T) {
	doc := NewDocument(map[string]interface{}{
		"id":              "cf1",
		"name":            "Preferred Language",
		"dataType":        "single_options",
		"model":           "contact",
		"picklistOptions": []interface{}{"English", "Spanish"},
	})
	def := FieldDefinitionFromDocument(doc)
	if def.DataType != "SINGLE_OPTIONS" {
		t.Errorf("DataType = %q", def.DataType)
	}
	if !reflect.DeepEqual(def.PicklistOptions, []string{"English", "Spanish"}) {
		t.Errorf("PicklistOptions = %v", def.PicklistOptions)
	}
}
