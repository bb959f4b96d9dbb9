package domain

import (
	"fmt"
	"testing"
	"time"
)

func TestValidateEntityType(t *testing.T) {
	tests := []struct {
		name    string
		entity  string
		wantErr bool
	}{
		{name: "contacts", entity: "contacts", wantErr: false},
		{name: "opportunities", entity: "opportunities", wantErr: false},
		{name: "conversations", entity: "conversations", wantErr: false},
		{name: "notes", entity: "notes", wantErr: false},
		{name: "messages not a stream", entity: "messages", wantErr: true},
		{name: "custom fields not a stream", entity: "custom_fields", wantErr: true},
		{name: "singular", entity: "contact", wantErr: true},
		{name: "uppercase", entity: "CONTACTS", wantErr: true},
		{name: "empty", entity: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateEntityType(tt.entity)
			if tt.wantErr && err == nil {
				t.Error("ValidateEntityType() expected error, got nil")
			}
			if !tt.wantErr {
				if err != nil {
					t.Errorf("ValidateEntityType() unexpected error: %v", err)
				}
				if string(got) != tt.entity {
					t.Errorf("ValidateEntityType() = %q, want %q", got, tt.entity)
				}
			}
		})
	}
}

func TestValidateStagedEntity(t *testing.T) {
	for _, name := range []string{"messages", "custom_fields", "contacts"} {
		if _, err := ValidateStagedEntity(name); err != nil {
			t.Errorf("ValidateStagedEntity(%q) unexpected error: %v", name, err)
		}
	}
	if _, err := ValidateStagedEntity("tasks"); err == nil {
		t.Error("ValidateStagedEntity(tasks) expected error, got nil")
	}
}

func TestValidateTimestamp(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{name: "rfc3339", input: "2024-03-01T10:20:30Z", want: time.Date(2024, 3, 1, 10, 20, 30, 0, time.UTC)},
		{name: "fractional", input: "2024-03-01T10:20:30.500Z", want: time.Date(2024, 3, 1, 10, 20, 30, 500000000, time.UTC)},
		{name: "offset", input: "2024-03-01T12:20:30+02:00", want: time.Date(2024, 3, 1, 10, 20, 30, 0, time.UTC)},
		{name: "bare date", input: "2024-03-01", want: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{name: "garbage", input: "yesterday", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateTimestamp(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Error("ValidateTimestamp() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateTimestamp() unexpected error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ValidateTimestamp() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConfigError(t *testing.T) {
	err := fmt.Errorf("startup: %w", &ConfigError{Field: "HUBSPOT_TOKEN", Reason: "is required"})
	if !IsConfigError(err) {
		t.Fatal("expected wrapped ConfigError to be detected")
	}
	if got := err.Error(); got != "startup: configuration error: HUBSPOT_TOKEN is required" {
		t.Errorf("unexpected message %q", got)
	}
	if IsConfigError(fmt.Errorf("plain")) {
		t.Error("plain error should not be a ConfigError")
	}
}
