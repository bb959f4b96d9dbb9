package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Config{Level: "debug", Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	log.WithField("stream", "contacts").Debug("hello")

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected JSON output, got %q: %v", buf.String(), err)
	}
	if line["message"] != "hello" || line["stream"] != "contacts" || line["level"] != "debug" {
		t.Errorf("unexpected log line %v", line)
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	if _, err := New(Config{Level: "loud"}); err == nil {
		t.Error("expected error for invalid level")
	}
	if _, err := New(Config{Format: "xml"}); err == nil {
		t.Error("expected error for invalid format")
	}
}

func TestNewWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "ghl2hs.log")
	var buf bytes.Buffer
	log, err := New(Config{File: path, Output: &buf})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	log.Info("to file")
	if !strings.Contains(buf.String(), "to file") {
		t.Errorf("expected console output, got %q", buf.String())
	}
}

func TestWithTrace(t *testing.T) {
	log := Discard()
	entry := WithTrace(context.Background(), log.WithField("a", 1))
	if _, ok := entry.Data["trace_id"]; ok {
		t.Error("expected no trace_id without a span")
	}

	traceID, _ := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	spanID, _ := trace.SpanIDFromHex("0102030405060708")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	entry = WithTrace(ctx, log.WithField("a", 1))
	if entry.Data["trace_id"] != "0102030405060708090a0b0c0d0e0f10" {
		t.Errorf("unexpected trace_id %v", entry.Data["trace_id"])
	}
}
