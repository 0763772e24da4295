package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{LevelDebug, "debug"},
		{LevelInfo, "info"},
		{LevelWarn, "warn"},
		{LevelError, "error"},
		{Level(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.level.String(); got != tt.expected {
				t.Errorf("Level.String() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"bogus", LevelInfo},
		{"", LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.expected {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestNew(t *testing.T) {
	logger := New("test-service")
	if logger == nil {
		t.Fatal("New() returned nil")
	}
	if logger.Name() != "test-service" {
		t.Errorf("name = %v, want test-service", logger.Name())
	}
}

func TestLogger_TextOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New("session").WithOutput(&buf).WithLevel(LevelDebug)

	logger.Info("connected", "endpoint", "ws://localhost:8080")

	line := buf.String()
	if !strings.Contains(line, "[session]") {
		t.Errorf("missing logger name: %q", line)
	}
	if !strings.Contains(line, "connected") {
		t.Errorf("missing message: %q", line)
	}
	if !strings.Contains(line, "endpoint=ws://localhost:8080") {
		t.Errorf("missing field: %q", line)
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New("test").WithOutput(&buf).WithLevel(LevelWarn)

	logger.Debug("should not appear")
	logger.Info("should not appear")
	logger.Warn("should appear")

	out := buf.String()
	if strings.Contains(out, "should not appear") {
		t.Errorf("level filtering failed: %q", out)
	}
	if !strings.Contains(out, "should appear") {
		t.Errorf("warn entry missing: %q", out)
	}
}

func TestLogger_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	f := FormatJSON
	logger := New("audio").WithOutput(&buf).WithLevel(LevelDebug)
	logger.format = &f

	logger.Error("capture failed", "device", "default", "code", 7)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if entry["level"] != "error" {
		t.Errorf("level = %v, want error", entry["level"])
	}
	if entry["logger"] != "audio" {
		t.Errorf("logger = %v, want audio", entry["logger"])
	}
	fields, ok := entry["fields"].(map[string]any)
	if !ok {
		t.Fatalf("fields missing: %v", entry)
	}
	if fields["device"] != "default" {
		t.Errorf("fields.device = %v", fields["device"])
	}
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	logger := New("queue").WithOutput(&buf).WithLevel(LevelDebug).With("epoch", 3)

	logger.Info("drained")

	if !strings.Contains(buf.String(), "epoch=3") {
		t.Errorf("bound field missing: %q", buf.String())
	}
}

func TestLogger_OddKeyValues(t *testing.T) {
	var buf bytes.Buffer
	logger := New("test").WithOutput(&buf).WithLevel(LevelDebug)

	// Should not panic
	logger.Info("odd", "dangling")

	if !strings.Contains(buf.String(), "dangling=?") {
		t.Errorf("dangling key not marked: %q", buf.String())
	}
}
