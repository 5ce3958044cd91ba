package observe

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

// TestLogger_IncludesCacheName verifies the cache name field is present in
// log output.
func TestLogger_IncludesCacheName(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	cacheLogger := logger.WithCache("sessions")
	cacheLogger.Info(context.Background(), "test message")

	var logEntry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("failed to parse log output as JSON: %v\nOutput: %s", err, buf.String())
	}

	if v, ok := logEntry["cache.name"].(string); !ok || v != "sessions" {
		t.Errorf("expected cache.name='sessions', got %v", logEntry["cache.name"])
	}
	if v, ok := logEntry["msg"].(string); !ok || v != "test message" {
		t.Errorf("expected msg='test message', got %v", logEntry["msg"])
	}
}

// TestLogger_Fields verifies extra fields land in the JSON entry.
func TestLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	logger.Warn(context.Background(), "cache read degraded",
		Field{Key: "key", Value: "user:1"},
		Field{Key: "error", Value: "connection timeout"},
	)

	var logEntry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("failed to parse log output as JSON: %v", err)
	}

	if v, ok := logEntry["level"].(string); !ok || v != "warn" {
		t.Errorf("expected level='warn', got %v", logEntry["level"])
	}
	if v, ok := logEntry["key"].(string); !ok || v != "user:1" {
		t.Errorf("expected key='user:1', got %v", logEntry["key"])
	}
	if v, ok := logEntry["error"].(string); !ok || v != "connection timeout" {
		t.Errorf("expected error field, got %v", logEntry["error"])
	}
}

// TestLogger_LevelFiltering verifies log level filtering.
func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("warn", &buf)

	// Info should be filtered out
	logger.Info(context.Background(), "info message")
	if strings.Contains(buf.String(), "info message") {
		t.Error("info message should be filtered when level is warn")
	}

	// Warn should pass through
	logger.Warn(context.Background(), "warn message")
	if !strings.Contains(buf.String(), "warn message") {
		t.Error("warn message should pass through when level is warn")
	}
}

// TestLogger_DebugLevel verifies debug output at debug level.
func TestLogger_DebugLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("debug", &buf)

	logger.Debug(context.Background(), "debug message")

	var logEntry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("failed to parse log output as JSON: %v", err)
	}
	if v, ok := logEntry["level"].(string); !ok || v != "debug" {
		t.Errorf("expected level='debug', got %v", logEntry["level"])
	}
}

// TestParseLogLevel verifies level parsing with unknown fallback.
func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"error", LevelError},
		{"bogus", LevelInfo},
		{"", LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLogLevel(tt.in); got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

// TestNopLogger verifies the noop logger discards everything.
func TestNopLogger(t *testing.T) {
	logger := NopLogger()
	ctx := context.Background()

	// Must not panic and must produce nothing observable.
	logger.Info(ctx, "a")
	logger.Warn(ctx, "b")
	logger.Error(ctx, "c")
	logger.Debug(ctx, "d")

	if scoped := logger.WithCache("x"); scoped == nil {
		t.Error("WithCache on the noop logger must not return nil")
	}
}
