package rtcvoice

import (
	"bytes"
	"log"
	"os"
	"strings"
	"testing"
)

func TestLogLevel_String(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{LogLevelDebug, "DEBUG"},
		{LogLevelInfo, "INFO"},
		{LogLevelWarn, "WARN"},
		{LogLevelError, "ERROR"},
		{LogLevelOff, "OFF"},
		{LogLevel(999), "UNKNOWN"},
	}

	for _, test := range tests {
		if got := test.level.String(); got != test.expected {
			t.Errorf("LogLevel(%d).String() = %q, want %q", test.level, got, test.expected)
		}
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected LogLevel
	}{
		{"DEBUG", LogLevelDebug},
		{"debug", LogLevelDebug},
		{"INFO", LogLevelInfo},
		{"WARN", LogLevelWarn},
		{"WARNING", LogLevelWarn},
		{"ERROR", LogLevelError},
		{"OFF", LogLevelOff},
		{"invalid", LogLevelInfo}, // default
		{"", LogLevelInfo},        // default
	}

	for _, test := range tests {
		if got := ParseLogLevel(test.input); got != test.expected {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", test.input, got, test.expected)
		}
	}
}

func TestNewLoggerFromEnv(t *testing.T) {
	os.Setenv("RTCVOICE_LOG_LEVEL", "DEBUG")
	defer os.Unsetenv("RTCVOICE_LOG_LEVEL")

	logger := NewLoggerFromEnv()
	if logger.level != LogLevelDebug {
		t.Errorf("level = %v, want %v", logger.level, LogLevelDebug)
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogLevelWarn)
	logger.logger = log.New(&buf, "", 0) // Remove timestamps for testing

	logger.Debug("debug_event", nil)
	logger.Info("info_event", nil)
	logger.Warn("warn_event", nil)
	logger.Error("error_event", nil)

	output := buf.String()
	if strings.Contains(output, "debug_event") {
		t.Error("debug message should be filtered at warn level")
	}
	if strings.Contains(output, "info_event") {
		t.Error("info message should be filtered at warn level")
	}
	if !strings.Contains(output, "warn_event") {
		t.Error("warn message should pass at warn level")
	}
	if !strings.Contains(output, "error_event") {
		t.Error("error message should pass at warn level")
	}
}

func TestLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogLevelInfo)
	logger.logger = log.New(&buf, "", 0)

	logger.Info("session_started", map[string]any{"voice": "alloy"})

	output := buf.String()
	if !strings.Contains(output, "[rtcvoice]") {
		t.Error("output should carry the package prefix")
	}
	if !strings.Contains(output, "[INFO]") {
		t.Error("output should carry the level")
	}
	if !strings.Contains(output, "voice=alloy") {
		t.Errorf("output should carry the field, got %q", output)
	}
}

func TestLogger_WithContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogLevelInfo)
	logger.logger = log.New(&buf, "", 0)

	ctx := logger.WithContext(map[string]any{"session": "s1", "voice": "alloy"})
	ctx.Info("tool_dispatched", map[string]any{"voice": "nova"})

	output := buf.String()
	if !strings.Contains(output, "session=s1") {
		t.Error("context fields should be included")
	}
	// Message fields win on collision.
	if !strings.Contains(output, "voice=nova") {
		t.Errorf("message field should override context field, got %q", output)
	}
}

func TestLogger_LoggerFunc(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogLevelInfo)
	logger.logger = log.New(&buf, "", 0)

	fn := logger.LoggerFunc()
	fn("some_event", map[string]any{"k": 1})

	if !strings.Contains(buf.String(), "some_event") {
		t.Error("LoggerFunc should forward to the logger")
	}
}
