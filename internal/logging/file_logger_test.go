package logging

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestFileLogger(t *testing.T, config FileLoggerConfig) (*FileLogger, string) {
	t.Helper()
	logPath := filepath.Join(t.TempDir(), "mirror.log")
	config.FilePath = logPath

	logger, err := NewFileLogger(config)
	if err != nil {
		t.Fatalf("NewFileLogger() error = %v", err)
	}
	return logger, logPath
}

func readLogLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func parseLogEntry(t *testing.T, line string) LogEntry {
	t.Helper()
	var entry LogEntry
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("Failed to parse log entry: %v", err)
	}
	return entry
}

func TestFileLogger_Creation(t *testing.T) {
	logger, logPath := newTestFileLogger(t, FileLoggerConfig{
		Level:         INFO,
		MaxFileSize:   1024,
		RotateEnabled: true,
	})
	t.Cleanup(func() {
		if err := logger.Close(); err != nil {
			t.Fatalf("Failed to close logger: %v", err)
		}
	})

	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		t.Error("Log file was not created")
	}
}

func TestFileLogger_Logging(t *testing.T) {
	logger, logPath := newTestFileLogger(t, FileLoggerConfig{Level: DEBUG})

	logger.Debug("debug message", F("key1", "value1"))
	logger.Info("info message", F("key2", 123))
	logger.Warn("warn message")
	logger.Error("error message", F("key3", true))

	if err := logger.Close(); err != nil {
		t.Fatalf("Failed to close logger: %v", err)
	}

	lines := readLogLines(t, logPath)
	if len(lines) != 4 {
		t.Fatalf("Expected 4 log entries, got %d", len(lines))
	}

	entry := parseLogEntry(t, lines[0])
	if entry.Level != "DEBUG" {
		t.Errorf("Entry.Level = %v, want DEBUG", entry.Level)
	}
	if entry.Message != "debug message" {
		t.Errorf("Entry.Message = %v, want 'debug message'", entry.Message)
	}
	if entry.Fields["key1"] != "value1" {
		t.Errorf("Entry.Fields[key1] = %v, want 'value1'", entry.Fields["key1"])
	}
}

func TestFileLogger_LevelFiltering(t *testing.T) {
	logger, logPath := newTestFileLogger(t, FileLoggerConfig{Level: WARN})

	logger.Debug("debug message") // filtered
	logger.Info("info message")   // filtered
	logger.Warn("warn message")
	logger.Error("error message")

	logger.Close()

	if lines := readLogLines(t, logPath); len(lines) != 2 {
		t.Errorf("Expected 2 log entries, got %d", len(lines))
	}
}

func TestFileLogger_WithTraceID(t *testing.T) {
	logger, logPath := newTestFileLogger(t, FileLoggerConfig{Level: INFO})

	traceID := "trace-123-456"
	logger.WithTraceID(traceID).Info("test message")
	logger.Close()

	lines := readLogLines(t, logPath)
	if entry := parseLogEntry(t, lines[0]); entry.TraceID != traceID {
		t.Errorf("Entry.TraceID = %v, want %v", entry.TraceID, traceID)
	}
}

func TestFileLogger_WithContext(t *testing.T) {
	logger, logPath := newTestFileLogger(t, FileLoggerConfig{Level: INFO})

	traceID := "ctx-trace-789"
	ctx := ContextWithTraceID(context.Background(), traceID)

	logger.WithContext(ctx).Info("test message")
	logger.Close()

	lines := readLogLines(t, logPath)
	if entry := parseLogEntry(t, lines[0]); entry.TraceID != traceID {
		t.Errorf("Entry.TraceID = %v, want %v", entry.TraceID, traceID)
	}
}

func TestFileLogger_Rotation(t *testing.T) {
	logger, logPath := newTestFileLogger(t, FileLoggerConfig{
		Level:         INFO,
		MaxFileSize:   100,
		RotateEnabled: true,
	})

	// Write enough to trip the size threshold several times
	for i := 0; i < 20; i++ {
		logger.Info("This is a test message that should trigger rotation")
		time.Sleep(1 * time.Millisecond)
	}

	logger.Close()

	files, err := filepath.Glob(logPath + "*")
	if err != nil {
		t.Fatalf("Failed to glob log files: %v", err)
	}
	if len(files) < 2 {
		t.Errorf("Expected at least 2 log files (original + rotated), got %d", len(files))
	}
}

func TestFileLogger_SetLevel(t *testing.T) {
	logger, logPath := newTestFileLogger(t, FileLoggerConfig{Level: DEBUG})

	logger.Debug("debug 1")

	logger.SetLevel(ERROR)

	logger.Debug("debug 2") // filtered
	logger.Info("info 2")   // filtered
	logger.Error("error 1")

	logger.Close()

	if lines := readLogLines(t, logPath); len(lines) != 2 {
		t.Errorf("Expected 2 log entries, got %d", len(lines))
	}
}
