package logging

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// plainConsole returns a console logger writing to buf with colors and
// timestamps off, so assertions can match raw text.
func plainConsole(buf *bytes.Buffer, level LogLevel) *ConsoleLogger {
	return NewConsoleLogger(ConsoleLoggerConfig{
		Writer:           buf,
		Level:            level,
		ColorEnabled:     false,
		TimestampEnabled: false,
	})
}

func TestMultiLoggerFansOut(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	multi := NewMultiLogger(plainConsole(&buf1, INFO), plainConsole(&buf2, INFO))
	if multi == nil {
		t.Fatal("NewMultiLogger() returned nil")
	}

	multi.Info("mirror started")

	out1, out2 := buf1.String(), buf2.String()
	if out1 == "" {
		t.Error("first logger received nothing")
	}
	if out2 == "" {
		t.Error("second logger received nothing")
	}
	if out1 != out2 {
		t.Errorf("loggers diverged:\n%s\n%s", out1, out2)
	}
}

func TestMultiLoggerAllLevels(t *testing.T) {
	var buf bytes.Buffer
	multi := NewMultiLogger(plainConsole(&buf, DEBUG))

	multi.Debug("debug message")
	multi.Info("info message")
	multi.Warn("warn message")
	multi.Error("error message")

	for _, want := range []string{"debug message", "info message", "warn message", "error message"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestMultiLoggerWithTraceID(t *testing.T) {
	var buf bytes.Buffer
	multi := NewMultiLogger(plainConsole(&buf, INFO))

	multi.WithTraceID("trace-123").Info("traced message")

	if buf.String() == "" {
		t.Error("traced logger produced no output")
	}
}

func TestMultiLoggerWithContext(t *testing.T) {
	var buf bytes.Buffer
	multi := NewMultiLogger(plainConsole(&buf, INFO))

	ctx := ContextWithTraceID(context.Background(), "ctx-trace")
	multi.WithContext(ctx).Info("context message")

	if buf.String() == "" {
		t.Error("context logger produced no output")
	}
}

func TestMultiLoggerSetLevelPropagates(t *testing.T) {
	var buf bytes.Buffer
	multi := NewMultiLogger(plainConsole(&buf, DEBUG))

	multi.Debug("before raise")
	multi.SetLevel(ERROR)
	multi.Debug("after raise")
	multi.Info("also filtered")
	multi.Error("still visible")

	output := buf.String()
	if !strings.Contains(output, "before raise") {
		t.Error("debug entry before SetLevel was dropped")
	}
	if strings.Contains(output, "after raise") || strings.Contains(output, "also filtered") {
		t.Error("entries below ERROR leaked through after SetLevel")
	}
	if !strings.Contains(output, "still visible") {
		t.Error("error entry after SetLevel was dropped")
	}
}

func TestMultiLoggerClose(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "mirror.log")

	fileLogger, err := NewFileLogger(FileLoggerConfig{FilePath: logPath, Level: INFO})
	if err != nil {
		t.Fatalf("NewFileLogger() error = %v", err)
	}

	multi := NewMultiLogger(fileLogger)
	if err := multi.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		t.Error("log file was not created")
	}
}

func TestMultiLoggerFileAndConsole(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "mirror.log")
	var buf bytes.Buffer

	fileLogger, err := NewFileLogger(FileLoggerConfig{FilePath: logPath, Level: INFO})
	if err != nil {
		t.Fatalf("NewFileLogger() error = %v", err)
	}

	multi := NewMultiLogger(fileLogger, plainConsole(&buf, INFO))
	multi.Info("mirror event", F("key", "value"))

	if err := multi.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if buf.String() == "" {
		t.Error("console received nothing")
	}

	fileData, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if len(fileData) == 0 {
		t.Error("log file is empty")
	}
}
