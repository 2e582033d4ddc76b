package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileLogger appends JSON log lines to a file, rotating by size
type FileLogger struct {
	mu          sync.Mutex
	file        *os.File
	path        string
	level       LogLevel
	traceID     string
	maxSize     int64
	currentSize int64
	rotate      bool
}

// FileLoggerConfig contains configuration for file logger
type FileLoggerConfig struct {
	FilePath      string
	Level         LogLevel
	MaxFileSize   int64 // in bytes, 0 means no rotation
	RotateEnabled bool
}

// NewFileLogger creates a new file logger
func NewFileLogger(config FileLoggerConfig) (*FileLogger, error) {
	if err := os.MkdirAll(filepath.Dir(config.FilePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := openLogFile(config.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to stat log file: %w", err)
	}

	return &FileLogger{
		file:        file,
		path:        config.FilePath,
		level:       config.Level,
		maxSize:     config.MaxFileSize,
		currentSize: info.Size(),
		rotate:      config.RotateEnabled && config.MaxFileSize > 0,
	}, nil
}

func openLogFile(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
}

func (l *FileLogger) log(level LogLevel, msg string, fields ...Field) {
	if level < l.level {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.rotate && l.currentSize >= l.maxSize {
		if err := l.rotateFile(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to rotate log file: %v\n", err)
		}
	}

	entry := LogEntry{
		Timestamp: time.Now().UTC(),
		Level:     level.String(),
		Message:   msg,
		TraceID:   l.traceID,
		Fields:    make(map[string]interface{}, len(fields)),
	}
	for _, field := range fields {
		entry.Fields[field.Key] = field.Value
	}

	data, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to marshal log entry: %v\n", err)
		return
	}

	n, err := l.file.Write(append(data, '\n'))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write log entry: %v\n", err)
		return
	}
	l.currentSize += int64(n)
}

// rotateFile renames the active file with a timestamp suffix and starts a
// fresh one. Callers must hold the mutex.
func (l *FileLogger) rotateFile() error {
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("failed to close log file: %w", err)
	}

	stamp := time.Now().UTC().Format("20060102-150405")
	if err := os.Rename(l.path, l.path+"."+stamp); err != nil {
		// Reopen the original so logging can continue
		l.file, _ = openLogFile(l.path)
		return fmt.Errorf("failed to rename log file: %w", err)
	}

	file, err := openLogFile(l.path)
	if err != nil {
		return fmt.Errorf("failed to create new log file: %w", err)
	}
	l.file = file
	l.currentSize = 0
	return nil
}

func (l *FileLogger) Debug(msg string, fields ...Field) { l.log(DEBUG, msg, fields...) }
func (l *FileLogger) Info(msg string, fields ...Field)  { l.log(INFO, msg, fields...) }
func (l *FileLogger) Warn(msg string, fields ...Field)  { l.log(WARN, msg, fields...) }
func (l *FileLogger) Error(msg string, fields ...Field) { l.log(ERROR, msg, fields...) }

// WithTraceID returns a copy of the logger tagged with the trace ID. The
// copy shares the underlying file handle.
func (l *FileLogger) WithTraceID(traceID string) Logger {
	return &FileLogger{
		file:        l.file,
		path:        l.path,
		level:       l.level,
		traceID:     traceID,
		maxSize:     l.maxSize,
		currentSize: l.currentSize,
		rotate:      l.rotate,
	}
}

// WithContext returns a logger tagged with the context's trace ID, if any
func (l *FileLogger) WithContext(ctx context.Context) Logger {
	if traceID := TraceIDFromContext(ctx); traceID != "" {
		return l.WithTraceID(traceID)
	}
	return l
}

// SetLevel sets the minimum log level
func (l *FileLogger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// Close closes the log file
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		return l.file.Close()
	}
	return nil
}
