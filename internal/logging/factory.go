package logging

import (
	"fmt"
	"net/http"
	"time"
)

// LogConfig configures logger construction
type LogConfig struct {
	Level           LogLevel
	OutputFile      string
	MaxFileSize     int64
	EnableConsole   bool
	EnableDebug     bool
	RedactSensitive bool
	EnableColor     bool
	EnableTimestamp bool
}

// DefaultLogConfig returns the default logging configuration
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:           INFO,
		MaxFileSize:     100 * 1024 * 1024,
		EnableConsole:   true,
		RedactSensitive: true,
		EnableColor:     true,
		EnableTimestamp: true,
	}
}

// NewLogger builds a logger from the config. Console and file outputs are
// combined through a MultiLogger; with neither enabled a NoOpLogger is
// returned so callers never need a nil check.
func NewLogger(config LogConfig) (Logger, error) {
	var loggers []Logger

	if config.EnableConsole {
		loggers = append(loggers, NewConsoleLogger(ConsoleLoggerConfig{
			Level:            config.Level,
			ColorEnabled:     config.EnableColor,
			TimestampEnabled: config.EnableTimestamp,
			RedactSensitive:  config.RedactSensitive,
		}))
	}

	if config.OutputFile != "" {
		fileLogger, err := NewFileLogger(FileLoggerConfig{
			FilePath:      config.OutputFile,
			Level:         config.Level,
			MaxFileSize:   config.MaxFileSize,
			RotateEnabled: config.MaxFileSize > 0,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create file logger: %w", err)
		}
		loggers = append(loggers, fileLogger)
	}

	switch len(loggers) {
	case 0:
		return NewNoOpLogger(), nil
	case 1:
		return loggers[0], nil
	default:
		return NewMultiLogger(loggers...), nil
	}
}

// DebugTransport is an http.RoundTripper that logs request/response
// metadata for debugging API traffic
type DebugTransport struct {
	Base   http.RoundTripper
	logger Logger
}

// RoundTrip logs the request and response around the base transport
func (t *DebugTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	start := time.Now()
	t.logger.Debug("HTTP request",
		F("method", req.Method),
		F("url", req.URL.String()),
	)

	resp, err := base.RoundTrip(req)
	duration := time.Since(start)

	if err != nil {
		t.logger.Debug("HTTP request failed",
			F("method", req.Method),
			F("url", req.URL.String()),
			F("duration_ms", duration.Milliseconds()),
			F("error", err.Error()),
		)
		return resp, err
	}

	t.logger.Debug("HTTP response",
		F("method", req.Method),
		F("url", req.URL.String()),
		F("status", resp.StatusCode),
		F("duration_ms", duration.Milliseconds()),
	)
	return resp, nil
}

// NewDebugLoggerWithTransport builds a logger plus, when debug is enabled,
// an HTTP transport that traces API calls through it
func NewDebugLoggerWithTransport(config LogConfig) (Logger, *DebugTransport, error) {
	logger, err := NewLogger(config)
	if err != nil {
		return nil, nil, err
	}

	if !config.EnableDebug {
		return logger, nil, nil
	}

	return logger, &DebugTransport{logger: logger}, nil
}
