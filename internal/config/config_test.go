package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/drivemirror/drivemirror/internal/types"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.DefaultProfile != "default" {
		t.Errorf("Expected default profile 'default', got '%s'", cfg.DefaultProfile)
	}

	if cfg.DefaultOutputFormat != types.OutputFormatJSON {
		t.Errorf("Expected default output format 'json', got '%s'", cfg.DefaultOutputFormat)
	}

	if cfg.BatchSize != 10 {
		t.Errorf("Expected batch size 10, got %d", cfg.BatchSize)
	}

	if cfg.PageSize != 100 {
		t.Errorf("Expected page size 100, got %d", cfg.PageSize)
	}

	if cfg.MaxRetries != 3 {
		t.Errorf("Expected max retries 3, got %d", cfg.MaxRetries)
	}

	if cfg.LogLevel != "normal" {
		t.Errorf("Expected log level 'normal', got '%s'", cfg.LogLevel)
	}
}

func TestConfigValidation(t *testing.T) {
	valid := func(mutate func(*Config)) *Config {
		cfg := DefaultConfig()
		mutate(cfg)
		return cfg
	}

	tests := []struct {
		name      string
		config    *Config
		wantError bool
		errorMsg  string
	}{
		{
			name:      "valid default config",
			config:    DefaultConfig(),
			wantError: false,
		},
		{
			name:      "invalid output format",
			config:    valid(func(c *Config) { c.DefaultOutputFormat = types.OutputFormat("invalid") }),
			wantError: true,
			errorMsg:  "invalid output format",
		},
		{
			name:      "batch size too low",
			config:    valid(func(c *Config) { c.BatchSize = 0 }),
			wantError: true,
			errorMsg:  "batch size must be between 1 and 500",
		},
		{
			name:      "batch size too high",
			config:    valid(func(c *Config) { c.BatchSize = 1000 }),
			wantError: true,
			errorMsg:  "batch size must be between 1 and 500",
		},
		{
			name:      "page size out of range",
			config:    valid(func(c *Config) { c.PageSize = 5000 }),
			wantError: true,
			errorMsg:  "page size must be between 1 and 1000",
		},
		{
			name:      "negative heartbeat interval",
			config:    valid(func(c *Config) { c.HeartbeatInterval = -1 }),
			wantError: true,
			errorMsg:  "heartbeat interval must be between 0 and 300",
		},
		{
			name:      "max retries too high",
			config:    valid(func(c *Config) { c.MaxRetries = 11 }),
			wantError: true,
			errorMsg:  "max retries must be between 0 and 10",
		},
		{
			name:      "retry base delay too low",
			config:    valid(func(c *Config) { c.RetryBaseDelay = 50 }),
			wantError: true,
			errorMsg:  "retry base delay must be between 100ms and 60000ms",
		},
		{
			name:      "request timeout out of range",
			config:    valid(func(c *Config) { c.RequestTimeout = 3700 }),
			wantError: true,
			errorMsg:  "request timeout must be between 1 and 3600 seconds",
		},
		{
			name:      "invalid log level",
			config:    valid(func(c *Config) { c.LogLevel = "invalid" }),
			wantError: true,
			errorMsg:  "invalid log level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantError {
				if err == nil {
					t.Errorf("Expected error containing '%s', got nil", tt.errorMsg)
				} else if !contains(err.Error(), tt.errorMsg) {
					t.Errorf("Expected error containing '%s', got '%s'", tt.errorMsg, err.Error())
				}
			} else {
				if err != nil {
					t.Errorf("Expected no error, got: %v", err)
				}
			}
		})
	}
}

func TestConfigDurationGetters(t *testing.T) {
	cfg := &Config{
		HeartbeatInterval: 15,
		RetryBaseDelay:    1000,
		RequestTimeout:    60,
	}

	if d := cfg.GetHeartbeatInterval(); d != 15*time.Second {
		t.Errorf("Expected heartbeat interval 15s, got %v", d)
	}

	if d := cfg.GetRetryBaseDelay(); d != 1000*time.Millisecond {
		t.Errorf("Expected retry base delay 1000ms, got %v", d)
	}

	if d := cfg.GetRequestTimeout(); d != 60*time.Second {
		t.Errorf("Expected request timeout 60s, got %v", d)
	}
}

func TestGetDatabasePath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DatabasePath = "/tmp/custom.db"
	path, err := cfg.GetDatabasePath()
	if err != nil {
		t.Fatalf("GetDatabasePath: %v", err)
	}
	if path != "/tmp/custom.db" {
		t.Errorf("Expected override path, got '%s'", path)
	}

	tempDir := t.TempDir()
	os.Setenv(EnvPrefix+"CONFIG_DIR", tempDir)
	defer os.Unsetenv(EnvPrefix + "CONFIG_DIR")

	cfg.DatabasePath = ""
	path, err = cfg.GetDatabasePath()
	if err != nil {
		t.Fatalf("GetDatabasePath: %v", err)
	}
	if path != filepath.Join(tempDir, DatabaseFileName) {
		t.Errorf("Expected default path under config dir, got '%s'", path)
	}
}

func TestConfigSaveAndLoad(t *testing.T) {
	tempDir := t.TempDir()
	os.Setenv(EnvPrefix+"CONFIG_DIR", tempDir)
	defer os.Unsetenv(EnvPrefix + "CONFIG_DIR")

	// Create a config with custom values
	cfg := &Config{
		DefaultProfile:      "test-profile",
		DefaultOutputFormat: types.OutputFormatTable,
		DatabasePath:        "/tmp/mirror.db",
		BatchSize:           25,
		PageSize:            250,
		HeartbeatInterval:   30,
		MaxRetries:          5,
		RetryBaseDelay:      2000,
		RequestTimeout:      120,
		LogLevel:            "verbose",
		ColorOutput:         false,
	}

	// Save the config
	fullConfigPath := filepath.Join(tempDir, ConfigFileName)
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		t.Fatalf("Failed to marshal config: %v", err)
	}

	if err := os.WriteFile(fullConfigPath, data, 0600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	// Load the config
	loadedCfg := DefaultConfig()
	if err := loadedCfg.loadFromFile(); err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// Verify loaded values
	if loadedCfg.DefaultProfile != cfg.DefaultProfile {
		t.Errorf("Expected profile '%s', got '%s'", cfg.DefaultProfile, loadedCfg.DefaultProfile)
	}

	if loadedCfg.DefaultOutputFormat != cfg.DefaultOutputFormat {
		t.Errorf("Expected output format '%s', got '%s'", cfg.DefaultOutputFormat, loadedCfg.DefaultOutputFormat)
	}

	if loadedCfg.BatchSize != cfg.BatchSize {
		t.Errorf("Expected batch size %d, got %d", cfg.BatchSize, loadedCfg.BatchSize)
	}

	if loadedCfg.DatabasePath != cfg.DatabasePath {
		t.Errorf("Expected database path '%s', got '%s'", cfg.DatabasePath, loadedCfg.DatabasePath)
	}
}

func TestLoadFromEnv(t *testing.T) {
	// Save original environment
	originalEnv := map[string]string{
		"DRIVEMIRROR_DEFAULT_PROFILE": os.Getenv("DRIVEMIRROR_DEFAULT_PROFILE"),
		"DRIVEMIRROR_OUTPUT_FORMAT":   os.Getenv("DRIVEMIRROR_OUTPUT_FORMAT"),
		"DRIVEMIRROR_DATABASE_PATH":   os.Getenv("DRIVEMIRROR_DATABASE_PATH"),
		"DRIVEMIRROR_BATCH_SIZE":      os.Getenv("DRIVEMIRROR_BATCH_SIZE"),
		"DRIVEMIRROR_PAGE_SIZE":       os.Getenv("DRIVEMIRROR_PAGE_SIZE"),
		"DRIVEMIRROR_MAX_RETRIES":     os.Getenv("DRIVEMIRROR_MAX_RETRIES"),
		"DRIVEMIRROR_LOG_LEVEL":       os.Getenv("DRIVEMIRROR_LOG_LEVEL"),
	}

	// Restore environment after test
	defer func() {
		for key, value := range originalEnv {
			if value == "" {
				os.Unsetenv(key)
			} else {
				os.Setenv(key, value)
			}
		}
	}()

	// Set test environment variables
	os.Setenv("DRIVEMIRROR_DEFAULT_PROFILE", "env-profile")
	os.Setenv("DRIVEMIRROR_OUTPUT_FORMAT", "table")
	os.Setenv("DRIVEMIRROR_DATABASE_PATH", "/tmp/env.db")
	os.Setenv("DRIVEMIRROR_BATCH_SIZE", "50")
	os.Setenv("DRIVEMIRROR_PAGE_SIZE", "500")
	os.Setenv("DRIVEMIRROR_MAX_RETRIES", "7")
	os.Setenv("DRIVEMIRROR_LOG_LEVEL", "debug")

	// Load config (which should apply env vars)
	cfg := DefaultConfig()
	cfg.loadFromEnv()

	// Verify values from environment
	if cfg.DefaultProfile != "env-profile" {
		t.Errorf("Expected profile 'env-profile', got '%s'", cfg.DefaultProfile)
	}

	if cfg.DefaultOutputFormat != types.OutputFormatTable {
		t.Errorf("Expected output format 'table', got '%s'", cfg.DefaultOutputFormat)
	}

	if cfg.DatabasePath != "/tmp/env.db" {
		t.Errorf("Expected database path '/tmp/env.db', got '%s'", cfg.DatabasePath)
	}

	if cfg.BatchSize != 50 {
		t.Errorf("Expected batch size 50, got %d", cfg.BatchSize)
	}

	if cfg.PageSize != 500 {
		t.Errorf("Expected page size 500, got %d", cfg.PageSize)
	}

	if cfg.MaxRetries != 7 {
		t.Errorf("Expected max retries 7, got %d", cfg.MaxRetries)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("Expected log level 'debug', got '%s'", cfg.LogLevel)
	}
}

func TestParseBool(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"true", true},
		{"True", true},
		{"TRUE", true},
		{"1", true},
		{"yes", true},
		{"YES", true},
		{"on", true},
		{"ON", true},
		{"false", false},
		{"False", false},
		{"0", false},
		{"no", false},
		{"off", false},
		{"", false},
		{"invalid", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := parseBool(tt.input)
			if got != tt.want {
				t.Errorf("parseBool(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

// Helper function
func contains(s, substr string) bool {
	return len(s) > 0 && len(substr) > 0 &&
		(s == substr || len(s) >= len(substr) &&
			(s[:len(substr)] == substr || s[len(s)-len(substr):] == substr ||
				len(s) > len(substr) && containsInner(s, substr)))
}

func containsInner(s, substr string) bool {
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
