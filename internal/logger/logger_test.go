package logger

import (
	"os"
	"strings"
	"testing"

	"github.com/mengerdb/menger/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"debug", "debug"},
		{"info", "info"},
		{"", "info"},
		{"warn", "warn"},
		{"error", "error"},
		{"unknown", "info"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level := parseLevel(tt.input)
			if level.String() != tt.expected {
				t.Errorf("parseLevel(%q) = %v, expected %v", tt.input, level.String(), tt.expected)
			}
		})
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{
			name: "json format info level",
			cfg: &config.LoggingConfig{
				Level:  "info",
				Format: "json",
				Output: "stdout",
			},
			wantErr: false,
		},
		{
			name: "text format debug level",
			cfg: &config.LoggingConfig{
				Level:  "debug",
				Format: "text",
				Output: "stdout",
			},
			wantErr: false,
		},
		{
			name: "file output",
			cfg: &config.LoggingConfig{
				Level:  "warn",
				Format: "json",
				Output: "/tmp/test-menger-log.json",
			},
			wantErr: false,
		},
		{
			name: "stderr output",
			cfg: &config.LoggingConfig{
				Level:  "error",
				Format: "text",
				Output: "stderr",
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if logger == nil && !tt.wantErr {
				t.Error("New() returned nil logger without error")
			}
			if logger != nil {
				_ = logger.Sync()
			}
		})
	}

	_ = os.Remove("/tmp/test-menger-log.json")
}

func TestNewDefault(t *testing.T) {
	logger := NewDefault()
	if logger == nil {
		t.Fatal("NewDefault() returned nil")
	}

	logger.Info("test message")
	_ = logger.Sync()
}

func TestWithSpace(t *testing.T) {
	logger := NewDefault()
	spaceLogger := logger.WithSpace("sales")
	if spaceLogger == nil {
		t.Fatalf("WithSpace() returned nil")
	}
	if spaceLogger == logger {
		t.Error("WithSpace() should return a new logger instance")
	}
	spaceLogger.Info("test with space")
	_ = logger.Sync()
}

func TestWithDimension(t *testing.T) {
	logger := NewDefault()
	dimLogger := logger.WithDimension("product")
	if dimLogger == nil {
		t.Fatalf("WithDimension() returned nil")
	}
	dimLogger.Info("test with dimension")
	_ = logger.Sync()
}

func TestWithQuery(t *testing.T) {
	logger := NewDefault()
	queryLogger := logger.WithQuery("sig-abc123")
	if queryLogger == nil {
		t.Fatalf("WithQuery() returned nil")
	}
	queryLogger.Info("test with query")
	_ = logger.Sync()
}

func TestWithFields(t *testing.T) {
	logger := NewDefault()
	fields := map[string]interface{}{
		"custom_field": "value",
		"number":       123,
	}

	fieldLogger := logger.WithFields(fields)
	if fieldLogger == nil {
		t.Fatalf("WithFields() returned nil")
	}
	fieldLogger.Info("test with fields")
	_ = logger.Sync()
}

func TestChaining(t *testing.T) {
	logger := NewDefault()
	chainedLogger := logger.WithSpace("sales").WithDimension("product").WithQuery("sig-abc123")
	if chainedLogger == nil {
		t.Fatalf("Chained logger is nil")
	}
	chainedLogger.Info("test chained context")
	_ = logger.Sync()
}

func TestBuildEncoder(t *testing.T) {
	if buildEncoder("json") == nil {
		t.Error("buildEncoder('json') returned nil")
	}
	if buildEncoder("text") == nil {
		t.Error("buildEncoder('text') returned nil")
	}
	if buildEncoder("unknown") == nil {
		t.Error("buildEncoder('unknown') returned nil")
	}
}

func TestBuildWriters(t *testing.T) {
	if buildWriters("stdout") == nil {
		t.Error("buildWriters('stdout') returned nil")
	}
	if buildWriters("stderr") == nil {
		t.Error("buildWriters('stderr') returned nil")
	}
	if buildWriters("") == nil {
		t.Error("buildWriters('') returned nil")
	}

	tmpFile := "/tmp/test-menger-logger-output.log"
	if buildWriters(tmpFile) == nil {
		t.Error("buildWriters(file) returned nil")
	}
	_ = os.Remove(tmpFile)
}

func TestSync(t *testing.T) {
	logger := NewDefault()
	_ = logger.Sync()
}

func TestLoggingOutput(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "menger-logger-test-*.json")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	_ = tmpFile.Close()
	defer func() { _ = os.Remove(tmpFile.Name()) }()

	cfg := &config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: tmpFile.Name(),
	}

	logger, err := New(cfg)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	logger.Info("test info message")
	logger.Warn("test warn message")
	logger.WithSpace("sales").Info("message with space context")

	_ = logger.Sync()

	content, err := os.ReadFile(tmpFile.Name())
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}

	contentStr := string(content)
	if !strings.Contains(contentStr, "test info message") {
		t.Error("Log file should contain 'test info message'")
	}
	if !strings.Contains(contentStr, "test warn message") {
		t.Error("Log file should contain 'test warn message'")
	}
	if !strings.Contains(contentStr, "sales") {
		t.Error("Log file should contain space context 'sales'")
	}
}
