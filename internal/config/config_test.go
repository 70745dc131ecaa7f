package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("Expected default config to validate, got: %v", err)
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
		errorMsg    string
	}{
		{
			name:   "valid configuration",
			mutate: func(c *Config) {},
		},
		{
			name:        "sample rate too low",
			mutate:      func(c *Config) { c.Capture.SampleRate = 4000 },
			expectError: true,
			errorMsg:    "sample_rate must be between 8000 and 48000",
		},
		{
			name:        "stereo capture rejected",
			mutate:      func(c *Config) { c.Capture.Channels = 2 },
			expectError: true,
			errorMsg:    "channels must be 1",
		},
		{
			name:        "chunk duration above one second",
			mutate:      func(c *Config) { c.Capture.ChunkDuration = 1.5 },
			expectError: true,
			errorMsg:    "chunk_duration must be at most 1 second",
		},
		{
			name:        "low threshold below silence threshold",
			mutate:      func(c *Config) { c.Level.LowThreshold = 0.005 },
			expectError: true,
			errorMsg:    "low_threshold must be between silence_threshold and 1",
		},
		{
			name:        "silence duration zero",
			mutate:      func(c *Config) { c.Level.SilenceDuration = 0 },
			expectError: true,
			errorMsg:    "silence_duration must be positive",
		},
		{
			name:        "empty session endpoint",
			mutate:      func(c *Config) { c.Session.Endpoint = "" },
			expectError: true,
			errorMsg:    "endpoint cannot be empty",
		},
		{
			name:        "session endpoint must be websocket",
			mutate:      func(c *Config) { c.Session.Endpoint = "http://127.0.0.1:8780/v1/session" },
			expectError: true,
			errorMsg:    "endpoint scheme must be ws or wss",
		},
		{
			name:        "max backoff below initial backoff",
			mutate:      func(c *Config) { c.Session.MaxBackoff = 0.5 },
			expectError: true,
			errorMsg:    "max_backoff",
		},
		{
			name:        "zero reconnect attempts",
			mutate:      func(c *Config) { c.Session.MaxAttempts = 0 },
			expectError: true,
			errorMsg:    "max_attempts must be at least 1",
		},
		{
			name:        "upload endpoint must be http",
			mutate:      func(c *Config) { c.Upload.Endpoint = "ws://127.0.0.1:8780/v1/voice-notes" },
			expectError: true,
			errorMsg:    "endpoint scheme must be http or https",
		},
		{
			name:        "empty database path",
			mutate:      func(c *Config) { c.Store.DatabasePath = "" },
			expectError: true,
			errorMsg:    "database_path cannot be empty",
		},
		{
			name: "enabled monitor with invalid port",
			mutate: func(c *Config) {
				c.Monitor.Enabled = true
				c.Monitor.Port = 70000
			},
			expectError: true,
			errorMsg:    "port must be between 1 and 65535",
		},
		{
			name: "disabled monitor skips address checks",
			mutate: func(c *Config) {
				c.Monitor.Enabled = false
				c.Monitor.Port = 0
				c.Monitor.Address = ""
			},
		},
		{
			name:        "invalid log level",
			mutate:      func(c *Config) { c.Logging.Level = "trace" },
			expectError: true,
			errorMsg:    "level must be one of",
		},
		{
			name:        "invalid log format",
			mutate:      func(c *Config) { c.Logging.Format = "xml" },
			expectError: true,
			errorMsg:    "format must be 'json' or 'text'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got none")
				} else if tt.errorMsg != "" && !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("Expected error to contain '%s', got '%s'", tt.errorMsg, err.Error())
				}
			} else if err != nil {
				t.Errorf("Expected no error but got: %v", err)
			}
		})
	}
}

func TestConfigLoad(t *testing.T) {
	tests := []struct {
		name        string
		configYAML  string
		expectError bool
		errorMsg    string
		check       func(t *testing.T, c *Config)
	}{
		{
			name: "valid config file",
			configYAML: `
capture:
  sample_rate: 16000
  channels: 1
  chunk_duration: 0.25
session:
  endpoint: "wss://api.catchup.example/v1/session"
  language_code: "uk-UA"
  handshake_timeout: 10
  stop_timeout: 5
  initial_backoff: 1
  max_backoff: 10
  max_attempts: 5
  buffer_limit_mb: 50
logging:
  level: "debug"
  format: "json"
  output: "stdout"
`,
			check: func(t *testing.T, c *Config) {
				if c.Capture.ChunkDuration != 0.25 {
					t.Errorf("Expected chunk_duration 0.25, got %f", c.Capture.ChunkDuration)
				}
				if c.Session.LanguageCode != "uk-UA" {
					t.Errorf("Expected language uk-UA, got %s", c.Session.LanguageCode)
				}
				if c.Session.MaxAttempts != 5 {
					t.Errorf("Expected 5 attempts, got %d", c.Session.MaxAttempts)
				}
			},
		},
		{
			name: "partial file keeps defaults for missing sections",
			configYAML: `
session:
  endpoint: "wss://api.catchup.example/v1/session"
`,
			check: func(t *testing.T, c *Config) {
				if c.Session.Endpoint != "wss://api.catchup.example/v1/session" {
					t.Errorf("Expected file endpoint, got %s", c.Session.Endpoint)
				}
				if c.Capture.SampleRate != 16000 {
					t.Errorf("Expected default sample rate, got %d", c.Capture.SampleRate)
				}
				if c.Upload.Timeout != 30 {
					t.Errorf("Expected default upload timeout, got %d", c.Upload.Timeout)
				}
				if c.Logging.Level != "info" {
					t.Errorf("Expected default log level, got %s", c.Logging.Level)
				}
			},
		},
		{
			name: "invalid YAML syntax",
			configYAML: `
capture:
  sample_rate: not_a_number
`,
			expectError: true,
			errorMsg:    "failed to parse",
		},
		{
			name: "values fail validation",
			configYAML: `
capture:
  sample_rate: 4000
`,
			expectError: true,
			errorMsg:    "config validation failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(configPath, []byte(tt.configYAML), 0644); err != nil {
				t.Fatalf("Failed to create test config file: %v", err)
			}

			config, err := Load(configPath)

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got none")
				} else if tt.errorMsg != "" && !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("Expected error to contain '%s', got '%s'", tt.errorMsg, err.Error())
				}
				return
			}

			if err != nil {
				t.Fatalf("Expected no error but got: %v", err)
			}
			if config == nil {
				t.Fatal("Expected config to be loaded but got nil")
			}
			if tt.check != nil {
				tt.check(t, config)
			}
		})
	}
}

func TestConfigLoadNonexistentFile(t *testing.T) {
	_, err := Load("nonexistent.yaml")
	if err == nil {
		t.Errorf("Expected error for nonexistent file but got none")
	}
	if !strings.Contains(err.Error(), "failed to read config file") {
		t.Errorf("Expected error about reading file, got: %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("CATCHUP_API_KEY", "key-from-env")
	t.Setenv("CATCHUP_SESSION_ENDPOINT", "wss://env.catchup.example/v1/session")
	t.Setenv("CATCHUP_UPLOAD_ENDPOINT", "")

	cfg := Default()
	cfg.Upload.Endpoint = "https://file.catchup.example/v1/voice-notes"
	cfg.ApplyEnv()

	if cfg.Session.APIKey != "key-from-env" {
		t.Errorf("Expected API key from environment, got %q", cfg.Session.APIKey)
	}
	if cfg.Session.Endpoint != "wss://env.catchup.example/v1/session" {
		t.Errorf("Expected session endpoint from environment, got %q", cfg.Session.Endpoint)
	}
	// An unset override leaves the file value alone.
	if cfg.Upload.Endpoint != "https://file.catchup.example/v1/voice-notes" {
		t.Errorf("Expected upload endpoint unchanged, got %q", cfg.Upload.Endpoint)
	}
}

func TestDurationHelpers(t *testing.T) {
	capture := CaptureConfig{ChunkDuration: 0.1}
	if capture.GetChunkDuration() != 100*time.Millisecond {
		t.Errorf("Expected 100ms, got %v", capture.GetChunkDuration())
	}

	level := LevelConfig{SilenceDuration: 3.0, AlertInterval: 5.0}
	if level.GetSilenceDuration() != 3*time.Second {
		t.Errorf("Expected 3 seconds, got %v", level.GetSilenceDuration())
	}
	if level.GetAlertInterval() != 5*time.Second {
		t.Errorf("Expected 5 seconds, got %v", level.GetAlertInterval())
	}

	session := SessionConfig{
		HandshakeTimeout: 10,
		StopTimeout:      5,
		InitialBackoff:   0.5,
		MaxBackoff:       10,
		BufferLimitMB:    100,
	}
	if session.GetHandshakeTimeoutDuration() != 10*time.Second {
		t.Errorf("Expected 10 seconds, got %v", session.GetHandshakeTimeoutDuration())
	}
	if session.GetStopTimeoutDuration() != 5*time.Second {
		t.Errorf("Expected 5 seconds, got %v", session.GetStopTimeoutDuration())
	}
	if session.GetInitialBackoffDuration() != 500*time.Millisecond {
		t.Errorf("Expected 500ms, got %v", session.GetInitialBackoffDuration())
	}
	if session.GetMaxBackoffDuration() != 10*time.Second {
		t.Errorf("Expected 10 seconds, got %v", session.GetMaxBackoffDuration())
	}
	if session.GetBufferLimitBytes() != 100*1024*1024 {
		t.Errorf("Expected 100MB in bytes, got %d", session.GetBufferLimitBytes())
	}

	upload := UploadConfig{Timeout: 30}
	if upload.GetTimeoutDuration() != 30*time.Second {
		t.Errorf("Expected 30 seconds, got %v", upload.GetTimeoutDuration())
	}
}
