package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete client configuration.
type Config struct {
	Capture CaptureConfig `yaml:"capture"`
	Level   LevelConfig   `yaml:"level"`
	Session SessionConfig `yaml:"session"`
	Upload  UploadConfig  `yaml:"upload"`
	Store   StoreConfig   `yaml:"store"`
	Monitor MonitorConfig `yaml:"monitor"`
	Logging LoggingConfig `yaml:"logging"`
}

// CaptureConfig contains microphone capture parameters.
type CaptureConfig struct {
	SampleRate    int     `yaml:"sample_rate"`
	Channels      int     `yaml:"channels"`
	ChunkDuration float64 `yaml:"chunk_duration"` // seconds
}

// LevelConfig contains input level monitoring thresholds.
type LevelConfig struct {
	SilenceThreshold  float64 `yaml:"silence_threshold"`
	LowThreshold      float64 `yaml:"low_threshold"`
	ClippingThreshold float64 `yaml:"clipping_threshold"`
	SilenceDuration   float64 `yaml:"silence_duration"` // seconds
	AlertInterval     float64 `yaml:"alert_interval"`   // seconds
}

// SessionConfig contains backend session channel configuration.
type SessionConfig struct {
	Endpoint         string  `yaml:"endpoint"`
	APIKey           string  `yaml:"api_key"` // optional, also via CATCHUP_API_KEY
	LanguageCode     string  `yaml:"language_code"`
	HandshakeTimeout float64 `yaml:"handshake_timeout"` // seconds
	StopTimeout      float64 `yaml:"stop_timeout"`      // seconds
	InitialBackoff   float64 `yaml:"initial_backoff"`   // seconds
	MaxBackoff       float64 `yaml:"max_backoff"`       // seconds
	MaxAttempts      int     `yaml:"max_attempts"`
	BufferLimitMB    int     `yaml:"buffer_limit_mb"`
}

// UploadConfig contains fallback voice note upload configuration.
type UploadConfig struct {
	Endpoint   string `yaml:"endpoint"`
	Timeout    int    `yaml:"timeout"` // seconds
	MaxRetries int    `yaml:"max_retries"`
}

// StoreConfig contains local persistence configuration.
type StoreConfig struct {
	DatabasePath string `yaml:"database_path"`
	NotesDir     string `yaml:"notes_dir"`
}

// MonitorConfig contains the local observability endpoint configuration.
type MonitorConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Default returns the configuration used when no file is given: 16kHz mono
// capture in 100ms chunks, standard level thresholds, localhost monitor off.
func Default() *Config {
	return &Config{
		Capture: CaptureConfig{
			SampleRate:    16000,
			Channels:      1,
			ChunkDuration: 0.1,
		},
		Level: LevelConfig{
			SilenceThreshold:  0.01,
			LowThreshold:      0.05,
			ClippingThreshold: 0.99,
			SilenceDuration:   3.0,
			AlertInterval:     5.0,
		},
		Session: SessionConfig{
			Endpoint:         "ws://127.0.0.1:8780/v1/session",
			LanguageCode:     "en-US",
			HandshakeTimeout: 10,
			StopTimeout:      5,
			InitialBackoff:   1,
			MaxBackoff:       10,
			MaxAttempts:      3,
			BufferLimitMB:    100,
		},
		Upload: UploadConfig{
			Endpoint:   "http://127.0.0.1:8780/v1/voice-notes",
			Timeout:    30,
			MaxRetries: 3,
		},
		Store: StoreConfig{
			DatabasePath: "catchup-voice.db",
			NotesDir:     "notes",
		},
		Monitor: MonitorConfig{
			Enabled: false,
			Address: "127.0.0.1",
			Port:    9477,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Load reads and parses the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// ApplyEnv overlays environment variables onto file values. Set via the
// shell or a .env file loaded by the CLI.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("CATCHUP_API_KEY"); v != "" {
		c.Session.APIKey = v
	}
	if v := os.Getenv("CATCHUP_SESSION_ENDPOINT"); v != "" {
		c.Session.Endpoint = v
	}
	if v := os.Getenv("CATCHUP_UPLOAD_ENDPOINT"); v != "" {
		c.Upload.Endpoint = v
	}
}

// Validate performs comprehensive validation of the configuration.
func (c *Config) Validate() error {
	if err := c.Capture.Validate(); err != nil {
		return fmt.Errorf("capture config: %w", err)
	}

	if err := c.Level.Validate(); err != nil {
		return fmt.Errorf("level config: %w", err)
	}

	if err := c.Session.Validate(); err != nil {
		return fmt.Errorf("session config: %w", err)
	}

	if err := c.Upload.Validate(); err != nil {
		return fmt.Errorf("upload config: %w", err)
	}

	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store config: %w", err)
	}

	if err := c.Monitor.Validate(); err != nil {
		return fmt.Errorf("monitor config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates capture configuration.
func (c *CaptureConfig) Validate() error {
	if c.SampleRate < 8000 || c.SampleRate > 48000 {
		return fmt.Errorf("sample_rate must be between 8000 and 48000 Hz, got %d", c.SampleRate)
	}

	if c.Channels != 1 {
		return fmt.Errorf("channels must be 1 (mono), got %d", c.Channels)
	}

	if c.ChunkDuration <= 0 {
		return fmt.Errorf("chunk_duration must be positive, got %f", c.ChunkDuration)
	}

	if c.ChunkDuration > 1 {
		return fmt.Errorf("chunk_duration must be at most 1 second, got %f", c.ChunkDuration)
	}

	return nil
}

// Validate validates level monitoring configuration.
func (l *LevelConfig) Validate() error {
	if l.SilenceThreshold <= 0 || l.SilenceThreshold >= 1 {
		return fmt.Errorf("silence_threshold must be between 0 and 1, got %f", l.SilenceThreshold)
	}

	if l.LowThreshold <= l.SilenceThreshold || l.LowThreshold >= 1 {
		return fmt.Errorf("low_threshold must be between silence_threshold and 1, got %f", l.LowThreshold)
	}

	if l.ClippingThreshold <= l.LowThreshold || l.ClippingThreshold > 1 {
		return fmt.Errorf("clipping_threshold must be between low_threshold and 1, got %f", l.ClippingThreshold)
	}

	if l.SilenceDuration <= 0 {
		return fmt.Errorf("silence_duration must be positive, got %f", l.SilenceDuration)
	}

	if l.AlertInterval <= 0 {
		return fmt.Errorf("alert_interval must be positive, got %f", l.AlertInterval)
	}

	return nil
}

// Validate validates session channel configuration.
func (s *SessionConfig) Validate() error {
	if s.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}

	u, err := url.Parse(s.Endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("endpoint scheme must be ws or wss, got '%s'", u.Scheme)
	}

	if s.LanguageCode == "" {
		return fmt.Errorf("language_code cannot be empty")
	}

	if s.HandshakeTimeout <= 0 {
		return fmt.Errorf("handshake_timeout must be positive, got %f", s.HandshakeTimeout)
	}

	if s.StopTimeout <= 0 {
		return fmt.Errorf("stop_timeout must be positive, got %f", s.StopTimeout)
	}

	if s.InitialBackoff <= 0 {
		return fmt.Errorf("initial_backoff must be positive, got %f", s.InitialBackoff)
	}

	if s.MaxBackoff < s.InitialBackoff {
		return fmt.Errorf("max_backoff (%f) must not be below initial_backoff (%f)",
			s.MaxBackoff, s.InitialBackoff)
	}

	if s.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1, got %d", s.MaxAttempts)
	}

	if s.BufferLimitMB < 1 {
		return fmt.Errorf("buffer_limit_mb must be at least 1, got %d", s.BufferLimitMB)
	}

	return nil
}

// Validate validates upload configuration.
func (u *UploadConfig) Validate() error {
	if u.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}

	parsed, err := url.Parse(u.Endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("endpoint scheme must be http or https, got '%s'", parsed.Scheme)
	}

	if u.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", u.Timeout)
	}

	if u.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", u.MaxRetries)
	}

	return nil
}

// Validate validates store configuration.
func (s *StoreConfig) Validate() error {
	if s.DatabasePath == "" {
		return fmt.Errorf("database_path cannot be empty")
	}

	if s.NotesDir == "" {
		return fmt.Errorf("notes_dir cannot be empty")
	}

	return nil
}

// Validate validates monitor configuration.
func (m *MonitorConfig) Validate() error {
	if m.Enabled {
		if m.Port < 1 || m.Port > 65535 {
			return fmt.Errorf("port must be between 1 and 65535, got %d", m.Port)
		}

		if m.Address == "" {
			return fmt.Errorf("address cannot be empty when the monitor is enabled")
		}
	}

	return nil
}

// Validate validates logging configuration.
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	// Output accepts stdout, stderr, or a file path.
	return nil
}

// GetChunkDuration returns the capture chunk duration as a time.Duration.
func (c *CaptureConfig) GetChunkDuration() time.Duration {
	return time.Duration(c.ChunkDuration * float64(time.Second))
}

// GetSilenceDuration returns the sustained silence window as a time.Duration.
func (l *LevelConfig) GetSilenceDuration() time.Duration {
	return time.Duration(l.SilenceDuration * float64(time.Second))
}

// GetAlertInterval returns the per-kind alert throttle as a time.Duration.
func (l *LevelConfig) GetAlertInterval() time.Duration {
	return time.Duration(l.AlertInterval * float64(time.Second))
}

// GetHandshakeTimeoutDuration returns the handshake timeout as a time.Duration.
func (s *SessionConfig) GetHandshakeTimeoutDuration() time.Duration {
	return time.Duration(s.HandshakeTimeout * float64(time.Second))
}

// GetStopTimeoutDuration returns the stop timeout as a time.Duration.
func (s *SessionConfig) GetStopTimeoutDuration() time.Duration {
	return time.Duration(s.StopTimeout * float64(time.Second))
}

// GetInitialBackoffDuration returns the initial reconnect backoff as a time.Duration.
func (s *SessionConfig) GetInitialBackoffDuration() time.Duration {
	return time.Duration(s.InitialBackoff * float64(time.Second))
}

// GetMaxBackoffDuration returns the reconnect backoff cap as a time.Duration.
func (s *SessionConfig) GetMaxBackoffDuration() time.Duration {
	return time.Duration(s.MaxBackoff * float64(time.Second))
}

// GetBufferLimitBytes returns the chunk buffer cap in bytes.
func (s *SessionConfig) GetBufferLimitBytes() int64 {
	return int64(s.BufferLimitMB) * 1024 * 1024
}

// GetTimeoutDuration returns the upload timeout as a time.Duration.
func (u *UploadConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(u.Timeout) * time.Second
}
