package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Reassembly ReassemblyConfig `yaml:"reassembly"`
	Voice      VoiceConfig      `yaml:"voice"`
	Visualizer VisualizerConfig `yaml:"visualizer"`
	Session    SessionConfig    `yaml:"session"`
	Webhook    WebhookConfig    `yaml:"webhook"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig contains HTTP/WebSocket server configuration
type ServerConfig struct {
	Port        int   `yaml:"port"`
	BindAddress string `yaml:"bind_address"`
	WSReadLimit int64  `yaml:"ws_read_limit"` // bytes per frame
}

// ReassemblyConfig contains chunk reassembly parameters
type ReassemblyConfig struct {
	TimeoutMS       int `yaml:"timeout_ms"`        // eviction delay from first-chunk arrival
	MaxPending      int `yaml:"max_pending"`       // bound on concurrently pending messages
	SweepIntervalMS int `yaml:"sweep_interval_ms"` // background eviction sweep period
}

// VoiceConfig contains voice-activity estimator parameters
type VoiceConfig struct {
	SamplePeriodMS int `yaml:"sample_period_ms"` // amplitude sampling period
	WindowSize     int `yaml:"window_size"`      // samples kept for hysteresis
}

// VisualizerConfig contains amplitude visualizer parameters
type VisualizerConfig struct {
	BarCount      int     `yaml:"bar_count"`
	Gain          float64 `yaml:"gain"`
	NoiseFloor    float64 `yaml:"noise_floor"`
	Attack        float64 `yaml:"attack"`
	Decay         float64 `yaml:"decay"`
	TickRateHz    int     `yaml:"tick_rate_hz"`    // render cadence
	PublishRateHz int     `yaml:"publish_rate_hz"` // outward publish cap
}

// SessionConfig contains session lifecycle parameters
type SessionConfig struct {
	IdleTimeout int `yaml:"idle_timeout"` // seconds
	EventBuffer int `yaml:"event_buffer"` // event channel capacity
	MaxSessions int `yaml:"max_sessions"`
}

// WebhookConfig contains finalized-turn webhook configuration
type WebhookConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Endpoint      string `yaml:"endpoint"`
	APIKey        string `yaml:"api_key"`
	Timeout       int    `yaml:"timeout"` // seconds
	MaxRetries    int    `yaml:"max_retries"`
	MaxConcurrent int    `yaml:"max_concurrent"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8080,
			BindAddress: "0.0.0.0",
			WSReadLimit: 64 * 1024,
		},
		Reassembly: ReassemblyConfig{
			TimeoutMS:       5000,
			MaxPending:      256,
			SweepIntervalMS: 1000,
		},
		Voice: VoiceConfig{
			SamplePeriodMS: 100,
			WindowSize:     3,
		},
		Visualizer: VisualizerConfig{
			BarCount:      5,
			Gain:          4.0,
			NoiseFloor:    0.1,
			Attack:        0.6,
			Decay:         0.85,
			TickRateHz:    30,
			PublishRateHz: 15,
		},
		Session: SessionConfig{
			IdleTimeout: 300,
			EventBuffer: 256,
			MaxSessions: 100,
		},
		Webhook: WebhookConfig{
			Enabled:       false,
			Timeout:       10,
			MaxRetries:    3,
			MaxConcurrent: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// Load reads and parses the configuration file
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

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Reassembly.Validate(); err != nil {
		return fmt.Errorf("reassembly config: %w", err)
	}

	if err := c.Voice.Validate(); err != nil {
		return fmt.Errorf("voice config: %w", err)
	}

	if err := c.Visualizer.Validate(); err != nil {
		return fmt.Errorf("visualizer config: %w", err)
	}

	if err := c.Session.Validate(); err != nil {
		return fmt.Errorf("session config: %w", err)
	}

	if err := c.Webhook.Validate(); err != nil {
		return fmt.Errorf("webhook config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates server configuration
func (s *ServerConfig) Validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", s.Port)
	}

	if s.BindAddress == "" {
		return fmt.Errorf("bind_address cannot be empty")
	}

	if s.WSReadLimit < 1024 {
		return fmt.Errorf("ws_read_limit must be at least 1024 bytes, got %d", s.WSReadLimit)
	}

	return nil
}

// Validate validates reassembly configuration
func (r *ReassemblyConfig) Validate() error {
	if r.TimeoutMS < 100 {
		return fmt.Errorf("timeout_ms must be at least 100, got %d", r.TimeoutMS)
	}

	if r.MaxPending < 1 {
		return fmt.Errorf("max_pending must be at least 1, got %d", r.MaxPending)
	}

	if r.SweepIntervalMS < 100 {
		return fmt.Errorf("sweep_interval_ms must be at least 100, got %d", r.SweepIntervalMS)
	}

	return nil
}

// Validate validates voice-activity configuration
func (v *VoiceConfig) Validate() error {
	if v.SamplePeriodMS < 10 {
		return fmt.Errorf("sample_period_ms must be at least 10, got %d", v.SamplePeriodMS)
	}

	if v.WindowSize < 2 {
		return fmt.Errorf("window_size must be at least 2, got %d", v.WindowSize)
	}

	return nil
}

// Validate validates visualizer configuration
func (v *VisualizerConfig) Validate() error {
	if v.BarCount < 1 {
		return fmt.Errorf("bar_count must be at least 1, got %d", v.BarCount)
	}

	if v.Gain <= 0 {
		return fmt.Errorf("gain must be positive, got %f", v.Gain)
	}

	if v.NoiseFloor < 0 || v.NoiseFloor >= 1 {
		return fmt.Errorf("noise_floor must be in [0,1), got %f", v.NoiseFloor)
	}

	if v.Attack <= 0 || v.Attack > 1 {
		return fmt.Errorf("attack must be in (0,1], got %f", v.Attack)
	}

	if v.Decay <= 0 || v.Decay >= 1 {
		return fmt.Errorf("decay must be in (0,1), got %f", v.Decay)
	}

	if v.TickRateHz < 1 || v.TickRateHz > 120 {
		return fmt.Errorf("tick_rate_hz must be between 1 and 120, got %d", v.TickRateHz)
	}

	if v.PublishRateHz < 1 || v.PublishRateHz > v.TickRateHz {
		return fmt.Errorf("publish_rate_hz must be between 1 and tick_rate_hz (%d), got %d",
			v.TickRateHz, v.PublishRateHz)
	}

	return nil
}

// Validate validates session configuration
func (s *SessionConfig) Validate() error {
	if s.IdleTimeout < 1 {
		return fmt.Errorf("idle_timeout must be at least 1 second, got %d", s.IdleTimeout)
	}

	if s.EventBuffer < 1 {
		return fmt.Errorf("event_buffer must be at least 1, got %d", s.EventBuffer)
	}

	if s.MaxSessions < 1 {
		return fmt.Errorf("max_sessions must be at least 1, got %d", s.MaxSessions)
	}

	return nil
}

// Validate validates webhook configuration
func (w *WebhookConfig) Validate() error {
	if !w.Enabled {
		return nil
	}

	if w.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty when webhook is enabled")
	}

	if w.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", w.Timeout)
	}

	if w.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", w.MaxRetries)
	}

	if w.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", w.MaxConcurrent)
	}

	return nil
}

// Validate validates logging configuration
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

	return nil
}

// GetTimeout returns the reassembly eviction delay as a time.Duration
func (r *ReassemblyConfig) GetTimeout() time.Duration {
	return time.Duration(r.TimeoutMS) * time.Millisecond
}

// GetSweepInterval returns the eviction sweep period as a time.Duration
func (r *ReassemblyConfig) GetSweepInterval() time.Duration {
	return time.Duration(r.SweepIntervalMS) * time.Millisecond
}

// GetSamplePeriod returns the amplitude sampling period as a time.Duration
func (v *VoiceConfig) GetSamplePeriod() time.Duration {
	return time.Duration(v.SamplePeriodMS) * time.Millisecond
}

// GetTickPeriod returns the render tick period as a time.Duration
func (v *VisualizerConfig) GetTickPeriod() time.Duration {
	return time.Second / time.Duration(v.TickRateHz)
}

// GetPublishInterval returns the minimum interval between published bar arrays
func (v *VisualizerConfig) GetPublishInterval() time.Duration {
	return time.Second / time.Duration(v.PublishRateHz)
}

// GetIdleTimeout returns the session idle timeout as a time.Duration
func (s *SessionConfig) GetIdleTimeout() time.Duration {
	return time.Duration(s.IdleTimeout) * time.Second
}

// GetTimeoutDuration returns the webhook timeout as a time.Duration
func (w *WebhookConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(w.Timeout) * time.Second
}
