package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default configuration failed validation: %v", err)
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
			mutate: func(*Config) {},
		},
		{
			name:        "invalid server port",
			mutate:      func(c *Config) { c.Server.Port = 70000 },
			expectError: true,
			errorMsg:    "port",
		},
		{
			name:        "empty bind address",
			mutate:      func(c *Config) { c.Server.BindAddress = "" },
			expectError: true,
			errorMsg:    "bind_address",
		},
		{
			name:        "ws read limit too small",
			mutate:      func(c *Config) { c.Server.WSReadLimit = 100 },
			expectError: true,
			errorMsg:    "ws_read_limit",
		},
		{
			name:        "reassembly timeout too short",
			mutate:      func(c *Config) { c.Reassembly.TimeoutMS = 50 },
			expectError: true,
			errorMsg:    "timeout_ms",
		},
		{
			name:        "zero max pending",
			mutate:      func(c *Config) { c.Reassembly.MaxPending = 0 },
			expectError: true,
			errorMsg:    "max_pending",
		},
		{
			name:        "voice window too small",
			mutate:      func(c *Config) { c.Voice.WindowSize = 1 },
			expectError: true,
			errorMsg:    "window_size",
		},
		{
			name:        "zero bar count",
			mutate:      func(c *Config) { c.Visualizer.BarCount = 0 },
			expectError: true,
			errorMsg:    "bar_count",
		},
		{
			name:        "noise floor of one",
			mutate:      func(c *Config) { c.Visualizer.NoiseFloor = 1.0 },
			expectError: true,
			errorMsg:    "noise_floor",
		},
		{
			name:        "publish rate above tick rate",
			mutate:      func(c *Config) { c.Visualizer.PublishRateHz = 60 },
			expectError: true,
			errorMsg:    "publish_rate_hz",
		},
		{
			name:        "zero max sessions",
			mutate:      func(c *Config) { c.Session.MaxSessions = 0 },
			expectError: true,
			errorMsg:    "max_sessions",
		},
		{
			name: "enabled webhook without endpoint",
			mutate: func(c *Config) {
				c.Webhook.Enabled = true
				c.Webhook.Endpoint = ""
			},
			expectError: true,
			errorMsg:    "endpoint",
		},
		{
			name: "disabled webhook skips endpoint check",
			mutate: func(c *Config) {
				c.Webhook.Enabled = false
				c.Webhook.Endpoint = ""
			},
		},
		{
			name:        "invalid log level",
			mutate:      func(c *Config) { c.Logging.Level = "verbose" },
			expectError: true,
			errorMsg:    "level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.expectError {
				if err == nil {
					t.Fatalf("Expected error but got none")
				}
				if tt.errorMsg != "" && !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("error %q does not mention %q", err.Error(), tt.errorMsg)
				}
				return
			}
			if err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestLoadMergesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
server:
  port: 9999
reassembly:
  timeout_ms: 2000
webhook:
  enabled: true
  endpoint: "http://localhost:9090/turns"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 9999 {
		t.Errorf("Port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Reassembly.TimeoutMS != 2000 {
		t.Errorf("TimeoutMS = %d, want 2000", cfg.Reassembly.TimeoutMS)
	}

	// Unspecified sections keep default values.
	if cfg.Visualizer.BarCount != 5 {
		t.Errorf("BarCount = %d, want default 5", cfg.Visualizer.BarCount)
	}
	if cfg.Session.IdleTimeout != 300 {
		t.Errorf("IdleTimeout = %d, want default 300", cfg.Session.IdleTimeout)
	}
	if !cfg.Webhook.Enabled {
		t.Errorf("Webhook.Enabled = false, want true")
	}
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
			t.Error("Expected error for missing file")
		}
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		if err := os.WriteFile(path, []byte("server: [not a mapping"), 0644); err != nil {
			t.Fatalf("failed to write config file: %v", err)
		}
		if _, err := Load(path); err == nil {
			t.Error("Expected error for invalid yaml")
		}
	})

	t.Run("validation failure", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "invalid.yaml")
		if err := os.WriteFile(path, []byte("server:\n  port: 0\n"), 0644); err != nil {
			t.Fatalf("failed to write config file: %v", err)
		}
		if _, err := Load(path); err == nil {
			t.Error("Expected validation error")
		}
	})
}

func TestDurationGetters(t *testing.T) {
	cfg := Default()

	if got := cfg.Reassembly.GetTimeout(); got != 5*time.Second {
		t.Errorf("GetTimeout() = %v, want 5s", got)
	}
	if got := cfg.Reassembly.GetSweepInterval(); got != time.Second {
		t.Errorf("GetSweepInterval() = %v, want 1s", got)
	}
	if got := cfg.Voice.GetSamplePeriod(); got != 100*time.Millisecond {
		t.Errorf("GetSamplePeriod() = %v, want 100ms", got)
	}
	if got := cfg.Visualizer.GetTickPeriod(); got != time.Second/30 {
		t.Errorf("GetTickPeriod() = %v, want %v", got, time.Second/30)
	}
	if got := cfg.Visualizer.GetPublishInterval(); got != time.Second/15 {
		t.Errorf("GetPublishInterval() = %v, want %v", got, time.Second/15)
	}
	if got := cfg.Session.GetIdleTimeout(); got != 5*time.Minute {
		t.Errorf("GetIdleTimeout() = %v, want 5m", got)
	}
	if got := cfg.Webhook.GetTimeoutDuration(); got != 10*time.Second {
		t.Errorf("GetTimeoutDuration() = %v, want 10s", got)
	}
}
