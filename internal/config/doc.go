// Package config provides configuration loading and validation for the
// session service. It handles YAML-based configuration with per-section
// struct validation and sensible defaults.
package config
