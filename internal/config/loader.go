package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// CORS profiles.
const (
	CORSOff        = "off"
	CORSDev        = "dev"
	CORSProduction = "production"
)

// CORSConfig selects a cross-origin profile. Origins is the allow-list used by
// the production profile.
type CORSConfig struct {
	Profile string   `json:"profile" yaml:"profile" toml:"profile"`
	Origins []string `json:"origins" yaml:"origins" toml:"origins"`
	MaxAge  int      `json:"max_age" yaml:"max_age" toml:"max_age"`
}

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and are replaced by WithDefaults.
type Config struct {
	Addr                     string     `json:"addr" yaml:"addr" toml:"addr"`
	ModelPath                string     `json:"model_path" yaml:"model_path" toml:"model_path"`
	StaticRoot               string     `json:"static_root" yaml:"static_root" toml:"static_root"`
	LogLevel                 string     `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat                string     `json:"log_format" yaml:"log_format" toml:"log_format"`
	LogFile                  string     `json:"log_file" yaml:"log_file" toml:"log_file"`
	MaxBodyBytes             int64      `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	ReadHeaderTimeoutSeconds int        `json:"read_header_timeout_seconds" yaml:"read_header_timeout_seconds" toml:"read_header_timeout_seconds"`
	ShutdownTimeoutSeconds   int        `json:"shutdown_timeout_seconds" yaml:"shutdown_timeout_seconds" toml:"shutdown_timeout_seconds"`
	CORS                     CORSConfig `json:"cors" yaml:"cors" toml:"cors"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Addr:                     ":8000",
		ModelPath:                "models/iris.forest",
		StaticRoot:               ".",
		LogLevel:                 "info",
		LogFormat:                "auto",
		MaxBodyBytes:             1 << 20,
		ReadHeaderTimeoutSeconds: 10,
		ShutdownTimeoutSeconds:   5,
		CORS:                     CORSConfig{Profile: CORSOff},
	}
}

// WithDefaults fills unspecified fields from Defaults.
func (c Config) WithDefaults() Config {
	d := Defaults()
	if c.Addr == "" {
		c.Addr = d.Addr
	}
	if c.ModelPath == "" {
		c.ModelPath = d.ModelPath
	}
	if c.StaticRoot == "" {
		c.StaticRoot = d.StaticRoot
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = d.LogFormat
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = d.MaxBodyBytes
	}
	if c.ReadHeaderTimeoutSeconds <= 0 {
		c.ReadHeaderTimeoutSeconds = d.ReadHeaderTimeoutSeconds
	}
	if c.ShutdownTimeoutSeconds <= 0 {
		c.ShutdownTimeoutSeconds = d.ShutdownTimeoutSeconds
	}
	if c.CORS.Profile == "" {
		c.CORS.Profile = d.CORS.Profile
	}
	return c
}

// ApplyEnv overrides fields from IRISD_* environment variables. A value that
// cannot be parsed is an error.
func (c Config) ApplyEnv(getenv func(string) string) (Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	if v := getenv("IRISD_ADDR"); v != "" {
		c.Addr = v
	}
	if v := getenv("IRISD_MODEL"); v != "" {
		c.ModelPath = v
	}
	if v := getenv("IRISD_STATIC_ROOT"); v != "" {
		c.StaticRoot = v
	}
	if v := getenv("IRISD_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := getenv("IRISD_CORS"); v != "" {
		c.CORS.Profile = v
	}
	if v := getenv("IRISD_CORS_ORIGINS"); v != "" {
		c.CORS.Origins = SplitCSV(v)
	}
	if v := getenv("IRISD_MAX_BODY_BYTES"); v != "" {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil || n <= 0 {
			return c, fmt.Errorf("IRISD_MAX_BODY_BYTES: want a positive integer, got %q", v)
		}
		c.MaxBodyBytes = n
	}
	return c, nil
}

// Validate checks values that have no sensible fallback.
func (c Config) Validate() error {
	switch c.CORS.Profile {
	case CORSOff, CORSDev:
	case CORSProduction:
		if len(c.CORS.Origins) == 0 {
			return fmt.Errorf("cors profile %q requires at least one origin", CORSProduction)
		}
		for _, o := range c.CORS.Origins {
			if o == "*" {
				return fmt.Errorf("cors profile %q does not accept wildcard origins", CORSProduction)
			}
		}
	default:
		return fmt.Errorf("unknown cors profile %q (want off|dev|production)", c.CORS.Profile)
	}
	switch strings.ToLower(c.LogFormat) {
	case "auto", "console", "json":
	default:
		return fmt.Errorf("unknown log format %q (want auto|console|json)", c.LogFormat)
	}
	return nil
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// SplitCSV splits a comma-separated list, trimming blanks and dropping empty items.
func SplitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
