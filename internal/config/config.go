// Package config loads and validates the gateway configuration.
//
// DESIGN: Configuration comes from a YAML file with ${VAR:-default} env var
// expansion, so the same file serves local development and deployments that
// configure everything through the environment.
//
// FILES:
//   - config.go:   Root Config struct, Load(), Validate()
//   - defaults.go: Centralized default values and limits
package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/reasonflow/reasoning-gateway/internal/monitoring"
)

// Config is the root configuration for the reasoning gateway.
type Config struct {
	Server     ServerConfig                `yaml:"server"`     // HTTP server settings
	Upstream   UpstreamConfig              `yaml:"upstream"`   // Upstream chat-completions API
	Gateway    GatewayConfig               `yaml:"gateway"`    // Orchestration behavior
	Monitoring monitoring.MonitoringConfig `yaml:"monitoring"` // Logging, telemetry, alerts
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port         int           `yaml:"port"`          // Port to listen on
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // Max time to read request
	WriteTimeout time.Duration `yaml:"write_timeout"` // Max time to write response (must cover streaming)
}

// UpstreamConfig describes the upstream chat-completions API and the
// retry/timeout policy applied to calls against it.
type UpstreamConfig struct {
	BaseURL        string        `yaml:"base_url"`        // e.g. http://localhost:8001
	Path           string        `yaml:"path"`            // e.g. /chat/completions
	APIKey         string        `yaml:"api_key"`         // Bearer token, optional
	RequestTimeout time.Duration `yaml:"request_timeout"` // Initial connection / non-streaming deadline
	SummaryTimeout time.Duration `yaml:"summary_timeout"` // Deadline for summary calls
	MaxRetries     int           `yaml:"max_retries"`     // Retries after the first attempt
	RetryBackoff   time.Duration `yaml:"retry_backoff"`   // Base backoff, doubled each attempt
}

// GatewayConfig contains orchestration behavior settings.
type GatewayConfig struct {
	MaxReasoningChars     int      `yaml:"max_reasoning_chars"`     // Cap on reasoning text fed to the summary call
	AllowModels           []string `yaml:"allow_models"`            // Model allowlist; empty = allow all
	SummaryModelDefault   string   `yaml:"summary_model_default"`   // Model for summary calls when not overridden
	ParseNativeReasoning  bool     `yaml:"parse_native_reasoning"`  // Prefer upstream reasoning fields over tag parsing
	NativeReasoningModels []string `yaml:"native_reasoning_models"` // Models known to emit a reasoning field
}

// UnmarshalYAML accepts duration fields as Go duration strings or bare
// seconds; yaml.v3 has no native time.Duration support.
func (s *ServerConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Port         int    `yaml:"port"`
		ReadTimeout  string `yaml:"read_timeout"`
		WriteTimeout string `yaml:"write_timeout"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	s.Port = raw.Port
	var err error
	if s.ReadTimeout, err = parseDuration(raw.ReadTimeout); err != nil {
		return fmt.Errorf("server.read_timeout: %w", err)
	}
	if s.WriteTimeout, err = parseDuration(raw.WriteTimeout); err != nil {
		return fmt.Errorf("server.write_timeout: %w", err)
	}
	return nil
}

// UnmarshalYAML accepts duration fields as Go duration strings or bare seconds.
func (u *UpstreamConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		BaseURL        string `yaml:"base_url"`
		Path           string `yaml:"path"`
		APIKey         string `yaml:"api_key"`
		RequestTimeout string `yaml:"request_timeout"`
		SummaryTimeout string `yaml:"summary_timeout"`
		MaxRetries     int    `yaml:"max_retries"`
		RetryBackoff   string `yaml:"retry_backoff"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	u.BaseURL = raw.BaseURL
	u.Path = raw.Path
	u.APIKey = raw.APIKey
	u.MaxRetries = raw.MaxRetries
	var err error
	if u.RequestTimeout, err = parseDuration(raw.RequestTimeout); err != nil {
		return fmt.Errorf("upstream.request_timeout: %w", err)
	}
	if u.SummaryTimeout, err = parseDuration(raw.SummaryTimeout); err != nil {
		return fmt.Errorf("upstream.summary_timeout: %w", err)
	}
	if u.RetryBackoff, err = parseDuration(raw.RetryBackoff); err != nil {
		return fmt.Errorf("upstream.retry_backoff: %w", err)
	}
	return nil
}

// parseDuration parses "30s"-style strings and bare numbers of seconds.
// Empty means unset (filled by applyDefaults).
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(n * float64(time.Second)), nil
	}
	return 0, fmt.Errorf("invalid duration %q", s)
}

// expandEnvWithDefaults expands environment variables with support for default values.
// Supports both ${VAR} and ${VAR:-default} syntax.
func expandEnvWithDefaults(s string) string {
	// Pattern matches ${VAR:-default} or ${VAR}
	re := regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultValue := ""
		if len(parts) > 2 {
			defaultValue = parts[2]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}

// ExpandEnvWithDefaults expands environment variables with support for default
// values. Exported for tests and the embedded default config.
func ExpandEnvWithDefaults(s string) string {
	return expandEnvWithDefaults(s)
}

// Load reads configuration from a YAML file.
// Returns an error if the file doesn't exist or is invalid.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config file path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	return LoadFromBytes(data)
}

// LoadFromBytes parses configuration from raw YAML bytes.
// Supports ${VAR:-default} env var expansion, applies defaults for optional
// fields, and validates the result.
func LoadFromBytes(data []byte) (*Config, error) {
	expanded := expandEnvWithDefaults(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyDefaults fills in defaults for fields that may be omitted.
func (c *Config) applyDefaults() {
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = DefaultServerReadTimeout
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = DefaultServerWriteTimeout
	}
	if c.Upstream.Path == "" {
		c.Upstream.Path = DefaultUpstreamPath
	}
	if c.Upstream.RequestTimeout == 0 {
		c.Upstream.RequestTimeout = DefaultRequestTimeout
	}
	if c.Upstream.SummaryTimeout == 0 {
		c.Upstream.SummaryTimeout = DefaultSummaryTimeout
	}
	if c.Upstream.MaxRetries == 0 {
		c.Upstream.MaxRetries = DefaultMaxRetries
	}
	if c.Upstream.RetryBackoff == 0 {
		c.Upstream.RetryBackoff = DefaultRetryBackoff
	}
	if c.Gateway.MaxReasoningChars == 0 {
		c.Gateway.MaxReasoningChars = DefaultMaxReasoningChars
	}
	if c.Monitoring.Logging.Level == "" {
		c.Monitoring.Logging.Level = "info"
	}
	if c.Monitoring.Alerts.HighLatencyThreshold == 0 {
		c.Monitoring.Alerts.HighLatencyThreshold = 5 * time.Second
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port == 0 {
		return fmt.Errorf("server.port is required")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port: %d (must be 1-65535)", c.Server.Port)
	}

	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream.base_url is required")
	}
	if !strings.HasPrefix(c.Upstream.BaseURL, "http://") && !strings.HasPrefix(c.Upstream.BaseURL, "https://") {
		return fmt.Errorf("invalid upstream.base_url: %q (must be http or https)", c.Upstream.BaseURL)
	}
	if !strings.HasPrefix(c.Upstream.Path, "/") {
		return fmt.Errorf("invalid upstream.path: %q (must start with /)", c.Upstream.Path)
	}
	if c.Upstream.MaxRetries < 0 {
		return fmt.Errorf("upstream.max_retries must be >= 0")
	}
	if c.Upstream.RetryBackoff < 0 {
		return fmt.Errorf("upstream.retry_backoff must be >= 0")
	}

	if c.Gateway.MaxReasoningChars < 0 {
		return fmt.Errorf("gateway.max_reasoning_chars must be >= 0")
	}
	for _, m := range c.Gateway.AllowModels {
		if strings.TrimSpace(m) == "" {
			return fmt.Errorf("gateway.allow_models contains an empty entry")
		}
	}

	return nil
}

// UpstreamURL returns the full URL for the chat-completions endpoint.
func (c *Config) UpstreamURL() string {
	return strings.TrimSuffix(c.Upstream.BaseURL, "/") + c.Upstream.Path
}
