// Package monitoring - types.go defines shared types.
//
// DESIGN: These types are used by both gateway/ and monitoring/ packages.
// Defined here ONCE to avoid duplication and circular imports.
package monitoring

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// EVENT TYPES - Structured data for telemetry recording
// =============================================================================

// StreamEvent captures one orchestrated request through the gateway.
// Written as a JSONL line when the SSE stream closes.
type StreamEvent struct {
	RequestID    string    `json:"request_id"`
	Timestamp    time.Time `json:"timestamp"`
	Model        string    `json:"model"`
	SummaryModel string    `json:"summary_model,omitempty"`
	Strategy     string    `json:"strategy"` // tag or native

	// Stage latencies
	PromptSummaryMs    int64 `json:"prompt_summary_ms"`
	ReasoningSummaryMs int64 `json:"reasoning_summary_ms"`
	TimeToFirstEventMs int64 `json:"time_to_first_event_ms"`
	TotalMs            int64 `json:"total_ms"`

	// Stream shape
	ReasoningChars     int  `json:"reasoning_chars"`
	ReasoningTruncated bool `json:"reasoning_truncated"`
	FinalChars         int  `json:"final_chars"`
	EventsEmitted      int  `json:"events_emitted"`

	// Token estimates (tiktoken when available, char ratio otherwise)
	PromptTokensEst    int `json:"prompt_tokens_est,omitempty"`
	ReasoningTokensEst int `json:"reasoning_tokens_est,omitempty"`

	// Degradation / failure
	PromptSummaryFallback    bool   `json:"prompt_summary_fallback,omitempty"`
	ReasoningSummaryFallback bool   `json:"reasoning_summary_fallback,omitempty"`
	Canceled                 bool   `json:"canceled,omitempty"`
	Success                  bool   `json:"success"`
	Error                    string `json:"error,omitempty"`
	Stage                    string `json:"stage,omitempty"`
}

// =============================================================================
// CONFIG TYPES
// =============================================================================

// MonitoringConfig groups all observability settings.
type MonitoringConfig struct {
	Logging   LoggerConfig    `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Alerts    AlertConfig     `yaml:"alerts"`
}

// LoggerConfig contains logging configuration.
type LoggerConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
	Output string `yaml:"output"` // stdout, stderr, or file path
}

// TelemetryConfig contains telemetry configuration.
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	LogPath     string `yaml:"log_path"`
	LogToStdout bool   `yaml:"log_to_stdout"`
}

// AlertConfig contains alert thresholds.
type AlertConfig struct {
	HighLatencyThreshold time.Duration `yaml:"high_latency_threshold"`
}

// UnmarshalYAML accepts the threshold as a Go duration string or bare
// seconds; yaml.v3 has no native time.Duration support.
func (a *AlertConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		HighLatencyThreshold string `yaml:"high_latency_threshold"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	s := strings.TrimSpace(raw.HighLatencyThreshold)
	if s == "" {
		a.HighLatencyThreshold = 0
		return nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		a.HighLatencyThreshold = d
		return nil
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		a.HighLatencyThreshold = time.Duration(n * float64(time.Second))
		return nil
	}
	return fmt.Errorf("invalid alerts.high_latency_threshold %q", raw.HighLatencyThreshold)
}
