// Package monitoring - alerts.go flags anomalies and errors.
//
// DESIGN: AlertManager logs notable events at appropriate levels:
//   - FlagHighLatency:    Warn when a request exceeds the threshold
//   - FlagSummaryFailure: Warn when a summary call exhausts retries
//   - FlagStreamFailure:  Error when the answer stream fails mid-flight
//   - FlagUpstreamTimeout: Error on upstream timeout
//   - FlagPanic:          Error on recovered panics
package monitoring

import "time"

// AlertManager flags anomalies and errors.
type AlertManager struct {
	logger               *Logger
	highLatencyThreshold time.Duration
}

// NewAlertManager creates a new alert manager.
func NewAlertManager(logger *Logger, cfg AlertConfig) *AlertManager {
	threshold := cfg.HighLatencyThreshold
	if threshold == 0 {
		threshold = 5 * time.Second
	}
	return &AlertManager{logger: logger, highLatencyThreshold: threshold}
}

// FlagHighLatency logs when request latency exceeds threshold.
func (am *AlertManager) FlagHighLatency(requestID string, latency time.Duration, path string) {
	if latency < am.highLatencyThreshold {
		return
	}
	am.logger.Warn().
		Str("request_id", requestID).
		Dur("latency", latency).
		Str("path", path).
		Msg("high_latency")
}

// FlagSummaryFailure logs a summary call that exhausted retries.
func (am *AlertManager) FlagSummaryFailure(requestID, stage string, err error) {
	am.logger.Warn().
		Str("request_id", requestID).
		Str("stage", stage).
		Err(err).
		Msg("summary_failed")
}

// FlagStreamFailure logs a mid-stream upstream failure.
func (am *AlertManager) FlagStreamFailure(requestID string, err error) {
	am.logger.Error().
		Str("request_id", requestID).
		Err(err).
		Msg("stream_failed")
}

// FlagUpstreamTimeout logs an upstream call that hit its deadline.
func (am *AlertManager) FlagUpstreamTimeout(requestID, stage string, timeout time.Duration) {
	am.logger.Error().
		Str("request_id", requestID).
		Str("stage", stage).
		Dur("timeout", timeout).
		Msg("upstream_timeout")
}

// FlagInvalidRequest logs a rejected client request.
func (am *AlertManager) FlagInvalidRequest(requestID, reason string) {
	am.logger.Debug().
		Str("request_id", requestID).
		Str("reason", reason).
		Msg("invalid_request")
}

// FlagPanic logs a recovered panic.
func (am *AlertManager) FlagPanic(requestID string, panicValue interface{}, stack string) {
	am.logger.Error().
		Str("request_id", requestID).
		Interface("panic", panicValue).
		Msg("panic_recovered")
}
