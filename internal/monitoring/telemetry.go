// Package monitoring - telemetry.go records events to JSONL files.
//
// DESIGN: Tracker writes one StreamEvent per orchestrated request as JSONL
// (one JSON object per line). Events are appended immediately after the SSE
// stream closes so tail -f gives a live view.
package monitoring

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
)

// Tracker handles telemetry event recording to file and stdout.
type Tracker struct {
	config      TelemetryConfig
	logPath     string
	streamCount int
	mu          sync.Mutex
}

// NewTracker creates a new telemetry tracker.
func NewTracker(cfg TelemetryConfig) (*Tracker, error) {
	t := &Tracker{config: cfg}

	if !cfg.Enabled {
		return t, nil
	}

	if cfg.LogPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogPath), 0750); err != nil {
			return nil, err
		}
		t.logPath = cfg.LogPath
		// Create empty file if it doesn't exist
		if _, err := os.Stat(cfg.LogPath); os.IsNotExist(err) {
			if f, err := os.Create(cfg.LogPath); err == nil {
				f.Close()
			}
		}
	}

	return t, nil
}

// appendJSONL appends a single JSON object as a line to the file.
func appendJSONL(path string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(data)
	return err
}

// RecordStream records one completed (or failed) orchestrated request.
func (t *Tracker) RecordStream(event *StreamEvent) {
	if !t.config.Enabled {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.streamCount++

	if t.config.LogToStdout {
		log.Info().
			Str("request_id", event.RequestID).
			Str("model", event.Model).
			Int64("total_ms", event.TotalMs).
			Int("reasoning_chars", event.ReasoningChars).
			Int("final_chars", event.FinalChars).
			Bool("success", event.Success).
			Msg("stream_complete")
	}

	if t.logPath != "" {
		if err := appendJSONL(t.logPath, event); err != nil {
			log.Warn().Err(err).Str("path", t.logPath).Msg("failed to write telemetry")
		}
	}
}

// StreamCount returns the number of recorded stream events.
func (t *Tracker) StreamCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.streamCount
}
