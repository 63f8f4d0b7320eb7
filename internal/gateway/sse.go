package gateway

import (
	"fmt"
	"net/http"

	"github.com/reasonflow/reasoning-gateway/internal/pipeline"
	"github.com/reasonflow/reasoning-gateway/internal/utils"
)

// sseWriter frames pipeline events as server-sent events and flushes each one
// immediately so clients see deltas as they happen.
type sseWriter struct {
	w         http.ResponseWriter
	flusher   http.Flusher
	requestID string
}

func newSSEWriter(w http.ResponseWriter, requestID string) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support streaming")
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	return &sseWriter{w: w, flusher: flusher, requestID: requestID}, nil
}

type textPayload struct {
	Text      string `json:"text"`
	RequestID string `json:"request_id"`
}

type errorPayload struct {
	Message   string `json:"message"`
	Stage     string `json:"stage"`
	RequestID string `json:"request_id"`
}

// WriteEvent frames one pipeline event. Payloads are encoded without HTML
// escaping: delta text can legitimately contain angle brackets.
func (s *sseWriter) WriteEvent(ev pipeline.Event) error {
	var payload any
	if ev.Kind == pipeline.KindError {
		payload = errorPayload{Message: ev.Text, Stage: ev.Stage, RequestID: s.requestID}
	} else {
		payload = textPayload{Text: ev.Text, RequestID: s.requestID}
	}

	data, err := utils.MarshalNoEscape(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", ev.Kind, data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
