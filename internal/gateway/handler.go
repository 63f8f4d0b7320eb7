// HTTP handlers for the gateway endpoints.
//
// ENDPOINTS:
//   - POST /v1/chat/completions: the orchestrated SSE stream
//   - GET  /healthz:             gateway liveness
//   - GET  /upstream-health:     upstream reachability
//   - GET  /stats:               operational counters
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"github.com/reasonflow/reasoning-gateway/external"
	"github.com/reasonflow/reasoning-gateway/internal/capability"
	"github.com/reasonflow/reasoning-gateway/internal/config"
	"github.com/reasonflow/reasoning-gateway/internal/monitoring"
	"github.com/reasonflow/reasoning-gateway/internal/pipeline"
	"github.com/reasonflow/reasoning-gateway/internal/utils"
)

// handleChatCompletions runs the full pipeline for one client request and
// streams ordered events back over SSE.
func (g *Gateway) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		g.writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	requestID := monitoring.RequestIDFromContext(r.Context())

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, config.MaxRequestBodySize))
	if err != nil {
		g.alerts.FlagInvalidRequest(requestID, "body read failed")
		g.writeError(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	req, err := g.parseRequest(requestID, body)
	if err != nil {
		g.alerts.FlagInvalidRequest(requestID, err.Error())
		if errors.Is(err, capability.ErrUnknownModel) {
			log.Warn().Str("request_id", requestID).Str("model", req.Model).Msg("model rejected")
		}
		g.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	sse, err := newSSEWriter(w, requestID)
	if err != nil {
		g.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	stats := &monitoring.StreamEvent{
		RequestID: requestID,
		Timestamp: time.Now(),
		Model:     req.Model,
	}
	stats.PromptTokensEst = monitoring.EstimateTokens(req.FlattenedPrompt())
	g.metrics.RecordStream()

	start := time.Now()
	ctx := r.Context()
	events := g.orch.Run(ctx, req, stats)

	first := true
	for ev := range events {
		if first {
			stats.TimeToFirstEventMs = time.Since(start).Milliseconds()
			first = false
		}
		if ev.Kind == pipeline.KindError {
			if ev.Stage == pipeline.StageUpstreamStream {
				g.alerts.FlagStreamFailure(requestID, errors.New(ev.Text))
			} else {
				g.alerts.FlagSummaryFailure(requestID, ev.Stage, errors.New(ev.Text))
			}
		}
		if err := sse.WriteEvent(ev); err != nil {
			// Client went away; cancellation propagates via r.Context().
			log.Debug().Str("request_id", requestID).Err(err).Msg("client write failed")
			break
		}
	}

	if ctx.Err() != nil {
		stats.Canceled = true
		g.metrics.RecordCancellation()
	}
	stats.TotalMs = time.Since(start).Milliseconds()
	g.tracker.RecordStream(stats)
}

// parseRequest validates the client body and resolves the model capability.
// The raw body is retained for passthrough to the upstream.
func (g *Gateway) parseRequest(requestID string, body []byte) (*pipeline.Request, error) {
	if !gjson.ValidBytes(body) {
		return &pipeline.Request{}, errors.New("invalid JSON body")
	}

	parsed := gjson.ParseBytes(body)
	model := parsed.Get("model").String()
	req := &pipeline.Request{
		RequestID:    requestID,
		Model:        model,
		SummaryModel: parsed.Get("summary_model").String(),
		RawBody:      body,
	}

	if model == "" {
		return req, errors.New("model is required")
	}
	msgs := parsed.Get("messages")
	if !msgs.IsArray() || len(msgs.Array()) == 0 {
		return req, errors.New("messages must be a non-empty array")
	}
	if stream := parsed.Get("stream"); stream.Exists() && !stream.Bool() {
		return req, errors.New("only stream=true is supported")
	}

	for _, m := range msgs.Array() {
		req.Messages = append(req.Messages, external.ChatMessage{
			Role:    m.Get("role").String(),
			Content: m.Get("content").String(),
		})
	}

	mc, err := g.registry.Resolve(model)
	if err != nil {
		return req, err
	}
	req.Capability = mc
	return req, nil
}

// handleHealthz reports gateway liveness.
func (g *Gateway) handleHealthz(w http.ResponseWriter, r *http.Request) {
	g.writeJSON(w, map[string]any{
		"status":         "ok",
		"uptime_seconds": int(time.Since(g.startTime).Seconds()),
	})
}

// handleUpstreamHealth reports upstream reachability.
func (g *Gateway) handleUpstreamHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if !g.client.Ping(ctx) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]any{
			"status":   "unreachable",
			"upstream": g.client.URL(),
		})
		return
	}
	g.writeJSON(w, map[string]any{
		"status":   "ok",
		"upstream": g.client.URL(),
	})
}

// handleStats exposes operational counters.
func (g *Gateway) handleStats(w http.ResponseWriter, r *http.Request) {
	g.writeJSON(w, map[string]any{
		"counters":         g.metrics.Stats(),
		"streams_recorded": g.tracker.StreamCount(),
		"uptime_seconds":   int(time.Since(g.startTime).Seconds()),
	})
}

func (g *Gateway) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	body, err := utils.MarshalNoEscape(v)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Write(body)
}
