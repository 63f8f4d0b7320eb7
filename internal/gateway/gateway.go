// Package gateway is the HTTP surface of the reasoning gateway: it accepts
// chat-completion requests, runs the orchestration pipeline against the
// upstream API, and re-emits the result as a strictly ordered SSE stream.
//
// DESIGN: Gateway wires together the upstream client, the capability
// registry, the orchestrator, and the monitoring stack. Handlers live in
// handler.go, middleware in middleware.go, SSE encoding in sse.go.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/reasonflow/reasoning-gateway/internal/capability"
	"github.com/reasonflow/reasoning-gateway/internal/config"
	"github.com/reasonflow/reasoning-gateway/internal/monitoring"
	"github.com/reasonflow/reasoning-gateway/internal/pipeline"
	"github.com/reasonflow/reasoning-gateway/internal/upstream"
	"github.com/reasonflow/reasoning-gateway/internal/utils"
)

// HeaderRequestID carries the request ID between client and gateway.
const HeaderRequestID = "X-Request-ID"

// Gateway serves the client-facing HTTP API.
type Gateway struct {
	cfg      *config.Config
	client   *upstream.Client
	registry *capability.Registry
	orch     *pipeline.Orchestrator

	logger        *monitoring.Logger
	requestLogger *monitoring.RequestLogger
	metrics       *monitoring.MetricsCollector
	alerts        *monitoring.AlertManager
	tracker       *monitoring.Tracker
	rateLimiter   *rateLimiter

	startTime time.Time
}

// New creates a Gateway from configuration.
func New(cfg *config.Config) (*Gateway, error) {
	logger := monitoring.New(cfg.Monitoring.Logging)

	tracker, err := monitoring.NewTracker(cfg.Monitoring.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	metrics := monitoring.NewMetricsCollector()
	requestLogger := monitoring.NewRequestLogger(logger)
	alerts := monitoring.NewAlertManager(logger, cfg.Monitoring.Alerts)
	client := upstream.NewClient(cfg.Upstream, metrics, requestLogger)

	g := &Gateway{
		cfg:    cfg,
		client: client,
		registry: capability.NewRegistry(capability.Options{
			AllowModels:           cfg.Gateway.AllowModels,
			NativeReasoningModels: cfg.Gateway.NativeReasoningModels,
			ParseNativeReasoning:  cfg.Gateway.ParseNativeReasoning,
		}),
		orch: pipeline.NewOrchestrator(pipeline.ClientUpstream{Client: client}, pipeline.Options{
			SummaryModelDefault: cfg.Gateway.SummaryModelDefault,
			MaxReasoningChars:   cfg.Gateway.MaxReasoningChars,
			SummaryTimeout:      cfg.Upstream.SummaryTimeout,
		}, metrics, alerts),
		logger:        logger,
		requestLogger: requestLogger,
		metrics:       metrics,
		alerts:        alerts,
		tracker:       tracker,
		rateLimiter:   newRateLimiter(config.DefaultRateLimit),
		startTime:     time.Now(),
	}
	return g, nil
}

// Handler returns the full handler chain.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", g.handleChatCompletions)
	mux.HandleFunc("/healthz", g.handleHealthz)
	mux.HandleFunc("/upstream-health", g.handleUpstreamHealth)
	mux.HandleFunc("/stats", g.handleStats)

	// Outermost first: recovery wraps everything, security runs last before
	// the mux so even rate-limited responses carry the headers.
	var h http.Handler = mux
	h = g.security(h)
	h = g.loggingMiddleware(h)
	h = g.rateLimit(h)
	h = g.panicRecovery(h)
	return h
}

// Start runs the HTTP server until ctx is canceled.
func (g *Gateway) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", g.cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      g.Handler(),
		ReadTimeout:  g.cfg.Server.ReadTimeout,
		WriteTimeout: g.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", addr).
			Str("upstream", g.client.URL()).
			Str("api_key", utils.MaskKey(g.cfg.Upstream.APIKey)).
			Msg("gateway listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// writeError sends a JSON error response.
func (g *Gateway) writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body, err := utils.MarshalNoEscape(map[string]any{
		"error": map[string]string{
			"message": message,
			"type":    "gateway_error",
		},
	})
	if err != nil {
		return
	}
	w.Write(body)
}
