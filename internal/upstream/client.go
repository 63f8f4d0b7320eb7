// Package upstream is the HTTP client for the chat-completions API behind the
// gateway.
//
// DESIGN: Two call shapes, matching the pipeline's needs:
//   - Complete():   non-streaming summary calls (Calls A and C)
//   - OpenStream(): the single streaming answer call (Call B)
//
// Retry with exponential backoff applies to summary calls and to the
// streaming call's initial connection only. Once a stream has begun emitting
// chunks, a failure surfaces to the caller; the stream is not restartable.
// Every attempt honors context cancellation, including backoff sleeps.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/reasonflow/reasoning-gateway/external"
	"github.com/reasonflow/reasoning-gateway/internal/config"
	"github.com/reasonflow/reasoning-gateway/internal/monitoring"
	"github.com/reasonflow/reasoning-gateway/internal/utils"
)

// Client issues calls against the upstream chat-completions API.
// Safe for concurrent use by many requests; the underlying connection pool is
// the only state shared across requests.
type Client struct {
	cfg config.UpstreamConfig
	url string

	// summary client bounds the whole call; the stream client must not kill
	// long-lived response bodies, so it only bounds the response header.
	summaryClient *http.Client
	streamClient  *http.Client

	metrics   *monitoring.MetricsCollector // optional
	reqLogger *monitoring.RequestLogger    // optional
}

// NewClient creates an upstream client from configuration.
// metrics and reqLogger may be nil.
func NewClient(cfg config.UpstreamConfig, metrics *monitoring.MetricsCollector, reqLogger *monitoring.RequestLogger) *Client {
	return &Client{
		cfg: cfg,
		url: strings.TrimSuffix(cfg.BaseURL, "/") + cfg.Path,
		summaryClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		streamClient: &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: cfg.RequestTimeout,
				ForceAttemptHTTP2:     true,
			},
		},
		metrics:   metrics,
		reqLogger: reqLogger,
	}
}

// logOutgoing records one upstream call attempt (1-based) for tracing.
func (c *Client) logOutgoing(ctx context.Context, kind string, bodySize, attempt int) {
	if c.reqLogger == nil {
		return
	}
	c.reqLogger.LogOutgoing(&monitoring.OutgoingCallInfo{
		RequestID: monitoring.RequestIDFromContext(ctx),
		Kind:      kind,
		TargetURL: c.url,
		BodySize:  bodySize,
		Attempt:   attempt,
	})
}

// URL returns the resolved chat-completions endpoint.
func (c *Client) URL() string { return c.url }

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
}

// backoffDelay returns the sleep before retrying after the given attempt
// (0-based): base, 2*base, 4*base, ...
func (c *Client) backoffDelay(attempt int) time.Duration {
	return c.cfg.RetryBackoff << uint(attempt)
}

// sleep waits for the backoff delay or until the context is canceled.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Complete sends a non-streaming chat-completions request and returns the
// first choice's content. Retries 502/503/504 and transport errors up to
// cfg.MaxRetries times with doubling backoff.
func (c *Client) Complete(ctx context.Context, payload *external.ChatRequest) (string, error) {
	body, err := utils.MarshalNoEscape(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal summary request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if c.metrics != nil {
				c.metrics.RecordRetry()
			}
			if err := sleep(ctx, c.backoffDelay(attempt-1)); err != nil {
				return "", err
			}
		}

		c.logOutgoing(ctx, "summary", len(body), attempt+1)
		content, err := c.completeOnce(ctx, body)
		if err == nil {
			return content, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !retryable(err) {
			return "", err
		}
		log.Debug().Err(err).Int("attempt", attempt+1).Msg("summary call failed, retrying")
	}
	return "", fmt.Errorf("upstream request failed after %d attempts: %w", c.cfg.MaxRetries+1, lastErr)
}

func (c *Client) completeOnce(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	c.setHeaders(req)

	resp, err := c.summaryClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", &StatusError{Code: resp.StatusCode, Body: readErrorBody(resp.Body)}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, config.MaxRequestBodySize))
	if err != nil {
		return "", err
	}

	var parsed external.ChatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("%w: %s", ErrMalformedResponse, parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices", ErrMalformedResponse)
	}
	return parsed.Content(), nil
}

// OpenStream opens the streaming answer call. payload is the fully built
// request body (stream:true already set). Only the initial connection is
// retried; a returned Stream is live and not restartable.
func (c *Client) OpenStream(ctx context.Context, payload []byte) (*Stream, error) {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if c.metrics != nil {
				c.metrics.RecordRetry()
			}
			if err := sleep(ctx, c.backoffDelay(attempt-1)); err != nil {
				return nil, err
			}
		}

		c.logOutgoing(ctx, "answer_stream", len(payload), attempt+1)
		stream, err := c.openOnce(ctx, payload)
		if err == nil {
			return stream, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !retryable(err) {
			return nil, err
		}
		log.Debug().Err(err).Int("attempt", attempt+1).Msg("stream connection failed, retrying")
	}
	return nil, fmt.Errorf("upstream stream failed after %d attempts: %w", c.cfg.MaxRetries+1, lastErr)
}

func (c *Client) openOnce(ctx context.Context, payload []byte) (*Stream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, &StatusError{Code: resp.StatusCode, Body: readErrorBody(resp.Body)}
	}

	return newStream(resp.Body), nil
}

// Ping checks upstream reachability with a simple GET against the base URL.
func (c *Client) Ping(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(c.cfg.BaseURL, "/")+"/", nil)
	if err != nil {
		return false
	}
	resp, err := c.summaryClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 500
}

// readErrorBody reads a bounded prefix of an error response for diagnostics.
func readErrorBody(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, config.MaxErrorBodyLogLen))
	return string(data)
}
