package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reasonflow/reasoning-gateway/external"
	"github.com/reasonflow/reasoning-gateway/internal/config"
	"github.com/reasonflow/reasoning-gateway/internal/monitoring"
)

func testConfig(baseURL string) config.UpstreamConfig {
	return config.UpstreamConfig{
		BaseURL:        baseURL,
		Path:           "/chat/completions",
		RequestTimeout: 5 * time.Second,
		SummaryTimeout: 5 * time.Second,
		MaxRetries:     2,
		RetryBackoff:   time.Millisecond,
	}
}

func completionBody(content string) []byte {
	body, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": content}},
		},
	})
	return body
}

func TestComplete_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Write(completionBody("a short summary"))
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), nil, nil)
	got, err := c.Complete(context.Background(), external.BuildPromptSummaryRequest("hello", "test-model"))
	require.NoError(t, err)
	assert.Equal(t, "a short summary", got)
}

func TestComplete_RetriesTransientThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write(completionBody("third time lucky"))
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), nil, nil)
	got, err := c.Complete(context.Background(), external.BuildPromptSummaryRequest("hello", "test-model"))
	require.NoError(t, err)
	assert.Equal(t, "third time lucky", got)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestComplete_NonRetryableStatusFailsFast(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"bad"}`))
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), nil, nil)
	_, err := c.Complete(context.Background(), external.BuildPromptSummaryRequest("hello", "test-model"))
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.Code)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "400 must not be retried")
}

func TestComplete_ExhaustsRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), nil, nil)
	_, err := c.Complete(context.Background(), external.BuildPromptSummaryRequest("hello", "test-model"))
	require.Error(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls), "max_retries=2 means 3 attempts")
}

func TestComplete_MalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), nil, nil)
	_, err := c.Complete(context.Background(), external.BuildPromptSummaryRequest("hello", "test-model"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedResponse))
}

func TestComplete_ContextCanceledDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.RetryBackoff = time.Hour // would hang if cancellation were ignored
	c := NewClient(cfg, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := c.Complete(ctx, external.BuildPromptSummaryRequest("hello", "test-model"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestComplete_TracesEveryAttempt(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write(completionBody("done"))
	}))
	defer srv.Close()

	logPath := filepath.Join(t.TempDir(), "requests.log")
	logger := monitoring.New(monitoring.LoggerConfig{Level: "debug", Format: "json", Output: logPath})
	c := NewClient(testConfig(srv.URL), nil, monitoring.NewRequestLogger(logger))

	ctx := monitoring.WithRequestIDContext(context.Background(), "trace-me")
	_, err := c.Complete(ctx, external.BuildPromptSummaryRequest("hello", "test-model"))
	require.NoError(t, err)

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	logged := string(data)
	assert.Contains(t, logged, `"kind":"summary"`)
	assert.Contains(t, logged, `"attempt":1`)
	assert.Contains(t, logged, `"attempt":2`, "the retry is a separate outgoing entry")
	assert.Contains(t, logged, "trace-me")
}

func TestBackoffDelay_Doubles(t *testing.T) {
	cfg := testConfig("http://localhost")
	cfg.RetryBackoff = time.Second
	c := NewClient(cfg, nil, nil)

	assert.Equal(t, time.Second, c.backoffDelay(0))
	assert.Equal(t, 2*time.Second, c.backoffDelay(1))
	assert.Equal(t, 4*time.Second, c.backoffDelay(2))
}

func TestOpenStream_RetriesInitialConnection(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"hi\"}}]}\n\n"))
		w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), nil, nil)
	stream, err := c.OpenStream(context.Background(), []byte(`{"model":"m","stream":true}`))
	require.NoError(t, err)
	defer stream.Close()

	chunk, err := stream.Recv(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hi", chunk.Content)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound) // reachable is enough
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), nil, nil)
	assert.True(t, c.Ping(context.Background()))

	down := NewClient(testConfig("http://127.0.0.1:1"), nil, nil)
	assert.False(t, down.Ping(context.Background()))
}
