package gateway

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/reasonflow/reasoning-gateway/internal/config"
)

// mockUpstream serves the three pipeline calls: summary requests get a JSON
// completion, stream requests get chunked tagged SSE.
func mockUpstream(t *testing.T, streamBody string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		if !gjson.GetBytes(body, "stream").Bool() {
			// Summary call: echo a recognizable digest.
			kind := "prompt digest"
			if strings.Contains(gjson.GetBytes(body, "messages.1.content").String(), "reasoning") {
				kind = "reasoning digest"
			}
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"choices":[{"message":{"role":"assistant","content":"%s"}}]}`, kind)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		// Chunk the tagged body so tags split across frames.
		const chunkSize = 24
		for i := 0; i < len(streamBody); i += chunkSize {
			end := i + chunkSize
			if end > len(streamBody) {
				end = len(streamBody)
			}
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", streamBody[i:end])
			flusher.Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	}))
}

func testGateway(t *testing.T, upstreamURL string, mutate func(*config.Config)) *Gateway {
	t.Helper()
	cfg := &config.Config{}
	cfg.Server.Port = 8080
	cfg.Upstream.BaseURL = upstreamURL
	cfg.Upstream.Path = "/chat/completions"
	cfg.Upstream.RequestTimeout = 5 * time.Second
	cfg.Upstream.SummaryTimeout = 5 * time.Second
	cfg.Upstream.MaxRetries = 1
	cfg.Upstream.RetryBackoff = time.Millisecond
	cfg.Gateway.MaxReasoningChars = 8000
	cfg.Monitoring.Logging.Level = "error"
	if mutate != nil {
		mutate(cfg)
	}

	g, err := New(cfg)
	require.NoError(t, err)
	return g
}

type sseEvent struct {
	kind string
	data string
}

// readSSE parses the gateway's response body into events.
func readSSE(t *testing.T, body string) []sseEvent {
	t.Helper()
	var events []sseEvent
	var cur sseEvent
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			cur.kind = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			cur.data = strings.TrimPrefix(line, "data: ")
		case line == "" && cur.kind != "":
			events = append(events, cur)
			cur = sseEvent{}
		}
	}
	return events
}

func postCompletion(t *testing.T, srv *httptest.Server, body string) (*http.Response, []sseEvent) {
	t.Helper()
	resp, err := http.Post(srv.URL+"/v1/chat/completions", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	buf := new(strings.Builder)
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		buf.WriteString(scanner.Text())
		buf.WriteString("\n")
	}
	return resp, readSSE(t, buf.String())
}

const clientBody = `{"model":"test-model","stream":true,"messages":[{"role":"user","content":"why is the sky blue?"}]}`

func TestChatCompletions_OrderedEventStream(t *testing.T) {
	up := mockUpstream(t, "<analysis>Rayleigh scattering favors short wavelengths.</analysis><final>Because blue light scatters the most.</final>")
	defer up.Close()

	g := testGateway(t, up.URL, nil)
	srv := httptest.NewServer(g.Handler())
	defer srv.Close()

	resp, events := postCompletion(t, srv, clientBody)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.NotEmpty(t, resp.Header.Get(HeaderRequestID))

	require.GreaterOrEqual(t, len(events), 4)
	assert.Equal(t, "summary.prompt", events[0].kind)
	assert.Equal(t, "prompt digest", gjson.Get(events[0].data, "text").String())
	assert.Equal(t, "summary.reasoning", events[1].kind)
	assert.Equal(t, "reasoning digest", gjson.Get(events[1].data, "text").String())

	var final strings.Builder
	for _, ev := range events[2 : len(events)-1] {
		require.Equal(t, "output.delta", ev.kind)
		final.WriteString(gjson.Get(ev.data, "text").String())
	}
	assert.Equal(t, "Because blue light scatters the most.", final.String())
	assert.Equal(t, "output.done", events[len(events)-1].kind)

	// Every payload carries the request id.
	reqID := gjson.Get(events[0].data, "request_id").String()
	assert.NotEmpty(t, reqID)
	for _, ev := range events {
		assert.Equal(t, reqID, gjson.Get(ev.data, "request_id").String())
	}
}

func TestChatCompletions_MissingTagsFallBackToFinal(t *testing.T) {
	up := mockUpstream(t, "The sky is blue because of scattering.")
	defer up.Close()

	g := testGateway(t, up.URL, nil)
	srv := httptest.NewServer(g.Handler())
	defer srv.Close()

	_, events := postCompletion(t, srv, clientBody)

	require.NotEmpty(t, events)
	assert.Equal(t, "summary.prompt", events[0].kind)
	assert.Equal(t, "summary.reasoning", events[1].kind)
	assert.Equal(t, "", gjson.Get(events[1].data, "text").String())

	var final strings.Builder
	for _, ev := range events {
		if ev.kind == "output.delta" {
			final.WriteString(gjson.Get(ev.data, "text").String())
		}
	}
	assert.Equal(t, "The sky is blue because of scattering.", final.String())
	assert.Equal(t, "output.done", events[len(events)-1].kind)
}

func TestChatCompletions_UnknownModelRejected(t *testing.T) {
	up := mockUpstream(t, "unused")
	defer up.Close()

	g := testGateway(t, up.URL, func(cfg *config.Config) {
		cfg.Gateway.AllowModels = []string{"allowed-model"}
	})
	srv := httptest.NewServer(g.Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/chat/completions", "application/json", strings.NewReader(clientBody))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestChatCompletions_ValidationErrors(t *testing.T) {
	up := mockUpstream(t, "unused")
	defer up.Close()

	g := testGateway(t, up.URL, nil)
	srv := httptest.NewServer(g.Handler())
	defer srv.Close()

	cases := []struct {
		name string
		body string
	}{
		{"invalid json", `{not json`},
		{"missing model", `{"stream":true,"messages":[{"role":"user","content":"x"}]}`},
		{"empty messages", `{"model":"m","stream":true,"messages":[]}`},
		{"stream false", `{"model":"m","stream":false,"messages":[{"role":"user","content":"x"}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/v1/chat/completions", "application/json", strings.NewReader(tc.body))
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestChatCompletions_UpstreamDownEndsWithError(t *testing.T) {
	g := testGateway(t, "http://127.0.0.1:1", nil)
	srv := httptest.NewServer(g.Handler())
	defer srv.Close()

	_, events := postCompletion(t, srv, clientBody)

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, "error", last.kind)
	assert.Equal(t, "upstream_stream", gjson.Get(last.data, "stage").String())
	for _, ev := range events {
		assert.NotEqual(t, "output.done", ev.kind)
	}
}

func TestHealthz(t *testing.T) {
	up := mockUpstream(t, "unused")
	defer up.Close()

	g := testGateway(t, up.URL, nil)
	srv := httptest.NewServer(g.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUpstreamHealth(t *testing.T) {
	up := mockUpstream(t, "unused")
	defer up.Close()

	g := testGateway(t, up.URL, nil)
	srv := httptest.NewServer(g.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/upstream-health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	down := testGateway(t, "http://127.0.0.1:1", nil)
	srv2 := httptest.NewServer(down.Handler())
	defer srv2.Close()

	resp2, err := http.Get(srv2.URL + "/upstream-health")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp2.StatusCode)
}

func TestStats(t *testing.T) {
	up := mockUpstream(t, "<final>ok</final>")
	defer up.Close()

	g := testGateway(t, up.URL, nil)
	srv := httptest.NewServer(g.Handler())
	defer srv.Close()

	postCompletion(t, srv, clientBody)

	resp, err := http.Get(srv.URL + "/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	buf := new(strings.Builder)
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		buf.WriteString(scanner.Text())
	}
	body := buf.String()
	assert.GreaterOrEqual(t, gjson.Get(body, "counters.streams").Int(), int64(1))
	assert.GreaterOrEqual(t, gjson.Get(body, "streams_recorded").Int(), int64(1))
}
