// Mock upstream chat-completions server for local development and demos.
//
// Serves /chat/completions: streaming requests get a canned tagged answer cut
// into small chunks so tag boundaries land mid-chunk; non-streaming requests
// get a clipped echo summary.
package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"github.com/reasonflow/reasoning-gateway/internal/monitoring"
	"github.com/reasonflow/reasoning-gateway/internal/utils"
)

const (
	mockChunkSize    = 24
	mockChunkDelay   = 20 * time.Millisecond
	mockSummaryWords = 20
)

func runMockUpstream(args []string) {
	fs := flag.NewFlagSet("mock", flag.ExitOnError)
	port := fs.Int("port", 8001, "port to listen on")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(args)

	level := "info"
	if *debug {
		level = "debug"
	}
	monitoring.Global(monitoring.LoggerConfig{Level: level, Format: "console"})

	mux := http.NewServeMux()
	mux.HandleFunc("/chat/completions", handleMockCompletion)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("mock upstream ok\n"))
	})

	addr := fmt.Sprintf(":%d", *port)
	log.Info().Str("addr", addr).Msg("mock upstream listening")
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatal().Err(err).Msg("mock upstream error")
	}
}

func handleMockCompletion(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "bad body", http.StatusBadRequest)
		return
	}

	lastUser := lastUserMessage(body)
	if !gjson.GetBytes(body, "stream").Bool() {
		writeMockSummary(w, lastUser)
		return
	}
	streamMockAnswer(w, lastUser)
}

// lastUserMessage returns the content of the last user message in the body.
func lastUserMessage(body []byte) string {
	msgs := gjson.GetBytes(body, "messages").Array()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Get("role").String() == "user" {
			return msgs[i].Get("content").String()
		}
	}
	return ""
}

// writeMockSummary echoes a word-clipped digest of the request.
func writeMockSummary(w http.ResponseWriter, text string) {
	words := strings.Fields(text)
	clipped := words
	suffix := ""
	if len(words) > mockSummaryWords {
		clipped = words[:mockSummaryWords]
		suffix = "..."
	}
	summary := "Summary: " + strings.Join(clipped, " ") + suffix

	resp, _ := utils.MarshalNoEscape(map[string]any{
		"object": "chat.completion",
		"model":  "mock",
		"choices": []map[string]any{
			{"index": 0, "message": map[string]string{"role": "assistant", "content": summary}, "finish_reason": "stop"},
		},
	})
	w.Header().Set("Content-Type", "application/json")
	w.Write(resp)
}

// streamMockAnswer streams a tagged answer in small chunks with a short delay
// between them, mimicking real token pacing.
func streamMockAnswer(w http.ResponseWriter, question string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	full := fmt.Sprintf(
		"<analysis>The user asks: %s. Consider what is being asked, recall the relevant facts, and draft a short direct answer.</analysis>"+
			"<final>This is a mock answer to: %s</final>",
		question, question)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")

	for i := 0; i < len(full); i += mockChunkSize {
		end := i + mockChunkSize
		if end > len(full) {
			end = len(full)
		}
		frame, _ := utils.MarshalNoEscape(map[string]any{
			"object": "chat.completion.chunk",
			"model":  "mock",
			"choices": []map[string]any{
				{"index": 0, "delta": map[string]string{"content": full[i:end]}},
			},
		})
		fmt.Fprintf(w, "data: %s\n\n", frame)
		flusher.Flush()
		time.Sleep(mockChunkDelay)
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}
