package upstream

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/reasonflow/reasoning-gateway/internal/config"
)

// maxFrameSize bounds a single SSE frame; deltas are tiny, but error frames
// can carry large bodies.
const maxFrameSize = 1024 * 1024

// Chunk is one delta from the upstream stream. Reasoning carries the native
// reasoning field when the upstream model emits one; Content carries the
// visible answer text.
type Chunk struct {
	Reasoning string
	Content   string
}

// Empty reports whether the chunk carries no text at all.
func (c Chunk) Empty() bool { return c.Reasoning == "" && c.Content == "" }

// Stream is a live SSE response from the upstream chat-completions endpoint.
// Not safe for concurrent Recv calls.
type Stream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	done    bool
}

func newStream(body io.ReadCloser) *Stream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, config.DefaultBufferSize), maxFrameSize)
	return &Stream{body: body, scanner: scanner}
}

// Recv returns the next delta. io.EOF signals normal termination, either the
// [DONE] marker or the end of the body. Any other error means the stream
// failed mid-flight and must not be retried.
//
// Cancellation of the request context closes the underlying body, which
// surfaces here as a read error.
func (s *Stream) Recv(ctx context.Context) (Chunk, error) {
	if s.done {
		return Chunk{}, io.EOF
	}
	for {
		select {
		case <-ctx.Done():
			s.Close()
			return Chunk{}, ctx.Err()
		default:
		}

		if !s.scanner.Scan() {
			s.done = true
			if err := s.scanner.Err(); err != nil {
				if ctx.Err() != nil {
					return Chunk{}, ctx.Err()
				}
				return Chunk{}, err
			}
			return Chunk{}, io.EOF
		}

		line := strings.TrimSpace(s.scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			s.done = true
			return Chunk{}, io.EOF
		}
		if !gjson.Valid(data) {
			// Malformed frames are skipped, not fatal.
			continue
		}

		delta := gjson.Get(data, "choices.0.delta")
		chunk := Chunk{
			Content: delta.Get("content").String(),
		}
		// Reasoning-capable upstreams disagree on the field name.
		if r := delta.Get("reasoning_content"); r.Exists() {
			chunk.Reasoning = r.String()
		} else if r := delta.Get("reasoning"); r.Exists() {
			chunk.Reasoning = r.String()
		}
		if chunk.Empty() {
			continue
		}
		return chunk, nil
	}
}

// Close releases the underlying connection. Safe to call more than once.
func (s *Stream) Close() error {
	s.done = true
	return s.body.Close()
}
