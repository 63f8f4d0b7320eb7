package upstream

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func streamFrom(body string) *Stream {
	return newStream(io.NopCloser(strings.NewReader(body)))
}

func TestStream_RecvContentDeltas(t *testing.T) {
	s := streamFrom(
		"data: {\"choices\":[{\"delta\":{\"content\":\"Hello\"}}]}\n\n" +
			"data: {\"choices\":[{\"delta\":{\"content\":\" world\"}}]}\n\n" +
			"data: [DONE]\n\n")
	defer s.Close()

	ctx := context.Background()
	c1, err := s.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Hello", c1.Content)

	c2, err := s.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, " world", c2.Content)

	_, err = s.Recv(ctx)
	assert.Equal(t, io.EOF, err)

	// Recv after EOF stays EOF.
	_, err = s.Recv(ctx)
	assert.Equal(t, io.EOF, err)
}

func TestStream_NativeReasoningFields(t *testing.T) {
	s := streamFrom(
		"data: {\"choices\":[{\"delta\":{\"reasoning_content\":\"step 1\"}}]}\n\n" +
			"data: {\"choices\":[{\"delta\":{\"reasoning\":\"step 2\"}}]}\n\n" +
			"data: {\"choices\":[{\"delta\":{\"content\":\"answer\"}}]}\n\n" +
			"data: [DONE]\n\n")
	defer s.Close()

	ctx := context.Background()
	c1, err := s.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, "step 1", c1.Reasoning)

	c2, err := s.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, "step 2", c2.Reasoning)

	c3, err := s.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, "answer", c3.Content)
}

func TestStream_SkipsMalformedAndEmptyFrames(t *testing.T) {
	s := streamFrom(
		"data: not json at all\n\n" +
			": a comment line\n\n" +
			"data: {\"choices\":[{\"delta\":{}}]}\n\n" +
			"data: {\"choices\":[{\"delta\":{\"content\":\"ok\"}}]}\n\n" +
			"data: [DONE]\n\n")
	defer s.Close()

	chunk, err := s.Recv(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", chunk.Content)
}

func TestStream_EOFWithoutDoneMarker(t *testing.T) {
	s := streamFrom("data: {\"choices\":[{\"delta\":{\"content\":\"x\"}}]}\n\n")
	defer s.Close()

	ctx := context.Background()
	_, err := s.Recv(ctx)
	require.NoError(t, err)

	_, err = s.Recv(ctx)
	assert.Equal(t, io.EOF, err)
}

func TestStream_CanceledContext(t *testing.T) {
	s := streamFrom("data: {\"choices\":[{\"delta\":{\"content\":\"x\"}}]}\n\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Recv(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
