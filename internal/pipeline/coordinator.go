package pipeline

import (
	"context"
	"strings"
	"sync"
)

// Coordinator is the buffering point between the upstream reader and the
// client-facing emitter. The reader appends classified text as it arrives;
// the emitter drains final deltas only after the reasoning summary has been
// resolved, which keeps the client-visible order strict no matter how the
// upstream interleaves.
//
// DESIGN: One reader goroutine writes, one emitter goroutine reads. The
// boundary channel closes exactly once, either when the reasoning section
// closes mid-stream or when the stream ends, and is what gates the reasoning
// summary call.
type Coordinator struct {
	mu        sync.Mutex
	reasoning strings.Builder
	pending   []string
	done      bool
	streamErr error

	boundary   chan struct{}
	streamDone chan struct{}
	wake       chan struct{}

	boundaryOnce sync.Once
	doneOnce     sync.Once
}

func NewCoordinator() *Coordinator {
	return &Coordinator{
		boundary:   make(chan struct{}),
		streamDone: make(chan struct{}),
		wake:       make(chan struct{}, 1),
	}
}

// AppendReasoning accumulates reasoning text for the summary call.
func (c *Coordinator) AppendReasoning(text string) {
	if text == "" {
		return
	}
	c.mu.Lock()
	c.reasoning.WriteString(text)
	c.mu.Unlock()
}

// AppendFinal buffers one final-answer delta for the emitter.
func (c *Coordinator) AppendFinal(text string) {
	if text == "" {
		return
	}
	c.mu.Lock()
	c.pending = append(c.pending, text)
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// MarkBoundary signals that the reasoning section is complete. Idempotent.
func (c *Coordinator) MarkBoundary() {
	c.boundaryOnce.Do(func() { close(c.boundary) })
}

// CloseStream records the stream outcome and releases all waiters. The
// boundary is also marked: a stream that ends without a boundary still has to
// unblock the reasoning summary.
func (c *Coordinator) CloseStream(err error) {
	c.doneOnce.Do(func() {
		c.mu.Lock()
		c.done = true
		c.streamErr = err
		c.mu.Unlock()
		c.MarkBoundary()
		close(c.streamDone)
	})
}

// ReasoningText returns the reasoning accumulated so far.
func (c *Coordinator) ReasoningText() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reasoning.String()
}

// Boundary closes when the reasoning section is complete.
func (c *Coordinator) Boundary() <-chan struct{} { return c.boundary }

// StreamDone closes when the upstream stream has terminated.
func (c *Coordinator) StreamDone() <-chan struct{} { return c.streamDone }

// Err returns the stream failure, if any. Valid after StreamDone closes.
func (c *Coordinator) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streamErr
}

// NextFinal blocks until final deltas are available and drains them. Returns
// ok=false once the stream has terminated and everything buffered has been
// handed out, or when ctx is canceled.
func (c *Coordinator) NextFinal(ctx context.Context) ([]string, bool) {
	for {
		c.mu.Lock()
		if len(c.pending) > 0 {
			batch := c.pending
			c.pending = nil
			c.mu.Unlock()
			return batch, true
		}
		done := c.done
		c.mu.Unlock()

		if done {
			return nil, false
		}
		select {
		case <-c.wake:
		case <-c.streamDone:
		case <-ctx.Done():
			return nil, false
		}
	}
}
