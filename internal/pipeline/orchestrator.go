// Package pipeline - orchestrator.go runs the three-call pipeline for one
// request and re-shapes the upstream's interleaved output into the strict
// client-facing order:
//
//	summary.prompt -> summary.reasoning -> output.delta* -> output.done
//
// Call A (prompt summary) runs concurrently with opening the streaming call.
// Call C (reasoning summary) is gated on the reasoning boundary. Final-answer
// deltas arriving before the reasoning summary resolves are buffered by the
// Coordinator, never dropped and never reordered.
//
// Summary failures degrade: an error event is emitted for the stage, followed
// by an empty summary so the stream shape stays intact. A streaming failure
// is terminal: an error event with stage upstream_stream is emitted and the
// stream closes without output.done.
package pipeline

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/reasonflow/reasoning-gateway/external"
	"github.com/reasonflow/reasoning-gateway/internal/capability"
	"github.com/reasonflow/reasoning-gateway/internal/monitoring"
	"github.com/reasonflow/reasoning-gateway/internal/parsing"
	"github.com/reasonflow/reasoning-gateway/internal/upstream"
	"github.com/reasonflow/reasoning-gateway/internal/utils"
)

// Stream is the orchestrator's view of a live upstream stream.
type Stream interface {
	Recv(ctx context.Context) (upstream.Chunk, error)
	Close() error
}

// Upstream abstracts the chat-completions client for the orchestrator.
type Upstream interface {
	Complete(ctx context.Context, req *external.ChatRequest) (string, error)
	OpenStream(ctx context.Context, payload []byte) (Stream, error)
}

// ClientUpstream adapts *upstream.Client to the Upstream interface.
type ClientUpstream struct {
	Client *upstream.Client
}

func (u ClientUpstream) Complete(ctx context.Context, req *external.ChatRequest) (string, error) {
	return u.Client.Complete(ctx, req)
}

func (u ClientUpstream) OpenStream(ctx context.Context, payload []byte) (Stream, error) {
	s, err := u.Client.OpenStream(ctx, payload)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Options tunes orchestration behavior per gateway instance.
type Options struct {
	SummaryModelDefault string
	MaxReasoningChars   int
	SummaryTimeout      time.Duration
}

// Orchestrator coordinates the three upstream calls for each request.
// Stateless across requests; safe for concurrent use.
type Orchestrator struct {
	up      Upstream
	opts    Options
	metrics *monitoring.MetricsCollector // optional
	alerts  *monitoring.AlertManager     // optional
}

// NewOrchestrator creates an orchestrator. metrics and alerts may be nil.
func NewOrchestrator(up Upstream, opts Options, metrics *monitoring.MetricsCollector, alerts *monitoring.AlertManager) *Orchestrator {
	return &Orchestrator{up: up, opts: opts, metrics: metrics, alerts: alerts}
}

type summaryResult struct {
	text string
	err  error
}

// Run executes the pipeline for one request and returns the ordered event
// stream. The channel closes when the request is finished, failed, or
// canceled. stats may be nil; when present, stage latencies and stream shape
// are recorded into it as the pipeline progresses.
func (o *Orchestrator) Run(ctx context.Context, req *Request, stats *monitoring.StreamEvent) <-chan Event {
	events := make(chan Event, 16)
	go o.run(ctx, req, stats, events)
	return events
}

func (o *Orchestrator) run(ctx context.Context, req *Request, stats *monitoring.StreamEvent, events chan<- Event) {
	defer close(events)

	if stats == nil {
		stats = &monitoring.StreamEvent{}
	}
	summaryModel := req.ResolveSummaryModel(o.opts.SummaryModelDefault)
	stats.SummaryModel = summaryModel
	stats.Strategy = string(req.Capability.Strategy)

	emit := func(ev Event) bool {
		select {
		case events <- ev:
			stats.EventsEmitted++
			return true
		case <-ctx.Done():
			stats.Canceled = true
			return false
		}
	}

	// Call A starts immediately, concurrent with the stream connection.
	promptCh := make(chan summaryResult, 1)
	go func() {
		start := time.Now()
		text, err := o.summarize(ctx, external.BuildPromptSummaryRequest(req.FlattenedPrompt(), summaryModel))
		stats.PromptSummaryMs = time.Since(start).Milliseconds()
		promptCh <- summaryResult{text: text, err: err}
	}()

	// Call B: open the stream and start the reader.
	coord := NewCoordinator()
	streamOpened := o.openAndRead(ctx, req, coord)

	// summary.prompt is always the first event. A failed Call A degrades to
	// an error event plus an empty summary.
	var prompt summaryResult
	select {
	case prompt = <-promptCh:
	case <-ctx.Done():
		stats.Canceled = true
		return
	}
	if prompt.err != nil {
		log.Warn().Str("request_id", req.RequestID).Err(prompt.err).Msg("prompt summary failed")
		stats.PromptSummaryFallback = true
		if o.metrics != nil {
			o.metrics.RecordSummaryFallback()
		}
		if o.alerts != nil && errors.Is(prompt.err, context.DeadlineExceeded) {
			o.alerts.FlagUpstreamTimeout(req.RequestID, StagePromptSummary, o.opts.SummaryTimeout)
		}
		if !emit(Event{Kind: KindError, Text: summaryErrorMessage(prompt.err), Stage: StagePromptSummary}) {
			return
		}
	}
	if !emit(Event{Kind: KindSummaryPrompt, Text: prompt.text}) {
		return
	}

	// A stream that never connected is terminal after summary.prompt.
	if !streamOpened {
		emit(Event{Kind: KindError, Text: streamErrorMessage(coord.Err()), Stage: StageUpstreamStream})
		return
	}

	// Call C waits for the reasoning boundary (or stream end, whichever comes
	// first). Empty reasoning yields an empty summary without an upstream call.
	reasoningCh := make(chan summaryResult, 1)
	go func() {
		select {
		case <-coord.Boundary():
		case <-ctx.Done():
			reasoningCh <- summaryResult{err: ctx.Err()}
			return
		}

		reasoning := coord.ReasoningText()
		stats.ReasoningChars = len(reasoning)
		if truncated := capReasoning(reasoning, o.opts.MaxReasoningChars); truncated != reasoning {
			reasoning = truncated
			stats.ReasoningTruncated = true
		}
		if reasoning == "" {
			reasoningCh <- summaryResult{}
			return
		}
		stats.ReasoningTokensEst = monitoring.EstimateTokens(reasoning)

		start := time.Now()
		text, err := o.summarize(ctx, external.BuildReasoningSummaryRequest(reasoning, summaryModel))
		stats.ReasoningSummaryMs = time.Since(start).Milliseconds()
		reasoningCh <- summaryResult{text: text, err: err}
	}()

	var reasoning summaryResult
	select {
	case reasoning = <-reasoningCh:
	case <-ctx.Done():
		stats.Canceled = true
		return
	}
	if reasoning.err != nil {
		if ctx.Err() != nil {
			stats.Canceled = true
			return
		}
		log.Warn().Str("request_id", req.RequestID).Err(reasoning.err).Msg("reasoning summary failed")
		stats.ReasoningSummaryFallback = true
		if o.metrics != nil {
			o.metrics.RecordSummaryFallback()
		}
		if o.alerts != nil && errors.Is(reasoning.err, context.DeadlineExceeded) {
			o.alerts.FlagUpstreamTimeout(req.RequestID, StageReasoningSummary, o.opts.SummaryTimeout)
		}
		if !emit(Event{Kind: KindError, Text: summaryErrorMessage(reasoning.err), Stage: StageReasoningSummary}) {
			return
		}
	}
	if !emit(Event{Kind: KindSummaryReasoning, Text: reasoning.text}) {
		return
	}

	// Drain buffered final deltas, then live ones, until the stream ends.
	for {
		batch, ok := coord.NextFinal(ctx)
		if !ok {
			break
		}
		for _, delta := range batch {
			stats.FinalChars += len(delta)
			if !emit(Event{Kind: KindOutputDelta, Text: delta}) {
				return
			}
		}
	}
	if ctx.Err() != nil {
		stats.Canceled = true
		return
	}

	if err := coord.Err(); err != nil {
		stats.Error = err.Error()
		stats.Stage = StageUpstreamStream
		emit(Event{Kind: KindError, Text: streamErrorMessage(err), Stage: StageUpstreamStream})
		return
	}

	stats.Success = true
	emit(Event{Kind: KindOutputDone})
}

// openAndRead connects the streaming call and, on success, starts the reader
// goroutine that classifies chunks into the coordinator. Returns false when
// the connection could not be established; the failure is stored on the
// coordinator.
func (o *Orchestrator) openAndRead(ctx context.Context, req *Request, coord *Coordinator) bool {
	body, err := req.MainCallBody()
	if err != nil {
		coord.CloseStream(err)
		return false
	}

	stream, err := o.up.OpenStream(ctx, body)
	if err != nil {
		coord.CloseStream(err)
		return false
	}

	go func() {
		defer stream.Close()
		if req.Capability.Strategy == capability.StrategyNative {
			o.readNative(ctx, stream, coord)
		} else {
			o.readTagged(ctx, stream, coord)
		}
	}()
	return true
}

// readTagged feeds the visible content through the tag parser. Native
// reasoning fields, if a tag-strategy model emits them anyway, count as
// reasoning too.
func (o *Orchestrator) readTagged(ctx context.Context, stream Stream, coord *Coordinator) {
	parser := parsing.NewTagParser()
	apply := func(res parsing.Result) {
		coord.AppendReasoning(res.Reasoning)
		// Final text arriving means the reasoning section is over, even when
		// an analysis section never appeared.
		if res.AnalysisDone || res.Final != "" {
			coord.MarkBoundary()
		}
		coord.AppendFinal(res.Final)
	}

	for {
		chunk, err := stream.Recv(ctx)
		if err != nil {
			apply(parser.Finalize())
			if errors.Is(err, io.EOF) {
				err = nil
			}
			coord.CloseStream(err)
			return
		}
		coord.AppendReasoning(chunk.Reasoning)
		apply(parser.Feed(chunk.Content))
	}
}

// readNative maps the upstream's reasoning field directly; the boundary is
// the first visible content delta.
func (o *Orchestrator) readNative(ctx context.Context, stream Stream, coord *Coordinator) {
	for {
		chunk, err := stream.Recv(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = nil
			}
			coord.CloseStream(err)
			return
		}
		coord.AppendReasoning(chunk.Reasoning)
		if chunk.Content != "" {
			coord.MarkBoundary()
			coord.AppendFinal(chunk.Content)
		}
	}
}

// summarize runs one non-streaming summary call under the summary deadline.
func (o *Orchestrator) summarize(ctx context.Context, req *external.ChatRequest) (string, error) {
	sctx, cancel := context.WithTimeout(ctx, o.opts.SummaryTimeout)
	defer cancel()
	return o.up.Complete(sctx, req)
}

// capReasoning caps the reasoning text fed to the summary call. n <= 0
// disables the cap.
func capReasoning(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return utils.TruncateRunes(s, n)
}

func summaryErrorMessage(err error) string {
	return "summary call failed: " + err.Error()
}

func streamErrorMessage(err error) string {
	if err == nil {
		return "upstream stream failed"
	}
	return "upstream stream failed: " + err.Error()
}
