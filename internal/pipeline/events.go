// Package pipeline - events.go defines the ordered event stream the gateway
// re-emits to clients.
//
// Exactly one summary.prompt and one summary.reasoning are emitted per
// request, in that order, before any output.delta. A successful stream ends
// with output.done; a failed one ends with error and no output.done.
package pipeline

// Kind identifies an event on the client-facing stream.
type Kind string

const (
	KindSummaryPrompt    Kind = "summary.prompt"
	KindSummaryReasoning Kind = "summary.reasoning"
	KindOutputDelta      Kind = "output.delta"
	KindOutputDone       Kind = "output.done"
	KindError            Kind = "error"
)

// Pipeline stages reported in error events.
const (
	StagePromptSummary    = "prompt_summary"
	StageReasoningSummary = "reasoning_summary"
	StageUpstreamStream   = "upstream_stream"
)

// Event is one ordered event produced by the orchestrator. Text carries the
// payload for summaries and deltas; Stage is set on error events only.
type Event struct {
	Kind  Kind
	Text  string
	Stage string
}
