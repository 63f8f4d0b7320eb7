// Package capability maps model identifiers to reasoning-extraction strategies.
//
// DESIGN: Immutable registry built once at startup from configuration.
// Resolve() is a pure lookup consulted once per request; nothing is mutated
// after construction, so concurrent reads need no locking.
package capability

import (
	"errors"
	"fmt"
	"strings"
)

// Strategy identifies how reasoning is separated from the final answer.
type Strategy string

const (
	// StrategyTag asks the model to wrap reasoning and answer in
	// <analysis>/<final> tags and parses the boundaries out of the stream.
	StrategyTag Strategy = "tag"
	// StrategyNative consumes a distinct reasoning field emitted by the
	// upstream model; no tag instruction is injected.
	StrategyNative Strategy = "native"
)

// ErrUnknownModel is returned when a model is not in the configured allowlist.
var ErrUnknownModel = errors.New("unknown model")

// ModelCapability describes how to extract reasoning for one model.
type ModelCapability struct {
	Model                string
	Strategy             Strategy
	NativeReasoningField bool // upstream emits delta.reasoning_content / delta.reasoning
}

// Options configures registry construction.
type Options struct {
	AllowModels           []string // empty = allow any model
	NativeReasoningModels []string // models resolved to StrategyNative
	ParseNativeReasoning  bool     // master switch for the native strategy
}

// Registry resolves model identifiers to capabilities.
type Registry struct {
	allow  map[string]bool
	native map[string]bool
	opts   Options
}

// NewRegistry builds a registry from options. Lookup tables are normalized
// once here; Resolve never allocates.
func NewRegistry(opts Options) *Registry {
	r := &Registry{opts: opts}

	if len(opts.AllowModels) > 0 {
		r.allow = make(map[string]bool, len(opts.AllowModels))
		for _, m := range opts.AllowModels {
			if m = strings.TrimSpace(m); m != "" {
				r.allow[m] = true
			}
		}
	}

	if len(opts.NativeReasoningModels) > 0 {
		r.native = make(map[string]bool, len(opts.NativeReasoningModels))
		for _, m := range opts.NativeReasoningModels {
			if m = strings.TrimSpace(m); m != "" {
				r.native[m] = true
			}
		}
	}

	return r
}

// Resolve returns the capability for a model, or ErrUnknownModel when an
// allowlist is configured and the model is absent.
func (r *Registry) Resolve(model string) (ModelCapability, error) {
	if model == "" {
		return ModelCapability{}, fmt.Errorf("%w: empty model id", ErrUnknownModel)
	}
	if r.allow != nil && !r.allow[model] {
		return ModelCapability{}, fmt.Errorf("%w: %q", ErrUnknownModel, model)
	}

	mc := ModelCapability{Model: model, Strategy: StrategyTag}
	if r.opts.ParseNativeReasoning && r.native[model] {
		mc.Strategy = StrategyNative
		mc.NativeReasoningField = true
	}
	return mc, nil
}

// Allows reports whether the model passes the allowlist.
func (r *Registry) Allows(model string) bool {
	_, err := r.Resolve(model)
	return err == nil
}
