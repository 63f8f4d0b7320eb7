package pipeline

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/reasonflow/reasoning-gateway/external"
	"github.com/reasonflow/reasoning-gateway/internal/capability"
	"github.com/reasonflow/reasoning-gateway/internal/utils"
)

// Request is one client request flowing through the pipeline.
type Request struct {
	RequestID    string
	Model        string
	SummaryModel string
	Messages     []external.ChatMessage

	// RawBody is the client's original JSON, kept so fields this gateway does
	// not model (temperature, max_tokens, vendor extensions) pass through to
	// the upstream untouched.
	RawBody []byte

	Capability capability.ModelCapability
}

// ResolveSummaryModel picks the model for the two summary calls:
// per-request override, then configured default, then the main model.
func (r *Request) ResolveSummaryModel(configured string) string {
	if r.SummaryModel != "" {
		return r.SummaryModel
	}
	if configured != "" {
		return configured
	}
	return r.Model
}

// FlattenedPrompt renders the conversation for the prompt summary call.
func (r *Request) FlattenedPrompt() string {
	return external.FlattenMessages(r.Messages)
}

// MainCallBody builds the streaming call's request body from the raw client
// JSON. stream is forced on; for the tag strategy the tag instruction is
// prepended as a system message. The gateway-only summary_model field is
// stripped before forwarding.
func (r *Request) MainCallBody() ([]byte, error) {
	body := r.RawBody

	body, err := sjson.DeleteBytes(body, "summary_model")
	if err != nil {
		return nil, fmt.Errorf("failed to strip summary_model: %w", err)
	}

	body, err = sjson.SetBytes(body, "stream", true)
	if err != nil {
		return nil, fmt.Errorf("failed to force stream: %w", err)
	}

	if r.Capability.Strategy == capability.StrategyTag {
		body, err = prependSystemMessage(body, external.TagInstruction)
		if err != nil {
			return nil, err
		}
	}
	return body, nil
}

// prependSystemMessage inserts a system message at the front of the messages
// array without disturbing the rest of the body.
func prependSystemMessage(body []byte, content string) ([]byte, error) {
	sys, err := utils.MarshalNoEscape(external.ChatMessage{Role: "system", Content: content})
	if err != nil {
		return nil, err
	}

	existing := gjson.GetBytes(body, "messages")
	raw := strings.TrimSpace(existing.Raw)
	var arr string
	switch {
	case !existing.Exists() || raw == "[]" || raw == "":
		arr = "[" + string(sys) + "]"
	default:
		arr = "[" + string(sys) + "," + strings.TrimPrefix(raw, "[")
	}

	out, err := sjson.SetRawBytes(body, "messages", []byte(arr))
	if err != nil {
		return nil, fmt.Errorf("failed to inject tag instruction: %w", err)
	}
	return out, nil
}
