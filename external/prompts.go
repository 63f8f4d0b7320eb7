// Summary prompts and request builders for the pipeline's upstream calls.
//
// USAGE:
//   - BuildPromptSummaryRequest():    Call A, fast non-streaming prompt summary
//   - BuildReasoningSummaryRequest(): Call C, fast non-streaming reasoning summary
//   - TagInstruction:                 system message injected into the main call
//
// Summary calls deliberately run at low temperature: they must be faithful
// digests, not creative rewrites.
package external

import (
	"fmt"
	"strings"

	"github.com/reasonflow/reasoning-gateway/internal/parsing"
)

// =============================================================================
// System Prompts
// =============================================================================

// SystemPromptSummarizePrompt is the system message for prompt summaries.
const SystemPromptSummarizePrompt = "You are a concise assistant that summarizes user prompts."

// SystemPromptSummarizeReasoning is the system message for reasoning summaries.
const SystemPromptSummarizeReasoning = "You are a concise assistant that summarizes reasoning."

// TagInstruction is injected as the leading system message of the main
// streaming call so the parser can find the section boundaries.
var TagInstruction = fmt.Sprintf(
	"Respond with reasoning inside %s...%s and the final answer inside %s...%s. "+
		"Output only those tags and their content.",
	parsing.OpenAnalysis, parsing.CloseAnalysis, parsing.OpenFinal, parsing.CloseFinal,
)

// SummaryTemperature keeps summary output deterministic-ish.
const SummaryTemperature = 0.2

// =============================================================================
// User Prompt Templates
// =============================================================================

// UserPromptSummarizePrompt formats the prompt-summary instruction.
func UserPromptSummarizePrompt(promptText string) string {
	return fmt.Sprintf(`Summarize the following prompt in 1-2 sentences. Keep it faithful and brief.

Prompt:
%s`, promptText)
}

// UserPromptSummarizeReasoning formats the reasoning-summary instruction.
func UserPromptSummarizeReasoning(reasoningText string) string {
	return fmt.Sprintf(`Summarize the following reasoning in 2-3 bullet points. Focus on the key steps only.

Reasoning:
%s`, reasoningText)
}

// =============================================================================
// Request Builders
// =============================================================================

// BuildPromptSummaryRequest builds the non-streaming Call A request.
func BuildPromptSummaryRequest(promptText, model string) *ChatRequest {
	return &ChatRequest{
		Model: model,
		Messages: []ChatMessage{
			{Role: "system", Content: SystemPromptSummarizePrompt},
			{Role: "user", Content: UserPromptSummarizePrompt(promptText)},
		},
		Stream:      false,
		Temperature: SummaryTemperature,
	}
}

// BuildReasoningSummaryRequest builds the non-streaming Call C request.
func BuildReasoningSummaryRequest(reasoningText, model string) *ChatRequest {
	return &ChatRequest{
		Model: model,
		Messages: []ChatMessage{
			{Role: "system", Content: SystemPromptSummarizeReasoning},
			{Role: "user", Content: UserPromptSummarizeReasoning(reasoningText)},
		},
		Stream:      false,
		Temperature: SummaryTemperature,
	}
}

// FlattenMessages renders a conversation as "role: content" lines, the text
// fed to the prompt summary.
func FlattenMessages(messages []ChatMessage) string {
	parts := make([]string, 0, len(messages))
	for _, m := range messages {
		parts = append(parts, m.Role+": "+m.Content)
	}
	return strings.Join(parts, "\n")
}
