package agentpipe

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/livia-chatops/livia/internal/llmprovider"
	"github.com/livia-chatops/livia/internal/model"
)

// ThinkingToolName is the function-tool name the main agent calls to
// delegate to the reasoner sub-agent, matching
// thinking_agent.py's deep_thinking_analysis.
const ThinkingToolName = "deep_thinking_analysis"

const thinkingInstructions = `You are a specialized thinking agent focused on deep analysis, problem-solving, and strategic reasoning.

Provide comprehensive, detailed analysis: clarify the problem, break it into components, explore several angles, synthesize the findings, and recommend concrete next steps with full justification. Respond in the same language as the input. Do not be brief.`

const reasoningSentinel = "──────"

// ThinkingTool describes the deep_thinking_analysis function tool for
// registration in the main agent's tool list.
var ThinkingTool = llmprovider.Tool{
	Name:        ThinkingToolName,
	Description: "Performs deep analysis using a specialized reasoning sub-agent. Use for requests for deep thinking, strategic reasoning, brainstorming, or step-by-step breakdowns.",
	Parameters: map[string]any{
		"query": map[string]any{"type": "string", "description": "The question, problem, or topic to analyze deeply."},
	},
	Required: []string{"query"},
}

// RunThinkingTool invokes the reasoner sub-agent with callArgsJSON
// (`{"query": "..."}`), extracts any embedded reasoning trace delimited by
// the sentinel separator, and formats it as a fenced block preceding the
// conclusion, mirroring thinking_agent.py's deep_thinking_analysis.
func RunThinkingTool(ctx context.Context, provider llmprovider.Client, callArgsJSON string) (string, error) {
	var args struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal([]byte(callArgsJSON), &args); err != nil || args.Query == "" {
		return "", fmt.Errorf("agentpipe: thinking tool requires a query argument: %w", err)
	}

	turns := []model.ConversationTurn{
		{Role: "system", Text: thinkingInstructions},
		{Role: "user", Text: fmt.Sprintf("Provide comprehensive deep analysis for: %s", args.Query)},
	}

	events, err := provider.StreamChat(ctx, turns, nil)
	if err != nil {
		return "", fmt.Errorf("agentpipe: thinking tool call: %w", err)
	}

	var full strings.Builder
	for event := range events {
		if event.Kind == model.EventMessageOutputItem && event.Final != "" {
			full.Reset()
			full.WriteString(event.Final)
		} else if event.Kind == model.EventTextDelta {
			full.WriteString(event.Delta)
		}
	}

	return formatReasoningTrace(full.String()), nil
}

// formatReasoningTrace returns full unchanged unless it contains both the
// word "Reasoning" and the sentinel. It then extracts a sentinel-delimited
// reasoning section (if one contains an "UNDERSTANDING"/"ANALYZING"/
// "EXPLORING" marker) and re-renders it as a fenced code block ahead of the
// remaining conclusion.
func formatReasoningTrace(full string) string {
	if !strings.Contains(full, "Reasoning") || !strings.Contains(full, reasoningSentinel) {
		return full
	}

	parts := strings.Split(full, reasoningSentinel)
	var trace string
	for _, part := range parts {
		if strings.Contains(part, "UNDERSTANDING") || strings.Contains(part, "ANALYZING") || strings.Contains(part, "EXPLORING") {
			trace = strings.TrimSpace(part)
			break
		}
	}
	if trace == "" {
		return full
	}

	clean := strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(full, trace, ""), reasoningSentinel, ""))
	return fmt.Sprintf("```\n%s\n```\n\n%s", trace, clean)
}
