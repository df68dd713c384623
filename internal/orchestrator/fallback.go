package orchestrator

import (
	"context"

	"github.com/livia-chatops/livia/internal/agentpipe"
	"github.com/livia-chatops/livia/internal/mcp"
	"github.com/livia-chatops/livia/internal/model"
)

// agentFallback adapts the Agent Pipeline to mcp.AgentFallback, so the MCP
// Pipeline can fall back to it once its own hosted-MCP attempts and
// generic-fallback attempt are exhausted (§4.H). The narrow (ctx, text,
// images) interface carries no channel/thread identity, so the executor
// it runs with has no thread-scoped vector index or image sink to hand a
// tool call — toolexec.Executor already treats both as optional.
type agentFallback struct {
	base *agentpipe.Pipeline
}

// NewAgentFallback wraps an Agent Pipeline template (providers, tools,
// tool executor already populated) as an mcp.AgentFallback.
func NewAgentFallback(base *agentpipe.Pipeline) mcp.AgentFallback {
	return agentFallback{base: base}
}

func (f agentFallback) Run(ctx context.Context, text string, images []model.ImageRef) (mcp.Result, error) {
	turns := []model.ConversationTurn{{Role: "user", Text: text}}
	outcome, err := f.base.Run(ctx, turns, len(images) > 0, nil)
	if err != nil {
		return mcp.Result{Text: outcome.Text, ToolCalls: outcome.ToolCalls}, err
	}
	return mcp.Result{Text: outcome.Text, ToolCalls: outcome.ToolCalls}, nil
}
