// Package agentpipe implements the native multi-turn Agent Pipeline
// (spec.md §4.I): a streaming LLM call whose run-item events may include
// tool calls, which are executed and fed back as tool turns until the
// model emits a final message with no further calls.
//
// Grounded directly on the teacher's pkg/agent/engine.go
// (ProcessLLMStream/CollectChunks/ResolveAndCommitToolCall/AttemptRetry).
// The teacher's recursive self-call (ProcessLLMStream calling itself after
// committing tool results) is adapted here into an explicit loop — same
// shape, no unbounded goroutine-stack growth. The number of tool-call
// rounds is not capped: the loop ends only when a turn brings no further
// tool calls or an error stops it. Per
// the canonical-event-shape correction already applied in
// internal/llmprovider, this pipeline consumes model.ToolCallEvent
// directly rather than the teacher's llm.StreamChunk.
//
// The per-thread agent map (vision/file-search hot-swap, §4.E) is a
// correction of a hypothetical single global mutable agent: every Run call
// is handed its own turns and image flag, so concurrent threads never
// contend over shared agent state.
package agentpipe

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/livia-chatops/livia/internal/config"
	"github.com/livia-chatops/livia/internal/llmprovider"
	"github.com/livia-chatops/livia/internal/model"
)

// ToolExecutor dispatches a resolved tool call to its implementation
// (web search, file search, hosted MCP services, the thinking tool) and
// returns its textual output.
type ToolExecutor interface {
	Execute(ctx context.Context, call model.ToolCall) (output string, err error)
}

// StreamSink receives incremental output as the pipeline runs, so the
// Streaming Presenter (§4.J) can rewrite the chat message live.
type StreamSink interface {
	OnTextDelta(delta, accumulated string)
	OnToolCallObserved(call model.ToolCall)
}

// noopSink discards all events; used by callers (like the MCP Pipeline's
// fallback) that only want the final result.
type noopSink struct{}

func (noopSink) OnTextDelta(string, string)        {}
func (noopSink) OnToolCallObserved(model.ToolCall) {}

// Pipeline drives one Agent Pipeline run. DefaultProvider handles ordinary
// text turns; VisionProvider (optional) handles turns with image inputs;
// ThinkingProvider backs the deep_thinking_analysis tool. All three may be
// the same underlying client when the provider supports every modality
// through one model.
type Pipeline struct {
	DefaultProvider  llmprovider.Client
	VisionProvider   llmprovider.Client
	ThinkingProvider llmprovider.Client
	Executor         ToolExecutor
	Tools            []llmprovider.Tool
	SysCfg           *config.SystemConfig
}

// Outcome is the terminal result of one Run call.
type Outcome struct {
	Text      string
	ToolCalls []model.ToolCall
	Retries   int
}

// Run executes the agentic loop for one request. turns is the assembled
// thread history (oldest first) plus the new user turn already appended by
// the caller. hasImages selects the vision-routed provider per §4.I.
func (p *Pipeline) Run(ctx context.Context, turns []model.ConversationTurn, hasImages bool, sink StreamSink) (Outcome, error) {
	if sink == nil {
		sink = noopSink{}
	}

	provider := p.DefaultProvider
	if hasImages && p.VisionProvider != nil {
		provider = p.VisionProvider
	}

	timeout := time.Duration(p.SysCfg.LLMTimeoutMs) * time.Millisecond
	var allCalls []model.ToolCall
	retries := 0

	for {
		runCtx, cancel := context.WithTimeout(ctx, timeout)
		text, calls, streamErr := p.streamOnce(runCtx, provider, turns, sink)
		cancel()

		if len(calls) > 0 {
			allCalls = append(allCalls, calls...)
			turns = append(turns, model.ConversationTurn{Role: "assistant", ToolCalls: calls, CreatedAt: time.Now()})
			for _, call := range calls {
				output, execErr := p.resolveToolCall(ctx, call)
				turns = append(turns, model.ConversationTurn{
					Role:       "tool",
					Text:       output,
					ToolName:   call.Name,
					ToolCallID: call.ID,
					CreatedAt:  time.Now(),
				})
				if execErr != nil {
					sink.OnTextDelta("", "")
				}
			}
			continue
		}

		if streamErr == nil {
			return Outcome{Text: text, ToolCalls: allCalls, Retries: retries}, nil
		}

		if !provider.IsTransientError(streamErr) || retries >= p.SysCfg.MaxRetries {
			return Outcome{Text: text, ToolCalls: allCalls, Retries: retries}, fmt.Errorf("agentpipe: %w", streamErr)
		}

		retries++
		select {
		case <-time.After(time.Duration(p.SysCfg.RetryDelayMs) * time.Millisecond):
		case <-ctx.Done():
			return Outcome{}, ctx.Err()
		}
	}
}

// streamOnce drives a single provider StreamChat call to completion,
// accumulating text deltas and collecting any tool calls observed. Mirrors
// CollectChunks + ProcessChunk, minus the thinking-message lifecycle which
// the Orchestrator owns.
func (p *Pipeline) streamOnce(ctx context.Context, provider llmprovider.Client, turns []model.ConversationTurn, sink StreamSink) (string, []model.ToolCall, error) {
	events, err := provider.StreamChat(ctx, turns, p.Tools)
	if err != nil {
		return "", nil, err
	}

	var accumulated strings.Builder
	var calls []model.ToolCall

	for event := range events {
		switch event.Kind {
		case model.EventTextDelta:
			accumulated.WriteString(event.Delta)
			sink.OnTextDelta(event.Delta, accumulated.String())
		case model.EventToolCallItem:
			if event.Call != nil {
				calls = append(calls, *event.Call)
				sink.OnToolCallObserved(*event.Call)
			}
		case model.EventToolCallOutputItem:
			// logged by the caller's executor; nothing to do here.
		case model.EventMessageOutputItem:
			if event.Final != "" && event.Final != accumulated.String() {
				accumulated.Reset()
				accumulated.WriteString(event.Final)
				sink.OnTextDelta("", accumulated.String())
			}
		}
	}

	return accumulated.String(), calls, nil
}

// resolveToolCall is a resilience wrapper ensuring every tool call yields a
// tool turn even if the executor panics, mirroring
// ResolveAndCommitToolCall's recover-and-commit contract.
func (p *Pipeline) resolveToolCall(ctx context.Context, call model.ToolCall) (output string, err error) {
	defer func() {
		if r := recover(); r != nil {
			output = fmt.Sprintf("error: tool %q panicked: %v", call.Name, r)
			err = fmt.Errorf("tool panic: %v", r)
		}
	}()

	if call.Name == ThinkingToolName && p.ThinkingProvider != nil {
		return RunThinkingTool(ctx, p.ThinkingProvider, call.Arguments)
	}

	if p.Executor == nil {
		return "", fmt.Errorf("no tool executor registered for %q", call.Name)
	}
	return p.Executor.Execute(ctx, call)
}
