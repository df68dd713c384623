// Package orchestrator implements the Orchestrator (spec.md §4.K): the
// component wiring every other one together for one inbound request. It
// acquires the process-wide handler semaphore, posts the placeholder
// message, runs the Document Ingestor / Context Assembler pre-processing
// (image and audio references arrive already extracted on the Request; no
// audio transcription runs here), asks the Tool Router where to send the
// request, dispatches to the MCP Pipeline or the Agent Pipeline, drives
// the Streaming Presenter, and maps any surviving error to one of the
// fixed §7 user-facing messages after exactly one top-level retry.
//
// Grounded directly on the teacher's pkg/handler/handler.go ChatHandler
// (ProcessLLMStream's acquire-placeholder-stream-finalize shape, and
// handleSlashCommand's manual tool-debug path), generalized to the
// pipeline split this engine's spec requires.
package orchestrator

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/livia-chatops/livia/internal/agentpipe"
	"github.com/livia-chatops/livia/internal/chatplatform"
	"github.com/livia-chatops/livia/internal/config"
	"github.com/livia-chatops/livia/internal/ingest"
	"github.com/livia-chatops/livia/internal/mcp"
	"github.com/livia-chatops/livia/internal/model"
	"github.com/livia-chatops/livia/internal/monitor"
	"github.com/livia-chatops/livia/internal/presenter"
	"github.com/livia-chatops/livia/internal/session"
	"github.com/livia-chatops/livia/internal/tags"
	"github.com/livia-chatops/livia/internal/threadctx"
	"github.com/livia-chatops/livia/internal/toolexec"
	"github.com/livia-chatops/livia/internal/toolroute"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// httpDownloader adapts chatplatform.Platform's DownloadFile into
// ingest.Downloader without that package depending on chatplatform.
type httpDownloader struct{ platform chatplatform.Platform }

func (d httpDownloader) Download(ctx context.Context, url string) ([]byte, error) {
	return d.platform.DownloadFile(ctx, url)
}

// threadVectorIndex adapts a *model.ThreadState's field into the
// single-method interface toolexec.Executor needs.
type threadVectorIndex struct{ state *model.ThreadState }

func (t threadVectorIndex) VectorIndexID() string { return t.state.VectorIndexID }

// imageSink delivers a generated image to the chat platform as an upload
// into the request's thread, implementing toolexec.ImageSink.
type imageSink struct {
	platform  chatplatform.Platform
	channelID string
	threadTS  string
}

func (s imageSink) DeliverImage(ctx context.Context, base64Data, revisedPrompt string) error {
	data, err := base64.StdEncoding.DecodeString(base64Data)
	if err != nil {
		return fmt.Errorf("orchestrator: decode generated image: %w", err)
	}
	return s.platform.UploadFile(ctx, s.channelID, data, "generated.png", revisedPrompt, revisedPrompt, s.threadTS)
}

// Orchestrator ties together every pipeline stage for one inbound request.
type Orchestrator struct {
	Platform    chatplatform.Platform
	Sessions    *session.Store
	Assembler   *threadctx.Assembler
	ReplyFetch  *chatplatform.ReplyFetcher
	Ingestor    *ingest.Ingestor
	MCPTable    *mcp.Table
	MCPPipeline *mcp.Pipeline
	MCPRunner   mcp.Runner
	MCPBearer   string
	Hosted      toolexec.HostedRunner
	AgentBase   *agentpipe.Pipeline // providers/tools/sysCfg populated, Executor nil
	SysCfg      *config.SystemConfig

	handlerSem chan struct{}
}

// New builds an Orchestrator, sizing the process-wide handler semaphore
// from sysCfg.MaxConcurrentHandlers (§5).
func New(
	platform chatplatform.Platform,
	sessions *session.Store,
	assembler *threadctx.Assembler,
	replyFetch *chatplatform.ReplyFetcher,
	ingestor *ingest.Ingestor,
	mcpTable *mcp.Table,
	mcpPipeline *mcp.Pipeline,
	mcpRunner mcp.Runner,
	mcpBearer string,
	hosted toolexec.HostedRunner,
	agentBase *agentpipe.Pipeline,
	sysCfg *config.SystemConfig,
) *Orchestrator {
	n := sysCfg.MaxConcurrentHandlers
	if n < 1 {
		n = 1
	}
	return &Orchestrator{
		Platform:    platform,
		Sessions:    sessions,
		Assembler:   assembler,
		ReplyFetch:  replyFetch,
		Ingestor:    ingestor,
		MCPTable:    mcpTable,
		MCPPipeline: mcpPipeline,
		MCPRunner:   mcpRunner,
		MCPBearer:   mcpBearer,
		Hosted:      hosted,
		AgentBase:   agentBase,
		SysCfg:      sysCfg,
		handlerSem:  make(chan struct{}, n),
	}
}

// Handle runs the full §4.K pipeline for one accepted request. It never
// returns an error to the caller: every failure path ends in a posted,
// fixed user-facing message, matching the teacher's "errors are terminal
// to the request, not to the process" contract.
func (o *Orchestrator) Handle(ctx context.Context, req model.Request) {
	select {
	case o.handlerSem <- struct{}{}:
	case <-ctx.Done():
		return
	}
	defer func() { <-o.handlerSem }()

	ctx = monitor.WithCorrelationID(ctx, req.CorrelationID)

	placeholderTS, err := o.Platform.PostMessage(ctx, req.ChannelID, req.ThreadID, ":hourglass: thinking…")
	if err != nil {
		slog.ErrorContext(ctx, "failed to post placeholder", "error", err)
		return
	}

	if strings.HasPrefix(strings.TrimSpace(req.Text), "/") {
		o.handleSlashCommand(ctx, req, placeholderTS)
		return
	}

	_, runErr := o.run(ctx, req, placeholderTS)
	if runErr == nil {
		return
	}

	category := Classify(runErr, isAnyTransient)
	if category == CategoryTransient && req.RetryCount == 0 {
		req.RetryCount++
		time.Sleep(time.Duration(o.SysCfg.RetryDelayMs) * time.Millisecond)
		_, runErr = o.run(ctx, req, placeholderTS)
		if runErr == nil {
			return
		}
		category = Classify(runErr, isAnyTransient)
	}

	slog.ErrorContext(ctx, "request failed", "error", runErr, "category", category)
	_ = o.Platform.EditMessage(ctx, req.ChannelID, placeholderTS, category.Message())
}

// run performs one attempt at the full pre-process → route → pipeline →
// present sequence, returning the pipeline outcome's text (for logging)
// and any error that should be classified and possibly retried.
func (o *Orchestrator) run(ctx context.Context, req model.Request, placeholderTS string) (string, error) {
	thread := o.Sessions.Get(req.ChannelID, req.ThreadID)

	modelName := tags.ModelDefault
	hasImages := len(req.Images) > 0

	pres := presenter.New(
		chatplatform.EditMessageAdapter{Platform: o.Platform},
		o.SysCfg, req.ChannelID, placeholderTS, req.Text,
		len(req.Audio) > 0, hasImages, modelName,
	)
	if err := pres.Placeholder(); err != nil {
		slog.WarnContext(ctx, "failed to seed placeholder", "error", err)
	}

	if err := o.Ingestor.IngestAll(ctx, httpDownloader{o.Platform}, thread, req.Documents); err != nil {
		slog.WarnContext(ctx, "document ingestion failed, continuing without it", "error", err)
	}

	history := o.Assembler.FetchHistory(ctx, o.ReplyFetch, req.ChannelID, req.ThreadID, modelName)
	turns := append(history.Turns, model.ConversationTurn{
		Role: "user", Text: req.Text, CreatedAt: time.Now(),
	})

	service := ""
	if !req.NoTools {
		service = toolroute.Route(req.Text)
	}

	var outcome agentpipe.Outcome
	var err error

	if service != "" {
		var result mcp.Result
		result, err = o.MCPPipeline.Run(ctx, service, req.Text, req.Images)
		outcome = agentpipe.Outcome{Text: result.Text, ToolCalls: result.ToolCalls}
		for _, call := range result.ToolCalls {
			pres.OnToolCallObserved(call)
		}
		if err == nil {
			pres.OnTextDelta("", result.Text)
		}
	} else {
		pipeline := o.buildAgentPipeline(req, thread)
		outcome, err = pipeline.Run(ctx, turns, hasImages, pres)
	}

	if pres.Tripped() {
		slog.WarnContext(ctx, "streaming circuit breaker tripped; further edits suppressed")
	}

	if err != nil {
		return outcome.Text, err
	}

	thread.Turns = append(thread.Turns, model.ConversationTurn{Role: "user", Text: req.Text, CreatedAt: time.Now()})
	thread.Turns = append(thread.Turns, model.ConversationTurn{Role: "assistant", Text: outcome.Text, CreatedAt: time.Now()})

	// §3's ThreadState.CumulativeTokens is the running total across this
	// thread's assistant responses, not the trimmed-context-window size
	// re-fed on every turn; CheckLimit accumulates exactly that delta.
	responseTokens := o.Assembler.CountTokens(outcome.Text)
	thread.CumulativeTokens += responseTokens
	atLimit, _ := o.Assembler.CheckLimit(req.ChannelID+"/"+req.ThreadID, modelName, responseTokens)

	if finishErr := pres.Finish(outcome.Text, atLimit); finishErr != nil {
		slog.WarnContext(ctx, "failed to post final message", "error", finishErr)
	}
	return outcome.Text, nil
}

// buildAgentPipeline clones the static AgentBase template with a
// request-scoped ToolExecutor, bound to this thread's vector index and
// this message's image-delivery target (§4.E's per-thread-map correction:
// no process-wide mutable agent handle is ever touched).
func (o *Orchestrator) buildAgentPipeline(req model.Request, thread *model.ThreadState) *agentpipe.Pipeline {
	executor := &toolexec.Executor{
		Hosted:    o.Hosted,
		Images:    imageSink{platform: o.Platform, channelID: req.ChannelID, threadTS: req.ThreadID},
		Thread:    threadVectorIndex{state: thread},
		MCPTable:  o.MCPTable,
		MCPRunner: o.MCPRunner,
		MCPBearer: o.MCPBearer,
	}

	clone := *o.AgentBase
	clone.Executor = executor
	return &clone
}

// handleSlashCommand implements the manual tool-debug path, grounded on
// the teacher's handleSlashCommand: `/tool_name action {json_params}`, the
// `/notools` escape hatch for a tool-free turn, and plain-string fallback
// for a single unquoted parameter.
func (o *Orchestrator) handleSlashCommand(ctx context.Context, req model.Request, placeholderTS string) {
	parts := strings.SplitN(strings.TrimPrefix(req.Text, "/"), " ", 3)
	if len(parts) < 2 {
		_ = o.Platform.EditMessage(ctx, req.ChannelID, placeholderTS,
			"❌ Format error. Use: /[tool_name] [action] [json_params(optional)]")
		return
	}

	toolName, action := parts[0], parts[1]

	if toolName == "notools" {
		rest := action
		if len(parts) > 2 {
			rest += " " + parts[2]
		}
		req.Text = rest
		req.NoTools = true
		_, err := o.run(ctx, req, placeholderTS)
		if err != nil {
			_ = o.Platform.EditMessage(ctx, req.ChannelID, placeholderTS, Classify(err, isAnyTransient).Message())
		}
		return
	}

	var params map[string]any
	if len(parts) > 2 {
		if jsonErr := json.Unmarshal([]byte(parts[2]), &params); jsonErr != nil {
			params = map[string]any{"query": parts[2]}
		}
	} else {
		params = map[string]any{}
	}

	desc, ok := o.MCPTable.Get(toolName)
	if !ok {
		_ = o.Platform.EditMessage(ctx, req.ChannelID, placeholderTS, fmt.Sprintf("❌ Tool not found: %s", toolName))
		return
	}

	argsJSON, _ := json.Marshal(map[string]any{"action": action, "params": params})
	_ = o.Platform.EditMessage(ctx, req.ChannelID, placeholderTS, fmt.Sprintf("🛠️ Manually executing %s/%s…", toolName, action))

	executor := &toolexec.Executor{MCPTable: o.MCPTable, MCPRunner: o.MCPRunner, MCPBearer: o.MCPBearer}
	output, err := executor.Execute(ctx, model.ToolCall{Name: desc.Key, Arguments: string(argsJSON)})
	if err != nil {
		_ = o.Platform.EditMessage(ctx, req.ChannelID, placeholderTS, fmt.Sprintf("❌ Execution error: %v", err))
		return
	}
	_ = o.Platform.EditMessage(ctx, req.ChannelID, placeholderTS, output)
}

func isAnyTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timeout") || strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "429") || strings.Contains(msg, "503") || strings.Contains(msg, "rate limit")
}

