package mcp

import (
	"context"
	"strings"

	"github.com/livia-chatops/livia/internal/governor"
	"github.com/livia-chatops/livia/internal/model"
)

// HostedDescriptor is what gets handed to the provider's Responses call as
// a single hosted tool: `{type:"mcp", server_label, server_url,
// require_approval:"never", headers:{Authorization}}` (spec.md §6).
type HostedDescriptor struct {
	ServerLabel     string
	ServerURL       string
	RequireApproval string
	BearerToken     string
}

// Result is the outcome of one MCP Pipeline run.
type Result struct {
	Text      string
	ToolCalls []model.ToolCall
}

// Runner drives one non-streaming, tool_choice=required call against a single
// hosted MCP descriptor. Implemented by internal/llmprovider/openairesp
// against the Responses API (the only provider surface that supports
// hosted remote-MCP tools).
type Runner interface {
	RunHostedMCP(ctx context.Context, systemPrompt, userText string, images []model.ImageRef, desc HostedDescriptor) (Result, error)
	IsContextOverflow(err error) bool
	IsTransientError(err error) bool
}

// AgentFallback is the Agent Pipeline, invoked when the MCP Pipeline and
// its generic fallback both fail.
type AgentFallback interface {
	Run(ctx context.Context, text string, images []model.ImageRef) (Result, error)
}

type Pipeline struct {
	table    *Table
	runner   Runner
	gov      *governor.Governor
	bearer   string
	fallback AgentFallback
}

func NewPipeline(table *Table, runner Runner, gov *governor.Governor, bearerToken string, fallback AgentFallback) *Pipeline {
	return &Pipeline{table: table, runner: runner, gov: gov, bearer: bearerToken, fallback: fallback}
}

// Run sends text and images to service's hosted MCP descriptor through the
// governor-wrapped fallback chain and returns the final text and observed
// tool calls once the call completes. It takes no stream sink, so no
// partial text is delivered before it returns, and Result reports no token
// usage.
func (p *Pipeline) Run(ctx context.Context, service, text string, images []model.ImageRef) (Result, error) {
	desc, ok := p.table.Get(service)
	if !ok {
		return p.fallback.Run(ctx, text, images)
	}

	hosted := HostedDescriptor{
		ServerLabel:     desc.ServerLabel,
		ServerURL:       desc.ServerURL,
		RequireApproval: RequireApprovalNever,
		BearerToken:     p.bearer,
	}

	result, err := p.runGoverned(ctx, servicePrompt(desc), text, images, hosted)
	if err == nil {
		return result, nil
	}

	if service == "mail" && p.runner.IsContextOverflow(err) {
		result, retryErr := p.runGoverned(ctx, narrowedMailPrompt(desc), text, images, hosted)
		if retryErr == nil {
			return result, nil
		}
		err = retryErr
	}

	// Generic single-MCP fallback: same descriptor, generic instructions.
	result, genErr := p.runGoverned(ctx, genericPrompt(desc), text, images, hosted)
	if genErr == nil {
		return result, nil
	}

	// Final fallback: Agent Pipeline.
	return p.fallback.Run(ctx, text, images)
}

func (p *Pipeline) runGoverned(ctx context.Context, systemPrompt, text string, images []model.ImageRef, hosted HostedDescriptor) (Result, error) {
	var result Result
	err := p.gov.Execute(ctx, "integration", p.runner.IsTransientError, func(ctx context.Context) error {
		r, err := p.runner.RunHostedMCP(ctx, systemPrompt, text, images, hosted)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return result, nil
}

// IsContextOverflowMessage is a best-effort string classifier shared by
// providers that don't surface a structured context-length error type,
// grounded on the provider error strings observed in the teacher's
// pkg/llm clients ("context_length_exceeded", "maximum context length").
func IsContextOverflowMessage(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "context_length_exceeded") ||
		strings.Contains(msg, "maximum context length") ||
		strings.Contains(msg, "context length")
}
