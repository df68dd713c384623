// Package toolexec implements the Agent Pipeline's function-tool executor
// (spec.md §4.I): web search, file search bound to a thread's vector
// index, image generation, and per-service MCP hosted-tool calls, run as
// function tools for whichever provider the Agent Pipeline streams from.
// Grounded on original_source/tools/web_search.py
// and original_source/tools/image_generation.py, translated from OpenAI
// Agents SDK hosted tools into one-shot Responses API calls issued by
// internal/llmprovider/openairesp on the executor's behalf.
package toolexec

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/livia-chatops/livia/internal/agentpipe"
	"github.com/livia-chatops/livia/internal/llmprovider"
	"github.com/livia-chatops/livia/internal/mcp"
	"github.com/livia-chatops/livia/internal/model"
	"github.com/livia-chatops/livia/internal/toolroute"
)

// WebSearchToolName, FileSearchToolName, and ImageGenerationToolName are the
// function-tool names the Agent Pipeline registers and dispatches on.
const (
	WebSearchToolName      = "web_search_tool"
	FileSearchToolName     = "file_search_tool"
	ImageGenerationToolName = "image_generation_tool"
)

// HostedRunner performs the one-shot hosted-tool calls only the Responses
// API surface can make. Implemented by an adapter in
// internal/llmprovider/openairesp over its ImageResult-returning methods.
type HostedRunner interface {
	RunWebSearch(ctx context.Context, query string) (string, error)
	RunFileSearch(ctx context.Context, query, vectorIndexID string) (string, error)
	RunImageGeneration(ctx context.Context, prompt string) (base64Data, revisedPrompt string, err error)
}

// ImageSink receives a generated image for delivery back to the chat
// platform (upload + thread post); optional, nil means the executor only
// returns a textual description.
type ImageSink interface {
	DeliverImage(ctx context.Context, base64Data, revisedPrompt string) error
}

// ThreadVectorIndex exposes the one piece of per-thread state file search
// needs: the ephemeral vector index ID the Document Ingestor last wrote.
type ThreadVectorIndex interface {
	VectorIndexID() string
}

// Executor implements agentpipe.ToolExecutor, dispatching by tool name to
// a hosted-tool call, an MCP service call, or an error for anything
// unrecognized.
type Executor struct {
	Hosted HostedRunner
	Images ImageSink
	Thread ThreadVectorIndex

	MCPTable  *mcp.Table
	MCPRunner mcp.Runner
	MCPBearer string
}

type webSearchArgs struct {
	Query string `json:"query"`
}

type fileSearchArgs struct {
	Query string `json:"query"`
}

type imageGenArgs struct {
	Prompt string `json:"prompt"`
}

type mcpArgs struct {
	Query string `json:"query"`
	Text  string `json:"text"`
}

// Execute dispatches call to the matching hosted or MCP tool, returning the
// textual output fed back into the model as a tool turn.
func (e *Executor) Execute(ctx context.Context, call model.ToolCall) (string, error) {
	switch call.Name {
	case WebSearchToolName:
		var args webSearchArgs
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return "", fmt.Errorf("toolexec: %s: bad arguments: %w", call.Name, err)
		}
		return e.Hosted.RunWebSearch(ctx, args.Query)

	case FileSearchToolName:
		var args fileSearchArgs
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return "", fmt.Errorf("toolexec: %s: bad arguments: %w", call.Name, err)
		}
		indexID := ""
		if e.Thread != nil {
			indexID = e.Thread.VectorIndexID()
		}
		return e.Hosted.RunFileSearch(ctx, args.Query, indexID)

	case ImageGenerationToolName:
		var args imageGenArgs
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return "", fmt.Errorf("toolexec: %s: bad arguments: %w", call.Name, err)
		}
		base64Data, revisedPrompt, err := e.Hosted.RunImageGeneration(ctx, args.Prompt)
		if err != nil {
			return "", err
		}
		if e.Images != nil {
			if err := e.Images.DeliverImage(ctx, base64Data, revisedPrompt); err != nil {
				return "", fmt.Errorf("toolexec: deliver image: %w", err)
			}
		}
		return fmt.Sprintf("Generated and shared an image for: %s", revisedPrompt), nil

	default:
		if desc, ok := e.MCPTable.Get(call.Name); ok {
			return e.runMCPTool(ctx, desc, call.Arguments)
		}
		return "", fmt.Errorf("toolexec: unknown tool %q", call.Name)
	}
}

// Tools builds the function-tool descriptors the Agent Pipeline advertises
// to the model: web search, file search, image generation, the deep
// thinking sub-agent, and one tool per registered MCP service (§4.I).
func Tools(services []*model.MCPDescriptor) []llmprovider.Tool {
	tools := []llmprovider.Tool{
		{
			Name:        WebSearchToolName,
			Description: "Search the web for current information and return a summary with sources.",
			Parameters:  map[string]any{"query": map[string]any{"type": "string", "description": "the search query"}},
			Required:    []string{"query"},
		},
		{
			Name:        FileSearchToolName,
			Description: "Search the documents the user has uploaded to this conversation.",
			Parameters:  map[string]any{"query": map[string]any{"type": "string", "description": "what to look for in the uploaded documents"}},
			Required:    []string{"query"},
		},
		{
			Name:        ImageGenerationToolName,
			Description: "Generate an image from a text prompt and share it in the conversation.",
			Parameters:  map[string]any{"prompt": map[string]any{"type": "string", "description": "a description of the desired image"}},
			Required:    []string{"prompt"},
		},
		agentpipe.ThinkingTool,
	}
	for _, desc := range services {
		tools = append(tools, llmprovider.Tool{
			Name:        desc.Key,
			Description: fmt.Sprintf("Use the %s integration: %s", desc.Key, desc.SystemPrompt),
			Parameters:  map[string]any{"query": map[string]any{"type": "string", "description": "the request to send to this integration"}},
			Required:    []string{"query"},
		})
	}
	return tools
}

// runMCPTool handles a tool call whose name matches an MCP service key,
// covering §4.I's "all MCP services registered as hosted MCP tools" for
// providers without native Responses-API hosted-MCP support.
func (e *Executor) runMCPTool(ctx context.Context, desc *model.MCPDescriptor, argsJSON string) (string, error) {
	if e.MCPRunner == nil {
		return "", fmt.Errorf("toolexec: no MCP runner configured for %q", desc.Key)
	}
	var args mcpArgs
	_ = json.Unmarshal([]byte(argsJSON), &args)
	text := args.Query
	if text == "" {
		text = args.Text
	}
	if !toolroute.Sanitize(text) {
		return "", fmt.Errorf("toolexec: %s: argument rejected by outbound sanitizer", desc.Key)
	}

	hosted := mcp.HostedDescriptor{
		ServerLabel:     desc.ServerLabel,
		ServerURL:       desc.ServerURL,
		RequireApproval: mcp.RequireApprovalNever,
		BearerToken:     e.MCPBearer,
	}
	result, err := e.MCPRunner.RunHostedMCP(ctx, desc.SystemPrompt, text, nil, hosted)
	if err != nil {
		return "", err
	}
	return result.Text, nil
}
