package openairesp

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/responses"
)

// RunWebSearch issues a single one-shot Responses API call with the hosted
// web_search tool, for use as a function-tool executor inside the Agent
// Pipeline's chat-completions loop (which has no hosted-tool support of its
// own). Grounded on original_source/tools/web_search.py's
// WebSearchTool(search_context_size="medium").
func (c *Client) RunWebSearch(ctx context.Context, query string) (string, error) {
	params := responses.ResponseNewParams{
		Model: responses.ResponsesModel(c.model),
		Input: responses.ResponseNewParamsInputUnion{OfString: openai.String(query)},
		Tools: []responses.ToolUnionParam{
			{OfWebSearch: &responses.WebSearchToolParam{SearchContextSize: "medium"}},
		},
	}
	resp, err := c.client.Responses.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openairesp: web search: %w", err)
	}
	return extractOutputText(resp), nil
}

// RunFileSearch issues a one-shot Responses API call with the hosted
// file_search tool bound to a thread's ephemeral vector index (§4.I).
func (c *Client) RunFileSearch(ctx context.Context, query, vectorIndexID string) (string, error) {
	if vectorIndexID == "" {
		return "", fmt.Errorf("openairesp: file search: no document has been uploaded to this thread yet")
	}
	params := responses.ResponseNewParams{
		Model: responses.ResponsesModel(c.model),
		Input: responses.ResponseNewParamsInputUnion{OfString: openai.String(query)},
		Tools: []responses.ToolUnionParam{
			{OfFileSearch: &responses.FileSearchToolParam{VectorStoreIDs: []string{vectorIndexID}}},
		},
	}
	resp, err := c.client.Responses.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openairesp: file search: %w", err)
	}
	return extractOutputText(resp), nil
}

// ImageResult is the outcome of a hosted image-generation call.
type ImageResult struct {
	Base64        string
	RevisedPrompt string
}

// RunImageGeneration issues a one-shot Responses API call with the hosted
// image_generation tool, grounded on
// original_source/tools/image_generation.py's tool_config (size/quality/
// background) and its image_generation_call output-item extraction.
func (c *Client) RunImageGeneration(ctx context.Context, prompt string) (ImageResult, error) {
	params := responses.ResponseNewParams{
		Model: responses.ResponsesModel(c.model),
		Input: responses.ResponseNewParamsInputUnion{OfString: openai.String(prompt)},
		Tools: []responses.ToolUnionParam{
			{OfImageGeneration: &responses.ToolImageGenerationParam{
				Size:       "auto",
				Quality:    "auto",
				Background: "auto",
			}},
		},
	}
	resp, err := c.client.Responses.New(ctx, params)
	if err != nil {
		return ImageResult{}, fmt.Errorf("openairesp: image generation: %w", err)
	}

	var result ImageResult
	for _, item := range resp.Output {
		if call := item.AsImageGenerationCall(); call.Result != "" {
			result.Base64 = call.Result
			result.RevisedPrompt = call.RevisedPrompt
		}
	}
	if result.Base64 == "" {
		return ImageResult{}, fmt.Errorf("openairesp: image generation: no image returned")
	}
	if result.RevisedPrompt == "" {
		result.RevisedPrompt = prompt
	}
	return result, nil
}

// HostedToolAdapter narrows Client to internal/toolexec.HostedRunner,
// flattening ImageResult into the (base64, revisedPrompt) pair that
// interface expects so toolexec need not import this package's types.
type HostedToolAdapter struct {
	Client *Client
}

func (a HostedToolAdapter) RunWebSearch(ctx context.Context, query string) (string, error) {
	return a.Client.RunWebSearch(ctx, query)
}

func (a HostedToolAdapter) RunFileSearch(ctx context.Context, query, vectorIndexID string) (string, error) {
	return a.Client.RunFileSearch(ctx, query, vectorIndexID)
}

func (a HostedToolAdapter) RunImageGeneration(ctx context.Context, prompt string) (string, string, error) {
	result, err := a.Client.RunImageGeneration(ctx, prompt)
	if err != nil {
		return "", "", err
	}
	return result.Base64, result.RevisedPrompt, nil
}

func extractOutputText(resp *responses.Response) string {
	var text strings.Builder
	for _, item := range resp.Output {
		if msg := item.AsMessage(); msg.Role == "assistant" {
			for _, part := range msg.Content {
				if out := part.AsOutputText(); out.Text != "" {
					text.WriteString(out.Text)
				}
			}
		}
	}
	return text.String()
}
