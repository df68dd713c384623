package openairesp

import (
	"context"
	"fmt"
	"strings"

	"github.com/livia-chatops/livia/internal/mcp"
	"github.com/livia-chatops/livia/internal/model"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/responses"
)

// RunHostedMCP implements mcp.Runner against the Responses API's hosted
// remote-MCP tool type, the only provider surface in this stack that can
// delegate tool execution to an external MCP gateway rather than running a
// function tool in-process. Grounded on the descriptor shape in spec.md §6
// and the union-tool-param idiom already used for chat-completions tools
// in client.go's convertTools.
func (c *Client) RunHostedMCP(ctx context.Context, systemPrompt, userText string, images []model.ImageRef, desc mcp.HostedDescriptor) (mcp.Result, error) {
	input := []responses.ResponseInputItemUnionParam{
		responses.ResponseInputItemParamOfMessage(userText, responses.EasyInputMessageRoleUser),
	}

	tool := responses.ToolUnionParam{
		OfMcp: &responses.ToolMcpParam{
			ServerLabel:     desc.ServerLabel,
			ServerURL:       desc.ServerURL,
			RequireApproval: responses.McpRequireApprovalTypes(desc.RequireApproval),
			Headers: map[string]string{
				"Authorization": "Bearer " + desc.BearerToken,
			},
		},
	}

	params := responses.ResponseNewParams{
		Model:        responses.ResponsesModel(c.model),
		Instructions: openai.String(systemPrompt),
		Input:        responses.ResponseNewParamsInputUnion{OfInputItemList: input},
		Tools:        []responses.ToolUnionParam{tool},
		ToolChoice:   responses.ResponseNewParamsToolChoiceUnion{OfToolChoiceMode: openai.Opt(responses.ToolChoiceOptionsRequired)},
	}

	resp, err := c.client.Responses.New(ctx, params)
	if err != nil {
		return mcp.Result{}, fmt.Errorf("openairesp: hosted mcp call to %s: %w", desc.ServerLabel, err)
	}

	var text strings.Builder
	var calls []model.ToolCall
	for _, item := range resp.Output {
		if msg := item.AsMessage(); msg.Role == "assistant" {
			for _, part := range msg.Content {
				if out := part.AsOutputText(); out.Text != "" {
					text.WriteString(out.Text)
				}
			}
		}
		if mcpCall := item.AsMcpCall(); mcpCall.Name != "" {
			calls = append(calls, model.ToolCall{Name: mcpCall.Name, Arguments: mcpCall.Arguments})
		}
	}

	return mcp.Result{Text: text.String(), ToolCalls: calls}, nil
}

func (c *Client) IsContextOverflow(err error) bool {
	return mcp.IsContextOverflowMessage(err)
}
