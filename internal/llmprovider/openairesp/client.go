// Package openairesp adapts github.com/openai/openai-go/v3 to the
// canonical llmprovider.Client interface, for both ordinary chat
// completions and the agent-runner-shaped streaming events the Agent
// Pipeline consumes (text delta, tool_call_item, tool_call_output_item,
// message_output_item).
//
// Grounded on the teacher's pkg/llm/openailm/client.go for the streaming
// iteration and message-conversion idiom. Per spec.md §9's design note,
// this version does NOT use reflection to probe event.JSON's unexported
// raw field for provider-specific reasoning content — it reads only typed
// SDK fields and emits the one canonical model.ToolCallEvent shape, so a
// future SDK upgrade only touches this one adapter.
package openairesp

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/livia-chatops/livia/internal/llmprovider"
	"github.com/livia-chatops/livia/internal/model"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

type Client struct {
	client *openai.Client
	model  string
}

func NewClient(apiKey, model, baseURL string) *Client {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	c := openai.NewClient(opts...)
	return &Client{client: &c, model: model}
}

// Raw exposes the underlying SDK client, for callers that need to build a
// related adapter (FileStore) against the same credentials.
func (c *Client) Raw() *openai.Client { return c.client }

func (c *Client) Provider() string { return "openai" }

func (c *Client) IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "context deadline exceeded") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "429") ||
		strings.Contains(msg, "503")
}

func (c *Client) StreamChat(ctx context.Context, turns []model.ConversationTurn, tools []llmprovider.Tool) (<-chan model.ToolCallEvent, error) {
	out := make(chan model.ToolCallEvent, 64)

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: convertTurns(turns),
	}
	if len(tools) > 0 {
		params.Tools = convertTools(tools)
	}

	go func() {
		defer close(out)

		stream := c.client.Chat.Completions.NewStreaming(ctx, params)

		pending := map[int64]*model.ToolCall{}
		var finalText strings.Builder

		for stream.Next() {
			event := stream.Current()
			if len(event.Choices) == 0 {
				continue
			}
			choice := event.Choices[0]

			if choice.Delta.Content != "" {
				finalText.WriteString(choice.Delta.Content)
				out <- model.ToolCallEvent{Kind: model.EventTextDelta, Delta: choice.Delta.Content}
			}

			for _, tc := range choice.Delta.ToolCalls {
				call, ok := pending[tc.Index]
				if !ok {
					call = &model.ToolCall{}
					pending[tc.Index] = call
				}
				if tc.ID != "" {
					call.ID = tc.ID
				}
				if tc.Function.Name != "" {
					call.Name = tc.Function.Name
				}
				call.Arguments += tc.Function.Arguments
			}

			if choice.FinishReason == "tool_calls" {
				for _, call := range pending {
					c := *call
					out <- model.ToolCallEvent{Kind: model.EventToolCallItem, Call: &c}
				}
				pending = map[int64]*model.ToolCall{}
			}
		}

		if err := stream.Err(); err != nil {
			return
		}
		out <- model.ToolCallEvent{Kind: model.EventMessageOutputItem, Final: finalText.String()}
	}()

	return out, nil
}

func convertTools(tools []llmprovider.Tool) []openai.ChatCompletionToolUnionParam {
	items := make([]openai.ChatCompletionToolUnionParam, 0, len(tools))
	for _, t := range tools {
		schema := map[string]any{"type": "object", "properties": t.Parameters}
		if len(t.Required) > 0 {
			schema["required"] = t.Required
		}
		items = append(items, openai.ChatCompletionToolUnionParam{
			OfFunction: &openai.ChatCompletionFunctionToolParam{
				Type: "function",
				Function: openai.FunctionDefinitionParam{
					Name:        t.Name,
					Description: openai.String(t.Description),
					Parameters:  schema,
				},
			},
		})
	}
	return items
}

func convertTurns(turns []model.ConversationTurn) []openai.ChatCompletionMessageParamUnion {
	items := make([]openai.ChatCompletionMessageParamUnion, 0, len(turns))
	for _, t := range turns {
		switch t.Role {
		case "tool":
			items = append(items, openai.ChatCompletionMessageParamUnion{
				OfTool: &openai.ChatCompletionToolMessageParam{
					Role:       "tool",
					ToolCallID: t.ToolCallID,
					Content: openai.ChatCompletionToolMessageParamContentUnion{
						OfString: openai.String(t.Text),
					},
				},
			})
		case "assistant":
			if len(t.ToolCalls) > 0 {
				var calls []openai.ChatCompletionMessageToolCallUnionParam
				for _, tc := range t.ToolCalls {
					calls = append(calls, openai.ChatCompletionMessageToolCallUnionParam{
						OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
							ID:   tc.ID,
							Type: "function",
							Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
								Name:      tc.Name,
								Arguments: tc.Arguments,
							},
						},
					})
				}
				items = append(items, openai.ChatCompletionMessageParamUnion{
					OfAssistant: &openai.ChatCompletionAssistantMessageParam{Role: "assistant", ToolCalls: calls},
				})
			} else {
				items = append(items, openai.ChatCompletionMessageParamUnion{
					OfAssistant: &openai.ChatCompletionAssistantMessageParam{
						Role: "assistant",
						Content: openai.ChatCompletionAssistantMessageParamContentUnion{
							OfString: openai.String(t.Text),
						},
					},
				})
			}
		case "system":
			items = append(items, openai.ChatCompletionMessageParamUnion{
				OfSystem: &openai.ChatCompletionSystemMessageParam{
					Role: "system",
					Content: openai.ChatCompletionSystemMessageParamContentUnion{
						OfString: openai.String(t.Text),
					},
				},
			})
		default: // "user"
			items = append(items, openai.ChatCompletionMessageParamUnion{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Role: "user",
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: openai.String(t.Text),
					},
				},
			})
		}
	}
	return items
}

// ImageDataURL builds a data: URL for an inline base64 image, used when a
// user message carries attached image bytes rather than a fetchable URL.
func ImageDataURL(mediaType string, data []byte) string {
	return fmt.Sprintf("data:%s;base64,%s", mediaType, base64.StdEncoding.EncodeToString(data))
}
