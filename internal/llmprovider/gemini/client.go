// Package gemini adapts google.golang.org/genai to the canonical
// llmprovider.Client interface. Used for vision requests and as an
// alternate provider. Grounded on the teacher's pkg/llm/gemini/client.go
// (message/tool conversion, thinking-content handling via genai.Part.Thought,
// stop-reason normalization), translated to emit the one canonical
// model.ToolCallEvent shape instead of the teacher's llm.StreamChunk.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/livia-chatops/livia/internal/llmprovider"
	"github.com/livia-chatops/livia/internal/model"

	"google.golang.org/genai"
)

type Client struct {
	client     *genai.Client
	model      string
	useThought bool
}

func NewClient(ctx context.Context, apiKey, model string, useThought bool) (*Client, error) {
	c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("gemini: new client: %w", err)
	}
	return &Client{client: c, model: model, useThought: useThought}, nil
}

func (c *Client) Provider() string { return "gemini" }

func (c *Client) IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"503", "overloaded", "429", "resource exhausted", "500", "internal error", "timeout", "connection refused", "context deadline exceeded"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func (c *Client) StreamChat(ctx context.Context, turns []model.ConversationTurn, tools []llmprovider.Tool) (<-chan model.ToolCallEvent, error) {
	contents, systemInstruction := convertTurns(turns)

	var genaiTools []*genai.Tool
	if len(tools) > 0 {
		var fds []*genai.FunctionDeclaration
		for _, t := range tools {
			fd := &genai.FunctionDeclaration{Name: t.Name, Description: t.Description}
			if t.Parameters != nil {
				fullSchema := map[string]any{"type": "object", "properties": t.Parameters}
				if len(t.Required) > 0 {
					fullSchema["required"] = t.Required
				}
				schemaB, _ := json.Marshal(fullSchema)
				var schema genai.Schema
				_ = json.Unmarshal(schemaB, &schema)
				fd.Parameters = &schema
			}
			fds = append(fds, fd)
		}
		genaiTools = append(genaiTools, &genai.Tool{FunctionDeclarations: fds})
	}

	var thinkingCfg *genai.ThinkingConfig
	if c.useThought {
		thinkingCfg = &genai.ThinkingConfig{IncludeThoughts: true}
	}
	genConfig := &genai.GenerateContentConfig{
		SystemInstruction: systemInstruction,
		Tools:             genaiTools,
		ThinkingConfig:    thinkingCfg,
	}

	out := make(chan model.ToolCallEvent, 64)
	startResultCh := make(chan error, 1)

	go func() {
		defer close(out)

		iter := c.client.Models.GenerateContentStream(ctx, c.model, contents, genConfig)
		started := false
		var finalText strings.Builder

		for resp, err := range iter {
			if err != nil {
				if resp == nil {
					if !started {
						started = true
						startResultCh <- err
					}
					return
				}
			}
			if !started {
				started = true
				startResultCh <- nil
			}

			for _, candidate := range resp.Candidates {
				if candidate.Content == nil {
					continue
				}
				for _, part := range candidate.Content.Parts {
					if part.Text != "" && !part.Thought {
						finalText.WriteString(part.Text)
						out <- model.ToolCallEvent{Kind: model.EventTextDelta, Delta: part.Text}
					}
					if part.FunctionCall != nil {
						argsB, _ := json.Marshal(part.FunctionCall.Args)
						out <- model.ToolCallEvent{Kind: model.EventToolCallItem, Call: &model.ToolCall{
							Name:      part.FunctionCall.Name,
							Arguments: string(argsB),
						}}
					}
				}
			}
		}

		out <- model.ToolCallEvent{Kind: model.EventMessageOutputItem, Final: finalText.String()}
	}()

	select {
	case err := <-startResultCh:
		if err != nil {
			return nil, err
		}
		return out, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func convertTurns(turns []model.ConversationTurn) ([]*genai.Content, *genai.Content) {
	var contents []*genai.Content
	var systemInstruction *genai.Content

	for _, t := range turns {
		if t.Role == "system" {
			if t.Text != "" {
				systemInstruction = &genai.Content{Parts: []*genai.Part{{Text: t.Text}}}
			}
			continue
		}
		if t.Role == "tool" {
			contents = append(contents, &genai.Content{
				Role: "user",
				Parts: []*genai.Part{{
					FunctionResponse: &genai.FunctionResponse{
						Name:     t.ToolName,
						Response: map[string]any{"result": t.Text},
					},
				}},
			})
			continue
		}

		role := "user"
		if t.Role == "assistant" {
			role = "model"
		}

		var parts []*genai.Part
		if t.Text != "" {
			parts = append(parts, &genai.Part{Text: t.Text})
		}
		for _, tc := range t.ToolCalls {
			var args map[string]any
			_ = json.Unmarshal([]byte(tc.Arguments), &args)
			parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{Name: tc.Name, Args: args}})
		}
		if len(parts) > 0 {
			contents = append(contents, &genai.Content{Role: role, Parts: parts})
		}
	}
	return contents, systemInstruction
}

// InlineImage builds a genai.Part carrying inline image bytes, used by the
// vision-routed agent when a request carries attached image data rather
// than a fetchable URL. Mirrors the teacher's disk-fallback read, minus the
// disk path (attachments here always arrive as bytes already fetched by
// the Media Adapters).
func InlineImage(mimeType string, data []byte) *genai.Part {
	if len(data) == 0 {
		return nil
	}
	return &genai.Part{InlineData: &genai.Blob{MIMEType: mimeType, Data: data}}
}
