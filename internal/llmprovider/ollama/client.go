// Package ollama adapts github.com/ollama/ollama's client to the canonical
// llmprovider.Client interface, used as the dev-mode/offline fallback
// provider in the teacher's FallbackClient chain. Grounded on the teacher's
// pkg/llm/ollama/client.go (no-timeout HTTP client, api.Client.Chat
// streaming callback).
package ollama

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/livia-chatops/livia/internal/llmprovider"
	"github.com/livia-chatops/livia/internal/model"
	"github.com/ollama/ollama/api"
)

type Client struct {
	client *api.Client
	model  string
}

// NewClient builds an Ollama client with no client-side timeout, matching
// the teacher's rationale: local model inference can legitimately take
// longer than a typical HTTP timeout, and the Rate Governor/context
// deadline are the actual bounds on how long a call may run.
func NewClient(model, baseURL string) (*Client, error) {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	httpClient := &http.Client{Transport: transport}

	var apiClient *api.Client
	if baseURL != "" {
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("ollama: invalid base url: %w", err)
		}
		apiClient = api.NewClient(u, httpClient)
	} else {
		var err error
		apiClient, err = api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("ollama: client from environment: %w", err)
		}
	}

	return &Client{client: apiClient, model: model}, nil
}

func (c *Client) Provider() string { return "ollama" }

func (c *Client) IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "connection refused") || strings.Contains(msg, "deadline exceeded")
}

func (c *Client) StreamChat(ctx context.Context, turns []model.ConversationTurn, tools []llmprovider.Tool) (<-chan model.ToolCallEvent, error) {
	out := make(chan model.ToolCallEvent, 64)

	messages := make([]api.Message, 0, len(turns))
	for _, t := range turns {
		messages = append(messages, api.Message{Role: t.Role, Content: t.Text})
	}

	var apiTools []api.Tool
	for _, t := range tools {
		apiTools = append(apiTools, api.Tool{
			Type: "function",
			Function: api.ToolFunction{
				Name:        t.Name,
				Description: t.Description,
			},
		})
	}

	stream := true
	req := &api.ChatRequest{Model: c.model, Messages: messages, Tools: apiTools, Stream: &stream}

	go func() {
		defer close(out)
		var finalText strings.Builder

		err := c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
			if resp.Message.Content != "" {
				finalText.WriteString(resp.Message.Content)
				out <- model.ToolCallEvent{Kind: model.EventTextDelta, Delta: resp.Message.Content}
			}
			for _, tc := range resp.Message.ToolCalls {
				out <- model.ToolCallEvent{Kind: model.EventToolCallItem, Call: &model.ToolCall{
					Name:      tc.Function.Name,
					Arguments: fmt.Sprintf("%v", tc.Function.Arguments),
				}}
			}
			if resp.Done {
				out <- model.ToolCallEvent{Kind: model.EventMessageOutputItem, Final: finalText.String()}
			}
			return nil
		})
		if err != nil {
			out <- model.ToolCallEvent{Kind: model.EventMessageOutputItem, Final: fmt.Sprintf("ollama error: %v", err)}
		}
	}()

	return out, nil
}
