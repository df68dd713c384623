// Package llmprovider defines the canonical provider interface every LLM
// backend adapter implements, plus a fallback composition that tries
// multiple providers in order. Grounded on the teacher's pkg/llm/llm.go
// LLMClient/FallbackClient, generalized to stream the canonical
// model.ToolCallEvent shape (§9 design note: one shape, one adapter per
// provider — replacing the teacher's ad-hoc reflection-based field probing
// in pkg/llm/openailm/client.go).
package llmprovider

import (
	"context"
	"fmt"

	"github.com/livia-chatops/livia/internal/model"
)

// Tool is the provider-agnostic function-tool descriptor passed into a
// streaming call.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
	Required    []string
}

// Client is the interface every provider adapter (openairesp, gemini,
// ollama) implements.
type Client interface {
	Provider() string
	// StreamChat streams canonical events for one turn given the thread's
	// message history and the tools currently available.
	StreamChat(ctx context.Context, turns []model.ConversationTurn, tools []Tool) (<-chan model.ToolCallEvent, error)
	// IsTransientError classifies an error as retry-worthy, fed into the
	// Rate Governor's retry loop.
	IsTransientError(err error) bool
}

// FallbackClient tries each client in order, retrying a client up to
// MaxRetries times while its errors are transient and advancing to the next
// client after a non-transient error or once those retries are spent.
// Grounded directly on the
// teacher's FallbackClient.
type FallbackClient struct {
	Clients    []Client
	MaxRetries int
}

func NewFallbackClient(clients []Client, maxRetries int) *FallbackClient {
	return &FallbackClient{Clients: clients, MaxRetries: maxRetries}
}

func (f *FallbackClient) Provider() string { return "fallback" }

func (f *FallbackClient) IsTransientError(err error) bool {
	for _, c := range f.Clients {
		if c.IsTransientError(err) {
			return true
		}
	}
	return false
}

func (f *FallbackClient) StreamChat(ctx context.Context, turns []model.ConversationTurn, tools []Tool) (<-chan model.ToolCallEvent, error) {
	var lastErr error
	for _, client := range f.Clients {
		for attempt := 0; attempt < f.MaxRetries; attempt++ {
			ch, err := client.StreamChat(ctx, turns, tools)
			if err == nil {
				return ch, nil
			}
			lastErr = err
			if !client.IsTransientError(err) {
				break
			}
		}
	}
	return nil, fmt.Errorf("llmprovider: all clients exhausted: %w", lastErr)
}
