package llmprovider

import (
	"context"

	"github.com/livia-chatops/livia/internal/governor"
	"github.com/livia-chatops/livia/internal/model"
)

// GovernedClient wraps a Client so every call to start a stream passes
// through the Rate Governor's "llm" pool (§4.A): concurrency semaphore,
// sliding-window rate limit, and retry-with-backoff on transient errors,
// before handing back the event channel. The governor's retry loop covers
// only stream-initiation failures (connection refused, 429, 5xx); once a
// stream is flowing, a mid-stream error surfaces only as a closed channel,
// which the Agent Pipeline treats as the normal end of the stream, so such
// errors are not retried.
type GovernedClient struct {
	Client Client
	Gov    *governor.Governor
	Pool   string
}

func (g *GovernedClient) Provider() string { return g.Client.Provider() }

func (g *GovernedClient) IsTransientError(err error) bool { return g.Client.IsTransientError(err) }

func (g *GovernedClient) StreamChat(ctx context.Context, turns []model.ConversationTurn, tools []Tool) (<-chan model.ToolCallEvent, error) {
	var events <-chan model.ToolCallEvent
	err := g.Gov.Execute(ctx, g.Pool, g.Client.IsTransientError, func(ctx context.Context) error {
		ch, err := g.Client.StreamChat(ctx, turns, tools)
		if err != nil {
			return err
		}
		events = ch
		return nil
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}
