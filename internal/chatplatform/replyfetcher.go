package chatplatform

import (
	"context"
	"fmt"
	"sync"

	"github.com/livia-chatops/livia/internal/model"
)

// ReplyFetcher adapts Platform to internal/threadctx.ReplyFetcher,
// formatting each reply as `[display_name]: text` per spec.md §4.C, with a
// small in-memory display-name cache (the spec recommends caching user
// lookups).
type ReplyFetcher struct {
	Platform Platform

	namesMu sync.RWMutex
	names   map[string]string
}

func NewReplyFetcher(platform Platform) *ReplyFetcher {
	return &ReplyFetcher{Platform: platform, names: make(map[string]string)}
}

func (r *ReplyFetcher) FetchReplies(ctx context.Context, channelID, threadID string, limit int) ([]model.ConversationTurn, error) {
	replies, err := r.Platform.GetThreadReplies(ctx, channelID, threadID, limit)
	if err != nil {
		return nil, err
	}

	turns := make([]model.ConversationTurn, 0, len(replies))
	for _, reply := range replies {
		name, err := r.displayName(ctx, reply.UserID)
		if err != nil {
			name = reply.UserID
		}
		turns = append(turns, model.ConversationTurn{
			Role: "user",
			Text: fmt.Sprintf("[%s]: %s", name, reply.Text),
		})
	}
	return turns, nil
}

func (r *ReplyFetcher) displayName(ctx context.Context, userID string) (string, error) {
	r.namesMu.RLock()
	name, ok := r.names[userID]
	r.namesMu.RUnlock()
	if ok {
		return name, nil
	}

	info, err := r.Platform.GetUserInfo(ctx, userID)
	if err != nil {
		return "", err
	}
	name = info.DisplayName
	if name == "" {
		name = info.RealName
	}

	r.namesMu.Lock()
	r.names[userID] = name
	r.namesMu.Unlock()
	return name, nil
}
