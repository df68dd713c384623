package chatplatform

import (
	"context"
	"strings"
)

// RootLookup adapts Platform to internal/router.ThreadRootLookup, mirroring
// the original's conversations_replies(limit=1, inclusive=True) call: ask
// the platform for the thread root (and nothing else) and check whether it
// mentions the bot.
type RootLookup struct {
	Platform Platform
}

func NewRootLookup(platform Platform) RootLookup {
	return RootLookup{Platform: platform}
}

func (r RootLookup) RootMentionsBot(ctx context.Context, channelID, threadRootID, botMentionTag string) (bool, error) {
	replies, err := r.Platform.GetThreadReplies(ctx, channelID, threadRootID, 1)
	if err != nil {
		return false, err
	}
	for _, m := range replies {
		if strings.Contains(m.Text, botMentionTag) {
			return true, nil
		}
	}
	return false, nil
}
