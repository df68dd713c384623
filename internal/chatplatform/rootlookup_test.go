package chatplatform

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRootLookup_MentionsBot(t *testing.T) {
	p := NewInProcess("bot1")
	p.SeedThreadReply("C1", "root", ThreadMessage{UserID: "u1", Text: "hey <@bot1> can you help?", TS: "1"})

	lookup := NewRootLookup(p)
	mentions, err := lookup.RootMentionsBot(context.Background(), "C1", "root", "<@bot1>")
	require.NoError(t, err)
	require.True(t, mentions)
}

func TestRootLookup_NoMention(t *testing.T) {
	p := NewInProcess("bot1")
	p.SeedThreadReply("C1", "root", ThreadMessage{UserID: "u1", Text: "just chatting among ourselves", TS: "1"})

	lookup := NewRootLookup(p)
	mentions, err := lookup.RootMentionsBot(context.Background(), "C1", "root", "<@bot1>")
	require.NoError(t, err)
	require.False(t, mentions)
}
