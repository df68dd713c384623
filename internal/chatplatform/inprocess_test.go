package chatplatform

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInProcess_PostThenEdit(t *testing.T) {
	p := NewInProcess("bot1")
	ctx := context.Background()

	ts, err := p.PostMessage(ctx, "C1", "", "hello")
	require.NoError(t, err)

	text, ok := p.Message("C1", ts)
	require.True(t, ok)
	require.Equal(t, "hello", text)

	require.NoError(t, p.EditMessage(ctx, "C1", ts, "hello world"))
	text, _ = p.Message("C1", ts)
	require.Equal(t, "hello world", text)
}

func TestInProcess_ThreadRepliesRespectLimit(t *testing.T) {
	p := NewInProcess("bot1")
	p.SeedThreadReply("C1", "root", ThreadMessage{UserID: "u1", Text: "first", TS: "1"})
	p.SeedThreadReply("C1", "root", ThreadMessage{UserID: "u1", Text: "second", TS: "2"})

	replies, err := p.GetThreadReplies(context.Background(), "C1", "root", 1)
	require.NoError(t, err)
	require.Len(t, replies, 1)
	require.Equal(t, "second", replies[0].Text)
}

func TestInProcess_AuthTestReturnsBotID(t *testing.T) {
	p := NewInProcess("bot1")
	id, err := p.AuthTest(context.Background())
	require.NoError(t, err)
	require.Equal(t, "bot1", id)
}
