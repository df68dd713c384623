package threadctx

import (
	"context"
	"errors"
	"testing"

	"github.com/livia-chatops/livia/internal/config"
	"github.com/livia-chatops/livia/internal/model"
	"github.com/stretchr/testify/require"
)

func testAssembler(t *testing.T) *Assembler {
	t.Helper()
	cfg := config.DefaultSystemConfig()
	a, err := NewAssembler(cfg)
	require.NoError(t, err)
	return a
}

func TestAssemble_KeepsAllWhenUnderBudget(t *testing.T) {
	a := testAssembler(t)
	turns := []model.ConversationTurn{
		{Role: "user", Text: "hello"},
		{Role: "assistant", Text: "hi there"},
	}
	w := a.Assemble("gpt-4.1-mini", turns)
	require.Len(t, w.Turns, 2)
	require.Equal(t, 0, w.Dropped)
}

func TestAssemble_PreservesChronologicalOrder(t *testing.T) {
	a := testAssembler(t)
	turns := []model.ConversationTurn{
		{Role: "user", Text: "first"},
		{Role: "assistant", Text: "second"},
		{Role: "user", Text: "third"},
	}
	w := a.Assemble("gpt-4.1-mini", turns)
	require.Equal(t, "first", w.Turns[0].Text)
	require.Equal(t, "third", w.Turns[len(w.Turns)-1].Text)
}

func TestAssemble_DropsOldestWhenOverBudget(t *testing.T) {
	a := testAssembler(t)
	cfg := config.DefaultSystemConfig()
	cfg.ContextResponseReserve = 127000
	cfg.ContextMargin = 900
	tiny := &Assembler{cfg: cfg, enc: a.enc, usage: make(map[string]int)}

	turns := []model.ConversationTurn{
		{Role: "user", Text: "this is an old message that should get dropped first", Tokens: 80},
		{Role: "assistant", Text: "ok", Tokens: 50},
	}
	// budget = 128000 - 127000 - 900 = 100: "ok" (50) fits, 50+80 does not.
	w := tiny.Assemble("gpt-4.1-mini", turns)
	require.LessOrEqual(t, len(w.Turns), len(turns))
	require.Len(t, w.Turns, 1)
	require.Equal(t, "ok", w.Turns[0].Text)
	require.Equal(t, 1, w.Dropped)
}

type failingFetcher struct{}

func (failingFetcher) FetchReplies(ctx context.Context, channelID, threadID string, limit int) ([]model.ConversationTurn, error) {
	return nil, errors.New("boom")
}

func TestFetchHistory_FailsSoft(t *testing.T) {
	a := testAssembler(t)
	w := a.FetchHistory(context.Background(), failingFetcher{}, "c1", "t1", "gpt-4.1-mini")
	require.Empty(t, w.Turns)
}

func TestCheckLimit_HardCutoffOnly(t *testing.T) {
	a := testAssembler(t)
	atLimit, pct := a.CheckLimit("c1/t1", "gpt-4.1-mini", 10)
	require.False(t, atLimit)
	require.Greater(t, pct, 0.0)

	atLimit, _ = a.CheckLimit("c1/t1", "gpt-4.1-mini", 128000*2)
	require.True(t, atLimit)
}
