package router

import (
	"context"
	"errors"
	"testing"

	"github.com/livia-chatops/livia/internal/config"
	"github.com/livia-chatops/livia/internal/session"
	"github.com/stretchr/testify/require"
)

type fakeLookup struct {
	mentionsBot bool
	err         error
}

func (f fakeLookup) RootMentionsBot(ctx context.Context, channelID, threadRootID, tag string) (bool, error) {
	return f.mentionsBot, f.err
}

func newTestRouter(lookup ThreadRootLookup) *Router {
	allow := session.NewAllowList(config.AllowListConfig{Mode: "dev", AllowedUsers: []string{"u1"}})
	dedupe := session.NewDedupeCache(100)
	return New("BOT1", dedupe, allow, lookup)
}

func newProdTestRouter(lookup ThreadRootLookup) *Router {
	allow := session.NewAllowList(config.AllowListConfig{
		Mode:            "prod",
		AllowedChannels: []string{"c-public"},
		AllowedUsers:    []string{"u1"},
	})
	dedupe := session.NewDedupeCache(100)
	return New("BOT1", dedupe, allow, lookup)
}

func TestRoute_RejectsSelf(t *testing.T) {
	r := newTestRouter(fakeLookup{})
	d := r.Route(context.Background(), RawEvent{UserID: "BOT1", EventTS: "1"})
	require.False(t, d.Respond)
}

func TestRoute_RejectsNotAllowlisted(t *testing.T) {
	r := newTestRouter(fakeLookup{})
	d := r.Route(context.Background(), RawEvent{UserID: "stranger", EventTS: "1", Text: "<@BOT1> hi"})
	require.False(t, d.Respond)
}

func TestRoute_TopLevelMentionStartsNewThread(t *testing.T) {
	r := newTestRouter(fakeLookup{})
	d := r.Route(context.Background(), RawEvent{UserID: "u1", EventTS: "100", Text: "<@BOT1> hello"})
	require.True(t, d.Respond)
	require.Equal(t, "100", d.ThreadID)
	require.Equal(t, "hello", d.CleanText)
}

func TestRoute_TopLevelWithoutMentionIsDropped(t *testing.T) {
	r := newTestRouter(fakeLookup{})
	d := r.Route(context.Background(), RawEvent{UserID: "u1", EventTS: "100", Text: "hello"})
	require.False(t, d.Respond)
}

func TestRoute_ThreadReplyRequiresRootMention(t *testing.T) {
	r := newTestRouter(fakeLookup{mentionsBot: false})
	d := r.Route(context.Background(), RawEvent{UserID: "u1", EventTS: "101", ThreadRootID: "100", Text: "follow up"})
	require.False(t, d.Respond)

	r2 := newTestRouter(fakeLookup{mentionsBot: true})
	d2 := r2.Route(context.Background(), RawEvent{UserID: "u1", EventTS: "101", ThreadRootID: "100", Text: "follow up"})
	require.True(t, d2.Respond)
	require.Equal(t, "100", d2.ThreadID)
}

func TestRoute_ThreadLookupErrorDropsEvent(t *testing.T) {
	r := newTestRouter(fakeLookup{err: errors.New("api down")})
	d := r.Route(context.Background(), RawEvent{UserID: "u1", EventTS: "101", ThreadRootID: "100", Text: "follow up"})
	require.False(t, d.Respond)
}

func TestRoute_DedupeByChannelTSAuthor(t *testing.T) {
	r := newTestRouter(fakeLookup{})
	ev := RawEvent{UserID: "u1", ChannelID: "c1", EventTS: "100", Text: "<@BOT1> hi"}
	d1 := r.Route(context.Background(), ev)
	require.True(t, d1.Respond)

	d2 := r.Route(context.Background(), ev)
	require.False(t, d2.Respond)
}

func TestRoute_DropsSelfEcho(t *testing.T) {
	r := newTestRouter(fakeLookup{})
	d := r.Route(context.Background(), RawEvent{UserID: "u1", EventTS: "100", Text: "`⛭ gpt-4.1-mini` some mirrored reply"})
	require.False(t, d.Respond)
}

func TestRoute_DMAlwaysRespondsEvenWithoutMention(t *testing.T) {
	r := newProdTestRouter(fakeLookup{})
	d := r.Route(context.Background(), RawEvent{UserID: "u1", ChannelID: "d1", EventTS: "100", Text: "no mention here", IsDM: true})
	require.True(t, d.Respond)
	require.Equal(t, "100", d.ThreadID)
	require.Equal(t, "no mention here", d.CleanText)
}

func TestRoute_DMWithNoTextIsStillProcessed(t *testing.T) {
	r := newProdTestRouter(fakeLookup{})
	d := r.Route(context.Background(), RawEvent{UserID: "u1", ChannelID: "d1", EventTS: "100", Text: "", IsDM: true})
	require.True(t, d.Respond)
}

func TestRoute_ProdModeDMAllowsUserNotOnChannelAllowList(t *testing.T) {
	r := newProdTestRouter(fakeLookup{})
	// channel "d1" is not in AllowedChannels, only reachable via the DM
	// allowance (author on AllowedUsers + platform-confirmed DM).
	d := r.Route(context.Background(), RawEvent{UserID: "u1", ChannelID: "d1", EventTS: "100", Text: "hello", IsDM: true})
	require.True(t, d.Respond)
}

func TestRoute_ProdModeNonDMStillRequiresChannelAllowlist(t *testing.T) {
	r := newProdTestRouter(fakeLookup{})
	d := r.Route(context.Background(), RawEvent{UserID: "u1", ChannelID: "d1", EventTS: "100", Text: "<@BOT1> hi", IsDM: false})
	require.False(t, d.Respond)
}

func TestRoute_DevModeDMIsNotAllowed(t *testing.T) {
	r := newTestRouter(fakeLookup{})
	d := r.Route(context.Background(), RawEvent{UserID: "u1", ChannelID: "d1", EventTS: "100", Text: "hello", IsDM: true})
	require.False(t, d.Respond)
}

func TestRoute_ThinkCommand(t *testing.T) {
	r := newTestRouter(fakeLookup{})
	d := r.Route(context.Background(), RawEvent{UserID: "u1", EventTS: "100", Text: "<@BOT1> +think what should we do"})
	require.True(t, d.Respond)
	require.True(t, d.IsThinkCmd)
}
