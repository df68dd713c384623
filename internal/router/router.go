// Package router implements the Event Router: self/bot rejection,
// allow-list enforcement, dedupe, the first-thread-message-must-mention-bot
// rule, mention stripping, and the +think shortcut. Grounded directly on
// original_source/server/event_handlers.py's handle_message_events.
package router

import (
	"context"
	"regexp"
	"strings"

	"github.com/livia-chatops/livia/internal/model"
	"github.com/livia-chatops/livia/internal/session"
)

// ThreadRootLookup fetches whether a thread's first message mentions the
// bot, grounded on the original's conversations_replies(limit=1,
// inclusive=True) call. Any error is treated as "do not respond" — the
// original drops the event entirely on lookup failure.
type ThreadRootLookup interface {
	RootMentionsBot(ctx context.Context, channelID, threadRootID, botMentionTag string) (bool, error)
}

// RawEvent is the chat-platform-agnostic shape the Event Router consumes.
// ThreadRootID is empty for a top-level (non-reply) message. IsDM reports
// whether the platform resolved ChannelID as a direct-message channel
// (§4.F step 3; backed by GetChannelInfo's is_im, resolved once per
// channel by chatplatform.DMResolver and cached by the caller).
type RawEvent struct {
	ChannelID    string
	UserID       string
	Username     string
	EventTS      string // unique per-event timestamp, used in the dedupe key
	ThreadRootID string
	Text         string
	IsDM         bool
}

// Decision is the router's verdict: whether to respond, and if so, with
// what the downstream pipeline needs.
type Decision struct {
	Respond      bool
	ThreadID     string // the thread root to reply into (starts one if new)
	CleanText    string // mention stripped
	IsThinkCmd   bool
}

// Router holds the long-lived state the Event Router needs across events:
// the bot's own identity, the dedupe cache, and the allow-list.
type Router struct {
	botUserID     string
	botMentionTag string // e.g. "<@U12345>"
	dedupe        *session.DedupeCache
	allowList     *session.AllowList
	rootLookup    ThreadRootLookup
}

func New(botUserID string, dedupe *session.DedupeCache, allowList *session.AllowList, rootLookup ThreadRootLookup) *Router {
	return &Router{
		botUserID:     botUserID,
		botMentionTag: "<@" + botUserID + ">",
		dedupe:        dedupe,
		allowList:     allowList,
		rootLookup:    rootLookup,
	}
}

var mentionPattern = func(tag string) *regexp.Regexp {
	return regexp.MustCompile(regexp.QuoteMeta(tag))
}

// selfEchoPhrases catches the chat-bridge MCP service mirroring the bot's
// own prior reply back into a channel it also watches (§4.F step 6). No
// equivalent list was found in the original source, so this is a minimal,
// conservative set rather than an invented large taxonomy.
var selfEchoPhrases = []string{
	"⛭ gpt-4",
	"⛭ o3-mini",
}

func isSelfEcho(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range selfEchoPhrases {
		if strings.Contains(lower, strings.ToLower(phrase)) {
			return true
		}
	}
	return false
}

// Route applies the full Event Router contract to one inbound event.
func (r *Router) Route(ctx context.Context, ev RawEvent) Decision {
	if ev.UserID == r.botUserID {
		return Decision{Respond: false}
	}

	if !r.allowList.Allowed(ev.ChannelID, ev.UserID) {
		if !ev.IsDM || !r.allowList.AllowedDM(ev.UserID) {
			return Decision{Respond: false}
		}
	}

	if isSelfEcho(ev.Text) {
		return Decision{Respond: false}
	}

	dedupeKey := ev.ChannelID + "_" + ev.EventTS + "_" + ev.UserID
	if r.dedupe.SeenOrMark(dedupeKey) {
		return Decision{Respond: false}
	}

	botMentioned := strings.Contains(ev.Text, r.botMentionTag)

	var respond bool
	var threadID string

	switch {
	case ev.IsDM:
		// §4.F step 5: a direct message is always eligible to respond,
		// regardless of mentions or thread-root state.
		respond = true
		threadID = ev.ThreadRootID
		if threadID == "" {
			threadID = ev.EventTS
		}
	case ev.ThreadRootID != "":
		mentionsAtRoot, err := r.rootLookup.RootMentionsBot(ctx, ev.ChannelID, ev.ThreadRootID, r.botMentionTag)
		if err != nil {
			// Fail soft by dropping the event, matching the original's
			// behavior of logging and returning on lookup failure.
			return Decision{Respond: false}
		}
		respond = mentionsAtRoot
		threadID = ev.ThreadRootID
	case botMentioned:
		respond = true
		threadID = ev.EventTS // a new thread is rooted at this message
	}

	if !respond {
		return Decision{Respond: false}
	}

	clean := strings.TrimSpace(mentionPattern(r.botMentionTag).ReplaceAllString(ev.Text, ""))

	isThink := strings.HasPrefix(strings.TrimSpace(clean), "+think")

	return Decision{
		Respond:    true,
		ThreadID:   threadID,
		CleanText:  clean,
		IsThinkCmd: isThink,
	}
}

// BuildRequest turns an accepted Decision plus its media extraction into a
// model.Request for the orchestrator.
func BuildRequest(ev RawEvent, dec Decision, images []model.ImageRef, audio []model.AudioRef, docs []model.DocumentRef, correlationID string) model.Request {
	return model.Request{
		CorrelationID: correlationID,
		ChannelID:     ev.ChannelID,
		ThreadID:      dec.ThreadID,
		UserID:        ev.UserID,
		Username:      ev.Username,
		Text:          dec.CleanText,
		Images:        images,
		Audio:         audio,
		Documents:     docs,
	}
}
