// Package presenter implements the Streaming Presenter (spec.md §4.J): the
// single editable chat message lifecycle, its update-gating rules, and its
// circuit breaker. Grounded directly on
// original_source/server/streaming_processor.py's create_stream_callback
// (exact thresholds: ≥10 new chars, ≥500ms elapsed, empty-delta flush; the
// circuit breaker's 120s/8000-char/200-update/repetition trips). Edits are
// made synchronously from the OnTextDelta/Finish callbacks; no goroutine or
// channel sits between the stream and the edit target.
package presenter

import (
	"strings"
	"time"

	"github.com/livia-chatops/livia/internal/config"
	"github.com/livia-chatops/livia/internal/model"
	"github.com/livia-chatops/livia/internal/tags"
)

// Editor is the chat-platform operation the Presenter drives: replacing the
// full text of one already-posted message. Implemented by
// internal/chatplatform against whatever concrete channel adapter is wired
// in.
type Editor interface {
	EditMessage(channelID, messageTS, text string) error
}

// Presenter owns one editable message for the lifetime of one request.
type Presenter struct {
	editor    Editor
	cfg       *config.SystemConfig
	channelID string
	messageTS string

	startedAt       time.Time
	sentHeader      bool
	lastEditLength  int
	lastEditAt      time.Time
	updateCount     int
	headerPrefix    string
	accumulatedText string
	tripped         bool

	toolCalls []model.ToolCall
	hasAudio  bool
	hasImages bool
	userText  string
	modelName string
}

// New starts a Presenter for one request, computing the initial tag header
// before any LLM call is made (§4.J step 1).
func New(editor Editor, cfg *config.SystemConfig, channelID, messageTS, userText string, hasAudio, hasImages bool, modelName string) *Presenter {
	initial := tags.InitialTags(userText, hasAudio, hasImages, modelName)
	return &Presenter{
		editor:       editor,
		cfg:          cfg,
		channelID:    channelID,
		messageTS:    messageTS,
		startedAt:    time.Now(),
		headerPrefix: tags.Format(initial.Tags()) + "\n\n",
		hasAudio:     hasAudio,
		hasImages:    hasImages,
		userText:     userText,
		modelName:    modelName,
	}
}

// Placeholder posts the initial hourglass text; callers create the message
// via the chat platform first and pass its ts into New, then call
// Placeholder once to seed it before streaming starts.
func (p *Presenter) Placeholder() error {
	return p.editor.EditMessage(p.channelID, p.messageTS, ":hourglass: thinking…")
}

// OnToolCallObserved recomputes the cumulative tag header (§4.B) whenever a
// new tool call is observed, applied on the next edit.
func (p *Presenter) OnToolCallObserved(call model.ToolCall) {
	p.toolCalls = append(p.toolCalls, call)
	derived := tags.Derive(p.toolCalls, p.hasAudio, p.hasImages, p.userText, p.accumulatedText, p.modelName)
	p.headerPrefix = tags.Format(derived.Tags()) + "\n\n"
}

// OnTextDelta applies the §4.J update-gating rule and, when due, rewrites
// the message. Safe to call repeatedly; once the circuit breaker trips,
// further calls are no-ops.
func (p *Presenter) OnTextDelta(delta, accumulated string) {
	if p.tripped {
		return
	}
	if p.tripCircuitBreaker(accumulated) {
		return
	}

	p.accumulatedText = accumulated
	p.updateCount++
	now := time.Now()

	shouldUpdate := len(p.accumulatedText)-p.lastEditLength >= p.cfg.PresenterMinCharsDelta ||
		now.Sub(p.lastEditAt) >= time.Duration(p.cfg.PresenterMinIntervalMs)*time.Millisecond ||
		delta == ""

	if !p.sentHeader {
		_ = p.editor.EditMessage(p.channelID, p.messageTS, p.headerPrefix)
		p.sentHeader = true
		p.lastEditLength = 0
		p.lastEditAt = now
	}

	if shouldUpdate && p.accumulatedText != "" {
		_ = p.editor.EditMessage(p.channelID, p.messageTS, p.headerPrefix+p.accumulatedText)
		p.lastEditLength = len(p.accumulatedText)
		p.lastEditAt = now
	}
}

// Finish performs the final edit with the complete response and tag
// header, appending a memory-limit warning when atLimit is true.
func (p *Presenter) Finish(finalText string, atLimit bool) error {
	derived := tags.Derive(p.toolCalls, p.hasAudio, p.hasImages, p.userText, finalText, p.modelName)
	header := tags.Format(derived.Tags()) + "\n\n"
	body := finalText
	if atLimit {
		body += "\n\n⚠️ This conversation has reached the model's context limit; older messages may no longer be considered."
	}
	return p.editor.EditMessage(p.channelID, p.messageTS, header+body)
}

// tripCircuitBreaker implements §4.J's four trip conditions. Logging is
// left to the caller (the Orchestrator) via Tripped() so this package stays
// free of a hard slog dependency on a specific handler.
func (p *Presenter) tripCircuitBreaker(fullText string) bool {
	elapsed := time.Since(p.startedAt)
	if elapsed > time.Duration(p.cfg.PresenterMaxStreamSeconds)*time.Second {
		p.tripped = true
		return true
	}
	if len(fullText) > p.cfg.PresenterMaxResponseChars {
		p.tripped = true
		return true
	}
	if p.updateCount > p.cfg.PresenterMaxUpdates {
		p.tripped = true
		return true
	}
	if len(fullText) > 100 {
		tailStart := len(fullText) - 50
		tail := fullText[tailStart:]
		precedingStart := tailStart - 100
		if precedingStart < 0 {
			precedingStart = 0
		}
		preceding := fullText[precedingStart:tailStart]
		if strings.Contains(preceding, tail) {
			p.tripped = true
			return true
		}
	}
	return false
}

// Tripped reports whether the circuit breaker has fired for this request.
func (p *Presenter) Tripped() bool { return p.tripped }
