// Package threadctx assembles the message window sent to the model: it
// walks a thread's history newest-first, counts tokens with a real BPE
// tokenizer, and stops once the configured budget is exhausted. Grounded
// directly on original_source/server/context_manager.py's
// manage_context_window (accumulate-newest-first, stop at
// context_limit - response_reserve - margin) and fetch_thread_history
// (bounded reply fetch, fail-soft on error).
package threadctx

import (
	"context"
	"fmt"
	"sync"

	"github.com/livia-chatops/livia/internal/config"
	"github.com/livia-chatops/livia/internal/model"
	"github.com/pkoukk/tiktoken-go"
)

// modelContextLimits mirrors get_model_context_limits(); unknown models
// fall back to 128000 exactly as the original does.
var modelContextLimits = map[string]int{
	"gpt-4.1-mini": 128000,
	"gpt-4o":       128000,
	"gpt-4o-mini":  128000,
	"o3-mini":      200000,
}

const defaultContextLimit = 128000

// Assembler trims a thread's history to fit a model's context budget and
// tracks cumulative token usage per thread for the §8 memory-limit warning.
type Assembler struct {
	cfg *config.SystemConfig

	encMu sync.Mutex
	enc   *tiktoken.Tiktoken

	usageMu sync.Mutex
	usage   map[string]int // threadKey -> cumulative tokens this process has seen
}

func NewAssembler(cfg *config.SystemConfig) (*Assembler, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("threadctx: load tokenizer: %w", err)
	}
	return &Assembler{cfg: cfg, enc: enc, usage: make(map[string]int)}, nil
}

func (a *Assembler) countTokens(text string) int {
	a.encMu.Lock()
	defer a.encMu.Unlock()
	return len(a.enc.Encode(text, nil, nil))
}

// CountTokens exposes the tokenizer for one piece of text, used to measure
// a single assistant response rather than a whole assembled window.
func (a *Assembler) CountTokens(text string) int {
	return a.countTokens(text)
}

func contextLimitFor(modelName string) int {
	if limit, ok := modelContextLimits[modelName]; ok {
		return limit
	}
	return defaultContextLimit
}

// Window is the newest-first-accumulated, then chronologically-ordered
// subset of turns that fits the budget, plus the token total it consumed.
type Window struct {
	Turns       []model.ConversationTurn
	TotalTokens int
	Dropped     int
}

// Assemble walks turns newest-first, accumulating until the budget
// (context_limit - responseReserve - margin) would be exceeded, then
// returns the kept turns in original chronological order. This never
// errors: an empty or nil turns slice simply yields an empty Window,
// matching the original's fail-soft contract for a broken history fetch.
func (a *Assembler) Assemble(modelName string, turns []model.ConversationTurn) Window {
	limit := contextLimitFor(modelName)
	budget := limit - a.cfg.ContextResponseReserve - a.cfg.ContextMargin
	if budget < 0 {
		budget = 0
	}

	kept := make([]model.ConversationTurn, 0, len(turns))
	total := 0
	dropped := 0

	for i := len(turns) - 1; i >= 0; i-- {
		turn := turns[i]
		tokens := turn.Tokens
		if tokens == 0 {
			tokens = a.countTokens(turn.Text)
		}
		if total+tokens > budget {
			dropped = i + 1
			break
		}
		total += tokens
		kept = append([]model.ConversationTurn{turn}, kept...)
	}

	return Window{Turns: kept, TotalTokens: total, Dropped: dropped}
}

// ReplyFetcher abstracts the platform call to fetch up to N replies of a
// thread (Slack's conversations.replies, grounded on fetch_thread_history's
// limit=100 call). Implementations fail soft by returning a nil slice and a
// non-nil error; FetchHistory treats any error as "no history available".
type ReplyFetcher interface {
	FetchReplies(ctx context.Context, channelID, threadID string, limit int) ([]model.ConversationTurn, error)
}

// FetchHistory fetches up to ContextMaxReplies turns and assembles them
// against modelName's budget. On any fetch error it returns an empty
// Window and no error — context assembly is explicitly fail-soft, never a
// reason to drop the user's message.
func (a *Assembler) FetchHistory(ctx context.Context, rf ReplyFetcher, channelID, threadID, modelName string) Window {
	turns, err := rf.FetchReplies(ctx, channelID, threadID, a.cfg.ContextMaxReplies)
	if err != nil || turns == nil {
		return Window{}
	}
	return a.Assemble(modelName, turns)
}

// CheckLimit accumulates tokens for threadKey and reports whether the
// thread has reached 100% of its model's context budget. Grounded on
// check_context_limit: the original only ever implements a 100% hard
// cutoff (no soft-warning tier exists in the source), so only the hard
// threshold is implemented here — see DESIGN.md's Open Question
// resolution for why an unspecified soft tier was not invented.
func (a *Assembler) CheckLimit(threadKey, modelName string, turnTokens int) (atLimit bool, percent float64) {
	a.usageMu.Lock()
	defer a.usageMu.Unlock()

	a.usage[threadKey] += turnTokens
	limit := contextLimitFor(modelName)
	percent = float64(a.usage[threadKey]) / float64(limit) * 100
	return percent >= 100, percent
}
