package chatplatform

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
)

// InProcess is a reference Platform implementation that keeps every
// posted/edited message in memory. Used by tests, the CLI monitor path,
// and as a wiring example for a real adapter; never a production
// transport (the real socket adapter is out of scope, §1).
type InProcess struct {
	mu       sync.RWMutex
	messages map[string]string // "channel/ts" -> text
	replies  map[string][]ThreadMessage
	seq      int64
	botID    string
}

func NewInProcess(botID string) *InProcess {
	return &InProcess{
		messages: make(map[string]string),
		replies:  make(map[string][]ThreadMessage),
		botID:    botID,
	}
}

func (p *InProcess) key(channelID, ts string) string { return channelID + "/" + ts }

func (p *InProcess) PostMessage(ctx context.Context, channelID, threadTS, text string) (string, error) {
	ts := fmt.Sprintf("%d", atomic.AddInt64(&p.seq, 1))
	p.mu.Lock()
	p.messages[p.key(channelID, ts)] = text
	p.mu.Unlock()
	return ts, nil
}

func (p *InProcess) EditMessage(ctx context.Context, channelID, ts, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages[p.key(channelID, ts)] = text
	return nil
}

func (p *InProcess) DeleteMessage(ctx context.Context, channelID, ts string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.messages, p.key(channelID, ts))
	return nil
}

func (p *InProcess) UploadFile(ctx context.Context, channelID string, data []byte, filename, title, comment, threadTS string) error {
	return nil
}

func (p *InProcess) GetThreadReplies(ctx context.Context, channelID, ts string, limit int) ([]ThreadMessage, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	replies := p.replies[p.key(channelID, ts)]
	if len(replies) > limit {
		replies = replies[len(replies)-limit:]
	}
	return replies, nil
}

func (p *InProcess) GetUserInfo(ctx context.Context, userID string) (UserInfo, error) {
	return UserInfo{DisplayName: userID, RealName: userID}, nil
}

// GetChannelInfo follows the Slack convention the original adapter relies
// on (conversations_info's is_im): direct-message channel IDs are prefixed
// "D", public/private channel IDs are not.
func (p *InProcess) GetChannelInfo(ctx context.Context, channelID string) (ChannelInfo, error) {
	return ChannelInfo{IsDirectMessage: strings.HasPrefix(channelID, "D")}, nil
}

func (p *InProcess) AuthTest(ctx context.Context) (string, error) {
	return p.botID, nil
}

func (p *InProcess) DownloadFile(ctx context.Context, urlPrivate string) ([]byte, error) {
	return nil, fmt.Errorf("chatplatform: in-process adapter cannot download %q", urlPrivate)
}

// Message returns the current text of an already-posted message, for test
// assertions.
func (p *InProcess) Message(channelID, ts string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	text, ok := p.messages[p.key(channelID, ts)]
	return text, ok
}

// AllMessages returns every ts -> text pair posted to a channel, for test
// assertions that don't know a specific message's ts in advance.
func (p *InProcess) AllMessages(channelID string) map[string]string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	prefix := channelID + "/"
	out := make(map[string]string)
	for k, text := range p.messages {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			out[k[len(prefix):]] = text
		}
	}
	return out
}

// SeedThreadReply appends a reply to a thread root, for test fixtures.
func (p *InProcess) SeedThreadReply(channelID, rootTS string, msg ThreadMessage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replies[p.key(channelID, rootTS)] = append(p.replies[p.key(channelID, rootTS)], msg)
}

var _ Platform = (*InProcess)(nil)
