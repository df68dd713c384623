// Package chatplatform defines the boundary interface between the engine
// and whatever chat-platform socket adapter is wired in (explicitly out of
// scope per spec.md §1: "the chat-platform socket adapter ... via the
// interfaces in §6"). Grounded on the teacher's pkg/api/gateway.go
// (Channel/SignalingChannel/MessageResponder), generalized to the
// operation set spec.md §6 actually names: post/edit/delete/upload,
// thread-replies, user/channel lookups, and auth-test.
package chatplatform

import "context"

// FileAttachment is an inbound file reference as reported by the chat
// platform's event stream (§6): a private URL (URLPrivate) the engine must
// fetch with the bot credential. It carries no inline bytes.
type FileAttachment struct {
	ID        string
	MimeType  string
	Filename  string
	SizeBytes int64
	URLPrivate string
}

// InboundEvent is the normalized shape of one chat-platform message event
// (§6), before the Event Router applies allow-list/dedupe/mention rules.
type InboundEvent struct {
	Type         string
	ChannelID    string
	UserID       string
	Text         string
	EventTS      string
	ThreadTS     string
	Files        []FileAttachment
	IsBotMessage bool
}

// UserInfo is the response shape of get-user-info.
type UserInfo struct {
	DisplayName string
	RealName    string
}

// ChannelInfo is the response shape of get-channel-info.
type ChannelInfo struct {
	IsDirectMessage bool
}

// Platform is the full outbound operation set the engine requires from a
// chat-platform adapter (§6). The Event Router, Presenter, Context
// Assembler, and Media Adapters each depend only on the slice of this
// interface they actually call.
type Platform interface {
	PostMessage(ctx context.Context, channelID, threadTS, text string) (string, error)
	EditMessage(ctx context.Context, channelID, ts, text string) error
	DeleteMessage(ctx context.Context, channelID, ts string) error
	UploadFile(ctx context.Context, channelID string, data []byte, filename, title, comment, threadTS string) error
	GetThreadReplies(ctx context.Context, channelID, ts string, limit int) ([]ThreadMessage, error)
	GetUserInfo(ctx context.Context, userID string) (UserInfo, error)
	GetChannelInfo(ctx context.Context, channelID string) (ChannelInfo, error)
	AuthTest(ctx context.Context) (botUserID string, err error)
	DownloadFile(ctx context.Context, urlPrivate string) ([]byte, error)
}

// ThreadMessage is one reply as returned by GetThreadReplies.
type ThreadMessage struct {
	UserID string
	Text   string
	TS     string
}

// EditMessageAdapter narrows Platform to what internal/presenter needs,
// satisfying presenter.Editor without presenter importing this package.
type EditMessageAdapter struct {
	Platform Platform
}

func (a EditMessageAdapter) EditMessage(channelID, messageTS, text string) error {
	return a.Platform.EditMessage(context.Background(), channelID, messageTS, text)
}
