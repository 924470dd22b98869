package domain

import (
	"context"
	"time"
)

// InboundMessage is one chat message observed from the platform. Immutable
// once received; Seq is the platform-assigned sequence number used for
// cursor advancement.
type InboundMessage struct {
	ChatID    string
	SenderID  string
	Seq       int64
	Text      string
	Timestamp time.Time
}

// Messenger wraps the chat platform's two primitives: long-poll for new
// inbound messages past an offset, and push a reply to a chat.
//
// Poll blocks server-side up to timeout waiting for messages with Seq >=
// offset. A timeout with no new messages returns an empty slice and a nil
// error. Implementations classify failures as ErrAuth, ErrTransient or
// ErrProtocol; retry policy belongs to the caller, never to the Messenger.
type Messenger interface {
	Name() string
	Poll(ctx context.Context, offset int64, timeout time.Duration) ([]InboundMessage, error)
	ReplyText(ctx context.Context, chatID, text string) error
	ReplyPhoto(ctx context.Context, chatID, photoURL, caption string) error
}
