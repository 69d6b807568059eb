package transport

import "context"

// Message is a platform-neutral incoming text message.
type Message struct {
	ID           int
	ChatID       int64
	ChatTitle    string
	IsGroup      bool
	FromID       int64
	FromUsername string
	Text         string

	// ReplyTo is set when the message replies to an earlier message.
	ReplyTo *ReplyRef
}

// ReplyRef describes the message being replied to.
type ReplyRef struct {
	FromBot bool
	Text    string
}

type ChatTarget struct {
	ChatID int64
}

type MessageRef struct {
	ChatID    int64
	MessageID int
}

type SendOptions struct {
	ParseMode          string
	DisablePreview     bool
	ReplyMarkupAdapter any // adapter-specific markup (Telegram: *telebot.ReplyMarkup)
}

// Adapter is the messaging-platform client. It delivers incoming updates to
// a channel and sends plain text (optionally with a keyboard) to a chat.
type Adapter interface {
	Start(ctx context.Context, out chan<- Message) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
}
