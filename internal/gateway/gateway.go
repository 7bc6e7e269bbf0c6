package gateway

import (
	"context"
	"strings"
	"time"
)

// Identity describes the sender of an inbound event.
type Identity struct {
	UserID    int64
	Username  string
	FirstName string
	LastName  string
}

// FullName renders the display name used in staff-facing messages.
func (i Identity) FullName() string {
	return strings.TrimSpace(i.FirstName + " " + i.LastName)
}

// Button is one inline button; Data is the payload echoed back by a
// callback-query event.
type Button struct {
	Label string
	Data  string
}

// Gateway is the minimal messaging surface the core depends on. Delivery is
// at-least-once from the core's perspective; retries, if any, belong to the
// implementation.
type Gateway interface {
	// SendMessage delivers text (with optional inline buttons) to a chat and
	// returns the new message id. A non-zero replyTo threads the message
	// under an existing one.
	SendMessage(ctx context.Context, chatID int64, text string, buttons [][]Button, replyTo int) (int, error)
	// EditMessage replaces the text and buttons of an existing message.
	EditMessage(ctx context.Context, chatID int64, messageID int, text string, buttons [][]Button) error
}

// TextMessage is an inbound text event.
type TextMessage struct {
	Sender    Identity
	ChatID    int64
	MessageID int
	// ReplyTo is the id of the message this one replies to, zero if none.
	ReplyTo int
	// ReplyToText carries the replied-to message's text when available.
	ReplyToText string
	TopicID     int
	Text        string
	Private     bool
	Date        time.Time
}

// CallbackQuery is an inbound button-press event.
type CallbackQuery struct {
	Sender    Identity
	ChatID    int64
	MessageID int
	Data      string
}

// Handler consumes the inbound event stream.
type Handler interface {
	HandleText(ctx context.Context, msg TextMessage)
	HandleCallback(ctx context.Context, query CallbackQuery)
}
