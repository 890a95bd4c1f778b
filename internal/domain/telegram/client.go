package telegram

import (
	"errors"
	"fmt"
	"time"

	"gopkg.in/telebot.v3"
)

// ErrRecipientUnreachable marks a delivery failure that will not heal by retrying:
// the user blocked the bot, the chat is gone, the bot was kicked.
var ErrRecipientUnreachable = errors.New("telegram recipient unreachable")

// FloodError is returned when Telegram asks the sender to slow down.
type FloodError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *FloodError) Error() string {
	return fmt.Sprintf("telegram flood control, retry after %s: %v", e.RetryAfter, e.Err)
}

func (e *FloodError) Unwrap() error {
	return e.Err
}

// Client defines an interface for sending messages via a Telegram bot.
type Client interface {
	SendMessage(recipientChatID int64, text string, options *telebot.SendOptions) error
}

// IsPermanent reports whether err means the chat can never be reached again.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrRecipientUnreachable)
}
