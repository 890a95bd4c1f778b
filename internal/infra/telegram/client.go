// internal/infra/telegram/client.go
package telegram

import (
	"errors"
	"strings"
	"time"

	domainTelegram "stellar_notification_bot/internal/domain/telegram"

	"gopkg.in/telebot.v3"
)

// Delivery failures after which the chat can never be reached again.
var unreachableErrors = []error{
	telebot.ErrBlockedByUser,
	telebot.ErrKickedFromGroup,
	telebot.ErrKickedFromSuperGroup,
	telebot.ErrKickedFromChannel,
	telebot.ErrNotStartedByUser,
	telebot.ErrUserIsDeactivated,
	telebot.ErrNotChannelMember,
	telebot.ErrChatNotFound,
}

// TelebotAdapter implements the Client interface using the gopkg.in/telebot.v3 library.
type TelebotAdapter struct {
	bot *telebot.Bot
}

func NewTelebotAdapter(b *telebot.Bot) *TelebotAdapter {
	return &TelebotAdapter{bot: b}
}

// SendMessage sends a text message to the specified chat. Errors are
// classified into domain errors, see classifySendError.
func (tba *TelebotAdapter) SendMessage(recipientChatID int64, text string, options *telebot.SendOptions) error {
	if options == nil {
		options = &telebot.SendOptions{}
	}

	_, err := tba.bot.Send(telebot.ChatID(recipientChatID), text, options)
	return classifySendError(err)
}

func classifySendError(err error) error {
	if err == nil {
		return nil
	}

	var flood telebot.FloodError
	if errors.As(err, &flood) {
		return &domainTelegram.FloodError{RetryAfter: time.Duration(flood.RetryAfter) * time.Second, Err: err}
	}

	for _, target := range unreachableErrors {
		if errors.Is(err, target) {
			return errors.Join(domainTelegram.ErrRecipientUnreachable, err)
		}
	}

	// telebot reports unknown Forbidden descriptions as plain errors ending in the code
	var apiErr *telebot.Error
	if (errors.As(err, &apiErr) && apiErr.Code == 403) || strings.HasSuffix(err.Error(), "(403)") {
		return errors.Join(domainTelegram.ErrRecipientUnreachable, err)
	}
	return err
}
