// internal/infra/telegram/bot_commands_handler.go
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"stellar_notification_bot/internal/app"
	"stellar_notification_bot/internal/domain/subscription"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const (
	startText      = "Hello, I'm Stellar Notification Bot! Please add your Stellar account by /add command."
	addUsageText   = "Usage: /add <account id>"
	addedText      = "Added successfully! You will receive notifications when the account's balance changes."
	removeUsage    = "Usage: /remove <account id>"
	removedText    = "Removed successfully! You will not receive notifications when the account's balance changes."
	enabledText    = "Enabled successfully! You will receive notifications when the account's balance changes."
	disabledText   = "Disabled successfully! You will not receive notifications when the account's balance changes."
	emptyListText  = "You are not watching any account yet. Add one by /add command."
	failureText    = "Something went wrong, please try again later."
	removeButtonID = "rm"
)

const helpText = "I send a message whenever a watched Stellar account sends or receives funds.\n\n" +
	"`/add <account id>` - watch an account\n" +
	"`/remove <account id>` - stop watching an account\n" +
	"`/list` - show watched accounts\n" +
	"`/enable` - resume notifications\n" +
	"`/disable` - pause notifications\n" +
	"`/help` - show this message"

// SubscriptionManager is the part of app.SubscriptionService the commands use.
type SubscriptionManager interface {
	Start(ctx context.Context, chatID int64) error
	AddAccount(ctx context.Context, chatID int64, accountID string) (string, error)
	RemoveAccount(ctx context.Context, chatID int64, accountID string) error
	Enable(ctx context.Context, chatID int64) error
	Disable(ctx context.Context, chatID int64) error
	List(ctx context.Context, chatID int64) (*subscription.Subscription, error)
}

type botCommands struct {
	ctx           context.Context
	subscriptions SubscriptionManager
	logger        *logrus.Entry
}

var removeBtn = telebot.Btn{Unique: removeButtonID}

func RegisterBotCommands(
	ctx context.Context,
	b *telebot.Bot,
	subscriptions SubscriptionManager,
	baseLogger *logrus.Entry, // For contextual logging
) {
	h := &botCommands{ctx: ctx, subscriptions: subscriptions, logger: baseLogger.WithField("handler_group", "subscription")}

	b.Handle("/start", h.onStart)
	b.Handle("/add", h.onAdd)
	b.Handle("/remove", h.onRemove)
	b.Handle("/enable", h.onEnable)
	b.Handle("/disable", h.onDisable)
	b.Handle("/list", h.onList)
	b.Handle("/help", h.onHelp)
	b.Handle(&removeBtn, h.onRemoveButton)
}

func (h *botCommands) commandLogger(c telebot.Context, command string) *logrus.Entry {
	return h.logger.WithFields(logrus.Fields{
		"command": command,
		"chat_id": c.Chat().ID,
	})
}

func (h *botCommands) onStart(c telebot.Context) error {
	logCtx := h.commandLogger(c, "/start")
	logCtx.Info("Processing /start command")

	if err := h.subscriptions.Start(h.ctx, c.Chat().ID); err != nil {
		logCtx.WithError(err).Error("Failed to register chat")
		return c.Send(failureText)
	}
	return c.Send(startText)
}

func (h *botCommands) onAdd(c telebot.Context) error {
	logCtx := h.commandLogger(c, "/add")

	args := c.Args()
	if len(args) != 1 {
		return c.Reply(addUsageText)
	}

	accountID, err := h.subscriptions.AddAccount(h.ctx, c.Chat().ID, args[0])
	switch {
	case errors.Is(err, app.ErrInvalidAccountID):
		logCtx.WithField("account_id", accountID).Info("Rejected invalid account id")
		return c.Reply(fmt.Sprintf("Invalid account id: %s", accountID))
	case err != nil:
		logCtx.WithError(err).Error("Failed to add account")
		return c.Reply(failureText)
	}

	logCtx.WithField("account_id", accountID).Info("Account added")
	return c.Reply(addedText)
}

func (h *botCommands) onRemove(c telebot.Context) error {
	logCtx := h.commandLogger(c, "/remove")

	args := c.Args()
	if len(args) != 1 {
		return c.Reply(removeUsage)
	}

	if err := h.subscriptions.RemoveAccount(h.ctx, c.Chat().ID, args[0]); err != nil {
		logCtx.WithError(err).Error("Failed to remove account")
		return c.Reply(failureText)
	}
	logCtx.WithField("account_id", args[0]).Info("Account removed")
	return c.Reply(removedText)
}

func (h *botCommands) onEnable(c telebot.Context) error {
	if err := h.subscriptions.Enable(h.ctx, c.Chat().ID); err != nil {
		h.commandLogger(c, "/enable").WithError(err).Error("Failed to enable notifications")
		return c.Reply(failureText)
	}
	return c.Reply(enabledText)
}

func (h *botCommands) onDisable(c telebot.Context) error {
	if err := h.subscriptions.Disable(h.ctx, c.Chat().ID); err != nil {
		h.commandLogger(c, "/disable").WithError(err).Error("Failed to disable notifications")
		return c.Reply(failureText)
	}
	return c.Reply(disabledText)
}

func (h *botCommands) onList(c telebot.Context) error {
	sub, err := h.subscriptions.List(h.ctx, c.Chat().ID)
	if err != nil {
		h.commandLogger(c, "/list").WithError(err).Error("Failed to list accounts")
		return c.Send(failureText)
	}
	text, markup := listView(sub)
	return c.Send(text, markup, telebot.ModeMarkdown)
}

func (h *botCommands) onHelp(c telebot.Context) error {
	return c.Send(helpText, telebot.ModeMarkdown)
}

// onRemoveButton handles the inline button attached to every account in /list.
func (h *botCommands) onRemoveButton(c telebot.Context) error {
	logCtx := h.commandLogger(c, "remove_button")
	accountID := c.Data()

	if err := h.subscriptions.RemoveAccount(h.ctx, c.Chat().ID, accountID); err != nil {
		logCtx.WithError(err).Error("Failed to remove account")
		return c.Respond(&telebot.CallbackResponse{Text: failureText})
	}
	logCtx.WithField("account_id", accountID).Info("Account removed")

	sub, err := h.subscriptions.List(h.ctx, c.Chat().ID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to refresh account list")
		return c.Respond(&telebot.CallbackResponse{Text: "Removed."})
	}
	text, markup := listView(sub)
	if err := c.Edit(text, markup, telebot.ModeMarkdown); err != nil {
		logCtx.WithError(err).Warn("Failed to update account list message")
	}
	return c.Respond(&telebot.CallbackResponse{Text: "Removed."})
}

func listView(sub *subscription.Subscription) (string, *telebot.ReplyMarkup) {
	markup := &telebot.ReplyMarkup{}
	if len(sub.AccountIDs) == 0 {
		return emptyListText, markup
	}

	var text strings.Builder
	if sub.Enabled {
		text.WriteString("Notifications are enabled.\n\n")
	} else {
		text.WriteString("Notifications are disabled, use /enable to resume.\n\n")
	}
	text.WriteString("Watched accounts:\n")

	rows := make([]telebot.Row, 0, len(sub.AccountIDs))
	for _, accountID := range sub.AccountIDs {
		text.WriteString(fmt.Sprintf("`%s`\n", accountID))
		rows = append(rows, markup.Row(markup.Data("Remove "+shortAccountID(accountID), removeBtn.Unique, accountID)))
	}
	markup.Inline(rows...)
	return text.String(), markup
}

func shortAccountID(accountID string) string {
	if len(accountID) <= 12 {
		return accountID
	}
	return accountID[:4] + "…" + accountID[len(accountID)-4:]
}
