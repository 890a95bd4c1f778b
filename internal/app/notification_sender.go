package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stellar_notification_bot/internal/domain/outbox"
	"stellar_notification_bot/internal/domain/subscription"
	domainTelegram "stellar_notification_bot/internal/domain/telegram"
	"stellar_notification_bot/internal/infra/backoff"
	"stellar_notification_bot/internal/infra/metrics"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"gopkg.in/telebot.v3"
)

// ChatRegistry looks up chats and turns off those whose messages can no longer be delivered.
type ChatRegistry interface {
	Get(ctx context.Context, chatID int64) (*subscription.Subscription, error)
	Disable(ctx context.Context, chatID int64) error
}

type NotificationSenderConfig struct {
	SendInterval    time.Duration
	IdleInterval    time.Duration
	MaxSendAttempts int // 0 keeps retrying a transient failure forever
	TxExplorerURL   string
}

// NotificationSender drains the outbox head-first into Telegram.
type NotificationSender struct {
	outbox         outbox.Store
	telegramClient domainTelegram.Client
	chats          ChatRegistry
	pacer          *rate.Limiter
	clock          backoff.Clock
	cfg            NotificationSenderConfig
	metrics        *metrics.PipelineMetrics
	log            *logrus.Entry

	headID       string
	headAttempts int
}

func NewNotificationSender(
	store outbox.Store,
	tc domainTelegram.Client,
	chats ChatRegistry,
	clock backoff.Clock,
	cfg NotificationSenderConfig,
	m *metrics.PipelineMetrics,
	log *logrus.Entry,
) *NotificationSender {
	return &NotificationSender{
		outbox:         store,
		telegramClient: tc,
		chats:          chats,
		pacer:          rate.NewLimiter(rate.Every(cfg.SendInterval), 1),
		clock:          clock,
		cfg:            cfg,
		metrics:        m,
		log:            log,
	}
}

// Run drains the outbox until ctx is cancelled.
func (s *NotificationSender) Run(ctx context.Context) error {
	s.log.Info("Notification sender started")
	for {
		err := s.SendNext(ctx)
		if ctx.Err() != nil {
			s.log.Info("Notification sender stopped")
			return nil
		}
		if err != nil {
			s.log.WithError(err).Error("Notification sender iteration failed")
			if err := s.clock.Sleep(ctx, s.cfg.IdleInterval); err != nil {
				return nil
			}
		}
	}
}

// SendNext handles the current head of the outbox: it delivers it, drops it, or
// leaves it for the next call. An empty outbox costs one idle interval.
func (s *NotificationSender) SendNext(ctx context.Context) error {
	n, err := s.outbox.PeekOldest(ctx)
	if errors.Is(err, outbox.ErrEmpty) {
		return s.clock.Sleep(ctx, s.cfg.IdleInterval)
	}
	if err != nil {
		return fmt.Errorf("peeking outbox: %w", err)
	}

	logEntry := s.log.WithFields(logrus.Fields{
		"notification_id": n.ID,
		"chat_id":         n.ChatID,
		"tx_hash":         n.TxHash,
	})

	enabled, err := s.chatEnabled(ctx, n.ChatID)
	if err != nil {
		return err
	}
	if !enabled {
		logEntry.Debug("Chat disabled, dropping notification")
		s.resetHead()
		s.metrics.IncDropped("disabled")
		return s.remove(ctx, n)
	}

	if err := s.pace(ctx); err != nil {
		return err
	}

	sendErr := s.telegramClient.SendMessage(n.ChatID, n.Body, s.sendOptions(n))
	switch {
	case sendErr == nil:
		s.resetHead()
		s.metrics.IncSent()
		logEntry.Debug("Notification delivered")
		return s.remove(ctx, n)

	case domainTelegram.IsPermanent(sendErr):
		logEntry.WithError(sendErr).Warn("Chat unreachable, disabling subscription")
		if err := s.chats.Disable(ctx, n.ChatID); err != nil && !errors.Is(err, subscription.ErrNotFound) {
			return fmt.Errorf("disabling chat %d: %w", n.ChatID, err)
		}
		s.resetHead()
		s.metrics.IncDisabledChats()
		s.metrics.IncDropped("unreachable")
		return s.remove(ctx, n)
	}

	s.metrics.IncSendFailures()
	var flood *domainTelegram.FloodError
	if errors.As(sendErr, &flood) {
		logEntry.WithField("retry_after", flood.RetryAfter).Warn("Telegram flood control")
		if err := s.clock.Sleep(ctx, flood.RetryAfter); err != nil {
			return err
		}
	}

	if s.trackFailure(n.ID) {
		logEntry.WithError(sendErr).WithField("attempts", s.headAttempts).Error("Giving up on notification")
		s.resetHead()
		s.metrics.IncDropped("dead_letter")
		return s.remove(ctx, n)
	}
	logEntry.WithError(sendErr).WithField("attempts", s.headAttempts).Warn("Sending notification failed, will retry")
	return nil
}

// chatEnabled treats a chat missing from the registry as disabled.
func (s *NotificationSender) chatEnabled(ctx context.Context, chatID int64) (bool, error) {
	sub, err := s.chats.Get(ctx, chatID)
	if errors.Is(err, subscription.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("looking up chat %d: %w", chatID, err)
	}
	return sub.Enabled, nil
}

// pace spaces consecutive sends by SendInterval, measured on the sender's clock.
func (s *NotificationSender) pace(ctx context.Context) error {
	now := s.clock.Now()
	r := s.pacer.ReserveN(now, 1)
	if d := r.DelayFrom(now); d > 0 {
		if err := s.clock.Sleep(ctx, d); err != nil {
			r.CancelAt(s.clock.Now())
			return err
		}
	}
	return nil
}

// trackFailure counts consecutive failures of the head and reports whether the
// attempt limit has been reached.
func (s *NotificationSender) trackFailure(id string) bool {
	if s.headID != id {
		s.headID = id
		s.headAttempts = 0
	}
	s.headAttempts++
	return s.cfg.MaxSendAttempts > 0 && s.headAttempts >= s.cfg.MaxSendAttempts
}

func (s *NotificationSender) resetHead() {
	s.headID = ""
	s.headAttempts = 0
}

func (s *NotificationSender) remove(ctx context.Context, n *outbox.PendingNotification) error {
	if err := s.outbox.Remove(ctx, n.ID); err != nil {
		return fmt.Errorf("removing notification %s: %w", n.ID, err)
	}
	return nil
}

func (s *NotificationSender) sendOptions(n *outbox.PendingNotification) *telebot.SendOptions {
	opts := &telebot.SendOptions{
		ParseMode:             telebot.ModeMarkdown,
		DisableWebPagePreview: true,
	}
	if n.TxHash != "" && s.cfg.TxExplorerURL != "" {
		markup := &telebot.ReplyMarkup{}
		markup.Inline(markup.Row(markup.URL("View transaction", fmt.Sprintf("%s/tx/%s", s.cfg.TxExplorerURL, n.TxHash))))
		opts.ReplyMarkup = markup
	}
	return opts
}
