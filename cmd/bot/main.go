package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stellar_notification_bot/internal/app"
	"stellar_notification_bot/internal/infra/backoff"
	"stellar_notification_bot/internal/infra/config"
	"stellar_notification_bot/internal/infra/httpapi"
	"stellar_notification_bot/internal/infra/logger"
	"stellar_notification_bot/internal/infra/metrics"
	"stellar_notification_bot/internal/infra/scheduler"
	"stellar_notification_bot/internal/infra/stellar"
	"stellar_notification_bot/internal/infra/storage"
	"stellar_notification_bot/internal/infra/telegram"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gopkg.in/telebot.v3"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Could not load application configuration: %v", err)
	}

	logger.Init(cfg)
	mainLogger := logger.Component("main")
	mainLogger.Info("Stellar Notification Bot starting...")

	if err := run(cfg, mainLogger); err != nil {
		mainLogger.WithError(err).Error("Application stopped with error")
		os.Exit(1)
	}
	mainLogger.Info("Application shut down gracefully")
}

func run(cfg *config.AppConfig, mainLogger *logrus.Entry) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, err := storage.Open(ctx, cfg, mainLogger)
	if err != nil {
		return fmt.Errorf("could not open storage: %w", err)
	}
	defer func() {
		if err := stores.Close(); err != nil {
			mainLogger.WithError(err).Error("Failed to close storage")
		}
	}()

	m := metrics.NewPipelineMetrics(cfg.MetricsNamespace)

	fetcher := app.NewLedgerFetcher(stellar.NewHorizonClient(cfg.HorizonURL, cfg.HorizonTimeout))
	subscriptions := app.NewSubscriptionService(stores.Subscriptions)
	reporter := app.NewStatusReporter(fetcher, stores.Cursor, stores.Outbox, m, logger.Component("status"))

	var bot *telebot.Bot
	if cfg.EnableBotCommands || cfg.EnableNotificationSender {
		bot, err = newBot(ctx, cfg, subscriptions)
		if err != nil {
			return fmt.Errorf("could not create telegram bot: %w", err)
		}
	}

	statusScheduler := scheduler.NewStatusScheduler(reporter, logger.Component("scheduler"), cfg.CronSpecStatusReport)
	if err := statusScheduler.Start(); err != nil {
		return err
	}
	defer statusScheduler.Stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return httpapi.NewServer(cfg.HTTPAddr, reporter, logger.Component("httpapi")).Run(gctx)
	})

	if cfg.EnableLedgerMonitor {
		classifier := app.NewClassifier(
			stellar.NewEnvelopeDecoder(cfg.NetworkPassphrase),
			stores.Subscriptions,
			app.NewTinyPaymentFilter(cfg.IgnoreTinyPayment),
			app.FeeBumpPolicy(cfg.FeeBumpPolicy),
			m,
			logger.Component("classifier"),
		)
		monitor := app.NewLedgerMonitor(
			fetcher,
			classifier,
			stores.Cursor,
			stores.Outbox,
			backoff.NewPolicy(cfg.RetryBackoffInitial, cfg.RetryBackoffMax),
			backoff.RealClock{},
			cfg.PollInterval,
			m,
			logger.Component("ledger_monitor"),
		)
		g.Go(func() error { return monitor.Run(gctx) })
	}

	if cfg.EnableNotificationSender {
		sender := app.NewNotificationSender(
			stores.Outbox,
			telegram.NewTelebotAdapter(bot),
			stores.Subscriptions,
			backoff.RealClock{},
			app.NotificationSenderConfig{
				SendInterval:    cfg.SendInterval,
				IdleInterval:    cfg.IdleInterval,
				MaxSendAttempts: cfg.MaxSendAttempts,
				TxExplorerURL:   cfg.TxExplorerURL,
			},
			m,
			logger.Component("notification_sender"),
		)
		g.Go(func() error { return sender.Run(gctx) })
	}

	if cfg.EnableBotCommands {
		g.Go(func() error {
			go bot.Start()
			<-gctx.Done()
			bot.Stop()
			return nil
		})
	}

	mainLogger.WithFields(logrus.Fields{
		"bot_commands":        cfg.EnableBotCommands,
		"ledger_monitor":      cfg.EnableLedgerMonitor,
		"notification_sender": cfg.EnableNotificationSender,
	}).Info("Application setup complete")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func newBot(ctx context.Context, cfg *config.AppConfig, subscriptions *app.SubscriptionService) (*telebot.Bot, error) {
	botLogger := logger.Component("telegram")
	pref := telebot.Settings{
		Token:  cfg.TelegramToken,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) { // Global error handler
			entry := botLogger.WithError(err)
			if c != nil && c.Chat() != nil {
				entry = entry.WithField("chat_id", c.Chat().ID)
			}
			entry.Error("Telegram handler failed")
		},
	}
	bot, err := telebot.NewBot(pref)
	if err != nil {
		return nil, err
	}

	if cfg.EnableBotCommands {
		telegram.RegisterBotCommands(ctx, bot, subscriptions, botLogger)
		botLogger.Info("Bot command handlers registered")
	}
	return bot, nil
}
