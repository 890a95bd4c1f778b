// Command seed initializes the processed-ledger cursor so the ledger monitor
// knows where to start. It never overwrites an existing cursor.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"stellar_notification_bot/internal/app"
	"stellar_notification_bot/internal/domain/cursor"
	"stellar_notification_bot/internal/infra/config"
	"stellar_notification_bot/internal/infra/logger"
	"stellar_notification_bot/internal/infra/stellar"
	"stellar_notification_bot/internal/infra/storage"

	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Could not load application configuration: %v", err)
	}
	logger.Init(cfg)
	seedLogger := logger.Component("seed")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, err := storage.Open(ctx, cfg, seedLogger)
	if err != nil {
		seedLogger.WithError(err).Error("Could not open storage")
		os.Exit(1)
	}
	defer stores.Close()

	ledger := cfg.SeedLedger
	if ledger == 0 {
		fetcher := app.NewLedgerFetcher(stellar.NewHorizonClient(cfg.HorizonURL, cfg.HorizonTimeout))
		if ledger, err = fetcher.CurrentHeight(ctx); err != nil {
			seedLogger.WithError(err).Error("Could not fetch current ledger")
			stores.Close()
			os.Exit(1)
		}
	}

	if err := seedCursor(ctx, stores.Cursor, ledger, seedLogger); err != nil {
		seedLogger.WithError(err).Error("Could not seed cursor")
		stores.Close()
		os.Exit(1)
	}
}

// seedCursor stores ledger unless a cursor already exists.
func seedCursor(ctx context.Context, store cursor.Store, ledger uint64, log *logrus.Entry) error {
	seeded, err := store.SeedIfAbsent(ctx, ledger)
	if err != nil {
		return err
	}
	if seeded {
		log.WithField("processed_ledger", ledger).Info("Cursor seeded")
		return nil
	}
	current, err := store.Get(ctx)
	if err != nil {
		log.WithError(err).Warn("Cursor already initialized, could not read it back")
		return nil
	}
	log.WithField("processed_ledger", current).Info("Cursor already initialized, leaving it untouched")
	return nil
}
