// Package storage opens the backend selected by STORAGE_DRIVER and exposes its
// cursor, outbox and subscription stores.
package storage

import (
	"context"
	"fmt"

	"stellar_notification_bot/internal/domain/cursor"
	"stellar_notification_bot/internal/domain/outbox"
	"stellar_notification_bot/internal/domain/subscription"
	"stellar_notification_bot/internal/infra/config"
	idb "stellar_notification_bot/internal/infra/database"
	"stellar_notification_bot/internal/infra/mongodb"
	"stellar_notification_bot/internal/infra/pebbledb"
	redisstore "stellar_notification_bot/internal/infra/redis"

	"github.com/sirupsen/logrus"
)

// Stores groups the three stores of one backend.
type Stores struct {
	Cursor        cursor.Store
	Outbox        outbox.Store
	Subscriptions subscription.Repository

	close func() error
}

func (s *Stores) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// Open connects to the configured backend and prepares its schema or indexes.
func Open(ctx context.Context, cfg *config.AppConfig, logger *logrus.Entry) (*Stores, error) {
	logger = logger.WithField("storage", cfg.StorageDriver)

	switch cfg.StorageDriver {
	case config.StorageDriverPostgres:
		db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := idb.EnsureSchema(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
		logger.Info("Database connection established successfully")
		return &Stores{
			Cursor:        idb.NewPostgresCursorRepository(db),
			Outbox:        idb.NewPostgresOutboxRepository(db),
			Subscriptions: idb.NewPostgresSubscriptionRepository(db),
			close:         db.Close,
		}, nil

	case config.StorageDriverMongo:
		client, err := mongodb.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		db := client.Database(cfg.MongoDatabase)
		if err := mongodb.EnsureIndexes(ctx, db); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, err
		}
		logger.WithField("database", cfg.MongoDatabase).Info("MongoDB connection established successfully")
		return &Stores{
			Cursor:        mongodb.NewCursorRepository(db),
			Outbox:        mongodb.NewOutboxRepository(db),
			Subscriptions: mongodb.NewSubscriptionRepository(db),
			close:         func() error { return client.Disconnect(context.Background()) },
		}, nil

	case config.StorageDriverPebble:
		store, err := pebbledb.Open(cfg.PebbleDir)
		if err != nil {
			return nil, err
		}
		logger.WithField("dir", cfg.PebbleDir).Info("Pebble store opened")
		return &Stores{
			Cursor:        store.Cursor(),
			Outbox:        store.Outbox(),
			Subscriptions: store.Subscriptions(),
			close:         store.Close,
		}, nil

	case config.StorageDriverRedis:
		store, err := redisstore.NewStore(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		logger.Info("Redis connection established successfully")
		return &Stores{
			Cursor:        store.Cursor(),
			Outbox:        store.Outbox(),
			Subscriptions: store.Subscriptions(),
			close:         store.Close,
		}, nil
	}

	return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
}
