// Package redis implements the cursor, outbox and subscription stores on Redis.
// The outbox is a stream, so entry ids already follow enqueue order.
package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "stellar_notification_bot"

// Store owns the Redis client shared by the three repositories.
type Store struct {
	client    *redis.Client
	keyPrefix string
}

func NewStore(ctx context.Context, url string) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Store{client: client, keyPrefix: defaultKeyPrefix}, nil
}

func (s *Store) Cursor() *CursorRepository {
	return &CursorRepository{store: s}
}

func (s *Store) Outbox() *OutboxRepository {
	return &OutboxRepository{store: s}
}

func (s *Store) Subscriptions() *SubscriptionRepository {
	return &SubscriptionRepository{store: s}
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) cursorKey() string {
	return s.keyPrefix + ":last_processed_ledger"
}

func (s *Store) outboxKey() string {
	return s.keyPrefix + ":outbox"
}

// chatKey is a hash holding enabled, created_time and updated_time.
func (s *Store) chatKey(chatID int64) string {
	return s.keyPrefix + ":chat:" + strconv.FormatInt(chatID, 10)
}

// chatAccountsKey is the set of accounts a chat watches.
func (s *Store) chatAccountsKey(chatID int64) string {
	return s.chatKey(chatID) + ":accounts"
}

// accountChatsKey is the reverse index: chats watching an account.
func (s *Store) accountChatsKey(accountID string) string {
	return s.keyPrefix + ":account:" + accountID + ":chats"
}
