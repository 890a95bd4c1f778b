package redis

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"stellar_notification_bot/internal/domain/subscription"

	"github.com/redis/go-redis/v9"
)

const (
	fieldEnabled     = "enabled"
	fieldCreatedTime = "created_time"
	fieldUpdatedTime = "updated_time"
)

// SubscriptionRepository keeps a hash and an account set per chat, plus a
// per-account set of chats for FindEnabledChatsWatching.
type SubscriptionRepository struct {
	store *Store
}

func (r *SubscriptionRepository) EnsureChat(ctx context.Context, chatID int64) error {
	now := formatTime(time.Now())
	_, err := r.store.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		key := r.store.chatKey(chatID)
		pipe.HSetNX(ctx, key, fieldCreatedTime, now)
		pipe.HSet(ctx, key, fieldEnabled, "1", fieldUpdatedTime, now)
		return nil
	})
	if err != nil {
		return fmt.Errorf("ensure chat %d: %w", chatID, err)
	}
	return nil
}

func (r *SubscriptionRepository) Get(ctx context.Context, chatID int64) (*subscription.Subscription, error) {
	fields, err := r.store.client.HGetAll(ctx, r.store.chatKey(chatID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get chat %d: %w", chatID, err)
	}
	if len(fields) == 0 {
		return nil, subscription.ErrNotFound
	}
	accountIDs, err := r.store.client.SMembers(ctx, r.store.chatAccountsKey(chatID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get accounts of chat %d: %w", chatID, err)
	}
	slices.Sort(accountIDs)

	return &subscription.Subscription{
		ChatID:     chatID,
		AccountIDs: accountIDs,
		Enabled:    fields[fieldEnabled] == "1",
		CreatedAt:  parseTime(fields[fieldCreatedTime]),
		UpdatedAt:  parseTime(fields[fieldUpdatedTime]),
	}, nil
}

func (r *SubscriptionRepository) AddAccount(ctx context.Context, chatID int64, accountID string) error {
	now := formatTime(time.Now())
	_, err := r.store.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		key := r.store.chatKey(chatID)
		pipe.HSetNX(ctx, key, fieldCreatedTime, now)
		pipe.HSetNX(ctx, key, fieldEnabled, "1")
		pipe.HSet(ctx, key, fieldUpdatedTime, now)
		pipe.SAdd(ctx, r.store.chatAccountsKey(chatID), accountID)
		pipe.SAdd(ctx, r.store.accountChatsKey(accountID), chatID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("add account to chat %d: %w", chatID, err)
	}
	return nil
}

func (r *SubscriptionRepository) RemoveAccount(ctx context.Context, chatID int64, accountID string) error {
	return r.updateExisting(ctx, chatID, func(pipe redis.Pipeliner) {
		pipe.SRem(ctx, r.store.chatAccountsKey(chatID), accountID)
		pipe.SRem(ctx, r.store.accountChatsKey(accountID), chatID)
	})
}

func (r *SubscriptionRepository) Enable(ctx context.Context, chatID int64) error {
	return r.updateExisting(ctx, chatID, func(pipe redis.Pipeliner) {
		pipe.HSet(ctx, r.store.chatKey(chatID), fieldEnabled, "1")
	})
}

func (r *SubscriptionRepository) Disable(ctx context.Context, chatID int64) error {
	return r.updateExisting(ctx, chatID, func(pipe redis.Pipeliner) {
		pipe.HSet(ctx, r.store.chatKey(chatID), fieldEnabled, "0")
	})
}

// updateExisting runs fn in a transaction guarded by WATCH on the chat hash,
// returning ErrNotFound when the chat does not exist.
func (r *SubscriptionRepository) updateExisting(ctx context.Context, chatID int64, fn func(pipe redis.Pipeliner)) error {
	key := r.store.chatKey(chatID)
	err := r.store.client.Watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if exists == 0 {
			return subscription.ErrNotFound
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			fn(pipe)
			pipe.HSet(ctx, key, fieldUpdatedTime, formatTime(time.Now()))
			return nil
		})
		return err
	}, key)
	if errors.Is(err, subscription.ErrNotFound) {
		return err
	}
	if err != nil {
		return fmt.Errorf("update chat %d: %w", chatID, err)
	}
	return nil
}

func (r *SubscriptionRepository) FindEnabledChatsWatching(ctx context.Context, accountIDs []string) ([]int64, error) {
	if len(accountIDs) == 0 {
		return nil, nil
	}
	keys := make([]string, len(accountIDs))
	for i, accountID := range accountIDs {
		keys[i] = r.store.accountChatsKey(accountID)
	}
	members, err := r.store.client.SUnion(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("find chats watching %d accounts: %w", len(accountIDs), err)
	}
	if len(members) == 0 {
		return nil, nil
	}

	chatIDs := make([]int64, 0, len(members))
	for _, member := range members {
		chatID, err := strconv.ParseInt(member, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid chat id %q in account index: %w", member, err)
		}
		chatIDs = append(chatIDs, chatID)
	}

	flags := make([]*redis.StringCmd, len(chatIDs))
	_, err = r.store.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, chatID := range chatIDs {
			flags[i] = pipe.HGet(ctx, r.store.chatKey(chatID), fieldEnabled)
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("read enabled flags: %w", err)
	}

	enabled := chatIDs[:0]
	for i, chatID := range chatIDs {
		if flags[i].Val() == "1" {
			enabled = append(enabled, chatID)
		}
	}
	slices.Sort(enabled)
	return enabled, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
