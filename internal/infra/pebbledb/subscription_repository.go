package pebbledb

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"stellar_notification_bot/internal/domain/subscription"

	"github.com/cockroachdb/pebble/v2"
)

type subscriptionRecord struct {
	ChatID     int64     `json:"chat_id"`
	AccountIDs []string  `json:"account_ids"`
	Enabled    bool      `json:"enabled"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// SubscriptionRepository stores one record per chat plus an account -> chat
// index used by FindEnabledChatsWatching.
type SubscriptionRepository struct {
	store *Store
}

func (r *SubscriptionRepository) load(chatID int64) (*subscriptionRecord, error) {
	value, found, err := r.store.get(subscriptionKey(chatID))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, subscription.ErrNotFound
	}
	var rec subscriptionRecord
	if err := json.Unmarshal(value, &rec); err != nil {
		return nil, fmt.Errorf("decoding subscription of chat %d: %w", chatID, err)
	}
	return &rec, nil
}

// update applies fn to the chat's record under the store lock. When create is
// set, a missing chat starts out as an enabled, empty subscription.
func (r *SubscriptionRepository) update(chatID int64, create bool, fn func(rec *subscriptionRecord, batch *pebble.Batch) error) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	now := time.Now().UTC()
	rec, err := r.load(chatID)
	if errors.Is(err, subscription.ErrNotFound) && create {
		rec = &subscriptionRecord{ChatID: chatID, Enabled: true, CreatedAt: now}
	} else if err != nil {
		return err
	}

	batch := r.store.db.NewBatch()
	defer batch.Close()

	if err := fn(rec, batch); err != nil {
		return err
	}
	rec.UpdatedAt = now
	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding subscription of chat %d: %w", chatID, err)
	}
	if err := batch.Set(subscriptionKey(chatID), value, nil); err != nil {
		return fmt.Errorf("adding subscription to batch: %w", err)
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("committing subscription of chat %d: %w", chatID, err)
	}
	return nil
}

func (r *SubscriptionRepository) EnsureChat(_ context.Context, chatID int64) error {
	return r.update(chatID, true, func(rec *subscriptionRecord, _ *pebble.Batch) error {
		rec.Enabled = true
		return nil
	})
}

func (r *SubscriptionRepository) Get(_ context.Context, chatID int64) (*subscription.Subscription, error) {
	rec, err := r.load(chatID)
	if err != nil {
		return nil, err
	}
	return &subscription.Subscription{
		ChatID:     rec.ChatID,
		AccountIDs: rec.AccountIDs,
		Enabled:    rec.Enabled,
		CreatedAt:  rec.CreatedAt,
		UpdatedAt:  rec.UpdatedAt,
	}, nil
}

func (r *SubscriptionRepository) AddAccount(_ context.Context, chatID int64, accountID string) error {
	return r.update(chatID, true, func(rec *subscriptionRecord, batch *pebble.Batch) error {
		if slices.Contains(rec.AccountIDs, accountID) {
			return nil
		}
		rec.AccountIDs = append(rec.AccountIDs, accountID)
		return batch.Set(accountIndexKey(accountID, chatID), nil, nil)
	})
}

func (r *SubscriptionRepository) RemoveAccount(_ context.Context, chatID int64, accountID string) error {
	return r.update(chatID, false, func(rec *subscriptionRecord, batch *pebble.Batch) error {
		rec.AccountIDs = slices.DeleteFunc(rec.AccountIDs, func(id string) bool { return id == accountID })
		return batch.Delete(accountIndexKey(accountID, chatID), nil)
	})
}

func (r *SubscriptionRepository) Enable(_ context.Context, chatID int64) error {
	return r.update(chatID, false, func(rec *subscriptionRecord, _ *pebble.Batch) error {
		rec.Enabled = true
		return nil
	})
}

func (r *SubscriptionRepository) Disable(_ context.Context, chatID int64) error {
	return r.update(chatID, false, func(rec *subscriptionRecord, _ *pebble.Batch) error {
		rec.Enabled = false
		return nil
	})
}

func (r *SubscriptionRepository) FindEnabledChatsWatching(_ context.Context, accountIDs []string) ([]int64, error) {
	var chatIDs []int64
	for _, accountID := range accountIDs {
		candidates, err := r.chatsIndexedFor(accountID)
		if err != nil {
			return nil, err
		}
		for _, chatID := range candidates {
			if slices.Contains(chatIDs, chatID) {
				continue
			}
			rec, err := r.load(chatID)
			if errors.Is(err, subscription.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			if rec.Enabled {
				chatIDs = append(chatIDs, chatID)
			}
		}
	}
	slices.Sort(chatIDs)
	return chatIDs, nil
}

func (r *SubscriptionRepository) chatsIndexedFor(accountID string) ([]int64, error) {
	prefix := accountIndexPrefixKey(accountID)
	iter, err := r.store.db.NewIter(prefixOptions(prefix))
	if err != nil {
		return nil, fmt.Errorf("creating iterator: %w", err)
	}
	defer iter.Close()

	var chatIDs []int64
	for iter.First(); iter.Valid(); iter.Next() {
		chatIDs = append(chatIDs, int64(binary.BigEndian.Uint64(iter.Key()[len(prefix):])))
	}
	return chatIDs, nil
}
