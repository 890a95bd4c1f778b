package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"stellar_notification_bot/internal/domain/outbox"

	"github.com/redis/go-redis/v9"
)

const (
	fieldChatID     = "chat_id"
	fieldBody       = "body"
	fieldTxHash     = "tx_hash"
	fieldEnqueuedAt = "enqueued_at"
)

// OutboxRepository keeps pending notifications in a stream. Entries are
// appended with XADD and removed with XDEL once delivered.
type OutboxRepository struct {
	store *Store
}

func (r *OutboxRepository) EnqueueBatch(ctx context.Context, notifications []*outbox.PendingNotification) error {
	if len(notifications) == 0 {
		return nil
	}
	return r.commit(ctx, notifications, nil)
}

// CommitLedger appends the notifications and moves the cursor inside one MULTI/EXEC.
func (r *OutboxRepository) CommitLedger(ctx context.Context, height uint64, notifications []*outbox.PendingNotification) error {
	return r.commit(ctx, notifications, &height)
}

func (r *OutboxRepository) commit(ctx context.Context, notifications []*outbox.PendingNotification, height *uint64) error {
	now := time.Now().UTC()
	adds := make([]*redis.StringCmd, len(notifications))

	_, err := r.store.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, n := range notifications {
			adds[i] = pipe.XAdd(ctx, &redis.XAddArgs{
				Stream: r.store.outboxKey(),
				Values: map[string]interface{}{
					fieldChatID:     n.ChatID,
					fieldBody:       n.Body,
					fieldTxHash:     n.TxHash,
					fieldEnqueuedAt: now.Format(time.RFC3339Nano),
				},
			})
		}
		if height != nil {
			pipe.Set(ctx, r.store.cursorKey(), *height, 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("enqueue %d notifications: %w", len(notifications), err)
	}

	for i, n := range notifications {
		n.ID = adds[i].Val()
		n.EnqueuedAt = now
	}
	return nil
}

func (r *OutboxRepository) PeekOldest(ctx context.Context) (*outbox.PendingNotification, error) {
	messages, err := r.store.client.XRangeN(ctx, r.store.outboxKey(), "-", "+", 1).Result()
	if err != nil {
		return nil, fmt.Errorf("read outbox head: %w", err)
	}
	if len(messages) == 0 {
		return nil, outbox.ErrEmpty
	}
	return decodeMessage(messages[0])
}

func (r *OutboxRepository) Remove(ctx context.Context, id string) error {
	if err := r.store.client.XDel(ctx, r.store.outboxKey(), id).Err(); err != nil {
		return fmt.Errorf("delete notification %s: %w", id, err)
	}
	return nil
}

func (r *OutboxRepository) Len(ctx context.Context) (int64, error) {
	n, err := r.store.client.XLen(ctx, r.store.outboxKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("outbox length: %w", err)
	}
	return n, nil
}

func decodeMessage(msg redis.XMessage) (*outbox.PendingNotification, error) {
	chatID, err := strconv.ParseInt(stringField(msg, fieldChatID), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("notification %s has invalid chat id: %w", msg.ID, err)
	}
	enqueuedAt, err := time.Parse(time.RFC3339Nano, stringField(msg, fieldEnqueuedAt))
	if err != nil {
		return nil, fmt.Errorf("notification %s has invalid enqueue time: %w", msg.ID, err)
	}
	return &outbox.PendingNotification{
		ID:         msg.ID,
		ChatID:     chatID,
		Body:       stringField(msg, fieldBody),
		TxHash:     stringField(msg, fieldTxHash),
		EnqueuedAt: enqueuedAt,
	}, nil
}

func stringField(msg redis.XMessage, field string) string {
	s, _ := msg.Values[field].(string)
	return s
}
