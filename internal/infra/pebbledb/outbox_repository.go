package pebbledb

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"stellar_notification_bot/internal/domain/outbox"

	"github.com/cockroachdb/pebble/v2"
)

type outboxRecord struct {
	ChatID     int64     `json:"chat_id"`
	Body       string    `json:"body"`
	TxHash     string    `json:"tx_hash"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// OutboxRepository keys entries by a monotonically increasing sequence, so
// key order is enqueue order.
type OutboxRepository struct {
	store *Store
}

func (r *OutboxRepository) EnqueueBatch(_ context.Context, notifications []*outbox.PendingNotification) error {
	if len(notifications) == 0 {
		return nil
	}
	return r.commit(notifications, nil)
}

// CommitLedger writes the notifications and the cursor in one batch.
func (r *OutboxRepository) CommitLedger(_ context.Context, height uint64, notifications []*outbox.PendingNotification) error {
	return r.commit(notifications, &height)
}

func (r *OutboxRepository) commit(notifications []*outbox.PendingNotification, height *uint64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	batch := r.store.db.NewBatch()
	defer batch.Close()

	now := time.Now().UTC()
	seq := r.store.nextSeq
	ids := make([]string, len(notifications))
	for i, n := range notifications {
		value, err := json.Marshal(outboxRecord{ChatID: n.ChatID, Body: n.Body, TxHash: n.TxHash, EnqueuedAt: now})
		if err != nil {
			return fmt.Errorf("encoding notification: %w", err)
		}
		if err := batch.Set(outboxKey(seq), value, nil); err != nil {
			return fmt.Errorf("adding notification to batch: %w", err)
		}
		ids[i] = strconv.FormatUint(seq, 10)
		seq++
	}
	if height != nil {
		if err := batch.Set([]byte(lastProcessedLedgerKey), encodeLedger(*height), nil); err != nil {
			return fmt.Errorf("adding cursor to batch: %w", err)
		}
	}

	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("committing batch: %w", err)
	}

	r.store.nextSeq = seq
	for i, n := range notifications {
		n.ID = ids[i]
		n.EnqueuedAt = now
	}
	return nil
}

func (r *OutboxRepository) PeekOldest(_ context.Context) (*outbox.PendingNotification, error) {
	iter, err := r.store.db.NewIter(prefixOptions([]byte{outboxPrefix}))
	if err != nil {
		return nil, fmt.Errorf("creating iterator: %w", err)
	}
	defer iter.Close()

	if !iter.First() {
		return nil, outbox.ErrEmpty
	}
	value, err := iter.ValueAndErr()
	if err != nil {
		return nil, fmt.Errorf("getting value from iter: %w", err)
	}

	var rec outboxRecord
	if err := json.Unmarshal(value, &rec); err != nil {
		return nil, fmt.Errorf("decoding notification: %w", err)
	}
	return &outbox.PendingNotification{
		ID:         strconv.FormatUint(binary.BigEndian.Uint64(iter.Key()[1:]), 10),
		ChatID:     rec.ChatID,
		Body:       rec.Body,
		TxHash:     rec.TxHash,
		EnqueuedAt: rec.EnqueuedAt,
	}, nil
}

func (r *OutboxRepository) Remove(_ context.Context, id string) error {
	seq, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid notification id %q: %w", id, err)
	}
	if err := r.store.db.Delete(outboxKey(seq), pebble.Sync); err != nil {
		return fmt.Errorf("deleting notification %s: %w", id, err)
	}
	return nil
}

func (r *OutboxRepository) Len(_ context.Context) (int64, error) {
	iter, err := r.store.db.NewIter(prefixOptions([]byte{outboxPrefix}))
	if err != nil {
		return 0, fmt.Errorf("creating iterator: %w", err)
	}
	defer iter.Close()

	var n int64
	for iter.First(); iter.Valid(); iter.Next() {
		n++
	}
	return n, nil
}
