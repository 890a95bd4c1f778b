package pebbledb

import (
	"context"
	"encoding/binary"
	"fmt"

	"stellar_notification_bot/internal/domain/cursor"

	"github.com/cockroachdb/pebble/v2"
)

type CursorRepository struct {
	store *Store
}

func (r *CursorRepository) Get(_ context.Context) (uint64, error) {
	value, found, err := r.store.get([]byte(lastProcessedLedgerKey))
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, cursor.ErrUninitialized
	}
	return binary.BigEndian.Uint64(value), nil
}

func (r *CursorRepository) Set(_ context.Context, ledger uint64) error {
	err := r.store.db.Set([]byte(lastProcessedLedgerKey), encodeLedger(ledger), pebble.Sync)
	if err != nil {
		return fmt.Errorf("setting key [%s] to [%d]: %w", lastProcessedLedgerKey, ledger, err)
	}
	return nil
}

func (r *CursorRepository) SeedIfAbsent(ctx context.Context, ledger uint64) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	_, found, err := r.store.get([]byte(lastProcessedLedgerKey))
	if err != nil {
		return false, err
	}
	if found {
		return false, nil
	}
	return true, r.Set(ctx, ledger)
}

func encodeLedger(ledger uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, ledger)
}
