package redis

import (
	"context"
	"errors"
	"fmt"

	"stellar_notification_bot/internal/domain/cursor"

	"github.com/redis/go-redis/v9"
)

type CursorRepository struct {
	store *Store
}

func (r *CursorRepository) Get(ctx context.Context) (uint64, error) {
	ledger, err := r.store.client.Get(ctx, r.store.cursorKey()).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, cursor.ErrUninitialized
	}
	if err != nil {
		return 0, fmt.Errorf("get cursor: %w", err)
	}
	return ledger, nil
}

func (r *CursorRepository) Set(ctx context.Context, ledger uint64) error {
	if err := r.store.client.Set(ctx, r.store.cursorKey(), ledger, 0).Err(); err != nil {
		return fmt.Errorf("set cursor to %d: %w", ledger, err)
	}
	return nil
}

func (r *CursorRepository) SeedIfAbsent(ctx context.Context, ledger uint64) (bool, error) {
	seeded, err := r.store.client.SetNX(ctx, r.store.cursorKey(), ledger, 0).Result()
	if err != nil {
		return false, fmt.Errorf("seed cursor with %d: %w", ledger, err)
	}
	return seeded, nil
}
