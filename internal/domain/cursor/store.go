// internal/domain/cursor/store.go
package cursor

import (
	"context"
	"errors"
)

// ErrUninitialized means the processed-ledger cursor was never seeded.
// Starting from ledger zero would replay the whole history, so callers treat it as fatal.
var ErrUninitialized = errors.New("processed ledger cursor is not initialized, seed it first")

// Store holds the highest fully processed ledger sequence.
type Store interface {
	Get(ctx context.Context) (uint64, error)
	Set(ctx context.Context, ledger uint64) error
	// SeedIfAbsent stores ledger only when no cursor exists yet and reports whether it did.
	SeedIfAbsent(ctx context.Context, ledger uint64) (bool, error)
}
