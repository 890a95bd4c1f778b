// internal/domain/outbox/store.go
package outbox

import (
	"context"
	"errors"
)

// ErrEmpty is returned by PeekOldest when nothing is queued.
var ErrEmpty = errors.New("outbox is empty")

// Store is a durable, insertion-ordered queue shared by all chats.
type Store interface {
	// EnqueueBatch stores the notifications in order, filling in ID and EnqueuedAt.
	// An empty batch is a no-op.
	EnqueueBatch(ctx context.Context, notifications []*PendingNotification) error
	// PeekOldest returns the globally oldest entry or ErrEmpty.
	PeekOldest(ctx context.Context) (*PendingNotification, error)
	// Remove deletes the entry. Removing a missing id is not an error.
	Remove(ctx context.Context, id string) error
	Len(ctx context.Context) (int64, error)
}
