package subscription

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("subscription not found")

// Repository defines the operations for persisting chat subscriptions.
// Every method touches a single record. Methods addressing an existing chat
// return ErrNotFound when it is missing.
type Repository interface {
	// EnsureChat creates the subscription if missing, otherwise re-enables it.
	EnsureChat(ctx context.Context, chatID int64) error
	Get(ctx context.Context, chatID int64) (*Subscription, error)
	// AddAccount creates an enabled subscription when the chat is unknown.
	// Adding an account twice is a no-op.
	AddAccount(ctx context.Context, chatID int64, accountID string) error
	RemoveAccount(ctx context.Context, chatID int64, accountID string) error
	Enable(ctx context.Context, chatID int64) error
	Disable(ctx context.Context, chatID int64) error
	// FindEnabledChatsWatching lists enabled chats watching any of accountIDs, each chat once.
	FindEnabledChatsWatching(ctx context.Context, accountIDs []string) ([]int64, error)
}
