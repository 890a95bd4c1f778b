package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"stellar_notification_bot/internal/domain/subscription"

	"github.com/stellar/go/strkey"
)

var ErrInvalidAccountID = errors.New("invalid stellar account id")

// SubscriptionService is the chat-facing side of the subscription registry.
type SubscriptionService struct {
	repo subscription.Repository
}

func NewSubscriptionService(repo subscription.Repository) *SubscriptionService {
	return &SubscriptionService{repo: repo}
}

// Start registers the chat, or re-enables it when it already exists.
func (s *SubscriptionService) Start(ctx context.Context, chatID int64) error {
	if err := s.repo.EnsureChat(ctx, chatID); err != nil {
		return fmt.Errorf("failed to register chat %d: %w", chatID, err)
	}
	return nil
}

// AddAccount validates accountID and adds it to the chat's watch list.
// It returns the normalized account id.
func (s *SubscriptionService) AddAccount(ctx context.Context, chatID int64, accountID string) (string, error) {
	accountID = strings.TrimSpace(accountID)
	if !strkey.IsValidEd25519PublicKey(accountID) {
		return accountID, ErrInvalidAccountID
	}
	if err := s.repo.AddAccount(ctx, chatID, accountID); err != nil {
		return accountID, fmt.Errorf("failed to add account: %w", err)
	}
	return accountID, nil
}

// RemoveAccount drops accountID from the watch list. Unknown accounts are ignored.
func (s *SubscriptionService) RemoveAccount(ctx context.Context, chatID int64, accountID string) error {
	accountID = strings.TrimSpace(accountID)
	err := s.repo.RemoveAccount(ctx, chatID, accountID)
	if err != nil && !errors.Is(err, subscription.ErrNotFound) {
		return fmt.Errorf("failed to remove account: %w", err)
	}
	return nil
}

func (s *SubscriptionService) Enable(ctx context.Context, chatID int64) error {
	err := s.repo.Enable(ctx, chatID)
	if errors.Is(err, subscription.ErrNotFound) {
		// enabling implies the chat wants notifications; register it
		return s.Start(ctx, chatID)
	}
	if err != nil {
		return fmt.Errorf("failed to enable chat %d: %w", chatID, err)
	}
	return nil
}

func (s *SubscriptionService) Disable(ctx context.Context, chatID int64) error {
	err := s.repo.Disable(ctx, chatID)
	if err != nil && !errors.Is(err, subscription.ErrNotFound) {
		return fmt.Errorf("failed to disable chat %d: %w", chatID, err)
	}
	return nil
}

// List returns the chat's subscription; unknown chats get an empty, disabled one.
func (s *SubscriptionService) List(ctx context.Context, chatID int64) (*subscription.Subscription, error) {
	sub, err := s.repo.Get(ctx, chatID)
	if errors.Is(err, subscription.ErrNotFound) {
		return &subscription.Subscription{ChatID: chatID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription of chat %d: %w", chatID, err)
	}
	return sub, nil
}
