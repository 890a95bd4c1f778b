package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"stellar_notification_bot/internal/domain/subscription"

	"github.com/lib/pq" // For pq.Array
)

type PostgresSubscriptionRepository struct {
	db *sql.DB
}

func NewPostgresSubscriptionRepository(db *sql.DB) *PostgresSubscriptionRepository {
	return &PostgresSubscriptionRepository{db: db}
}

func (r *PostgresSubscriptionRepository) EnsureChat(ctx context.Context, chatID int64) error {
	query := `INSERT INTO chat_subscriptions (chat_id) VALUES ($1)
               ON CONFLICT (chat_id) DO UPDATE SET enabled = TRUE, updated_at = NOW()`
	if _, err := r.db.ExecContext(ctx, query, chatID); err != nil {
		return fmt.Errorf("error ensuring chat %d: %w", chatID, err)
	}
	return nil
}

func (r *PostgresSubscriptionRepository) Get(ctx context.Context, chatID int64) (*subscription.Subscription, error) {
	query := `SELECT chat_id, account_ids, enabled, created_at, updated_at FROM chat_subscriptions WHERE chat_id = $1`
	s := subscription.Subscription{}
	err := r.db.QueryRowContext(ctx, query, chatID).Scan(&s.ChatID, pq.Array(&s.AccountIDs), &s.Enabled, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, subscription.ErrNotFound
		}
		return nil, fmt.Errorf("error getting subscription of chat %d: %w", chatID, err)
	}
	return &s, nil
}

func (r *PostgresSubscriptionRepository) AddAccount(ctx context.Context, chatID int64, accountID string) error {
	query := `INSERT INTO chat_subscriptions (chat_id, account_ids) VALUES ($1, ARRAY[$2::text])
               ON CONFLICT (chat_id) DO UPDATE SET
                   account_ids = CASE WHEN $2::text = ANY(chat_subscriptions.account_ids)
                                      THEN chat_subscriptions.account_ids
                                      ELSE array_append(chat_subscriptions.account_ids, $2::text) END,
                   updated_at = NOW()`
	if _, err := r.db.ExecContext(ctx, query, chatID, accountID); err != nil {
		return fmt.Errorf("error adding account to chat %d: %w", chatID, err)
	}
	return nil
}

func (r *PostgresSubscriptionRepository) RemoveAccount(ctx context.Context, chatID int64, accountID string) error {
	query := `UPDATE chat_subscriptions SET account_ids = array_remove(account_ids, $2::text), updated_at = NOW() WHERE chat_id = $1`
	return r.updateOne(ctx, chatID, query, chatID, accountID)
}

func (r *PostgresSubscriptionRepository) Enable(ctx context.Context, chatID int64) error {
	return r.updateOne(ctx, chatID, `UPDATE chat_subscriptions SET enabled = TRUE, updated_at = NOW() WHERE chat_id = $1`, chatID)
}

func (r *PostgresSubscriptionRepository) Disable(ctx context.Context, chatID int64) error {
	return r.updateOne(ctx, chatID, `UPDATE chat_subscriptions SET enabled = FALSE, updated_at = NOW() WHERE chat_id = $1`, chatID)
}

func (r *PostgresSubscriptionRepository) FindEnabledChatsWatching(ctx context.Context, accountIDs []string) ([]int64, error) {
	if len(accountIDs) == 0 {
		return nil, nil
	}
	query := `SELECT chat_id FROM chat_subscriptions WHERE enabled AND account_ids && $1::text[] ORDER BY chat_id`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(accountIDs))
	if err != nil {
		return nil, fmt.Errorf("error finding chats watching accounts: %w", err)
	}
	defer rows.Close()

	var chatIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("error scanning chat id: %w", err)
		}
		chatIDs = append(chatIDs, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chat rows: %w", err)
	}
	return chatIDs, nil
}

func (r *PostgresSubscriptionRepository) updateOne(ctx context.Context, chatID int64, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("error updating subscription of chat %d: %w", chatID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking updated rows: %w", err)
	}
	if n == 0 {
		return subscription.ErrNotFound
	}
	return nil
}
