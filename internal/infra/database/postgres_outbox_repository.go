package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"stellar_notification_bot/internal/domain/outbox"
)

type PostgresOutboxRepository struct {
	db *sql.DB
}

func NewPostgresOutboxRepository(db *sql.DB) *PostgresOutboxRepository {
	return &PostgresOutboxRepository{db: db}
}

func (r *PostgresOutboxRepository) EnqueueBatch(ctx context.Context, notifications []*outbox.PendingNotification) error {
	if len(notifications) == 0 {
		return nil
	}
	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for enqueue: %w", err)
	}
	defer txn.Rollback() // Rollback if not committed

	if err := insertNotifications(ctx, txn, notifications); err != nil {
		return err
	}
	return txn.Commit()
}

// CommitLedger stores a ledger's notifications and advances the cursor in one transaction.
func (r *PostgresOutboxRepository) CommitLedger(ctx context.Context, height uint64, notifications []*outbox.PendingNotification) error {
	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for ledger %d: %w", height, err)
	}
	defer txn.Rollback()

	if err := insertNotifications(ctx, txn, notifications); err != nil {
		return err
	}
	if err := setCursor(ctx, txn, height); err != nil {
		return err
	}
	return txn.Commit()
}

func insertNotifications(ctx context.Context, txn *sql.Tx, notifications []*outbox.PendingNotification) error {
	if len(notifications) == 0 {
		return nil
	}
	stmt, err := txn.PrepareContext(ctx, `INSERT INTO pending_notifications (chat_id, body, tx_hash)
                                         VALUES ($1, $2, $3)
                                         RETURNING id, enqueued_at`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement for enqueue: %w", err)
	}
	defer stmt.Close()

	for _, n := range notifications {
		var id int64
		if err := stmt.QueryRowContext(ctx, n.ChatID, n.Body, n.TxHash).Scan(&id, &n.EnqueuedAt); err != nil {
			return fmt.Errorf("error enqueueing notification for chat %d: %w", n.ChatID, err)
		}
		n.ID = strconv.FormatInt(id, 10)
	}
	return nil
}

func (r *PostgresOutboxRepository) PeekOldest(ctx context.Context) (*outbox.PendingNotification, error) {
	query := `SELECT id, chat_id, body, tx_hash, enqueued_at FROM pending_notifications ORDER BY id LIMIT 1`
	var id int64
	n := outbox.PendingNotification{}
	err := r.db.QueryRowContext(ctx, query).Scan(&id, &n.ChatID, &n.Body, &n.TxHash, &n.EnqueuedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, outbox.ErrEmpty
		}
		return nil, fmt.Errorf("error getting oldest notification: %w", err)
	}
	n.ID = strconv.FormatInt(id, 10)
	return &n, nil
}

func (r *PostgresOutboxRepository) Remove(ctx context.Context, id string) error {
	numericID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid notification id %q: %w", id, err)
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM pending_notifications WHERE id = $1`, numericID); err != nil {
		return fmt.Errorf("error removing notification %s: %w", id, err)
	}
	return nil
}

func (r *PostgresOutboxRepository) Len(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_notifications`).Scan(&n); err != nil {
		return 0, fmt.Errorf("error counting notifications: %w", err)
	}
	return n, nil
}
