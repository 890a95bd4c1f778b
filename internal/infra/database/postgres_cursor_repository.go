package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"stellar_notification_bot/internal/domain/cursor"
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const upsertCursorQuery = `INSERT INTO system_info (id, processed_ledger) VALUES (1, $1)
               ON CONFLICT (id) DO UPDATE SET processed_ledger = EXCLUDED.processed_ledger, updated_at = NOW()`

// PostgresCursorRepository keeps the processed ledger in the single system_info row.
type PostgresCursorRepository struct {
	db *sql.DB
}

func NewPostgresCursorRepository(db *sql.DB) *PostgresCursorRepository {
	return &PostgresCursorRepository{db: db}
}

func (r *PostgresCursorRepository) Get(ctx context.Context) (uint64, error) {
	var ledger int64
	err := r.db.QueryRowContext(ctx, `SELECT processed_ledger FROM system_info WHERE id = 1`).Scan(&ledger)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, cursor.ErrUninitialized
		}
		return 0, fmt.Errorf("error getting processed ledger: %w", err)
	}
	return uint64(ledger), nil
}

func (r *PostgresCursorRepository) Set(ctx context.Context, ledger uint64) error {
	return setCursor(ctx, r.db, ledger)
}

func (r *PostgresCursorRepository) SeedIfAbsent(ctx context.Context, ledger uint64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO system_info (id, processed_ledger) VALUES (1, $1) ON CONFLICT (id) DO NOTHING`, int64(ledger))
	if err != nil {
		return false, fmt.Errorf("error seeding processed ledger: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error checking seeded rows: %w", err)
	}
	return n == 1, nil
}

func setCursor(ctx context.Context, ex execer, ledger uint64) error {
	if _, err := ex.ExecContext(ctx, upsertCursorQuery, int64(ledger)); err != nil {
		return fmt.Errorf("error setting processed ledger: %w", err)
	}
	return nil
}
