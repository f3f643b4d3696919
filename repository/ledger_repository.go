package repository

import (
	"context"
	"fmt"

	"crashd/database"
	"crashd/domain/entities"
)

// LedgerRepository implements the append-only ledger
type LedgerRepository struct {
	q Queryable
}

// NewLedgerRepository creates a new ledger repository over the pool
func NewLedgerRepository(db *database.DB) *LedgerRepository {
	return &LedgerRepository{q: db.Pool}
}

func newLedgerRepository(tx Queryable) *LedgerRepository {
	return &LedgerRepository{q: tx}
}

// Record appends a ledger entry
func (r *LedgerRepository) Record(ctx context.Context, entry *entities.LedgerEntry) error {
	query := `
		INSERT INTO ledger_entries (
			user_id, wager_id, entry_type, amount,
			balance_before, balance_after, description
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`
	err := r.q.QueryRow(ctx, query,
		entry.UserID,
		entry.WagerID,
		entry.Type,
		entry.Amount,
		entry.BalanceBefore,
		entry.BalanceAfter,
		entry.Description,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record ledger entry for user %d: %w", entry.UserID, err)
	}
	return nil
}

// GetByUser returns a user's most recent entries
func (r *LedgerRepository) GetByUser(ctx context.Context, userID int64, limit int) ([]*entities.LedgerEntry, error) {
	query := `
		SELECT id, user_id, wager_id, entry_type, amount,
			balance_before, balance_after, description, created_at
		FROM ledger_entries
		WHERE user_id = $1
		ORDER BY id DESC
		LIMIT $2
	`
	rows, err := r.q.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger for user %d: %w", userID, err)
	}
	defer rows.Close()

	var entries []*entities.LedgerEntry
	for rows.Next() {
		var e entities.LedgerEntry
		if err := rows.Scan(
			&e.ID,
			&e.UserID,
			&e.WagerID,
			&e.Type,
			&e.Amount,
			&e.BalanceBefore,
			&e.BalanceAfter,
			&e.Description,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan ledger row: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// SumDeltas returns the sum of signed deltas for a user. Together with the
// non-negative balance check this backs the ledger-consistency invariant.
func (r *LedgerRepository) SumDeltas(ctx context.Context, userID int64) (int64, error) {
	query := `
		SELECT COALESCE(SUM(balance_after - balance_before), 0)
		FROM ledger_entries
		WHERE user_id = $1
	`
	var sum int64
	if err := r.q.QueryRow(ctx, query, userID).Scan(&sum); err != nil {
		return 0, fmt.Errorf("failed to sum ledger deltas for user %d: %w", userID, err)
	}
	return sum, nil
}
