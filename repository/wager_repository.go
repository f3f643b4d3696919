package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crashd/database"
	"crashd/domain/entities"
	"crashd/infrastructure/observability"

	"github.com/jackc/pgx/v5"
)

const wagerColumns = `
	id, user_id, round_id, amount, auto_cashout, cashout_multiplier,
	payout, status, placed_at, cashed_out_at`

// WagerRepository implements wager data access
type WagerRepository struct {
	q Queryable
}

// NewWagerRepository creates a new wager repository over the pool
func NewWagerRepository(db *database.DB) *WagerRepository {
	return &WagerRepository{q: db.Pool}
}

func newWagerRepository(tx Queryable) *WagerRepository {
	return &WagerRepository{q: tx}
}

func scanWager(row pgx.Row) (*entities.Wager, error) {
	var w entities.Wager
	err := row.Scan(
		&w.ID,
		&w.UserID,
		&w.RoundID,
		&w.Amount,
		&w.AutoCashout,
		&w.CashoutMultiplier,
		&w.Payout,
		&w.Status,
		&w.PlacedAt,
		&w.CashedOutAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// Create inserts a new active wager. The unique (user_id, round_id)
// constraint enforces at most one wager per user per round.
func (r *WagerRepository) Create(ctx context.Context, wager *entities.Wager) error {
	defer observability.GetMetrics().MeasureDatabaseQuery("wager", "Create")()
	query := `
		INSERT INTO wagers (user_id, round_id, amount, auto_cashout, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, placed_at
	`
	wager.Status = entities.WagerStatusActive
	err := r.q.QueryRow(ctx, query,
		wager.UserID,
		wager.RoundID,
		wager.Amount,
		wager.AutoCashout,
		wager.Status,
	).Scan(&wager.ID, &wager.PlacedAt)
	if err != nil {
		return fmt.Errorf("failed to create wager for user %d round %d: %w", wager.UserID, wager.RoundID, err)
	}
	return nil
}

// GetByID retrieves a wager by id
func (r *WagerRepository) GetByID(ctx context.Context, id int64) (*entities.Wager, error) {
	query := `SELECT` + wagerColumns + ` FROM wagers WHERE id = $1`
	wager, err := scanWager(r.q.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get wager %d: %w", id, err)
	}
	return wager, nil
}

// GetByIDForUpdate retrieves a wager by id with a row lock
func (r *WagerRepository) GetByIDForUpdate(ctx context.Context, id int64) (*entities.Wager, error) {
	query := `SELECT` + wagerColumns + ` FROM wagers WHERE id = $1 FOR UPDATE`
	wager, err := scanWager(r.q.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to lock wager %d: %w", id, err)
	}
	return wager, nil
}

// GetByUserAndRound retrieves the user's wager on a round, if any
func (r *WagerRepository) GetByUserAndRound(ctx context.Context, userID, roundID int64) (*entities.Wager, error) {
	query := `SELECT` + wagerColumns + ` FROM wagers WHERE user_id = $1 AND round_id = $2`
	wager, err := scanWager(r.q.QueryRow(ctx, query, userID, roundID))
	if err != nil {
		return nil, fmt.Errorf("failed to get wager for user %d round %d: %w", userID, roundID, err)
	}
	return wager, nil
}

// GetActiveByRound returns all still-active wagers of a round
func (r *WagerRepository) GetActiveByRound(ctx context.Context, roundID int64) ([]*entities.Wager, error) {
	query := `SELECT` + wagerColumns + ` FROM wagers WHERE round_id = $1 AND status = 'active' ORDER BY id`
	rows, err := r.q.Query(ctx, query, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to query active wagers for round %d: %w", roundID, err)
	}
	defer rows.Close()

	var wagers []*entities.Wager
	for rows.Next() {
		wager, err := scanWager(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wager row: %w", err)
		}
		wagers = append(wagers, wager)
	}
	return wagers, rows.Err()
}

// MarkCashedOut finalizes a wager as cashed out. Only an active wager may be
// finalized; the status guard makes the terminal transition happen at most once.
func (r *WagerRepository) MarkCashedOut(ctx context.Context, wagerID, multiplier, payout int64, at time.Time) error {
	query := `
		UPDATE wagers SET
			status = 'cashed_out',
			cashout_multiplier = $1,
			payout = $2,
			cashed_out_at = $3
		WHERE id = $4 AND status = 'active'
	`
	tag, err := r.q.Exec(ctx, query, multiplier, payout, at, wagerID)
	if err != nil {
		return fmt.Errorf("failed to mark wager %d cashed out: %w", wagerID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("wager %d is not active", wagerID)
	}
	return nil
}

// MarkLost finalizes a wager as lost
func (r *WagerRepository) MarkLost(ctx context.Context, wagerID int64) error {
	query := `UPDATE wagers SET status = 'lost' WHERE id = $1 AND status = 'active'`
	tag, err := r.q.Exec(ctx, query, wagerID)
	if err != nil {
		return fmt.Errorf("failed to mark wager %d lost: %w", wagerID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("wager %d is not active", wagerID)
	}
	return nil
}

// Aggregate returns the total wager count, staked sum, and payout sum
func (r *WagerRepository) Aggregate(ctx context.Context) (int64, int64, int64, error) {
	query := `SELECT COUNT(*), COALESCE(SUM(amount), 0), COALESCE(SUM(payout), 0) FROM wagers`
	var count, staked, payout int64
	if err := r.q.QueryRow(ctx, query).Scan(&count, &staked, &payout); err != nil {
		return 0, 0, 0, fmt.Errorf("failed to aggregate wagers: %w", err)
	}
	return count, staked, payout, nil
}
