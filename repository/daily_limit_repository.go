package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crashd/database"
	"crashd/domain/entities"

	"github.com/jackc/pgx/v5"
)

// DailyLimitRepository implements daily limit counter persistence
type DailyLimitRepository struct {
	q Queryable
}

// NewDailyLimitRepository creates a new daily limit repository over the pool
func NewDailyLimitRepository(db *database.DB) *DailyLimitRepository {
	return &DailyLimitRepository{q: db.Pool}
}

func newDailyLimitRepository(tx Queryable) *DailyLimitRepository {
	return &DailyLimitRepository{q: tx}
}

// Get returns the user's counter for a day, or nil if none exists
func (r *DailyLimitRepository) Get(ctx context.Context, userID int64, day time.Time) (*entities.DailyLimit, error) {
	query := `
		SELECT user_id, limit_date, total_wagered, total_lost, games_played
		FROM daily_limits
		WHERE user_id = $1 AND limit_date = $2
	`
	var d entities.DailyLimit
	err := r.q.QueryRow(ctx, query, userID, entities.LimitDay(day)).Scan(
		&d.UserID,
		&d.Date,
		&d.TotalWagered,
		&d.TotalLost,
		&d.GamesPlayed,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get daily limit for user %d: %w", userID, err)
	}
	return &d, nil
}

// AddWager upserts the day's counter with a placed stake
func (r *DailyLimitRepository) AddWager(ctx context.Context, userID int64, day time.Time, stake int64) error {
	query := `
		INSERT INTO daily_limits (user_id, limit_date, total_wagered, games_played)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (user_id, limit_date) DO UPDATE SET
			total_wagered = daily_limits.total_wagered + EXCLUDED.total_wagered,
			games_played = daily_limits.games_played + 1
	`
	if _, err := r.q.Exec(ctx, query, userID, entities.LimitDay(day), stake); err != nil {
		return fmt.Errorf("failed to add daily wager for user %d: %w", userID, err)
	}
	return nil
}

// AddLoss upserts the day's counter with a settled loss
func (r *DailyLimitRepository) AddLoss(ctx context.Context, userID int64, day time.Time, loss int64) error {
	query := `
		INSERT INTO daily_limits (user_id, limit_date, total_lost)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, limit_date) DO UPDATE SET
			total_lost = daily_limits.total_lost + EXCLUDED.total_lost
	`
	if _, err := r.q.Exec(ctx, query, userID, entities.LimitDay(day), loss); err != nil {
		return fmt.Errorf("failed to add daily loss for user %d: %w", userID, err)
	}
	return nil
}
