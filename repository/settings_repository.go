package repository

import (
	"context"
	"errors"
	"fmt"

	"crashd/database"
	"crashd/domain/entities"

	"github.com/jackc/pgx/v5"
)

// SettingsRepository implements player settings persistence
type SettingsRepository struct {
	q Queryable
}

// NewSettingsRepository creates a new settings repository over the pool
func NewSettingsRepository(db *database.DB) *SettingsRepository {
	return &SettingsRepository{q: db.Pool}
}

func newSettingsRepository(tx Queryable) *SettingsRepository {
	return &SettingsRepository{q: tx}
}

// Get returns the user's settings, or nil if none exist
func (r *SettingsRepository) Get(ctx context.Context, userID int64) (*entities.PlayerSettings, error) {
	query := `
		SELECT user_id, auto_cashout_enabled, auto_cashout_multiplier, sound_enabled,
			daily_limits_enabled, max_daily_wager, max_daily_loss, max_games_per_day, updated_at
		FROM player_settings
		WHERE user_id = $1
	`
	var s entities.PlayerSettings
	err := r.q.QueryRow(ctx, query, userID).Scan(
		&s.UserID,
		&s.AutoCashoutEnabled,
		&s.AutoCashoutMultiplier,
		&s.SoundEnabled,
		&s.DailyLimitsEnabled,
		&s.MaxDailyWager,
		&s.MaxDailyLoss,
		&s.MaxGamesPerDay,
		&s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settings for user %d: %w", userID, err)
	}
	return &s, nil
}

// Upsert inserts or replaces the user's settings
func (r *SettingsRepository) Upsert(ctx context.Context, settings *entities.PlayerSettings) error {
	query := `
		INSERT INTO player_settings (
			user_id, auto_cashout_enabled, auto_cashout_multiplier, sound_enabled,
			daily_limits_enabled, max_daily_wager, max_daily_loss, max_games_per_day, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			auto_cashout_enabled = EXCLUDED.auto_cashout_enabled,
			auto_cashout_multiplier = EXCLUDED.auto_cashout_multiplier,
			sound_enabled = EXCLUDED.sound_enabled,
			daily_limits_enabled = EXCLUDED.daily_limits_enabled,
			max_daily_wager = EXCLUDED.max_daily_wager,
			max_daily_loss = EXCLUDED.max_daily_loss,
			max_games_per_day = EXCLUDED.max_games_per_day,
			updated_at = NOW()
		RETURNING updated_at
	`
	err := r.q.QueryRow(ctx, query,
		settings.UserID,
		settings.AutoCashoutEnabled,
		settings.AutoCashoutMultiplier,
		settings.SoundEnabled,
		settings.DailyLimitsEnabled,
		settings.MaxDailyWager,
		settings.MaxDailyLoss,
		settings.MaxGamesPerDay,
	).Scan(&settings.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert settings for user %d: %w", settings.UserID, err)
	}
	return nil
}
