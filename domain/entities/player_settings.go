package entities

import (
	"errors"
	"time"
)

// Default daily limits applied when a user enables limits without
// configuring their own values.
const (
	DefaultMaxDailyWager  int64 = 1000000 // 10,000.00
	DefaultMaxDailyLoss   int64 = 500000  // 5,000.00
	DefaultMaxGamesPerDay int64 = 500
)

// PlayerSettings holds per-user preferences and responsible-gaming limits.
type PlayerSettings struct {
	UserID                int64     `db:"user_id" json:"userId"`
	AutoCashoutEnabled    bool      `db:"auto_cashout_enabled" json:"autoCashoutEnabled"`
	AutoCashoutMultiplier int64     `db:"auto_cashout_multiplier" json:"autoCashoutMultiplier"`
	SoundEnabled          bool      `db:"sound_enabled" json:"soundEnabled"`
	DailyLimitsEnabled    bool      `db:"daily_limits_enabled" json:"dailyLimitsEnabled"`
	MaxDailyWager         int64     `db:"max_daily_wager" json:"maxDailyWager"`
	MaxDailyLoss          int64     `db:"max_daily_loss" json:"maxDailyLoss"`
	MaxGamesPerDay        int64     `db:"max_games_per_day" json:"maxGamesPerDay"`
	UpdatedAt             time.Time `db:"updated_at" json:"updatedAt"`
}

// DefaultPlayerSettings returns the settings row created for a new user.
func DefaultPlayerSettings(userID int64) *PlayerSettings {
	return &PlayerSettings{
		UserID:                userID,
		AutoCashoutEnabled:    false,
		AutoCashoutMultiplier: 200,
		SoundEnabled:          true,
		DailyLimitsEnabled:    false,
		MaxDailyWager:         DefaultMaxDailyWager,
		MaxDailyLoss:          DefaultMaxDailyLoss,
		MaxGamesPerDay:        DefaultMaxGamesPerDay,
	}
}

// Validate checks settings values for internal consistency
func (s *PlayerSettings) Validate() error {
	if s.AutoCashoutEnabled && s.AutoCashoutMultiplier < 101 {
		return errors.New("auto-cashout multiplier must exceed 1.00x")
	}
	if s.MaxDailyWager < 0 || s.MaxDailyLoss < 0 || s.MaxGamesPerDay < 0 {
		return errors.New("daily limits must be non-negative")
	}
	return nil
}
