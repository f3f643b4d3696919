package entities

import "time"

// DailyLimit tracks a user's wagering activity for one calendar day (UTC).
// Rows are upserted during wager placement and settlement.
type DailyLimit struct {
	UserID       int64     `db:"user_id"`
	Date         time.Time `db:"limit_date"`
	TotalWagered int64     `db:"total_wagered"`
	TotalLost    int64     `db:"total_lost"`
	GamesPlayed  int64     `db:"games_played"`
}

// LimitDay truncates a timestamp to the UTC calendar day used as the
// daily-limit key.
func LimitDay(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}

// CheckWager reports whether placing a stake would cross the user's
// configured limits. A nil receiver means no activity today.
func (d *DailyLimit) CheckWager(settings *PlayerSettings, stake int64) error {
	if settings == nil || !settings.DailyLimitsEnabled {
		return nil
	}
	wagered, games := int64(0), int64(0)
	if d != nil {
		wagered, games = d.TotalWagered, d.GamesPlayed
	}
	if settings.MaxDailyWager > 0 && wagered+stake > settings.MaxDailyWager {
		return ErrDailyWagerLimit
	}
	if settings.MaxGamesPerDay > 0 && games+1 > settings.MaxGamesPerDay {
		return ErrDailyGamesLimit
	}
	return nil
}

// CheckLoss reports whether the user's configured daily loss cap is already
// exhausted before a new stake is accepted.
func (d *DailyLimit) CheckLoss(settings *PlayerSettings) error {
	if settings == nil || !settings.DailyLimitsEnabled || d == nil {
		return nil
	}
	if settings.MaxDailyLoss > 0 && d.TotalLost >= settings.MaxDailyLoss {
		return ErrDailyLossLimit
	}
	return nil
}
