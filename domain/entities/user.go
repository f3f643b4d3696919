package entities

import (
	"errors"
	"time"
)

// Role represents a user's authorization role
type Role string

const (
	RolePlayer Role = "player"
	RoleAdmin  Role = "admin"
)

// User represents a registered player or administrator. All monetary fields
// are fixed-point in hundredths.
type User struct {
	ID            int64      `db:"id"`
	TelegramID    *int64     `db:"telegram_id"`
	Username      string     `db:"username"`
	Role          Role       `db:"role"`
	Balance       int64      `db:"balance"`
	TotalWagered  int64      `db:"total_wagered"`
	TotalWon      int64      `db:"total_won"`
	TotalLost     int64      `db:"total_lost"`
	GamesPlayed   int64      `db:"games_played"`
	GamesWon      int64      `db:"games_won"`
	BiggestWin    int64      `db:"biggest_win"`
	BiggestLoss   int64      `db:"biggest_loss"`
	XP            int64      `db:"xp"`
	Level         int        `db:"level"`
	IsActive      bool       `db:"is_active"`
	PasswordHash  *string    `db:"password_hash"`
	LastFarmingAt *time.Time `db:"last_farming_at"`
	CreatedAt     time.Time  `db:"created_at"`
	LastLoginAt   *time.Time `db:"last_login_at"`
}

// IsAdmin checks if the user holds the admin role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// CanAfford checks if the user has sufficient balance for an amount
func (u *User) CanAfford(amount int64) bool {
	return u.Balance >= amount
}

// ValidateStake checks if a stake is valid (positive and affordable)
func (u *User) ValidateStake(amount int64) error {
	if amount <= 0 {
		return errors.New("stake must be positive")
	}
	if !u.CanAfford(amount) {
		return errors.New("insufficient balance")
	}
	return nil
}

// NetProfit returns the user's lifetime net profit. Defined as
// totalWon - totalLost, where totalWon accumulates net wins
// (payout minus stake) and totalLost accumulates lost stakes.
func (u *User) NetProfit() int64 {
	return u.TotalWon - u.TotalLost
}

// WinRate returns the fraction of games the user cashed out, in [0, 1].
func (u *User) WinRate() float64 {
	if u.GamesPlayed == 0 {
		return 0
	}
	return float64(u.GamesWon) / float64(u.GamesPlayed)
}

// LevelForXP returns the level a given XP amount corresponds to.
// Levels advance every 1000 XP.
func LevelForXP(xp int64) int {
	return int(xp/1000) + 1
}
