package interfaces

import (
	"context"
	"time"

	"crashd/domain/entities"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	// GetByID retrieves a user by id
	GetByID(ctx context.Context, id int64) (*entities.User, error)

	// GetByIDForUpdate retrieves a user by id, locking the row for the
	// duration of the surrounding transaction
	GetByIDForUpdate(ctx context.Context, id int64) (*entities.User, error)

	// GetByTelegramID retrieves a user by their external messaging-platform id
	GetByTelegramID(ctx context.Context, telegramID int64) (*entities.User, error)

	// GetByUsername retrieves a user by display handle
	GetByUsername(ctx context.Context, username string) (*entities.User, error)

	// Create creates a new user together with their default settings row
	Create(ctx context.Context, user *entities.User) (*entities.User, error)

	// UpdateBalance sets a user's balance
	UpdateBalance(ctx context.Context, userID int64, newBalance int64) error

	// ApplyWagerOutcome bumps aggregate counters after a wager settles.
	// netWin is payout-stake for a win, stakeLost is the stake for a loss.
	ApplyWagerOutcome(ctx context.Context, userID int64, wagered, netWin, stakeLost int64, won bool) error

	// UpdateFields applies an admin partial update (role, active flag, username)
	UpdateFields(ctx context.Context, userID int64, fields map[string]any) error

	// UpdatePassword sets a new password hash
	UpdatePassword(ctx context.Context, userID int64, passwordHash string) error

	// TouchLogin records a successful authentication
	TouchLogin(ctx context.Context, userID int64, at time.Time) error

	// SetLastFarmingAt records a farming claim timestamp
	SetLastFarmingAt(ctx context.Context, userID int64, at time.Time) error

	// AddXP adds experience points and recomputes the level
	AddXP(ctx context.Context, userID int64, xp int64) error

	// List returns users ordered by creation, newest first
	List(ctx context.Context, limit, offset int) ([]*entities.User, error)

	// Count returns the total and active user counts
	Count(ctx context.Context) (total, active int64, err error)

	// Leaderboard returns the top users under the given ordering; users with
	// fewer than minGames games are excluded from the winRate ordering
	Leaderboard(ctx context.Context, by entities.LeaderboardSort, limit, minGames int) ([]*entities.LeaderboardEntry, error)
}

// RoundRepository defines the interface for round data access
type RoundRepository interface {
	// Create inserts a round in betting status and returns it with its
	// monotonic round number assigned
	Create(ctx context.Context, round *entities.Round) (*entities.Round, error)

	// GetByID retrieves a round by id
	GetByID(ctx context.Context, id int64) (*entities.Round, error)

	// UpdateStatus advances a round's status; endedAt is set for crashed
	UpdateStatus(ctx context.Context, roundID int64, status entities.RoundStatus, startedAt, endedAt *time.Time) error

	// GetRecentCrashed returns the most recent crashed rounds, newest first
	GetRecentCrashed(ctx context.Context, limit int) ([]*entities.Round, error)

	// List returns rounds ordered by number, newest first
	List(ctx context.Context, limit, offset int) ([]*entities.Round, error)

	// Count returns the total round count
	Count(ctx context.Context) (int64, error)
}

// WagerRepository defines the interface for wager data access
type WagerRepository interface {
	// Create inserts a new active wager
	Create(ctx context.Context, wager *entities.Wager) error

	// GetByID retrieves a wager by id
	GetByID(ctx context.Context, id int64) (*entities.Wager, error)

	// GetByIDForUpdate retrieves a wager by id with a row lock
	GetByIDForUpdate(ctx context.Context, id int64) (*entities.Wager, error)

	// GetByUserAndRound retrieves the user's wager on a round, if any
	GetByUserAndRound(ctx context.Context, userID, roundID int64) (*entities.Wager, error)

	// GetActiveByRound returns all still-active wagers of a round
	GetActiveByRound(ctx context.Context, roundID int64) ([]*entities.Wager, error)

	// MarkCashedOut finalizes a wager as cashed out
	MarkCashedOut(ctx context.Context, wagerID, multiplier, payout int64, at time.Time) error

	// MarkLost finalizes a wager as lost
	MarkLost(ctx context.Context, wagerID int64) error

	// Aggregate returns the total wager count, staked sum, and payout sum
	Aggregate(ctx context.Context) (count, staked, payout int64, err error)
}

// LedgerRepository defines the interface for the append-only ledger
type LedgerRepository interface {
	// Record appends a ledger entry
	Record(ctx context.Context, entry *entities.LedgerEntry) error

	// GetByUser returns a user's most recent entries
	GetByUser(ctx context.Context, userID int64, limit int) ([]*entities.LedgerEntry, error)

	// SumDeltas returns the sum of signed deltas for a user
	SumDeltas(ctx context.Context, userID int64) (int64, error)
}

// SettingsRepository defines the interface for player settings
type SettingsRepository interface {
	// Get returns the user's settings, or nil if none exist
	Get(ctx context.Context, userID int64) (*entities.PlayerSettings, error)

	// Upsert inserts or replaces the user's settings
	Upsert(ctx context.Context, settings *entities.PlayerSettings) error
}

// DailyLimitRepository defines the interface for daily limit counters
type DailyLimitRepository interface {
	// Get returns the user's counter for a day, or nil if none exists
	Get(ctx context.Context, userID int64, day time.Time) (*entities.DailyLimit, error)

	// AddWager upserts the day's counter with a placed stake
	AddWager(ctx context.Context, userID int64, day time.Time, stake int64) error

	// AddLoss upserts the day's counter with a settled loss
	AddLoss(ctx context.Context, userID int64, day time.Time, loss int64) error
}
