package interfaces

import (
	"context"
	"time"

	"crashd/domain/entities"
	"crashd/domain/events"
)

// EventPublisher publishes domain events to interested consumers
type EventPublisher interface {
	Publish(event events.Event) error
}

// TransactionalEventPublisher buffers events until the surrounding unit of
// work commits; rollback discards them.
type TransactionalEventPublisher interface {
	EventPublisher
	Flush(ctx context.Context)
	Discard()
}

// UnitOfWork provides transactional access to all repositories. Begin must
// be called before any repository accessor; Commit flushes buffered events.
type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	UserRepository() UserRepository
	RoundRepository() RoundRepository
	WagerRepository() WagerRepository
	LedgerRepository() LedgerRepository
	SettingsRepository() SettingsRepository
	DailyLimitRepository() DailyLimitRepository
	EventPublisher() EventPublisher
}

// UnitOfWorkFactory creates units of work
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}

// PlaceWagerResult is returned by a successful wager placement
type PlaceWagerResult struct {
	Wager      *entities.Wager
	NewBalance int64
}

// CashoutResult is returned by a successful cashout
type CashoutResult struct {
	Wager      *entities.Wager
	Payout     int64
	NewBalance int64
}

// WageringService owns the atomic wager lifecycle operations. Every method
// must be invoked inside a unit of work owned by the caller.
type WageringService interface {
	// PlaceWager debits the stake, inserts the wager, writes the ledger row
	// and bumps the daily counter in one transaction
	PlaceWager(ctx context.Context, userID, roundID, stake, autoCashout int64) (*PlaceWagerResult, error)

	// CashoutWager credits the payout at the given multiplier and finalizes
	// the wager as cashed out
	CashoutWager(ctx context.Context, wagerID, multiplier int64) (*CashoutResult, error)

	// SettleCrashedRound marks every still-active wager of the round lost,
	// writes their ledger rows and updates aggregate stats. Wagers listed in
	// excludeWagerIDs have a cashout transaction in flight and are skipped.
	SettleCrashedRound(ctx context.Context, roundID, crashPoint int64, excludeWagerIDs []int64) (int, error)
}

// FarmingStatus describes the user's claim cooldown state
type FarmingStatus struct {
	CanClaim    bool          `json:"canClaim"`
	Reward      int64         `json:"reward"`
	NextClaimIn time.Duration `json:"-"`
	LastClaimAt *time.Time    `json:"lastClaimAt"`
}

// WalletService owns balance mutations outside the wager path
type WalletService interface {
	// AdjustBalance applies a signed delta with a ledger entry; fails with
	// InsufficientFunds if the result would be negative
	AdjustBalance(ctx context.Context, userID, signedAmount int64, entryType entities.TransactionType, description string) (int64, error)

	// ClaimFarming credits the farming reward, enforcing the cooldown
	ClaimFarming(ctx context.Context, userID int64) (int64, error)

	// FarmingStatus reports whether a claim is currently available
	FarmingStatus(ctx context.Context, userID int64) (*FarmingStatus, error)
}

// SettingsService owns player settings reads and allowlisted partial updates
type SettingsService interface {
	Get(ctx context.Context, userID int64) (*entities.PlayerSettings, error)
	Update(ctx context.Context, userID int64, patch SettingsPatch) (*entities.PlayerSettings, error)
}

// SettingsPatch is the allowlist of updatable settings fields; nil fields
// are left unchanged.
type SettingsPatch struct {
	AutoCashoutEnabled    *bool  `json:"autoCashoutEnabled"`
	AutoCashoutMultiplier *int64 `json:"autoCashoutMultiplier"`
	SoundEnabled          *bool  `json:"soundEnabled"`
	DailyLimitsEnabled    *bool  `json:"dailyLimitsEnabled"`
	MaxDailyWager         *int64 `json:"maxDailyWager"`
	MaxDailyLoss          *int64 `json:"maxDailyLoss"`
	MaxGamesPerDay        *int64 `json:"maxGamesPerDay"`
}
