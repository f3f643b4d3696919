package testhelpers

import (
	"context"
	"time"

	"crashd/domain/entities"
	"crashd/domain/events"
	"crashd/domain/interfaces"

	"github.com/stretchr/testify/mock"
)

// MockUserRepository is a mock implementation of UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByID(ctx context.Context, id int64) (*entities.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.User), args.Error(1)
}

func (m *MockUserRepository) GetByIDForUpdate(ctx context.Context, id int64) (*entities.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.User), args.Error(1)
}

func (m *MockUserRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*entities.User, error) {
	args := m.Called(ctx, telegramID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.User), args.Error(1)
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*entities.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.User), args.Error(1)
}

func (m *MockUserRepository) Create(ctx context.Context, user *entities.User) (*entities.User, error) {
	args := m.Called(ctx, user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.User), args.Error(1)
}

func (m *MockUserRepository) UpdateBalance(ctx context.Context, userID int64, newBalance int64) error {
	args := m.Called(ctx, userID, newBalance)
	return args.Error(0)
}

func (m *MockUserRepository) ApplyWagerOutcome(ctx context.Context, userID int64, wagered, netWin, stakeLost int64, won bool) error {
	args := m.Called(ctx, userID, wagered, netWin, stakeLost, won)
	return args.Error(0)
}

func (m *MockUserRepository) UpdateFields(ctx context.Context, userID int64, fields map[string]any) error {
	args := m.Called(ctx, userID, fields)
	return args.Error(0)
}

func (m *MockUserRepository) UpdatePassword(ctx context.Context, userID int64, passwordHash string) error {
	args := m.Called(ctx, userID, passwordHash)
	return args.Error(0)
}

func (m *MockUserRepository) TouchLogin(ctx context.Context, userID int64, at time.Time) error {
	args := m.Called(ctx, userID, at)
	return args.Error(0)
}

func (m *MockUserRepository) SetLastFarmingAt(ctx context.Context, userID int64, at time.Time) error {
	args := m.Called(ctx, userID, at)
	return args.Error(0)
}

func (m *MockUserRepository) AddXP(ctx context.Context, userID int64, xp int64) error {
	args := m.Called(ctx, userID, xp)
	return args.Error(0)
}

func (m *MockUserRepository) List(ctx context.Context, limit, offset int) ([]*entities.User, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.User), args.Error(1)
}

func (m *MockUserRepository) Count(ctx context.Context) (int64, int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Get(1).(int64), args.Error(2)
}

func (m *MockUserRepository) Leaderboard(ctx context.Context, by entities.LeaderboardSort, limit, minGames int) ([]*entities.LeaderboardEntry, error) {
	args := m.Called(ctx, by, limit, minGames)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.LeaderboardEntry), args.Error(1)
}

// MockRoundRepository is a mock implementation of RoundRepository
type MockRoundRepository struct {
	mock.Mock
}

func (m *MockRoundRepository) Create(ctx context.Context, round *entities.Round) (*entities.Round, error) {
	args := m.Called(ctx, round)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Round), args.Error(1)
}

func (m *MockRoundRepository) GetByID(ctx context.Context, id int64) (*entities.Round, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Round), args.Error(1)
}

func (m *MockRoundRepository) UpdateStatus(ctx context.Context, roundID int64, status entities.RoundStatus, startedAt, endedAt *time.Time) error {
	args := m.Called(ctx, roundID, status, startedAt, endedAt)
	return args.Error(0)
}

func (m *MockRoundRepository) GetRecentCrashed(ctx context.Context, limit int) ([]*entities.Round, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Round), args.Error(1)
}

func (m *MockRoundRepository) List(ctx context.Context, limit, offset int) ([]*entities.Round, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Round), args.Error(1)
}

func (m *MockRoundRepository) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// MockWagerRepository is a mock implementation of WagerRepository
type MockWagerRepository struct {
	mock.Mock
}

func (m *MockWagerRepository) Create(ctx context.Context, wager *entities.Wager) error {
	args := m.Called(ctx, wager)
	return args.Error(0)
}

func (m *MockWagerRepository) GetByID(ctx context.Context, id int64) (*entities.Wager, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Wager), args.Error(1)
}

func (m *MockWagerRepository) GetByIDForUpdate(ctx context.Context, id int64) (*entities.Wager, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Wager), args.Error(1)
}

func (m *MockWagerRepository) GetByUserAndRound(ctx context.Context, userID, roundID int64) (*entities.Wager, error) {
	args := m.Called(ctx, userID, roundID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Wager), args.Error(1)
}

func (m *MockWagerRepository) GetActiveByRound(ctx context.Context, roundID int64) ([]*entities.Wager, error) {
	args := m.Called(ctx, roundID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Wager), args.Error(1)
}

func (m *MockWagerRepository) MarkCashedOut(ctx context.Context, wagerID, multiplier, payout int64, at time.Time) error {
	args := m.Called(ctx, wagerID, multiplier, payout, at)
	return args.Error(0)
}

func (m *MockWagerRepository) MarkLost(ctx context.Context, wagerID int64) error {
	args := m.Called(ctx, wagerID)
	return args.Error(0)
}

func (m *MockWagerRepository) Aggregate(ctx context.Context) (int64, int64, int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Get(1).(int64), args.Get(2).(int64), args.Error(3)
}

// MockLedgerRepository is a mock implementation of LedgerRepository
type MockLedgerRepository struct {
	mock.Mock
}

func (m *MockLedgerRepository) Record(ctx context.Context, entry *entities.LedgerEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockLedgerRepository) GetByUser(ctx context.Context, userID int64, limit int) ([]*entities.LedgerEntry, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.LedgerEntry), args.Error(1)
}

func (m *MockLedgerRepository) SumDeltas(ctx context.Context, userID int64) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

// MockSettingsRepository is a mock implementation of SettingsRepository
type MockSettingsRepository struct {
	mock.Mock
}

func (m *MockSettingsRepository) Get(ctx context.Context, userID int64) (*entities.PlayerSettings, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.PlayerSettings), args.Error(1)
}

func (m *MockSettingsRepository) Upsert(ctx context.Context, settings *entities.PlayerSettings) error {
	args := m.Called(ctx, settings)
	return args.Error(0)
}

// MockDailyLimitRepository is a mock implementation of DailyLimitRepository
type MockDailyLimitRepository struct {
	mock.Mock
}

func (m *MockDailyLimitRepository) Get(ctx context.Context, userID int64, day time.Time) (*entities.DailyLimit, error) {
	args := m.Called(ctx, userID, day)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.DailyLimit), args.Error(1)
}

func (m *MockDailyLimitRepository) AddWager(ctx context.Context, userID int64, day time.Time, stake int64) error {
	args := m.Called(ctx, userID, day, stake)
	return args.Error(0)
}

func (m *MockDailyLimitRepository) AddLoss(ctx context.Context, userID int64, day time.Time, loss int64) error {
	args := m.Called(ctx, userID, day, loss)
	return args.Error(0)
}

// MockEventPublisher is a mock implementation of EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(event events.Event) error {
	args := m.Called(event)
	return args.Error(0)
}

// StubUnitOfWork bundles mock repositories behind the UnitOfWork interface
// so services can be constructed without a database. Begin, Commit and
// Rollback are no-ops.
type StubUnitOfWork struct {
	Users      *MockUserRepository
	Rounds     *MockRoundRepository
	Wagers     *MockWagerRepository
	Ledger     *MockLedgerRepository
	Settings   *MockSettingsRepository
	Daily      *MockDailyLimitRepository
	Publisher  *MockEventPublisher
	Committed  bool
	RolledBack bool
}

// NewStubUnitOfWork creates a stub unit of work with fresh mocks
func NewStubUnitOfWork() *StubUnitOfWork {
	return &StubUnitOfWork{
		Users:     new(MockUserRepository),
		Rounds:    new(MockRoundRepository),
		Wagers:    new(MockWagerRepository),
		Ledger:    new(MockLedgerRepository),
		Settings:  new(MockSettingsRepository),
		Daily:     new(MockDailyLimitRepository),
		Publisher: new(MockEventPublisher),
	}
}

func (u *StubUnitOfWork) Begin(ctx context.Context) error { return nil }
func (u *StubUnitOfWork) Commit() error                   { u.Committed = true; return nil }
func (u *StubUnitOfWork) Rollback() error                 { u.RolledBack = true; return nil }

func (u *StubUnitOfWork) UserRepository() interfaces.UserRepository             { return u.Users }
func (u *StubUnitOfWork) RoundRepository() interfaces.RoundRepository           { return u.Rounds }
func (u *StubUnitOfWork) WagerRepository() interfaces.WagerRepository           { return u.Wagers }
func (u *StubUnitOfWork) LedgerRepository() interfaces.LedgerRepository         { return u.Ledger }
func (u *StubUnitOfWork) SettingsRepository() interfaces.SettingsRepository     { return u.Settings }
func (u *StubUnitOfWork) DailyLimitRepository() interfaces.DailyLimitRepository { return u.Daily }
func (u *StubUnitOfWork) EventPublisher() interfaces.EventPublisher             { return u.Publisher }

// StubUnitOfWorkFactory hands out a fixed stub unit of work
type StubUnitOfWorkFactory struct {
	UoW *StubUnitOfWork
}

func (f *StubUnitOfWorkFactory) Create() interfaces.UnitOfWork { return f.UoW }
