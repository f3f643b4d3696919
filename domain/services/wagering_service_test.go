package services

import (
	"context"
	"testing"

	"crashd/domain/apperr"
	"crashd/domain/entities"
	"crashd/domain/testhelpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestWageringService_PlaceWager(t *testing.T) {
	ctx := context.Background()

	user := func() *entities.User {
		return &entities.User{ID: 7, Username: "alice", Balance: 10000, IsActive: true}
	}
	bettingRound := func() *entities.Round {
		return &entities.Round{ID: 42, Number: 1001, Status: entities.RoundStatusBetting, CrashPoint: 250}
	}

	t.Run("debits stake and records the wager atomically", func(t *testing.T) {
		uow := testhelpers.NewStubUnitOfWork()
		service := NewWageringService(uow)

		uow.Users.On("GetByIDForUpdate", ctx, int64(7)).Return(user(), nil)
		uow.Rounds.On("GetByID", ctx, int64(42)).Return(bettingRound(), nil)
		uow.Wagers.On("GetByUserAndRound", ctx, int64(7), int64(42)).Return(nil, nil)
		uow.Settings.On("Get", ctx, int64(7)).Return(nil, nil)
		uow.Daily.On("Get", ctx, int64(7), mock.AnythingOfType("time.Time")).Return(nil, nil)
		uow.Users.On("UpdateBalance", ctx, int64(7), int64(9000)).Return(nil)
		uow.Wagers.On("Create", ctx, mock.MatchedBy(func(w *entities.Wager) bool {
			return w.UserID == 7 && w.RoundID == 42 && w.Amount == 1000 && w.AutoCashout == 0
		})).Return(nil).Run(func(args mock.Arguments) {
			args.Get(1).(*entities.Wager).ID = 99
		})
		uow.Ledger.On("Record", ctx, mock.MatchedBy(func(e *entities.LedgerEntry) bool {
			return e.Type == entities.TransactionTypeBetPlaced &&
				e.Amount == 1000 &&
				e.BalanceBefore == 10000 &&
				e.BalanceAfter == 9000 &&
				e.WagerID != nil && *e.WagerID == 99
		})).Return(nil)
		uow.Daily.On("AddWager", ctx, int64(7), mock.AnythingOfType("time.Time"), int64(1000)).Return(nil)
		uow.Publisher.On("Publish", mock.Anything).Return(nil)

		result, err := service.PlaceWager(ctx, 7, 42, 1000, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(9000), result.NewBalance)
		assert.Equal(t, int64(99), result.Wager.ID)

		uow.Users.AssertExpectations(t)
		uow.Wagers.AssertExpectations(t)
		uow.Ledger.AssertExpectations(t)
		uow.Daily.AssertExpectations(t)
	})

	t.Run("rejects a second wager on the same round", func(t *testing.T) {
		uow := testhelpers.NewStubUnitOfWork()
		service := NewWageringService(uow)

		uow.Users.On("GetByIDForUpdate", ctx, int64(7)).Return(user(), nil)
		uow.Rounds.On("GetByID", ctx, int64(42)).Return(bettingRound(), nil)
		uow.Wagers.On("GetByUserAndRound", ctx, int64(7), int64(42)).
			Return(&entities.Wager{ID: 1, UserID: 7, RoundID: 42}, nil)

		_, err := service.PlaceWager(ctx, 7, 42, 1000, 0)
		assert.Equal(t, apperr.AlreadyExists, apperr.KindOf(err))
		uow.Users.AssertNotCalled(t, "UpdateBalance", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("rejects a stake above the balance", func(t *testing.T) {
		uow := testhelpers.NewStubUnitOfWork()
		service := NewWageringService(uow)

		uow.Users.On("GetByIDForUpdate", ctx, int64(7)).Return(user(), nil)
		uow.Rounds.On("GetByID", ctx, int64(42)).Return(bettingRound(), nil)
		uow.Wagers.On("GetByUserAndRound", ctx, int64(7), int64(42)).Return(nil, nil)
		uow.Settings.On("Get", ctx, int64(7)).Return(nil, nil)
		uow.Daily.On("Get", ctx, int64(7), mock.AnythingOfType("time.Time")).Return(nil, nil)

		_, err := service.PlaceWager(ctx, 7, 42, 10001, 0)
		assert.Equal(t, apperr.InsufficientFunds, apperr.KindOf(err))
	})

	t.Run("rejects betting on a running round", func(t *testing.T) {
		uow := testhelpers.NewStubUnitOfWork()
		service := NewWageringService(uow)

		running := bettingRound()
		running.Status = entities.RoundStatusRunning
		uow.Users.On("GetByIDForUpdate", ctx, int64(7)).Return(user(), nil)
		uow.Rounds.On("GetByID", ctx, int64(42)).Return(running, nil)

		_, err := service.PlaceWager(ctx, 7, 42, 1000, 0)
		assert.Equal(t, apperr.FailedPrecondition, apperr.KindOf(err))
	})

	t.Run("enforces the daily wager limit", func(t *testing.T) {
		uow := testhelpers.NewStubUnitOfWork()
		service := NewWageringService(uow)

		settings := entities.DefaultPlayerSettings(7)
		settings.DailyLimitsEnabled = true
		settings.MaxDailyWager = 5000

		uow.Users.On("GetByIDForUpdate", ctx, int64(7)).Return(user(), nil)
		uow.Rounds.On("GetByID", ctx, int64(42)).Return(bettingRound(), nil)
		uow.Wagers.On("GetByUserAndRound", ctx, int64(7), int64(42)).Return(nil, nil)
		uow.Settings.On("Get", ctx, int64(7)).Return(settings, nil)
		uow.Daily.On("Get", ctx, int64(7), mock.AnythingOfType("time.Time")).
			Return(&entities.DailyLimit{UserID: 7, TotalWagered: 4500}, nil)

		_, err := service.PlaceWager(ctx, 7, 42, 1000, 0)
		assert.Equal(t, apperr.DailyLimitExceeded, apperr.KindOf(err))
		assert.ErrorIs(t, err, entities.ErrDailyWagerLimit)
	})

	t.Run("rejects a sub-1.01x auto-cashout", func(t *testing.T) {
		uow := testhelpers.NewStubUnitOfWork()
		service := NewWageringService(uow)

		_, err := service.PlaceWager(ctx, 7, 42, 1000, 100)
		assert.Equal(t, apperr.InvalidArgument, apperr.KindOf(err))
	})
}

func TestWageringService_CashoutWager(t *testing.T) {
	ctx := context.Background()

	activeWager := func() *entities.Wager {
		return &entities.Wager{ID: 99, UserID: 7, RoundID: 42, Amount: 1000, Status: entities.WagerStatusActive}
	}
	runningRound := func() *entities.Round {
		return &entities.Round{ID: 42, Number: 1001, Status: entities.RoundStatusRunning, CrashPoint: 250}
	}

	t.Run("credits payout at the cashout multiplier", func(t *testing.T) {
		uow := testhelpers.NewStubUnitOfWork()
		service := NewWageringService(uow)

		uow.Wagers.On("GetByIDForUpdate", ctx, int64(99)).Return(activeWager(), nil)
		uow.Rounds.On("GetByID", ctx, int64(42)).Return(runningRound(), nil)
		uow.Users.On("GetByIDForUpdate", ctx, int64(7)).
			Return(&entities.User{ID: 7, Balance: 9000, IsActive: true}, nil)
		// 1000 * 150 / 100 = 1500
		uow.Wagers.On("MarkCashedOut", ctx, int64(99), int64(150), int64(1500), mock.AnythingOfType("time.Time")).Return(nil)
		uow.Users.On("UpdateBalance", ctx, int64(7), int64(10500)).Return(nil)
		uow.Ledger.On("Record", ctx, mock.MatchedBy(func(e *entities.LedgerEntry) bool {
			return e.Type == entities.TransactionTypeBetWon &&
				e.Amount == 1500 &&
				e.BalanceBefore == 9000 &&
				e.BalanceAfter == 10500
		})).Return(nil)
		uow.Users.On("ApplyWagerOutcome", ctx, int64(7), int64(1000), int64(500), int64(0), true).Return(nil)
		uow.Users.On("AddXP", ctx, int64(7), int64(10)).Return(nil)
		uow.Publisher.On("Publish", mock.Anything).Return(nil)

		result, err := service.CashoutWager(ctx, 99, 150)
		require.NoError(t, err)
		assert.Equal(t, int64(1500), result.Payout)
		assert.Equal(t, int64(10500), result.NewBalance)
		assert.Equal(t, entities.WagerStatusCashedOut, result.Wager.Status)

		uow.Wagers.AssertExpectations(t)
		uow.Users.AssertExpectations(t)
	})

	t.Run("clamps the multiplier to the crash point", func(t *testing.T) {
		uow := testhelpers.NewStubUnitOfWork()
		service := NewWageringService(uow)

		uow.Wagers.On("GetByIDForUpdate", ctx, int64(99)).Return(activeWager(), nil)
		uow.Rounds.On("GetByID", ctx, int64(42)).Return(runningRound(), nil)
		uow.Users.On("GetByIDForUpdate", ctx, int64(7)).
			Return(&entities.User{ID: 7, Balance: 9000, IsActive: true}, nil)
		uow.Wagers.On("MarkCashedOut", ctx, int64(99), int64(250), int64(2500), mock.AnythingOfType("time.Time")).Return(nil)
		uow.Users.On("UpdateBalance", ctx, int64(7), int64(11500)).Return(nil)
		uow.Ledger.On("Record", ctx, mock.Anything).Return(nil)
		uow.Users.On("ApplyWagerOutcome", ctx, int64(7), int64(1000), int64(1500), int64(0), true).Return(nil)
		uow.Users.On("AddXP", ctx, int64(7), int64(10)).Return(nil)
		uow.Publisher.On("Publish", mock.Anything).Return(nil)

		result, err := service.CashoutWager(ctx, 99, 300)
		require.NoError(t, err)
		require.NotNil(t, result.Wager.CashoutMultiplier)
		assert.Equal(t, int64(250), *result.Wager.CashoutMultiplier)
	})

	t.Run("rejects a double cashout", func(t *testing.T) {
		uow := testhelpers.NewStubUnitOfWork()
		service := NewWageringService(uow)

		cashed := activeWager()
		cashed.Status = entities.WagerStatusCashedOut
		uow.Wagers.On("GetByIDForUpdate", ctx, int64(99)).Return(cashed, nil)

		_, err := service.CashoutWager(ctx, 99, 150)
		assert.Equal(t, apperr.AlreadyExists, apperr.KindOf(err))
	})

	t.Run("rejects cashout once the round crashed", func(t *testing.T) {
		uow := testhelpers.NewStubUnitOfWork()
		service := NewWageringService(uow)

		crashed := runningRound()
		crashed.Status = entities.RoundStatusCrashed
		uow.Wagers.On("GetByIDForUpdate", ctx, int64(99)).Return(activeWager(), nil)
		uow.Rounds.On("GetByID", ctx, int64(42)).Return(crashed, nil)

		_, err := service.CashoutWager(ctx, 99, 150)
		assert.Equal(t, apperr.FailedPrecondition, apperr.KindOf(err))
	})
}

func TestWageringService_SettleCrashedRound(t *testing.T) {
	ctx := context.Background()

	t.Run("marks every active wager lost with a zero-delta ledger row", func(t *testing.T) {
		uow := testhelpers.NewStubUnitOfWork()
		service := NewWageringService(uow)

		wagers := []*entities.Wager{
			{ID: 1, UserID: 7, RoundID: 42, Amount: 1000, Status: entities.WagerStatusActive},
			{ID: 2, UserID: 8, RoundID: 42, Amount: 500, Status: entities.WagerStatusActive},
		}
		uow.Wagers.On("GetActiveByRound", ctx, int64(42)).Return(wagers, nil)
		uow.Wagers.On("MarkLost", ctx, int64(1)).Return(nil)
		uow.Wagers.On("MarkLost", ctx, int64(2)).Return(nil)
		uow.Users.On("GetByID", ctx, int64(7)).Return(&entities.User{ID: 7, Balance: 9000}, nil)
		uow.Users.On("GetByID", ctx, int64(8)).Return(&entities.User{ID: 8, Balance: 200}, nil)
		uow.Ledger.On("Record", ctx, mock.MatchedBy(func(e *entities.LedgerEntry) bool {
			return e.Type == entities.TransactionTypeBetLost && e.BalanceBefore == e.BalanceAfter
		})).Return(nil).Twice()
		uow.Users.On("ApplyWagerOutcome", ctx, int64(7), int64(1000), int64(0), int64(1000), false).Return(nil)
		uow.Users.On("ApplyWagerOutcome", ctx, int64(8), int64(500), int64(0), int64(500), false).Return(nil)
		uow.Users.On("AddXP", ctx, int64(7), int64(10)).Return(nil)
		uow.Users.On("AddXP", ctx, int64(8), int64(5)).Return(nil)
		uow.Daily.On("AddLoss", ctx, int64(7), mock.AnythingOfType("time.Time"), int64(1000)).Return(nil)
		uow.Daily.On("AddLoss", ctx, int64(8), mock.AnythingOfType("time.Time"), int64(500)).Return(nil)

		settled, err := service.SettleCrashedRound(ctx, 42, 180, nil)
		require.NoError(t, err)
		assert.Equal(t, 2, settled)

		uow.Wagers.AssertExpectations(t)
		uow.Ledger.AssertExpectations(t)
		uow.Daily.AssertExpectations(t)
	})

	t.Run("settles nothing when no wagers remain active", func(t *testing.T) {
		uow := testhelpers.NewStubUnitOfWork()
		service := NewWageringService(uow)

		uow.Wagers.On("GetActiveByRound", ctx, int64(42)).Return([]*entities.Wager{}, nil)

		settled, err := service.SettleCrashedRound(ctx, 42, 180, nil)
		require.NoError(t, err)
		assert.Zero(t, settled)
	})

	t.Run("skips wagers whose cashout is still committing", func(t *testing.T) {
		uow := testhelpers.NewStubUnitOfWork()
		service := NewWageringService(uow)

		// Wager 1 hit its auto-cashout on the crash tick; its own transaction
		// finalizes it and settlement must leave it alone.
		wagers := []*entities.Wager{
			{ID: 1, UserID: 7, RoundID: 42, Amount: 1000, AutoCashout: 170, Status: entities.WagerStatusActive},
			{ID: 2, UserID: 8, RoundID: 42, Amount: 500, Status: entities.WagerStatusActive},
		}
		uow.Wagers.On("GetActiveByRound", ctx, int64(42)).Return(wagers, nil)
		uow.Wagers.On("MarkLost", ctx, int64(2)).Return(nil)
		uow.Users.On("GetByID", ctx, int64(8)).Return(&entities.User{ID: 8, Balance: 200}, nil)
		uow.Ledger.On("Record", ctx, mock.Anything).Return(nil)
		uow.Users.On("ApplyWagerOutcome", ctx, int64(8), int64(500), int64(0), int64(500), false).Return(nil)
		uow.Users.On("AddXP", ctx, int64(8), int64(5)).Return(nil)
		uow.Daily.On("AddLoss", ctx, int64(8), mock.AnythingOfType("time.Time"), int64(500)).Return(nil)

		settled, err := service.SettleCrashedRound(ctx, 42, 180, []int64{1})
		require.NoError(t, err)
		assert.Equal(t, 1, settled)

		uow.Wagers.AssertNotCalled(t, "MarkLost", ctx, int64(1))
	})
}

func TestPayoutFor(t *testing.T) {
	assert.Equal(t, int64(1500), entities.PayoutFor(1000, 150))
	assert.Equal(t, int64(1000), entities.PayoutFor(1000, 100))
	assert.Equal(t, int64(1), entities.PayoutFor(1, 150))

	// Rounding always truncates toward the house.
	assert.Equal(t, int64(14), entities.PayoutFor(10, 145))
}
