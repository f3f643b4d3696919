package repository

import (
	"context"
	"testing"
	"time"

	"crashd/domain/apperr"
	"crashd/domain/entities"
	"crashd/domain/interfaces"
	"crashd/domain/services"
	"crashd/infrastructure"
	"crashd/repository/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestUowFactory builds a unit of work factory whose buffered events go
// nowhere, matching a deployment without NATS.
func newTestUowFactory(testDB *testutil.TestDatabase) *UnitOfWorkFactory {
	return NewUnitOfWorkFactory(testDB.DB, func() interfaces.TransactionalEventPublisher {
		return infrastructure.NewTransactionalPublisher(infrastructure.NewNoopEventPublisher())
	})
}

// inWagerTx runs fn inside a fresh unit of work and commits it
func inWagerTx(t *testing.T, factory *UnitOfWorkFactory, fn func(uow interfaces.UnitOfWork) error) error {
	t.Helper()
	ctx := context.Background()

	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))
	defer uow.Rollback()

	if err := fn(uow); err != nil {
		return err
	}
	return uow.Commit()
}

func TestWagering_PlaceAndCashout(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)
	factory := newTestUowFactory(testDB)
	ctx := context.Background()

	userRepo := NewUserRepository(testDB.DB)
	roundRepo := NewRoundRepository(testDB.DB)
	ledgerRepo := NewLedgerRepository(testDB.DB)

	user, err := userRepo.Create(ctx, testutil.CreateTestUser("alice"))
	require.NoError(t, err)
	round, err := roundRepo.Create(ctx, testutil.CreateTestRoundWithCrashPoint(1, 250))
	require.NoError(t, err)

	var wagerID int64
	err = inWagerTx(t, factory, func(uow interfaces.UnitOfWork) error {
		result, err := services.NewWageringService(uow).PlaceWager(ctx, user.ID, round.ID, 1000, 0)
		if err != nil {
			return err
		}
		wagerID = result.Wager.ID
		assert.Equal(t, int64(99000), result.NewBalance)
		return nil
	})
	require.NoError(t, err)

	startedAt := time.Now().UTC()
	require.NoError(t, roundRepo.UpdateStatus(ctx, round.ID, entities.RoundStatusRunning, &startedAt, nil))

	err = inWagerTx(t, factory, func(uow interfaces.UnitOfWork) error {
		result, err := services.NewWageringService(uow).CashoutWager(ctx, wagerID, 200)
		if err != nil {
			return err
		}
		assert.Equal(t, int64(2000), result.Payout)
		assert.Equal(t, int64(101000), result.NewBalance)
		return nil
	})
	require.NoError(t, err)

	reloaded, err := userRepo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(101000), reloaded.Balance)
	assert.Equal(t, int64(1000), reloaded.TotalWagered)
	assert.Equal(t, int64(1000), reloaded.TotalWon)
	assert.Equal(t, int64(1), reloaded.GamesWon)
	assert.Equal(t, int64(10), reloaded.XP)

	// The balance always equals the starting balance plus the signed ledger
	// deltas.
	sum, err := ledgerRepo.SumDeltas(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, reloaded.Balance-user.Balance, sum)
}

func TestWagering_CashoutClampedToCrashPoint(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)
	factory := newTestUowFactory(testDB)
	ctx := context.Background()

	userRepo := NewUserRepository(testDB.DB)
	roundRepo := NewRoundRepository(testDB.DB)

	user, err := userRepo.Create(ctx, testutil.CreateTestUser("bob"))
	require.NoError(t, err)
	round, err := roundRepo.Create(ctx, testutil.CreateTestRoundWithCrashPoint(1, 180))
	require.NoError(t, err)

	var wagerID int64
	err = inWagerTx(t, factory, func(uow interfaces.UnitOfWork) error {
		result, err := services.NewWageringService(uow).PlaceWager(ctx, user.ID, round.ID, 1000, 0)
		if err != nil {
			return err
		}
		wagerID = result.Wager.ID
		return nil
	})
	require.NoError(t, err)

	startedAt := time.Now().UTC()
	require.NoError(t, roundRepo.UpdateStatus(ctx, round.ID, entities.RoundStatusRunning, &startedAt, nil))

	err = inWagerTx(t, factory, func(uow interfaces.UnitOfWork) error {
		result, err := services.NewWageringService(uow).CashoutWager(ctx, wagerID, 500)
		if err != nil {
			return err
		}
		require.NotNil(t, result.Wager.CashoutMultiplier)
		assert.Equal(t, int64(180), *result.Wager.CashoutMultiplier)
		assert.Equal(t, int64(1800), result.Payout)
		return nil
	})
	require.NoError(t, err)
}

func TestWagering_SettleCrashedRound(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)
	factory := newTestUowFactory(testDB)
	ctx := context.Background()

	userRepo := NewUserRepository(testDB.DB)
	roundRepo := NewRoundRepository(testDB.DB)
	wagerRepo := NewWagerRepository(testDB.DB)
	ledgerRepo := NewLedgerRepository(testDB.DB)
	dailyRepo := NewDailyLimitRepository(testDB.DB)

	user, err := userRepo.Create(ctx, testutil.CreateTestUser("carol"))
	require.NoError(t, err)
	round, err := roundRepo.Create(ctx, testutil.CreateTestRoundWithCrashPoint(1, 150))
	require.NoError(t, err)

	var wagerID int64
	err = inWagerTx(t, factory, func(uow interfaces.UnitOfWork) error {
		result, err := services.NewWageringService(uow).PlaceWager(ctx, user.ID, round.ID, 2000, 0)
		if err != nil {
			return err
		}
		wagerID = result.Wager.ID
		return nil
	})
	require.NoError(t, err)

	startedAt := time.Now().UTC()
	endedAt := startedAt.Add(time.Second)
	require.NoError(t, roundRepo.UpdateStatus(ctx, round.ID, entities.RoundStatusRunning, &startedAt, nil))
	require.NoError(t, roundRepo.UpdateStatus(ctx, round.ID, entities.RoundStatusCrashed, nil, &endedAt))

	err = inWagerTx(t, factory, func(uow interfaces.UnitOfWork) error {
		settled, err := services.NewWageringService(uow).SettleCrashedRound(ctx, round.ID, 150, nil)
		if err != nil {
			return err
		}
		assert.Equal(t, 1, settled)
		return nil
	})
	require.NoError(t, err)

	wager, err := wagerRepo.GetByID(ctx, wagerID)
	require.NoError(t, err)
	assert.Equal(t, entities.WagerStatusLost, wager.Status)

	reloaded, err := userRepo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(98000), reloaded.Balance)
	assert.Equal(t, int64(2000), reloaded.TotalLost)
	assert.Equal(t, int64(0), reloaded.GamesWon)

	// Loss settlement carries a zero delta; the stake left at placement
	sum, err := ledgerRepo.SumDeltas(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, reloaded.Balance-user.Balance, sum)

	entries, err := ledgerRepo.GetByUser(ctx, user.ID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, entities.TransactionTypeBetLost, entries[0].Type)
	assert.Zero(t, entries[0].SignedDelta())

	daily, err := dailyRepo.Get(ctx, user.ID, time.Now().UTC())
	require.NoError(t, err)
	require.NotNil(t, daily)
	assert.Equal(t, int64(2000), daily.TotalLost)
}

func TestWagering_Rejections(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)
	factory := newTestUowFactory(testDB)
	ctx := context.Background()

	userRepo := NewUserRepository(testDB.DB)
	roundRepo := NewRoundRepository(testDB.DB)

	user, err := userRepo.Create(ctx, testutil.CreateTestUserWithBalance("dave", 500))
	require.NoError(t, err)
	round, err := roundRepo.Create(ctx, testutil.CreateTestRound(1))
	require.NoError(t, err)

	t.Run("insufficient funds", func(t *testing.T) {
		err := inWagerTx(t, factory, func(uow interfaces.UnitOfWork) error {
			_, err := services.NewWageringService(uow).PlaceWager(ctx, user.ID, round.ID, 1000, 0)
			return err
		})
		assert.Equal(t, apperr.InsufficientFunds, apperr.KindOf(err))
	})

	t.Run("duplicate wager", func(t *testing.T) {
		err := inWagerTx(t, factory, func(uow interfaces.UnitOfWork) error {
			_, err := services.NewWageringService(uow).PlaceWager(ctx, user.ID, round.ID, 100, 0)
			return err
		})
		require.NoError(t, err)

		err = inWagerTx(t, factory, func(uow interfaces.UnitOfWork) error {
			_, err := services.NewWageringService(uow).PlaceWager(ctx, user.ID, round.ID, 100, 0)
			return err
		})
		assert.Equal(t, apperr.AlreadyExists, apperr.KindOf(err))
	})

	t.Run("round no longer accepting bets", func(t *testing.T) {
		other, err := userRepo.Create(ctx, testutil.CreateTestUser("erin"))
		require.NoError(t, err)
		startedAt := time.Now().UTC()
		require.NoError(t, roundRepo.UpdateStatus(ctx, round.ID, entities.RoundStatusRunning, &startedAt, nil))

		err = inWagerTx(t, factory, func(uow interfaces.UnitOfWork) error {
			_, err := services.NewWageringService(uow).PlaceWager(ctx, other.ID, round.ID, 100, 0)
			return err
		})
		assert.Equal(t, apperr.FailedPrecondition, apperr.KindOf(err))
	})
}

func TestWagering_RollbackLeavesNoTrace(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)
	factory := newTestUowFactory(testDB)
	ctx := context.Background()

	userRepo := NewUserRepository(testDB.DB)
	roundRepo := NewRoundRepository(testDB.DB)
	wagerRepo := NewWagerRepository(testDB.DB)

	user, err := userRepo.Create(ctx, testutil.CreateTestUser("frank"))
	require.NoError(t, err)
	round, err := roundRepo.Create(ctx, testutil.CreateTestRound(1))
	require.NoError(t, err)

	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))
	_, err = services.NewWageringService(uow).PlaceWager(ctx, user.ID, round.ID, 1000, 0)
	require.NoError(t, err)
	require.NoError(t, uow.Rollback())

	reloaded, err := userRepo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100000), reloaded.Balance)

	wager, err := wagerRepo.GetByUserAndRound(ctx, user.ID, round.ID)
	require.NoError(t, err)
	assert.Nil(t, wager)
}
