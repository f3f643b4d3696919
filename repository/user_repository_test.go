package repository

import (
	"context"
	"testing"

	"crashd/domain/entities"
	"crashd/repository/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository_GetByID(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	repo := NewUserRepository(testDB.DB)
	ctx := context.Background()

	t.Run("user not found", func(t *testing.T) {
		user, err := repo.GetByID(ctx, 999999)
		require.NoError(t, err)
		assert.Nil(t, user)
	})

	t.Run("user found", func(t *testing.T) {
		created, err := repo.Create(ctx, testutil.CreateTestUser("alice"))
		require.NoError(t, err)

		user, err := repo.GetByID(ctx, created.ID)
		require.NoError(t, err)
		require.NotNil(t, user)

		assert.Equal(t, "alice", user.Username)
		assert.Equal(t, entities.RolePlayer, user.Role)
		assert.Equal(t, int64(100000), user.Balance)
		assert.True(t, user.IsActive)
		assert.Equal(t, 1, user.Level)
	})
}

func TestUserRepository_Create(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	repo := NewUserRepository(testDB.DB)
	settingsRepo := NewSettingsRepository(testDB.DB)
	ctx := context.Background()

	t.Run("successful creation", func(t *testing.T) {
		user, err := repo.Create(ctx, testutil.CreateTestUser("bob"))
		require.NoError(t, err)
		require.NotNil(t, user)

		assert.NotZero(t, user.ID)
		assert.False(t, user.CreatedAt.IsZero())
	})

	t.Run("default settings row created", func(t *testing.T) {
		user, err := repo.Create(ctx, testutil.CreateTestUser("carol"))
		require.NoError(t, err)

		settings, err := settingsRepo.Get(ctx, user.ID)
		require.NoError(t, err)
		require.NotNil(t, settings)
		assert.Equal(t, int64(200), settings.AutoCashoutMultiplier)
		assert.False(t, settings.DailyLimitsEnabled)
	})

	t.Run("duplicate username", func(t *testing.T) {
		_, err := repo.Create(ctx, testutil.CreateTestUser("dave"))
		require.NoError(t, err)

		_, err = repo.Create(ctx, testutil.CreateTestUser("dave"))
		assert.Error(t, err)
	})

	t.Run("duplicate telegram id", func(t *testing.T) {
		telegramID := int64(424242)
		first := testutil.CreateTestUser("tg_one")
		first.TelegramID = &telegramID
		_, err := repo.Create(ctx, first)
		require.NoError(t, err)

		second := testutil.CreateTestUser("tg_two")
		second.TelegramID = &telegramID
		_, err = repo.Create(ctx, second)
		assert.Error(t, err)
	})
}

func TestUserRepository_GetByUsername(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	repo := NewUserRepository(testDB.DB)
	ctx := context.Background()

	created, err := repo.Create(ctx, testutil.CreateTestUser("eve"))
	require.NoError(t, err)

	user, err := repo.GetByUsername(ctx, "eve")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, created.ID, user.ID)

	missing, err := repo.GetByUsername(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUserRepository_UpdateBalance(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	repo := NewUserRepository(testDB.DB)
	ctx := context.Background()

	t.Run("successful update", func(t *testing.T) {
		user, err := repo.Create(ctx, testutil.CreateTestUser("frank"))
		require.NoError(t, err)

		err = repo.UpdateBalance(ctx, user.ID, 50000)
		require.NoError(t, err)

		reloaded, err := repo.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(50000), reloaded.Balance)
	})

	t.Run("negative balance rejected by schema", func(t *testing.T) {
		user, err := repo.Create(ctx, testutil.CreateTestUser("grace"))
		require.NoError(t, err)

		err = repo.UpdateBalance(ctx, user.ID, -1)
		assert.Error(t, err)
	})

	t.Run("user not found", func(t *testing.T) {
		err := repo.UpdateBalance(ctx, 999999, 50000)
		assert.Error(t, err)
	})
}

func TestUserRepository_ApplyWagerOutcome(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	repo := NewUserRepository(testDB.DB)
	ctx := context.Background()

	user, err := repo.Create(ctx, testutil.CreateTestUser("henry"))
	require.NoError(t, err)

	// One win of 500 net on a 1000 stake, then one lost 1000 stake
	err = repo.ApplyWagerOutcome(ctx, user.ID, 1000, 500, 0, true)
	require.NoError(t, err)
	err = repo.ApplyWagerOutcome(ctx, user.ID, 1000, 0, 1000, false)
	require.NoError(t, err)

	reloaded, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), reloaded.TotalWagered)
	assert.Equal(t, int64(500), reloaded.TotalWon)
	assert.Equal(t, int64(1000), reloaded.TotalLost)
	assert.Equal(t, int64(2), reloaded.GamesPlayed)
	assert.Equal(t, int64(1), reloaded.GamesWon)
	assert.Equal(t, int64(500), reloaded.BiggestWin)
	assert.Equal(t, int64(1000), reloaded.BiggestLoss)
	assert.Equal(t, int64(-500), reloaded.NetProfit())
}

func TestUserRepository_UpdateFields(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	repo := NewUserRepository(testDB.DB)
	ctx := context.Background()

	user, err := repo.Create(ctx, testutil.CreateTestUser("iris"))
	require.NoError(t, err)

	t.Run("allowed fields", func(t *testing.T) {
		err := repo.UpdateFields(ctx, user.ID, map[string]any{
			"role":     string(entities.RoleAdmin),
			"isActive": false,
		})
		require.NoError(t, err)

		reloaded, err := repo.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, entities.RoleAdmin, reloaded.Role)
		assert.False(t, reloaded.IsActive)
	})

	t.Run("disallowed field", func(t *testing.T) {
		err := repo.UpdateFields(ctx, user.ID, map[string]any{"xp": 9999})
		assert.Error(t, err)
	})

	t.Run("no fields is a no-op", func(t *testing.T) {
		err := repo.UpdateFields(ctx, user.ID, nil)
		assert.NoError(t, err)
	})

	t.Run("user not found", func(t *testing.T) {
		err := repo.UpdateFields(ctx, 999999, map[string]any{"role": "admin"})
		assert.Error(t, err)
	})
}

func TestUserRepository_AddXP(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	repo := NewUserRepository(testDB.DB)
	ctx := context.Background()

	user, err := repo.Create(ctx, testutil.CreateTestUser("jack"))
	require.NoError(t, err)

	require.NoError(t, repo.AddXP(ctx, user.ID, 999))
	reloaded, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(999), reloaded.XP)
	assert.Equal(t, 1, reloaded.Level)

	require.NoError(t, repo.AddXP(ctx, user.ID, 1))
	reloaded, err = repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), reloaded.XP)
	assert.Equal(t, 2, reloaded.Level)
}

func TestUserRepository_Leaderboard(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	repo := NewUserRepository(testDB.DB)
	ctx := context.Background()

	rich, err := repo.Create(ctx, testutil.CreateTestUserWithBalance("rich", 500000))
	require.NoError(t, err)
	_, err = repo.Create(ctx, testutil.CreateTestUserWithBalance("mid", 200000))
	require.NoError(t, err)
	poor, err := repo.Create(ctx, testutil.CreateTestUserWithBalance("poor", 1000))
	require.NoError(t, err)

	// poor has a perfect record but too few games for the win-rate board
	require.NoError(t, repo.ApplyWagerOutcome(ctx, poor.ID, 100, 50, 0, true))
	for i := 0; i < 10; i++ {
		require.NoError(t, repo.ApplyWagerOutcome(ctx, rich.ID, 100, 50, 0, i%2 == 0))
	}

	t.Run("by balance", func(t *testing.T) {
		entries, err := repo.Leaderboard(ctx, entities.LeaderboardByBalance, 10, 0)
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, "rich", entries[0].Username)
		assert.Equal(t, 1, entries[0].Rank)
		assert.Equal(t, "poor", entries[2].Username)
		assert.Equal(t, 3, entries[2].Rank)
	})

	t.Run("by win rate with minimum games", func(t *testing.T) {
		entries, err := repo.Leaderboard(ctx, entities.LeaderboardByWinRate, 10, 5)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "rich", entries[0].Username)
		assert.InDelta(t, 0.5, entries[0].WinRate, 0.01)
	})

	t.Run("limit respected", func(t *testing.T) {
		entries, err := repo.Leaderboard(ctx, entities.LeaderboardByBalance, 2, 0)
		require.NoError(t, err)
		assert.Len(t, entries, 2)
	})

	t.Run("unsupported sort", func(t *testing.T) {
		_, err := repo.Leaderboard(ctx, entities.LeaderboardSort("bogus"), 10, 0)
		assert.Error(t, err)
	})
}

func TestUserRepository_Count(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	repo := NewUserRepository(testDB.DB)
	ctx := context.Background()

	active, err := repo.Create(ctx, testutil.CreateTestUser("active1"))
	require.NoError(t, err)
	_, err = repo.Create(ctx, testutil.CreateTestUser("active2"))
	require.NoError(t, err)
	require.NoError(t, repo.UpdateFields(ctx, active.ID, map[string]any{"isActive": false}))

	total, activeCount, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, int64(1), activeCount)
}
