package entities

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRound_CanTransitionTo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		from    RoundStatus
		to      RoundStatus
		wantErr bool
	}{
		{
			name: "betting to running",
			from: RoundStatusBetting,
			to:   RoundStatusRunning,
		},
		{
			name: "running to crashed",
			from: RoundStatusRunning,
			to:   RoundStatusCrashed,
		},
		{
			name: "betting straight to crashed",
			from: RoundStatusBetting,
			to:   RoundStatusCrashed,
		},
		{
			name:    "crashed is terminal",
			from:    RoundStatusCrashed,
			to:      RoundStatusRunning,
			wantErr: true,
		},
		{
			name:    "no backward transition",
			from:    RoundStatusRunning,
			to:      RoundStatusBetting,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			round := Round{Status: tt.from}
			err := round.CanTransitionTo(tt.to)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRound_SeedRevealedAfter(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	grace := 5 * time.Minute
	endedLongAgo := now.Add(-10 * time.Minute)
	endedRecently := now.Add(-time.Minute)

	t.Run("revealed after the grace period", func(t *testing.T) {
		round := Round{Status: RoundStatusCrashed, EndedAt: &endedLongAgo}
		assert.True(t, round.SeedRevealedAfter(now, grace))
	})

	t.Run("withheld inside the grace period", func(t *testing.T) {
		round := Round{Status: RoundStatusCrashed, EndedAt: &endedRecently}
		assert.False(t, round.SeedRevealedAfter(now, grace))
	})

	t.Run("never revealed while running", func(t *testing.T) {
		round := Round{Status: RoundStatusRunning, EndedAt: &endedLongAgo}
		assert.False(t, round.SeedRevealedAfter(now, grace))
	})

	t.Run("never revealed without an end time", func(t *testing.T) {
		round := Round{Status: RoundStatusCrashed}
		assert.False(t, round.SeedRevealedAfter(now, grace))
	})
}

func TestDailyLimit_CheckWager(t *testing.T) {
	t.Parallel()

	limits := &PlayerSettings{
		DailyLimitsEnabled: true,
		MaxDailyWager:      10000,
		MaxDailyLoss:       5000,
		MaxGamesPerDay:     3,
	}

	t.Run("limits disabled never block", func(t *testing.T) {
		off := &PlayerSettings{DailyLimitsEnabled: false}
		day := &DailyLimit{TotalWagered: 999999, GamesPlayed: 999}
		assert.NoError(t, day.CheckWager(off, 100000))
	})

	t.Run("nil counter means no activity", func(t *testing.T) {
		var day *DailyLimit
		assert.NoError(t, day.CheckWager(limits, 10000))
		assert.ErrorIs(t, day.CheckWager(limits, 10001), ErrDailyWagerLimit)
	})

	t.Run("wager cap counts existing stakes", func(t *testing.T) {
		day := &DailyLimit{TotalWagered: 9000}
		assert.NoError(t, day.CheckWager(limits, 1000))
		assert.ErrorIs(t, day.CheckWager(limits, 1001), ErrDailyWagerLimit)
	})

	t.Run("games cap", func(t *testing.T) {
		day := &DailyLimit{GamesPlayed: 3}
		assert.ErrorIs(t, day.CheckWager(limits, 100), ErrDailyGamesLimit)
	})

	t.Run("loss cap blocks once exhausted", func(t *testing.T) {
		day := &DailyLimit{TotalLost: 5000}
		assert.ErrorIs(t, day.CheckLoss(limits), ErrDailyLossLimit)
		under := &DailyLimit{TotalLost: 4999}
		assert.NoError(t, under.CheckLoss(limits))
	})
}

func TestLevelForXP(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1, LevelForXP(0))
	assert.Equal(t, 1, LevelForXP(999))
	assert.Equal(t, 2, LevelForXP(1000))
	assert.Equal(t, 11, LevelForXP(10500))
}
