package services

import (
	"context"
	"testing"

	"crashd/domain/apperr"
	"crashd/domain/entities"
	"crashd/domain/interfaces"
	"crashd/domain/testhelpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestSettingsService_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("falls back to defaults when nothing is saved", func(t *testing.T) {
		uow := testhelpers.NewStubUnitOfWork()
		service := NewSettingsService(uow)

		uow.Settings.On("Get", ctx, int64(7)).Return(nil, nil)

		settings, err := service.Get(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, int64(200), settings.AutoCashoutMultiplier)
		assert.False(t, settings.DailyLimitsEnabled)
	})
}

func TestSettingsService_Update(t *testing.T) {
	ctx := context.Background()

	boolPtr := func(b bool) *bool { return &b }
	int64Ptr := func(v int64) *int64 { return &v }

	t.Run("patches only the provided fields", func(t *testing.T) {
		uow := testhelpers.NewStubUnitOfWork()
		service := NewSettingsService(uow)

		existing := entities.DefaultPlayerSettings(7)
		existing.SoundEnabled = false

		uow.Users.On("GetByID", ctx, int64(7)).Return(&entities.User{ID: 7, IsActive: true}, nil)
		uow.Settings.On("Get", ctx, int64(7)).Return(existing, nil)
		uow.Settings.On("Upsert", ctx, mock.MatchedBy(func(s *entities.PlayerSettings) bool {
			return s.AutoCashoutEnabled && s.AutoCashoutMultiplier == 350 && !s.SoundEnabled
		})).Return(nil)

		updated, err := service.Update(ctx, 7, interfaces.SettingsPatch{
			AutoCashoutEnabled:    boolPtr(true),
			AutoCashoutMultiplier: int64Ptr(350),
		})
		require.NoError(t, err)
		assert.True(t, updated.AutoCashoutEnabled)
		assert.False(t, updated.SoundEnabled)
		uow.Settings.AssertExpectations(t)
	})

	t.Run("rejects an invalid auto-cashout threshold", func(t *testing.T) {
		uow := testhelpers.NewStubUnitOfWork()
		service := NewSettingsService(uow)

		uow.Users.On("GetByID", ctx, int64(7)).Return(&entities.User{ID: 7, IsActive: true}, nil)
		uow.Settings.On("Get", ctx, int64(7)).Return(nil, nil)

		_, err := service.Update(ctx, 7, interfaces.SettingsPatch{
			AutoCashoutEnabled:    boolPtr(true),
			AutoCashoutMultiplier: int64Ptr(100),
		})
		assert.Equal(t, apperr.InvalidArgument, apperr.KindOf(err))
		uow.Settings.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
	})

	t.Run("rejects an unknown user", func(t *testing.T) {
		uow := testhelpers.NewStubUnitOfWork()
		service := NewSettingsService(uow)

		uow.Users.On("GetByID", ctx, int64(404)).Return(nil, nil)

		_, err := service.Update(ctx, 404, interfaces.SettingsPatch{SoundEnabled: boolPtr(false)})
		assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
	})
}
