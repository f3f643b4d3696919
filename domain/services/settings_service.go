package services

import (
	"context"
	"fmt"

	"crashd/domain/apperr"
	"crashd/domain/entities"
	"crashd/domain/interfaces"
)

type settingsService struct {
	settingsRepo interfaces.SettingsRepository
	userRepo     interfaces.UserRepository
}

// NewSettingsService creates a settings service bound to one unit of work's
// repositories.
func NewSettingsService(uow interfaces.UnitOfWork) interfaces.SettingsService {
	return &settingsService{
		settingsRepo: uow.SettingsRepository(),
		userRepo:     uow.UserRepository(),
	}
}

// Get returns the user's settings, falling back to defaults when the user
// has never saved any.
func (s *settingsService) Get(ctx context.Context, userID int64) (*entities.PlayerSettings, error) {
	settings, err := s.settingsRepo.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	if settings == nil {
		return entities.DefaultPlayerSettings(userID), nil
	}
	return settings, nil
}

// Update applies a partial settings update. Nil patch fields keep their
// current values.
func (s *settingsService) Update(ctx context.Context, userID int64, patch interfaces.SettingsPatch) (*entities.PlayerSettings, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, apperr.New(apperr.NotFound, "user not found")
	}

	settings, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if patch.AutoCashoutEnabled != nil {
		settings.AutoCashoutEnabled = *patch.AutoCashoutEnabled
	}
	if patch.AutoCashoutMultiplier != nil {
		settings.AutoCashoutMultiplier = *patch.AutoCashoutMultiplier
	}
	if patch.SoundEnabled != nil {
		settings.SoundEnabled = *patch.SoundEnabled
	}
	if patch.DailyLimitsEnabled != nil {
		settings.DailyLimitsEnabled = *patch.DailyLimitsEnabled
	}
	if patch.MaxDailyWager != nil {
		settings.MaxDailyWager = *patch.MaxDailyWager
	}
	if patch.MaxDailyLoss != nil {
		settings.MaxDailyLoss = *patch.MaxDailyLoss
	}
	if patch.MaxGamesPerDay != nil {
		settings.MaxGamesPerDay = *patch.MaxGamesPerDay
	}

	if err := settings.Validate(); err != nil {
		return nil, apperr.Wrap(apperr.InvalidArgument, err.Error(), err)
	}

	if err := s.settingsRepo.Upsert(ctx, settings); err != nil {
		return nil, fmt.Errorf("failed to save settings: %w", err)
	}
	return settings, nil
}
