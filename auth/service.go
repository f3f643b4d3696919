package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"crashd/config"
	"crashd/domain/apperr"
	"crashd/domain/entities"
	"crashd/domain/events"
	"crashd/domain/interfaces"

	"github.com/sirupsen/logrus"
)

// Identity is the authenticated caller attached to requests and sessions
type Identity struct {
	UserID   int64
	Username string
	Role     entities.Role
}

// IsAdmin checks if the identity holds the admin role
func (i *Identity) IsAdmin() bool {
	return i.Role == entities.RoleAdmin
}

// Service is the credential service: registration, login, token refresh and
// session validation.
type Service struct {
	uowFactory interfaces.UnitOfWorkFactory
	issuer     *TokenIssuer
	sessions   *SessionRegistry
	cfg        *config.Config
}

// NewService creates a new credential service
func NewService(uowFactory interfaces.UnitOfWorkFactory, issuer *TokenIssuer, sessions *SessionRegistry, cfg *config.Config) *Service {
	return &Service{
		uowFactory: uowFactory,
		issuer:     issuer,
		sessions:   sessions,
		cfg:        cfg,
	}
}

// Sessions exposes the session registry so the server lifecycle can run its
// reaper.
func (s *Service) Sessions() *SessionRegistry {
	return s.sessions
}

// Register creates a new password-backed account and logs it in
func (s *Service) Register(ctx context.Context, username, password, registrationKey string) (*entities.User, *TokenPair, error) {
	if !s.cfg.RegistrationEnabled {
		return nil, nil, apperr.New(apperr.PermissionDenied, "registration is disabled")
	}
	if s.cfg.RegistrationKey != "" && registrationKey != s.cfg.RegistrationKey {
		return nil, nil, apperr.New(apperr.PermissionDenied, "invalid registration key")
	}
	username = strings.TrimSpace(username)
	if len(username) < 3 || len(username) > 32 {
		return nil, nil, apperr.New(apperr.InvalidArgument, "username must be 3-32 characters")
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, nil, err
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	existing, err := uow.UserRepository().GetByUsername(ctx, username)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to check username: %w", err)
	}
	if existing != nil {
		return nil, nil, apperr.New(apperr.AlreadyExists, "username is taken")
	}

	user := &entities.User{
		Username:     username,
		Role:         entities.RolePlayer,
		Balance:      s.cfg.DefaultBalance,
		IsActive:     true,
		PasswordHash: &hash,
	}
	user, err = uow.UserRepository().Create(ctx, user)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create user: %w", err)
	}

	_ = uow.EventPublisher().Publish(events.UserCreatedEvent{
		UserID:         user.ID,
		Username:       user.Username,
		InitialBalance: user.Balance,
	})

	if err := uow.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit registration: %w", err)
	}

	pair, err := s.startSession(user)
	if err != nil {
		return nil, nil, err
	}
	logrus.WithFields(logrus.Fields{"userId": user.ID, "username": user.Username}).Info("User registered")
	return user, pair, nil
}

// Login authenticates a username/password pair and starts a session
func (s *Service) Login(ctx context.Context, username, password string) (*entities.User, *TokenPair, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil || user.PasswordHash == nil || !CheckPassword(*user.PasswordHash, password) {
		return nil, nil, apperr.New(apperr.Unauthenticated, "invalid credentials")
	}
	if !user.IsActive {
		return nil, nil, apperr.New(apperr.PermissionDenied, "account is deactivated")
	}

	if err := uow.UserRepository().TouchLogin(ctx, user.ID, time.Now().UTC()); err != nil {
		return nil, nil, fmt.Errorf("failed to record login: %w", err)
	}
	if err := uow.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit login: %w", err)
	}

	pair, err := s.startSession(user)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// LoginTelegram validates a Telegram WebApp payload, upserts the user and
// starts a session.
func (s *Service) LoginTelegram(ctx context.Context, initData string) (*entities.User, *TokenPair, error) {
	tgUser, err := ValidateTelegramInitData(initData, s.cfg.TelegramBotToken)
	if err != nil {
		return nil, nil, err
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().GetByTelegramID(ctx, tgUser.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		username := tgUser.Username
		if username == "" {
			username = fmt.Sprintf("tg_%d", tgUser.ID)
		}
		telegramID := tgUser.ID
		user, err = uow.UserRepository().Create(ctx, &entities.User{
			TelegramID: &telegramID,
			Username:   username,
			Role:       entities.RolePlayer,
			Balance:    s.cfg.DefaultBalance,
			IsActive:   true,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create user: %w", err)
		}
		_ = uow.EventPublisher().Publish(events.UserCreatedEvent{
			UserID:         user.ID,
			Username:       user.Username,
			InitialBalance: user.Balance,
		})
	} else if !user.IsActive {
		return nil, nil, apperr.New(apperr.PermissionDenied, "account is deactivated")
	}

	if err := uow.UserRepository().TouchLogin(ctx, user.ID, time.Now().UTC()); err != nil {
		return nil, nil, fmt.Errorf("failed to record login: %w", err)
	}
	if err := uow.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit login: %w", err)
	}

	pair, err := s.startSession(user)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Refresh exchanges a valid refresh token for a new access token. The new
// access token replaces the user's current session binding.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.issuer.ParseRefresh(refreshToken)
	if err != nil {
		return "", err
	}
	// A refresh token outlives the access token but not the session: after
	// logout it must stop minting new access tokens.
	if !s.sessions.Active(claims.UserID) {
		return "", apperr.New(apperr.Unauthenticated, "session is no longer active")
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().GetByID(ctx, claims.UserID)
	if err != nil {
		return "", fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil || !user.IsActive {
		return "", apperr.New(apperr.Unauthenticated, "account is unavailable")
	}
	if err := uow.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit refresh: %w", err)
	}

	access, err := s.issuer.sign(user, "", s.issuer.accessTTL)
	if err != nil {
		return "", err
	}
	s.sessions.Bind(user.ID, access)
	return access, nil
}

// Logout drops the user's session; outstanding tokens stop validating
func (s *Service) Logout(userID int64) {
	s.sessions.Remove(userID)
}

// ChangePassword verifies the current password and replaces the hash
func (s *Service) ChangePassword(ctx context.Context, userID int64, current, next string) error {
	hash, err := HashPassword(next)
	if err != nil {
		return err
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().GetByIDForUpdate(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return apperr.New(apperr.NotFound, "user not found")
	}
	if user.PasswordHash == nil || !CheckPassword(*user.PasswordHash, current) {
		return apperr.New(apperr.Unauthenticated, "current password is incorrect")
	}
	if err := uow.UserRepository().UpdatePassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return uow.Commit()
}

// Authenticate validates an access token against both its signature and the
// session registry.
func (s *Service) Authenticate(accessToken string) (*Identity, error) {
	claims, err := s.issuer.ParseAccess(accessToken)
	if err != nil {
		return nil, err
	}
	if !s.sessions.Validate(claims.UserID, accessToken) {
		return nil, apperr.New(apperr.Unauthenticated, "session is no longer active")
	}
	return &Identity{
		UserID:   claims.UserID,
		Username: claims.Username,
		Role:     entities.Role(claims.Role),
	}, nil
}

func (s *Service) startSession(user *entities.User) (*TokenPair, error) {
	pair, err := s.issuer.IssuePair(user)
	if err != nil {
		return nil, err
	}
	s.sessions.Bind(user.ID, pair.AccessToken)
	return pair, nil
}
