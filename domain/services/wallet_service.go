package services

import (
	"context"
	"fmt"
	"time"

	"crashd/domain/apperr"
	"crashd/domain/entities"
	"crashd/domain/events"
	"crashd/domain/interfaces"
)

const farmingClaimXP = 50

type walletService struct {
	userRepo       interfaces.UserRepository
	ledgerRepo     interfaces.LedgerRepository
	eventPublisher interfaces.EventPublisher

	farmingCooldown time.Duration
	farmingReward   int64
}

// NewWalletService creates a wallet service bound to one unit of work's
// repositories.
func NewWalletService(uow interfaces.UnitOfWork, farmingCooldown time.Duration, farmingReward int64) interfaces.WalletService {
	return &walletService{
		userRepo:        uow.UserRepository(),
		ledgerRepo:      uow.LedgerRepository(),
		eventPublisher:  uow.EventPublisher(),
		farmingCooldown: farmingCooldown,
		farmingReward:   farmingReward,
	}
}

func (s *walletService) AdjustBalance(ctx context.Context, userID, signedAmount int64, entryType entities.TransactionType, description string) (int64, error) {
	if signedAmount == 0 {
		return 0, apperr.New(apperr.InvalidArgument, "adjustment amount must be non-zero")
	}

	user, err := s.userRepo.GetByIDForUpdate(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return 0, apperr.New(apperr.NotFound, "user not found")
	}

	newBalance := user.Balance + signedAmount
	if newBalance < 0 {
		return 0, apperr.New(apperr.InsufficientFunds, "adjustment would make balance negative")
	}

	if err := s.userRepo.UpdateBalance(ctx, userID, newBalance); err != nil {
		return 0, fmt.Errorf("failed to update balance: %w", err)
	}

	amount := signedAmount
	if amount < 0 {
		amount = -amount
	}
	entry := &entities.LedgerEntry{
		UserID:        userID,
		Type:          entryType,
		Amount:        amount,
		BalanceBefore: user.Balance,
		BalanceAfter:  newBalance,
		Description:   description,
	}
	if err := s.ledgerRepo.Record(ctx, entry); err != nil {
		return 0, fmt.Errorf("failed to record adjustment: %w", err)
	}

	s.publish(events.BalanceChangeEvent{
		UserID:          userID,
		OldBalance:      user.Balance,
		NewBalance:      newBalance,
		ChangeAmount:    signedAmount,
		TransactionType: entryType,
	})

	return newBalance, nil
}

func (s *walletService) ClaimFarming(ctx context.Context, userID int64) (int64, error) {
	user, err := s.userRepo.GetByIDForUpdate(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return 0, apperr.New(apperr.NotFound, "user not found")
	}
	if !user.IsActive {
		return 0, apperr.New(apperr.PermissionDenied, "account is deactivated")
	}

	now := time.Now().UTC()
	if user.LastFarmingAt != nil {
		remaining := s.farmingCooldown - now.Sub(*user.LastFarmingAt)
		if remaining > 0 {
			return 0, apperr.Newf(apperr.FailedPrecondition,
				"farming available in %s", remaining.Round(time.Second))
		}
	}

	newBalance := user.Balance + s.farmingReward
	if err := s.userRepo.UpdateBalance(ctx, userID, newBalance); err != nil {
		return 0, fmt.Errorf("failed to credit farming reward: %w", err)
	}
	if err := s.userRepo.SetLastFarmingAt(ctx, userID, now); err != nil {
		return 0, fmt.Errorf("failed to record farming claim: %w", err)
	}

	entry := &entities.LedgerEntry{
		UserID:        userID,
		Type:          entities.TransactionTypeFarmingClaim,
		Amount:        s.farmingReward,
		BalanceBefore: user.Balance,
		BalanceAfter:  newBalance,
		Description:   "farming reward claimed",
	}
	if err := s.ledgerRepo.Record(ctx, entry); err != nil {
		return 0, fmt.Errorf("failed to record farming claim: %w", err)
	}

	if err := s.userRepo.AddXP(ctx, userID, farmingClaimXP); err != nil {
		return 0, fmt.Errorf("failed to grant xp: %w", err)
	}

	s.publish(events.BalanceChangeEvent{
		UserID:          userID,
		OldBalance:      user.Balance,
		NewBalance:      newBalance,
		ChangeAmount:    s.farmingReward,
		TransactionType: entities.TransactionTypeFarmingClaim,
	})

	return newBalance, nil
}

func (s *walletService) FarmingStatus(ctx context.Context, userID int64) (*interfaces.FarmingStatus, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, apperr.New(apperr.NotFound, "user not found")
	}

	status := &interfaces.FarmingStatus{
		CanClaim:    true,
		Reward:      s.farmingReward,
		LastClaimAt: user.LastFarmingAt,
	}
	if user.LastFarmingAt != nil {
		remaining := s.farmingCooldown - time.Now().UTC().Sub(*user.LastFarmingAt)
		if remaining > 0 {
			status.CanClaim = false
			status.NextClaimIn = remaining
		}
	}
	return status, nil
}

func (s *walletService) publish(event events.Event) {
	if s.eventPublisher == nil {
		return
	}
	_ = s.eventPublisher.Publish(event)
}
