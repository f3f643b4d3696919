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

// XP granted per whole unit wagered, settled with the wager.
const xpPerUnitWagered = 1

type wageringService struct {
	userRepo       interfaces.UserRepository
	roundRepo      interfaces.RoundRepository
	wagerRepo      interfaces.WagerRepository
	ledgerRepo     interfaces.LedgerRepository
	settingsRepo   interfaces.SettingsRepository
	dailyLimitRepo interfaces.DailyLimitRepository
	eventPublisher interfaces.EventPublisher
}

// NewWageringService creates a wagering service bound to one unit of work's
// repositories. All methods must run inside that unit of work so every
// placement, cashout and settlement is atomic.
func NewWageringService(uow interfaces.UnitOfWork) interfaces.WageringService {
	return &wageringService{
		userRepo:       uow.UserRepository(),
		roundRepo:      uow.RoundRepository(),
		wagerRepo:      uow.WagerRepository(),
		ledgerRepo:     uow.LedgerRepository(),
		settingsRepo:   uow.SettingsRepository(),
		dailyLimitRepo: uow.DailyLimitRepository(),
		eventPublisher: uow.EventPublisher(),
	}
}

func (s *wageringService) PlaceWager(ctx context.Context, userID, roundID, stake, autoCashout int64) (*interfaces.PlaceWagerResult, error) {
	if stake <= 0 {
		return nil, apperr.New(apperr.InvalidArgument, "stake must be positive")
	}
	if autoCashout != 0 && autoCashout < 101 {
		return nil, apperr.New(apperr.InvalidArgument, "auto-cashout must exceed 1.00x")
	}

	user, err := s.userRepo.GetByIDForUpdate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, apperr.New(apperr.NotFound, "user not found")
	}
	if !user.IsActive {
		return nil, apperr.New(apperr.PermissionDenied, "account is deactivated")
	}

	round, err := s.roundRepo.GetByID(ctx, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to load round: %w", err)
	}
	if round == nil {
		return nil, apperr.New(apperr.NotFound, "round not found")
	}
	if !round.IsAcceptingBets() {
		return nil, apperr.New(apperr.FailedPrecondition, "round is not accepting bets")
	}

	existing, err := s.wagerRepo.GetByUserAndRound(ctx, userID, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to check for existing wager: %w", err)
	}
	if existing != nil {
		return nil, apperr.New(apperr.AlreadyExists, "wager already placed this round")
	}

	settings, err := s.settingsRepo.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	now := time.Now().UTC()
	daily, err := s.dailyLimitRepo.Get(ctx, userID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to load daily limits: %w", err)
	}
	if err := daily.CheckWager(settings, stake); err != nil {
		return nil, apperr.Wrap(apperr.DailyLimitExceeded, err.Error(), err)
	}
	if err := daily.CheckLoss(settings); err != nil {
		return nil, apperr.Wrap(apperr.DailyLimitExceeded, err.Error(), err)
	}

	if !user.CanAfford(stake) {
		return nil, apperr.New(apperr.InsufficientFunds, "insufficient balance")
	}

	newBalance := user.Balance - stake
	if err := s.userRepo.UpdateBalance(ctx, userID, newBalance); err != nil {
		return nil, fmt.Errorf("failed to debit stake: %w", err)
	}

	wager := &entities.Wager{
		UserID:      userID,
		RoundID:     roundID,
		Amount:      stake,
		AutoCashout: autoCashout,
	}
	if err := s.wagerRepo.Create(ctx, wager); err != nil {
		return nil, fmt.Errorf("failed to create wager: %w", err)
	}

	entry := &entities.LedgerEntry{
		UserID:        userID,
		WagerID:       &wager.ID,
		Type:          entities.TransactionTypeBetPlaced,
		Amount:        stake,
		BalanceBefore: user.Balance,
		BalanceAfter:  newBalance,
		Description:   fmt.Sprintf("bet placed on round %d", round.Number),
	}
	if err := s.ledgerRepo.Record(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to record bet ledger entry: %w", err)
	}

	if err := s.dailyLimitRepo.AddWager(ctx, userID, now, stake); err != nil {
		return nil, fmt.Errorf("failed to bump daily wager counter: %w", err)
	}

	s.publish(events.WagerPlacedEvent{
		UserID:      userID,
		WagerID:     wager.ID,
		RoundID:     roundID,
		Amount:      stake,
		AutoCashout: autoCashout,
	})
	s.publish(events.BalanceChangeEvent{
		UserID:          userID,
		OldBalance:      user.Balance,
		NewBalance:      newBalance,
		ChangeAmount:    -stake,
		TransactionType: entities.TransactionTypeBetPlaced,
	})

	return &interfaces.PlaceWagerResult{Wager: wager, NewBalance: newBalance}, nil
}

func (s *wageringService) CashoutWager(ctx context.Context, wagerID, multiplier int64) (*interfaces.CashoutResult, error) {
	if multiplier < 100 {
		return nil, apperr.New(apperr.InvalidArgument, "cashout multiplier below 1.00x")
	}

	wager, err := s.wagerRepo.GetByIDForUpdate(ctx, wagerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load wager: %w", err)
	}
	if wager == nil {
		return nil, apperr.New(apperr.NotFound, "wager not found")
	}
	if wager.Status == entities.WagerStatusCashedOut {
		return nil, apperr.New(apperr.AlreadyExists, "wager already cashed out")
	}
	if !wager.IsActive() {
		return nil, apperr.New(apperr.FailedPrecondition, "wager is not active")
	}

	round, err := s.roundRepo.GetByID(ctx, wager.RoundID)
	if err != nil {
		return nil, fmt.Errorf("failed to load round: %w", err)
	}
	if round == nil || !round.IsRunning() {
		return nil, apperr.New(apperr.FailedPrecondition, "round is not running")
	}

	// The recorded multiplier never exceeds the committed crash point.
	if multiplier > round.CrashPoint {
		multiplier = round.CrashPoint
	}

	user, err := s.userRepo.GetByIDForUpdate(ctx, wager.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, apperr.New(apperr.NotFound, "user not found")
	}

	now := time.Now().UTC()
	payout := entities.PayoutFor(wager.Amount, multiplier)
	newBalance := user.Balance + payout

	if err := s.wagerRepo.MarkCashedOut(ctx, wagerID, multiplier, payout, now); err != nil {
		return nil, fmt.Errorf("failed to finalize cashout: %w", err)
	}
	if err := s.userRepo.UpdateBalance(ctx, wager.UserID, newBalance); err != nil {
		return nil, fmt.Errorf("failed to credit payout: %w", err)
	}

	entry := &entities.LedgerEntry{
		UserID:        wager.UserID,
		WagerID:       &wager.ID,
		Type:          entities.TransactionTypeBetWon,
		Amount:        payout,
		BalanceBefore: user.Balance,
		BalanceAfter:  newBalance,
		Description:   fmt.Sprintf("cashed out round %d at %d.%02dx", round.Number, multiplier/100, multiplier%100),
	}
	if err := s.ledgerRepo.Record(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to record win ledger entry: %w", err)
	}

	netWin := payout - wager.Amount
	if err := s.userRepo.ApplyWagerOutcome(ctx, wager.UserID, wager.Amount, netWin, 0, true); err != nil {
		return nil, fmt.Errorf("failed to update user stats: %w", err)
	}
	if err := s.userRepo.AddXP(ctx, wager.UserID, wager.Amount/100*xpPerUnitWagered); err != nil {
		return nil, fmt.Errorf("failed to grant xp: %w", err)
	}

	wager.Status = entities.WagerStatusCashedOut
	wager.CashoutMultiplier = &multiplier
	wager.Payout = payout
	wager.CashedOutAt = &now

	s.publish(events.WagerCashedOutEvent{
		UserID:     wager.UserID,
		WagerID:    wager.ID,
		RoundID:    wager.RoundID,
		Multiplier: multiplier,
		Payout:     payout,
	})
	s.publish(events.BalanceChangeEvent{
		UserID:          wager.UserID,
		OldBalance:      user.Balance,
		NewBalance:      newBalance,
		ChangeAmount:    payout,
		TransactionType: entities.TransactionTypeBetWon,
	})

	return &interfaces.CashoutResult{Wager: wager, Payout: payout, NewBalance: newBalance}, nil
}

func (s *wageringService) SettleCrashedRound(ctx context.Context, roundID, crashPoint int64, excludeWagerIDs []int64) (int, error) {
	wagers, err := s.wagerRepo.GetActiveByRound(ctx, roundID)
	if err != nil {
		return 0, fmt.Errorf("failed to load active wagers: %w", err)
	}

	excluded := make(map[int64]bool, len(excludeWagerIDs))
	for _, id := range excludeWagerIDs {
		excluded[id] = true
	}

	now := time.Now().UTC()
	settled := 0
	for _, wager := range wagers {
		// A wager with a cashout committing in parallel must not lose the
		// race; its own transaction finalizes it.
		if excluded[wager.ID] {
			continue
		}
		if err := s.wagerRepo.MarkLost(ctx, wager.ID); err != nil {
			return 0, fmt.Errorf("failed to mark wager %d lost: %w", wager.ID, err)
		}
		settled++

		user, err := s.userRepo.GetByID(ctx, wager.UserID)
		if err != nil {
			return 0, fmt.Errorf("failed to load user %d: %w", wager.UserID, err)
		}
		if user == nil {
			continue
		}

		// The stake left the balance at placement; the loss entry records
		// settlement with a zero delta.
		entry := &entities.LedgerEntry{
			UserID:        wager.UserID,
			WagerID:       &wager.ID,
			Type:          entities.TransactionTypeBetLost,
			Amount:        wager.Amount,
			BalanceBefore: user.Balance,
			BalanceAfter:  user.Balance,
			Description:   fmt.Sprintf("round crashed at %d.%02dx", crashPoint/100, crashPoint%100),
		}
		if err := s.ledgerRepo.Record(ctx, entry); err != nil {
			return 0, fmt.Errorf("failed to record loss ledger entry: %w", err)
		}

		if err := s.userRepo.ApplyWagerOutcome(ctx, wager.UserID, wager.Amount, 0, wager.Amount, false); err != nil {
			return 0, fmt.Errorf("failed to update user stats: %w", err)
		}
		if err := s.userRepo.AddXP(ctx, wager.UserID, wager.Amount/100*xpPerUnitWagered); err != nil {
			return 0, fmt.Errorf("failed to grant xp: %w", err)
		}
		if err := s.dailyLimitRepo.AddLoss(ctx, wager.UserID, now, wager.Amount); err != nil {
			return 0, fmt.Errorf("failed to bump daily loss counter: %w", err)
		}
	}

	return settled, nil
}

func (s *wageringService) publish(event events.Event) {
	if s.eventPublisher == nil {
		return
	}
	// Buffered until the unit of work commits; errors are the publisher's
	// to log.
	_ = s.eventPublisher.Publish(event)
}
