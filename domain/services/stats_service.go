package services

import (
	"context"
	"fmt"

	"crashd/domain/entities"
	"crashd/domain/interfaces"
)

// StatsService aggregates operator-facing totals. Read-only, pool-backed.
type StatsService struct {
	userRepo  interfaces.UserRepository
	roundRepo interfaces.RoundRepository
	wagerRepo interfaces.WagerRepository
}

// NewStatsService creates a new stats service
func NewStatsService(userRepo interfaces.UserRepository, roundRepo interfaces.RoundRepository, wagerRepo interfaces.WagerRepository) *StatsService {
	return &StatsService{
		userRepo:  userRepo,
		roundRepo: roundRepo,
		wagerRepo: wagerRepo,
	}
}

// AdminStats returns system-wide totals for the admin dashboard
func (s *StatsService) AdminStats(ctx context.Context) (*entities.AdminStats, error) {
	total, active, err := s.userRepo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	rounds, err := s.roundRepo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count rounds: %w", err)
	}
	wagers, staked, payout, err := s.wagerRepo.Aggregate(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate wagers: %w", err)
	}

	return &entities.AdminStats{
		TotalUsers:  total,
		ActiveUsers: active,
		TotalRounds: rounds,
		TotalWagers: wagers,
		TotalStaked: staked,
		TotalPayout: payout,
		HouseProfit: staked - payout,
	}, nil
}
