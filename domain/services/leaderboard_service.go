package services

import (
	"context"
	"fmt"

	"crashd/domain/apperr"
	"crashd/domain/entities"
	"crashd/domain/interfaces"
)

const defaultLeaderboardLimit = 20

// LeaderboardService serves the public leaderboard. Read-only, so it runs on
// pool-backed repositories rather than a unit of work.
type LeaderboardService struct {
	userRepo interfaces.UserRepository
}

// NewLeaderboardService creates a new leaderboard service
func NewLeaderboardService(userRepo interfaces.UserRepository) *LeaderboardService {
	return &LeaderboardService{userRepo: userRepo}
}

// Top returns the leaderboard under the given ordering. An empty sort key
// defaults to balance.
func (s *LeaderboardService) Top(ctx context.Context, by entities.LeaderboardSort, limit int) ([]*entities.LeaderboardEntry, error) {
	if by == "" {
		by = entities.LeaderboardByBalance
	}
	if !entities.ValidLeaderboardSort(by) {
		return nil, apperr.Newf(apperr.InvalidArgument, "unknown leaderboard sort %q", by)
	}
	if limit <= 0 || limit > 100 {
		limit = defaultLeaderboardLimit
	}

	entries, err := s.userRepo.Leaderboard(ctx, by, limit, entities.MinGamesForWinRate)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	for i, e := range entries {
		e.Rank = i + 1
	}
	return entries, nil
}
