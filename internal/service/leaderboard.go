package service

import (
	"context"
	"fmt"
	"iter"
	"log/slog"

	"github.com/sakif/climate-crew/internal/model"
	"github.com/sakif/climate-crew/internal/repository"
)

// LeaderboardService ranks users by points. Nothing is cached: points can
// change between any two calls.
type LeaderboardService struct {
	repo   repository.LeaderboardRepository
	logger *slog.Logger
}

func NewLeaderboardService(repo repository.LeaderboardRepository, logger *slog.Logger) *LeaderboardService {
	return &LeaderboardService{repo: repo, logger: logger}
}

// Rank returns a lazy, restartable sequence of ranked entries. Each range
// over it queries the store again. Ties keep registration order and still
// get distinct consecutive ranks.
//
// A storage error ends the sequence early and is logged; callers that need
// the error use Top.
func (s *LeaderboardService) Rank(ctx context.Context) iter.Seq[model.LeaderboardEntry] {
	return s.ranked(ctx, func(err error) {
		s.logger.Error("failed to rank users", slog.String("error", err.Error()))
	})
}

// ranked is Rank with the storage error handed to onErr.
func (s *LeaderboardService) ranked(ctx context.Context, onErr func(error)) iter.Seq[model.LeaderboardEntry] {
	return func(yield func(model.LeaderboardEntry) bool) {
		entries, err := s.repo.Standings(ctx)
		if err != nil {
			onErr(err)
			return
		}
		for i, e := range entries {
			e.Rank = i + 1
			if !yield(e) {
				return
			}
		}
	}
}

// Top collects the first n entries of the ranking. n <= 0 returns the
// whole ranking.
func (s *LeaderboardService) Top(ctx context.Context, n int) ([]model.LeaderboardEntry, error) {
	var rankErr error
	out := make([]model.LeaderboardEntry, 0)
	for e := range s.ranked(ctx, func(err error) { rankErr = err }) {
		out = append(out, e)
		if n > 0 && len(out) == n {
			break
		}
	}
	if rankErr != nil {
		return nil, fmt.Errorf("service/leaderboard: ranking users: %w", rankErr)
	}
	return out, nil
}
