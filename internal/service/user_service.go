package service

import (
	"context"
	"math"

	"github.com/shinyyama/community-reward-bot/internal/model"
	"github.com/shinyyama/community-reward-bot/internal/repository"
)

type UserProfile struct {
	User       *model.User    `json:"user"`
	Rank       int64          `json:"rank"`
	TotalUsers int64          `json:"totalUsers"`
	Percentile int            `json:"percentile"`
	Progress   *LevelProgress `json:"progress"`
}

type UserService interface {
	Profile(ctx context.Context, discordID string) (*UserProfile, error)
	Leaderboard(ctx context.Context, limit, offset int) ([]model.User, int64, error)
}

type userService struct {
	users  repository.UserRepository
	levels LevelService
}

func NewUserService(users repository.UserRepository, levels LevelService) UserService {
	return &userService{users: users, levels: levels}
}

// Profile ranks the user among all users: rank is one more than the number of
// users holding more reward.
func (s *userService) Profile(ctx context.Context, discordID string) (*UserProfile, error) {
	u, err := s.users.FindByDiscordID(ctx, discordID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrNotFound
	}
	above, err := s.users.CountAbove(ctx, u.CurrentReward)
	if err != nil {
		return nil, err
	}
	total, err := s.users.Count(ctx)
	if err != nil {
		return nil, err
	}
	p := &UserProfile{User: u, Rank: above + 1, TotalUsers: total}
	if total > 0 {
		p.Percentile = int(math.Round(float64(total-p.Rank+1) / float64(total) * 100))
	}
	if s.levels != nil {
		prog, err := s.levels.Progress(ctx, u)
		if err != nil {
			return nil, err
		}
		p.Progress = prog
	}
	return p, nil
}

func (s *userService) Leaderboard(ctx context.Context, limit, offset int) ([]model.User, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}
	return s.users.Leaderboard(ctx, limit, offset)
}
