package service

import (
	"context"
	"fmt"
	"log"
	"math"

	"github.com/shinyyama/community-reward-bot/internal/metrics"
	"github.com/shinyyama/community-reward-bot/internal/model"
	"github.com/shinyyama/community-reward-bot/internal/repository"
)

// LevelUpResult reports what the level trigger did after a grant. Err holds
// the first side-effect failure; it never means the grant was undone.
type LevelUpResult struct {
	Changed      bool
	OldLevel     int
	NewLevel     int
	LevelName    string
	RoleID       string
	RoleAssigned bool
	Notified     bool
	Err          error
}

type LevelProgress struct {
	Level              int     `json:"level"`
	LevelName          string  `json:"levelName"`
	CurrentLevelReward int64   `json:"currentLevelReward"`
	NextLevelReward    int64   `json:"nextLevelReward"`
	Progress           int64   `json:"progress"`
	ProgressPercentage float64 `json:"progressPercentage"`
}

type LevelService interface {
	CheckLevelUp(ctx context.Context, user *model.User) LevelUpResult
	Progress(ctx context.Context, user *model.User) (*LevelProgress, error)
}

type levelService struct {
	levels   repository.LevelRepository
	users    repository.UserRepository
	notifier RoleNotifier
}

func NewLevelService(levels repository.LevelRepository, users repository.UserRepository, notifier RoleNotifier) LevelService {
	return &levelService{levels: levels, users: users, notifier: notifier}
}

// CheckLevelUp raises the stored level when the balance qualifies for a
// higher rung, then assigns the rung's role and DMs the member. Role and DM
// failures are logged and reported, never returned as errors.
func (s *levelService) CheckLevelUp(ctx context.Context, user *model.User) LevelUpResult {
	res := LevelUpResult{OldLevel: user.CurrentLevel, NewLevel: user.CurrentLevel}

	lv, err := s.levels.LevelForReward(ctx, user.CurrentReward)
	if err != nil {
		res.Err = fmt.Errorf("resolve level: %w", err)
		log.Printf("[level] user=%d stage=resolve err=%v", user.ID, err)
		return res
	}
	target := 1
	if lv != nil {
		target = lv.LevelNumber
	}
	if target <= user.CurrentLevel {
		return res
	}

	applied, err := s.users.UpdateLevel(ctx, user.ID, target)
	if err != nil {
		res.Err = fmt.Errorf("update level: %w", err)
		log.Printf("[level] user=%d stage=update err=%v", user.ID, err)
		return res
	}
	if !applied {
		// a concurrent grant got there first
		return res
	}
	res.Changed = true
	res.NewLevel = target
	res.LevelName = lv.LevelName
	user.CurrentLevel = target
	metrics.LevelUps.Inc()
	log.Printf("[level] user=%d discord=%s level=%d->%d", user.ID, user.DiscordID, res.OldLevel, target)

	if lv.Role == nil || s.notifier == nil {
		return res
	}
	res.RoleID = lv.Role.DiscordRoleID
	if err := s.notifier.AssignRole(ctx, user.DiscordID, lv.Role.DiscordRoleID); err != nil {
		res.Err = fmt.Errorf("assign role %s: %w", lv.Role.DiscordRoleID, err)
		metrics.SideEffectFailures.WithLabelValues("role").Inc()
		log.Printf("[level] user=%d role=%s stage=assign err=%v", user.ID, lv.Role.DiscordRoleID, err)
		return res
	}
	res.RoleAssigned = true

	msg := fmt.Sprintf("🎉 Congratulations! You reached level %d (%s) and earned the **%s** role!", target, lv.LevelName, lv.Role.RoleName)
	res.Notified = s.notifier.SendDirectMessage(ctx, user.DiscordID, msg)
	if !res.Notified {
		metrics.SideEffectFailures.WithLabelValues("dm").Inc()
		log.Printf("[level] user=%d stage=dm delivered=false", user.ID)
	}
	return res
}

// Progress reports how far the user is between their level and the next.
func (s *levelService) Progress(ctx context.Context, user *model.User) (*LevelProgress, error) {
	out := &LevelProgress{Level: user.CurrentLevel}
	cur, err := s.levels.FindByNumber(ctx, user.CurrentLevel)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return out, nil
	}
	out.LevelName = cur.LevelName
	out.CurrentLevelReward = cur.RequiredRewardAmount
	out.NextLevelReward = cur.RequiredRewardAmount
	out.Progress = user.CurrentReward - cur.RequiredRewardAmount

	next, err := s.levels.NextAfter(ctx, user.CurrentLevel)
	if err != nil {
		return nil, err
	}
	if next == nil {
		out.ProgressPercentage = 100
		return out, nil
	}
	out.NextLevelReward = next.RequiredRewardAmount
	span := next.RequiredRewardAmount - cur.RequiredRewardAmount
	if span <= 0 {
		out.ProgressPercentage = 100
		return out, nil
	}
	pct := float64(out.Progress) / float64(span) * 100
	out.ProgressPercentage = math.Max(0, math.Min(pct, 100))
	return out, nil
}
