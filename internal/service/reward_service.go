package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shinyyama/community-reward-bot/internal/metrics"
	"github.com/shinyyama/community-reward-bot/internal/model"
	"github.com/shinyyama/community-reward-bot/internal/repository"
	"gorm.io/gorm"
)

type Decision string

const (
	DecisionGranted              Decision = "granted"
	DecisionChannelNotRewardable Decision = "channel_not_rewardable"
	DecisionZeroAmount           Decision = "zero_amount"
	DecisionDailyCapReached      Decision = "daily_cap_reached"
)

// RewardInput is one activity event to price. OccurredAt is the source
// timestamp and drives the promotion rule.
type RewardInput struct {
	UserID     uint64
	ChannelID  string
	EventType  model.EventType
	OccurredAt time.Time
	EventID    *uint64
}

type RewardOutcome struct {
	Decision Decision
	Amount   int64
	Promoted bool
	Grant    *GrantResult
}

type GrantRequest struct {
	UserID  uint64
	Amount  int64
	Type    model.RewardType
	Reason  string
	EventID *uint64
}

// GrantResult separates the committed grant from its side effects.
type GrantResult struct {
	User    *model.User
	History *model.RewardHistory
	LevelUp LevelUpResult
}

// SideEffectErr is the level/role failure, if any. The grant stands either way.
func (g *GrantResult) SideEffectErr() error {
	return g.LevelUp.Err
}

type RewardOptions struct {
	DailyCommentCap int64
	Now             func() time.Time
}

type RewardService interface {
	ProcessReward(ctx context.Context, in RewardInput) (*RewardOutcome, error)
	Grant(ctx context.Context, req GrantRequest) (*GrantResult, error)
	GrantManual(ctx context.Context, discordID string, amount int64, reason string) (*GrantResult, error)
	History(ctx context.Context, discordID string, limit, offset int) ([]model.RewardHistory, int64, error)
	ChannelStats(ctx context.Context, channelID string) (*repository.ChannelRewardStats, error)
	SetRewardableChannel(ctx context.Context, ch *model.RewardableChannel) error
}

type rewardService struct {
	rewards  repository.RewardRepository
	users    repository.UserRepository
	levels   LevelService
	dailyCap int64
	now      func() time.Time
}

func NewRewardService(rewards repository.RewardRepository, users repository.UserRepository, levels LevelService, opts RewardOptions) RewardService {
	if opts.DailyCommentCap <= 0 {
		opts.DailyCommentCap = DefaultDailyCommentCap
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &rewardService{
		rewards:  rewards,
		users:    users,
		levels:   levels,
		dailyCap: opts.DailyCommentCap,
		now:      opts.Now,
	}
}

// ProcessReward runs the pipeline for one event: channel policy, promotion,
// daily comment cap, then the ledger. Not-rewardable outcomes return a nil
// error.
func (s *rewardService) ProcessReward(ctx context.Context, in RewardInput) (*RewardOutcome, error) {
	ch, err := s.rewards.GetRewardableChannel(ctx, in.ChannelID)
	if err != nil {
		return nil, fmt.Errorf("load channel %s: %w", in.ChannelID, err)
	}
	if !Rewardable(ch) {
		return s.skip(DecisionChannelNotRewardable, in), nil
	}

	base := BaseRewardAmount(ch, in.EventType)
	if base <= 0 {
		return s.skip(DecisionZeroAmount, in), nil
	}
	mult := RewardMultiplier(in.OccurredAt)
	amount := base * mult

	if in.EventType == model.EventTypeComment {
		from, to := DayWindowUTC(s.now())
		used, err := s.rewards.SumAmountBetween(ctx, in.UserID, model.RewardTypeComment, from, to)
		if err != nil {
			return nil, fmt.Errorf("sum daily comments: %w", err)
		}
		var ok bool
		if amount, ok = ClampToCap(amount, used, s.dailyCap); !ok {
			return s.skip(DecisionDailyCapReached, in), nil
		}
	}

	grant, err := s.Grant(ctx, GrantRequest{
		UserID:  in.UserID,
		Amount:  amount,
		Type:    model.RewardType(in.EventType),
		Reason:  RewardReason(in.EventType, mult > 1),
		EventID: in.EventID,
	})
	if err != nil {
		return nil, err
	}
	return &RewardOutcome{Decision: DecisionGranted, Amount: amount, Promoted: mult > 1, Grant: grant}, nil
}

func (s *rewardService) skip(d Decision, in RewardInput) *RewardOutcome {
	metrics.RewardSkipped.WithLabelValues(string(d)).Inc()
	log.Printf("[reward] user=%d channel=%s type=%s skipped=%s", in.UserID, in.ChannelID, in.EventType, d)
	return &RewardOutcome{Decision: d}
}

// Grant commits one ledger entry, then runs the level trigger outside the
// transaction.
func (s *rewardService) Grant(ctx context.Context, req GrantRequest) (*GrantResult, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	user, hist, err := s.rewards.Grant(ctx, repository.GrantParams{
		UserID:    req.UserID,
		Amount:    req.Amount,
		Type:      req.Type,
		Reason:    req.Reason,
		EventID:   req.EventID,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrDuplicatedKey):
			return nil, ErrAlreadyRewarded
		case errors.Is(err, gorm.ErrRecordNotFound):
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("grant user=%d: %w", req.UserID, err)
	}
	metrics.RewardGrants.WithLabelValues(string(req.Type)).Inc()
	metrics.RewardPoints.WithLabelValues(string(req.Type)).Add(float64(req.Amount))
	log.Printf("[reward] user=%d amount=%d type=%s total=%d", user.ID, req.Amount, req.Type, user.CurrentReward)

	res := &GrantResult{User: user, History: hist}
	if s.levels != nil {
		res.LevelUp = s.levels.CheckLevelUp(ctx, user)
	}
	return res, nil
}

func (s *rewardService) GrantManual(ctx context.Context, discordID string, amount int64, reason string) (*GrantResult, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	user, err := s.users.FindByDiscordID(ctx, discordID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrNotFound
	}
	if reason == "" {
		reason = "manual grant"
	}
	return s.Grant(ctx, GrantRequest{UserID: user.ID, Amount: amount, Type: model.RewardTypeManual, Reason: reason})
}

func (s *rewardService) History(ctx context.Context, discordID string, limit, offset int) ([]model.RewardHistory, int64, error) {
	user, err := s.users.FindByDiscordID(ctx, discordID)
	if err != nil {
		return nil, 0, err
	}
	if user == nil {
		return nil, 0, ErrNotFound
	}
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}
	return s.rewards.ListHistory(ctx, user.ID, limit, offset)
}

func (s *rewardService) ChannelStats(ctx context.Context, channelID string) (*repository.ChannelRewardStats, error) {
	return s.rewards.ChannelStats(ctx, channelID)
}

func (s *rewardService) SetRewardableChannel(ctx context.Context, ch *model.RewardableChannel) error {
	if ch.ChannelID == "" {
		return errors.New("channel id is required")
	}
	if ch.MessageRewardAmount < 0 || ch.CommentRewardAmount < 0 || ch.ForumPostRewardAmount < 0 {
		return ErrInvalidAmount
	}
	return s.rewards.UpsertRewardableChannel(ctx, ch)
}
