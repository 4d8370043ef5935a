package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/shinyyama/community-reward-bot/internal/metrics"
	"github.com/shinyyama/community-reward-bot/internal/repository"
)

// AuditService checks that every balance equals its ledger sum.
type AuditService interface {
	RunOnce(ctx context.Context) ([]repository.LedgerMismatch, error)
	Start(schedule string) error
	Stop()
}

type auditService struct {
	rewards   repository.RewardRepository
	scheduler *gocron.Scheduler
	timeout   time.Duration
}

func NewAuditService(rewards repository.RewardRepository) AuditService {
	return &auditService{
		rewards:   rewards,
		scheduler: gocron.NewScheduler(time.UTC),
		timeout:   5 * time.Minute,
	}
}

func (s *auditService) RunOnce(ctx context.Context) ([]repository.LedgerMismatch, error) {
	mism, err := s.rewards.LedgerMismatches(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger audit: %w", err)
	}
	metrics.LedgerMismatches.Set(float64(len(mism)))
	for _, m := range mism {
		log.Printf("[audit] user=%d discord=%s current=%d ledger=%d diff=%d", m.UserID, m.DiscordID, m.CurrentReward, m.LedgerSum, m.CurrentReward-m.LedgerSum)
	}
	log.Printf("[audit] mismatches=%d", len(mism))
	return mism, nil
}

func (s *auditService) Start(schedule string) error {
	_, err := s.scheduler.Cron(schedule).Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if _, err := s.RunOnce(ctx); err != nil {
			log.Printf("[audit] stage=scheduled err=%v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule ledger audit: %w", err)
	}
	s.scheduler.StartAsync()
	return nil
}

func (s *auditService) Stop() {
	s.scheduler.Stop()
}
