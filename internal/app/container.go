package app

import (
	"fmt"
	"log"

	"github.com/shinyyama/community-reward-bot/internal/config"
	"github.com/shinyyama/community-reward-bot/internal/db"
	"github.com/shinyyama/community-reward-bot/internal/discord"
	"github.com/shinyyama/community-reward-bot/internal/repository"
	"github.com/shinyyama/community-reward-bot/internal/service"
	"gorm.io/gorm"
)

// Container holds the dependencies shared by the API process and rewardctl.
// Building it connects the database but does not open the Discord gateway.
type Container struct {
	Cfg     *config.Config
	DB      *gorm.DB
	Discord *discord.Client

	Repos struct {
		Users    repository.UserRepository
		Events   repository.ActivityEventRepository
		Rewards  repository.RewardRepository
		Levels   repository.LevelRepository
		Webhooks repository.WebhookRepository
	}

	Services struct {
		Levels     service.LevelService
		Rewards    service.RewardService
		Activity   service.ActivityService
		Migrations service.MigrationService
		Users      service.UserService
		Audit      service.AuditService
		Webhooks   service.WebhookService
	}
}

func New(cfg *config.Config) (*Container, error) {
	conn, err := db.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	if err := db.Migrate(conn); err != nil {
		return nil, fmt.Errorf("db migrate: %w", err)
	}
	dc, err := discord.New(cfg.DiscordToken, cfg.DiscordGuildID)
	if err != nil {
		return nil, fmt.Errorf("discord client: %w", err)
	}
	c := Wire(cfg, conn, dc)
	log.Printf("[app] driver=%s guild=%s", cfg.DBDriver, cfg.DiscordGuildID)
	return c, nil
}

// Wire builds repositories and services over an open database and client.
func Wire(cfg *config.Config, conn *gorm.DB, dc *discord.Client) *Container {
	c := &Container{Cfg: cfg, DB: conn, Discord: dc}

	c.Repos.Users = repository.NewUserRepository(conn)
	c.Repos.Events = repository.NewActivityEventRepository(conn)
	c.Repos.Rewards = repository.NewRewardRepository(conn)
	c.Repos.Levels = repository.NewLevelRepository(conn)
	c.Repos.Webhooks = repository.NewWebhookRepository(conn)

	c.Services.Levels = service.NewLevelService(c.Repos.Levels, c.Repos.Users, dc)
	c.Services.Rewards = service.NewRewardService(c.Repos.Rewards, c.Repos.Users, c.Services.Levels, service.RewardOptions{
		DailyCommentCap: cfg.DailyCommentCap,
	})
	c.Services.Activity = service.NewActivityService(c.Repos.Users, c.Repos.Events, c.Services.Rewards, dc)
	c.Services.Migrations = service.NewMigrationService(dc, c.Services.Activity, dc, service.MigrationOptions{
		PageDelay:        cfg.MigrationPageDelay,
		ThreadReplyLimit: cfg.MigrationThreadReplyLimit,
		DefaultLimit:     cfg.MigrationDefaultLimit,
	})
	c.Services.Users = service.NewUserService(c.Repos.Users, c.Services.Levels)
	c.Services.Audit = service.NewAuditService(c.Repos.Rewards)
	c.Services.Webhooks = service.NewWebhookService(c.Repos.Webhooks, dc, cfg.VercelIntegrationSecret, cfg.VercelNotificationChannelID)
	return c
}

// Close waits for background migrations, then releases the client and pool.
func (c *Container) Close() error {
	c.Services.Audit.Stop()
	c.Services.Migrations.Wait()
	if c.Discord != nil {
		if err := c.Discord.Close(); err != nil {
			log.Printf("[app] discord close err=%v", err)
		}
	}
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
