package server

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shinyyama/community-reward-bot/internal/app"
	"github.com/shinyyama/community-reward-bot/internal/handler"
	appmw "github.com/shinyyama/community-reward-bot/internal/middleware"
	"github.com/shinyyama/community-reward-bot/internal/service"
)

type Server struct {
	e *echo.Echo
}

// Deps are the services the HTTP surface needs. Source and Status are the
// Discord adapter in production.
type Deps struct {
	Migrations service.MigrationService
	Rewards    service.RewardService
	Users      service.UserService
	Webhooks   service.WebhookService
	Source     service.ActivitySource
	Status     service.StatusReporter

	APIKey       string
	AdminKey     string
	DefaultLimit int
}

// DepsFrom picks the HTTP dependencies out of the process container.
func DepsFrom(c *app.Container) Deps {
	return Deps{
		Migrations:   c.Services.Migrations,
		Rewards:      c.Services.Rewards,
		Users:        c.Services.Users,
		Webhooks:     c.Services.Webhooks,
		Source:       c.Discord,
		Status:       c.Discord,
		APIKey:       c.Cfg.APISecretKey,
		AdminKey:     c.Cfg.AdminKey(),
		DefaultLimit: c.Cfg.MigrationDefaultLimit,
	}
}

func allowOrigin(origin string) (bool, error) {
	low := strings.ToLower(origin)
	if strings.HasPrefix(low, "http://localhost:") || strings.HasPrefix(low, "http://127.0.0.1:") ||
		strings.HasPrefix(low, "https://localhost:") || strings.HasPrefix(low, "https://127.0.0.1:") {
		return true, nil
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false, nil
	}
	if u.Scheme != "https" {
		return false, nil
	}
	return strings.HasSuffix(u.Hostname(), ".vercel.app"), nil
}

func New(d Deps, sha, buildTime string) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowMethods:    []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowHeaders:    []string{"Content-Type", "Authorization", "X-Admin-Key"},
		AllowOriginFunc: allowOrigin,
	}))

	auth := appmw.NewAuthMiddleware(d.APIKey, d.AdminKey)
	migrationHandler := handler.NewMigrationHandler(d.Migrations, d.Source, d.Status, d.DefaultLimit)
	userHandler := handler.NewUserHandler(d.Users, d.Rewards)
	channelHandler := handler.NewChannelHandler(d.Rewards)
	webhookHandler := handler.NewWebhookHandler(d.Webhooks)

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"ok":         "true",
			"git_sha":    sha,
			"build_time": buildTime,
		})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api")
	api.POST("/vercel-webhook", webhookHandler.Vercel)

	dc := api.Group("/discord")
	dc.GET("/health", migrationHandler.Health)
	dc.POST("/migrate", migrationHandler.Migrate, auth.RequireAPIKey, auth.RequireAdmin)
	dc.GET("/status", migrationHandler.Status, auth.RequireAPIKey)
	dc.GET("/channels/:channelId", migrationHandler.ChannelInfo, auth.RequireAPIKey)
	dc.GET("/migrations", migrationHandler.ListRuns, auth.RequireAPIKey)
	dc.GET("/migrations/:id", migrationHandler.GetRun, auth.RequireAPIKey)

	api.GET("/leaderboard", userHandler.Leaderboard, auth.RequireAPIKey)
	api.GET("/users/:discordId", userHandler.Profile, auth.RequireAPIKey)
	api.GET("/users/:discordId/rewards", userHandler.Rewards, auth.RequireAPIKey)
	api.POST("/users/:discordId/rewards", userHandler.Grant, auth.RequireAPIKey, auth.RequireAdmin)
	api.GET("/channels/:channelId/reward-stats", channelHandler.RewardStats, auth.RequireAPIKey)
	api.PUT("/channels/:channelId", channelHandler.Upsert, auth.RequireAPIKey, auth.RequireAdmin)

	return &Server{e: e}
}

func (s *Server) Start(addr string) error {
	return s.e.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}

func (s *Server) Handler() http.Handler {
	return s.e
}
