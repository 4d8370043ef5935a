package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shinyyama/community-reward-bot/internal/app"
	"github.com/shinyyama/community-reward-bot/internal/config"
	"github.com/shinyyama/community-reward-bot/internal/server"
)

var (
	gitSHA    = "dev"
	buildTime = ""
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	c, err := app.New(cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}

	c.Discord.RegisterActivityHandlers(c.Services.Activity)
	if err := c.Discord.Open(); err != nil {
		log.Fatalf("discord open error: %v", err)
	}
	if err := c.Services.Audit.Start(cfg.AuditSchedule); err != nil {
		log.Printf("audit schedule error: %v", err)
	}

	srv := server.New(server.DepsFrom(c), gitSHA, buildTime)
	addr := ":" + cfg.Port

	errCh := make(chan error, 1)
	go func() {
		log.Printf("starting server on %s", addr)
		errCh <- srv.Start(addr)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("server stopped: %v", err)
		}
	case s := <-sig:
		log.Printf("received %s, shutting down", s)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}
	if err := c.Close(); err != nil {
		log.Printf("close error: %v", err)
	}
}
