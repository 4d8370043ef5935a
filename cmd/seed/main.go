package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"github.com/shinyyama/community-reward-bot/internal/config"
	"github.com/shinyyama/community-reward-bot/internal/db"
	"github.com/shinyyama/community-reward-bot/internal/repository"
)

func main() {
	path := flag.String("file", "cmd/seed/seed.yaml", "seed file")
	flag.Parse()
	if err := run(*path); err != nil {
		log.Fatalf("seed failed: %v", err)
	}
}

func run(path string) error {
	ctx := context.Background()
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	gdb, err := db.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return fmt.Errorf("sql db: %w", err)
	}
	defer sqlDB.Close()
	if err := db.Migrate(gdb); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	f, err := loadSeedFile(path)
	if err != nil {
		return err
	}
	n, err := apply(ctx, repository.NewLevelRepository(gdb), repository.NewRewardRepository(gdb), f)
	if err != nil {
		return err
	}
	log.Printf("seeded roles=%d levels=%d channels=%d", n.roles, n.levels, n.channels)
	return nil
}
