package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/shinyyama/community-reward-bot/internal/app"
	"github.com/shinyyama/community-reward-bot/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "rewardctl",
	Short:        "Operate the community reward engine",
	Long:         `rewardctl runs backfills, ledger audits and manual grants against the reward database without starting the API server.`,
	SilenceUsage: true,
}

// withContainer builds the shared dependencies for one command. SIGINT
// cancels the context, which stops a running backfill between items.
func withContainer(fn func(ctx context.Context, c *app.Container) error) error {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	c, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return fn(ctx, c)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
