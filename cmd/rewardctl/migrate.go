package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/shinyyama/community-reward-bot/internal/app"
	"github.com/shinyyama/community-reward-bot/internal/service"
	"github.com/shinyyama/community-reward-bot/internal/snowid"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().IntP("limit", "l", 0, "maximum items to backfill (0 uses MIGRATION_DEFAULT_LIMIT)")
}

var migrateCmd = &cobra.Command{
	Use:   "migrate CHANNEL_ID",
	Short: "Backfill a text or forum channel and reward its history",
	Long: `Runs a history backfill in the foreground. Items already recorded are
skipped, so an interrupted run can simply be started again.`,
	Args: cobra.ExactArgs(1),
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	channelID := args[0]
	if !snowid.Valid(channelID) {
		return fmt.Errorf("invalid channel id %q", channelID)
	}
	limit, _ := cmd.Flags().GetInt("limit")
	if limit < 0 {
		return errors.New("limit must be positive")
	}
	return withContainer(func(ctx context.Context, c *app.Container) error {
		info, err := c.Discord.ChannelInfo(ctx, channelID)
		if err != nil {
			return err
		}
		if info == nil {
			return service.ErrChannelNotFound
		}
		var run *service.MigrationRun
		switch info.Kind {
		case service.ChannelKindText:
			run, err = c.Services.Migrations.MigrateMessages(ctx, channelID, limit)
		case service.ChannelKindForum:
			run, err = c.Services.Migrations.MigrateForum(ctx, channelID, limit)
		default:
			return fmt.Errorf("%w: %s", service.ErrUnsupportedChannel, info.Type)
		}
		if run != nil {
			if perr := printJSON(cmd.OutOrStdout(), run); perr != nil {
				return perr
			}
		}
		return err
	})
}
