package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/shinyyama/community-reward-bot/internal/app"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(grantCmd)
	rootCmd.AddCommand(channelsCmd)
	grantCmd.Flags().StringP("reason", "r", "", "ledger reason")
	channelsCmd.Flags().Bool("active", false, "only list active channels")
}

var grantCmd = &cobra.Command{
	Use:   "grant DISCORD_ID AMOUNT",
	Short: "Credit a manual reward and run the level-up check",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("amount: %w", err)
		}
		reason, _ := cmd.Flags().GetString("reason")
		return withContainer(func(ctx context.Context, c *app.Container) error {
			res, err := c.Services.Rewards.GrantManual(ctx, args[0], amount, reason)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "user=%s reward=%d level=%d\n", res.User.DiscordID, res.User.CurrentReward, res.User.CurrentLevel)
			if res.LevelUp.Changed {
				fmt.Fprintf(out, "level up %d -> %d role_assigned=%v dm=%v\n", res.LevelUp.OldLevel, res.LevelUp.NewLevel, res.LevelUp.RoleAssigned, res.LevelUp.Notified)
			}
			if se := res.SideEffectErr(); se != nil {
				fmt.Fprintf(out, "warning: %v\n", se)
			}
			return nil
		})
	},
}

var channelsCmd = &cobra.Command{
	Use:   "channels",
	Short: "List rewardable channel configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		activeOnly, _ := cmd.Flags().GetBool("active")
		return withContainer(func(ctx context.Context, c *app.Container) error {
			list, err := c.Repos.Rewards.ListRewardableChannels(ctx, activeOnly)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), list)
		})
	},
}
