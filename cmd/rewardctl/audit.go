package main

import (
	"context"
	"fmt"

	"github.com/shinyyama/community-reward-bot/internal/app"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.Flags().Bool("strict", false, "exit non-zero when any balance disagrees with its ledger")
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Compare every user's balance with the sum of their reward history",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		strict, _ := cmd.Flags().GetBool("strict")
		return withContainer(func(ctx context.Context, c *app.Container) error {
			mism, err := c.Services.Audit.RunOnce(ctx)
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), mism); err != nil {
				return err
			}
			if strict && len(mism) > 0 {
				return fmt.Errorf("%d ledger mismatches", len(mism))
			}
			return nil
		})
	},
}
