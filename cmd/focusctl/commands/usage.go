package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// NewUsageCmd creates the usage command with stats and prune subcommands
func NewUsageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Inspect and prune AI usage counters",
	}
	cmd.AddCommand(newUsageStatsCmd())
	cmd.AddCommand(newUsagePruneCmd())
	return cmd
}

func newUsageStatsCmd() *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show usage against the caps",
		Long:  "Show today's and this month's call counts for a user and globally.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, res, err := open(ctx, false)
			if err != nil {
				return err
			}
			defer closeResources(res)

			limiter, err := res.NewLimiter(cfg)
			if err != nil {
				return fmt.Errorf("create usage limiter: %w", err)
			}
			defer func() { _ = limiter.Close() }()

			return printJSON(cmd.OutOrStdout(), limiter.GetUsageStats(ctx, strings.ToLower(strings.TrimSpace(user))))
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "User ID (email); empty shows global counts only")
	return cmd
}

func newUsagePruneCmd() *cobra.Command {
	var keepDays int
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Drop usage counters older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, res, err := open(ctx, false)
			if err != nil {
				return err
			}
			defer closeResources(res)

			if keepDays <= 0 {
				keepDays = cfg.UsageKeepDays
			}
			limiter, err := res.NewLimiter(cfg)
			if err != nil {
				return fmt.Errorf("create usage limiter: %w", err)
			}
			defer func() { _ = limiter.Close() }()

			n, err := limiter.Prune(ctx, keepDays)
			if err != nil {
				return fmt.Errorf("prune usage: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d usage counters older than %d days.\n", n, keepDays)
			return nil
		},
	}
	cmd.Flags().IntVar(&keepDays, "keep-days", 0, "Days of counters to keep (default USAGE_KEEP_DAYS)")
	return cmd
}
