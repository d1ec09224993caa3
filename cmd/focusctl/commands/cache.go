package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/benvon/focus-companion/internal/cache"
	"github.com/spf13/cobra"
)

// NewCacheCmd creates the cache command with stats, cleanup and clear subcommands
func NewCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Maintain the AI response cache",
	}
	cmd.AddCommand(newCacheStatsCmd())
	cmd.AddCommand(newCacheCleanupCmd())
	cmd.AddCommand(newCacheClearCmd())
	return cmd
}

func withCache(ctx context.Context, fn func(*cache.ResponseCache) error) error {
	cfg, res, err := open(ctx, false)
	if err != nil {
		return err
	}
	defer closeResources(res)

	c, err := res.NewCache(cfg)
	if err != nil {
		return fmt.Errorf("create response cache: %w", err)
	}
	defer func() { _ = c.Close() }()
	return fn(c)
}

func newCacheStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache entry counts per feature",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCache(cmd.Context(), func(c *cache.ResponseCache) error {
				return printJSON(cmd.OutOrStdout(), c.Stats(cmd.Context()))
			})
		},
	}
}

func newCacheCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Remove expired cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCache(cmd.Context(), func(c *cache.ResponseCache) error {
				n, err := c.Cleanup(cmd.Context())
				if err != nil {
					return fmt.Errorf("cleanup cache: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired entries.\n", n)
				return nil
			})
		},
	}
}

func newCacheClearCmd() *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove cache entries for one user, or all entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			user = strings.ToLower(strings.TrimSpace(user))
			return withCache(cmd.Context(), func(c *cache.ResponseCache) error {
				n, err := c.Clear(cmd.Context(), user)
				if err != nil {
					return fmt.Errorf("clear cache: %w", err)
				}
				if user == "" {
					fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entries.\n", n)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entries for %s.\n", n, user)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "User ID (email); empty clears every entry")
	return cmd
}
