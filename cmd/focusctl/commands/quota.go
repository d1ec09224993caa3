package commands

import (
	"fmt"

	"github.com/benvon/focus-companion/internal/database"
	"github.com/benvon/focus-companion/internal/models"
	"github.com/spf13/cobra"
)

// NewQuotaCmd creates the quota command with get and set subcommands.
// Stored caps are picked up by running servers on their next reload.
func NewQuotaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quota",
		Short: "Manage usage caps stored in the database",
	}
	cmd.AddCommand(newQuotaGetCmd())
	cmd.AddCommand(newQuotaSetCmd())
	return cmd
}

func newQuotaGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Show the stored usage caps",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, res, err := open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer closeResources(res)
			if res.DB == nil {
				return fmt.Errorf("DATABASE_URL is required for quota commands")
			}

			c, err := database.NewQuotaConfigRepository(res.DB).Get(cmd.Context())
			if err != nil {
				return fmt.Errorf("get quota config: %w", err)
			}
			if c == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "No quota configuration in database. Use 'quota set' to add one.")
				return nil
			}
			return printJSON(cmd.OutOrStdout(), c.Limits)
		},
	}
}

func newQuotaSetCmd() *cobra.Command {
	var limits models.UsageLimits
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Update the stored usage caps",
		Long:  "Update the four usage caps. A cap of 0 disables that check. Unset flags keep the current value.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, res, err := open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer closeResources(res)
			if res.DB == nil {
				return fmt.Errorf("DATABASE_URL is required for quota commands")
			}

			repo := database.NewQuotaConfigRepository(res.DB)
			current := cfg.UsageLimits
			if stored, err := repo.Get(cmd.Context()); err != nil {
				return fmt.Errorf("get quota config: %w", err)
			} else if stored != nil {
				current = stored.Limits
			}

			flags := cmd.Flags()
			if flags.Changed("user-daily") {
				current.UserDaily = limits.UserDaily
			}
			if flags.Changed("user-monthly") {
				current.UserMonthly = limits.UserMonthly
			}
			if flags.Changed("global-daily") {
				current.GlobalDaily = limits.GlobalDaily
			}
			if flags.Changed("global-monthly") {
				current.GlobalMonthly = limits.GlobalMonthly
			}

			if err := repo.Set(cmd.Context(), current); err != nil {
				return fmt.Errorf("set quota config: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Quota configuration updated.")
			return printJSON(cmd.OutOrStdout(), current)
		},
	}
	cmd.Flags().IntVar(&limits.UserDaily, "user-daily", 0, "Calls per user per day")
	cmd.Flags().IntVar(&limits.UserMonthly, "user-monthly", 0, "Calls per user per month")
	cmd.Flags().IntVar(&limits.GlobalDaily, "global-daily", 0, "Calls across all users per day")
	cmd.Flags().IntVar(&limits.GlobalMonthly, "global-monthly", 0, "Calls across all users per month")
	return cmd
}
