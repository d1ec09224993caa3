package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/benvon/focus-companion/internal/database"
	"github.com/spf13/cobra"
)

// NewLedgerCmd creates the ledger command
func NewLedgerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Report on the api_usage ledger",
	}

	var days int
	summary := &cobra.Command{
		Use:   "summary",
		Short: "Summarise AI calls, tokens and cost per user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if days < 1 {
				return fmt.Errorf("--days must be at least 1")
			}
			_, res, err := open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer closeResources(res)
			if res.DB == nil {
				return fmt.Errorf("DATABASE_URL is required for ledger commands")
			}

			rows, err := database.NewAPIUsageRepository(res.DB).Summary(cmd.Context(), time.Now().AddDate(0, 0, -days))
			if err != nil {
				return fmt.Errorf("summarise ledger: %w", err)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "USER\tCALLS\tFAILURES\tTOKENS\tCOST_USD")
			for _, r := range rows {
				fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\n", r.UserID, r.Calls, r.Failures, r.TokensUsed, r.CostUSD.StringFixed(4))
			}
			return tw.Flush()
		},
	}
	summary.Flags().IntVar(&days, "days", 30, "Window in days")
	cmd.AddCommand(summary)
	return cmd
}
