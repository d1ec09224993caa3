package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/benvon/focus-companion/internal/models"
	"github.com/spf13/cobra"
)

// NewFeaturesCmd creates the features command
func NewFeaturesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "features",
		Short: "Inspect AI feature toggles",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List features and whether the AI is used for them",
		Long:  "List every feature with its toggle after FEATURES_FILE overrides are applied.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, res, err := open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer closeResources(res)

			limiter, err := res.NewLimiter(cfg)
			if err != nil {
				return fmt.Errorf("create usage limiter: %w", err)
			}
			defer func() { _ = limiter.Close() }()

			toggles := limiter.Features()
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "FEATURE\tAI")
			for _, f := range models.AllFeatures {
				state := "off"
				if toggles[f] {
					state = "on"
				}
				fmt.Fprintf(tw, "%s\t%s\n", f, state)
			}
			return tw.Flush()
		},
	})
	return cmd
}
