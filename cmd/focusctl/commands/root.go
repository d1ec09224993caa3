package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/benvon/focus-companion/internal/bootstrap"
	"github.com/benvon/focus-companion/internal/config"
	"github.com/spf13/cobra"
)

// NewRootCmd builds the focusctl command tree
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "focusctl",
		Short:         "Administration tool for the Focus Companion AI backend",
		Long:          "CLI tool for inspecting AI usage, maintaining the response cache and managing quotas",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(NewUsageCmd())
	rootCmd.AddCommand(NewCacheCmd())
	rootCmd.AddCommand(NewFeaturesCmd())
	rootCmd.AddCommand(NewQuotaCmd())
	rootCmd.AddCommand(NewLedgerCmd())
	rootCmd.AddCommand(NewMigrateCmd())
	return rootCmd
}

// open loads config and connects to whatever it names
func open(ctx context.Context, migrate bool) (*config.Config, *bootstrap.Resources, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	res, err := bootstrap.Open(ctx, cfg, migrate, nil)
	if err != nil {
		return nil, nil, err
	}
	return cfg, res, nil
}

func closeResources(res *bootstrap.Resources) {
	if err := res.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
