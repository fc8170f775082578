// File: cmd/extract.go
package cmd

import (
	"github.com/spf13/cobra"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/flight-agent-cli/internal/observability"
	"github.com/xkilldash9x/flight-agent-cli/internal/source"
	"github.com/xkilldash9x/flight-agent-cli/internal/usage"
)

// newExtractCmd creates the `extract` command, which prints every flight in the listing as JSON.
func newExtractCmd(a *app) *cobra.Command {
	extractCmd := &cobra.Command{
		Use:   "extract",
		Short: "Extracts every flight in the listing and prints them as JSON",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.bindSourceFlags(cmd); err != nil {
				return err
			}
			return a.reload()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			ctx := cmd.Context()
			logger := observability.GetLogger()

			provider := source.NewFromConfig(a.cfg.Source())
			listing, err := provider.Text(ctx)
			if err != nil {
				return err
			}

			components, err := initializeComponents(ctx, a.cfg, logger)
			defer components.Shutdown()
			if err != nil {
				return err
			}

			budget := usage.NewBudget(a.cfg.Budget())
			flights, err := components.Extractor.Extract(ctx, listing, budget)
			if err != nil {
				return err
			}
			logger.Info("Extraction finished", zap.String("source", provider.Describe()), zap.Any("usage", budget.Snapshot()))

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(flights)
		},
	}
	addSourceFlags(extractCmd)
	return extractCmd
}
