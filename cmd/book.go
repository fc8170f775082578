// File: cmd/book.go
package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/flight-agent-cli/api/schemas"
	"github.com/xkilldash9x/flight-agent-cli/internal/booking"
	"github.com/xkilldash9x/flight-agent-cli/internal/console"
	"github.com/xkilldash9x/flight-agent-cli/internal/observability"
	"github.com/xkilldash9x/flight-agent-cli/internal/source"
)

// newBookCmd creates the interactive `book` command.
func newBookCmd(a *app) *cobra.Command {
	var origin, destination, date string

	bookCmd := &cobra.Command{
		Use:   "book",
		Short: "Searches the listing for the cheapest matching flight and books it",
		Example: `  flightagent book --origin BOS --destination YYZ --date 2025-01-10
  flightagent book --origin SFO --destination ANC --date 2025-01-20 --source-url https://example.com/deals`,
		Args: cobra.NoArgs,
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
			out := cmd.OutOrStdout()

			day, err := schemas.ParseDate(date)
			if err != nil {
				return err
			}
			provider := source.NewFromConfig(a.cfg.Source())
			listing, err := provider.Text(ctx)
			if err != nil {
				return err
			}
			criteria, err := schemas.NewSearchCriteria(strings.ToUpper(origin), strings.ToUpper(destination), day, listing)
			if err != nil {
				return err
			}
			logger.Info("Loaded flight listing", zap.String("source", provider.Describe()), zap.Int("bytes", len(listing)))

			components, err := initializeComponents(ctx, a.cfg, logger)
			defer components.Shutdown()
			if err != nil {
				return err
			}

			prompter := console.New(cmd.InOrStdin(), out)
			searcher, err := booking.NewSearcher(components.LLM, components.Extractor, logger, components.Options)
			if err != nil {
				return err
			}
			seats, err := booking.NewSeatSelector(components.LLM, prompter, logger, components.Options)
			if err != nil {
				return err
			}
			purchaser, err := components.purchaser(ctx, a.cfg, booking.NewLogPurchaser(out, logger))
			if err != nil {
				return fmt.Errorf("failed to initialize purchase store: %w", err)
			}

			session, err := booking.NewSession(booking.SessionConfig{
				Searcher:  searcher,
				Seats:     seats,
				Purchaser: purchaser,
				Prompter:  prompter,
				Limits:    a.cfg.Budget(),
				Logger:    logger,
			})
			if err != nil {
				return err
			}

			outcome, err := session.Run(ctx, criteria)
			if err != nil {
				return err
			}

			if outcome.Status == booking.OutcomePurchased {
				fmt.Fprintf(out, "Booked %s, seat %s. Confirmation: %s\n", outcome.Flight.FlightNumber, outcome.Seat, outcome.Confirmation.ID)
			}
			u := outcome.Usage
			fmt.Fprintf(out, "Usage: %d requests, %d request tokens, %d response tokens, %d total tokens\n",
				u.Requests, u.RequestTokens, u.ResponseTokens, u.TotalTokens)
			return nil
		},
	}

	bookCmd.Flags().StringVar(&origin, "origin", "", "Three-letter origin airport code (required)")
	bookCmd.Flags().StringVar(&destination, "destination", "", "Three-letter destination airport code (required)")
	bookCmd.Flags().StringVar(&date, "date", "", "Departure date as YYYY-MM-DD (required)")
	_ = bookCmd.MarkFlagRequired("origin")
	_ = bookCmd.MarkFlagRequired("destination")
	_ = bookCmd.MarkFlagRequired("date")
	addSourceFlags(bookCmd)

	return bookCmd
}
