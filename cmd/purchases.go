// File: cmd/purchases.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/flight-agent-cli/api/schemas"
	"github.com/xkilldash9x/flight-agent-cli/internal/observability"
	"github.com/xkilldash9x/flight-agent-cli/internal/store"
)

// newPurchasesCmd creates the `purchases` command, which lists recorded purchases.
func newPurchasesCmd(a *app) *cobra.Command {
	var limit int

	purchasesCmd := &cobra.Command{
		Use:   "purchases",
		Short: "Lists the most recent purchases recorded in the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive, got %d", limit)
			}
			cmd.SilenceUsage = true
			ctx := cmd.Context()

			url := a.cfg.Purchase().DatabaseURL
			if url == "" {
				return errors.New("no database configured: set purchase.database_url or FLIGHTAGENT_DATABASE_URL")
			}
			pool, err := store.Connect(ctx, url)
			if err != nil {
				return err
			}
			defer pool.Close()

			s, err := store.New(ctx, pool, nopPurchaser{}, observability.GetLogger())
			if err != nil {
				return err
			}
			purchases, err := s.RecentPurchases(ctx, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(purchases) == 0 {
				fmt.Fprintln(out, "No purchases recorded.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CONFIRMATION\tFLIGHT\tROUTE\tDATE\tSEAT\tPRICE\tPURCHASED")
			for _, p := range purchases {
				fmt.Fprintf(tw, "%s\t%s\t%s-%s\t%s\t%s\t$%d\t%s\n",
					p.ID, p.Flight.FlightNumber, p.Flight.Origin, p.Flight.Destination,
					p.Flight.Date, p.Seat, p.Flight.Price, p.PurchasedAt.Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		},
	}
	purchasesCmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of purchases to show")
	return purchasesCmd
}

// nopPurchaser backs a store that is only read from.
type nopPurchaser struct{}

func (nopPurchaser) Purchase(context.Context, schemas.FlightRecord, schemas.SeatPreference) (schemas.Confirmation, error) {
	return schemas.Confirmation{}, errors.New("purchases are read-only here")
}
