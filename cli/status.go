package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"hotel-monitor/services"
	"hotel-monitor/storage"
)

func newStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the last persisted result for every date",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.load(); err != nil {
				return err
			}
			store := storage.NewJSONStateStore(app.Config.Storage.StateFile, app.Logger)
			snap, err := store.Load(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(os.Stdout, "%s / %s\n", app.Config.Hotel.Name, app.Config.Monitoring.RoomLabel)
			services.PrintSnapshot(os.Stdout, snap)

			sum := services.Summarize(snap)
			fmt.Fprintf(os.Stdout, "\n  Available: %d/%d dates, failed: %d\n", sum.AvailableDates, sum.TotalDates, sum.FailedDates)
			for _, cur := range app.Config.Currencies() {
				if rec, ok := sum.Cheapest[cur]; ok {
					fmt.Fprintf(os.Stdout, "  Cheapest %s: %s on %s\n", cur, services.FormatPrice(rec.Price, rec.Currency), rec.Date)
				}
			}
			return nil
		},
	}
}
