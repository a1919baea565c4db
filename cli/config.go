package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"hotel-monitor/notify"
	"hotel-monitor/utils"
)

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration helpers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Load and validate the configuration, then print the effective settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.load(); err != nil {
				return err
			}
			cfg := app.Config
			out := os.Stdout
			fmt.Fprintln(out, "Configuration OK")
			fmt.Fprintf(out, "  Hotel      : %s (code %s)\n", cfg.Hotel.Name, cfg.Hotel.Code)
			fmt.Fprintf(out, "  Room       : %s, %d adults, keywords %v\n", cfg.Monitoring.RoomLabel, cfg.Monitoring.Adults, cfg.Monitoring.RoomKeywords)
			fmt.Fprintf(out, "  Dates      : %v (last is checkout only)\n", cfg.Monitoring.CheckinDates)
			fmt.Fprintf(out, "  Currencies : %v\n", cfg.Currencies())
			fmt.Fprintf(out, "  Digest     : hours %v, first %d min, %s\n", cfg.Schedule.ReportHours, cfg.Schedule.ReportWindowMinutes, cfg.Schedule.Timezone)
			fmt.Fprintf(out, "  State file : %s\n", cfg.Storage.StateFile)
			if !notify.NewEmailChannel(cfg.Mail, utils.NewRealClock()).Configured() {
				fmt.Fprintln(out, "  Mail       : not configured, notifications will be skipped")
			}
			return nil
		},
	})
	return cmd
}

