package cli

import (
	"github.com/spf13/cobra"

	"hotel-monitor/server"
	"hotel-monitor/storage"
)

func newServeCmd(app *App) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the last state and run history over HTTP",
		Example: `  hotel-monitor serve
  hotel-monitor serve --addr :9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.load(); err != nil {
				return err
			}
			cfg, logger := app.Config, app.Logger
			if addr != "" {
				cfg.Server.Addr = addr
			}

			store := storage.NewJSONStateStore(cfg.Storage.StateFile, logger)

			var reader storage.HistoryReader
			if cfg.Storage.DatabaseURL != "" {
				db, err := storage.NewSQLHistory(cfg.Storage.DatabaseURL, logger)
				if err != nil {
					logger.Warn("History database unavailable, history routes disabled: %v", err)
				} else {
					defer db.Close()
					if err := db.CreateTable(cmd.Context()); err != nil {
						return err
					}
					reader = db
				}
			}

			return server.New(cfg, store, reader, logger).Run()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}
