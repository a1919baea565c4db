// Package cli provides the command-line interface for the hotel monitor.
package cli

import (
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"hotel-monitor/config"
	"hotel-monitor/utils"
)

// App holds the state shared by every command
type App struct {
	ConfigPath string
	Debug      bool

	Config *config.Config
	Logger *utils.Logger
}

// NewRootCmd creates the root command with every subcommand attached
func NewRootCmd() *cobra.Command {
	app := &App{}

	rootCmd := &cobra.Command{
		Use:   "hotel-monitor",
		Short: "Room availability and price monitor",
		Long: `hotel-monitor checks one room type at one hotel across a list of
check-in dates, remembers the last result and mails you when a room opens
up or gets cheaper.

Run it from an external scheduler (cron, CI) with 'hotel-monitor run'.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&app.ConfigPath, "config", "", "path to config.json (default: ./config.json)")
	rootCmd.PersistentFlags().BoolVar(&app.Debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(newRunCmd(app))
	rootCmd.AddCommand(newStatusCmd(app))
	rootCmd.AddCommand(newServeCmd(app))
	rootCmd.AddCommand(newConfigCmd(app))
	return rootCmd
}

// load reads the configuration and builds the logger from it
func (a *App) load() error {
	cfg, err := config.Load(a.ConfigPath)
	if err != nil {
		a.Logger = utils.NewLogger()
		return errors.Wrap(err, "loading configuration")
	}
	a.Config = cfg
	a.Logger = utils.NewLoggerWithOptions(utils.LogOptions{
		Level:    cfg.Env.LogLevel,
		FilePath: cfg.Env.LogFile,
	})
	if a.Debug {
		a.Logger.SetDebug()
	}
	return nil
}
