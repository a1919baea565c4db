package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"hotel-monitor/notify"
	"hotel-monitor/scraper/daiwa"
	"hotel-monitor/services"
	"hotel-monitor/storage"
	"hotel-monitor/utils"
)

func newRunCmd(app *App) *cobra.Command {
	var dryRun, forceDigest bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Check every configured date once and notify on changes",
		Example: `  hotel-monitor run
  hotel-monitor run --dry-run
  hotel-monitor run --digest --config ./config.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.load(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runOnce(ctx, app, dryRun, forceDigest)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "log notifications instead of sending mail")
	cmd.Flags().BoolVar(&forceDigest, "digest", false, "send the status digest regardless of the report window")
	return cmd
}

func runOnce(ctx context.Context, app *App, dryRun, forceDigest bool) error {
	cfg, logger := app.Config, app.Logger
	start := time.Now()

	// ================== Bootstrap ====================
	logger.Info("%s / %s (%d adults)", cfg.Hotel.Name, cfg.Monitoring.RoomLabel, cfg.Monitoring.Adults)
	logger.Info("Dates: %d | Currencies: %v | Request delay: %dms | Retries: %d",
		len(cfg.Monitoring.CheckinDates)-1, cfg.Currencies(), cfg.Scraper.RequestDelayMs, cfg.Scraper.MaxRetries)

	// =================== Storage ========================================
	store := storage.NewJSONStateStore(cfg.Storage.StateFile, logger)
	history := []storage.HistoryRecorder{}
	if cfg.Storage.HistoryCSV != "" {
		history = append(history, storage.NewCSVWriter(cfg.Storage.HistoryCSV, logger))
	}
	if cfg.Storage.DatabaseURL != "" {
		db, err := storage.NewSQLHistory(cfg.Storage.DatabaseURL, logger)
		if err != nil {
			// history is best-effort; the run itself does not need it
			logger.Warn("History database unavailable: %v", err)
		} else {
			defer db.Close()
			if err := db.CreateTable(ctx); err != nil {
				logger.Warn("Failed to create history tables: %v", err)
			} else {
				history = append(history, db)
			}
		}
	}

	// =================== Notification ===================================
	clock := utils.NewRealClock()
	var channel notify.Channel = notify.NewEmailChannel(cfg.Mail, clock)
	if dryRun {
		channel = notify.NewLogChannel(logger)
	}

	// =============== Browser ===================================
	browser := daiwa.NewBrowser(cfg, logger)
	if err := browser.Start(ctx); err != nil {
		return errors.Wrap(err, "cannot launch browser")
	}
	defer browser.Close()

	resolver := services.NewResolver(
		browser,
		services.NewExtractor(),
		daiwa.URLBuilder(cfg.Hotel.BaseURL, cfg.Hotel.Code, cfg.Monitoring.Adults),
		services.ResolverOptions{
			Keywords:       cfg.Monitoring.RoomKeywords,
			Currencies:     cfg.Currencies(),
			StabilizeDelay: cfg.StabilizeDelay(),
			MaxRetries:     cfg.Scraper.MaxRetries,
		},
		logger,
	)

	// ==== Run ============================
	monitor := services.NewMonitor(cfg, resolver, store, history, channel, clock, logger)
	report, err := monitor.Run(ctx, services.RunOptions{ForceDigest: forceDigest})
	if report != nil {
		services.PrintRunReport(os.Stdout, report)
	}
	logger.Elapsed("Run", start)
	return err
}
