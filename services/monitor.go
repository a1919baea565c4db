package services

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"hotel-monitor/config"
	"hotel-monitor/models"
	"hotel-monitor/notify"
	"hotel-monitor/storage"
	"hotel-monitor/utils"
)

// DateResolver produces the record for one stay (checkin → checkout)
type DateResolver interface {
	Resolve(ctx context.Context, checkin, checkout string) (models.CheckinRecord, error)
}

// RunOptions alter a single run
type RunOptions struct {
	ForceDigest bool
}

// Monitor drives one run: check every date in order, persist, diff, notify
type Monitor struct {
	cfg      *config.Config
	resolver DateResolver
	store    storage.StateStore
	history  []storage.HistoryRecorder
	channel  notify.Channel
	clock    utils.Clock
	limiter  *utils.RateLimiter
	logger   *utils.Logger
}

// NewMonitor creates a Monitor. history may be empty.
func NewMonitor(
	cfg *config.Config,
	resolver DateResolver,
	store storage.StateStore,
	history []storage.HistoryRecorder,
	channel notify.Channel,
	clock utils.Clock,
	logger *utils.Logger,
) *Monitor {
	return &Monitor{
		cfg:      cfg,
		resolver: resolver,
		store:    store,
		history:  history,
		channel:  channel,
		clock:    clock,
		limiter:  utils.NewRateLimiter(cfg.Scraper.RequestDelayMs),
		logger:   logger,
	}
}

// Run performs one full monitoring pass. Individual date failures never
// abort the run; only a state load/save failure is returned as an error, and
// even then notifications are still attempted. An interrupted run keeps the
// previous state untouched and sends nothing.
func (m *Monitor) Run(ctx context.Context, opts RunOptions) (*models.RunReport, error) {
	report := &models.RunReport{
		RunID:     uuid.NewString(),
		StartedAt: m.clock.Now(),
	}
	log := m.logger.With("run", report.RunID[:8])

	previous, err := m.store.Load(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "loading previous state")
	}

	dates := m.cfg.Monitoring.CheckinDates
	current := make(models.Snapshot, len(dates))
	for i := 0; i+1 < len(dates) && ctx.Err() == nil; i++ {
		checkin, checkout := dates[i], dates[i+1]

		if err := m.limiter.Wait(ctx); err != nil {
			break
		}
		log.Info("Checking %s ~ %s ...", checkin, checkout)

		rec := m.checkDate(ctx, checkin, checkout)
		m.limiter.Done()
		if rec.Error != "" {
			report.Failed++
			log.Warn("  %s: %s", checkin, rec.Error)
		}
		log.Info("  %s: available=%v price=%s", checkin, rec.IsAvailable, FormatPrice(rec.Price, rec.Currency))
		current[checkin] = rec
	}
	report.Snapshot = current
	report.FinishedAt = m.clock.Now()

	if err := ctx.Err(); err != nil {
		// a partial snapshot would read as sold out next run and re-trigger releases
		log.Warn("Run interrupted after %d date(s), previous state kept", len(current))
		return report, errors.Wrap(err, "run interrupted")
	}

	saveErr := m.store.Save(ctx, current)
	if saveErr != nil {
		log.Error("Failed to persist state: %v", saveErr)
	}

	report.Events = Diff(previous, current)

	for _, h := range m.history {
		if err := h.RecordRun(ctx, report); err != nil {
			log.Warn("History recording failed: %v", err)
		}
	}

	m.dispatch(ctx, log, report, opts)

	if saveErr != nil {
		return report, errors.Wrap(saveErr, "persisting state")
	}
	return report, nil
}

// checkDate resolves one date, turning any failure (including a panic) into a failed record
func (m *Monitor) checkDate(ctx context.Context, checkin, checkout string) (rec models.CheckinRecord) {
	defer func() {
		if r := recover(); r != nil {
			rec = models.FailedRecord(checkin, fmt.Sprintf("unexpected failure: %v", r))
		}
	}()

	rec, err := m.resolver.Resolve(ctx, checkin, checkout)
	if err != nil {
		return models.FailedRecord(checkin, err.Error())
	}
	rec.Date = checkin
	if rec.Price != nil && rec.Currency == "" {
		// a price without a currency cannot be compared or shown
		rec.Price = nil
	}
	return rec
}

func (m *Monitor) dispatch(ctx context.Context, log *utils.Logger, report *models.RunReport, opts RunOptions) {
	hotel, room := m.cfg.Hotel.Name, m.cfg.Monitoring.RoomLabel

	if len(report.Events) > 0 {
		subject, body := FormatEvents(hotel, room, report.Events)
		log.Info("Sending %d change notification(s) via %s", len(report.Events), m.channel.Name())
		m.send(ctx, log, subject, body)
	} else {
		log.Info("No changes to notify")
	}

	now := report.FinishedAt.In(m.cfg.Location())
	if opts.ForceDigest || InReportWindow(now, m.cfg.Schedule.ReportHours, m.cfg.Schedule.ReportWindowMinutes) {
		subject, body := FormatDigest(hotel, room, report.Snapshot, now)
		log.Info("Report window reached, sending digest")
		report.DigestSent = m.send(ctx, log, subject, body)
	}
}

// send delivers one message; failures are logged and never propagated
func (m *Monitor) send(ctx context.Context, log *utils.Logger, subject, body string) bool {
	err := m.channel.Send(ctx, subject, body)
	switch {
	case err == nil:
		log.Info("Notification sent: %s", subject)
		return true
	case errors.Is(err, notify.ErrNotConfigured):
		log.Warn("Mail settings incomplete, skipping: %s", subject)
	default:
		log.Error("Notification failed: %v", err)
	}
	return false
}

// InReportWindow reports whether t (already in the reporting timezone) falls
// within windowMinutes after the top of one of the report hours
func InReportWindow(t time.Time, hours []int, windowMinutes int) bool {
	for _, h := range hours {
		if t.Hour() == h && t.Minute() < windowMinutes {
			return true
		}
	}
	return false
}
