package storage

import (
	"context"
	"time"

	"hotel-monitor/models"
)

// StateStore persists the last snapshot; it is the monitor's only memory between runs
type StateStore interface {
	Load(ctx context.Context) (models.Snapshot, error)
	Save(ctx context.Context, snap models.Snapshot) error
}

// HistoryRecorder keeps an append-only log of every run's observations
type HistoryRecorder interface {
	RecordRun(ctx context.Context, report *models.RunReport) error
}

// PricePoint is one observation of a date in the history
type PricePoint struct {
	RunID       string          `json:"runId"`
	CheckedAt   time.Time       `json:"checkedAt"`
	Date        string          `json:"date"`
	IsAvailable bool            `json:"isAvailable"`
	Price       *int            `json:"price"`
	Currency    models.Currency `json:"currency,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// RunSummary is one row of the run feed
type RunSummary struct {
	RunID      string    `json:"runId"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Dates      int       `json:"dates"`
	Available  int       `json:"available"`
	Failed     int       `json:"failed"`
	Events     int       `json:"events"`
}

// HistoryReader serves the price trend and run feed
type HistoryReader interface {
	PriceHistory(ctx context.Context, date string, limit int) ([]PricePoint, error)
	RecentRuns(ctx context.Context, limit int) ([]RunSummary, error)
}
