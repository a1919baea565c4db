package storage

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"

	"hotel-monitor/models"
	"hotel-monitor/utils"
)

var csvHeader = []string{
	"run_id", "checked_at", "date", "available", "price", "currency", "error",
}

// CSVWriter appends every run's observations to a CSV history file
type CSVWriter struct {
	filePath string
	logger   *utils.Logger
}

// NewCSVWriter creates a new CSVWriter
func NewCSVWriter(filePath string, logger *utils.Logger) *CSVWriter {
	return &CSVWriter{filePath: filePath, logger: logger}
}

// RecordRun appends one row per date; the header is written when the file is new
func (w *CSVWriter) RecordRun(_ context.Context, report *models.RunReport) error {
	dir := filepath.Dir(w.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "failed to create output directory")
	}

	_, statErr := os.Stat(w.filePath)
	isNew := errors.Is(statErr, os.ErrNotExist)

	file, err := os.OpenFile(w.filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Wrap(err, "failed to open CSV file")
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	if isNew {
		if err := writer.Write(csvHeader); err != nil {
			return errors.Wrap(err, "failed to write CSV header")
		}
	}

	checkedAt := report.FinishedAt.Format(time.RFC3339)
	for _, date := range report.Snapshot.Dates() {
		rec := report.Snapshot[date]
		price := ""
		if rec.Price != nil {
			price = strconv.Itoa(*rec.Price)
		}
		row := []string{
			report.RunID,
			checkedAt,
			date,
			strconv.FormatBool(rec.IsAvailable),
			price,
			string(rec.Currency),
			rec.Error,
		}
		if err := writer.Write(row); err != nil {
			w.logger.Error("Failed to write CSV row for %s: %v", date, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return errors.Wrap(err, "failed to flush CSV")
	}

	w.logger.Info("History appended to: %s (%d rows)", w.filePath, len(report.Snapshot))
	return nil
}
