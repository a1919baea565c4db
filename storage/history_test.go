package storage

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotel-monitor/models"
	"hotel-monitor/utils"
)

func testReport(runID string, finished time.Time, price int) *models.RunReport {
	return &models.RunReport{
		RunID:      runID,
		StartedAt:  finished.Add(-time.Minute),
		FinishedAt: finished,
		Snapshot: models.Snapshot{
			"2026/04/17": {IsAvailable: true, Price: models.IntPtr(price), Currency: models.TWD},
			"2026/04/18": {Error: "navigation timeout"},
		},
		Events: []models.NotificationEvent{
			models.ReleaseEvent{Date: "2026/04/17", Price: models.IntPtr(price), Currency: models.TWD},
		},
		Failed: 1,
	}
}

func TestCSVWriter_AppendsWithSingleHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "output", "history.csv")
	w := NewCSVWriter(path, utils.NewNopLogger())
	at := time.Date(2026, 4, 10, 3, 0, 0, 0, time.UTC)

	require.NoError(t, w.RecordRun(context.Background(), testReport("run-1", at, 6800)))
	require.NoError(t, w.RecordRun(context.Background(), testReport("run-2", at.Add(time.Hour), 6500)))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, 5)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, []string{"run-1", "2026-04-10T03:00:00Z", "2026/04/17", "true", "6800", "TWD", ""}, rows[1])
	assert.Equal(t, []string{"run-1", "2026-04-10T03:00:00Z", "2026/04/18", "false", "", "", "navigation timeout"}, rows[2])
	assert.Equal(t, "run-2", rows[3][0])
}

func newSQLiteHistory(t *testing.T) *SQLHistory {
	t.Helper()
	h, err := NewSQLHistory("sqlite://"+filepath.Join(t.TempDir(), "history.db"), utils.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(h.Close)
	require.NoError(t, h.CreateTable(context.Background()))
	return h
}

func TestSQLHistory_RecordAndQuery(t *testing.T) {
	h := newSQLiteHistory(t)
	ctx := context.Background()
	at := time.Date(2026, 4, 10, 3, 0, 0, 0, time.UTC)

	require.NoError(t, h.RecordRun(ctx, testReport("run-1", at, 6800)))
	require.NoError(t, h.RecordRun(ctx, testReport("run-2", at.Add(time.Hour), 6500)))
	// recording the same run twice is a no-op
	require.NoError(t, h.RecordRun(ctx, testReport("run-2", at.Add(time.Hour), 6500)))

	points, err := h.PriceHistory(ctx, "2026/04/17", 10)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, "run-1", points[0].RunID)
	assert.Equal(t, 6800, *points[0].Price)
	assert.Equal(t, 6500, *points[1].Price)
	assert.Equal(t, models.TWD, points[1].Currency)
	assert.True(t, points[1].CheckedAt.Equal(at.Add(time.Hour)))

	failed, err := h.PriceHistory(ctx, "2026/04/18", 10)
	require.NoError(t, err)
	require.Len(t, failed, 2)
	assert.Nil(t, failed[0].Price)
	assert.Equal(t, "navigation timeout", failed[0].Error)

	runs, err := h.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].RunID)
	assert.Equal(t, 2, runs[0].Dates)
	assert.Equal(t, 1, runs[0].Available)
	assert.Equal(t, 1, runs[0].Failed)
	assert.Equal(t, 1, runs[0].Events)
}

func TestSQLHistory_LimitKeepsNewest(t *testing.T) {
	h := newSQLiteHistory(t)
	ctx := context.Background()
	at := time.Date(2026, 4, 10, 3, 0, 0, 0, time.UTC)

	for i, price := range []int{7000, 6900, 6800} {
		require.NoError(t, h.RecordRun(ctx, testReport(string(rune('a'+i)), at.Add(time.Duration(i)*time.Hour), price)))
	}

	points, err := h.PriceHistory(ctx, "2026/04/17", 2)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, 6900, *points[0].Price)
	assert.Equal(t, 6800, *points[1].Price)
}

func TestParseDatabaseURL(t *testing.T) {
	tests := []struct {
		raw     string
		driver  string
		dsn     string
		wantErr bool
	}{
		{raw: "postgres://u:p@localhost:5432/hotel?sslmode=disable", driver: "postgres", dsn: "postgres://u:p@localhost:5432/hotel?sslmode=disable"},
		{raw: "postgresql://localhost/hotel", driver: "postgres", dsn: "postgresql://localhost/hotel"},
		{raw: "sqlite://data/history.db", driver: "sqlite3", dsn: "data/history.db"},
		{raw: "history.sqlite", driver: "sqlite3", dsn: "history.sqlite"},
		{raw: "mysql://localhost/hotel", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			d, dsn, err := parseDatabaseURL(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.driver, d.driver)
			assert.Equal(t, tt.dsn, dsn)
		})
	}
}

func TestRebind(t *testing.T) {
	q := "SELECT * FROM runs WHERE run_id = $1 LIMIT $2"
	assert.Equal(t, q, postgresDialect.rebind(q))
	assert.Equal(t, "SELECT * FROM runs WHERE run_id = ? LIMIT ?", sqliteDialect.rebind(q))
}
