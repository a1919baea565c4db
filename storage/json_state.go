package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"

	"hotel-monitor/models"
	"hotel-monitor/utils"
)

// JSONStateStore keeps the snapshot in a single JSON file keyed by date
type JSONStateStore struct {
	filePath string
	logger   *utils.Logger
}

// NewJSONStateStore creates a new JSONStateStore
func NewJSONStateStore(filePath string, logger *utils.Logger) *JSONStateStore {
	return &JSONStateStore{filePath: filePath, logger: logger}
}

// Load reads the snapshot. A missing file is an empty snapshot (first run).
func (s *JSONStateStore) Load(_ context.Context) (models.Snapshot, error) {
	data, err := os.ReadFile(s.filePath)
	if errors.Is(err, os.ErrNotExist) {
		s.logger.Info("No previous state at %s, starting fresh", s.filePath)
		return models.Snapshot{}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading state file %s", s.filePath)
	}

	snap := models.Snapshot{}
	if len(data) == 0 {
		return snap, nil
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, errors.Wrapf(err, "parsing state file %s", s.filePath)
	}
	for date, rec := range snap {
		rec.Date = date
		snap[date] = rec
	}
	return snap, nil
}

// Save overwrites the snapshot in full. The write goes through a temp file and
// a rename so readers never see a half-written file.
func (s *JSONStateStore) Save(_ context.Context, snap models.Snapshot) error {
	if snap == nil {
		snap = models.Snapshot{}
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding state")
	}

	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "creating state directory")
	}

	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return errors.Wrap(err, "creating temp state file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return errors.Wrap(err, "setting state file mode")
	}

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return errors.Wrap(err, "writing temp state file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "closing temp state file")
	}
	if err := os.Rename(tmpName, s.filePath); err != nil {
		return errors.Wrapf(err, "replacing state file %s", s.filePath)
	}

	s.logger.Info("State written to: %s (%d dates)", s.filePath, len(snap))
	return nil
}
