package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotel-monitor/models"
	"hotel-monitor/utils"
)

func TestJSONStateStore_MissingFileIsEmpty(t *testing.T) {
	store := NewJSONStateStore(filepath.Join(t.TempDir(), "last_state.json"), utils.NewNopLogger())

	snap, err := store.Load(context.Background())

	require.NoError(t, err)
	assert.Empty(t, snap)
}

func TestJSONStateStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "last_state.json")
	store := NewJSONStateStore(path, utils.NewNopLogger())

	snap := models.Snapshot{
		"2026/04/17": {Date: "2026/04/17", IsAvailable: true, Price: models.IntPtr(6800), Currency: models.TWD},
		"2026/04/18": {Date: "2026/04/18", Error: "room type not found on page"},
	}
	require.NoError(t, store.Save(context.Background(), snap))

	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, snap, got)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestJSONStateStore_StableShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "last_state.json")
	store := NewJSONStateStore(path, utils.NewNopLogger())

	require.NoError(t, store.Save(context.Background(), models.Snapshot{
		"2026/04/17": {Date: "2026/04/17", IsAvailable: true, Price: models.IntPtr(6800), Currency: models.TWD},
		"2026/04/18": {Date: "2026/04/18"},
	}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"2026/04/17": {"isAvailable": true, "price": 6800, "currency": "TWD"},
		"2026/04/18": {"isAvailable": false, "price": null}
	}`, string(data))
}

func TestJSONStateStore_SaveOverwritesInFull(t *testing.T) {
	store := NewJSONStateStore(filepath.Join(t.TempDir(), "last_state.json"), utils.NewNopLogger())
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, models.Snapshot{"2026/04/17": {IsAvailable: true}}))
	require.NoError(t, store.Save(ctx, models.Snapshot{"2026/04/18": {}}))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.NotContains(t, got, "2026/04/17")
	assert.Contains(t, got, "2026/04/18")
}

func TestJSONStateStore_CorruptFileIsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "last_state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := NewJSONStateStore(path, utils.NewNopLogger()).Load(context.Background())

	assert.Error(t, err)
}

func TestJSONStateStore_EmptyFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "last_state.json")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	snap, err := NewJSONStateStore(path, utils.NewNopLogger()).Load(context.Background())

	require.NoError(t, err)
	assert.Empty(t, snap)
}
