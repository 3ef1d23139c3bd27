package repository

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"EnergyPull/internal/domain/models"
)

func testFrame(t *testing.T) *models.MonthlyFrame {
	t.Helper()
	f, err := models.NewMonthlyFrame(
		[]time.Time{time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)},
		[]string{"eur_usd", "wti"},
		map[string][]float64{"eur_usd": {1.1, math.NaN()}, "wti": {70.5, 72}},
	)
	require.NoError(t, err)
	return f
}

func TestWriteAndReadDataset(t *testing.T) {
	root := t.TempDir()
	w := NewCSVDatasetWriter(filepath.Join(root, "processed"), filepath.Join(root, "training"), nil)
	f := testFrame(t)

	runDate := time.Date(2024, 6, 6, 17, 0, 0, 0, time.UTC)
	staged, err := w.StageProcessed(context.Background(), f, runDate)
	require.NoError(t, err)
	path := staged.Path()
	assert.Equal(t, filepath.Join(root, "processed", "processed_data_20240606.csv"), path)
	assert.NoFileExists(t, path, "staged file is not visible before commit")

	require.NoError(t, staged.Commit())
	require.NoError(t, staged.Release())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "date,eur_usd,wti\n2024-01-01,1.1,70.5\n2024-02-01,,72\n", string(raw))

	back, err := ReadFrameCSV(path)
	require.NoError(t, err)
	assert.Equal(t, f.Columns(), back.Columns())
	assert.True(t, math.IsNaN(back.Value(1, "eur_usd")))
	assert.Equal(t, 72.0, back.Value(1, "wti"))

	tstaged, err := w.StageTraining(context.Background(), f, runDate)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "training", "training_data_20240606.csv"), tstaged.Path())
	require.NoError(t, tstaged.Commit())
	require.NoError(t, tstaged.Release())

	entries, err := os.ReadDir(filepath.Join(root, "training"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestStagedDatasetRollbackBeforeCommit(t *testing.T) {
	root := t.TempDir()
	w := NewCSVDatasetWriter(root, root, nil)

	staged, err := w.StageTraining(context.Background(), testFrame(t), time.Date(2024, 6, 6, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NoError(t, staged.Rollback())

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStagedDatasetRollbackRestoresReplacedFile(t *testing.T) {
	root := t.TempDir()
	w := NewCSVDatasetWriter(root, root, nil)
	writeFile(t, root, "training_data_20240606.csv", "date,wti\n2023-12-01,9\n")
	path := filepath.Join(root, "training_data_20240606.csv")

	staged, err := w.StageTraining(context.Background(), testFrame(t), time.Date(2024, 6, 6, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NoError(t, staged.Commit())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "eur_usd")

	require.NoError(t, staged.Rollback())
	raw, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "date,wti\n2023-12-01,9\n", string(raw))

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestStagedDatasetReleaseDropsReplacedFile(t *testing.T) {
	root := t.TempDir()
	w := NewCSVDatasetWriter(root, root, nil)
	writeFile(t, root, "processed_data_20240606.csv", "date,wti\n2023-12-01,9\n")

	staged, err := w.StageProcessed(context.Background(), testFrame(t), time.Date(2024, 6, 6, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NoError(t, staged.Commit())
	require.NoError(t, staged.Release())

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "processed_data_20240606.csv", entries[0].Name())
}

func TestLatestProcessed(t *testing.T) {
	root := t.TempDir()
	w := NewCSVDatasetWriter(root, root, nil)

	_, _, err := w.LatestProcessed(context.Background())
	require.ErrorIs(t, err, os.ErrNotExist)

	writeFile(t, root, "processed_data_20240530.csv", "date,wti\n2024-01-01,1\n")
	writeFile(t, root, "processed_data_20240606.csv", "date,wti\n2024-01-01,2\n2024-02-01,3\n")
	writeFile(t, root, "processed_data_backup.csv", "date,wti\n")

	path, f, err := w.LatestProcessed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "processed_data_20240606.csv"), path)
	assert.Equal(t, 2, f.Len())
}
