package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"EnergyPull/internal/domain/models"
)

func TestArchiveMovesEveryManifestFile(t *testing.T) {
	dir := t.TempDir()
	seedRawDir(t, dir)
	m, err := NewRawStore(dir, nil).BuildManifest(context.Background())
	require.NoError(t, err)

	runDate := time.Date(2024, 6, 6, 17, 0, 0, 0, time.UTC)
	recs, err := NewFSArchiver(filepath.Join(dir, "archive"), nil).Archive(context.Background(), m, runDate)
	require.NoError(t, err)
	require.Len(t, recs, 8)

	for _, r := range recs {
		_, err := os.Stat(r.SourcePath)
		assert.True(t, os.IsNotExist(err), r.SourcePath)
		_, err = os.Stat(r.ArchivedPath)
		assert.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "archive", "2024-06-06"), filepath.Dir(r.ArchivedPath))
	}
}

func TestArchiveStopsAtFirstFailure(t *testing.T) {
	dir := t.TempDir()
	seedRawDir(t, dir)
	m, err := NewRawStore(dir, nil).BuildManifest(context.Background())
	require.NoError(t, err)

	// third file in catalog order disappears before archiving
	third := m.Files()[2]
	require.NoError(t, os.Remove(third.Path))

	recs, err := NewFSArchiver(filepath.Join(dir, "archive"), nil).Archive(context.Background(), m, time.Now())
	var archiveErr *models.ArchiveError
	require.ErrorAs(t, err, &archiveErr)
	assert.Equal(t, third.Indicator.Prefix, archiveErr.Indicator)
	assert.Len(t, archiveErr.Archived, 2)
	assert.Len(t, recs, 2)

	// files after the failure are untouched
	for _, f := range m.Files()[3:] {
		_, err := os.Stat(f.Path)
		assert.NoError(t, err)
	}
}

func TestMoveFileRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "a.csv", "x")
	dst := writeFile(t, dir, "b.csv", "y")
	require.Error(t, moveFile(src, dst))
}
