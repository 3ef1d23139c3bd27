package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"EnergyPull/internal/domain/models"
	applogger "EnergyPull/pkg/logger"
	"EnergyPull/pkg/util"
)

// FSArchiver moves consumed raw files into {root}/{YYYY-MM-DD}/.
//
// Archiving is best-effort: files are moved in catalog order and the first
// failure stops the pass. Files already moved stay archived; the returned
// ArchiveError lists them.
type FSArchiver struct {
	root string
	now  func() time.Time
	l    *applogger.Logger
}

func NewFSArchiver(root string, l *applogger.Logger) *FSArchiver {
	if l == nil {
		l = applogger.NewNop()
	}
	return &FSArchiver{root: root, now: time.Now, l: l}
}

func (a *FSArchiver) Archive(ctx context.Context, m *models.Manifest, runDate time.Time) ([]models.ArchiveRecord, error) {
	target := filepath.Join(a.root, util.ArchiveStamp(runDate))
	if err := os.MkdirAll(target, 0o755); err != nil {
		return nil, &models.ArchiveError{Path: target, Err: err}
	}

	records := make([]models.ArchiveRecord, 0, m.Len())
	for _, f := range m.Files() {
		if err := ctx.Err(); err != nil {
			return records, &models.ArchiveError{Indicator: f.Indicator.Prefix, Path: f.Path, Archived: records, Err: err}
		}
		dst := filepath.Join(target, f.Name)
		if err := moveFile(f.Path, dst); err != nil {
			a.l.Error("archive move failed",
				applogger.String("indicator", f.Indicator.Prefix),
				applogger.String("src", f.Path),
				applogger.String("dst", dst),
				applogger.Int("archived", len(records)),
				applogger.Error(err),
			)
			return records, &models.ArchiveError{Indicator: f.Indicator.Prefix, Path: f.Path, Archived: records, Err: err}
		}
		records = append(records, models.ArchiveRecord{
			Indicator:    f.Indicator.Prefix,
			SourcePath:   f.Path,
			ArchivedPath: dst,
			MovedAt:      a.now(),
		})
	}
	a.l.Info("raw files archived",
		applogger.String("dir", target),
		applogger.Int("files", len(records)),
	)
	return records, nil
}

// moveFile renames src to dst, copying across devices when rename cannot.
func moveFile(src, dst string) error {
	if _, err := os.Stat(dst); err == nil {
		return fmt.Errorf("destination %s already exists", dst)
	}
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return err
	}
	if err := copyFile(src, dst); err != nil {
		_ = os.Remove(dst)
		return err
	}
	return os.Remove(src)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
