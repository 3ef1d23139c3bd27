package repository

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"EnergyPull/internal/domain/models"
	drepo "EnergyPull/internal/domain/repository"
	applogger "EnergyPull/pkg/logger"
	"EnergyPull/pkg/util"
)

// CSVDatasetWriter writes processed_data_{YYYYMMDD}.csv and
// training_data_{YYYYMMDD}.csv. Files are staged next to their final name
// and appear only on commit.
type CSVDatasetWriter struct {
	processedDir string
	trainingDir  string
	l            *applogger.Logger
}

func NewCSVDatasetWriter(processedDir, trainingDir string, l *applogger.Logger) *CSVDatasetWriter {
	if l == nil {
		l = applogger.NewNop()
	}
	return &CSVDatasetWriter{processedDir: processedDir, trainingDir: trainingDir, l: l}
}

func (w *CSVDatasetWriter) StageProcessed(ctx context.Context, f *models.MonthlyFrame, runDate time.Time) (drepo.StagedDataset, error) {
	return w.stage(ctx, filepath.Join(w.processedDir, "processed_data_"+util.RunStamp(runDate)+".csv"), f)
}

func (w *CSVDatasetWriter) StageTraining(ctx context.Context, f *models.MonthlyFrame, runDate time.Time) (drepo.StagedDataset, error) {
	return w.stage(ctx, filepath.Join(w.trainingDir, "training_data_"+util.RunStamp(runDate)+".csv"), f)
}

func (w *CSVDatasetWriter) stage(ctx context.Context, path string, f *models.MonthlyFrame) (*stagedFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if err := encodeFrame(tmp, f); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return nil, fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return nil, fmt.Errorf("sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return nil, fmt.Errorf("close %s: %w", path, err)
	}

	w.l.Info("dataset staged",
		applogger.String("path", path),
		applogger.Int("rows", f.Len()),
		applogger.Int("columns", len(f.Columns())+1),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return &stagedFile{path: path, tmp: tmpName, l: w.l}, nil
}

// stagedFile moves a temp file into place. A file already at path is
// parked under a hidden name so a rollback can restore it.
type stagedFile struct {
	path      string
	tmp       string
	prev      string
	committed bool
	l         *applogger.Logger
}

func (s *stagedFile) Path() string { return s.path }

func (s *stagedFile) Commit() error {
	if s.committed {
		return nil
	}
	if _, err := os.Stat(s.path); err == nil {
		prev := filepath.Join(filepath.Dir(s.path), "."+filepath.Base(s.path)+".prev")
		if err := os.Rename(s.path, prev); err != nil {
			return fmt.Errorf("park %s: %w", s.path, err)
		}
		s.prev = prev
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", s.path, err)
	}
	if err := os.Rename(s.tmp, s.path); err != nil {
		if s.prev != "" {
			_ = os.Rename(s.prev, s.path)
			s.prev = ""
		}
		return fmt.Errorf("rename into %s: %w", s.path, err)
	}
	s.committed = true
	s.l.Info("dataset committed", applogger.String("path", s.path))
	return nil
}

func (s *stagedFile) Rollback() error {
	if !s.committed {
		if err := os.Remove(s.tmp); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove staged %s: %w", s.tmp, err)
		}
		return nil
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", s.path, err)
	}
	s.committed = false
	if s.prev != "" {
		if err := os.Rename(s.prev, s.path); err != nil {
			return fmt.Errorf("restore %s: %w", s.path, err)
		}
		s.prev = ""
	}
	s.l.Warn("dataset rolled back", applogger.String("path", s.path))
	return nil
}

func (s *stagedFile) Release() error {
	if s.prev == "" {
		return nil
	}
	if err := os.Remove(s.prev); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove replaced %s: %w", s.prev, err)
	}
	s.prev = ""
	return nil
}

func encodeFrame(out *os.File, f *models.MonthlyFrame) error {
	cw := csv.NewWriter(out)
	cols := f.Columns()
	if err := cw.Write(append([]string{models.ColDate}, cols...)); err != nil {
		return err
	}
	rec := make([]string, len(cols)+1)
	for i := 0; i < f.Len(); i++ {
		rec[0] = util.FormatMonth(f.Date(i))
		for j, c := range cols {
			rec[j+1] = formatValue(f.Value(i, c))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatValue(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// LatestProcessed loads the processed dataset with the newest file-name stamp.
func (w *CSVDatasetWriter) LatestProcessed(ctx context.Context) (string, *models.MonthlyFrame, error) {
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}
	matches, err := filepath.Glob(filepath.Join(w.processedDir, "processed_data_*.csv"))
	if err != nil {
		return "", nil, err
	}
	var latest string
	for _, m := range matches {
		base := filepath.Base(m)
		if !processedName.MatchString(base) {
			continue
		}
		if latest == "" || base > filepath.Base(latest) {
			latest = m
		}
	}
	if latest == "" {
		return "", nil, fmt.Errorf("no processed dataset in %s: %w", w.processedDir, os.ErrNotExist)
	}
	f, err := ReadFrameCSV(latest)
	if err != nil {
		return "", nil, err
	}
	w.l.Info("processed dataset loaded",
		applogger.String("path", latest),
		applogger.Int("rows", f.Len()),
	)
	return latest, f, nil
}

var processedName = regexp.MustCompile(`^processed_data_\d{8}\.csv$`)

// ReadFrameCSV loads a dataset written by CSVDatasetWriter. Empty cells read as missing.
func ReadFrameCSV(path string) (*models.MonthlyFrame, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	recs, err := csv.NewReader(fh).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(recs) == 0 || len(recs[0]) == 0 || recs[0][0] != models.ColDate {
		return nil, fmt.Errorf("read %s: missing date header", path)
	}
	cols := recs[0][1:]
	dates := make([]time.Time, 0, len(recs)-1)
	values := make(map[string][]float64, len(cols))
	for _, row := range recs[1:] {
		d, ok := util.ParseDate(row[0])
		if !ok {
			return nil, fmt.Errorf("read %s: bad date %q", path, row[0])
		}
		dates = append(dates, d)
		for j, c := range cols {
			v := math.NaN()
			if j+1 < len(row) && row[j+1] != "" {
				if v, err = strconv.ParseFloat(row[j+1], 64); err != nil {
					return nil, fmt.Errorf("read %s: column %s: %w", path, c, err)
				}
			}
			values[c] = append(values[c], v)
		}
	}
	for _, c := range cols {
		if values[c] == nil {
			values[c] = []float64{}
		}
	}
	return models.NewMonthlyFrame(dates, cols, values)
}
