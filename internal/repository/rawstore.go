package repository

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"EnergyPull/internal/domain/models"
	applogger "EnergyPull/pkg/logger"
	"EnergyPull/pkg/util"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// groupedNumber is a value written with comma thousands separators.
var groupedNumber = regexp.MustCompile(`^[+-]?\d{1,3}(,\d{3})+(\.\d+)?$`)

// RawStore reads collector output from a flat directory of
// {prefix}_{YYYYMMDD}[_HHMMSS].csv files.
type RawStore struct {
	dir string
	now func() time.Time
	l   *applogger.Logger
}

func NewRawStore(dir string, l *applogger.Logger) *RawStore {
	if l == nil {
		l = applogger.NewNop()
	}
	return &RawStore{dir: dir, now: time.Now, l: l}
}

// Dir is the raw directory scanned for input files.
func (s *RawStore) Dir() string { return s.dir }

type candidate struct {
	name  string
	stamp time.Time
}

// BuildManifest picks the latest file per catalog indicator, by the timestamp
// in the file name (ties broken by name). Subdirectories, including the
// archive, are not scanned.
func (s *RawStore) BuildManifest(ctx context.Context) (*models.Manifest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read raw dir %s: %w", s.dir, err)
	}

	files := make([]models.RawFile, 0, len(models.Catalog()))
	for _, ind := range models.Catalog() {
		re := filePattern(ind.Prefix)
		var cands []candidate
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			m := re.FindStringSubmatch(e.Name())
			if m == nil {
				continue
			}
			stamp, ok := parseFileStamp(m[1], m[2])
			if !ok {
				s.l.Warn("raw file name has invalid timestamp",
					applogger.String("file", e.Name()),
				)
				continue
			}
			cands = append(cands, candidate{name: e.Name(), stamp: stamp})
		}
		if len(cands) == 0 {
			return nil, &models.MissingSeriesError{Indicator: ind.Prefix, Dir: s.dir}
		}
		sort.Slice(cands, func(i, j int) bool {
			if !cands[i].stamp.Equal(cands[j].stamp) {
				return cands[i].stamp.After(cands[j].stamp)
			}
			return cands[i].name > cands[j].name
		})
		latest := cands[0]
		files = append(files, models.RawFile{
			Indicator: ind,
			Path:      filepath.Join(s.dir, latest.name),
			Name:      latest.name,
			Stamp:     latest.stamp,
		})
		s.l.Debug("raw file selected",
			applogger.String("indicator", ind.Prefix),
			applogger.String("file", latest.name),
			applogger.Int("candidates", len(cands)),
		)
	}

	return models.NewManifest(s.dir, s.now(), files), nil
}

// Load parses one raw file into a TimeSeries.
func (s *RawStore) Load(ctx context.Context, file models.RawFile) (*models.TimeSeries, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(file.Path)
	if err != nil {
		return nil, &models.MalformedSeriesError{Indicator: file.Indicator.Prefix, Path: file.Path, Reason: "read failed", Err: err}
	}
	obs, dropped, err := parseSeriesCSV(b)
	if err != nil {
		var malformed *models.MalformedSeriesError
		if errors.As(err, &malformed) {
			malformed.Indicator = file.Indicator.Prefix
			malformed.Path = file.Path
			return nil, malformed
		}
		return nil, &models.MalformedSeriesError{Indicator: file.Indicator.Prefix, Path: file.Path, Reason: "parse failed", Err: err}
	}
	if dropped > 0 {
		s.l.Warn("non-numeric values dropped",
			applogger.String("indicator", file.Indicator.Prefix),
			applogger.String("file", file.Name),
			applogger.Int("dropped", dropped),
		)
	}

	ts, err := models.NewTimeSeries(file.Indicator, obs)
	if err != nil {
		var malformed *models.MalformedSeriesError
		if errors.As(err, &malformed) {
			malformed.Path = file.Path
		}
		return nil, err
	}
	s.l.Info("raw series loaded",
		applogger.String("indicator", file.Indicator.Prefix),
		applogger.String("file", file.Name),
		applogger.Int("observations", ts.Len()),
		applogger.String("first", ts.First().Format("2006-01-02")),
		applogger.String("last", ts.Last().Format("2006-01-02")),
	)
	return ts, nil
}

// parseSeriesCSV returns the observations and the number of rows whose value
// could not be coerced to a number.
func parseSeriesCSV(b []byte) ([]models.Observation, int, error) {
	b = bytes.TrimPrefix(b, utf8BOM)
	r := csv.NewReader(bytes.NewReader(b))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err == io.EOF {
		return nil, 0, &models.MalformedSeriesError{Reason: "empty file"}
	}
	if err != nil {
		return nil, 0, err
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(header[i]))
	}

	dateIdx, valueIdx := -1, -1
	for i, h := range header {
		if dateIdx < 0 && strings.Contains(h, "date") {
			dateIdx = i
		}
	}
	if dateIdx < 0 {
		return nil, 0, &models.MalformedSeriesError{Reason: "no date column in header " + strings.Join(header, ",")}
	}
	for i := range header {
		if i != dateIdx {
			valueIdx = i
			break
		}
	}
	if valueIdx < 0 {
		return nil, 0, &models.MalformedSeriesError{Reason: "no value column"}
	}

	var (
		obs     []models.Observation
		dropped int
		line    = 1
	)
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, 0, err
		}
		if blankRecord(rec) {
			continue
		}
		raw := field(rec, dateIdx)
		d, ok := util.ParseDate(raw)
		if !ok {
			return nil, 0, &models.MalformedSeriesError{Reason: fmt.Sprintf("unparseable date %q on line %d", raw, line)}
		}
		v, ok := parseValue(field(rec, valueIdx))
		if !ok {
			dropped++
			continue
		}
		obs = append(obs, models.Observation{Date: d, Value: v})
	}

	if len(obs) == 0 {
		return nil, dropped, &models.MalformedSeriesError{Reason: "no numeric values"}
	}
	return obs, dropped, nil
}

// parseValue strips thousands separators; blanks, "." and NaN are missing.
// Any other comma, a decimal comma included, makes the cell non-numeric.
func parseValue(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ",") {
		if !groupedNumber.MatchString(s) {
			return 0, false
		}
		s = strings.ReplaceAll(s, ",", "")
	}
	switch strings.ToLower(s) {
	case "", ".", "nan", "na", "n/a", "null":
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func field(rec []string, i int) string {
	if i < len(rec) {
		return strings.TrimSpace(rec[i])
	}
	return ""
}

func blankRecord(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func filePattern(prefix string) *regexp.Regexp {
	return regexp.MustCompile(`^` + regexp.QuoteMeta(prefix) + `_(\d{8})(?:_(\d{6}))?\.csv$`)
}

func parseFileStamp(day, clock string) (time.Time, bool) {
	if clock == "" {
		clock = "000000"
	}
	t, err := time.Parse("20060102150405", day+clock)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
