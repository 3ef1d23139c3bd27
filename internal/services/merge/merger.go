// Package merge outer-joins standardized series and truncates the result to
// the window where every indicator has data.
package merge

import (
	"math"
	"sort"
	"time"

	"EnergyPull/internal/domain/models"
	applogger "EnergyPull/pkg/logger"
	"EnergyPull/pkg/util"
)

// Result carries the truncated frame and the figures used to cut it.
type Result struct {
	// Union is the outer join after the history filter, before truncation.
	Union            *models.MonthlyFrame
	Frame            *models.MonthlyFrame
	LastDates        map[string]time.Time
	EarliestLastDate time.Time
}

type Merger struct {
	historyStart time.Time
	l            *applogger.Logger
}

func New(historyStart time.Time, l *applogger.Logger) *Merger {
	if l == nil {
		l = applogger.NewNop()
	}
	return &Merger{historyStart: util.MonthStart(historyStart), l: l}
}

// Merge joins the series on date in processed column order. Every processed
// column must be supplied exactly once.
func (m *Merger) Merge(series []*models.MonthlySeries) (*Result, error) {
	byColumn := make(map[string]*models.MonthlySeries, len(series))
	for _, s := range series {
		byColumn[s.Column] = s
	}
	cols := models.ProcessedColumns()
	var missing []string
	for _, c := range cols {
		if _, ok := byColumn[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, &models.SchemaError{Missing: missing}
	}

	dates := unionDates(series)
	index := make(map[time.Time]int, len(dates))
	for i, d := range dates {
		index[d] = i
	}
	values := make(map[string][]float64, len(cols))
	for _, c := range cols {
		col := make([]float64, len(dates))
		for i := range col {
			col[i] = math.NaN()
		}
		s := byColumn[c]
		for i, d := range s.Dates {
			col[index[util.MonthStart(d)]] = s.Values[i]
		}
		values[c] = col
	}
	joined, err := models.NewMonthlyFrame(dates, cols, values)
	if err != nil {
		return nil, err
	}

	union := joined.FilterDates(func(d time.Time) bool { return !d.Before(m.historyStart) })

	last := make(map[string]time.Time, len(cols))
	var empty []string
	for _, c := range cols {
		d, ok := union.LastValidDate(c)
		if !ok {
			empty = append(empty, c)
			continue
		}
		last[c] = d
	}
	if len(empty) > 0 {
		return nil, &models.EmptyIntersectionError{Columns: empty}
	}

	earliest := last[cols[0]]
	limiting := cols[0]
	for _, c := range cols[1:] {
		if last[c].Before(earliest) {
			earliest, limiting = last[c], c
		}
	}
	frame := union.FilterDates(func(d time.Time) bool { return !d.After(earliest) })

	m.l.Info("series merged",
		applogger.Int("union_rows", union.Len()),
		applogger.Int("rows", frame.Len()),
		applogger.String("earliest_last_date", util.FormatMonth(earliest)),
		applogger.String("limiting_column", limiting),
	)
	return &Result{Union: union, Frame: frame, LastDates: last, EarliestLastDate: earliest}, nil
}

func unionDates(series []*models.MonthlySeries) []time.Time {
	seen := make(map[time.Time]struct{})
	for _, s := range series {
		for _, d := range s.Dates {
			seen[util.MonthStart(d)] = struct{}{}
		}
	}
	dates := make([]time.Time, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}
