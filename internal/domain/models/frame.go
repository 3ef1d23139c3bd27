package models

import (
	"fmt"
	"math"
	"time"
)

// MonthlyFrame is a month-indexed table of named float64 columns.
// Dates are first-of-month UTC; a missing cell is NaN. Frames are never
// mutated after construction: every operation returns a new frame.
type MonthlyFrame struct {
	dates   []time.Time
	columns []string
	data    map[string][]float64
}

// NewMonthlyFrame builds a frame from dates and columns given in order.
// Every column must have one value per date.
func NewMonthlyFrame(dates []time.Time, columns []string, values map[string][]float64) (*MonthlyFrame, error) {
	f := &MonthlyFrame{
		dates:   append([]time.Time(nil), dates...),
		columns: append([]string(nil), columns...),
		data:    make(map[string][]float64, len(columns)),
	}
	for _, c := range columns {
		v, ok := values[c]
		if !ok {
			return nil, fmt.Errorf("column %q has no values", c)
		}
		if len(v) != len(dates) {
			return nil, fmt.Errorf("column %q has %d values for %d dates", c, len(v), len(dates))
		}
		if _, dup := f.data[c]; dup {
			return nil, fmt.Errorf("column %q listed twice", c)
		}
		f.data[c] = append([]float64(nil), v...)
	}
	return f, nil
}

// Len is the number of rows.
func (f *MonthlyFrame) Len() int { return len(f.dates) }

// Dates returns a copy of the row dates.
func (f *MonthlyFrame) Dates() []time.Time { return append([]time.Time(nil), f.dates...) }

// Date returns the date of row i.
func (f *MonthlyFrame) Date(i int) time.Time { return f.dates[i] }

// Columns returns a copy of the column order.
func (f *MonthlyFrame) Columns() []string { return append([]string(nil), f.columns...) }

func (f *MonthlyFrame) HasColumn(name string) bool {
	_, ok := f.data[name]
	return ok
}

// Column returns a copy of the named column, or nil when absent.
func (f *MonthlyFrame) Column(name string) []float64 {
	v, ok := f.data[name]
	if !ok {
		return nil
	}
	return append([]float64(nil), v...)
}

// Value returns a single cell.
func (f *MonthlyFrame) Value(row int, column string) float64 {
	return f.data[column][row]
}

// WithColumn returns a frame with the column appended, or replaced in place if it exists.
func (f *MonthlyFrame) WithColumn(name string, values []float64) (*MonthlyFrame, error) {
	if len(values) != len(f.dates) {
		return nil, fmt.Errorf("column %q has %d values for %d rows", name, len(values), len(f.dates))
	}
	out := f.clone()
	if _, ok := out.data[name]; !ok {
		out.columns = append(out.columns, name)
	}
	out.data[name] = append([]float64(nil), values...)
	return out, nil
}

// Drop returns a frame without the named columns. Unknown names are ignored.
func (f *MonthlyFrame) Drop(names ...string) *MonthlyFrame {
	skip := make(map[string]struct{}, len(names))
	for _, n := range names {
		skip[n] = struct{}{}
	}
	keep := make([]string, 0, len(f.columns))
	for _, c := range f.columns {
		if _, ok := skip[c]; !ok {
			keep = append(keep, c)
		}
	}
	out, _ := f.Select(keep...)
	return out
}

// Select returns a frame with exactly the named columns in the given order.
func (f *MonthlyFrame) Select(names ...string) (*MonthlyFrame, error) {
	out := &MonthlyFrame{
		dates:   append([]time.Time(nil), f.dates...),
		columns: make([]string, 0, len(names)),
		data:    make(map[string][]float64, len(names)),
	}
	for _, n := range names {
		v, ok := f.data[n]
		if !ok {
			return nil, fmt.Errorf("unknown column %q", n)
		}
		out.columns = append(out.columns, n)
		out.data[n] = append([]float64(nil), v...)
	}
	return out, nil
}

// SliceRows returns rows [from, to).
func (f *MonthlyFrame) SliceRows(from, to int) *MonthlyFrame {
	if from < 0 {
		from = 0
	}
	if to > len(f.dates) {
		to = len(f.dates)
	}
	if from > to {
		from = to
	}
	out := &MonthlyFrame{
		dates:   append([]time.Time(nil), f.dates[from:to]...),
		columns: append([]string(nil), f.columns...),
		data:    make(map[string][]float64, len(f.columns)),
	}
	for _, c := range f.columns {
		out.data[c] = append([]float64(nil), f.data[c][from:to]...)
	}
	return out
}

// FilterDates keeps the rows whose date satisfies keep.
func (f *MonthlyFrame) FilterDates(keep func(time.Time) bool) *MonthlyFrame {
	idx := make([]int, 0, len(f.dates))
	for i, d := range f.dates {
		if keep(d) {
			idx = append(idx, i)
		}
	}
	out := &MonthlyFrame{
		dates:   make([]time.Time, len(idx)),
		columns: append([]string(nil), f.columns...),
		data:    make(map[string][]float64, len(f.columns)),
	}
	for j, i := range idx {
		out.dates[j] = f.dates[i]
	}
	for _, c := range f.columns {
		col := make([]float64, len(idx))
		for j, i := range idx {
			col[j] = f.data[c][i]
		}
		out.data[c] = col
	}
	return out
}

// LastValidDate returns the latest date with a non-missing value in column.
func (f *MonthlyFrame) LastValidDate(column string) (time.Time, bool) {
	v := f.data[column]
	for i := len(v) - 1; i >= 0; i-- {
		if !math.IsNaN(v[i]) {
			return f.dates[i], true
		}
	}
	return time.Time{}, false
}

// Cell identifies one frame cell.
type Cell struct {
	Date   time.Time
	Column string
}

func (c Cell) String() string {
	return c.Column + "@" + c.Date.Format("2006-01-02")
}

// MissingCells lists every NaN cell, row by row in column order.
func (f *MonthlyFrame) MissingCells() []Cell {
	var cells []Cell
	for i, d := range f.dates {
		for _, c := range f.columns {
			if math.IsNaN(f.data[c][i]) {
				cells = append(cells, Cell{Date: d, Column: c})
			}
		}
	}
	return cells
}

func (f *MonthlyFrame) clone() *MonthlyFrame {
	out := &MonthlyFrame{
		dates:   append([]time.Time(nil), f.dates...),
		columns: append([]string(nil), f.columns...),
		data:    make(map[string][]float64, len(f.columns)),
	}
	for _, c := range f.columns {
		out.data[c] = append([]float64(nil), f.data[c]...)
	}
	return out
}
