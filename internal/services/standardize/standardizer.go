// Package standardize converts raw series of any native cadence to a
// month-start index.
package standardize

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"EnergyPull/internal/domain/models"
	applogger "EnergyPull/pkg/logger"
	"EnergyPull/pkg/util"
)

type Standardizer struct {
	l *applogger.Logger
}

func New(l *applogger.Logger) *Standardizer {
	if l == nil {
		l = applogger.NewNop()
	}
	return &Standardizer{l: l}
}

// Standardize maps ts onto calendar months according to its indicator's frequency.
// The result spans the month of the first observation to the month of the last.
func (s *Standardizer) Standardize(ts *models.TimeSeries) (*models.MonthlySeries, error) {
	if ts == nil || ts.Len() == 0 {
		prefix := ""
		if ts != nil {
			prefix = ts.Indicator.Prefix
		}
		return nil, &models.MalformedSeriesError{Indicator: prefix, Reason: "no observations"}
	}

	var (
		out *models.MonthlySeries
		err error
	)
	switch ts.Indicator.Frequency {
	case models.Daily:
		out = monthlyMean(ts.Indicator.Column, ts.Observations)
	case models.Weekly:
		out = monthlyMean(ts.Indicator.Column, densifyDaily(ts.Observations))
	case models.Monthly:
		out, err = monthlyPassThrough(ts)
	case models.Quarterly, models.Annual:
		out = forwardFill(ts.Indicator.Column, ts.Observations)
		out.Values = interpolateGaps(out.Values)
		out = trimMissingEdges(out)
	default:
		return nil, fmt.Errorf("standardize %s: unsupported frequency %q", ts.Indicator.Prefix, ts.Indicator.Frequency)
	}
	if err != nil {
		return nil, err
	}

	s.l.Debug("series standardized",
		applogger.String("indicator", ts.Indicator.Prefix),
		applogger.String("frequency", ts.Indicator.Frequency.String()),
		applogger.Int("observations", ts.Len()),
		applogger.Int("months", out.Len()),
		applogger.Int("missing_months", countNaN(out.Values)),
	)
	return out, nil
}

// monthSpan lists month starts from first's month to last's month inclusive.
func monthSpan(first, last time.Time) []time.Time {
	n := util.MonthsBetween(first, last) + 1
	months := make([]time.Time, n)
	for i := range months {
		months[i] = util.AddMonths(first, i)
	}
	return months
}

// monthlyMean averages observations per calendar month. Months inside the
// span without observations are NaN.
func monthlyMean(column string, obs []models.Observation) *models.MonthlySeries {
	first := util.MonthStart(obs[0].Date)
	months := monthSpan(first, obs[len(obs)-1].Date)
	buckets := make([][]float64, len(months))
	for _, o := range obs {
		i := util.MonthsBetween(first, o.Date)
		buckets[i] = append(buckets[i], o.Value)
	}
	values := make([]float64, len(months))
	for i, b := range buckets {
		if len(b) == 0 {
			values[i] = math.NaN()
			continue
		}
		values[i] = stat.Mean(b, nil)
	}
	return &models.MonthlySeries{Column: column, Dates: months, Values: values}
}

// densifyDaily linearly interpolates one value per calendar day between
// consecutive observations, first to last day inclusive.
func densifyDaily(obs []models.Observation) []models.Observation {
	if len(obs) < 2 {
		return obs
	}
	total := util.DaysBetween(obs[0].Date, obs[len(obs)-1].Date) + 1
	out := make([]models.Observation, 0, total)
	for i := 0; i < len(obs)-1; i++ {
		a, b := obs[i], obs[i+1]
		span := util.DaysBetween(a.Date, b.Date)
		for d := 0; d < span; d++ {
			frac := float64(d) / float64(span)
			out = append(out, models.Observation{
				Date:  util.DayStart(a.Date).AddDate(0, 0, d),
				Value: a.Value + (b.Value-a.Value)*frac,
			})
		}
	}
	last := obs[len(obs)-1]
	return append(out, models.Observation{Date: util.DayStart(last.Date), Value: last.Value})
}

// monthlyPassThrough relabels monthly observations to the first of the month.
func monthlyPassThrough(ts *models.TimeSeries) (*models.MonthlySeries, error) {
	obs := ts.Observations
	first := util.MonthStart(obs[0].Date)
	months := monthSpan(first, obs[len(obs)-1].Date)
	values := make([]float64, len(months))
	for i := range values {
		values[i] = math.NaN()
	}
	for _, o := range obs {
		i := util.MonthsBetween(first, o.Date)
		if !math.IsNaN(values[i]) {
			return nil, &models.MalformedSeriesError{
				Indicator: ts.Indicator.Prefix,
				Reason:    "two observations in month " + util.FormatMonth(o.Date),
			}
		}
		values[i] = o.Value
	}
	return &models.MonthlySeries{Column: ts.Indicator.Column, Dates: months, Values: values}, nil
}

// forwardFill gives every month the last observation dated on or before the
// month's last day.
func forwardFill(column string, obs []models.Observation) *models.MonthlySeries {
	months := monthSpan(util.MonthStart(obs[0].Date), obs[len(obs)-1].Date)
	values := make([]float64, len(months))
	j := -1
	for i, m := range months {
		end := util.MonthEnd(m)
		for j+1 < len(obs) && !obs[j+1].Date.After(end) {
			j++
		}
		if j < 0 {
			values[i] = math.NaN()
			continue
		}
		values[i] = obs[j].Value
	}
	return &models.MonthlySeries{Column: column, Dates: months, Values: values}
}

// interpolateGaps fills NaN runs bounded by real values on both sides.
// Leading and trailing NaN are left alone.
func interpolateGaps(values []float64) []float64 {
	out := append([]float64(nil), values...)
	prev := -1
	for i, v := range out {
		if math.IsNaN(v) {
			continue
		}
		if prev >= 0 && i-prev > 1 {
			step := (v - out[prev]) / float64(i-prev)
			for k := prev + 1; k < i; k++ {
				out[k] = out[prev] + step*float64(k-prev)
			}
		}
		prev = i
	}
	return out
}

// trimMissingEdges drops leading and trailing NaN months.
func trimMissingEdges(s *models.MonthlySeries) *models.MonthlySeries {
	from, to := 0, len(s.Values)
	for from < to && math.IsNaN(s.Values[from]) {
		from++
	}
	for to > from && math.IsNaN(s.Values[to-1]) {
		to--
	}
	return &models.MonthlySeries{
		Column: s.Column,
		Dates:  append([]time.Time(nil), s.Dates[from:to]...),
		Values: append([]float64(nil), s.Values[from:to]...),
	}
}

func countNaN(values []float64) int {
	n := 0
	for _, v := range values {
		if math.IsNaN(v) {
			n++
		}
	}
	return n
}
