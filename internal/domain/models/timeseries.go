package models

import (
	"math"
	"sort"
	"time"
)

// Observation is a single dated value of a raw series.
type Observation struct {
	Date  time.Time
	Value float64
}

// TimeSeries is a raw series at its native cadence, ordered by date.
type TimeSeries struct {
	Indicator    Indicator
	Observations []Observation
}

// NewTimeSeries sorts observations by date and rejects duplicate dates and non-finite values.
func NewTimeSeries(ind Indicator, obs []Observation) (*TimeSeries, error) {
	sorted := make([]Observation, len(obs))
	copy(sorted, obs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	for i, o := range sorted {
		if math.IsNaN(o.Value) || math.IsInf(o.Value, 0) {
			return nil, &MalformedSeriesError{Indicator: ind.Prefix, Reason: "non-finite value at " + o.Date.Format("2006-01-02")}
		}
		if i > 0 && sorted[i-1].Date.Equal(o.Date) {
			return nil, &MalformedSeriesError{Indicator: ind.Prefix, Reason: "duplicate date " + o.Date.Format("2006-01-02")}
		}
	}
	return &TimeSeries{Indicator: ind, Observations: sorted}, nil
}

func (s *TimeSeries) Len() int { return len(s.Observations) }

// First returns the earliest observation date.
func (s *TimeSeries) First() time.Time {
	if len(s.Observations) == 0 {
		return time.Time{}
	}
	return s.Observations[0].Date
}

// Last returns the latest observation date.
func (s *TimeSeries) Last() time.Time {
	if len(s.Observations) == 0 {
		return time.Time{}
	}
	return s.Observations[len(s.Observations)-1].Date
}

// MonthlySeries is one indicator on a contiguous month-start index.
// Missing months are NaN.
type MonthlySeries struct {
	Column string
	Dates  []time.Time
	Values []float64
}

func (m *MonthlySeries) Len() int { return len(m.Dates) }
