package merge

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"EnergyPull/internal/domain/models"
)

func month(y int, m time.Month) time.Time {
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

// monthly builds a gap-free series of n months starting at from.
func monthly(column string, from time.Time, n int, base float64) *models.MonthlySeries {
	s := &models.MonthlySeries{Column: column}
	for i := 0; i < n; i++ {
		s.Dates = append(s.Dates, from.AddDate(0, i, 0))
		s.Values = append(s.Values, base+float64(i))
	}
	return s
}

func fullSet(from time.Time, n int) []*models.MonthlySeries {
	out := make([]*models.MonthlySeries, 0, 8)
	for i, c := range models.ProcessedColumns() {
		out = append(out, monthly(c, from, n, float64(i*100)))
	}
	return out
}

func TestMergeTruncatesToEarliestLastDate(t *testing.T) {
	set := fullSet(month(2023, 1), 18) // through 2024-06
	for i, s := range set {
		if s.Column == models.ColGDP {
			set[i] = monthly(models.ColGDP, month(2023, 1), 16, 0) // through 2024-04
		}
	}

	res, err := New(month(2005, 1), nil).Merge(set)
	require.NoError(t, err)

	assert.Equal(t, month(2024, 4), res.EarliestLastDate)
	assert.Equal(t, month(2024, 4), res.Frame.Date(res.Frame.Len()-1))
	assert.Equal(t, month(2024, 6), res.Union.Date(res.Union.Len()-1))
	assert.Equal(t, month(2024, 6), res.LastDates[models.ColWTI])
	assert.Empty(t, res.Frame.MissingCells())
	assert.Equal(t, models.ProcessedColumns(), res.Frame.Columns())
}

func TestMergeOuterJoinKeepsEveryDate(t *testing.T) {
	set := fullSet(month(2020, 1), 12)
	set[0] = monthly(set[0].Column, month(2019, 7), 3, 1) // only 2019-07..2019-09

	res, err := New(month(2005, 1), nil).Merge(set)
	require.NoError(t, err)

	dates := map[time.Time]bool{}
	for _, d := range res.Union.Dates() {
		dates[d] = true
	}
	for _, s := range set {
		for _, d := range s.Dates {
			assert.True(t, dates[d], "%s %s", s.Column, d)
		}
	}
	assert.Equal(t, month(2019, 7), res.Union.Date(0))
	assert.True(t, math.IsNaN(res.Union.Value(0, models.ColWTI)))
	assert.Equal(t, month(2019, 9), res.EarliestLastDate)
}

func TestMergeHistoryFilter(t *testing.T) {
	set := fullSet(month(2004, 1), 36)
	res, err := New(month(2005, 1), nil).Merge(set)
	require.NoError(t, err)
	assert.Equal(t, month(2005, 1), res.Frame.Date(0))
	assert.Equal(t, 24, res.Frame.Len())
}

func TestMergeEmptyIntersection(t *testing.T) {
	set := fullSet(month(2010, 1), 12)
	set[3] = monthly(set[3].Column, month(2001, 1), 12, 1) // entirely before history start

	_, err := New(month(2005, 1), nil).Merge(set)
	var empty *models.EmptyIntersectionError
	require.ErrorAs(t, err, &empty)
	assert.Equal(t, []string{set[3].Column}, empty.Columns)
}

func TestMergeRequiresEveryColumn(t *testing.T) {
	set := fullSet(month(2010, 1), 12)[1:]
	_, err := New(month(2005, 1), nil).Merge(set)
	var schemaErr *models.SchemaError
	require.ErrorAs(t, err, &schemaErr)
}
