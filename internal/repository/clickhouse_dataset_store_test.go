package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"EnergyPull/internal/domain/models"
)

type execCall struct {
	query string
	args  []any
}

type fakeExecer struct {
	calls []execCall
	fail  string
}

func (f *fakeExecer) ExecContext(_ context.Context, q string, args ...any) (sql.Result, error) {
	f.calls = append(f.calls, execCall{query: q, args: args})
	if f.fail != "" && strings.Contains(q, f.fail) {
		return nil, errors.New("clickhouse unavailable")
	}
	return nil, nil
}

func (f *fakeExecer) PingContext(context.Context) error { return nil }

func trainingFrame(t *testing.T, rows int) *models.MonthlyFrame {
	t.Helper()
	dates := make([]time.Time, rows)
	values := map[string][]float64{}
	for i := range dates {
		dates[i] = time.Date(2020, time.Month(1+i), 1, 0, 0, 0, 0, time.UTC)
		for _, c := range models.TrainingColumns() {
			values[c] = append(values[c], float64(i))
		}
	}
	f, err := models.NewMonthlyFrame(dates, models.TrainingColumns(), values)
	require.NoError(t, err)
	return f
}

func TestStoreTrainingReplacesPartition(t *testing.T) {
	db := &fakeExecer{}
	s := newCHDatasetStore(db, "energypull", nil)

	require.NoError(t, s.StoreTraining(context.Background(), time.Date(2024, 6, 6, 17, 0, 0, 0, time.UTC), trainingFrame(t, 3)))
	require.Len(t, db.calls, 2)
	assert.Equal(t, "ALTER TABLE energypull.training_data DROP PARTITION '2024-06-06'", db.calls[0].query)
	assert.True(t, strings.HasPrefix(db.calls[1].query, "INSERT INTO energypull.training_data (run_date, date, eur_usd,"))
	assert.Len(t, db.calls[1].args, 3*(len(models.TrainingColumns())+2))
}

func TestStoreTrainingSchemaAndErrors(t *testing.T) {
	s := newCHDatasetStore(&fakeExecer{}, "energypull", nil)
	f := trainingFrame(t, 2).Drop(models.ColWTILag6)
	var schemaErr *models.SchemaError
	require.ErrorAs(t, s.StoreTraining(context.Background(), time.Now(), f), &schemaErr)
	assert.Equal(t, []string{models.ColWTILag6}, schemaErr.Missing)

	failing := newCHDatasetStore(&fakeExecer{fail: "INSERT"}, "energypull", nil)
	require.Error(t, failing.StoreTraining(context.Background(), time.Now(), trainingFrame(t, 2)))
}

func TestInitRunsSchema(t *testing.T) {
	db := &fakeExecer{}
	s := newCHDatasetStore(db, "energypull", nil)
	require.NoError(t, s.Init(context.Background()))
	require.Len(t, db.calls, 2)
	assert.Contains(t, db.calls[1].query, "PARTITION BY run_date")
	assert.Contains(t, db.calls[1].query, "wti_12m_rolling Float64")
}
