package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"EnergyPull/internal/domain/models"
	pkgch "EnergyPull/pkg/clickhouse"
	applogger "EnergyPull/pkg/logger"
	"EnergyPull/pkg/util"
)

type sqlExecer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	PingContext(ctx context.Context) error
}

// CHDatasetStore exports training datasets to ClickHouse, one partition per run date.
type CHDatasetStore struct {
	db       sqlExecer
	database string
	table    string
	l        *applogger.Logger
}

func NewCHDatasetStore(ch *pkgch.Client, l *applogger.Logger) *CHDatasetStore {
	return newCHDatasetStore(ch.DB(), ch.Database(), l)
}

func newCHDatasetStore(db sqlExecer, database string, l *applogger.Logger) *CHDatasetStore {
	if l == nil {
		l = applogger.NewNop()
	}
	return &CHDatasetStore{db: db, database: database, table: database + ".training_data", l: l}
}

// SchemaStatements returns the idempotent DDL for the training table.
func (s *CHDatasetStore) SchemaStatements() []string {
	cols := make([]string, 0, len(models.TrainingColumns()))
	for _, c := range models.TrainingColumns() {
		cols = append(cols, c+" Float64")
	}
	return []string{
		"CREATE DATABASE IF NOT EXISTS " + s.database,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
            run_date Date,
            date Date,
            %s,
            inserted_at DateTime DEFAULT now()
        ) ENGINE = ReplacingMergeTree(inserted_at)
        PARTITION BY run_date
        ORDER BY (run_date, date)`, s.table, strings.Join(cols, ",\n            ")),
	}
}

func (s *CHDatasetStore) Init(ctx context.Context) error {
	for i, stmt := range s.SchemaStatements() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clickhouse schema (statement %d): %w", i+1, err)
		}
	}
	return nil
}

// StoreTraining replaces the run date's partition with the frame's rows.
func (s *CHDatasetStore) StoreTraining(ctx context.Context, runDate time.Time, f *models.MonthlyFrame) error {
	start := time.Now()
	cols := models.TrainingColumns()
	var missing []string
	for _, c := range cols {
		if !f.HasColumn(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return &models.SchemaError{Missing: missing}
	}

	partition := util.ArchiveStamp(runDate)
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s DROP PARTITION '%s'", s.table, partition)); err != nil {
		s.l.Error("clickhouse drop partition error",
			applogger.String("table", s.table),
			applogger.String("partition", partition),
			applogger.Error(err),
		)
		return fmt.Errorf("drop partition %s: %w", partition, err)
	}

	runDay := util.DayStart(runDate)
	const chunkSize = 2000
	placeholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(cols)+2), ", ") + ")"
	for from := 0; from < f.Len(); from += chunkSize {
		to := from + chunkSize
		if to > f.Len() {
			to = f.Len()
		}
		values := make([]string, 0, to-from)
		args := make([]interface{}, 0, (to-from)*(len(cols)+2))
		for i := from; i < to; i++ {
			values = append(values, placeholder)
			args = append(args, runDay, f.Date(i))
			for _, c := range cols {
				args = append(args, f.Value(i, c))
			}
		}
		q := fmt.Sprintf("INSERT INTO %s (run_date, date, %s) VALUES %s",
			s.table, strings.Join(cols, ", "), strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			s.l.Error("clickhouse insert training rows error",
				applogger.String("table", s.table),
				applogger.Int("offset", from),
				applogger.Error(err),
			)
			return fmt.Errorf("insert training rows: %w", err)
		}
	}

	s.l.Info("clickhouse training rows stored",
		applogger.String("table", s.table),
		applogger.String("partition", partition),
		applogger.Int("rows", f.Len()),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

func (s *CHDatasetStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *CHDatasetStore) Close() error {
	return nil // pool owned by pkg/clickhouse.Client
}

// NoopDatasetSink is used when ClickHouse export is disabled.
type NoopDatasetSink struct{}

func (NoopDatasetSink) Init(context.Context) error { return nil }
func (NoopDatasetSink) StoreTraining(context.Context, time.Time, *models.MonthlyFrame) error {
	return nil
}
func (NoopDatasetSink) Health(context.Context) error { return nil }
func (NoopDatasetSink) Close() error                 { return nil }
