package repository

import (
	"context"
	"time"

	"EnergyPull/internal/domain/models"
)

// RawSource discovers and reads the raw per-indicator CSV files.
type RawSource interface {
	BuildManifest(ctx context.Context) (*models.Manifest, error)
	Load(ctx context.Context, file models.RawFile) (*models.TimeSeries, error)
}

// DatasetWriter stages the processed and training datasets. A staged file
// is invisible under its final name until it is committed.
type DatasetWriter interface {
	StageProcessed(ctx context.Context, f *models.MonthlyFrame, runDate time.Time) (StagedDataset, error)
	StageTraining(ctx context.Context, f *models.MonthlyFrame, runDate time.Time) (StagedDataset, error)
}

// StagedDataset is a fully written dataset waiting to be moved into place.
//
// Commit renames it to Path, keeping any file it replaces until Release.
// Rollback undoes whatever Commit did, or drops the staged file when it was
// never committed, and restores the replaced file. Release discards the
// replaced file once the run is final.
type StagedDataset interface {
	Path() string
	Commit() error
	Rollback() error
	Release() error
}

// DatasetReader loads the most recent processed dataset.
type DatasetReader interface {
	LatestProcessed(ctx context.Context) (string, *models.MonthlyFrame, error)
}

// Archiver moves consumed raw files out of the raw directory.
type Archiver interface {
	Archive(ctx context.Context, m *models.Manifest, runDate time.Time) ([]models.ArchiveRecord, error)
}

// DatasetSink exports the training dataset to an analytical store.
type DatasetSink interface {
	Init(ctx context.Context) error
	StoreTraining(ctx context.Context, runDate time.Time, f *models.MonthlyFrame) error
	Health(ctx context.Context) error
	Close() error
}

// RunPublisher announces finished datasets to downstream consumers.
type RunPublisher interface {
	PublishDatasetReady(ctx context.Context, ev models.DatasetReadyEvent) error
	Close() error
}

// RunLock guarantees a single active run.
type RunLock interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// RunStore keeps the most recent run report.
type RunStore interface {
	SaveLatest(ctx context.Context, r *models.RunReport) error
	Latest(ctx context.Context) (*models.RunReport, error)
}

type Metrics interface {
	RecordRun(status string, trigger string)
	RecordStage(stage string, seconds float64)
	RecordRows(dataset string, rows int)
	RecordError(code string)
	RecordArchived(n int)
	RecordLastSuccess(t time.Time)
}
