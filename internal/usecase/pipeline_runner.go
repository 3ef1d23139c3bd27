package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"EnergyPull/internal/domain/models"
	drepo "EnergyPull/internal/domain/repository"
	"EnergyPull/internal/services/features"
	"EnergyPull/internal/services/merge"
	"EnergyPull/internal/services/standardize"
	"EnergyPull/internal/services/validate"
	applogger "EnergyPull/pkg/logger"
	"EnergyPull/pkg/util"
)

// Stage names used in run reports, logs and metrics.
const (
	StageManifest          = "manifest"
	StageStandardize       = "standardize"
	StageMerge             = "merge"
	StageLoadProcessed     = "load_processed"
	StageValidateProcessed = "validate_processed"
	StageFeatures          = "features"
	StageValidateTraining  = "validate_training"
	StagePersist           = "persist"
	StageExport            = "export"
	StageCommit            = "commit"
	StagePublish           = "publish"
	StageArchive           = "archive"
)

// RunOptions selects what a single run does.
type RunOptions struct {
	Trigger string
	// DryRun stops after validation: nothing is written, exported, published or archived.
	DryRun bool
	// SkipArchive leaves the raw files in place after a successful run.
	SkipArchive bool
	// FeaturesOnly rebuilds the training dataset from the latest processed file.
	// Raw files are neither read nor archived.
	FeaturesOnly bool
}

type PipelineConfig struct {
	LockKey    string
	LockTTL    time.Duration
	RunTimeout time.Duration
}

// PipelineDeps are the collaborators of a run.
type PipelineDeps struct {
	Raw       drepo.RawSource
	Processed drepo.DatasetReader
	Writer    drepo.DatasetWriter
	Sink      drepo.DatasetSink
	Publisher drepo.RunPublisher
	Archiver  drepo.Archiver
	Lock      drepo.RunLock
	Store     drepo.RunStore
	Metrics   drepo.Metrics

	Standardizer *standardize.Standardizer
	Merger       *merge.Merger
	Validator    *validate.Validator
	Engineer     *features.Engineer
}

// PipelineRunner executes one processing cycle: raw files to processed and
// training datasets, then archive. Stages run sequentially and the first
// failure ends the run.
//
// Datasets are staged, exported, then committed; a failure before the
// ready event is published rolls every dataset file back.
type PipelineRunner struct {
	deps  PipelineDeps
	cfg   PipelineConfig
	l     *applogger.Logger
	now   func() time.Time
	newID func() string
	wg    sync.WaitGroup
}

func NewPipelineRunner(deps PipelineDeps, cfg PipelineConfig, l *applogger.Logger) *PipelineRunner {
	if l == nil {
		l = applogger.NewNop()
	}
	if cfg.LockKey == "" {
		cfg.LockKey = "pipeline:run"
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Minute
	}
	return &PipelineRunner{deps: deps, cfg: cfg, l: l, now: time.Now, newID: uuid.NewString}
}

// run carries the state shared by the stages of one cycle.
type run struct {
	report    *models.RunReport
	log       *applogger.Logger
	opts      RunOptions
	manifest  *models.Manifest
	series    []*models.MonthlySeries
	processed *models.MonthlyFrame
	training  *models.MonthlyFrame

	stagedProcessed drepo.StagedDataset
	stagedTraining  drepo.StagedDataset
}

func (st *run) staged() []drepo.StagedDataset {
	var out []drepo.StagedDataset
	if st.stagedProcessed != nil {
		out = append(out, st.stagedProcessed)
	}
	if st.stagedTraining != nil {
		out = append(out, st.stagedTraining)
	}
	return out
}

// Run executes one cycle under the run lock. The report is returned even
// when the run fails, except when the lock is held elsewhere.
func (r *PipelineRunner) Run(ctx context.Context, opts RunOptions) (*models.RunReport, error) {
	st, err := r.begin(ctx, opts)
	if err != nil {
		return nil, err
	}
	return r.complete(ctx, st)
}

// Start acquires the run lock and executes the cycle in the background.
// It returns the run id and a channel receiving the final report.
func (r *PipelineRunner) Start(ctx context.Context, opts RunOptions) (string, <-chan *models.RunReport, error) {
	st, err := r.begin(ctx, opts)
	if err != nil {
		return "", nil, err
	}
	id := st.report.ID
	done := make(chan *models.RunReport, 1)
	go func() {
		defer close(done)
		report, _ := r.complete(context.Background(), st)
		done <- report
	}()
	return id, done, nil
}

// begin creates the report and takes the run lock.
func (r *PipelineRunner) begin(ctx context.Context, opts RunOptions) (*run, error) {
	if opts.Trigger == "" {
		opts.Trigger = models.TriggerManual
	}
	started := r.now()
	report := &models.RunReport{
		ID:        r.newID(),
		RunDate:   started,
		Trigger:   opts.Trigger,
		DryRun:    opts.DryRun,
		Status:    models.RunRunning,
		StartedAt: started,
	}
	log := r.l.With(applogger.String("run_id", report.ID), applogger.String("trigger", opts.Trigger))

	acquired, err := r.deps.Lock.Acquire(ctx, r.cfg.LockKey, r.cfg.LockTTL)
	if err != nil {
		log.Error("run lock unavailable", applogger.Error(err))
		r.deps.Metrics.RecordError(models.CodeInternal)
		return nil, err
	}
	if !acquired {
		err := &models.RunInProgressError{Key: r.cfg.LockKey}
		log.Warn("run skipped", applogger.String("reason", err.Error()))
		r.deps.Metrics.RecordError(err.Code())
		return nil, err
	}
	r.wg.Add(1)
	return &run{report: report, log: log, opts: opts}, nil
}

// Wait blocks until every run started through Run or Start has finished.
// Callers stop triggering new runs first.
func (r *PipelineRunner) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// complete runs the stages of a locked cycle and releases the lock.
func (r *PipelineRunner) complete(ctx context.Context, st *run) (*models.RunReport, error) {
	defer r.wg.Done()
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.deps.Lock.Release(releaseCtx, r.cfg.LockKey); err != nil {
			st.log.Warn("run lock release failed", applogger.Error(err))
		}
	}()

	if r.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.RunTimeout)
		defer cancel()
	}

	st.log.Info("run started",
		applogger.Bool("dry_run", st.opts.DryRun),
		applogger.Bool("skip_archive", st.opts.SkipArchive),
		applogger.Bool("features_only", st.opts.FeaturesOnly),
	)
	err := r.execute(ctx, st)
	r.finish(st, err)
	return st.report, err
}

type stageFunc func(context.Context, *run) error

type step struct {
	name string
	fn   stageFunc
}

func (r *PipelineRunner) execute(ctx context.Context, st *run) error {
	var steps []step
	add := func(name string, fn stageFunc) {
		steps = append(steps, step{name: name, fn: fn})
	}

	if st.opts.FeaturesOnly {
		add(StageLoadProcessed, r.loadProcessed)
	} else {
		add(StageManifest, r.buildManifest)
		add(StageStandardize, r.standardize)
		add(StageMerge, r.merge)
	}
	add(StageValidateProcessed, func(_ context.Context, st *run) error { return r.validate(st.processed) })
	add(StageFeatures, r.buildFeatures)
	add(StageValidateTraining, func(_ context.Context, st *run) error { return r.validate(st.training) })
	if !st.opts.DryRun {
		add(StagePersist, r.persist)
		add(StageExport, r.export)
		add(StageCommit, r.commit)
		add(StagePublish, r.publish)
		if !st.opts.FeaturesOnly && !st.opts.SkipArchive {
			add(StageArchive, r.archive)
		}
	}

	for _, s := range steps {
		if err := r.stage(ctx, st, s.name, s.fn); err != nil {
			r.rollback(st)
			return err
		}
	}
	return nil
}

// stage runs one step, recording its timing on the report and in metrics.
func (r *PipelineRunner) stage(ctx context.Context, st *run, name string, fn stageFunc) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	start := time.Now()
	err := fn(ctx, st)
	d := time.Since(start)

	timing := models.StageTiming{Name: name, Duration: d}
	if err != nil {
		timing.Err = err.Error()
	}
	st.report.Stages = append(st.report.Stages, timing)
	r.deps.Metrics.RecordStage(name, d.Seconds())

	if err != nil {
		st.log.Error("stage failed",
			applogger.String("stage", name),
			applogger.String("code", models.ErrorCode(err)),
			applogger.Duration("duration_ms", d),
			applogger.Error(err),
		)
		return fmt.Errorf("%s: %w", name, err)
	}
	st.log.Info("stage completed",
		applogger.String("stage", name),
		applogger.Duration("duration_ms", d),
	)
	return nil
}

func (r *PipelineRunner) buildManifest(ctx context.Context, st *run) error {
	m, err := r.deps.Raw.BuildManifest(ctx)
	if err != nil {
		return err
	}
	st.manifest = m
	st.log.Info("manifest built",
		applogger.String("dir", m.Dir()),
		applogger.Int("files", m.Len()),
		applogger.Time("built_at", m.BuiltAt()),
	)
	return nil
}

func (r *PipelineRunner) standardize(ctx context.Context, st *run) error {
	files := st.manifest.Files()
	st.series = make([]*models.MonthlySeries, 0, len(files))
	for _, f := range files {
		ts, err := r.deps.Raw.Load(ctx, f)
		if err != nil {
			return err
		}
		ms, err := r.deps.Standardizer.Standardize(ts)
		if err != nil {
			return err
		}
		st.series = append(st.series, ms)
	}
	return nil
}

func (r *PipelineRunner) merge(_ context.Context, st *run) error {
	res, err := r.deps.Merger.Merge(st.series)
	if err != nil {
		return err
	}
	st.processed = res.Frame
	st.report.ProcessedRows = res.Frame.Len()
	return nil
}

func (r *PipelineRunner) loadProcessed(ctx context.Context, st *run) error {
	path, f, err := r.deps.Processed.LatestProcessed(ctx)
	if err != nil {
		return err
	}
	st.processed = f
	st.report.ProcessedPath = path
	st.report.ProcessedRows = f.Len()
	return nil
}

func (r *PipelineRunner) validate(f *models.MonthlyFrame) error {
	res := r.deps.Validator.Validate(f)
	if !res.OK() {
		return fmt.Errorf("check %s: %w", res.Failed, res.Err)
	}
	return nil
}

func (r *PipelineRunner) buildFeatures(_ context.Context, st *run) error {
	f, err := r.deps.Engineer.Build(st.processed)
	if err != nil {
		return err
	}
	st.training = f
	st.report.TrainingRows = f.Len()
	st.report.FirstMonth = util.FormatMonth(f.Date(0))
	st.report.LastMonth = util.FormatMonth(f.Date(f.Len() - 1))
	return nil
}

// persist stages the datasets without making them visible.
func (r *PipelineRunner) persist(ctx context.Context, st *run) error {
	if !st.opts.FeaturesOnly {
		staged, err := r.deps.Writer.StageProcessed(ctx, st.processed, st.report.RunDate)
		if err != nil {
			return err
		}
		st.stagedProcessed = staged
	}
	staged, err := r.deps.Writer.StageTraining(ctx, st.training, st.report.RunDate)
	if err != nil {
		return err
	}
	st.stagedTraining = staged
	return nil
}

func (r *PipelineRunner) export(ctx context.Context, st *run) error {
	return r.deps.Sink.StoreTraining(ctx, st.report.RunDate, st.training)
}

// commit moves every staged dataset into place. A failed rename leaves the
// earlier ones for rollback.
func (r *PipelineRunner) commit(_ context.Context, st *run) error {
	for _, f := range st.staged() {
		if err := f.Commit(); err != nil {
			return err
		}
	}
	if st.stagedProcessed != nil {
		st.report.ProcessedPath = st.stagedProcessed.Path()
	}
	st.report.TrainingPath = st.stagedTraining.Path()
	r.deps.Metrics.RecordRows("processed", st.report.ProcessedRows)
	r.deps.Metrics.RecordRows("training", st.report.TrainingRows)
	return nil
}

func (r *PipelineRunner) publish(ctx context.Context, st *run) error {
	err := r.deps.Publisher.PublishDatasetReady(ctx, models.DatasetReadyEvent{
		RunID:         st.report.ID,
		RunDate:       util.ArchiveStamp(st.report.RunDate),
		ProcessedPath: st.report.ProcessedPath,
		TrainingPath:  st.report.TrainingPath,
		TrainingRows:  st.report.TrainingRows,
		FirstMonth:    st.report.FirstMonth,
		LastMonth:     st.report.LastMonth,
		Columns:       st.training.Columns(),
		Timestamp:     r.now(),
	})
	if err != nil {
		return err
	}
	r.release(st)
	return nil
}

// release makes the committed datasets final.
func (r *PipelineRunner) release(st *run) {
	for _, f := range st.staged() {
		if err := f.Release(); err != nil {
			st.log.Warn("replaced dataset not removed", applogger.String("path", f.Path()), applogger.Error(err))
		}
	}
	st.stagedProcessed, st.stagedTraining = nil, nil
}

// rollback removes staged or committed datasets of a failed run and
// restores the files they replaced.
func (r *PipelineRunner) rollback(st *run) {
	files := st.staged()
	for i := len(files) - 1; i >= 0; i-- {
		if err := files[i].Rollback(); err != nil {
			st.log.Error("dataset rollback failed", applogger.String("path", files[i].Path()), applogger.Error(err))
		}
	}
	if st.stagedProcessed != nil {
		st.report.ProcessedPath = ""
	}
	if st.stagedTraining != nil {
		st.report.TrainingPath = ""
	}
	st.stagedProcessed, st.stagedTraining = nil, nil
}

func (r *PipelineRunner) archive(ctx context.Context, st *run) error {
	records, err := r.deps.Archiver.Archive(ctx, st.manifest, st.report.RunDate)
	var archiveErr *models.ArchiveError
	if errors.As(err, &archiveErr) {
		records = archiveErr.Archived
	}
	st.report.Archived = records
	r.deps.Metrics.RecordArchived(len(records))
	return err
}

func (r *PipelineRunner) finish(st *run, err error) {
	report := st.report
	report.FinishedAt = r.now()
	if err != nil {
		report.Status = models.RunFailed
		report.ErrorCode = models.ErrorCode(err)
		report.Error = err.Error()
		r.deps.Metrics.RecordError(report.ErrorCode)
		st.log.Error("run failed",
			applogger.String("code", report.ErrorCode),
			applogger.Duration("duration_ms", report.Duration()),
			applogger.Error(err),
		)
	} else {
		report.Status = models.RunSucceeded
		r.deps.Metrics.RecordLastSuccess(report.FinishedAt)
		st.log.Info("run succeeded",
			applogger.Int("processed_rows", report.ProcessedRows),
			applogger.Int("training_rows", report.TrainingRows),
			applogger.String("last_month", report.LastMonth),
			applogger.Int("archived", len(report.Archived)),
			applogger.Duration("duration_ms", report.Duration()),
		)
	}
	r.deps.Metrics.RecordRun(string(report.Status), report.Trigger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := r.deps.Store.SaveLatest(ctx, report); err != nil {
		st.log.Warn("run report not saved", applogger.Error(err))
	}
	if err := r.l.Flush(ctx); err != nil {
		st.log.Warn("aggregated logs not published", applogger.Error(err))
	}
}

// Latest returns the most recent run report.
func (r *PipelineRunner) Latest(ctx context.Context) (*models.RunReport, error) {
	return r.deps.Store.Latest(ctx)
}
