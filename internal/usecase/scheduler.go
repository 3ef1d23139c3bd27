package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"EnergyPull/internal/domain/models"
	applogger "EnergyPull/pkg/logger"
)

type cycleRunner interface {
	Run(ctx context.Context, opts RunOptions) (*models.RunReport, error)
}

// Scheduler triggers pipeline runs on a cron schedule in a fixed time zone.
type Scheduler struct {
	cron   *cron.Cron
	runner cycleRunner
	spec   string
	loc    *time.Location
	entry  cron.EntryID
	l      *applogger.Logger
}

// NewScheduler parses a standard five-field cron spec (e.g. "0 17 * * THU").
func NewScheduler(runner cycleRunner, spec string, loc *time.Location, l *applogger.Logger) (*Scheduler, error) {
	if l == nil {
		l = applogger.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	cl := cronLogger{l: l}
	s := &Scheduler{
		runner: runner,
		spec:   spec,
		loc:    loc,
		l:      l,
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow|cron.Descriptor)),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
			cron.WithLogger(cl),
		),
	}
	id, err := s.cron.AddFunc(spec, s.fire)
	if err != nil {
		return nil, fmt.Errorf("schedule %q: %w", spec, err)
	}
	s.entry = id
	return s, nil
}

func (s *Scheduler) fire() {
	if _, err := s.runner.Run(context.Background(), RunOptions{Trigger: models.TriggerSchedule}); err != nil {
		s.l.Warn("scheduled run did not succeed",
			applogger.String("code", models.ErrorCode(err)),
			applogger.Error(err),
		)
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.l.Info("scheduler started",
		applogger.String("schedule", s.spec),
		applogger.String("timezone", s.loc.String()),
		applogger.Time("next_run", s.Next()),
	)
}

// Stop halts scheduling and waits for a running job until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next is the next activation time; zero before Start.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entry).Next
}

// NextAfter computes the activation following t without starting the scheduler.
func (s *Scheduler) NextAfter(t time.Time) time.Time {
	return s.cron.Entry(s.entry).Schedule.Next(t.In(s.loc))
}

// cronLogger adapts the application logger to cron.Logger.
type cronLogger struct {
	l *applogger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, kvFields(keysAndValues)...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: "+msg, append(kvFields(keysAndValues), applogger.Error(err))...)
}

func kvFields(kv []interface{}) []applogger.Field {
	fields := make([]applogger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields = append(fields, applogger.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return fields
}
