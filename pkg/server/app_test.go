package server

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"EnergyPull/internal/domain/models"
	"EnergyPull/internal/usecase"
	"EnergyPull/pkg/config"
	applogger "EnergyPull/pkg/logger"
)

// fakePipeline keeps one background run open until release is closed.
// finished is closed once that run has ended.
type fakePipeline struct {
	mu       sync.Mutex
	events   *[]string
	release  chan struct{}
	started  chan struct{}
	finished chan struct{}
}

func newFakePipeline(events *[]string) *fakePipeline {
	return &fakePipeline{
		events:   events,
		release:  make(chan struct{}),
		started:  make(chan struct{}),
		finished: make(chan struct{}),
	}
}

func (p *fakePipeline) record(ev string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	*p.events = append(*p.events, ev)
}

func (p *fakePipeline) Run(context.Context, usecase.RunOptions) (*models.RunReport, error) {
	p.record("run")
	return &models.RunReport{Status: models.RunSucceeded}, nil
}

func (p *fakePipeline) Start(_ context.Context, opts usecase.RunOptions) (string, <-chan *models.RunReport, error) {
	p.record("start:" + opts.Trigger)
	done := make(chan *models.RunReport, 1)
	close(p.started)
	go func() {
		<-p.release
		p.record("run finished")
		done <- &models.RunReport{Status: models.RunSucceeded}
		close(done)
		close(p.finished)
	}()
	return "run-1", done, nil
}

func (p *fakePipeline) Wait(ctx context.Context) error {
	select {
	case <-p.finished:
		p.record("waited")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func newTestApp(t *testing.T, p *fakePipeline) *App {
	t.Helper()
	sched, err := usecase.NewScheduler(p, "0 17 * * THU", time.UTC, nil)
	require.NoError(t, err)
	cfg := &config.Config{}
	cfg.Pipeline.RunOnStart = true
	return New(cfg, applogger.NewNop(), p, sched, nil, []Resource{
		{Name: "cache", Closer: closerFunc(func() error {
			p.record("closed")
			return nil
		})},
	})
}

func TestShutdownWaitsForActiveRun(t *testing.T) {
	var events []string
	p := newFakePipeline(&events)
	a := newTestApp(t, p)

	a.startupRun(context.Background())
	<-p.started

	go func() {
		time.Sleep(20 * time.Millisecond)
		close(p.release)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, a.shutdown(ctx))

	p.mu.Lock()
	defer p.mu.Unlock()
	require.Contains(t, events, "waited")
	assert.Contains(t, events, "run finished")
	assert.Equal(t, "start:"+models.TriggerSchedule, events[0])
	assert.Equal(t, "closed", events[len(events)-1], "resources close after the run ends")
}

func TestShutdownGivesUpWhenRunOutlivesDeadline(t *testing.T) {
	var events []string
	p := newFakePipeline(&events)
	a := newTestApp(t, p)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := a.shutdown(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunOnceClosesResourcesAfterRun(t *testing.T) {
	var events []string
	p := newFakePipeline(&events)
	close(p.finished)
	a := newTestApp(t, p)

	report, err := a.RunOnce(context.Background(), usecase.RunOptions{Trigger: models.TriggerCLI})
	require.NoError(t, err)
	assert.Equal(t, models.RunSucceeded, report.Status)
	assert.Equal(t, []string{"run", "waited", "closed"}, events)
}
