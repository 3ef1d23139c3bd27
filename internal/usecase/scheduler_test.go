package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"EnergyPull/internal/domain/models"
)

type recordingRunner struct {
	mu   sync.Mutex
	opts []RunOptions
	err  error
}

func (r *recordingRunner) Run(_ context.Context, opts RunOptions) (*models.RunReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opts = append(r.opts, opts)
	return &models.RunReport{Status: models.RunSucceeded}, r.err
}

func TestSchedulerNextIsThursdayEvening(t *testing.T) {
	loc, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)

	s, err := NewScheduler(&recordingRunner{}, "0 17 * * THU", loc, nil)
	require.NoError(t, err)

	// Monday 2024-03-04 09:00 Chicago
	next := s.NextAfter(time.Date(2024, time.March, 4, 9, 0, 0, 0, loc))
	assert.Equal(t, time.Date(2024, time.March, 7, 17, 0, 0, 0, loc), next)

	// exactly at the activation the next one is a week later
	next = s.NextAfter(next)
	assert.Equal(t, time.Date(2024, time.March, 14, 17, 0, 0, 0, loc), next)
	assert.Equal(t, time.Thursday, next.Weekday())
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	_, err := NewScheduler(&recordingRunner{}, "every thursday", time.UTC, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "every thursday")
}

func TestSchedulerFireUsesScheduleTrigger(t *testing.T) {
	runner := &recordingRunner{err: &models.RunInProgressError{Key: "pipeline:run"}}
	s, err := NewScheduler(runner, "0 17 * * THU", time.UTC, nil)
	require.NoError(t, err)

	s.fire()

	require.Len(t, runner.opts, 1)
	assert.Equal(t, models.TriggerSchedule, runner.opts[0].Trigger)
	assert.False(t, runner.opts[0].DryRun)
}

func TestSchedulerStartStop(t *testing.T) {
	s, err := NewScheduler(&recordingRunner{}, "0 17 * * THU", time.UTC, nil)
	require.NoError(t, err)

	assert.True(t, s.Next().IsZero())
	s.Start()
	assert.False(t, s.Next().IsZero())
	assert.Equal(t, time.Thursday, s.Next().Weekday())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}
