package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"EnergyPull/internal/domain/models"
	"EnergyPull/pkg/cache"
)

func TestCacheRunState(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()
	s := NewCacheRunState(mc, time.Hour)
	ctx := context.Background()

	_, err := s.Latest(ctx)
	require.ErrorIs(t, err, cache.ErrCacheMiss)

	ok, err := s.Acquire(ctx, "pipeline:run", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = s.Acquire(ctx, "pipeline:run", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, s.Release(ctx, "pipeline:run"))

	rep := &models.RunReport{ID: "r1", Status: models.RunSucceeded, TrainingRows: 10}
	require.NoError(t, s.SaveLatest(ctx, rep))
	got, err := s.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "r1", got.ID)
	assert.Equal(t, models.RunSucceeded, got.Status)
	assert.Equal(t, 10, got.TrainingRows)
}
