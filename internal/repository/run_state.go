package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"EnergyPull/internal/domain/models"
	"EnergyPull/pkg/cache"
)

const latestRunKey = "runs:latest"

// CacheRunState keeps the run lock and the latest run report in a cache.Service
// (Redis in production, MemoryCache otherwise).
type CacheRunState struct {
	c         cache.Service
	reportTTL time.Duration
}

func NewCacheRunState(c cache.Service, reportTTL time.Duration) *CacheRunState {
	return &CacheRunState{c: c, reportTTL: reportTTL}
}

func (s *CacheRunState) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.c.TryLock(ctx, key, ttl)
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	return ok, nil
}

func (s *CacheRunState) Release(ctx context.Context, key string) error {
	return s.c.Unlock(ctx, key)
}

func (s *CacheRunState) SaveLatest(ctx context.Context, r *models.RunReport) error {
	return s.c.Set(ctx, latestRunKey, r, s.reportTTL)
}

// Latest returns cache.ErrCacheMiss when no run has been recorded.
func (s *CacheRunState) Latest(ctx context.Context) (*models.RunReport, error) {
	var r models.RunReport
	if err := s.c.Get(ctx, latestRunKey, &r); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, err
		}
		return nil, fmt.Errorf("load latest run: %w", err)
	}
	return &r, nil
}
