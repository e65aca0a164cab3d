package worker

import (
	"context"
	"time"

	"github.com/JI-DeepSleep/DocuSnap-Backend/internal/domain"
	"github.com/JI-DeepSleep/DocuSnap-Backend/internal/infra"
)

// Sweeper evicts rows not accessed within the retention window. It runs on
// its own ticker, independent of queue activity.
type Sweeper struct {
	repo      domain.TaskRepository
	retention time.Duration
	interval  time.Duration
	logger    infra.Logger
	now       func() time.Time
}

func NewSweeper(repo domain.TaskRepository, retention, interval time.Duration, logger infra.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{repo: repo, retention: retention, interval: interval, logger: logger, now: time.Now}
}

// Run sweeps once immediately and then every interval until ctx ends.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error().Err(err).Msg("sweeper: eviction failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Sweep deletes every row whose last access is older than the retention
// window and returns how many were removed.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.retention)
	n, err := s.repo.EvictOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info().Int64("evicted", n).Time("cutoff", cutoff).Msg("sweeper: evicted expired tasks")
	}
	return n, nil
}
