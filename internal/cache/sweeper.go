package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// DefaultSweepSchedule runs the sweep every ten minutes.
const DefaultSweepSchedule = "*/10 * * * *"

// Sweeper runs idle eviction and the health probe on a cron schedule, off
// the request path.
type Sweeper struct {
	cache     *Cache
	threshold time.Duration
	cron      *cron.Cron
	entryID   cron.EntryID
}

// NewSweeper creates a sweeper for the cache. schedule is a standard cron
// expression ("" selects DefaultSweepSchedule); threshold <= 0 selects
// DefaultIdleThreshold. A malformed schedule is a fatal configuration error.
func NewSweeper(c *Cache, schedule string, threshold time.Duration) (*Sweeper, error) {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	if threshold <= 0 {
		threshold = DefaultIdleThreshold
	}

	s := &Sweeper{cache: c, threshold: threshold, cron: cron.New()}
	id, err := s.cron.AddFunc(schedule, s.sweep)
	if err != nil {
		return nil, fmt.Errorf("parsing sweep schedule %q: %w", schedule, err)
	}
	s.entryID = id
	return s, nil
}

// Start begins the background schedule.
func (s *Sweeper) Start() {
	s.cron.Start()
	log.Info().Dur("idle_threshold", s.threshold).Msg("cache_sweeper_started")
}

// Stop halts the schedule and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info().Msg("cache_sweeper_stopped")
}

// sweep is one tick: evict idle entries, then probe what remains.
func (s *Sweeper) sweep() {
	evicted := s.cache.EvictIdle(s.threshold)
	report := s.cache.HealthCheck(context.Background())
	log.Info().
		Int("evicted", evicted).
		Int("healthy", len(report.Healthy)).
		Int("unhealthy", len(report.Unhealthy)).
		Msg("cache_sweep_completed")
}
