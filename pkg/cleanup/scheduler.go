package cleanup

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Scheduler triggers cleanup batches on a fixed interval. The engine stays
// externally triggered; the scheduler is just the timer in front of it.
type Scheduler struct {
	engine   *Engine
	cron     *cron.Cron
	interval time.Duration
	logger   zerolog.Logger
	running  bool
}

// NewScheduler creates a scheduler running CleanupExpired every interval.
func NewScheduler(engine *Engine, interval time.Duration, logger zerolog.Logger) *Scheduler {
	if interval == 0 {
		interval = 24 * time.Hour
	}

	return &Scheduler{
		engine:   engine,
		cron:     cron.New(),
		interval: interval,
		logger:   logger.With().Str("component", "cleanup_scheduler").Logger(),
	}
}

// Start begins scheduled cleanup runs.
func (s *Scheduler) Start() error {
	if s.running {
		return fmt.Errorf("cleanup scheduler is already running")
	}

	spec := fmt.Sprintf("@every %s", s.interval)
	if _, err := s.cron.AddFunc(spec, s.runOnce); err != nil {
		return fmt.Errorf("failed to schedule cleanup: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info().Dur("interval", s.interval).Msg("Cleanup scheduler started")
	return nil
}

// Stop halts scheduled runs; an in-flight batch runs to completion.
func (s *Scheduler) Stop() error {
	if !s.running {
		return fmt.Errorf("cleanup scheduler is not running")
	}

	<-s.cron.Stop().Done()
	s.running = false

	s.logger.Info().Msg("Cleanup scheduler stopped")
	return nil
}

// IsRunning returns whether the scheduler is active.
func (s *Scheduler) IsRunning() bool {
	return s.running
}

func (s *Scheduler) runOnce() {
	s.logger.Info().Msg("Running scheduled session cleanup")

	result := s.engine.CleanupExpired(context.Background(), false)
	if !result.Success {
		s.logger.Error().Str("error", result.Error).Msg("Scheduled cleanup failed")
		return
	}

	s.logger.Info().
		Int("sessions_deleted", result.SessionsDeleted).
		Int64("events_deleted", result.EventsDeleted).
		Msg("Scheduled cleanup complete")
}
