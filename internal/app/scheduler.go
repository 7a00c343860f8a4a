package app

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rmfonseca/fiiboard/internal/common"
	"github.com/rmfonseca/fiiboard/internal/interfaces"
)

// Scheduler manages background jobs.
type Scheduler struct {
	cron   *cron.Cron
	logger *common.Logger
}

// NewScheduler creates a new scheduler.
func NewScheduler(logger *common.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		logger: logger,
	}
}

// AddPruneJob registers the nightly cache retention prune.
func (s *Scheduler) AddPruneJob(schedule string, cache interfaces.QuoteCacheService, retentionDays int) error {
	_, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		removed, err := cache.PruneOld(ctx, retentionDays)
		if err != nil {
			s.logger.Error().Err(err).Msg("Scheduled cache prune failed")
			return
		}
		s.logger.Info().Int("removed", removed).Msg("Scheduled cache prune complete")
	})
	if err != nil {
		return err
	}

	s.logger.Info().
		Str("schedule", schedule).
		Int("retention_days", retentionDays).
		Msg("Prune job registered")
	return nil
}

// Start starts the scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info().Msg("Scheduler started")
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info().Msg("Scheduler stopped")
}
