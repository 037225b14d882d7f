package ratelimit

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// DefaultJanitorSchedule runs the purge once a day, off-peak.
const DefaultJanitorSchedule = "0 4 * * *"

// Janitor periodically purges usage counters past the retention horizon.
type Janitor struct {
	limiter  *Limiter
	cron     *cron.Cron
	schedule string
	logger   zerolog.Logger
}

// NewJanitor creates a Janitor with the given cron schedule (five-field cron
// syntax; empty selects the default).
func NewJanitor(limiter *Limiter, schedule string, logger zerolog.Logger) *Janitor {
	if schedule == "" {
		schedule = DefaultJanitorSchedule
	}
	return &Janitor{
		limiter:  limiter,
		cron:     cron.New(),
		schedule: schedule,
		logger:   logger.With().Str("component", "usage_janitor").Logger(),
	}
}

// Start schedules the purge and starts the cron runner.
func (j *Janitor) Start() error {
	_, err := j.cron.AddFunc(j.schedule, func() {
		if err := j.limiter.CleanAllOldUsage(context.Background()); err != nil {
			j.logger.Error().Err(err).Msg("Usage purge failed")
		}
	})
	if err != nil {
		return fmt.Errorf("schedule usage janitor: %w", err)
	}

	j.cron.Start()
	j.logger.Info().Str("schedule", j.schedule).Msg("Usage janitor started")
	return nil
}

// Stop stops the cron runner and waits for a running purge to finish.
func (j *Janitor) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
	j.logger.Info().Msg("Usage janitor stopped")
}
