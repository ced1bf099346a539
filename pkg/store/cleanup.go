package store

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Cleaner purges idle sessions on a cron schedule.
type Cleaner struct {
	store     *Store
	retention time.Duration
	schedule  string
	cron      *cron.Cron
	logger    zerolog.Logger
}

// NewCleaner creates a cleaner. Retention <= 0 disables cleanup entirely.
func NewCleaner(s *Store, retention time.Duration, schedule string, logger zerolog.Logger) *Cleaner {
	if schedule == "" {
		schedule = "@hourly"
	}
	return &Cleaner{
		store:     s,
		retention: retention,
		schedule:  schedule,
		logger:    logger,
	}
}

// Start registers the purge job and starts the scheduler.
func (c *Cleaner) Start() error {
	if c.retention <= 0 {
		c.logger.Debug().Msg("Session cleanup disabled")
		return nil
	}

	c.cron = cron.New()
	if _, err := c.cron.AddFunc(c.schedule, c.runOnce); err != nil {
		return fmt.Errorf("invalid cleanup schedule %q: %w", c.schedule, err)
	}
	c.cron.Start()

	c.logger.Info().
		Str("schedule", c.schedule).
		Dur("retention", c.retention).
		Msg("Session cleanup started")
	return nil
}

func (c *Cleaner) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	purged, err := c.store.PurgeIdleSessions(ctx, c.retention)
	if err != nil {
		c.logger.Error().Err(err).Msg("Session cleanup failed")
		return
	}
	if purged > 0 {
		c.logger.Info().Int64("purged", purged).Msg("Idle sessions removed")
	}
}

// Stop halts the scheduler. Safe to call when cleanup never started.
func (c *Cleaner) Stop() {
	if c.cron != nil {
		c.cron.Stop()
	}
}
