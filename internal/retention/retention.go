// Package retention purges soft-deleted threads on a cron schedule.
// Deletion over the API is a tombstone write; this runner is what makes
// it permanent, and it runs inside the server process so the
// single-writer rule holds.
package retention

import (
	"context"
	"time"

	"github.com/adhocore/gronx"
	"github.com/pkg/errors"

	"github.com/westbrookdaniel/chat/pkg/config"
	"github.com/westbrookdaniel/chat/pkg/logger"
	"github.com/westbrookdaniel/chat/pkg/store"
)

const defaultCron = "0 2 * * *"

// Run starts the retention scheduler and blocks until ctx is canceled.
// Returns immediately when retention is disabled.
func Run(ctx context.Context, cfg config.RetentionConfig) error {
	if !cfg.Enabled {
		logger.Info("retention_disabled")
		<-ctx.Done()
		return nil
	}

	cron := cfg.Cron
	if cron == "" {
		cron = defaultCron
	}
	gron := gronx.New()
	if !gron.IsValid(cron) {
		return errors.Errorf("invalid retention cron %q", cron)
	}
	logger.Info("retention_started", "cron", cron, "period", cfg.Period.Duration().String(), "dry_run", cfg.DryRun)

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			due, err := gron.IsDue(cron, now)
			if err != nil || !due {
				continue
			}
			if err := RunOnce(cfg); err != nil {
				logger.Error("retention_run_failed", "error", err)
			}
		}
	}
}

// RunOnce executes a single purge pass. Exposed so tests and admin
// triggers can run retention on demand.
func RunOnce(cfg config.RetentionConfig) error {
	period := cfg.Period.Duration()
	if period <= 0 {
		period = 30 * 24 * time.Hour
	}
	cutoff := time.Now().Add(-period)
	n, err := store.PurgeDeleted(cutoff, cfg.BatchSize, cfg.DryRun)
	if err != nil {
		return err
	}
	logger.Info("retention_purged", "threads", n, "cutoff", cutoff.UTC().Format(time.RFC3339), "dry_run", cfg.DryRun)
	return nil
}
