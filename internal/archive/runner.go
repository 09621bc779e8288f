// Package archive runs the audit retention job: rows older than the
// retention window are copied to object storage and optionally pruned.
package archive

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/p2poffer/internal/domain"
)

// Runner executes archive runs against a domain.Archiver.
type Runner struct {
	archiver      domain.Archiver
	retentionDays int
	logger        *slog.Logger
	now           func() time.Time
}

// NewRunner creates a Runner that archives audit rows older than
// retentionDays.
func NewRunner(archiver domain.Archiver, retentionDays int, logger *slog.Logger) *Runner {
	return &Runner{
		archiver:      archiver,
		retentionDays: retentionDays,
		logger:        logger.With(slog.String("component", "archive_runner")),
		now:           time.Now,
	}
}

// Cutoff returns the instant before which rows are archived.
func (r *Runner) Cutoff() time.Time {
	return r.now().UTC().Add(-time.Duration(r.retentionDays) * 24 * time.Hour)
}

// Run executes a single archive run and returns the number of rows archived.
func (r *Runner) Run(ctx context.Context) (int64, error) {
	cutoff := r.Cutoff()
	r.logger.InfoContext(ctx, "starting archive run",
		slog.Time("cutoff", cutoff),
		slog.Int("retention_days", r.retentionDays),
	)

	n, err := r.archiver.ArchiveAudit(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("archive: audit before %s: %w", cutoff.Format(time.RFC3339), err)
	}

	r.logger.InfoContext(ctx, "archive run complete", slog.Int64("audit_archived", n))
	return n, nil
}

// RunCron runs the archiver on a cron schedule until ctx is
// cancelled. Failed runs are logged and retried at the next trigger.
func (r *Runner) RunCron(ctx context.Context, cronExpr string) error {
	sched, err := ParseCron(cronExpr)
	if err != nil {
		return err
	}
	r.logger.InfoContext(ctx, "archiver cron started", slog.String("cron", cronExpr))

	for {
		next := sched.Next(r.now().UTC())
		if next.IsZero() {
			return fmt.Errorf("archive: cron %q never fires", cronExpr)
		}
		wait := next.Sub(r.now())
		r.logger.InfoContext(ctx, "archiver waiting for next trigger",
			slog.Time("next_run", next),
			slog.Duration("wait", wait),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			r.logger.Info("archiver cron stopped")
			return nil
		case <-timer.C:
			if _, err := r.Run(ctx); err != nil {
				r.logger.ErrorContext(ctx, "archive run failed", slog.String("error", err.Error()))
			}
		}
	}
}
