package audit

import (
	"context"
	"fmt"
	"time"

	"database/sql"

	"github.com/robfig/cron/v3"

	"github.com/atriumhq/atrium/pkg/observability"
)

// Retention prunes audit events older than the configured window on a
// cron schedule.
type Retention struct {
	db       *sql.DB
	log      *observability.Logger
	days     int
	schedule string
	cron     *cron.Cron
}

// NewRetention creates a retention job. days is the number of days of
// history to keep; schedule is a standard cron expression.
func NewRetention(db *sql.DB, log *observability.Logger, days int, schedule string) *Retention {
	return &Retention{
		db:       db,
		log:      log,
		days:     days,
		schedule: schedule,
		cron:     cron.New(),
	}
}

// Start schedules the purge job and begins running it.
func (r *Retention) Start() error {
	_, err := r.cron.AddFunc(r.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		deleted, err := r.Purge(ctx)
		if err != nil {
			r.log.WithError(err).Error("audit retention purge failed")
			return
		}
		r.log.WithFields(map[string]any{
			"deleted":        deleted,
			"retention_days": r.days,
		}).Info("audit retention purge complete")
	})
	if err != nil {
		return fmt.Errorf("failed to schedule audit retention: %w", err)
	}

	r.cron.Start()
	return nil
}

// Stop halts the scheduler and waits for a running purge to finish.
func (r *Retention) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
}

// Purge deletes events older than the retention window and returns the
// number of rows removed.
func (r *Retention) Purge(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -r.days)

	result, err := r.db.ExecContext(ctx,
		`DELETE FROM audit_events WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge audit events: %w", err)
	}
	return result.RowsAffected()
}
