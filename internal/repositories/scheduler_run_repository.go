package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	intdb "transitportal/internal/db"
	"transitportal/internal/domain/models"
)

// SchedulerRunRepository stores scheduler_runs, the idempotency record of scheduled jobs.
type SchedulerRunRepository struct {
	DB *sql.DB
}

func (r SchedulerRunRepository) db() *sql.DB { return fallbackDB(r.DB) }

const schedulerRunSelect = `
	SELECT id, scheduler_type, DATE_FORMAT(run_date, '%Y-%m-%d'), time_slot, status, dry_run,
	       started_at, completed_at, COALESCE(CAST(result_summary AS CHAR), ''),
	       notifications_sent, COALESCE(error_message, '')
	FROM scheduler_runs`

func scanSchedulerRun(row interface{ Scan(...any) error }) (models.SchedulerRun, error) {
	var (
		run         models.SchedulerRun
		completedAt sql.NullTime
	)
	err := row.Scan(&run.ID, &run.SchedulerType, &run.RunDate, &run.TimeSlot, &run.Status, &run.DryRun,
		&run.StartedAt, &completedAt, &run.ResultSummary, &run.NotificationsSent, &run.ErrorMessage)
	if err != nil {
		return models.SchedulerRun{}, err
	}
	run.CompletedAt = scanTime(completedAt)
	return run, nil
}

// FindBlocking returns the row that prevents a non-forced run of key: a completed real run,
// or a run still marked running that started at or after runningSince. Completed rows win.
// Completed dry runs never block.
func (r SchedulerRunRepository) FindBlocking(ctx context.Context, key models.RunKey, runningSince time.Time) (models.SchedulerRun, bool, error) {
	row := r.db().QueryRowContext(ctx, schedulerRunSelect+`
		WHERE scheduler_type = ? AND run_date = ? AND time_slot = ?
		  AND ((status = 'completed' AND dry_run = 0) OR (status = 'running' AND started_at >= ?))
		ORDER BY (status = 'completed') DESC, id DESC
		LIMIT 1`, key.Type, key.RunDate, key.TimeSlot, runningSince)
	run, err := scanSchedulerRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.SchedulerRun{}, false, nil
	}
	if err != nil {
		return models.SchedulerRun{}, false, err
	}
	return run, true, nil
}

// Start inserts a running row and returns its id.
func (r SchedulerRunRepository) Start(ctx context.Context, key models.RunKey, dryRun bool, startedAt time.Time) (int64, error) {
	res, err := r.db().ExecContext(ctx, `
		INSERT INTO scheduler_runs (scheduler_type, run_date, time_slot, status, dry_run, started_at)
		VALUES (?, ?, ?, 'running', ?, ?)`, key.Type, key.RunDate, key.TimeSlot, dryRun, startedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Finish records the outcome of a run.
func (r SchedulerRunRepository) Finish(ctx context.Context, id int64, status string, summary []byte, sent int, errMsg string, completedAt time.Time) error {
	var summaryArg any
	if len(summary) > 0 {
		summaryArg = string(summary)
	}
	_, err := r.db().ExecContext(ctx, `
		UPDATE scheduler_runs
		SET status = ?, result_summary = ?, notifications_sent = ?, error_message = ?, completed_at = ?
		WHERE id = ?`, status, summaryArg, sent, intdb.NullIfEmpty(errMsg), completedAt, id)
	return err
}

// ListForDate returns every run of a scheduler type on a date, oldest first.
func (r SchedulerRunRepository) ListForDate(ctx context.Context, schedulerType, date string) ([]models.SchedulerRun, error) {
	rows, err := r.db().QueryContext(ctx, schedulerRunSelect+`
		WHERE scheduler_type = ? AND run_date = ?
		ORDER BY id`, schedulerType, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.SchedulerRun{}
	for rows.Next() {
		run, err := scanSchedulerRun(rows)
		if err != nil {
			return out, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// Stats aggregates runs started at or after since.
func (r SchedulerRunRepository) Stats(ctx context.Context, schedulerType string, since time.Time) (models.RunStats, error) {
	var (
		s   models.RunStats
		avg sql.NullFloat64
	)
	err := r.db().QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(status = 'completed'), 0),
			COALESCE(SUM(status = 'failed'), 0),
			COALESCE(SUM(notifications_sent), 0),
			AVG(CASE WHEN status = 'completed' AND completed_at IS NOT NULL
			         THEN TIMESTAMPDIFF(SECOND, started_at, completed_at) END)
		FROM scheduler_runs
		WHERE scheduler_type = ? AND started_at >= ?`, schedulerType, since).Scan(
		&s.TotalRuns, &s.SuccessfulRuns, &s.FailedRuns, &s.TotalNotificationsSent, &avg,
	)
	if err != nil {
		return models.RunStats{}, err
	}
	if avg.Valid {
		s.AverageDurationSeconds = avg.Float64
	}
	return s, nil
}
