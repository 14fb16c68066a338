package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transitportal/internal/domain/models"
)

var runColumns = []string{
	"id", "scheduler_type", "run_date", "time_slot", "status", "dry_run",
	"started_at", "completed_at", "result_summary", "notifications_sent", "error_message",
}

func TestFindBlocking(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	key := models.RunKey{Type: models.SchedulerBookingReminders, RunDate: "2025-11-05", TimeSlot: models.Slot5PM}
	since := time.Date(2025, 11, 5, 16, 45, 0, 0, time.UTC)
	started := time.Date(2025, 11, 5, 17, 0, 0, 0, time.UTC)
	done := started.Add(4 * time.Second)

	mock.ExpectQuery("FROM scheduler_runs").
		WithArgs(key.Type, key.RunDate, key.TimeSlot, since).
		WillReturnRows(sqlmock.NewRows(runColumns).
			AddRow(3, key.Type, key.RunDate, key.TimeSlot, "completed", false, started, done, `{"sent":4}`, 4, ""))
	mock.ExpectQuery("FROM scheduler_runs").
		WithArgs(key.Type, key.RunDate, models.Slot6PM, since).
		WillReturnRows(sqlmock.NewRows(runColumns))

	repo := SchedulerRunRepository{DB: db}
	run, found, err := repo.FindBlocking(context.Background(), key, since)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, models.RunCompleted, run.Status)
	require.NotNil(t, run.CompletedAt)
	assert.Equal(t, done, *run.CompletedAt)

	key.TimeSlot = models.Slot6PM
	_, found, err = repo.FindBlocking(context.Background(), key, since)
	require.NoError(t, err)
	assert.False(t, found)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStartAndFinish(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	key := models.RunKey{Type: models.SchedulerBookingReminders, RunDate: "2025-11-05", TimeSlot: models.Slot5PM}
	at := time.Date(2025, 11, 5, 17, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO scheduler_runs").
		WithArgs(key.Type, key.RunDate, key.TimeSlot, true, at).
		WillReturnResult(sqlmock.NewResult(12, 1))
	mock.ExpectExec("UPDATE scheduler_runs").
		WithArgs("failed", nil, 0, "notifier down", at, int64(12)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := SchedulerRunRepository{DB: db}
	id, err := repo.Start(context.Background(), key, true, at)
	require.NoError(t, err)
	assert.Equal(t, int64(12), id)

	require.NoError(t, repo.Finish(context.Background(), id, models.RunFailed, nil, 0, "notifier down", at))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFinish_CompletedStoresNullError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	at := time.Date(2025, 11, 5, 17, 0, 4, 0, time.UTC)
	mock.ExpectExec("UPDATE scheduler_runs").
		WithArgs(models.RunCompleted, `{"sent":3}`, 3, nil, at, int64(12)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := SchedulerRunRepository{DB: db}
	require.NoError(t, repo.Finish(context.Background(), 12, models.RunCompleted, []byte(`{"sent":3}`), 3, "", at))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStats(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	since := time.Date(2025, 10, 29, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery("TIMESTAMPDIFF").WithArgs(models.SchedulerBookingReminders, since).
		WillReturnRows(sqlmock.NewRows([]string{"total", "ok", "failed", "sent", "avg"}).
			AddRow(14, 12, 2, 310, 3.5))

	stats, err := SchedulerRunRepository{DB: db}.Stats(context.Background(), models.SchedulerBookingReminders, since)
	require.NoError(t, err)
	assert.Equal(t, models.RunStats{
		TotalRuns: 14, SuccessfulRuns: 12, FailedRuns: 2,
		TotalNotificationsSent: 310, AverageDurationSeconds: 3.5,
	}, stats)
}
