package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsDuplicateKey(t *testing.T) {
	dup := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry '7-2025-11-05' for key 'uniq_attendance_booking_date'"}

	assert.True(t, IsDuplicateKey(dup))
	assert.True(t, IsDuplicateKey(fmt.Errorf("insert attendance: %w", dup)))
	assert.False(t, IsDuplicateKey(&mysql.MySQLError{Number: 1213}))
	assert.False(t, IsDuplicateKey(errors.New("Duplicate entry")))
	assert.False(t, IsDuplicateKey(nil))
}

func TestSplitStatements(t *testing.T) {
	src := "-- header\nCREATE TABLE a (\n\tid INT\n);\n\nCREATE TABLE b (id INT);\nINSERT INTO b VALUES (1)"
	stmts := SplitStatements(src)

	require.Len(t, stmts, 3)
	assert.Equal(t, "CREATE TABLE a (\n\tid INT\n)", stmts[0])
	assert.Equal(t, "CREATE TABLE b (id INT)", stmts[1])
	assert.Equal(t, "INSERT INTO b VALUES (1)", stmts[2])
}

func TestEmbeddedMigrationsSplit(t *testing.T) {
	content, err := migrationsFS.ReadFile("migrations/002_attendance_and_staff.sql")
	require.NoError(t, err)

	stmts := SplitStatements(string(content))
	require.Len(t, stmts, 3)
	assert.Contains(t, stmts[0], "UNIQUE KEY uniq_attendance_booking_date (booking_id, trip_date)")
}

func TestWithTx_CommitAndRollback(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE attendance").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = WithTx(context.Background(), sqlDB, func(q Querier) error {
		_, err := q.ExecContext(context.Background(), "UPDATE attendance SET status='present'")
		return err
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	mock.ExpectBegin()
	mock.ExpectRollback()
	err = WithTx(context.Background(), sqlDB, func(Querier) error { return boom })
	assert.ErrorIs(t, err, boom)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHasTable(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	mock.ExpectQuery("information_schema\\.tables").WithArgs("attendance").
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow("attendance"))
	mock.ExpectQuery("information_schema\\.tables").WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}))

	assert.True(t, HasTable(context.Background(), sqlDB, "attendance"))
	assert.False(t, HasTable(context.Background(), sqlDB, "ghost"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_OnlyPending(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT filename FROM schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"filename"}).
			AddRow("001_core_tables.sql").
			AddRow("002_attendance_and_staff.sql"))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS scheduler_runs").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS notifications").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO schema_migrations").WithArgs("003_scheduler_and_notifications.sql").
		WillReturnResult(sqlmock.NewResult(1, 1))

	ran, err := RunMigrations(context.Background(), sqlDB)
	require.NoError(t, err)
	assert.Equal(t, []string{"003_scheduler_and_notifications.sql"}, ran)
	assert.NoError(t, mock.ExpectationsWereMet())
}
