package repositories

import (
	"database/sql"
	"errors"
	"time"

	intconfig "transitportal/internal/config"
)

// ErrDuplicate is returned when an insert hits a unique key (e.g. a second attendance
// row for the same booking and trip date).
var ErrDuplicate = errors.New("duplicate record")

// ErrNotFound aliases sql.ErrNoRows so callers and in-memory stores share one sentinel.
var ErrNotFound = sql.ErrNoRows

func fallbackDB(db *sql.DB) *sql.DB {
	if db != nil {
		return db
	}
	return intconfig.DB
}

// scanTime converts a nullable DATETIME column.
func scanTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
