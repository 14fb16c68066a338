package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	intdb "transitportal/internal/db"
	"transitportal/internal/domain/models"
)

// AttendanceRepository persists attendance rows; uniq_attendance_booking_date guarantees
// one row per (booking, trip date).
type AttendanceRepository struct {
	DB *sql.DB
}

func (r AttendanceRepository) db() *sql.DB { return fallbackDB(r.DB) }

// GetByBookingDate returns the attendance row for a booking on a date or ErrNotFound.
func (r AttendanceRepository) GetByBookingDate(ctx context.Context, bookingID int64, date string) (models.Attendance, error) {
	var (
		a        models.Attendance
		location sql.NullString
	)
	err := r.db().QueryRowContext(ctx, `
		SELECT id, booking_id, student_id, route_id, DATE_FORMAT(trip_date, '%Y-%m-%d'),
		       status, boarding_time, marking_method, marked_by, scan_location, COALESCE(notes, '')
		FROM attendance
		WHERE booking_id = ? AND trip_date = ?
		LIMIT 1`, bookingID, date).Scan(
		&a.ID, &a.BookingID, &a.StudentID, &a.RouteID, &a.TripDate,
		&a.Status, &a.BoardingTime, &a.MarkingMethod, &a.MarkedBy, &location, &a.Notes,
	)
	if err != nil {
		return models.Attendance{}, err
	}
	if location.Valid && location.String != "" {
		var loc models.GeoLocation
		if json.Unmarshal([]byte(location.String), &loc) == nil {
			a.Location = &loc
		}
	}
	return a, nil
}

// Insert writes a new row; a unique-key violation is reported as ErrDuplicate.
func (r AttendanceRepository) Insert(ctx context.Context, a models.Attendance) (int64, error) {
	location, err := encodeLocation(a.Location)
	if err != nil {
		return 0, err
	}
	res, err := r.db().ExecContext(ctx, `
		INSERT INTO attendance
			(booking_id, student_id, route_id, trip_date, status, boarding_time,
			 marking_method, marked_by, scan_location, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.BookingID, a.StudentID, a.RouteID, a.TripDate, a.Status, a.BoardingTime,
		a.MarkingMethod, a.MarkedBy, location, a.Notes,
	)
	if err != nil {
		if intdb.IsDuplicateKey(err) {
			return 0, fmt.Errorf("attendance booking=%d date=%s: %w", a.BookingID, a.TripDate, ErrDuplicate)
		}
		return 0, err
	}
	return res.LastInsertId()
}

// Upsert inserts the row or, when (booking, trip date) already exists, overwrites its
// status, marker and timestamp in the same statement.
func (r AttendanceRepository) Upsert(ctx context.Context, a models.Attendance) error {
	_, err := r.db().ExecContext(ctx, `
		INSERT INTO attendance
			(booking_id, student_id, route_id, trip_date, status, boarding_time,
			 marking_method, marked_by, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			status = VALUES(status),
			boarding_time = VALUES(boarding_time),
			marking_method = VALUES(marking_method),
			marked_by = VALUES(marked_by),
			notes = VALUES(notes)`,
		a.BookingID, a.StudentID, a.RouteID, a.TripDate, a.Status, a.BoardingTime,
		a.MarkingMethod, a.MarkedBy, a.Notes,
	)
	return err
}

// MarkMissingAbsent inserts one absent row for every confirmed/completed booking of the
// route/date that has no attendance yet. Selection and inserts share a transaction and each
// insert is a no-op for a key that appeared concurrently, so existing rows are never touched.
// Only rows this call actually inserted are returned.
func (r AttendanceRepository) MarkMissingAbsent(ctx context.Context, routeID int64, date, markedBy, note string, at time.Time) ([]models.RouteAttendanceRow, int64, error) {
	var marked []models.RouteAttendanceRow
	err := intdb.WithTx(ctx, r.db(), func(q intdb.Querier) error {
		rows, err := q.QueryContext(ctx, `
			SELECT b.id, b.student_id, s.name, COALESCE(s.roll_number, ''),
			       COALESCE(b.boarding_stop, ''), COALESCE(b.seat_number, '')
			FROM bookings b
			JOIN students s ON s.id = b.student_id
			LEFT JOIN attendance a ON a.booking_id = b.id AND a.trip_date = b.trip_date
			WHERE b.route_id = ? AND b.trip_date = ?
			  AND b.status IN ('confirmed', 'completed')
			  AND a.id IS NULL
			ORDER BY b.id`, routeID, date)
		if err != nil {
			return err
		}
		var missing []models.RouteAttendanceRow
		for rows.Next() {
			row := models.RouteAttendanceRow{Status: models.AttendanceAbsent, MarkedBy: markedBy}
			if err := rows.Scan(&row.BookingID, &row.StudentID, &row.StudentName, &row.RollNumber,
				&row.BoardingStop, &row.SeatNumber); err != nil {
				rows.Close()
				return err
			}
			ts := at
			row.MarkedAt = &ts
			missing = append(missing, row)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()

		// rows affected is 1 for an insert and 0 when the key already existed
		for _, m := range missing {
			res, err := q.ExecContext(ctx, `
				INSERT INTO attendance
					(booking_id, student_id, route_id, trip_date, status, boarding_time,
					 marking_method, marked_by, notes)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON DUPLICATE KEY UPDATE id = id`,
				m.BookingID, m.StudentID, routeID, date, models.AttendanceAbsent, at,
				models.MethodBulkMark, markedBy, note)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if n == 1 {
				marked = append(marked, m)
			}
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return marked, int64(len(marked)), nil
}

func encodeLocation(loc *models.GeoLocation) (any, error) {
	if loc == nil {
		return nil, nil
	}
	b, err := json.Marshal(loc)
	if err != nil {
		return nil, fmt.Errorf("encode scan location: %w", err)
	}
	return string(b), nil
}
