package repositories

import (
	"context"
	"database/sql"
	"strings"

	"transitportal/internal/domain/models"
)

// BookingRepository reads bookings joined with student/route/schedule context.
type BookingRepository struct {
	DB *sql.DB
}

func (r BookingRepository) db() *sql.DB { return fallbackDB(r.DB) }

const bookingDetailSelect = `
	SELECT
		b.id, b.student_id, b.route_id, b.schedule_id,
		DATE_FORMAT(b.trip_date, '%Y-%m-%d'),
		COALESCE(b.boarding_stop, ''), COALESCE(b.seat_number, ''),
		b.status, COALESCE(b.payment_status, ''), b.qr_code,
		s.name, s.email, COALESCE(s.phone, ''), COALESCE(s.roll_number, ''),
		r.code, r.name,
		TIME_FORMAT(sc.departure_time, '%H:%i'), COALESCE(sc.direction, '')
	FROM bookings b
	JOIN students s ON s.id = b.student_id
	JOIN routes r ON r.id = b.route_id
	JOIN schedules sc ON sc.id = b.schedule_id`

func scanBookingDetail(row interface{ Scan(...any) error }) (models.BookingDetail, error) {
	var d models.BookingDetail
	err := row.Scan(
		&d.Booking.ID, &d.Booking.StudentID, &d.Booking.RouteID, &d.Booking.ScheduleID,
		&d.Booking.TripDate,
		&d.Booking.BoardingStop, &d.Booking.SeatNumber,
		&d.Booking.Status, &d.Booking.PaymentStatus, &d.Booking.QRCode,
		&d.Student.Name, &d.Student.Email, &d.Student.Phone, &d.Student.RollNumber,
		&d.Route.Code, &d.Route.Name,
		&d.Schedule.DepartureTime, &d.Schedule.Direction,
	)
	if err != nil {
		return models.BookingDetail{}, err
	}
	d.Student.ID = d.Booking.StudentID
	d.Route.ID = d.Booking.RouteID
	d.Schedule.ID = d.Booking.ScheduleID
	return d, nil
}

// FindDetailByQRCode resolves a scanned code to its non-cancelled booking.
func (r BookingRepository) FindDetailByQRCode(ctx context.Context, code string) (models.BookingDetail, error) {
	row := r.db().QueryRowContext(ctx,
		bookingDetailSelect+` WHERE b.qr_code = ? AND b.status <> 'cancelled' LIMIT 1`,
		strings.TrimSpace(code))
	return scanBookingDetail(row)
}

// GetDetailByID loads one booking with its joined context.
func (r BookingRepository) GetDetailByID(ctx context.Context, id int64) (models.BookingDetail, error) {
	if id <= 0 {
		return models.BookingDetail{}, ErrNotFound
	}
	row := r.db().QueryRowContext(ctx, bookingDetailSelect+` WHERE b.id = ? LIMIT 1`, id)
	return scanBookingDetail(row)
}

// ListRouteAttendance returns every confirmed/completed booking of a route/date with its
// attendance state ("unmarked" when no row exists yet).
func (r BookingRepository) ListRouteAttendance(ctx context.Context, routeID int64, date string) ([]models.RouteAttendanceRow, error) {
	rows, err := r.db().QueryContext(ctx, `
		SELECT
			b.id, b.student_id, s.name, COALESCE(s.roll_number, ''),
			COALESCE(b.boarding_stop, ''), COALESCE(b.seat_number, ''),
			COALESCE(a.status, 'unmarked'), COALESCE(a.marked_by, ''), a.boarding_time
		FROM bookings b
		JOIN students s ON s.id = b.student_id
		LEFT JOIN attendance a ON a.booking_id = b.id AND a.trip_date = b.trip_date
		WHERE b.route_id = ? AND b.trip_date = ? AND b.status IN ('confirmed', 'completed')
		ORDER BY b.boarding_stop, s.name`, routeID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.RouteAttendanceRow{}
	for rows.Next() {
		var (
			row      models.RouteAttendanceRow
			markedAt sql.NullTime
		)
		if err := rows.Scan(
			&row.BookingID, &row.StudentID, &row.StudentName, &row.RollNumber,
			&row.BoardingStop, &row.SeatNumber,
			&row.Status, &row.MarkedBy, &markedAt,
		); err != nil {
			return out, err
		}
		row.MarkedAt = scanTime(markedAt)
		out = append(out, row)
	}
	return out, rows.Err()
}

// ListReminderTargets returns confirmed bookings travelling on date.
func (r BookingRepository) ListReminderTargets(ctx context.Context, date string) ([]models.ReminderTarget, error) {
	rows, err := r.db().QueryContext(ctx, `
		SELECT
			b.id, b.student_id, s.name, s.email, r.name,
			DATE_FORMAT(b.trip_date, '%Y-%m-%d'), TIME_FORMAT(sc.departure_time, '%H:%i'),
			COALESCE(b.boarding_stop, '')
		FROM bookings b
		JOIN students s ON s.id = b.student_id
		JOIN routes r ON r.id = b.route_id
		JOIN schedules sc ON sc.id = b.schedule_id
		WHERE b.trip_date = ? AND b.status = 'confirmed'
		ORDER BY sc.departure_time, b.id`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.ReminderTarget{}
	for rows.Next() {
		var t models.ReminderTarget
		if err := rows.Scan(
			&t.BookingID, &t.StudentID, &t.StudentName, &t.StudentEmail, &t.RouteName,
			&t.TripDate, &t.DepartureTime, &t.BoardingStop,
		); err != nil {
			return out, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// RouteName returns the display name of a route.
func (r BookingRepository) RouteName(ctx context.Context, routeID int64) (string, error) {
	var name string
	err := r.db().QueryRowContext(ctx, `SELECT name FROM routes WHERE id = ? LIMIT 1`, routeID).Scan(&name)
	return name, err
}

// BackfillTicketCodes gives every booking stored without a scannable code a fresh one and
// returns how many rows were filled.
func (r BookingRepository) BackfillTicketCodes(ctx context.Context, newCode func() string) (int64, error) {
	rows, err := r.db().QueryContext(ctx, `SELECT id FROM bookings WHERE qr_code = '' ORDER BY id`)
	if err != nil {
		return 0, err
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()

	var filled int64
	for _, id := range ids {
		res, err := r.db().ExecContext(ctx,
			`UPDATE bookings SET qr_code = ? WHERE id = ? AND qr_code = ''`, newCode(), id)
		if err != nil {
			return filled, err
		}
		n, _ := res.RowsAffected()
		filled += n
	}
	return filled, nil
}
