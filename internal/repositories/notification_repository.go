package repositories

import (
	"context"
	"database/sql"
	"time"

	"transitportal/internal/domain/models"
)

type NotificationRepository struct {
	DB *sql.DB
}

func (r NotificationRepository) db() *sql.DB { return fallbackDB(r.DB) }

func (r NotificationRepository) Insert(ctx context.Context, n models.Notification) (int64, error) {
	var bookingID any
	if n.BookingID > 0 {
		bookingID = n.BookingID
	}
	res, err := r.db().ExecContext(ctx, `
		INSERT INTO notifications (student_id, booking_id, type, title, body, status, sent_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.StudentID, bookingID, n.Type, n.Title, n.Body, n.Status, n.SentAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// PurgeOlderThan deletes notifications created before the cutoff.
func (r NotificationRepository) PurgeOlderThan(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db().ExecContext(ctx, `DELETE FROM notifications WHERE created_at < ?`, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListUnresponded returns sent notifications of a type since the given time that have no
// recorded response, newest first, capped at limit.
func (r NotificationRepository) ListUnresponded(ctx context.Context, notificationType string, since time.Time, limit int) ([]models.Notification, error) {
	rows, err := r.db().QueryContext(ctx, `
		SELECT id, student_id, COALESCE(booking_id, 0), type, title, body, status, sent_at
		FROM notifications
		WHERE type = ? AND status = 'sent' AND responded_at IS NULL AND sent_at >= ?
		ORDER BY sent_at DESC
		LIMIT ?`, notificationType, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Notification{}
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.StudentID, &n.BookingID, &n.Type, &n.Title, &n.Body, &n.Status, &n.SentAt); err != nil {
			return out, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
