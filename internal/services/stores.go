package services

import (
	"context"
	"time"

	"transitportal/internal/domain/models"
)

// BookingStore is implemented by repositories.BookingRepository.
type BookingStore interface {
	FindDetailByQRCode(ctx context.Context, code string) (models.BookingDetail, error)
	GetDetailByID(ctx context.Context, id int64) (models.BookingDetail, error)
	ListRouteAttendance(ctx context.Context, routeID int64, date string) ([]models.RouteAttendanceRow, error)
	RouteName(ctx context.Context, routeID int64) (string, error)
}

// ReminderTargetStore lists bookings whose students get a reminder.
type ReminderTargetStore interface {
	ListReminderTargets(ctx context.Context, date string) ([]models.ReminderTarget, error)
}

// AttendanceStore must enforce one row per (booking, trip date): Insert reports a second
// row as repositories.ErrDuplicate.
type AttendanceStore interface {
	GetByBookingDate(ctx context.Context, bookingID int64, date string) (models.Attendance, error)
	Insert(ctx context.Context, a models.Attendance) (int64, error)
	Upsert(ctx context.Context, a models.Attendance) error
	MarkMissingAbsent(ctx context.Context, routeID int64, date, markedBy, note string, at time.Time) ([]models.RouteAttendanceRow, int64, error)
}

type AssignmentStore interface {
	IsAssigned(ctx context.Context, email string, routeID int64) (bool, error)
	ListRoutes(ctx context.Context, email string) ([]models.StaffRouteAssignment, error)
	Assign(ctx context.Context, email string, routeID int64) error
	Unassign(ctx context.Context, email string, routeID int64) (bool, error)
}

type UserStore interface {
	FindByLogin(ctx context.Context, login string) (models.User, error)
	EmailByID(ctx context.Context, id int64) (string, error)
}

// RunStore persists scheduler_runs.
type RunStore interface {
	FindBlocking(ctx context.Context, key models.RunKey, runningSince time.Time) (models.SchedulerRun, bool, error)
	Start(ctx context.Context, key models.RunKey, dryRun bool, startedAt time.Time) (int64, error)
	Finish(ctx context.Context, id int64, status string, summary []byte, sent int, errMsg string, completedAt time.Time) error
	ListForDate(ctx context.Context, schedulerType, date string) ([]models.SchedulerRun, error)
	Stats(ctx context.Context, schedulerType string, since time.Time) (models.RunStats, error)
}

type NotificationStore interface {
	Insert(ctx context.Context, n models.Notification) (int64, error)
	PurgeOlderThan(ctx context.Context, before time.Time) (int64, error)
	ListUnresponded(ctx context.Context, notificationType string, since time.Time, limit int) ([]models.Notification, error)
}
