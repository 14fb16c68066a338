package services

import (
	"database/sql"
	"time"

	intconfig "transitportal/internal/config"
	"transitportal/internal/notify"
	"transitportal/internal/repositories"
	"transitportal/internal/utils"
)

// BookingRepo is the booking store plus reminder targeting, as one repository serves both.
type BookingRepo interface {
	BookingStore
	ReminderTargetStore
}

// Deps holds the stores and settings the request-scoped services are built from.
type Deps struct {
	Bookings      BookingRepo
	Attendance    AttendanceStore
	Assignments   AssignmentStore
	Users         UserStore
	Runs          RunStore
	Notifications NotificationStore
	Notifier      notify.Notifier

	Clock          utils.Clock
	Location       *time.Location
	SchedulerKey   string
	StaleAfter     time.Duration
	Timeout        time.Duration
	FollowUpWindow time.Duration
	FollowUpLimit  int
	RetentionDays  int
}

// NewDeps wires MySQL repositories over db with the settings from env.
func NewDeps(env intconfig.Env, db *sql.DB, notifier notify.Notifier) (Deps, error) {
	loc, err := env.Location()
	if err != nil {
		return Deps{}, err
	}
	return Deps{
		Bookings:       repositories.BookingRepository{DB: db},
		Attendance:     repositories.AttendanceRepository{DB: db},
		Assignments:    repositories.StaffRepository{DB: db},
		Users:          repositories.UserRepository{DB: db},
		Runs:           repositories.SchedulerRunRepository{DB: db},
		Notifications:  repositories.NotificationRepository{DB: db},
		Notifier:       notifier,
		Clock:          utils.SystemClock,
		Location:       loc,
		SchedulerKey:   env.SchedulerKey,
		StaleAfter:     env.SchedulerStaleAfter,
		Timeout:        env.OutboundTimeout,
		FollowUpWindow: env.FollowUpWindow,
		FollowUpLimit:  env.ReminderFollowUpLimit,
		RetentionDays:  env.NotificationRetention,
	}, nil
}

func (d Deps) Auth(requestID string) AuthorizationService {
	return AuthorizationService{Assignments: d.Assignments, Users: d.Users, RequestID: requestID}
}

func (d Deps) Tickets(requestID string) TicketService {
	return TicketService{
		Bookings:   d.Bookings,
		Attendance: d.Attendance,
		Auth:       d.Auth(requestID),
		Clock:      d.Clock,
		Location:   d.Location,
		RequestID:  requestID,
	}
}

func (d Deps) Roster(requestID string) AttendanceService {
	return AttendanceService{
		Bookings:   d.Bookings,
		Attendance: d.Attendance,
		Auth:       d.Auth(requestID),
		Clock:      d.Clock,
		Location:   d.Location,
		RequestID:  requestID,
	}
}

func (d Deps) Docs(requestID string) DocsService {
	return DocsService{
		Bookings:   d.Bookings,
		Attendance: d.Roster(requestID),
		Clock:      d.Clock,
		Location:   d.Location,
		RequestID:  requestID,
	}
}

func (d Deps) Reminders(requestID string) ReminderService {
	return ReminderService{
		Targets:        d.Bookings,
		Notifications:  d.Notifications,
		Notifier:       d.Notifier,
		Clock:          d.Clock,
		Timeout:        d.Timeout,
		FollowUpWindow: d.FollowUpWindow,
		FollowUpLimit:  d.FollowUpLimit,
		RetentionDays:  d.RetentionDays,
		RequestID:      requestID,
	}
}

func (d Deps) Scheduler(requestID string) DailyReminderScheduler {
	return DailyReminderScheduler{
		Tracker: RunTracker{
			Runs:       d.Runs,
			Clock:      d.Clock,
			StaleAfter: d.StaleAfter,
			RequestID:  requestID,
		},
		Reminders: d.Reminders(requestID),
		Key:       d.SchedulerKey,
		Clock:     d.Clock,
		Location:  d.Location,
		RequestID: requestID,
	}
}
