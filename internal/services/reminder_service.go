package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"transitportal/internal/domain"
	"transitportal/internal/domain/models"
	"transitportal/internal/notify"
	"transitportal/internal/repositories"
	"transitportal/internal/utils"
)

const (
	defaultNotifierTimeout = 10 * time.Second
	defaultFollowUpWindow  = 2 * time.Hour
	defaultFollowUpLimit   = 100
	defaultRetentionDays   = 30
)

// ReminderSummary counts one dispatch pass.
type ReminderSummary struct {
	Date      string `json:"date,omitempty"`
	Attempted int    `json:"attempted"`
	Sent      int    `json:"sent"`
	Failed    int    `json:"failed"`
	DryRun    bool   `json:"dry_run"`
}

// ReminderService sends booking reminders and follow-ups through a Notifier and records
// each attempt in notifications.
type ReminderService struct {
	Targets        ReminderTargetStore
	Notifications  NotificationStore
	Notifier       notify.Notifier
	Clock          utils.Clock
	Timeout        time.Duration
	FollowUpWindow time.Duration
	FollowUpLimit  int
	RetentionDays  int
	RequestID      string
}

func (s ReminderService) targets() ReminderTargetStore {
	if s.Targets != nil {
		return s.Targets
	}
	return repositories.BookingRepository{}
}

func (s ReminderService) notifications() NotificationStore {
	if s.Notifications != nil {
		return s.Notifications
	}
	return repositories.NotificationRepository{}
}

func (s ReminderService) notifier() notify.Notifier {
	if s.Notifier != nil {
		return s.Notifier
	}
	return notify.LogNotifier{Logger: utils.Logger()}
}

func (s ReminderService) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}

func positiveDuration(v, def time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return def
}

func positiveInt(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

// send delivers one message under the notifier timeout.
func (s ReminderService) send(ctx context.Context, msg notify.Message) error {
	cctx, cancel := context.WithTimeout(ctx, positiveDuration(s.Timeout, defaultNotifierTimeout))
	defer cancel()
	if err := s.notifier().Send(cctx, msg); err != nil {
		return domain.UpstreamError{Service: "notifier", Err: err}
	}
	return nil
}

// deliver sends msg and records the attempt. Only storage failures are returned.
func (s ReminderService) deliver(ctx context.Context, msg notify.Message, sum *ReminderSummary) error {
	status := models.NotificationSent
	if err := s.send(ctx, msg); err != nil {
		status = models.NotificationFailed
		sum.Failed++
		utils.LogEvent(s.RequestID, "reminder", "send_failed",
			fmt.Sprintf("student_id=%d booking_id=%d: %v", msg.StudentID, msg.BookingID, errors.Unwrap(err)))
	} else {
		sum.Sent++
	}
	_, err := s.notifications().Insert(ctx, models.Notification{
		StudentID: msg.StudentID,
		BookingID: msg.BookingID,
		Type:      msg.Type,
		Title:     msg.Title,
		Body:      msg.Body,
		Status:    status,
		SentAt:    s.now(),
	})
	if err != nil {
		return domain.Persistence("record notification", err)
	}
	return nil
}

// allFailed turns a pass where every delivery failed into an upstream error.
func allFailed(sum ReminderSummary) error {
	if sum.Attempted > 0 && sum.Sent == 0 {
		return domain.UpstreamError{Service: "notifier", Err: fmt.Errorf("all %d deliveries failed", sum.Failed)}
	}
	return nil
}

// SendBookingReminders reminds every student with a confirmed booking on date.
func (s ReminderService) SendBookingReminders(ctx context.Context, date string, dryRun bool) (ReminderSummary, error) {
	sum := ReminderSummary{Date: date, DryRun: dryRun}
	targets, err := s.targets().ListReminderTargets(ctx, date)
	if err != nil {
		return sum, domain.Persistence("list reminder targets", err)
	}
	sum.Attempted = len(targets)
	if dryRun {
		return sum, nil
	}

	for _, t := range targets {
		if err := ctx.Err(); err != nil {
			return sum, domain.UpstreamError{Service: "notifier", Err: err}
		}
		msg := notify.Message{
			StudentID: t.StudentID,
			BookingID: t.BookingID,
			Email:     t.StudentEmail,
			Type:      models.NotificationBookingReminder,
			Title:     "Trip reminder",
			Body: fmt.Sprintf("Hi %s, your %s bus departs on %s at %s from %s. Show your ticket QR code when boarding.",
				utils.Safe(t.StudentName, "there"), utils.Safe(t.RouteName, "campus"), t.TripDate,
				utils.Safe(t.DepartureTime, "-"), utils.Safe(t.BoardingStop, "your stop")),
		}
		if err := s.deliver(ctx, msg, &sum); err != nil {
			return sum, err
		}
	}
	utils.LogEvent(s.RequestID, "reminder", "booking_reminders",
		fmt.Sprintf("date=%s attempted=%d sent=%d failed=%d", date, sum.Attempted, sum.Sent, sum.Failed))
	return sum, allFailed(sum)
}

// SendFollowUps re-notifies students whose booking reminder from the follow-up window has
// no recorded response.
func (s ReminderService) SendFollowUps(ctx context.Context, dryRun bool) (ReminderSummary, error) {
	sum := ReminderSummary{DryRun: dryRun}
	since := s.now().Add(-positiveDuration(s.FollowUpWindow, defaultFollowUpWindow))
	pending, err := s.notifications().ListUnresponded(ctx, models.NotificationBookingReminder, since,
		positiveInt(s.FollowUpLimit, defaultFollowUpLimit))
	if err != nil {
		return sum, domain.Persistence("list unresponded notifications", err)
	}
	sum.Attempted = len(pending)
	if dryRun {
		return sum, nil
	}

	for _, n := range pending {
		if err := ctx.Err(); err != nil {
			return sum, domain.UpstreamError{Service: "notifier", Err: err}
		}
		msg := notify.Message{
			StudentID: n.StudentID,
			BookingID: n.BookingID,
			Type:      models.NotificationFollowUp,
			Title:     "Reminder: " + n.Title,
			Body:      n.Body,
		}
		if err := s.deliver(ctx, msg, &sum); err != nil {
			return sum, err
		}
	}
	utils.LogEvent(s.RequestID, "reminder", "follow_ups",
		fmt.Sprintf("attempted=%d sent=%d failed=%d", sum.Attempted, sum.Sent, sum.Failed))
	return sum, allFailed(sum)
}

// PurgeOld deletes notifications past the retention period. Dry runs delete nothing.
func (s ReminderService) PurgeOld(ctx context.Context, dryRun bool) (int64, error) {
	if dryRun {
		return 0, nil
	}
	cutoff := s.now().AddDate(0, 0, -positiveInt(s.RetentionDays, defaultRetentionDays))
	n, err := s.notifications().PurgeOlderThan(ctx, cutoff)
	if err != nil {
		return 0, domain.Persistence("purge notifications", err)
	}
	utils.LogEvent(s.RequestID, "reminder", "purge", fmt.Sprintf("deleted=%d before=%s", n, cutoff.Format(time.RFC3339)))
	return n, nil
}
