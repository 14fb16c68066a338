package models

import "time"

// Notification types.
const (
	NotificationBookingReminder = "booking_reminder"
	NotificationFollowUp        = "booking_reminder_follow_up"
)

// Notification delivery statuses.
const (
	NotificationSent   = "sent"
	NotificationFailed = "failed"
)

// Notification is one message sent (or attempted) to a student.
type Notification struct {
	ID          int64      `json:"id"`
	StudentID   int64      `json:"student_id"`
	BookingID   int64      `json:"booking_id"`
	Type        string     `json:"type"`
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	Status      string     `json:"status"`
	SentAt      time.Time  `json:"sent_at"`
	RespondedAt *time.Time `json:"responded_at,omitempty"`
}

// ReminderTarget is a confirmed booking whose student should be reminded.
type ReminderTarget struct {
	BookingID     int64
	StudentID     int64
	StudentName   string
	StudentEmail  string
	RouteName     string
	TripDate      string
	DepartureTime string
	BoardingStop  string
}
