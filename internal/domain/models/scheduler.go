package models

import "time"

// Scheduler run statuses; RunNotRun is only reported by status queries, never stored.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
	RunNotRun    = "not_run"
)

// SchedulerBookingReminders is the daily reminder job type.
const SchedulerBookingReminders = "booking_reminders"

// Daily reminder time slots.
const (
	Slot5PM = "17:00"
	Slot6PM = "18:00"
)

// DailySlots lists the slots in firing order.
var DailySlots = []string{Slot5PM, Slot6PM}

// RunKey identifies one idempotent scheduler execution.
type RunKey struct {
	Type     string
	RunDate  string
	TimeSlot string
}

// SchedulerRun is the audit/idempotency row of a scheduler execution.
type SchedulerRun struct {
	ID                int64      `json:"id"`
	SchedulerType     string     `json:"scheduler_type"`
	RunDate           string     `json:"run_date"`
	TimeSlot          string     `json:"time_slot"`
	Status            string     `json:"status"`
	DryRun            bool       `json:"dry_run"`
	StartedAt         time.Time  `json:"started_at"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	ResultSummary     string     `json:"result_summary,omitempty"`
	NotificationsSent int        `json:"notifications_sent"`
	ErrorMessage      string     `json:"error_message,omitempty"`
}

// RunStats aggregates scheduler runs over a window.
type RunStats struct {
	TotalRuns              int     `json:"total_runs"`
	SuccessfulRuns         int     `json:"successful_runs"`
	FailedRuns             int     `json:"failed_runs"`
	TotalNotificationsSent int     `json:"total_notifications_sent"`
	AverageDurationSeconds float64 `json:"average_duration_seconds"`
}
