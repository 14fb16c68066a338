package services

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"transitportal/internal/domain"
	"transitportal/internal/domain/models"
	"transitportal/internal/repositories"
	"transitportal/internal/utils"
)

const defaultStaleAfter = 15 * time.Minute

// Skip reasons reported by RunTracker.
const (
	SkipAlreadyCompleted = "already_completed"
	SkipInProgress       = "in_progress"
)

// RunOutcome is what a tracked job reports back.
type RunOutcome struct {
	Sent    int
	Summary any
}

// RunResult describes one tracked invocation.
type RunResult struct {
	RunID    int64                `json:"run_id,omitempty"`
	Skipped  bool                 `json:"skipped"`
	Reason   string               `json:"reason,omitempty"`
	Existing *models.SchedulerRun `json:"existing,omitempty"`
	Status   string               `json:"status"`
	Summary  any                  `json:"summary,omitempty"`
	Sent     int                  `json:"notifications_sent"`
	Error    string               `json:"error,omitempty"`
}

// RunTracker executes a job at most once per RunKey unless forced, recording the attempt
// in scheduler_runs.
type RunTracker struct {
	Runs       RunStore
	Clock      utils.Clock
	StaleAfter time.Duration
	RequestID  string
}

func (t RunTracker) runs() RunStore {
	if t.Runs != nil {
		return t.Runs
	}
	return repositories.SchedulerRunRepository{}
}

func (t RunTracker) now() time.Time {
	if t.Clock != nil {
		return t.Clock()
	}
	return time.Now()
}

// Run skips when key already completed (or is running within the stale window) and force
// is false. Otherwise it inserts a running row, executes job and finalizes the row. A job
// error is returned alongside the failed result.
func (t RunTracker) Run(ctx context.Context, key models.RunKey, force, dryRun bool, job func(context.Context) (RunOutcome, error)) (RunResult, error) {
	if !force {
		since := t.now().Add(-positiveDuration(t.StaleAfter, defaultStaleAfter))
		existing, found, err := t.runs().FindBlocking(ctx, key, since)
		if err != nil {
			return RunResult{}, domain.Persistence("check scheduler run", err)
		}
		if found {
			reason := SkipInProgress
			if existing.Status == models.RunCompleted {
				reason = SkipAlreadyCompleted
			}
			utils.LogEvent(t.RequestID, "scheduler", "skip",
				fmt.Sprintf("type=%s date=%s slot=%s reason=%s", key.Type, key.RunDate, key.TimeSlot, reason))
			return RunResult{Skipped: true, Reason: reason, Existing: &existing, Status: existing.Status}, nil
		}
	}

	id, err := t.runs().Start(ctx, key, dryRun, t.now())
	if err != nil {
		return RunResult{}, domain.Persistence("start scheduler run", err)
	}
	utils.LogEvent(t.RequestID, "scheduler", "start",
		fmt.Sprintf("run_id=%d type=%s date=%s slot=%s force=%t dry_run=%t", id, key.Type, key.RunDate, key.TimeSlot, force, dryRun))

	outcome, jobErr := safeJob(ctx, job)
	res := RunResult{RunID: id, Status: models.RunCompleted, Summary: outcome.Summary, Sent: outcome.Sent}

	var summary []byte
	if outcome.Summary != nil {
		summary, _ = json.Marshal(outcome.Summary)
	}
	errMsg := ""
	if jobErr != nil {
		res.Status = models.RunFailed
		res.Error = jobErr.Error()
		errMsg = jobErr.Error()
	}

	// the row is finalized even when the caller's context is gone
	finishCtx := context.WithoutCancel(ctx)
	if err := t.runs().Finish(finishCtx, id, res.Status, summary, outcome.Sent, errMsg, t.now()); err != nil {
		return res, domain.Persistence("finish scheduler run", err)
	}
	utils.LogEvent(t.RequestID, "scheduler", "finish",
		fmt.Sprintf("run_id=%d status=%s sent=%d", id, res.Status, outcome.Sent))
	return res, jobErr
}

func safeJob(ctx context.Context, job func(context.Context) (RunOutcome, error)) (out RunOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = domain.InternalError{Msg: "scheduler job panicked", Err: fmt.Errorf("%v", r)}
		}
	}()
	return job(ctx)
}

// TriggerRequest is the input of the daily reminder trigger.
type TriggerRequest struct {
	SchedulerKey string
	TargetDate   string
	TimeSlot     string
	DryRun       bool
	Force        bool
}

// DailySummary is stored as result_summary of a daily reminder run.
type DailySummary struct {
	ReminderDate string           `json:"reminder_date"`
	Reminders    ReminderSummary  `json:"reminders"`
	Purged       int64            `json:"purged_notifications"`
	FollowUps    *ReminderSummary `json:"follow_ups,omitempty"`
}

type TriggerResult struct {
	RunResult
	SchedulerType string `json:"scheduler_type"`
	RunDate       string `json:"run_date"`
	TimeSlot      string `json:"time_slot"`
	Forced        bool   `json:"forced"`
	DryRun        bool   `json:"dry_run"`
}

// SlotStatus is one slot of a status report; Run is nil when the slot has not run.
type SlotStatus struct {
	TimeSlot string               `json:"time_slot"`
	Status   string               `json:"status"`
	Run      *models.SchedulerRun `json:"run,omitempty"`
	Attempts int                  `json:"attempts"`
}

type StatusResult struct {
	Date             string           `json:"date"`
	CurrentTime      string           `json:"current_time"`
	Slots            []SlotStatus     `json:"slots"`
	ShouldRun5PM     bool             `json:"shouldRun5PM"`
	ShouldRun6PM     bool             `json:"shouldRun6PM"`
	NextScheduledRun string           `json:"nextScheduledRun"`
	Statistics       *models.RunStats `json:"statistics,omitempty"`
}

// DailyReminderScheduler runs the booking reminder job in the 17:00 and 18:00 slots.
type DailyReminderScheduler struct {
	Tracker   RunTracker
	Reminders ReminderService
	Key       string
	Clock     utils.Clock
	Location  *time.Location
	RequestID string
}

func (s DailyReminderScheduler) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}

func (s DailyReminderScheduler) loc() *time.Location {
	if s.Location != nil {
		return s.Location
	}
	return time.Local
}

func slotHour(slot string) int {
	if slot == models.Slot6PM {
		return 18
	}
	return 17
}

// ResolveSlot validates an explicit slot or derives it from the hour of now.
func ResolveSlot(requested string, now time.Time) (string, error) {
	requested = strings.TrimSpace(requested)
	if requested != "" {
		for _, slot := range models.DailySlots {
			if requested == slot {
				return slot, nil
			}
		}
		return "", domain.ValidationError{Field: "timeSlot", Msg: "time slot must be 17:00 or 18:00"}
	}
	switch now.Hour() {
	case 17:
		return models.Slot5PM, nil
	case 18:
		return models.Slot6PM, nil
	}
	return "", domain.ValidationError{
		Field: "timeSlot",
		Msg:   fmt.Sprintf("no time slot given and current hour %02d is not a scheduled slot", now.Hour()),
	}
}

// Trigger checks the scheduler key, resolves date and slot, and runs the daily job through
// the tracker. The 18:00 slot always runs.
func (s DailyReminderScheduler) Trigger(ctx context.Context, req TriggerRequest) (TriggerResult, error) {
	if s.Key == "" || subtle.ConstantTimeCompare([]byte(req.SchedulerKey), []byte(s.Key)) != 1 {
		utils.LogEvent(s.RequestID, "scheduler", "reject", "invalid scheduler key")
		return TriggerResult{}, domain.AuthorizationError{Unauthenticated: true, Msg: "invalid scheduler key"}
	}

	now := s.now().In(s.loc())
	slot, err := ResolveSlot(req.TimeSlot, now)
	if err != nil {
		return TriggerResult{}, err
	}
	runDate := strings.TrimSpace(req.TargetDate)
	if runDate == "" {
		runDate = utils.FormatDate(now, s.loc())
	}
	if _, err := utils.ParseDate(runDate, s.loc()); err != nil {
		return TriggerResult{}, domain.ValidationError{Field: "targetDate", Msg: "target date must be YYYY-MM-DD"}
	}
	reminderDate := runDate
	force := req.Force || slot == models.Slot6PM

	key := models.RunKey{Type: models.SchedulerBookingReminders, RunDate: runDate, TimeSlot: slot}
	out := TriggerResult{
		SchedulerType: key.Type,
		RunDate:       runDate,
		TimeSlot:      slot,
		Forced:        force,
		DryRun:        req.DryRun,
	}

	reminders := s.Reminders
	reminders.RequestID = s.RequestID
	// 18:00 chases the earlier reminders before sending this run's batch, so a follow-up
	// never targets a reminder from the same run.
	job := func(ctx context.Context) (RunOutcome, error) {
		sum := DailySummary{ReminderDate: reminderDate}
		sent := 0
		if slot == models.Slot6PM {
			fu, err := reminders.SendFollowUps(ctx, req.DryRun)
			sum.FollowUps = &fu
			sent += fu.Sent
			if err != nil {
				return RunOutcome{Sent: sent, Summary: sum}, err
			}
		}
		rem, err := reminders.SendBookingReminders(ctx, reminderDate, req.DryRun)
		sum.Reminders = rem
		sent += rem.Sent
		if err != nil {
			return RunOutcome{Sent: sent, Summary: sum}, err
		}
		if slot == models.Slot5PM {
			purged, err := reminders.PurgeOld(ctx, req.DryRun)
			sum.Purged = purged
			if err != nil {
				return RunOutcome{Sent: sent, Summary: sum}, err
			}
		}
		return RunOutcome{Sent: sent, Summary: sum}, nil
	}

	tracker := s.Tracker
	tracker.RequestID = s.RequestID
	res, err := tracker.Run(ctx, key, force, req.DryRun, job)
	out.RunResult = res
	return out, err
}

// Status reports the day's slots, whether each should run now, the next scheduled run and,
// when detailed, statistics over the last seven days.
func (s DailyReminderScheduler) Status(ctx context.Context, date string, detailed bool) (StatusResult, error) {
	now := s.now().In(s.loc())
	date = strings.TrimSpace(date)
	if date == "" {
		date = utils.FormatDate(now, s.loc())
	}
	day, err := utils.ParseDate(date, s.loc())
	if err != nil {
		return StatusResult{}, domain.ValidationError{Field: "date", Msg: "date must be YYYY-MM-DD"}
	}

	runs, err := s.Tracker.runs().ListForDate(ctx, models.SchedulerBookingReminders, date)
	if err != nil {
		return StatusResult{}, domain.Persistence("list scheduler runs", err)
	}

	out := StatusResult{
		Date:             date,
		CurrentTime:      now.Format(time.RFC3339),
		NextScheduledRun: nextScheduledRun(now).Format(time.RFC3339),
	}
	for _, slot := range models.DailySlots {
		st := SlotStatus{TimeSlot: slot, Status: models.RunNotRun}
		completed := false
		for i := range runs {
			r := runs[i]
			if r.TimeSlot != slot {
				continue
			}
			st.Attempts++
			st.Run = &r
			st.Status = r.Status
			if r.Status == models.RunCompleted && !r.DryRun {
				completed = true
			}
		}
		due := time.Date(day.Year(), day.Month(), day.Day(), slotHour(slot), 0, 0, 0, s.loc())
		should := !completed && !now.Before(due)
		if slot == models.Slot5PM {
			out.ShouldRun5PM = should
		} else {
			out.ShouldRun6PM = should
		}
		out.Slots = append(out.Slots, st)
	}

	if detailed {
		stats, err := s.Tracker.runs().Stats(ctx, models.SchedulerBookingReminders, now.AddDate(0, 0, -7))
		if err != nil {
			return StatusResult{}, domain.Persistence("scheduler statistics", err)
		}
		out.Statistics = &stats
	}
	return out, nil
}

// nextScheduledRun is the first slot strictly after now.
func nextScheduledRun(now time.Time) time.Time {
	for _, slot := range models.DailySlots {
		at := time.Date(now.Year(), now.Month(), now.Day(), slotHour(slot), 0, 0, 0, now.Location())
		if at.After(now) {
			return at
		}
	}
	tomorrow := now.AddDate(0, 0, 1)
	return time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), slotHour(models.Slot5PM), 0, 0, 0, now.Location())
}
