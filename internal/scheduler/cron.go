// Package scheduler fires the daily reminder slots in-process.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"transitportal/internal/domain/models"
	"transitportal/internal/services"
	"transitportal/internal/utils"
)

// Specs maps each daily slot to its cron expression, evaluated in the configured timezone.
var Specs = map[string]string{
	models.Slot5PM: "0 17 * * *",
	models.Slot6PM: "0 18 * * *",
}

const defaultJobTimeout = 10 * time.Minute

// Triggerer runs one daily reminder slot; services.DailyReminderScheduler implements it.
type Triggerer interface {
	Trigger(ctx context.Context, req services.TriggerRequest) (services.TriggerResult, error)
}

// Runner invokes the scheduler with the server's own key, exactly like an external trigger.
type Runner struct {
	Scheduler func(requestID string) Triggerer
	Key       string
	Timeout   time.Duration
}

// FromDeps builds a Runner over the configured services.
func FromDeps(deps services.Deps) Runner {
	return Runner{
		Scheduler: func(requestID string) Triggerer { return deps.Scheduler(requestID) },
		Key:       deps.SchedulerKey,
	}
}

// RunSlot triggers slot for today and logs the outcome.
func (r Runner) RunSlot(ctx context.Context, slot string) (services.TriggerResult, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = defaultJobTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	rid := "cron-" + uuid.NewString()
	res, err := r.Scheduler(rid).Trigger(ctx, services.TriggerRequest{SchedulerKey: r.Key, TimeSlot: slot})
	if err != nil {
		utils.Logger().Error("scheduled reminder run failed",
			zap.String("request_id", rid), zap.String("slot", slot), zap.Error(err))
		return res, err
	}
	utils.LogEvent(rid, "scheduler", "cron",
		fmt.Sprintf("slot=%s date=%s skipped=%t status=%s sent=%d", slot, res.RunDate, res.Skipped, res.Status, res.Sent))
	return res, nil
}

// New registers both daily slots on a cron in loc. The caller starts and stops it.
func New(r Runner, loc *time.Location) (*cron.Cron, error) {
	if loc == nil {
		loc = time.Local
	}
	logger := zapCronLogger{l: utils.Logger().Sugar()}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	for _, slot := range models.DailySlots {
		if _, err := c.AddFunc(Specs[slot], func() {
			_, _ = r.RunSlot(context.Background(), slot)
		}); err != nil {
			return nil, fmt.Errorf("failed to schedule slot %s: %w", slot, err)
		}
	}
	return c, nil
}

// zapCronLogger adapts zap to cron.Logger.
type zapCronLogger struct {
	l *zap.SugaredLogger
}

func (z zapCronLogger) Info(msg string, keysAndValues ...any) {
	z.l.Infow(msg, keysAndValues...)
}

func (z zapCronLogger) Error(err error, msg string, keysAndValues ...any) {
	z.l.Errorw(msg, append(keysAndValues, "error", err)...)
}
