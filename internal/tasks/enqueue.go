package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Enqueuer schedules dispatch tasks; it satisfies dispatch.Scheduler.
type Enqueuer struct {
	client *asynq.Client
}

// NewEnqueuer wraps an asynq client.
func NewEnqueuer(client *asynq.Client) *Enqueuer {
	return &Enqueuer{client: client}
}

// ScheduleStageAdvance enqueues a stage escalation to fire after delay.
func (e *Enqueuer) ScheduleStageAdvance(ctx context.Context, jobID uuid.UUID, stage int, delay time.Duration) error {
	payload, err := json.Marshal(StageAdvancePayload{JobID: jobID, Stage: stage, QueuedAt: time.Now()})
	if err != nil {
		return fmt.Errorf("tasks: marshal stage advance: %w", err)
	}
	task := asynq.NewTask(TaskStageAdvance, payload)
	_, err = e.client.EnqueueContext(ctx, task, asynq.Queue(QueueDispatch), asynq.ProcessIn(delay))
	if err != nil {
		return fmt.Errorf("tasks: enqueue stage advance: %w", err)
	}
	return nil
}

// ScheduleQuickBookExpiry enqueues the deadline reaper to fire at the
// quick-book deadline.
func (e *Enqueuer) ScheduleQuickBookExpiry(ctx context.Context, jobID uuid.UUID, at time.Time) error {
	payload, err := json.Marshal(QuickBookExpirePayload{JobID: jobID, QueuedAt: time.Now()})
	if err != nil {
		return fmt.Errorf("tasks: marshal expiry: %w", err)
	}
	task := asynq.NewTask(TaskQuickBookExpire, payload)
	_, err = e.client.EnqueueContext(ctx, task, asynq.Queue(QueueDispatch), asynq.ProcessAt(at))
	if err != nil {
		return fmt.Errorf("tasks: enqueue expiry: %w", err)
	}
	return nil
}
