// Package tasks carries the durable delayed work behind the broadcast
// scheduler on asynq: stage escalations and quick-book expiry survive
// process restarts because the due time is persisted in Redis, and every
// handler re-checks job state at fire time, so a stale task is a no-op.
package tasks

import (
	"time"

	"github.com/google/uuid"
)

// Task type constants.
const (
	TaskStageAdvance    = "dispatch:stage_advance"
	TaskQuickBookExpire = "dispatch:quickbook_expire"
	QueueDispatch       = "dispatch"
)

// StageAdvancePayload drives a post-&-quote stage escalation.
type StageAdvancePayload struct {
	JobID    uuid.UUID `json:"job_id"`
	Stage    int       `json:"stage"`
	QueuedAt time.Time `json:"queued_at"`
}

// QuickBookExpirePayload drives the quick-book deadline reaper.
type QuickBookExpirePayload struct {
	JobID    uuid.UUID `json:"job_id"`
	QueuedAt time.Time `json:"queued_at"`
}
