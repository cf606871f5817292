// Package dispatch is the matching core: job creation and staged broadcast,
// bid submission/ranking/auto-hire, the single-winner acceptance
// transactions, cancellation, and escrow release.
//
// All per-job atomicity lives in the store; this layer orchestrates
// validation, candidate search, scheduling of delayed escalations, and
// fire-and-forget notifications.
package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskradar/taskradar/internal/notify"
	"github.com/taskradar/taskradar/internal/store"
)

// Scheduler enqueues durable delayed tasks. Escalation and expiry callbacks
// re-check job state at fire time, so a task outliving its job is harmless.
type Scheduler interface {
	ScheduleStageAdvance(ctx context.Context, jobID uuid.UUID, stage int, delay time.Duration) error
	ScheduleQuickBookExpiry(ctx context.Context, jobID uuid.UUID, at time.Time) error
}

// Config carries the dispatch tunables. The broadcast radii and stage
// timings are deployment parameters, not invariants.
type Config struct {
	QuickBookRadiusKm float64
	StageOneRadiusKm  float64
	StageTwoRadiusKm  float64
	StageTwoDelay     time.Duration
	StageThreeDelay   time.Duration

	BiddingWindow        time.Duration
	DefaultArrivalWindow time.Duration
	MaxArrivalWindow     time.Duration
	MaxETAMinutes        int
}

// DefaultConfig returns the canonical tunables.
func DefaultConfig() Config {
	return Config{
		QuickBookRadiusKm:    5,
		StageOneRadiusKm:     3,
		StageTwoRadiusKm:     10,
		StageTwoDelay:        5 * time.Minute,
		StageThreeDelay:      10 * time.Minute,
		BiddingWindow:        6 * time.Hour,
		DefaultArrivalWindow: time.Hour,
		MaxArrivalWindow:     12 * time.Hour,
		MaxETAMinutes:        480,
	}
}

// Service wires the dispatch core together.
type Service struct {
	store   store.Store
	gateway notify.Gateway
	sched   Scheduler
	cfg     Config
	log     *zap.Logger

	// now is swappable for deterministic tests.
	now func() time.Time
}

// New builds a Service.
func New(st store.Store, gw notify.Gateway, sched Scheduler, cfg Config, log *zap.Logger) *Service {
	return &Service{
		store:   st,
		gateway: gw,
		sched:   sched,
		cfg:     cfg,
		log:     log,
		now:     time.Now,
	}
}
