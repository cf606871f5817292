package dispatch

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskradar/taskradar/internal/domain"
	"github.com/taskradar/taskradar/internal/geo"
	"github.com/taskradar/taskradar/internal/notify"
)

// findCandidates returns available providers serving the job's category
// within radiusKm of it (radiusKm <= 0 means unrestricted), optionally
// limited to Tier-A.
func (s *Service) findCandidates(ctx context.Context, job *domain.Job, radiusKm float64, tierAOnly bool) ([]*domain.Provider, error) {
	providers, err := s.store.AvailableByCategory(ctx, job.CategoryID)
	if err != nil {
		return nil, err
	}
	if tierAOnly {
		providers = geo.TierOnly(providers, domain.TierA)
	}
	return geo.WithinRadius(providers, job.Latitude, job.Longitude, radiusKm), nil
}

// notifyProviders pushes the event to each provider, skipping any ids in
// except. Best-effort by construction.
func (s *Service) notifyProviders(providers []*domain.Provider, evt notify.Event, except ...uuid.UUID) {
	skip := make(map[uuid.UUID]bool, len(except))
	for _, id := range except {
		skip[id] = true
	}
	for _, p := range providers {
		if !skip[p.UserID] {
			s.gateway.Push(p.UserID, evt)
		}
	}
}

// AdvanceStage is the delayed escalation callback for post-&-quote jobs. It
// re-checks that the job is still BROADCASTED before touching anything:
// acceptance or cancellation may already have terminated the job, in which
// case this is a no-op. Stage 2 widens the radius to all tiers; stage 3
// drops the radius restriction entirely and is scheduled from here.
func (s *Service) AdvanceStage(ctx context.Context, jobID uuid.UUID, stage int) error {
	job, advanced, err := s.store.AdvanceStage(ctx, jobID, stage, s.now())
	if err != nil {
		return err
	}
	if !advanced {
		s.log.Debug("stage advance skipped, job no longer broadcasting",
			zap.String("job_id", jobID.String()),
			zap.Int("stage", stage),
			zap.String("status", string(job.Status)))
		return nil
	}

	radius := s.cfg.StageTwoRadiusKm
	if stage >= 3 {
		radius = 0 // every qualified provider
	}
	candidates, err := s.findCandidates(ctx, job, radius, false)
	if err != nil {
		return err
	}
	s.notifyProviders(candidates, notify.Event{Type: notify.EventJobOffer, Data: jobEventData(job)})
	s.log.Info("broadcast stage advanced",
		zap.String("job_id", jobID.String()),
		zap.Int("stage", stage),
		zap.Int("candidates", len(candidates)))

	if stage == 2 {
		if err := s.sched.ScheduleStageAdvance(ctx, jobID, 3, s.cfg.StageThreeDelay); err != nil {
			s.log.Warn("schedule stage 3 failed",
				zap.String("job_id", jobID.String()), zap.Error(err))
		}
	}
	return nil
}

// ExpireQuickBook is the deadline-reaper callback for quick-book jobs. Jobs
// that were accepted or cancelled in the meantime are left untouched.
func (s *Service) ExpireQuickBook(ctx context.Context, jobID uuid.UUID) error {
	expired, err := s.store.ExpireQuickBook(ctx, jobID, s.now())
	if err != nil {
		return err
	}
	if !expired {
		return nil
	}
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	s.gateway.Push(job.CustomerID, notify.Event{Type: notify.EventJobExpired, Data: jobEventData(job)})
	s.log.Info("quick-book job expired", zap.String("job_id", jobID.String()))
	return nil
}
