package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskradar/taskradar/internal/domain"
	"github.com/taskradar/taskradar/internal/geo"
	"github.com/taskradar/taskradar/internal/notify"
	"github.com/taskradar/taskradar/internal/pricing"
)

// QuickBookInput describes a quick-book request. ArrivalWindow bounds how
// long the customer will wait for a provider to accept; zero means the
// configured default.
type QuickBookInput struct {
	CategoryID    uuid.UUID
	Latitude      float64
	Longitude     float64
	Address       string
	ArrivalWindow time.Duration
}

// PostQuoteInput describes a post-&-quote request. AcceptPrice, when set,
// is the auto-hire threshold.
type PostQuoteInput struct {
	CategoryID     uuid.UUID
	Latitude       float64
	Longitude      float64
	Address        string
	EstimatedPrice float64
	AcceptPrice    *float64
}

// PriceGuidance returns the percentile summary for a category.
func (s *Service) PriceGuidance(ctx context.Context, categoryID uuid.UUID) (pricing.Guidance, error) {
	prices, err := s.store.CompletedPrices(ctx, categoryID)
	if err != nil {
		return pricing.Guidance{}, err
	}
	return pricing.Guide(prices), nil
}

// CreateQuickBookJob creates a quick-book job at the category's median
// price, broadcasts it to all matching providers in the quick-book radius in
// a single stage, and schedules the deadline reaper.
func (s *Service) CreateQuickBookJob(ctx context.Context, customerID uuid.UUID, in QuickBookInput) (*domain.Job, error) {
	if !geo.ValidCoordinates(in.Latitude, in.Longitude) {
		return nil, fmt.Errorf("%w: coordinates out of range", domain.ErrValidation)
	}
	if in.CategoryID == uuid.Nil {
		return nil, fmt.Errorf("%w: category required", domain.ErrValidation)
	}
	window := in.ArrivalWindow
	if window == 0 {
		window = s.cfg.DefaultArrivalWindow
	}
	if window < 0 || window > s.cfg.MaxArrivalWindow {
		return nil, fmt.Errorf("%w: arrival window out of range", domain.ErrValidation)
	}

	guidance, err := s.PriceGuidance(ctx, in.CategoryID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	deadline := now.Add(window)
	job := &domain.Job{
		ID:                uuid.New(),
		CustomerID:        customerID,
		CategoryID:        in.CategoryID,
		Type:              domain.JobQuickBook,
		Status:            domain.JobPending,
		Latitude:          in.Latitude,
		Longitude:         in.Longitude,
		Address:           in.Address,
		EstimatedPrice:    guidance.P50,
		QuickBookDeadline: &deadline,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	// The reaper is scheduled as soon as the job exists; a failure in the
	// broadcast below must not leave a PENDING job that never expires.
	if err := s.sched.ScheduleQuickBookExpiry(ctx, job.ID, deadline); err != nil {
		s.log.Warn("schedule quick-book expiry failed",
			zap.String("job_id", job.ID.String()), zap.Error(err))
	}

	candidates, err := s.findCandidates(ctx, job, s.cfg.QuickBookRadiusKm, false)
	if err != nil {
		return nil, err
	}
	if len(candidates) > 0 {
		job, err = s.store.MarkBroadcasted(ctx, job.ID, 0, s.now())
		if err != nil {
			return nil, err
		}
		s.notifyProviders(candidates, notify.Event{Type: notify.EventJobOffer, Data: jobEventData(job)})
	} else {
		s.log.Info("quick-book job has no candidates, staying pending",
			zap.String("job_id", job.ID.String()))
	}
	return job, nil
}

// CreatePostQuoteJob creates a bidding job, broadcasts it immediately at
// stage 1 (Tier-A providers in the narrow radius), and schedules the stage-2
// escalation.
func (s *Service) CreatePostQuoteJob(ctx context.Context, customerID uuid.UUID, in PostQuoteInput) (*domain.Job, error) {
	if !geo.ValidCoordinates(in.Latitude, in.Longitude) {
		return nil, fmt.Errorf("%w: coordinates out of range", domain.ErrValidation)
	}
	if in.CategoryID == uuid.Nil {
		return nil, fmt.Errorf("%w: category required", domain.ErrValidation)
	}
	if in.EstimatedPrice <= 0 {
		return nil, fmt.Errorf("%w: estimated price must be positive", domain.ErrValidation)
	}
	if in.AcceptPrice != nil && *in.AcceptPrice <= 0 {
		return nil, fmt.Errorf("%w: accept price must be positive", domain.ErrValidation)
	}

	now := s.now()
	ends := now.Add(s.cfg.BiddingWindow)
	job := &domain.Job{
		ID:             uuid.New(),
		CustomerID:     customerID,
		CategoryID:     in.CategoryID,
		Type:           domain.JobPostQuote,
		Status:         domain.JobPending,
		Latitude:       in.Latitude,
		Longitude:      in.Longitude,
		Address:        in.Address,
		EstimatedPrice: in.EstimatedPrice,
		AcceptPrice:    in.AcceptPrice,
		BiddingEndsAt:  &ends,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	job, err := s.store.MarkBroadcasted(ctx, job.ID, 1, s.now())
	if err != nil {
		return nil, err
	}

	candidates, err := s.findCandidates(ctx, job, s.cfg.StageOneRadiusKm, true)
	if err != nil {
		return nil, err
	}
	s.notifyProviders(candidates, notify.Event{Type: notify.EventJobOffer, Data: jobEventData(job)})

	if err := s.sched.ScheduleStageAdvance(ctx, job.ID, 2, s.cfg.StageTwoDelay); err != nil {
		s.log.Warn("schedule stage 2 failed",
			zap.String("job_id", job.ID.String()), zap.Error(err))
	}
	return job, nil
}

// GetJob returns a job by id.
func (s *Service) GetJob(ctx context.Context, jobID uuid.UUID) (*domain.Job, error) {
	return s.store.GetJob(ctx, jobID)
}

// ListCustomerJobs returns a customer's jobs, newest first.
func (s *Service) ListCustomerJobs(ctx context.Context, customerID uuid.UUID) ([]*domain.Job, error) {
	return s.store.JobsByCustomer(ctx, customerID)
}

// CompleteJob marks a BOOKED job COMPLETED on behalf of its customer. The
// final price then feeds the category's price guidance. Escrow stays HELD
// until the customer releases it explicitly.
func (s *Service) CompleteJob(ctx context.Context, jobID, customerID uuid.UUID) (*domain.Job, error) {
	job, err := s.store.CompleteJob(ctx, jobID, customerID, s.now())
	if err != nil {
		return nil, err
	}
	if job.ProviderID != nil {
		s.gateway.Push(*job.ProviderID, notify.Event{Type: notify.EventJobCompleted, Data: jobEventData(job)})
	}
	return job, nil
}

// CancelJob cancels on behalf of the customer or the bound provider and
// notifies the counterparty. A refund of HELD escrow happens inside the
// store transaction when the job was BOOKED.
func (s *Service) CancelJob(ctx context.Context, jobID, actorID uuid.UUID) (*domain.Job, error) {
	job, refunded, err := s.store.CancelJob(ctx, jobID, actorID, s.now())
	if err != nil {
		return nil, err
	}
	if refunded != nil {
		s.log.Info("escrow refunded on cancellation",
			zap.String("job_id", jobID.String()),
			zap.String("escrow_id", refunded.ID.String()))
	}

	evt := notify.Event{Type: notify.EventJobCancelled, Data: jobEventData(job)}
	switch {
	case actorID == job.CustomerID && job.ProviderID != nil:
		s.gateway.Push(*job.ProviderID, evt)
	case actorID != job.CustomerID:
		s.gateway.Push(job.CustomerID, evt)
	}
	return job, nil
}

func jobEventData(j *domain.Job) map[string]any {
	data := map[string]any{
		"job_id":      j.ID.String(),
		"category_id": j.CategoryID.String(),
		"type":        string(j.Type),
		"status":      string(j.Status),
		"address":     j.Address,
		"price":       j.EstimatedPrice,
	}
	if j.FinalPrice != nil {
		data["final_price"] = *j.FinalPrice
	}
	if j.BroadcastStage > 0 {
		data["broadcast_stage"] = j.BroadcastStage
	}
	return data
}
