package dispatch

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskradar/taskradar/internal/domain"
	"github.com/taskradar/taskradar/internal/notify"
)

// AcceptBidResult carries everything the acceptance bound together.
type AcceptBidResult struct {
	Job    *domain.Job    `json:"job"`
	Bid    *domain.Bid    `json:"bid"`
	Escrow *domain.Escrow `json:"escrow"`
}

// AcceptQuickBook binds the calling provider to a broadcast quick-book job.
// Concurrent callers for the same job get exactly one success; every loser
// gets domain.ErrAlreadyTaken. The escrow hold commits in the same
// transaction as the booking.
func (s *Service) AcceptQuickBook(ctx context.Context, jobID, providerID uuid.UUID) (*domain.Job, error) {
	job, esc, err := s.store.AcceptQuickBook(ctx, jobID, providerID, s.now())
	if err != nil {
		return nil, err
	}
	s.log.Info("quick-book job booked",
		zap.String("job_id", jobID.String()),
		zap.String("provider_id", providerID.String()),
		zap.String("escrow_id", esc.ID.String()))

	s.gateway.Push(job.CustomerID, notify.Event{Type: notify.EventJobBooked, Data: jobEventData(job)})

	// Tell the rest of the original candidate set the job is gone.
	if candidates, err := s.findCandidates(ctx, job, s.cfg.QuickBookRadiusKm, false); err == nil {
		s.notifyProviders(candidates,
			notify.Event{Type: notify.EventJobTaken, Data: jobEventData(job)},
			providerID)
	}
	return job, nil
}

// AcceptBid is the explicit-pick path: only the job's customer may call it.
func (s *Service) AcceptBid(ctx context.Context, bidID, customerID uuid.UUID) (*AcceptBidResult, error) {
	bid, err := s.store.GetBid(ctx, bidID)
	if err != nil {
		return nil, err
	}
	job, err := s.store.GetJob(ctx, bid.JobID)
	if err != nil {
		return nil, err
	}
	if job.CustomerID != customerID {
		return nil, domain.ErrUnauthorized
	}
	return s.settleBid(ctx, bidID)
}

// settleBid runs the single-winner bid acceptance and the post-commit
// notifications. Auto-hire enters here directly, bypassing the customer
// check, since the customer pre-authorized via the accept price.
func (s *Service) settleBid(ctx context.Context, bidID uuid.UUID) (*AcceptBidResult, error) {
	job, bid, esc, err := s.store.AcceptBid(ctx, bidID, s.now())
	if err != nil {
		return nil, err
	}
	s.log.Info("bid accepted",
		zap.String("job_id", job.ID.String()),
		zap.String("bid_id", bid.ID.String()),
		zap.String("provider_id", bid.ProviderID.String()),
		zap.Float64("price", bid.Price))

	s.gateway.Push(bid.ProviderID, notify.Event{
		Type: notify.EventBidAccepted,
		Data: map[string]any{
			"job_id": job.ID.String(),
			"bid_id": bid.ID.String(),
			"price":  bid.Price,
		},
	})
	s.gateway.Push(job.CustomerID, notify.Event{Type: notify.EventJobBooked, Data: jobEventData(job)})

	return &AcceptBidResult{Job: job, Bid: bid, Escrow: esc}, nil
}
