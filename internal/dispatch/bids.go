package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskradar/taskradar/internal/domain"
	"github.com/taskradar/taskradar/internal/notify"
)

// BidInput is a provider's quote on a post-&-quote job.
type BidInput struct {
	JobID        uuid.UUID
	ProviderID   uuid.UUID
	Price        float64
	EstimatedETA int // minutes
	Note         string
}

// SubmitBidResult reports the created bid and whether it was auto-hired.
type SubmitBidResult struct {
	Bid       *domain.Bid `json:"bid"`
	AutoHired bool        `json:"auto_hired"`
}

// SubmitBid records a provider's quote. If the customer set an accept price
// and the quote meets it, the bid is auto-hired through the same acceptance
// transaction an explicit pick uses; otherwise the customer is notified of
// the new bid.
func (s *Service) SubmitBid(ctx context.Context, in BidInput) (*SubmitBidResult, error) {
	if in.Price <= 0 {
		return nil, fmt.Errorf("%w: price must be positive", domain.ErrValidation)
	}
	if in.EstimatedETA <= 0 || in.EstimatedETA > s.cfg.MaxETAMinutes {
		return nil, fmt.Errorf("%w: eta out of range", domain.ErrValidation)
	}

	job, err := s.store.GetJob(ctx, in.JobID)
	if err != nil {
		return nil, err
	}
	if job.Type != domain.JobPostQuote {
		return nil, fmt.Errorf("%w: job does not take bids", domain.ErrInvalidTransition)
	}
	if job.Status != domain.JobBroadcasted {
		return nil, domain.ErrInvalidTransition
	}

	bid := &domain.Bid{
		ID:           uuid.New(),
		JobID:        in.JobID,
		ProviderID:   in.ProviderID,
		Price:        in.Price,
		EstimatedETA: in.EstimatedETA,
		Note:         in.Note,
		Status:       domain.BidPending,
		CreatedAt:    s.now(),
	}
	if err := s.store.CreateBid(ctx, bid); err != nil {
		return nil, err
	}

	if job.AcceptPrice != nil && in.Price <= *job.AcceptPrice {
		accepted, err := s.settleBid(ctx, bid.ID)
		if err == nil {
			return &SubmitBidResult{Bid: accepted.Bid, AutoHired: true}, nil
		}
		if !errors.Is(err, domain.ErrAlreadyTaken) {
			return nil, err
		}
		// A concurrent acceptance won between insert and auto-hire; the bid
		// was rejected in that transaction. Report it without auto-hire.
		s.log.Info("auto-hire lost acceptance race",
			zap.String("job_id", in.JobID.String()),
			zap.String("bid_id", bid.ID.String()))
		if rejected, getErr := s.store.GetBid(ctx, bid.ID); getErr == nil {
			bid = rejected
		}
		return &SubmitBidResult{Bid: bid, AutoHired: false}, nil
	}

	s.gateway.Push(job.CustomerID, notify.Event{
		Type: notify.EventBidReceived,
		Data: map[string]any{
			"job_id":      job.ID.String(),
			"bid_id":      bid.ID.String(),
			"provider_id": bid.ProviderID.String(),
			"price":       bid.Price,
			"eta_minutes": bid.EstimatedETA,
		},
	})
	return &SubmitBidResult{Bid: bid, AutoHired: false}, nil
}

// RankBids orders a job's PENDING bids for customer display: cheapest first,
// ties broken by higher provider rating, then earlier submission. Read-only.
func (s *Service) RankBids(ctx context.Context, jobID uuid.UUID) ([]*domain.RankedBid, error) {
	if _, err := s.store.GetJob(ctx, jobID); err != nil {
		return nil, err
	}
	bids, err := s.store.PendingBidsByJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	ranked := make([]*domain.RankedBid, 0, len(bids))
	for _, b := range bids {
		rb := &domain.RankedBid{Bid: *b}
		if p, err := s.store.GetProvider(ctx, b.ProviderID); err == nil {
			rb.ProviderRating = p.AverageRating
			rb.CompletedJobs = p.CompletedJobs
		}
		ranked = append(ranked, rb)
	}

	sort.SliceStable(ranked, func(i, k int) bool {
		a, b := ranked[i], ranked[k]
		if a.Price != b.Price {
			return a.Price < b.Price
		}
		if a.ProviderRating != b.ProviderRating {
			return a.ProviderRating > b.ProviderRating
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	return ranked, nil
}
