package dispatch

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskradar/taskradar/internal/domain"
	"github.com/taskradar/taskradar/internal/notify"
)

// ReleaseEscrow releases held funds to the provider. Only the job's customer
// may release, and only from HELD; terminal escrows fail with
// ErrInvalidTransition.
func (s *Service) ReleaseEscrow(ctx context.Context, escrowID, customerID uuid.UUID) (*domain.Escrow, error) {
	esc, err := s.store.GetEscrow(ctx, escrowID)
	if err != nil {
		return nil, err
	}
	job, err := s.store.GetJob(ctx, esc.JobID)
	if err != nil {
		return nil, err
	}
	if job.CustomerID != customerID {
		return nil, domain.ErrUnauthorized
	}

	esc, err = s.store.ReleaseEscrow(ctx, escrowID, s.now())
	if err != nil {
		return nil, err
	}
	s.log.Info("escrow released",
		zap.String("escrow_id", escrowID.String()),
		zap.String("job_id", job.ID.String()),
		zap.Float64("amount", esc.Amount))

	if job.ProviderID != nil {
		s.gateway.Push(*job.ProviderID, notify.Event{
			Type: notify.EventEscrowReleased,
			Data: map[string]any{
				"job_id":    job.ID.String(),
				"escrow_id": esc.ID.String(),
				"amount":    esc.Amount,
			},
		})
	}
	return esc, nil
}

// EscrowByJob returns the escrow bound to a job; only the job's parties may
// read it.
func (s *Service) EscrowByJob(ctx context.Context, jobID, actorID uuid.UUID) (*domain.Escrow, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if actorID != job.CustomerID && (job.ProviderID == nil || actorID != *job.ProviderID) {
		return nil, domain.ErrUnauthorized
	}
	return s.store.EscrowByJob(ctx, jobID)
}
