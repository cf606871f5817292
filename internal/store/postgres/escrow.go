package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/taskradar/taskradar/internal/domain"
)

const escrowColumns = `id, job_id, amount, status, held_at, released_at, refunded_at`

func scanEscrow(row rowScanner) (*domain.Escrow, error) {
	var e domain.Escrow
	err := row.Scan(&e.ID, &e.JobID, &e.Amount, &e.Status, &e.HeldAt, &e.ReleasedAt, &e.RefundedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// GetEscrow retrieves an escrow by id.
func (s *Store) GetEscrow(ctx context.Context, id uuid.UUID) (*domain.Escrow, error) {
	e, err := scanEscrow(s.pool.QueryRow(ctx, `SELECT `+escrowColumns+` FROM escrows WHERE id = $1`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: get escrow: %w", err)
	}
	return e, nil
}

// EscrowByJob retrieves the escrow bound to a job.
func (s *Store) EscrowByJob(ctx context.Context, jobID uuid.UUID) (*domain.Escrow, error) {
	e, err := scanEscrow(s.pool.QueryRow(ctx, `SELECT `+escrowColumns+` FROM escrows WHERE job_id = $1`, jobID))
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: escrow by job: %w", err)
	}
	return e, nil
}

// ReleaseEscrow moves HELD to RELEASED; the conditional update is the
// terminal-state guard.
func (s *Store) ReleaseEscrow(ctx context.Context, id uuid.UUID, now time.Time) (*domain.Escrow, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE escrows SET status = 'RELEASED', released_at = $2
		WHERE id = $1 AND status = 'HELD'
		RETURNING `+escrowColumns,
		id, now)
	e, err := scanEscrow(row)
	if err != nil {
		if isNoRows(err) {
			if _, getErr := s.GetEscrow(ctx, id); getErr != nil {
				return nil, getErr
			}
			return nil, domain.ErrInvalidTransition
		}
		return nil, fmt.Errorf("postgres: release escrow: %w", err)
	}
	return e, nil
}
