package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/taskradar/taskradar/internal/domain"
)

const bidColumns = `id, job_id, provider_id, price, estimated_eta, note, status, created_at`

func scanBid(row rowScanner) (*domain.Bid, error) {
	var b domain.Bid
	err := row.Scan(&b.ID, &b.JobID, &b.ProviderID, &b.Price, &b.EstimatedETA, &b.Note, &b.Status, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// CreateBid inserts a PENDING bid. The job row is locked first so the
// BROADCASTED check cannot race an acceptance committing in parallel, and
// the (job_id, provider_id) unique constraint enforces one bid per provider.
func (s *Store) CreateBid(ctx context.Context, b *domain.Bid) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: create bid: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var status domain.JobStatus
	err = tx.QueryRow(ctx, `SELECT status FROM jobs WHERE id = $1 FOR UPDATE`, b.JobID).Scan(&status)
	if err != nil {
		if isNoRows(err) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("postgres: create bid: lock job: %w", err)
	}

	// Duplicate rejection outranks the status gate; checked under the job
	// lock so it cannot race a parallel insert.
	var exists bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM bids WHERE job_id = $1 AND provider_id = $2)`,
		b.JobID, b.ProviderID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("postgres: create bid: duplicate check: %w", err)
	}
	if exists {
		return domain.ErrDuplicateBid
	}
	if status != domain.JobBroadcasted {
		return domain.ErrInvalidTransition
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO bids (id, job_id, provider_id, price, estimated_eta, note, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		b.ID, b.JobID, b.ProviderID, b.Price, b.EstimatedETA, b.Note, b.Status, b.CreatedAt)
	if err != nil {
		if isDuplicateKey(err) {
			return domain.ErrDuplicateBid
		}
		return fmt.Errorf("postgres: create bid: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: create bid: commit: %w", err)
	}
	return nil
}

// GetBid retrieves a bid by id.
func (s *Store) GetBid(ctx context.Context, id uuid.UUID) (*domain.Bid, error) {
	b, err := scanBid(s.pool.QueryRow(ctx, `SELECT `+bidColumns+` FROM bids WHERE id = $1`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: get bid: %w", err)
	}
	return b, nil
}

// PendingBidsByJob lists a job's PENDING bids, oldest first.
func (s *Store) PendingBidsByJob(ctx context.Context, jobID uuid.UUID) ([]*domain.Bid, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+bidColumns+` FROM bids WHERE job_id = $1 AND status = 'PENDING' ORDER BY created_at ASC`,
		jobID)
	if err != nil {
		return nil, fmt.Errorf("postgres: pending bids: %w", err)
	}
	defer rows.Close()

	var out []*domain.Bid
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: pending bids: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// AcceptBid settles the auction in one transaction: lock the job row, verify
// job BROADCASTED and bid PENDING, accept the winner, reject every other
// PENDING bid, book the job at the bid price, and hold escrow.
func (s *Store) AcceptBid(ctx context.Context, bidID uuid.UUID, now time.Time) (*domain.Job, *domain.Bid, *domain.Escrow, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("postgres: accept bid: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		jobID     uuid.UUID
		bidStatus domain.BidStatus
	)
	err = tx.QueryRow(ctx, `SELECT job_id, status FROM bids WHERE id = $1`, bidID).
		Scan(&jobID, &bidStatus)
	if err != nil {
		if isNoRows(err) {
			return nil, nil, nil, domain.ErrNotFound
		}
		return nil, nil, nil, fmt.Errorf("postgres: accept bid: read bid: %w", err)
	}

	var jobStatus domain.JobStatus
	err = tx.QueryRow(ctx, `SELECT status FROM jobs WHERE id = $1 FOR UPDATE`, jobID).Scan(&jobStatus)
	if err != nil {
		if isNoRows(err) {
			return nil, nil, nil, domain.ErrNotFound
		}
		return nil, nil, nil, fmt.Errorf("postgres: accept bid: lock job: %w", err)
	}

	// Re-read the bid under the job lock; a parallel acceptance may have
	// rejected it between the first read and the lock.
	err = tx.QueryRow(ctx, `SELECT status FROM bids WHERE id = $1`, bidID).Scan(&bidStatus)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("postgres: accept bid: reread bid: %w", err)
	}
	if jobStatus != domain.JobBroadcasted || bidStatus != domain.BidPending {
		return nil, nil, nil, domain.ErrAlreadyTaken
	}

	winner, err := scanBid(tx.QueryRow(ctx, `
		UPDATE bids SET status = 'ACCEPTED' WHERE id = $1
		RETURNING `+bidColumns, bidID))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("postgres: accept bid: accept winner: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE bids SET status = 'REJECTED' WHERE job_id = $1 AND id <> $2 AND status = 'PENDING'`,
		jobID, bidID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("postgres: accept bid: reject others: %w", err)
	}

	j, err := scanJob(tx.QueryRow(ctx, `
		UPDATE jobs
		SET status = 'BOOKED', provider_id = $2, final_price = $3, updated_at = $4
		WHERE id = $1
		RETURNING`+jobColumns,
		jobID, winner.ProviderID, winner.Price, now))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("postgres: accept bid: book job: %w", err)
	}

	esc, err := holdEscrow(ctx, tx, jobID, winner.Price, now)
	if err != nil {
		return nil, nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, nil, fmt.Errorf("postgres: accept bid: commit: %w", err)
	}
	return j, winner, esc, nil
}
