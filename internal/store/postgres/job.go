package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/taskradar/taskradar/internal/domain"
)

const jobColumns = `
	id, customer_id, provider_id, category_id, type, status,
	latitude, longitude, address,
	estimated_price, accept_price, final_price,
	quick_book_deadline, bidding_ends_at, broadcast_stage, last_broadcast_at,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var j domain.Job
	err := row.Scan(
		&j.ID, &j.CustomerID, &j.ProviderID, &j.CategoryID, &j.Type, &j.Status,
		&j.Latitude, &j.Longitude, &j.Address,
		&j.EstimatedPrice, &j.AcceptPrice, &j.FinalPrice,
		&j.QuickBookDeadline, &j.BiddingEndsAt, &j.BroadcastStage, &j.LastBroadcastAt,
		&j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// CreateJob persists a new job.
func (s *Store) CreateJob(ctx context.Context, j *domain.Job) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO jobs (
			id, customer_id, provider_id, category_id, type, status,
			latitude, longitude, address,
			estimated_price, accept_price, final_price,
			quick_book_deadline, bidding_ends_at, broadcast_stage, last_broadcast_at,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
		j.ID, j.CustomerID, j.ProviderID, j.CategoryID, j.Type, j.Status,
		j.Latitude, j.Longitude, j.Address,
		j.EstimatedPrice, j.AcceptPrice, j.FinalPrice,
		j.QuickBookDeadline, j.BiddingEndsAt, j.BroadcastStage, j.LastBroadcastAt,
		j.CreatedAt, j.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by id.
func (s *Store) GetJob(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	j, err := scanJob(s.pool.QueryRow(ctx, `SELECT`+jobColumns+` FROM jobs WHERE id = $1`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: get job: %w", err)
	}
	return j, nil
}

// JobsByCustomer lists a customer's jobs, newest first.
func (s *Store) JobsByCustomer(ctx context.Context, customerID uuid.UUID) ([]*domain.Job, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT`+jobColumns+` FROM jobs WHERE customer_id = $1 ORDER BY created_at DESC`, customerID)
	if err != nil {
		return nil, fmt.Errorf("postgres: jobs by customer: %w", err)
	}
	defer rows.Close()

	var out []*domain.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: jobs by customer: %w", err)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// MarkBroadcasted moves a PENDING job to BROADCASTED at the given stage.
func (s *Store) MarkBroadcasted(ctx context.Context, jobID uuid.UUID, stage int, now time.Time) (*domain.Job, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE jobs
		SET status = 'BROADCASTED', broadcast_stage = $2, last_broadcast_at = $3, updated_at = $3
		WHERE id = $1 AND status = 'PENDING'
		RETURNING`+jobColumns,
		jobID, stage, now)
	j, err := scanJob(row)
	if err != nil {
		if isNoRows(err) {
			// Missing row and wrong status are distinguished by a plain read.
			if _, getErr := s.GetJob(ctx, jobID); getErr != nil {
				return nil, getErr
			}
			return nil, domain.ErrInvalidTransition
		}
		return nil, fmt.Errorf("postgres: mark broadcasted: %w", err)
	}
	return j, nil
}

// AdvanceStage raises broadcastStage only while the job is still BROADCASTED
// and the stage strictly increases; otherwise it reports advanced=false.
func (s *Store) AdvanceStage(ctx context.Context, jobID uuid.UUID, stage int, now time.Time) (*domain.Job, bool, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE jobs
		SET broadcast_stage = $2, last_broadcast_at = $3, updated_at = $3
		WHERE id = $1 AND status = 'BROADCASTED' AND broadcast_stage < $2
		RETURNING`+jobColumns,
		jobID, stage, now)
	j, err := scanJob(row)
	if err == nil {
		return j, true, nil
	}
	if !isNoRows(err) {
		return nil, false, fmt.Errorf("postgres: advance stage: %w", err)
	}
	j, getErr := s.GetJob(ctx, jobID)
	if getErr != nil {
		return nil, false, getErr
	}
	return j, false, nil
}

// AcceptQuickBook binds the first accepting provider in one transaction: the
// job row is locked, the status and deadline are re-checked under the lock,
// and the booking update plus escrow insert commit together.
func (s *Store) AcceptQuickBook(ctx context.Context, jobID, providerID uuid.UUID, now time.Time) (*domain.Job, *domain.Escrow, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: accept quick book: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		status   domain.JobStatus
		price    float64
		deadline *time.Time
	)
	err = tx.QueryRow(ctx,
		`SELECT status, estimated_price, quick_book_deadline FROM jobs WHERE id = $1 FOR UPDATE`,
		jobID).Scan(&status, &price, &deadline)
	if err != nil {
		if isNoRows(err) {
			return nil, nil, domain.ErrNotFound
		}
		return nil, nil, fmt.Errorf("postgres: accept quick book: lock job: %w", err)
	}
	if status != domain.JobBroadcasted {
		return nil, nil, domain.ErrAlreadyTaken
	}
	if deadline != nil && now.After(*deadline) {
		return nil, nil, domain.ErrDeadlinePassed
	}

	j, err := scanJob(tx.QueryRow(ctx, `
		UPDATE jobs
		SET status = 'BOOKED', provider_id = $2, final_price = estimated_price, updated_at = $3
		WHERE id = $1
		RETURNING`+jobColumns,
		jobID, providerID, now))
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: accept quick book: book: %w", err)
	}

	esc, err := holdEscrow(ctx, tx, jobID, price, now)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("postgres: accept quick book: commit: %w", err)
	}
	return j, esc, nil
}

// ExpireQuickBook reaps an unaccepted quick-book job past its deadline.
func (s *Store) ExpireQuickBook(ctx context.Context, jobID uuid.UUID, now time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobs SET status = 'EXPIRED', updated_at = $2
		WHERE id = $1 AND status IN ('PENDING','BROADCASTED')`,
		jobID, now)
	if err != nil {
		return false, fmt.Errorf("postgres: expire quick book: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, getErr := s.GetJob(ctx, jobID); getErr != nil {
			return false, getErr
		}
		return false, nil
	}
	return true, nil
}

// CompleteJob moves a BOOKED job to COMPLETED for its customer.
func (s *Store) CompleteJob(ctx context.Context, jobID, customerID uuid.UUID, now time.Time) (*domain.Job, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: complete job: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		owner  uuid.UUID
		status domain.JobStatus
	)
	err = tx.QueryRow(ctx, `SELECT customer_id, status FROM jobs WHERE id = $1 FOR UPDATE`, jobID).
		Scan(&owner, &status)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: complete job: lock job: %w", err)
	}
	if owner != customerID {
		return nil, domain.ErrUnauthorized
	}
	if status != domain.JobBooked {
		return nil, domain.ErrInvalidTransition
	}

	j, err := scanJob(tx.QueryRow(ctx, `
		UPDATE jobs SET status = 'COMPLETED', updated_at = $2 WHERE id = $1
		RETURNING`+jobColumns,
		jobID, now))
	if err != nil {
		return nil, fmt.Errorf("postgres: complete job: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("postgres: complete job: commit: %w", err)
	}
	return j, nil
}

// CancelJob cancels for the customer or bound provider, refunding any HELD
// escrow when the job was BOOKED. Authorization and the status check happen
// under the job row lock so they cannot race acceptance.
func (s *Store) CancelJob(ctx context.Context, jobID, actorID uuid.UUID, now time.Time) (*domain.Job, *domain.Escrow, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: cancel job: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		customerID uuid.UUID
		providerID *uuid.UUID
		status     domain.JobStatus
	)
	err = tx.QueryRow(ctx,
		`SELECT customer_id, provider_id, status FROM jobs WHERE id = $1 FOR UPDATE`, jobID).
		Scan(&customerID, &providerID, &status)
	if err != nil {
		if isNoRows(err) {
			return nil, nil, domain.ErrNotFound
		}
		return nil, nil, fmt.Errorf("postgres: cancel job: lock job: %w", err)
	}

	isCustomer := actorID == customerID
	isProvider := providerID != nil && actorID == *providerID
	if !isCustomer && !isProvider {
		return nil, nil, domain.ErrUnauthorized
	}
	if status.Terminal() {
		return nil, nil, domain.ErrInvalidTransition
	}

	target := domain.JobCancelledByCustomer
	if !isCustomer {
		target = domain.JobCancelledByProvider
	}

	var refunded *domain.Escrow
	if status == domain.JobBooked {
		refunded, err = refundEscrow(ctx, tx, jobID, now)
		if err != nil {
			return nil, nil, err
		}
	}

	j, err := scanJob(tx.QueryRow(ctx, `
		UPDATE jobs SET status = $2, updated_at = $3 WHERE id = $1
		RETURNING`+jobColumns,
		jobID, target, now))
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: cancel job: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("postgres: cancel job: commit: %w", err)
	}
	return j, refunded, nil
}

// holdEscrow inserts the HELD record inside the caller's transaction.
func holdEscrow(ctx context.Context, tx pgx.Tx, jobID uuid.UUID, amount float64, now time.Time) (*domain.Escrow, error) {
	esc := &domain.Escrow{
		ID:     uuid.New(),
		JobID:  jobID,
		Amount: amount,
		Status: domain.EscrowHeld,
		HeldAt: now,
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO escrows (id, job_id, amount, status, held_at)
		VALUES ($1, $2, $3, 'HELD', $4)`,
		esc.ID, esc.JobID, esc.Amount, esc.HeldAt)
	if err != nil {
		return nil, fmt.Errorf("postgres: hold escrow: %w", err)
	}
	return esc, nil
}

// refundEscrow flips a HELD escrow to REFUNDED inside the caller's
// transaction. Returns nil when no HELD escrow exists.
func refundEscrow(ctx context.Context, tx pgx.Tx, jobID uuid.UUID, now time.Time) (*domain.Escrow, error) {
	row := tx.QueryRow(ctx, `
		UPDATE escrows SET status = 'REFUNDED', refunded_at = $2
		WHERE job_id = $1 AND status = 'HELD'
		RETURNING id, job_id, amount, status, held_at, released_at, refunded_at`,
		jobID, now)
	esc, err := scanEscrow(row)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: refund escrow: %w", err)
	}
	return esc, nil
}
