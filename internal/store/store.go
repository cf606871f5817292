// Package store defines narrow per-entity repository interfaces exposing
// exactly the atomic operations the dispatch core needs. The composite Store
// composes them; backends are Postgres and Memory.
//
// Every check-then-mutate operation here is atomic with respect to all other
// mutators of the same job: the Postgres backend scopes each to a single
// transaction with the job row locked, the memory backend to a single mutex
// hold. Callers never get a generic error for a lost race; they get
// domain.ErrAlreadyTaken (or the relevant business outcome).
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/taskradar/taskradar/internal/domain"
)

// JobStore persists jobs and owns the job-status state machine transitions.
type JobStore interface {
	CreateJob(ctx context.Context, j *domain.Job) error
	GetJob(ctx context.Context, id uuid.UUID) (*domain.Job, error)
	JobsByCustomer(ctx context.Context, customerID uuid.UUID) ([]*domain.Job, error)

	// MarkBroadcasted moves a PENDING job to BROADCASTED at the given stage
	// (0 for quick-book, 1 for the first post-quote stage).
	MarkBroadcasted(ctx context.Context, jobID uuid.UUID, stage int, now time.Time) (*domain.Job, error)

	// AdvanceStage raises broadcastStage to stage if and only if the job is
	// still BROADCASTED and the stage strictly increases. advanced=false
	// with a nil error is the no-op case (acceptance or cancellation won the
	// race); escalation callbacks rely on it.
	AdvanceStage(ctx context.Context, jobID uuid.UUID, stage int, now time.Time) (j *domain.Job, advanced bool, err error)

	// AcceptQuickBook atomically binds the provider: checks the job is
	// BROADCASTED and the deadline has not passed, sets
	// status=BOOKED/providerId/finalPrice=estimatedPrice, and creates the
	// HELD escrow, all in one unit. Losers of a concurrent race get
	// domain.ErrAlreadyTaken.
	AcceptQuickBook(ctx context.Context, jobID, providerID uuid.UUID, now time.Time) (*domain.Job, *domain.Escrow, error)

	// ExpireQuickBook moves a quick-book job that is still PENDING or
	// BROADCASTED to EXPIRED. expired=false means the job already left the
	// acceptable states and the reaper must do nothing.
	ExpireQuickBook(ctx context.Context, jobID uuid.UUID, now time.Time) (expired bool, err error)

	// CompleteJob moves a BOOKED job to COMPLETED on behalf of its customer.
	CompleteJob(ctx context.Context, jobID, customerID uuid.UUID, now time.Time) (*domain.Job, error)

	// CancelJob cancels on behalf of the job's customer or bound provider,
	// refunding any HELD escrow when the prior status was BOOKED. The
	// returned escrow is non-nil only when a refund happened.
	CancelJob(ctx context.Context, jobID, actorID uuid.UUID, now time.Time) (*domain.Job, *domain.Escrow, error)
}

// BidStore persists bids and owns the single-winner bid acceptance.
type BidStore interface {
	// CreateBid inserts a PENDING bid after verifying, atomically, that the
	// job exists and is still BROADCASTED. At most one bid may exist per
	// (job, provider) pair; violations return domain.ErrDuplicateBid.
	CreateBid(ctx context.Context, b *domain.Bid) error
	GetBid(ctx context.Context, id uuid.UUID) (*domain.Bid, error)
	PendingBidsByJob(ctx context.Context, jobID uuid.UUID) ([]*domain.Bid, error)

	// AcceptBid atomically: marks the bid ACCEPTED, rejects every other
	// PENDING bid on the job, books the job at the bid price, and creates
	// the HELD escrow. Requires job BROADCASTED and bid PENDING; anything
	// else is domain.ErrAlreadyTaken.
	AcceptBid(ctx context.Context, bidID uuid.UUID, now time.Time) (*domain.Job, *domain.Bid, *domain.Escrow, error)
}

// EscrowStore reads escrows and performs the release transition. Holds and
// refunds happen inside JobStore/BidStore transactions.
type EscrowStore interface {
	GetEscrow(ctx context.Context, id uuid.UUID) (*domain.Escrow, error)
	EscrowByJob(ctx context.Context, jobID uuid.UUID) (*domain.Escrow, error)

	// ReleaseEscrow moves a HELD escrow to RELEASED. Terminal escrows return
	// domain.ErrInvalidTransition.
	ReleaseEscrow(ctx context.Context, id uuid.UUID, now time.Time) (*domain.Escrow, error)
}

// ProviderStore persists provider dispatch profiles and answers the
// category/availability half of candidate search plus the price history
// query behind guidance.
type ProviderStore interface {
	UpsertProvider(ctx context.Context, p *domain.Provider) error
	GetProvider(ctx context.Context, userID uuid.UUID) (*domain.Provider, error)

	// AvailableByCategory returns available providers serving the category;
	// radius filtering happens in the geo package.
	AvailableByCategory(ctx context.Context, categoryID uuid.UUID) ([]*domain.Provider, error)

	// CompletedPrices returns final prices of completed jobs in a category.
	CompletedPrices(ctx context.Context, categoryID uuid.UUID) ([]float64, error)
}

// UserStore persists accounts for the auth surface.
type UserStore interface {
	CreateUser(ctx context.Context, u *domain.User) error
	UserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// Store is the aggregate persistence interface a backend implements.
type Store interface {
	JobStore
	BidStore
	EscrowStore
	ProviderStore
	UserStore

	// Migrate runs schema bootstrap.
	Migrate(ctx context.Context) error

	// Ping checks connectivity.
	Ping(ctx context.Context) error

	// Close releases the backend connection.
	Close() error
}
