// Package memory is a fully in-memory Store implementation. Safe for
// concurrent use; every operation runs under one mutex, which makes each
// check-then-mutate trivially atomic. Intended for unit tests and
// single-instance development.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/taskradar/taskradar/internal/domain"
	"github.com/taskradar/taskradar/internal/store"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	mu sync.Mutex

	jobs      map[uuid.UUID]*domain.Job
	bids      map[uuid.UUID]*domain.Bid
	escrows   map[uuid.UUID]*domain.Escrow
	providers map[uuid.UUID]*domain.Provider
	users     map[uuid.UUID]*domain.User
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		jobs:      make(map[uuid.UUID]*domain.Job),
		bids:      make(map[uuid.UUID]*domain.Bid),
		escrows:   make(map[uuid.UUID]*domain.Escrow),
		providers: make(map[uuid.UUID]*domain.Provider),
		users:     make(map[uuid.UUID]*domain.User),
	}
}

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (m *Store) Ping(context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// ----- jobs -----

func (m *Store) CreateJob(_ context.Context, j *domain.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[j.ID] = cloneJob(j)
	return nil
}

func (m *Store) GetJob(_ context.Context, id uuid.UUID) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneJob(j), nil
}

func (m *Store) JobsByCustomer(_ context.Context, customerID uuid.UUID) ([]*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Job
	for _, j := range m.jobs {
		if j.CustomerID == customerID {
			out = append(out, cloneJob(j))
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.After(out[k].CreatedAt) })
	return out, nil
}

func (m *Store) MarkBroadcasted(_ context.Context, jobID uuid.UUID, stage int, now time.Time) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if j.Status != domain.JobPending {
		return nil, domain.ErrInvalidTransition
	}
	j.Status = domain.JobBroadcasted
	j.BroadcastStage = stage
	t := now
	j.LastBroadcastAt = &t
	j.UpdatedAt = now
	return cloneJob(j), nil
}

func (m *Store) AdvanceStage(_ context.Context, jobID uuid.UUID, stage int, now time.Time) (*domain.Job, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[jobID]
	if !ok {
		return nil, false, domain.ErrNotFound
	}
	if j.Status != domain.JobBroadcasted || stage <= j.BroadcastStage {
		return cloneJob(j), false, nil
	}
	j.BroadcastStage = stage
	t := now
	j.LastBroadcastAt = &t
	j.UpdatedAt = now
	return cloneJob(j), true, nil
}

func (m *Store) AcceptQuickBook(_ context.Context, jobID, providerID uuid.UUID, now time.Time) (*domain.Job, *domain.Escrow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[jobID]
	if !ok {
		return nil, nil, domain.ErrNotFound
	}
	if j.Status != domain.JobBroadcasted {
		return nil, nil, domain.ErrAlreadyTaken
	}
	if j.QuickBookDeadline != nil && now.After(*j.QuickBookDeadline) {
		return nil, nil, domain.ErrDeadlinePassed
	}

	pid := providerID
	price := j.EstimatedPrice
	j.Status = domain.JobBooked
	j.ProviderID = &pid
	j.FinalPrice = &price
	j.UpdatedAt = now

	esc := m.holdEscrow(jobID, price, now)
	return cloneJob(j), cloneEscrow(esc), nil
}

func (m *Store) ExpireQuickBook(_ context.Context, jobID uuid.UUID, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[jobID]
	if !ok {
		return false, domain.ErrNotFound
	}
	if j.Status != domain.JobPending && j.Status != domain.JobBroadcasted {
		return false, nil
	}
	j.Status = domain.JobExpired
	j.UpdatedAt = now
	return true, nil
}

func (m *Store) CompleteJob(_ context.Context, jobID, customerID uuid.UUID, now time.Time) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if j.CustomerID != customerID {
		return nil, domain.ErrUnauthorized
	}
	if j.Status != domain.JobBooked {
		return nil, domain.ErrInvalidTransition
	}
	j.Status = domain.JobCompleted
	j.UpdatedAt = now
	return cloneJob(j), nil
}

func (m *Store) CancelJob(_ context.Context, jobID, actorID uuid.UUID, now time.Time) (*domain.Job, *domain.Escrow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[jobID]
	if !ok {
		return nil, nil, domain.ErrNotFound
	}

	isCustomer := actorID == j.CustomerID
	isProvider := j.ProviderID != nil && actorID == *j.ProviderID
	if !isCustomer && !isProvider {
		return nil, nil, domain.ErrUnauthorized
	}
	if j.Status.Terminal() {
		return nil, nil, domain.ErrInvalidTransition
	}

	wasBooked := j.Status == domain.JobBooked
	if isCustomer {
		j.Status = domain.JobCancelledByCustomer
	} else {
		j.Status = domain.JobCancelledByProvider
	}
	j.UpdatedAt = now

	var refunded *domain.Escrow
	if wasBooked {
		for _, e := range m.escrows {
			if e.JobID == jobID && e.Status == domain.EscrowHeld {
				e.Status = domain.EscrowRefunded
				t := now
				e.RefundedAt = &t
				refunded = cloneEscrow(e)
				break
			}
		}
	}
	return cloneJob(j), refunded, nil
}

// ----- bids -----

func (m *Store) CreateBid(_ context.Context, b *domain.Bid) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[b.JobID]
	if !ok {
		return domain.ErrNotFound
	}
	// Duplicate rejection outranks the status gate: a provider re-submitting
	// on a just-booked job hears "already bid", not "wrong state".
	for _, existing := range m.bids {
		if existing.JobID == b.JobID && existing.ProviderID == b.ProviderID {
			return domain.ErrDuplicateBid
		}
	}
	if j.Status != domain.JobBroadcasted {
		return domain.ErrInvalidTransition
	}
	m.bids[b.ID] = cloneBid(b)
	return nil
}

func (m *Store) GetBid(_ context.Context, id uuid.UUID) (*domain.Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bids[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneBid(b), nil
}

func (m *Store) PendingBidsByJob(_ context.Context, jobID uuid.UUID) ([]*domain.Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Bid
	for _, b := range m.bids {
		if b.JobID == jobID && b.Status == domain.BidPending {
			out = append(out, cloneBid(b))
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.Before(out[k].CreatedAt) })
	return out, nil
}

func (m *Store) AcceptBid(_ context.Context, bidID uuid.UUID, now time.Time) (*domain.Job, *domain.Bid, *domain.Escrow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bids[bidID]
	if !ok {
		return nil, nil, nil, domain.ErrNotFound
	}
	j, ok := m.jobs[b.JobID]
	if !ok {
		return nil, nil, nil, domain.ErrNotFound
	}
	if j.Status != domain.JobBroadcasted || b.Status != domain.BidPending {
		return nil, nil, nil, domain.ErrAlreadyTaken
	}

	b.Status = domain.BidAccepted
	for _, other := range m.bids {
		if other.JobID == j.ID && other.ID != b.ID && other.Status == domain.BidPending {
			other.Status = domain.BidRejected
		}
	}

	pid := b.ProviderID
	price := b.Price
	j.Status = domain.JobBooked
	j.ProviderID = &pid
	j.FinalPrice = &price
	j.UpdatedAt = now

	esc := m.holdEscrow(j.ID, price, now)
	return cloneJob(j), cloneBid(b), cloneEscrow(esc), nil
}

// ----- escrows -----

// holdEscrow creates the HELD record; callers hold the mutex.
func (m *Store) holdEscrow(jobID uuid.UUID, amount float64, now time.Time) *domain.Escrow {
	e := &domain.Escrow{
		ID:     uuid.New(),
		JobID:  jobID,
		Amount: amount,
		Status: domain.EscrowHeld,
		HeldAt: now,
	}
	m.escrows[e.ID] = e
	return e
}

func (m *Store) GetEscrow(_ context.Context, id uuid.UUID) (*domain.Escrow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.escrows[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneEscrow(e), nil
}

func (m *Store) EscrowByJob(_ context.Context, jobID uuid.UUID) (*domain.Escrow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.escrows {
		if e.JobID == jobID {
			return cloneEscrow(e), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *Store) ReleaseEscrow(_ context.Context, id uuid.UUID, now time.Time) (*domain.Escrow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.escrows[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if e.Status != domain.EscrowHeld {
		return nil, domain.ErrInvalidTransition
	}
	e.Status = domain.EscrowReleased
	t := now
	e.ReleasedAt = &t
	return cloneEscrow(e), nil
}

// ----- providers -----

func (m *Store) UpsertProvider(_ context.Context, p *domain.Provider) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers[p.UserID] = cloneProvider(p)
	return nil
}

func (m *Store) GetProvider(_ context.Context, userID uuid.UUID) (*domain.Provider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.providers[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneProvider(p), nil
}

func (m *Store) AvailableByCategory(_ context.Context, categoryID uuid.UUID) ([]*domain.Provider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Provider
	for _, p := range m.providers {
		if p.IsAvailable && p.ServesCategory(categoryID) {
			out = append(out, cloneProvider(p))
		}
	}
	sort.Slice(out, func(i, k int) bool {
		return out[i].UserID.String() < out[k].UserID.String()
	})
	return out, nil
}

func (m *Store) CompletedPrices(_ context.Context, categoryID uuid.UUID) ([]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []float64
	for _, j := range m.jobs {
		if j.CategoryID == categoryID && j.Status == domain.JobCompleted && j.FinalPrice != nil {
			out = append(out, *j.FinalPrice)
		}
	}
	return out, nil
}

// ----- users -----

func (m *Store) CreateUser(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return domain.ErrDuplicateEmail
		}
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *Store) UserByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *Store) GetUser(_ context.Context, id uuid.UUID) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// ----- copies -----

func cloneJob(j *domain.Job) *domain.Job {
	cp := *j
	if j.ProviderID != nil {
		v := *j.ProviderID
		cp.ProviderID = &v
	}
	if j.AcceptPrice != nil {
		v := *j.AcceptPrice
		cp.AcceptPrice = &v
	}
	if j.FinalPrice != nil {
		v := *j.FinalPrice
		cp.FinalPrice = &v
	}
	if j.QuickBookDeadline != nil {
		v := *j.QuickBookDeadline
		cp.QuickBookDeadline = &v
	}
	if j.BiddingEndsAt != nil {
		v := *j.BiddingEndsAt
		cp.BiddingEndsAt = &v
	}
	if j.LastBroadcastAt != nil {
		v := *j.LastBroadcastAt
		cp.LastBroadcastAt = &v
	}
	return &cp
}

func cloneBid(b *domain.Bid) *domain.Bid {
	cp := *b
	return &cp
}

func cloneEscrow(e *domain.Escrow) *domain.Escrow {
	cp := *e
	if e.ReleasedAt != nil {
		v := *e.ReleasedAt
		cp.ReleasedAt = &v
	}
	if e.RefundedAt != nil {
		v := *e.RefundedAt
		cp.RefundedAt = &v
	}
	return &cp
}

func cloneProvider(p *domain.Provider) *domain.Provider {
	cp := *p
	cp.Categories = append([]uuid.UUID(nil), p.Categories...)
	return &cp
}
