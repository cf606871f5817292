package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskradar/taskradar/internal/domain"
)

func newQuickBookJob(deadline time.Time) *domain.Job {
	d := deadline
	return &domain.Job{
		ID:                uuid.New(),
		CustomerID:        uuid.New(),
		CategoryID:        uuid.New(),
		Type:              domain.JobQuickBook,
		Status:            domain.JobPending,
		EstimatedPrice:    120,
		QuickBookDeadline: &d,
		CreatedAt:         time.Now(),
		UpdatedAt:         time.Now(),
	}
}

func newPostQuoteJob(acceptPrice *float64) *domain.Job {
	return &domain.Job{
		ID:             uuid.New(),
		CustomerID:     uuid.New(),
		CategoryID:     uuid.New(),
		Type:           domain.JobPostQuote,
		Status:         domain.JobPending,
		EstimatedPrice: 200,
		AcceptPrice:    acceptPrice,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
}

func TestAcceptQuickBookLifecycle(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now()

	j := newQuickBookJob(now.Add(time.Hour))
	require.NoError(t, s.CreateJob(ctx, j))

	// Not broadcasted yet: acceptance loses.
	_, _, err := s.AcceptQuickBook(ctx, j.ID, uuid.New(), now)
	assert.ErrorIs(t, err, domain.ErrAlreadyTaken)

	_, err = s.MarkBroadcasted(ctx, j.ID, 0, now)
	require.NoError(t, err)

	provider := uuid.New()
	booked, esc, err := s.AcceptQuickBook(ctx, j.ID, provider, now)
	require.NoError(t, err)
	assert.Equal(t, domain.JobBooked, booked.Status)
	require.NotNil(t, booked.ProviderID)
	assert.Equal(t, provider, *booked.ProviderID)
	require.NotNil(t, booked.FinalPrice)
	assert.Equal(t, j.EstimatedPrice, *booked.FinalPrice)
	assert.Equal(t, domain.EscrowHeld, esc.Status)
	assert.Equal(t, j.EstimatedPrice, esc.Amount)

	// Second acceptance loses deterministically.
	_, _, err = s.AcceptQuickBook(ctx, j.ID, uuid.New(), now)
	assert.ErrorIs(t, err, domain.ErrAlreadyTaken)
}

func TestAcceptQuickBookDeadline(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now()

	j := newQuickBookJob(now.Add(-time.Minute))
	require.NoError(t, s.CreateJob(ctx, j))
	_, err := s.MarkBroadcasted(ctx, j.ID, 0, now.Add(-2*time.Minute))
	require.NoError(t, err)

	_, _, err = s.AcceptQuickBook(ctx, j.ID, uuid.New(), now)
	assert.ErrorIs(t, err, domain.ErrDeadlinePassed)
}

func TestAdvanceStageGuards(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now()

	j := newPostQuoteJob(nil)
	require.NoError(t, s.CreateJob(ctx, j))
	_, err := s.MarkBroadcasted(ctx, j.ID, 1, now)
	require.NoError(t, err)

	got, advanced, err := s.AdvanceStage(ctx, j.ID, 2, now)
	require.NoError(t, err)
	assert.True(t, advanced)
	assert.Equal(t, 2, got.BroadcastStage)

	// Monotonic: re-running stage 2 is a no-op.
	got, advanced, err = s.AdvanceStage(ctx, j.ID, 2, now)
	require.NoError(t, err)
	assert.False(t, advanced)
	assert.Equal(t, 2, got.BroadcastStage)

	// Booked jobs never advance.
	bid := &domain.Bid{ID: uuid.New(), JobID: j.ID, ProviderID: uuid.New(), Price: 90, Status: domain.BidPending, CreatedAt: now}
	require.NoError(t, s.CreateBid(ctx, bid))
	_, _, _, err = s.AcceptBid(ctx, bid.ID, now)
	require.NoError(t, err)

	got, advanced, err = s.AdvanceStage(ctx, j.ID, 3, now)
	require.NoError(t, err)
	assert.False(t, advanced)
	assert.Equal(t, 2, got.BroadcastStage)
}

func TestCreateBidGuards(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now()

	j := newPostQuoteJob(nil)
	require.NoError(t, s.CreateJob(ctx, j))

	provider := uuid.New()
	bid := &domain.Bid{ID: uuid.New(), JobID: j.ID, ProviderID: provider, Price: 150, Status: domain.BidPending, CreatedAt: now}

	// Job still PENDING: bidding closed.
	assert.ErrorIs(t, s.CreateBid(ctx, bid), domain.ErrInvalidTransition)

	_, err := s.MarkBroadcasted(ctx, j.ID, 1, now)
	require.NoError(t, err)
	require.NoError(t, s.CreateBid(ctx, bid))

	dup := &domain.Bid{ID: uuid.New(), JobID: j.ID, ProviderID: provider, Price: 140, Status: domain.BidPending, CreatedAt: now}
	assert.ErrorIs(t, s.CreateBid(ctx, dup), domain.ErrDuplicateBid)

	missing := &domain.Bid{ID: uuid.New(), JobID: uuid.New(), ProviderID: provider, Status: domain.BidPending}
	assert.ErrorIs(t, s.CreateBid(ctx, missing), domain.ErrNotFound)
}

func TestCreateBidDuplicateOutranksStatusGate(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now()

	j := newPostQuoteJob(nil)
	require.NoError(t, s.CreateJob(ctx, j))
	_, err := s.MarkBroadcasted(ctx, j.ID, 1, now)
	require.NoError(t, err)

	provider := uuid.New()
	bid := &domain.Bid{ID: uuid.New(), JobID: j.ID, ProviderID: provider, Price: 150, Status: domain.BidPending, CreatedAt: now}
	require.NoError(t, s.CreateBid(ctx, bid))

	_, _, _, err = s.AcceptBid(ctx, bid.ID, now)
	require.NoError(t, err)

	// The provider re-submitting on the now-booked job hears "already bid",
	// while a newcomer gets the status rejection.
	resubmit := &domain.Bid{ID: uuid.New(), JobID: j.ID, ProviderID: provider, Price: 140, Status: domain.BidPending, CreatedAt: now}
	assert.ErrorIs(t, s.CreateBid(ctx, resubmit), domain.ErrDuplicateBid)

	newcomer := &domain.Bid{ID: uuid.New(), JobID: j.ID, ProviderID: uuid.New(), Price: 130, Status: domain.BidPending, CreatedAt: now}
	assert.ErrorIs(t, s.CreateBid(ctx, newcomer), domain.ErrInvalidTransition)
}

func TestAcceptBidRejectsOthers(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now()

	j := newPostQuoteJob(nil)
	require.NoError(t, s.CreateJob(ctx, j))
	_, err := s.MarkBroadcasted(ctx, j.ID, 1, now)
	require.NoError(t, err)

	winner := &domain.Bid{ID: uuid.New(), JobID: j.ID, ProviderID: uuid.New(), Price: 100, Status: domain.BidPending, CreatedAt: now}
	loser := &domain.Bid{ID: uuid.New(), JobID: j.ID, ProviderID: uuid.New(), Price: 110, Status: domain.BidPending, CreatedAt: now}
	require.NoError(t, s.CreateBid(ctx, winner))
	require.NoError(t, s.CreateBid(ctx, loser))

	job, won, esc, err := s.AcceptBid(ctx, winner.ID, now)
	require.NoError(t, err)
	assert.Equal(t, domain.JobBooked, job.Status)
	assert.Equal(t, domain.BidAccepted, won.Status)
	require.NotNil(t, job.FinalPrice)
	assert.Equal(t, 100.0, *job.FinalPrice)
	assert.Equal(t, 100.0, esc.Amount)

	rejected, err := s.GetBid(ctx, loser.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BidRejected, rejected.Status)

	// No pending bids remain; accepting the loser now loses the race.
	pending, err := s.PendingBidsByJob(ctx, j.ID)
	require.NoError(t, err)
	assert.Empty(t, pending)

	_, _, _, err = s.AcceptBid(ctx, loser.ID, now)
	assert.ErrorIs(t, err, domain.ErrAlreadyTaken)
}

func TestCancelJobRefundsHeldEscrow(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now()

	j := newQuickBookJob(now.Add(time.Hour))
	require.NoError(t, s.CreateJob(ctx, j))
	_, err := s.MarkBroadcasted(ctx, j.ID, 0, now)
	require.NoError(t, err)

	provider := uuid.New()
	_, _, err = s.AcceptQuickBook(ctx, j.ID, provider, now)
	require.NoError(t, err)

	// Stranger may not cancel.
	_, _, err = s.CancelJob(ctx, j.ID, uuid.New(), now)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	cancelled, refunded, err := s.CancelJob(ctx, j.ID, provider, now)
	require.NoError(t, err)
	assert.Equal(t, domain.JobCancelledByProvider, cancelled.Status)
	require.NotNil(t, refunded)
	assert.Equal(t, domain.EscrowRefunded, refunded.Status)
	require.NotNil(t, refunded.RefundedAt)

	// Terminal states reject a second cancel.
	_, _, err = s.CancelJob(ctx, j.ID, j.CustomerID, now)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestReleaseEscrowTerminal(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now()

	j := newQuickBookJob(now.Add(time.Hour))
	require.NoError(t, s.CreateJob(ctx, j))
	_, err := s.MarkBroadcasted(ctx, j.ID, 0, now)
	require.NoError(t, err)
	_, esc, err := s.AcceptQuickBook(ctx, j.ID, uuid.New(), now)
	require.NoError(t, err)

	released, err := s.ReleaseEscrow(ctx, esc.ID, now)
	require.NoError(t, err)
	assert.Equal(t, domain.EscrowReleased, released.Status)
	require.NotNil(t, released.ReleasedAt)

	_, err = s.ReleaseEscrow(ctx, esc.ID, now)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestExpireQuickBookGuard(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now()

	j := newQuickBookJob(now.Add(time.Minute))
	require.NoError(t, s.CreateJob(ctx, j))
	_, err := s.MarkBroadcasted(ctx, j.ID, 0, now)
	require.NoError(t, err)
	_, _, err = s.AcceptQuickBook(ctx, j.ID, uuid.New(), now)
	require.NoError(t, err)

	// Already booked: the reaper must not touch it.
	expired, err := s.ExpireQuickBook(ctx, j.ID, now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.False(t, expired)

	got, err := s.GetJob(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobBooked, got.Status)
}

func TestProviderQueries(t *testing.T) {
	s := New()
	ctx := context.Background()
	cat := uuid.New()

	avail := &domain.Provider{UserID: uuid.New(), IsAvailable: true, Tier: domain.TierA, Categories: []uuid.UUID{cat}}
	busy := &domain.Provider{UserID: uuid.New(), IsAvailable: false, Tier: domain.TierA, Categories: []uuid.UUID{cat}}
	other := &domain.Provider{UserID: uuid.New(), IsAvailable: true, Tier: domain.TierB, Categories: []uuid.UUID{uuid.New()}}
	for _, p := range []*domain.Provider{avail, busy, other} {
		require.NoError(t, s.UpsertProvider(ctx, p))
	}

	got, err := s.AvailableByCategory(ctx, cat)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, avail.UserID, got[0].UserID)
}
