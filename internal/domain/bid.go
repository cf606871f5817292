package domain

import (
	"time"

	"github.com/google/uuid"
)

// BidStatus is the lifecycle state of a bid.
type BidStatus string

const (
	BidPending   BidStatus = "PENDING"
	BidAccepted  BidStatus = "ACCEPTED"
	BidRejected  BidStatus = "REJECTED"
	BidWithdrawn BidStatus = "WITHDRAWN"
)

// Bid is a provider's quote on a POST_QUOTE job. A provider may hold at most
// one bid per job, and a job has at most one ACCEPTED bid; when a bid is
// accepted every other PENDING bid for the job becomes REJECTED in the same
// transaction.
type Bid struct {
	ID           uuid.UUID `json:"id"`
	JobID        uuid.UUID `json:"job_id"`
	ProviderID   uuid.UUID `json:"provider_id"`
	Price        float64   `json:"price"`
	EstimatedETA int       `json:"estimated_eta"` // minutes
	Note         string    `json:"note,omitempty"`
	Status       BidStatus `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// RankedBid is a bid decorated with the provider fields customers sort on.
type RankedBid struct {
	Bid
	ProviderRating float64 `json:"provider_rating"`
	CompletedJobs  int     `json:"completed_jobs"`
}
