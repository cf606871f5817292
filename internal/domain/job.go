package domain

import (
	"time"

	"github.com/google/uuid"
)

// JobType distinguishes the two booking modes.
type JobType string

const (
	// JobQuickBook is the instant-acceptance mode: the first qualifying
	// provider to accept wins at the estimated price.
	JobQuickBook JobType = "QUICK_BOOK"
	// JobPostQuote is the competitive-bidding mode with staged broadcast
	// visibility escalation.
	JobPostQuote JobType = "POST_QUOTE"
)

// JobStatus is the dispatch lifecycle state of a job.
type JobStatus string

const (
	JobPending             JobStatus = "PENDING"
	JobBroadcasted         JobStatus = "BROADCASTED"
	JobBooked              JobStatus = "BOOKED"
	JobCompleted           JobStatus = "COMPLETED"
	JobCancelledByCustomer JobStatus = "CANCELLED_BY_CUSTOMER"
	JobCancelledByProvider JobStatus = "CANCELLED_BY_PROVIDER"
	JobExpired             JobStatus = "EXPIRED"
)

// Terminal reports whether no further lifecycle transition is legal.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobCompleted, JobCancelledByCustomer, JobCancelledByProvider, JobExpired:
		return true
	}
	return false
}

// Job is a service request posted by a customer.
//
// ProviderID and FinalPrice are nil until booking and are set together,
// atomically, exactly once, inside the acceptance transaction.
type Job struct {
	ID         uuid.UUID  `json:"id"`
	CustomerID uuid.UUID  `json:"customer_id"`
	ProviderID *uuid.UUID `json:"provider_id,omitempty"`
	CategoryID uuid.UUID  `json:"category_id"`
	Type       JobType    `json:"type"`
	Status     JobStatus  `json:"status"`

	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address"`

	EstimatedPrice float64  `json:"estimated_price"`
	AcceptPrice    *float64 `json:"accept_price,omitempty"` // POST_QUOTE auto-hire threshold
	FinalPrice     *float64 `json:"final_price,omitempty"`

	QuickBookDeadline *time.Time `json:"quick_book_deadline,omitempty"` // QUICK_BOOK only
	BiddingEndsAt     *time.Time `json:"bidding_ends_at,omitempty"`     // POST_QUOTE only
	BroadcastStage    int        `json:"broadcast_stage,omitempty"`     // POST_QUOTE only, 1..3
	LastBroadcastAt   *time.Time `json:"last_broadcast_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
