// Package notify is the push-notification boundary. The dispatch core only
// sees the Gateway interface; delivery is best-effort and at-most-once, and
// a failed or absent recipient connection never fails the caller.
package notify

import "github.com/google/uuid"

// Event is the payload pushed to a user's live connection.
type Event struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

// Dispatch event types.
const (
	EventJobOffer       = "job_offer"       // a job a provider may accept or bid on
	EventJobTaken       = "job_taken"       // a broadcast job was won by someone else
	EventJobBooked      = "job_booked"      // customer: a provider is bound
	EventJobCancelled   = "job_cancelled"   // counterparty cancelled
	EventJobCompleted   = "job_completed"   // provider: customer marked the job done
	EventJobExpired     = "job_expired"     // quick-book job passed its deadline
	EventBidReceived    = "bid_received"    // customer: a new bid arrived
	EventBidAccepted    = "bid_accepted"    // provider: your bid won
	EventEscrowReleased = "escrow_released" // provider: funds released
)

// Gateway pushes an event to a user, fire-and-forget.
type Gateway interface {
	Push(userID uuid.UUID, evt Event)
}
