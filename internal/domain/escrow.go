package domain

import (
	"time"

	"github.com/google/uuid"
)

// EscrowStatus is the bookkeeping state of held funds. RELEASED and REFUNDED
// are terminal; no further transition is legal.
type EscrowStatus string

const (
	EscrowHeld     EscrowStatus = "HELD"
	EscrowReleased EscrowStatus = "RELEASED"
	EscrowRefunded EscrowStatus = "REFUNDED"
)

// Escrow records funds held against a booked job. Exactly one escrow exists
// per booked job and it is created only inside the acceptance transaction.
type Escrow struct {
	ID         uuid.UUID    `json:"id"`
	JobID      uuid.UUID    `json:"job_id"`
	Amount     float64      `json:"amount"`
	Status     EscrowStatus `json:"status"`
	HeldAt     time.Time    `json:"held_at"`
	ReleasedAt *time.Time   `json:"released_at,omitempty"`
	RefundedAt *time.Time   `json:"refunded_at,omitempty"`
}
