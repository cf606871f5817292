package domain

import (
	"time"

	"github.com/google/uuid"
)

// ProviderTier classifies provider quality; Tier-A providers get early
// visibility during staged broadcasts.
type ProviderTier string

const (
	TierA ProviderTier = "TIER_A"
	TierB ProviderTier = "TIER_B"
)

// Provider is a service provider's dispatch profile: last reported location,
// availability flag, and the quality signals used for bid ranking.
type Provider struct {
	UserID           uuid.UUID    `json:"user_id"`
	Latitude         float64      `json:"latitude"`
	Longitude        float64      `json:"longitude"`
	IsAvailable      bool         `json:"is_available"`
	Tier             ProviderTier `json:"tier"`
	AverageRating    float64      `json:"average_rating"`
	CompletedJobs    int          `json:"completed_jobs"`
	ReliabilityScore float64      `json:"reliability_score"`
	Categories       []uuid.UUID  `json:"categories"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// ServesCategory reports whether the provider is a member of the category.
func (p *Provider) ServesCategory(categoryID uuid.UUID) bool {
	for _, c := range p.Categories {
		if c == categoryID {
			return true
		}
	}
	return false
}
