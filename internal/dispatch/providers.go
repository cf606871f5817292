package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/taskradar/taskradar/internal/domain"
	"github.com/taskradar/taskradar/internal/geo"
)

// ProviderInput updates a provider's dispatch profile: location heartbeat,
// availability toggle, and category memberships.
type ProviderInput struct {
	Latitude    float64
	Longitude   float64
	IsAvailable bool
	Categories  []uuid.UUID
}

// UpsertProvider writes the profile. The quality signals (rating, completed
// jobs, reliability) are preserved from the existing record; providers do
// not set their own.
func (s *Service) UpsertProvider(ctx context.Context, userID uuid.UUID, in ProviderInput) (*domain.Provider, error) {
	if !geo.ValidCoordinates(in.Latitude, in.Longitude) {
		return nil, fmt.Errorf("%w: coordinates out of range", domain.ErrValidation)
	}
	if len(in.Categories) == 0 {
		return nil, fmt.Errorf("%w: at least one category required", domain.ErrValidation)
	}

	p := &domain.Provider{
		UserID:      userID,
		Latitude:    in.Latitude,
		Longitude:   in.Longitude,
		IsAvailable: in.IsAvailable,
		Tier:        domain.TierB,
		Categories:  in.Categories,
		UpdatedAt:   s.now(),
	}
	existing, err := s.store.GetProvider(ctx, userID)
	switch {
	case err == nil:
		p.Tier = existing.Tier
		p.AverageRating = existing.AverageRating
		p.CompletedJobs = existing.CompletedJobs
		p.ReliabilityScore = existing.ReliabilityScore
	case !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}

	if err := s.store.UpsertProvider(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// GetProvider returns a provider's dispatch profile.
func (s *Service) GetProvider(ctx context.Context, userID uuid.UUID) (*domain.Provider, error) {
	return s.store.GetProvider(ctx, userID)
}
