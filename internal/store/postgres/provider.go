package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/taskradar/taskradar/internal/domain"
)

// UpsertProvider writes the provider profile and replaces its category
// memberships in one transaction.
func (s *Store) UpsertProvider(ctx context.Context, p *domain.Provider) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: upsert provider: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO providers (
			user_id, latitude, longitude, is_available, tier,
			average_rating, completed_jobs, reliability_score, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (user_id) DO UPDATE SET
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			is_available = EXCLUDED.is_available,
			tier = EXCLUDED.tier,
			average_rating = EXCLUDED.average_rating,
			completed_jobs = EXCLUDED.completed_jobs,
			reliability_score = EXCLUDED.reliability_score,
			updated_at = EXCLUDED.updated_at`,
		p.UserID, p.Latitude, p.Longitude, p.IsAvailable, p.Tier,
		p.AverageRating, p.CompletedJobs, p.ReliabilityScore, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("postgres: upsert provider: %w", err)
	}

	_, err = tx.Exec(ctx, `DELETE FROM provider_categories WHERE provider_id = $1`, p.UserID)
	if err != nil {
		return fmt.Errorf("postgres: upsert provider: clear categories: %w", err)
	}
	for _, cat := range p.Categories {
		_, err = tx.Exec(ctx,
			`INSERT INTO provider_categories (provider_id, category_id) VALUES ($1, $2)`,
			p.UserID, cat)
		if err != nil {
			return fmt.Errorf("postgres: upsert provider: add category: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: upsert provider: commit: %w", err)
	}
	return nil
}

// GetProvider retrieves a provider profile with its categories.
func (s *Store) GetProvider(ctx context.Context, userID uuid.UUID) (*domain.Provider, error) {
	var p domain.Provider
	err := s.pool.QueryRow(ctx, `
		SELECT user_id, latitude, longitude, is_available, tier,
		       average_rating, completed_jobs, reliability_score, updated_at
		FROM providers WHERE user_id = $1`, userID).
		Scan(&p.UserID, &p.Latitude, &p.Longitude, &p.IsAvailable, &p.Tier,
			&p.AverageRating, &p.CompletedJobs, &p.ReliabilityScore, &p.UpdatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: get provider: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT category_id FROM provider_categories WHERE provider_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres: get provider: categories: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var cat uuid.UUID
		if err := rows.Scan(&cat); err != nil {
			return nil, fmt.Errorf("postgres: get provider: categories: %w", err)
		}
		p.Categories = append(p.Categories, cat)
	}
	return &p, rows.Err()
}

// AvailableByCategory returns available providers serving the category.
// Radius filtering happens in the geo package on the returned set.
func (s *Store) AvailableByCategory(ctx context.Context, categoryID uuid.UUID) ([]*domain.Provider, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT p.user_id, p.latitude, p.longitude, p.is_available, p.tier,
		       p.average_rating, p.completed_jobs, p.reliability_score, p.updated_at
		FROM providers p
		JOIN provider_categories pc ON pc.provider_id = p.user_id
		WHERE pc.category_id = $1 AND p.is_available = TRUE
		ORDER BY p.user_id`, categoryID)
	if err != nil {
		return nil, fmt.Errorf("postgres: available by category: %w", err)
	}
	defer rows.Close()

	var out []*domain.Provider
	for rows.Next() {
		var p domain.Provider
		err := rows.Scan(&p.UserID, &p.Latitude, &p.Longitude, &p.IsAvailable, &p.Tier,
			&p.AverageRating, &p.CompletedJobs, &p.ReliabilityScore, &p.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("postgres: available by category: %w", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// CompletedPrices returns final prices of completed jobs in a category.
func (s *Store) CompletedPrices(ctx context.Context, categoryID uuid.UUID) ([]float64, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT final_price FROM jobs
		WHERE category_id = $1 AND status = 'COMPLETED' AND final_price IS NOT NULL`,
		categoryID)
	if err != nil {
		return nil, fmt.Errorf("postgres: completed prices: %w", err)
	}
	defer rows.Close()

	var out []float64
	for rows.Next() {
		var price float64
		if err := rows.Scan(&price); err != nil {
			return nil, fmt.Errorf("postgres: completed prices: %w", err)
		}
		out = append(out, price)
	}
	return out, rows.Err()
}
