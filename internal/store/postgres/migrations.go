package postgres

import (
	"context"
	"fmt"
)

// Migrate bootstraps the schema. Statements are idempotent so repeated runs
// are safe.
func (s *Store) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL CHECK (role IN ('customer','provider')),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS providers (
			user_id UUID PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
			latitude DOUBLE PRECISION NOT NULL,
			longitude DOUBLE PRECISION NOT NULL,
			is_available BOOLEAN NOT NULL DEFAULT FALSE,
			tier TEXT NOT NULL DEFAULT 'TIER_B' CHECK (tier IN ('TIER_A','TIER_B')),
			average_rating DOUBLE PRECISION NOT NULL DEFAULT 0,
			completed_jobs INTEGER NOT NULL DEFAULT 0,
			reliability_score DOUBLE PRECISION NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS provider_categories (
			provider_id UUID NOT NULL REFERENCES providers(user_id) ON DELETE CASCADE,
			category_id UUID NOT NULL,
			PRIMARY KEY (provider_id, category_id)
		)`,
		`CREATE TABLE IF NOT EXISTS jobs (
			id UUID PRIMARY KEY,
			customer_id UUID NOT NULL REFERENCES users(id),
			provider_id UUID NULL REFERENCES users(id),
			category_id UUID NOT NULL,
			type TEXT NOT NULL CHECK (type IN ('QUICK_BOOK','POST_QUOTE')),
			status TEXT NOT NULL CHECK (status IN (
				'PENDING','BROADCASTED','BOOKED','COMPLETED',
				'CANCELLED_BY_CUSTOMER','CANCELLED_BY_PROVIDER','EXPIRED'
			)),
			latitude DOUBLE PRECISION NOT NULL,
			longitude DOUBLE PRECISION NOT NULL,
			address TEXT NOT NULL DEFAULT '',
			estimated_price DOUBLE PRECISION NOT NULL,
			accept_price DOUBLE PRECISION NULL,
			final_price DOUBLE PRECISION NULL,
			quick_book_deadline TIMESTAMPTZ NULL,
			bidding_ends_at TIMESTAMPTZ NULL,
			broadcast_stage INTEGER NOT NULL DEFAULT 0,
			last_broadcast_at TIMESTAMPTZ NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_customer ON jobs(customer_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_category_status ON jobs(category_id, status)`,
		`CREATE TABLE IF NOT EXISTS bids (
			id UUID PRIMARY KEY,
			job_id UUID NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
			provider_id UUID NOT NULL REFERENCES users(id),
			price DOUBLE PRECISION NOT NULL CHECK (price > 0),
			estimated_eta INTEGER NOT NULL,
			note TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL CHECK (status IN ('PENDING','ACCEPTED','REJECTED','WITHDRAWN')),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (job_id, provider_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_bids_job_status ON bids(job_id, status)`,
		`CREATE TABLE IF NOT EXISTS escrows (
			id UUID PRIMARY KEY,
			job_id UUID NOT NULL UNIQUE REFERENCES jobs(id),
			amount DOUBLE PRECISION NOT NULL,
			status TEXT NOT NULL CHECK (status IN ('HELD','RELEASED','REFUNDED')),
			held_at TIMESTAMPTZ NOT NULL,
			released_at TIMESTAMPTZ NULL,
			refunded_at TIMESTAMPTZ NULL
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: migrate: %w", err)
		}
	}
	return nil
}
