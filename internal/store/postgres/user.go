package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/taskradar/taskradar/internal/domain"
)

// CreateUser inserts an account; duplicate emails map to ErrDuplicateEmail.
func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, email, name, password_hash, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.Email, u.Name, u.PasswordHash, u.Role, u.CreatedAt)
	if err != nil {
		if isDuplicateKey(err) {
			return domain.ErrDuplicateEmail
		}
		return fmt.Errorf("postgres: create user: %w", err)
	}
	return nil
}

// UserByEmail looks up an account by email.
func (s *Store) UserByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	err := s.pool.QueryRow(ctx, `
		SELECT id, email, name, password_hash, role, created_at
		FROM users WHERE LOWER(email) = LOWER($1)`, email).
		Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: user by email: %w", err)
	}
	return &u, nil
}

// GetUser looks up an account by id.
func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var u domain.User
	err := s.pool.QueryRow(ctx, `
		SELECT id, email, name, password_hash, role, created_at
		FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: get user: %w", err)
	}
	return &u, nil
}
