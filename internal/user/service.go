package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Store is the persistence contract the Service depends on. *Repository
// satisfies it.
type Store interface {
	Create(ctx context.Context, name, email, passwordHash, role string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	SetRole(ctx context.Context, email, role string) error
}

// Service contains business logic for user management.
type Service struct {
	repo Store
}

// NewService creates a new user Service.
func NewService(repo Store) *Service {
	return &Service{repo: repo}
}

// Create registers a new account. The email is normalized to lower case.
func (s *Service) Create(ctx context.Context, name, email, passwordHash, role string) (*User, error) {
	if role == "" {
		role = RoleUser
	}
	u, err := s.repo.Create(ctx, strings.TrimSpace(name), NormalizeEmail(email), passwordHash, role)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// GetByID returns a user by their UUID.
func (s *Service) GetByID(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByEmail returns a user by their email address.
func (s *Service) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.repo.GetByEmail(ctx, NormalizeEmail(email))
}

// PromoteToAdmin grants the admin role to the user with the given email.
func (s *Service) PromoteToAdmin(ctx context.Context, email string) error {
	return s.repo.SetRole(ctx, NormalizeEmail(email), RoleAdmin)
}

// IsNotFound returns true when the error indicates a user was not found.
func (s *Service) IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
