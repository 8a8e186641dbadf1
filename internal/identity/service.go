package identity

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/nimbus-stack/nimbus/internal/password"
	"github.com/nimbus-stack/nimbus/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	UpdateName(ctx context.Context, id uuid.UUID, name string) (*User, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]User, error)
}

// Service handles user business logic.
type Service struct {
	repo   RepositoryPort
	hasher *password.Hasher
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, hasher *password.Hasher) *Service {
	return &Service{repo: repo, hasher: hasher}
}

// NormalizeEmail lowercases and trims a login handle. Lookups and writes go
// through this so the uniqueness invariant is case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create registers a new user with the default USER role. Returns
// shared.ErrDuplicateEmail when the email is already taken; no write occurs
// in that case.
func (s *Service) Create(ctx context.Context, email, plainPassword, name string) (*User, error) {
	hash, err := s.hasher.Hash(plainPassword)
	if err != nil {
		return nil, err
	}
	user := &User{
		ID:           uuid.New(),
		Email:        NormalizeEmail(email),
		Name:         name,
		PasswordHash: hash,
		Role:         shared.RoleUser,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// GetByID fetches a user by ID.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByEmail fetches a user by login handle.
func (s *Service) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.repo.GetByEmail(ctx, NormalizeEmail(email))
}

// UpdateName changes the display name and refreshes the updated timestamp.
func (s *Service) UpdateName(ctx context.Context, id uuid.UUID, name string) (*User, error) {
	return s.repo.UpdateName(ctx, id, name)
}

// Delete removes a user account permanently.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

// List returns all users ordered by creation time.
func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.repo.List(ctx)
}
