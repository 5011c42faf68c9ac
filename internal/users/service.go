package users

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"github.com/atiff-automation/QR-Eat-sub000/internal/authkit"
)

// Service wraps account lookup and credential verification.
type Service struct {
	repo Repository
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Get returns the user with the given id.
func (s *Service) Get(ctx context.Context, id string) (*User, error) {
	return s.repo.Get(ctx, id)
}

// Authenticate validates email/password credentials. All failure modes
// collapse to ErrInvalidCredentials so callers cannot distinguish an unknown
// account from a wrong password.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, authkit.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, authkit.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, authkit.ErrInvalidCredentials
	}
	return user, nil
}
