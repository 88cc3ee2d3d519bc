package services

import (
	"context"
	"strings"

	"github.com/infectwatch/apiserver/types"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
}

// UserService encapsulates profile reads.
type UserService struct {
	repo UserRepository
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo}
}

// GetProfile returns the user record for the authenticated email.
// store.ErrNotFound is passed through untouched.
func (s *UserService) GetProfile(ctx context.Context, email string) (types.User, error) {
	return getUser(ctx, s.repo, NormalizeEmail(email))
}

// NormalizeEmail is the canonical form used as the users partition key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
