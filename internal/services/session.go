package services

import (
	"context"

	"github.com/infectwatch/apiserver/types"
)

// SessionRepository defines persistence operations for login sessions.
// Sessions are append-only; there is no update or delete.
type SessionRepository interface {
	Create(ctx context.Context, session types.LoginSession) (types.LoginSession, error)
	ListByEmail(ctx context.Context, email string) ([]types.LoginSession, error)
}

// SessionService exposes the login history of a user.
type SessionService struct {
	repo SessionRepository
}

func NewSessionService(repo SessionRepository) *SessionService {
	return &SessionService{repo: repo}
}

// LoginHistory returns the user's sessions newest first together with the
// total count. A limit of zero returns everything from offset on.
func (s *SessionService) LoginHistory(ctx context.Context, email string, offset, limit int) ([]types.LoginSession, int, error) {
	sessions, err := s.repo.ListByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return nil, 0, storageError("list sessions", err)
	}
	if sessions == nil {
		sessions = []types.LoginSession{}
	}

	total := len(sessions)
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	return sessions[offset:end], total, nil
}
