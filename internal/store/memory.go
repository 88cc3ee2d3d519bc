package store

import (
	"context"
	"slices"
	"sync"

	"github.com/infectwatch/apiserver/types"
)

// MemoryUserRepository keeps users in process. Used for local runs and tests.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]types.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]types.User)}
}

func (r *MemoryUserRepository) GetByEmail(_ context.Context, email string) (types.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[email]
	if !ok {
		return types.User{}, ErrNotFound
	}
	return user, nil
}

func (r *MemoryUserRepository) Create(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.Email]; ok {
		return types.User{}, ErrAlreadyExists
	}
	r.users[user.Email] = user
	return user, nil
}

func (r *MemoryUserRepository) Update(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.Email]; !ok {
		return types.User{}, ErrNotFound
	}
	r.users[user.Email] = user
	return user, nil
}

// MemorySessionRepository keeps sessions in process with a per-email index.
type MemorySessionRepository struct {
	mu      sync.RWMutex
	ids     map[string]struct{}
	byEmail map[string][]types.LoginSession
}

func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{
		ids:     make(map[string]struct{}),
		byEmail: make(map[string][]types.LoginSession),
	}
}

func (r *MemorySessionRepository) Create(_ context.Context, session types.LoginSession) (types.LoginSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ids[session.SessionID]; ok {
		return types.LoginSession{}, ErrAlreadyExists
	}
	r.ids[session.SessionID] = struct{}{}
	r.byEmail[session.Email] = append(r.byEmail[session.Email], session)
	return session, nil
}

func (r *MemorySessionRepository) ListByEmail(_ context.Context, email string) ([]types.LoginSession, error) {
	r.mu.RLock()
	sessions := slices.Clone(r.byEmail[email])
	r.mu.RUnlock()

	if sessions == nil {
		sessions = []types.LoginSession{}
	}
	slices.SortStableFunc(sessions, func(a, b types.LoginSession) int {
		return b.LoginTime.Compare(a.LoginTime)
	})
	return sessions, nil
}
