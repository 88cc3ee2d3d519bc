package services

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/infectwatch/apiserver/internal/store"
	"github.com/infectwatch/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

type memoryUsers struct {
	mu        sync.Mutex
	users     map[string]types.User
	failGet   error
	failWrite error
	writes    int
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{users: map[string]types.User{}}
}

func (m *memoryUsers) GetByEmail(_ context.Context, email string) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet != nil {
		return types.User{}, m.failGet
	}
	user, ok := m.users[email]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (m *memoryUsers) Create(_ context.Context, user types.User) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrite != nil {
		return types.User{}, m.failWrite
	}
	if _, ok := m.users[user.Email]; ok {
		return types.User{}, store.ErrAlreadyExists
	}
	m.writes++
	m.users[user.Email] = user
	return user, nil
}

func (m *memoryUsers) Update(_ context.Context, user types.User) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrite != nil {
		return types.User{}, m.failWrite
	}
	if _, ok := m.users[user.Email]; !ok {
		return types.User{}, store.ErrNotFound
	}
	m.writes++
	m.users[user.Email] = user
	return user, nil
}

type memorySessions struct {
	mu       sync.Mutex
	sessions []types.LoginSession
	failWith error
}

func (m *memorySessions) Create(_ context.Context, session types.LoginSession) (types.LoginSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return types.LoginSession{}, m.failWith
	}
	m.sessions = append(m.sessions, session)
	return session, nil
}

func (m *memorySessions) ListByEmail(_ context.Context, email string) ([]types.LoginSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	out := []types.LoginSession{}
	for _, s := range m.sessions {
		if s.Email == email {
			out = append(out, s)
		}
	}
	slices.SortFunc(out, func(a, b types.LoginSession) int {
		return b.LoginTime.Compare(a.LoginTime)
	})
	return out, nil
}

type recordingPublisher struct {
	events []types.LoginEvent
	err    error
}

func (p *recordingPublisher) PublishLogin(_ context.Context, event types.LoginEvent) error {
	p.events = append(p.events, event)
	return p.err
}

// fakeClock advances by one minute every time it is read.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time {
	c.t = c.t.Add(time.Minute)
	return c.t
}

type fixture struct {
	users    *memoryUsers
	sessions *memorySessions
	clock    *fakeClock
	auth     *AuthService
}

func newFixture(opts ...AuthOption) *fixture {
	f := &fixture{
		users:    newMemoryUsers(),
		sessions: &memorySessions{},
		clock:    &fakeClock{t: time.Date(2025, 7, 1, 8, 0, 0, 0, time.UTC)},
	}
	opts = append([]AuthOption{
		WithClock(f.clock.Now),
		WithHashCost(bcrypt.MinCost),
	}, opts...)
	f.auth = NewAuthService(f.users, f.sessions, NewTokenIssuer("test-secret", time.Hour), opts...)
	return f
}

var errBoom = errors.New("boom")
