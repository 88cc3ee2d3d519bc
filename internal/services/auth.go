package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/infectwatch/apiserver/internal/store"
	"github.com/infectwatch/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

// LoginPublisher announces successful logins to other systems.
type LoginPublisher interface {
	PublishLogin(ctx context.Context, event types.LoginEvent) error
}

// RegisterInput holds the fields submitted at registration.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// LoginInput holds the credentials plus the request metadata that ends up in
// the login session.
type LoginInput struct {
	Email      string
	Password   string
	IP         string
	DeviceInfo types.DeviceInfo
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	Token string
	User  types.User
}

// AuthService validates credentials, records login sessions and issues tokens.
type AuthService struct {
	users     UserRepository
	sessions  SessionRepository
	tokens    *TokenIssuer
	publisher LoginPublisher
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
	hashCost  int
}

type AuthOption func(*AuthService)

// WithLoginPublisher enables login events.
func WithLoginPublisher(p LoginPublisher) AuthOption {
	return func(s *AuthService) { s.publisher = p }
}

func WithLogger(logger *slog.Logger) AuthOption {
	return func(s *AuthService) { s.logger = logger }
}

// WithClock replaces time.Now for both session timestamps and tokens.
func WithClock(now func() time.Time) AuthOption {
	return func(s *AuthService) {
		s.now = now
		s.tokens.now = now
	}
}

func WithHashCost(cost int) AuthOption {
	return func(s *AuthService) { s.hashCost = cost }
}

func NewAuthService(users UserRepository, sessions SessionRepository, tokens *TokenIssuer, opts ...AuthOption) *AuthService {
	s := &AuthService{
		users:    users,
		sessions: sessions,
		tokens:   tokens,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:      time.Now,
		newID:    uuid.NewString,
		hashCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a user with a zero login count and returns a token for it.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (AuthResult, error) {
	name := strings.TrimSpace(in.Name)
	email := NormalizeEmail(in.Email)
	if name == "" || email == "" || in.Password == "" {
		return AuthResult{}, validationError("missing required fields")
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return AuthResult{}, validationError("invalid email")
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return AuthResult{}, validationError("email already registered")
	} else if !errors.Is(err, store.ErrNotFound) {
		return AuthResult{}, storageError("get user", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return AuthResult{}, validationError("password too long")
		}
		return AuthResult{}, err
	}

	user, err := s.users.Create(ctx, types.User{
		Email:        email,
		Name:         name,
		PasswordHash: string(hashed),
		CreatedAt:    s.now().UTC(),
	})
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return AuthResult{}, validationError("email already registered")
		}
		return AuthResult{}, storageError("create user", err)
	}

	token, err := s.tokens.Issue(user.Email)
	if err != nil {
		return AuthResult{}, err
	}

	s.logger.InfoContext(ctx, "user registered", "email", user.Email)
	return AuthResult{Token: token, User: user}, nil
}

// Login checks the password, bumps the login counter, appends a session and
// returns a fresh token. A failed check leaves every record untouched.
//
// The user update and the session append are separate writes. If the second
// one fails the login is counted but not recorded.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (AuthResult, error) {
	email := NormalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return AuthResult{}, validationError("missing credentials")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, storageError("get user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return AuthResult{}, ErrInvalidCredentials
	}

	now := s.now().UTC()
	user.LoginCount++
	user.LastLogin = &now
	user, err = s.users.Update(ctx, user)
	if err != nil {
		return AuthResult{}, storageError("update user", err)
	}

	session := types.LoginSession{
		SessionID:  s.newID(),
		Email:      user.Email,
		LoginTime:  now,
		IP:         in.IP,
		DeviceInfo: in.DeviceInfo,
	}
	if _, err := s.sessions.Create(ctx, session); err != nil {
		s.logger.ErrorContext(ctx, "login counted but session not recorded",
			"email", user.Email, "login_count", user.LoginCount, "error", err)
		return AuthResult{}, storageError("create session", err)
	}

	if s.publisher != nil {
		event := types.LoginEvent{
			SessionID: session.SessionID,
			Email:     session.Email,
			LoginTime: session.LoginTime,
			IP:        session.IP,
		}
		if err := s.publisher.PublishLogin(ctx, event); err != nil {
			s.logger.WarnContext(ctx, "failed to publish login event",
				"session_id", session.SessionID, "error", err)
		}
	}

	token, err := s.tokens.Issue(user.Email)
	if err != nil {
		return AuthResult{}, err
	}

	s.logger.InfoContext(ctx, "user logged in",
		"email", user.Email, "session_id", session.SessionID, "ip", session.IP)
	return AuthResult{Token: token, User: user}, nil
}

// VerifyToken resolves a bearer token to its user. Bad tokens yield
// ErrUnauthorized; a valid token for a vanished user yields store.ErrNotFound.
func (s *AuthService) VerifyToken(ctx context.Context, token string) (types.User, error) {
	email, err := s.tokens.Subject(token)
	if err != nil {
		return types.User{}, err
	}
	return getUser(ctx, s.users, NormalizeEmail(email))
}

// Subject validates a token without touching storage.
func (s *AuthService) Subject(token string) (string, error) {
	return s.tokens.Subject(token)
}

func getUser(ctx context.Context, repo UserRepository, email string) (types.User, error) {
	user, err := repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, err
		}
		return types.User{}, storageError("get user", err)
	}
	return user, nil
}
