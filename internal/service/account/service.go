// Package account authenticates users of the reference backend and tracks
// the opaque bearer tokens issued to them.
package account

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/z-tavern/client/internal/model/account"
)

var (
	ErrInvalidCredentials = errors.New("incorrect username or password")
	ErrInactiveUser       = errors.New("inactive user")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

type grant struct {
	userID    string
	expiresAt time.Time
}

// Service issues and resolves access tokens.
type Service struct {
	users account.Store
	ttl   time.Duration
	now   func() time.Time

	mu     sync.Mutex
	grants map[string]grant
}

// Option customises a Service.
type Option func(*Service)

// WithClock overrides the time source used for token expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service issuing tokens valid for ttl.
func NewService(users account.Store, ttl time.Duration, opts ...Option) *Service {
	s := &Service{
		users:  users,
		ttl:    ttl,
		now:    time.Now,
		grants: make(map[string]grant),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Authenticate checks the pair and issues a new access token.
func (s *Service) Authenticate(_ context.Context, username, password string) (string, error) {
	user, ok := s.users.FindByUsername(username)
	if !ok || !user.CheckPassword(password) {
		return "", ErrInvalidCredentials
	}
	if !user.Active {
		return "", ErrInactiveUser
	}

	token := uuid.NewString()
	s.mu.Lock()
	s.grants[token] = grant{userID: user.ID, expiresAt: s.now().Add(s.ttl)}
	s.mu.Unlock()
	return token, nil
}

// Resolve returns the user a token was issued to. Expired tokens are dropped.
func (s *Service) Resolve(_ context.Context, token string) (account.User, error) {
	s.mu.Lock()
	g, ok := s.grants[token]
	if ok && !s.now().Before(g.expiresAt) {
		delete(s.grants, token)
		ok = false
	}
	s.mu.Unlock()
	if !ok {
		return account.User{}, ErrInvalidToken
	}

	user, found := s.users.FindByID(g.userID)
	if !found || !user.Active {
		return account.User{}, ErrInvalidToken
	}
	return user, nil
}

// Revoke invalidates a token. Unknown tokens are ignored.
func (s *Service) Revoke(_ context.Context, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.grants, token)
}
