// Package session owns the bearer credential and the identity it resolves
// to. It restores a stored credential at start-up, performs login and logout,
// answers permission queries and tells subscribers when any of that changes.
package session

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/rs/zerolog"

	"github.com/zhouzirui/z-tavern/client/internal/model/auth"
	"github.com/zhouzirui/z-tavern/client/internal/observability"
	"github.com/zhouzirui/z-tavern/client/internal/remote"
	"github.com/zhouzirui/z-tavern/client/internal/storage"
)

// CredentialKey is the storage key holding the credential.
const CredentialKey = "token"

// Authenticator performs the two remote calls the Manager depends on.
type Authenticator interface {
	ExchangeCredentials(ctx context.Context, username, password string) (string, error)
	VerifyIdentity(ctx context.Context, authz remote.Authorizer) (auth.Identity, error)
}

// Revoker is implemented by Authenticators that can invalidate a credential on
// the server. Logout uses it when available.
type Revoker interface {
	RevokeCredential(ctx context.Context, authz remote.Authorizer) error
}

// Manager is the session state machine. Construct one per process with
// NewManager and share it with every component that needs the credential.
type Manager struct {
	store    storage.Store
	api      Authenticator
	nav      Navigator
	key      string
	logger   zerolog.Logger
	notifier *observability.Notifier

	initOnce  sync.Once
	readyOnce sync.Once
	ready     chan struct{}

	mu         sync.RWMutex
	credential string
	identity   *auth.Identity
	state      State
	readiness  Readiness
}

// Option customises a Manager.
type Option func(*Manager)

// WithLogger sets the manager logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger.With().Str("component", "session").Logger()
	}
}

// WithObserver subscribes obs for the lifetime of the Manager.
func WithObserver(obs observability.Observer) Option {
	return func(m *Manager) { m.notifier.Subscribe(obs) }
}

// WithStorageKey overrides CredentialKey.
func WithStorageKey(key string) Option {
	return func(m *Manager) { m.key = key }
}

// NewManager creates a Manager in StateNoCredential. Call Initialize to
// restore a stored credential.
func NewManager(store storage.Store, api Authenticator, nav Navigator, opts ...Option) *Manager {
	if nav == nil {
		nav = nopNavigator{}
	}
	m := &Manager{
		store:    store,
		api:      api,
		nav:      nav,
		key:      CredentialKey,
		logger:   zerolog.Nop(),
		notifier: observability.NewNotifier("session"),
		ready:    make(chan struct{}),
		state:    StateNoCredential,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Initialize restores the credential from storage and verifies it. It blocks
// until readiness is resolved. Only the first call has any effect.
func (m *Manager) Initialize(ctx context.Context) {
	m.initOnce.Do(func() { m.initialize(ctx) })
}

func (m *Manager) initialize(ctx context.Context) {
	defer m.resolve(ctx)

	m.mu.Lock()
	m.readiness = ReadinessResolving
	m.mu.Unlock()

	token, err := m.store.Get(ctx, m.key)
	if err != nil || token == "" {
		if err != nil && !errors.Is(err, storage.ErrKeyNotFound) {
			m.logger.Warn().Err(err).Msg("credential restore failed, continuing unauthenticated")
		}
		m.setState(ctx, StateUnauthenticated)
		return
	}

	m.mu.Lock()
	m.credential = token
	m.state = StateRestoring
	m.mu.Unlock()
	m.emitState(ctx)

	identity, err := m.api.VerifyIdentity(ctx, remote.Bearer(token))
	if err != nil {
		m.logger.Info().Err(err).Msg("stored credential rejected")
		m.notifier.Emit(ctx, EventRestoreFailed, observability.LevelWarning, map[string]any{
			"error": err.Error(),
		})
		m.logout(ctx, false)
		return
	}

	m.mu.Lock()
	if m.credential != token {
		// Logged out or replaced while the verification was in flight.
		m.mu.Unlock()
		return
	}
	resolved := identity.Clone()
	m.identity = &resolved
	m.state = StateAuthenticated
	m.mu.Unlock()

	m.logger.Info().Str("user_id", identity.ID).Msg("session restored")
	m.emitState(ctx)
}

func (m *Manager) resolve(ctx context.Context) {
	m.mu.Lock()
	m.readiness = ReadinessResolved
	state := m.state
	m.mu.Unlock()

	m.readyOnce.Do(func() { close(m.ready) })
	m.notifier.Emit(ctx, EventReady, observability.LevelInfo, map[string]any{
		"state": string(state),
	})
}

// Login exchanges the pair for a credential, persists it and resolves the
// identity behind it. It reports whether both calls succeeded; errors never
// escape. A failed exchange leaves the session untouched. A failed
// verification after a successful exchange removes the new credential and
// leaves the session unauthenticated. Neither failure navigates.
func (m *Manager) Login(ctx context.Context, username, password string) bool {
	token, err := m.api.ExchangeCredentials(ctx, username, password)
	if err != nil {
		m.loginFailed(ctx, username, "exchange", err)
		return false
	}

	if err := m.store.Set(ctx, m.key, token); err != nil {
		m.loginFailed(ctx, username, "persist", err)
		return false
	}

	m.mu.Lock()
	m.credential = token
	m.identity = nil
	m.state = StateVerifying
	m.mu.Unlock()
	m.emitState(ctx)

	identity, err := m.api.VerifyIdentity(ctx, remote.Bearer(token))
	if err != nil {
		// Only roll back if no other login or logout replaced the credential
		// while the verification was in flight.
		m.mu.Lock()
		current := m.credential == token
		if current {
			if rmErr := m.store.Remove(ctx, m.key); rmErr != nil {
				m.logger.Warn().Err(rmErr).Msg("failed to remove rejected credential")
			}
			m.credential = ""
			m.identity = nil
			m.state = StateUnauthenticated
		}
		m.mu.Unlock()
		if current {
			m.emitState(ctx)
		}
		m.loginFailed(ctx, username, "verify", err)
		return false
	}

	m.mu.Lock()
	if m.credential != token {
		m.mu.Unlock()
		m.loginFailed(ctx, username, "verify", errors.New("session changed during login"))
		return false
	}
	resolved := identity.Clone()
	m.identity = &resolved
	m.state = StateAuthenticated
	m.mu.Unlock()

	m.logger.Info().Str("user_id", identity.ID).Str("username", username).Msg("logged in")
	m.emitState(ctx)
	m.notifier.Emit(ctx, EventLoggedIn, observability.LevelInfo, map[string]any{
		"user_id": identity.ID,
	})
	m.nav.Navigate(ctx, ViewAuthenticatedLanding)
	return true
}

func (m *Manager) loginFailed(ctx context.Context, username, stage string, err error) {
	m.logger.Warn().Err(err).Str("username", username).Str("stage", stage).Msg("login failed")
	m.notifier.Emit(ctx, EventLoginFailed, observability.LevelWarning, map[string]any{
		"stage": stage,
		"error": err.Error(),
	})
}

// Logout forgets the credential and identity and navigates to the
// unauthenticated landing view. It is safe to call at any time. When the
// Authenticator is also a Revoker the dropped credential is revoked on the
// server after the local state is cleared; a failed revocation is only logged.
func (m *Manager) Logout(ctx context.Context) {
	m.logout(ctx, true)
}

func (m *Manager) logout(ctx context.Context, revoke bool) {
	if err := m.store.Remove(ctx, m.key); err != nil {
		m.logger.Warn().Err(err).Msg("failed to remove stored credential")
	}

	m.mu.Lock()
	token := m.credential
	m.credential = ""
	m.identity = nil
	m.state = StateUnauthenticated
	m.mu.Unlock()

	m.emitState(ctx)
	m.notifier.Emit(ctx, EventLoggedOut, observability.LevelInfo, nil)
	m.nav.Navigate(ctx, ViewUnauthenticatedLanding)

	if r, ok := m.api.(Revoker); ok && revoke && token != "" {
		if err := r.RevokeCredential(ctx, remote.Bearer(token)); err != nil {
			m.logger.Warn().Err(err).Msg("credential revocation failed")
		}
	}
}

// HasPermission reports the named permission of the current identity. It is
// false when there is no identity, no role, or no such permission.
func (m *Manager) HasPermission(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.identity == nil {
		return false
	}
	return m.identity.HasPermission(name)
}

// Authorize sets the bearer header for the credential held right now. With no
// credential the header is left unset.
func (m *Manager) Authorize(h http.Header) {
	m.mu.RLock()
	token := m.credential
	m.mu.RUnlock()
	remote.SetBearer(h, token)
}

// Identity returns a copy of the resolved identity.
func (m *Manager) Identity() (auth.Identity, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.identity == nil {
		return auth.Identity{}, false
	}
	return m.identity.Clone(), true
}

// Authenticated reports whether an identity is currently resolved.
func (m *Manager) Authenticated() bool {
	return m.State() == StateAuthenticated
}

func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Manager) Readiness() Readiness {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.readiness
}

// Ready is closed once readiness is resolved.
func (m *Manager) Ready() <-chan struct{} {
	return m.ready
}

// Subscribe registers obs for session events.
func (m *Manager) Subscribe(obs observability.Observer) (unsubscribe func()) {
	return m.notifier.Subscribe(obs)
}

func (m *Manager) setState(ctx context.Context, state State) {
	m.mu.Lock()
	m.state = state
	m.mu.Unlock()
	m.emitState(ctx)
}

func (m *Manager) emitState(ctx context.Context) {
	m.mu.RLock()
	data := map[string]any{
		"state":     string(m.state),
		"readiness": m.readiness.String(),
	}
	m.mu.RUnlock()
	m.notifier.Emit(ctx, EventStateChanged, observability.LevelVerbose, data)
}
