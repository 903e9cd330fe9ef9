package session_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-tavern/client/internal/model/auth"
	"github.com/zhouzirui/z-tavern/client/internal/observability"
	"github.com/zhouzirui/z-tavern/client/internal/remote"
	"github.com/zhouzirui/z-tavern/client/internal/session"
	"github.com/zhouzirui/z-tavern/client/internal/storage"
)

type fakeAuth struct {
	mu          sync.Mutex
	passwords   map[string]string
	tokens      map[string]string
	identities  map[string]auth.Identity
	exchangeErr error
	verifyErr   error
	verified    []string
	onVerify    func()
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{
		passwords: map[string]string{"alice": "wonderland"},
		tokens:    map[string]string{"alice": "tok-alice"},
		identities: map[string]auth.Identity{
			"tok-1":     {ID: "u1", Role: &auth.Role{Permissions: map[string]bool{"chat": true}}},
			"tok-alice": {ID: "u-alice", Username: "alice", Role: &auth.Role{Name: "member", Permissions: map[string]bool{"chat": true, "admin": false}}},
		},
	}
}

func (f *fakeAuth) ExchangeCredentials(_ context.Context, username, password string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.exchangeErr != nil {
		return "", f.exchangeErr
	}
	if want, ok := f.passwords[username]; !ok || want != password {
		return "", &remote.StatusError{Code: http.StatusUnauthorized, Message: "incorrect username or password"}
	}
	return f.tokens[username], nil
}

func (f *fakeAuth) VerifyIdentity(_ context.Context, authz remote.Authorizer) (auth.Identity, error) {
	h := http.Header{}
	authz.Authorize(h)

	f.mu.Lock()
	f.verified = append(f.verified, h.Get("Authorization"))
	hook := f.onVerify
	verifyErr := f.verifyErr
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	if verifyErr != nil {
		return auth.Identity{}, verifyErr
	}

	token, ok := remote.BearerToken(h.Get("Authorization"))
	if !ok {
		return auth.Identity{}, remote.ErrUnauthorized
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	identity, ok := f.identities[token]
	if !ok {
		return auth.Identity{}, &remote.StatusError{Code: http.StatusUnauthorized}
	}
	return identity, nil
}

func (f *fakeAuth) verifyCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.verified...)
}

// revokingAuth adds server-side revocation to fakeAuth.
type revokingAuth struct {
	*fakeAuth
	err     error
	revoked []string
}

func (r *revokingAuth) RevokeCredential(_ context.Context, authz remote.Authorizer) error {
	h := http.Header{}
	authz.Authorize(h)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revoked = append(r.revoked, h.Get("Authorization"))
	return r.err
}

func (r *revokingAuth) revokeCalls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.revoked...)
}

type navRecorder struct {
	mu    sync.Mutex
	views []session.View
}

func (n *navRecorder) Navigate(_ context.Context, view session.View) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.views = append(n.views, view)
}

func (n *navRecorder) all() []session.View {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]session.View(nil), n.views...)
}

type failingStore struct {
	storage.Store
	getErr error
	setErr error
}

func (s failingStore) Get(ctx context.Context, key string) (string, error) {
	if s.getErr != nil {
		return "", s.getErr
	}
	return s.Store.Get(ctx, key)
}

func (s failingStore) Set(ctx context.Context, key, value string) error {
	if s.setErr != nil {
		return s.setErr
	}
	return s.Store.Set(ctx, key, value)
}

type eventLog struct {
	mu     sync.Mutex
	events []observability.Event
}

func (l *eventLog) OnEvent(_ context.Context, e observability.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) types() []observability.EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]observability.EventType, 0, len(l.events))
	for _, e := range l.events {
		out = append(out, e.Type)
	}
	return out
}

func authHeader(m *session.Manager) string {
	h := http.Header{}
	m.Authorize(h)
	return h.Get("Authorization")
}

func storedToken(t *testing.T, store storage.Store) (string, bool) {
	t.Helper()
	v, err := store.Get(context.Background(), session.CredentialKey)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return "", false
	}
	require.NoError(t, err)
	return v, true
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func TestNewManager_InitialState(t *testing.T) {
	m := session.NewManager(storage.NewMemoryStore(), newFakeAuth(), nil)

	assert.Equal(t, session.StateNoCredential, m.State())
	assert.Equal(t, session.ReadinessUnresolved, m.Readiness())
	assert.False(t, isClosed(m.Ready()))
	assert.False(t, m.Authenticated())
}

func TestInitialize_NoStoredCredential(t *testing.T) {
	api := newFakeAuth()
	nav := &navRecorder{}
	m := session.NewManager(storage.NewMemoryStore(), api, nav)

	m.Initialize(context.Background())

	assert.Equal(t, session.StateUnauthenticated, m.State())
	assert.Equal(t, session.ReadinessResolved, m.Readiness())
	assert.True(t, isClosed(m.Ready()))
	assert.Empty(t, api.verifyCalls())
	assert.Empty(t, nav.all())
}

func TestInitialize_RestoresValidCredential(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	require.NoError(t, store.Set(ctx, session.CredentialKey, "tok-1"))
	api := newFakeAuth()
	m := session.NewManager(store, api, nil)

	m.Initialize(ctx)

	assert.Equal(t, session.StateAuthenticated, m.State())
	assert.Equal(t, session.ReadinessResolved, m.Readiness())
	assert.True(t, m.HasPermission("chat"))
	assert.Equal(t, []string{"Bearer tok-1"}, api.verifyCalls())

	identity, ok := m.Identity()
	require.True(t, ok)
	assert.Equal(t, "u1", identity.ID)
	assert.Equal(t, "Bearer tok-1", authHeader(m))
}

func TestInitialize_ResolvingWhileVerifying(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	require.NoError(t, store.Set(ctx, session.CredentialKey, "tok-1"))
	api := newFakeAuth()
	m := session.NewManager(store, api, nil)

	var readiness session.Readiness
	var state session.State
	var readyEarly bool
	api.onVerify = func() {
		readiness = m.Readiness()
		state = m.State()
		readyEarly = isClosed(m.Ready())
	}

	m.Initialize(ctx)

	assert.Equal(t, session.ReadinessResolving, readiness)
	assert.Equal(t, session.StateRestoring, state)
	assert.False(t, readyEarly, "readiness must not resolve before verification settles")
}

func TestInitialize_RejectedCredentialIsCleared(t *testing.T) {
	tests := []struct {
		name      string
		token     string
		verifyErr error
	}{
		{name: "revoked token", token: "tok-revoked"},
		{name: "network failure", token: "tok-1", verifyErr: errors.New("dial tcp: connection refused")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := storage.NewMemoryStore()
			require.NoError(t, store.Set(ctx, session.CredentialKey, tt.token))
			api := newFakeAuth()
			api.verifyErr = tt.verifyErr
			nav := &navRecorder{}
			m := session.NewManager(store, api, nav)

			m.Initialize(ctx)

			assert.Equal(t, session.StateUnauthenticated, m.State())
			assert.Equal(t, session.ReadinessResolved, m.Readiness())
			_, ok := m.Identity()
			assert.False(t, ok)
			_, stored := storedToken(t, store)
			assert.False(t, stored)
			assert.Empty(t, authHeader(m))
			assert.Len(t, api.verifyCalls(), 1, "no retry")
			assert.Equal(t, []session.View{session.ViewUnauthenticatedLanding}, nav.all())
		})
	}
}

func TestInitialize_StoreReadErrorTreatedAsMissing(t *testing.T) {
	store := failingStore{Store: storage.NewMemoryStore(), getErr: storage.ErrLoadFailed}
	api := newFakeAuth()
	m := session.NewManager(store, api, nil)

	m.Initialize(context.Background())

	assert.Equal(t, session.StateUnauthenticated, m.State())
	assert.Equal(t, session.ReadinessResolved, m.Readiness())
	assert.Empty(t, api.verifyCalls())
}

func TestInitialize_OnlyOnce(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	require.NoError(t, store.Set(ctx, session.CredentialKey, "tok-1"))
	api := newFakeAuth()
	m := session.NewManager(store, api, nil)

	m.Initialize(ctx)
	m.Initialize(ctx)

	assert.Len(t, api.verifyCalls(), 1)
}

func TestInitialize_EmitsReadyLast(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	require.NoError(t, store.Set(ctx, session.CredentialKey, "tok-1"))
	events := &eventLog{}
	m := session.NewManager(store, newFakeAuth(), nil, session.WithObserver(events))

	m.Initialize(ctx)

	types := events.types()
	require.NotEmpty(t, types)
	assert.Equal(t, session.EventReady, types[len(types)-1])
	assert.Contains(t, types, session.EventStateChanged)
}

func TestLogin_Success(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	api := newFakeAuth()
	nav := &navRecorder{}
	events := &eventLog{}
	m := session.NewManager(store, api, nav, session.WithObserver(events))
	m.Initialize(ctx)

	ok := m.Login(ctx, "alice", "wonderland")

	require.True(t, ok)
	assert.Equal(t, session.StateAuthenticated, m.State())
	token, stored := storedToken(t, store)
	assert.True(t, stored)
	assert.Equal(t, "tok-alice", token)
	assert.Equal(t, []string{"Bearer tok-alice"}, api.verifyCalls())
	assert.Equal(t, "Bearer tok-alice", authHeader(m))
	assert.True(t, m.HasPermission("chat"))
	assert.False(t, m.HasPermission("admin"))
	assert.Equal(t, []session.View{session.ViewAuthenticatedLanding}, nav.all())
	assert.Contains(t, events.types(), session.EventLoggedIn)
}

func TestLogin_WrongPassword(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	api := newFakeAuth()
	nav := &navRecorder{}
	m := session.NewManager(store, api, nav)
	m.Initialize(ctx)

	ok := m.Login(ctx, "alice", "wrong")

	assert.False(t, ok)
	assert.Equal(t, session.StateUnauthenticated, m.State())
	_, stored := storedToken(t, store)
	assert.False(t, stored)
	assert.Empty(t, authHeader(m))
	assert.Empty(t, api.verifyCalls())
	assert.Empty(t, nav.all())
}

func TestLogin_ExchangeFailureKeepsExistingSession(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	require.NoError(t, store.Set(ctx, session.CredentialKey, "tok-1"))
	api := newFakeAuth()
	nav := &navRecorder{}
	m := session.NewManager(store, api, nav)
	m.Initialize(ctx)
	require.Equal(t, session.StateAuthenticated, m.State())

	api.exchangeErr = errors.New("network unreachable")
	ok := m.Login(ctx, "alice", "wonderland")

	assert.False(t, ok)
	assert.Equal(t, session.StateAuthenticated, m.State())
	assert.Equal(t, "Bearer tok-1", authHeader(m))
	token, _ := storedToken(t, store)
	assert.Equal(t, "tok-1", token)
	identity, _ := m.Identity()
	assert.Equal(t, "u1", identity.ID)
	assert.Empty(t, nav.all())
}

func TestLogin_VerificationFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	api := newFakeAuth()
	api.verifyErr = errors.New("identity service unavailable")
	nav := &navRecorder{}
	events := &eventLog{}
	m := session.NewManager(store, api, nav, session.WithObserver(events))
	m.Initialize(ctx)

	ok := m.Login(ctx, "alice", "wonderland")

	assert.False(t, ok)
	assert.Equal(t, session.StateUnauthenticated, m.State())
	_, stored := storedToken(t, store)
	assert.False(t, stored)
	assert.Empty(t, authHeader(m))
	_, hasIdentity := m.Identity()
	assert.False(t, hasIdentity)
	assert.Empty(t, nav.all())
	assert.Contains(t, events.types(), session.EventLoginFailed)
}

func TestLogin_VerificationFailureKeepsNewerSession(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	api := newFakeAuth()
	api.passwords["bob"] = "builder"
	api.tokens["bob"] = "tok-bob"
	api.identities["tok-bob"] = auth.Identity{ID: "u-bob", Username: "bob"}
	api.verifyErr = errors.New("identity service unavailable")
	m := session.NewManager(store, api, nil)
	m.Initialize(ctx)

	// A second login completes while alice's verification is still pending.
	fired := false
	api.onVerify = func() {
		if fired {
			return
		}
		fired = true
		api.mu.Lock()
		api.verifyErr = nil
		api.mu.Unlock()
		require.True(t, m.Login(ctx, "bob", "builder"))
	}

	assert.False(t, m.Login(ctx, "alice", "wonderland"))

	assert.Equal(t, session.StateAuthenticated, m.State())
	assert.Equal(t, "Bearer tok-bob", authHeader(m))
	token, stored := storedToken(t, store)
	assert.True(t, stored)
	assert.Equal(t, "tok-bob", token)
	identity, _ := m.Identity()
	assert.Equal(t, "u-bob", identity.ID)
}

func TestLogin_VerifyingStateWhilePending(t *testing.T) {
	ctx := context.Background()
	api := newFakeAuth()
	m := session.NewManager(storage.NewMemoryStore(), api, nil)
	m.Initialize(ctx)

	var state session.State
	api.onVerify = func() { state = m.State() }

	require.True(t, m.Login(ctx, "alice", "wonderland"))
	assert.Equal(t, session.StateVerifying, state)
}

func TestLogin_PersistFailure(t *testing.T) {
	ctx := context.Background()
	store := failingStore{Store: storage.NewMemoryStore(), setErr: storage.ErrSaveFailed}
	api := newFakeAuth()
	nav := &navRecorder{}
	m := session.NewManager(store, api, nav)
	m.Initialize(ctx)

	ok := m.Login(ctx, "alice", "wonderland")

	assert.False(t, ok)
	assert.Equal(t, session.StateUnauthenticated, m.State())
	assert.Empty(t, authHeader(m))
	assert.Empty(t, api.verifyCalls())
	assert.Empty(t, nav.all())
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	api := newFakeAuth()
	nav := &navRecorder{}
	events := &eventLog{}
	m := session.NewManager(store, api, nav, session.WithObserver(events))
	m.Initialize(ctx)
	require.True(t, m.Login(ctx, "alice", "wonderland"))

	m.Logout(ctx)

	assert.Equal(t, session.StateUnauthenticated, m.State())
	assert.False(t, m.HasPermission("chat"))
	assert.Empty(t, authHeader(m))
	_, stored := storedToken(t, store)
	assert.False(t, stored)
	assert.Equal(t, []session.View{session.ViewAuthenticatedLanding, session.ViewUnauthenticatedLanding}, nav.all())
	assert.Contains(t, events.types(), session.EventLoggedOut)
}

func TestLogout_RevokesCredential(t *testing.T) {
	ctx := context.Background()
	api := &revokingAuth{fakeAuth: newFakeAuth()}
	m := session.NewManager(storage.NewMemoryStore(), api, nil)
	m.Initialize(ctx)
	require.True(t, m.Login(ctx, "alice", "wonderland"))

	m.Logout(ctx)
	m.Logout(ctx)

	assert.Equal(t, []string{"Bearer tok-alice"}, api.revokeCalls())
}

func TestLogout_RevocationFailureStillClearsSession(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	api := &revokingAuth{fakeAuth: newFakeAuth(), err: remote.ErrUnauthorized}
	nav := &navRecorder{}
	m := session.NewManager(store, api, nav)
	m.Initialize(ctx)
	require.True(t, m.Login(ctx, "alice", "wonderland"))

	m.Logout(ctx)

	assert.Equal(t, session.StateUnauthenticated, m.State())
	assert.Empty(t, authHeader(m))
	_, stored := storedToken(t, store)
	assert.False(t, stored)
	assert.Equal(t, session.ViewUnauthenticatedLanding, nav.all()[len(nav.all())-1])
	assert.Len(t, api.revokeCalls(), 1)
}

func TestInitialize_RejectedCredentialIsNotRevoked(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	require.NoError(t, store.Set(ctx, session.CredentialKey, "tok-stale"))
	api := &revokingAuth{fakeAuth: newFakeAuth()}
	m := session.NewManager(store, api, nil)

	m.Initialize(ctx)

	assert.Equal(t, session.StateUnauthenticated, m.State())
	assert.Empty(t, api.revokeCalls())
}

func TestWithStorageKey(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	require.NoError(t, store.Set(ctx, "tavern.credential", "tok-1"))
	m := session.NewManager(store, newFakeAuth(), nil, session.WithStorageKey("tavern.credential"))

	m.Initialize(ctx)
	require.Equal(t, session.StateAuthenticated, m.State())
	_, underDefault := storedToken(t, store)
	assert.False(t, underDefault)

	require.True(t, m.Login(ctx, "alice", "wonderland"))
	v, err := store.Get(ctx, "tavern.credential")
	require.NoError(t, err)
	assert.Equal(t, "tok-alice", v)

	m.Logout(ctx)
	_, err = store.Get(ctx, "tavern.credential")
	assert.ErrorIs(t, err, storage.ErrKeyNotFound)
}

func TestLogout_Idempotent(t *testing.T) {
	ctx := context.Background()
	nav := &navRecorder{}
	m := session.NewManager(storage.NewMemoryStore(), newFakeAuth(), nav)

	m.Logout(ctx)
	m.Logout(ctx)

	assert.Equal(t, session.StateUnauthenticated, m.State())
	assert.Equal(t, []session.View{session.ViewUnauthenticatedLanding, session.ViewUnauthenticatedLanding}, nav.all())
}

func TestHasPermission(t *testing.T) {
	ctx := context.Background()
	m := session.NewManager(storage.NewMemoryStore(), newFakeAuth(), nil)

	for _, p := range []string{"chat", "admin", "read", ""} {
		assert.False(t, m.HasPermission(p), "no identity: %q", p)
	}

	m.Initialize(ctx)
	require.True(t, m.Login(ctx, "alice", "wonderland"))

	assert.True(t, m.HasPermission("chat"))
	assert.False(t, m.HasPermission("admin"), "stored false is returned as false")
	assert.False(t, m.HasPermission("missing"))
}

func TestHasPermission_NoRole(t *testing.T) {
	ctx := context.Background()
	api := newFakeAuth()
	api.identities["tok-norole"] = auth.Identity{ID: "u2"}
	store := storage.NewMemoryStore()
	require.NoError(t, store.Set(ctx, session.CredentialKey, "tok-norole"))
	m := session.NewManager(store, api, nil)

	m.Initialize(ctx)

	require.Equal(t, session.StateAuthenticated, m.State())
	assert.False(t, m.HasPermission("chat"))
}

func TestIdentity_ReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	require.NoError(t, store.Set(ctx, session.CredentialKey, "tok-1"))
	m := session.NewManager(store, newFakeAuth(), nil)
	m.Initialize(ctx)

	identity, ok := m.Identity()
	require.True(t, ok)
	identity.Role.Permissions["chat"] = false

	assert.True(t, m.HasPermission("chat"))
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	events := &eventLog{}
	m := session.NewManager(storage.NewMemoryStore(), newFakeAuth(), nil)
	unsubscribe := m.Subscribe(events)

	m.Logout(context.Background())
	n := len(events.types())
	require.NotZero(t, n)

	unsubscribe()
	m.Logout(context.Background())
	assert.Len(t, events.types(), n)
}

func TestObserverMayQueryManager(t *testing.T) {
	ctx := context.Background()
	m := session.NewManager(storage.NewMemoryStore(), newFakeAuth(), nil)
	var seen []session.State
	m.Subscribe(observability.ObserverFunc(func(context.Context, observability.Event) {
		seen = append(seen, m.State())
	}))

	m.Initialize(ctx)
	require.True(t, m.Login(ctx, "alice", "wonderland"))

	assert.Contains(t, seen, session.StateAuthenticated)
}

func TestReadinessString(t *testing.T) {
	assert.Equal(t, "unresolved", session.ReadinessUnresolved.String())
	assert.Equal(t, "resolving", session.ReadinessResolving.String())
	assert.Equal(t, "resolved", session.ReadinessResolved.String())
}
