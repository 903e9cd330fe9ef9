package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-tavern/client/internal/model/account"
	authmodel "github.com/zhouzirui/z-tavern/client/internal/model/auth"
	accountService "github.com/zhouzirui/z-tavern/client/internal/service/account"
)

var (
	seedOnce  sync.Once
	seedUsers []account.User
)

func setupRouter(t *testing.T) (*chi.Mux, *accountService.Service) {
	t.Helper()
	seedOnce.Do(func() { seedUsers = account.Seed() })

	accounts := accountService.NewService(account.NewMemoryStore(seedUsers), time.Hour)
	r := chi.NewRouter()
	New(accounts, zerolog.Nop()).RegisterRoutes(r)
	return r, accounts
}

func postJSON(r http.Handler, path string, body any) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestTokenIssuedForValidCredentials(t *testing.T) {
	r, _ := setupRouter(t)

	resp := postJSON(r, "/token", authmodel.Credentials{Username: "alice", Password: "wonderland"})
	require.Equal(t, http.StatusOK, resp.Code)

	var out authmodel.TokenResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.NotEmpty(t, out.AccessToken)
	assert.Equal(t, "bearer", out.TokenType)
}

func TestTokenAcceptsPasswordForm(t *testing.T) {
	r, _ := setupRouter(t)

	form := url.Values{"username": {"admin"}, "password": {"tavern-admin"}}
	req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestTokenRejectsBadCredentials(t *testing.T) {
	r, _ := setupRouter(t)

	resp := postJSON(r, "/token", authmodel.Credentials{Username: "alice", Password: "nope"})
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Equal(t, "Bearer", resp.Header().Get("WWW-Authenticate"))
	assert.Contains(t, resp.Body.String(), "incorrect username or password")
}

func TestTokenValidation(t *testing.T) {
	r, _ := setupRouter(t)

	resp := postJSON(r, "/token", map[string]string{"username": "alice"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	bad := httptest.NewRecorder()
	r.ServeHTTP(bad, req)
	assert.Equal(t, http.StatusBadRequest, bad.Code)
}

func TestMeReturnsIdentity(t *testing.T) {
	r, accounts := setupRouter(t)
	token, err := accounts.Authenticate(context.Background(), "alice", "wonderland")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)

	var identity authmodel.Identity
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&identity))
	assert.Equal(t, "1", identity.ID)
	assert.Equal(t, "alice", identity.Username)
	assert.Equal(t, "Alice Liddell", identity.FullName)
	require.NotNil(t, identity.Role)
	assert.Equal(t, "member", identity.Role.Name)
	assert.True(t, identity.HasPermission("chat"))
	assert.False(t, identity.HasPermission("admin"))
}

func TestMeRequiresBearer(t *testing.T) {
	r, _ := setupRouter(t)

	for _, header := range []string{"", "Basic abc", "Bearer ", "Bearer not-issued"} {
		req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, req)
		assert.Equal(t, http.StatusUnauthorized, resp.Code, "header %q", header)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	r, accounts := setupRouter(t)
	token, err := accounts.Authenticate(context.Background(), "alice", "wonderland")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusNoContent, resp.Code)

	_, err = accounts.Resolve(context.Background(), token)
	assert.ErrorIs(t, err, accountService.ErrInvalidToken)

	req = httptest.NewRequest(http.MethodGet, "/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	after := httptest.NewRecorder()
	r.ServeHTTP(after, req)
	assert.Equal(t, http.StatusUnauthorized, after.Code)
}

func TestLogoutRequiresBearer(t *testing.T) {
	r, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestRequireUserStoresToken(t *testing.T) {
	_, accounts := setupRouter(t)
	token, err := accounts.Authenticate(context.Background(), "admin", "tavern-admin")
	require.NoError(t, err)

	var gotToken string
	var gotUser account.User
	guarded := New(accounts, zerolog.Nop()).RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken, _ = TokenFromContext(r.Context())
		gotUser, _ = UserFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	guarded.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, token, gotToken)
	assert.Equal(t, "admin", gotUser.Username)
}
