// Package auth serves the token and identity endpoints and guards the routes
// that need a signed-in user.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/z-tavern/client/internal/model/account"
	authmodel "github.com/zhouzirui/z-tavern/client/internal/model/auth"
	"github.com/zhouzirui/z-tavern/client/internal/remote"
	accountService "github.com/zhouzirui/z-tavern/client/internal/service/account"
	"github.com/zhouzirui/z-tavern/client/pkg/utils"
)

type (
	userKey  struct{}
	tokenKey struct{}
)

// Handler 认证相关的HTTP处理器
type Handler struct {
	accounts *accountService.Service
	logger   zerolog.Logger
}

// New 创建认证处理器
func New(accounts *accountService.Service, logger zerolog.Logger) *Handler {
	return &Handler{
		accounts: accounts,
		logger:   logger.With().Str("component", "handler.auth").Logger(),
	}
}

// RegisterRoutes 注册认证路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/token", h.handleToken)
	r.With(h.RequireUser).Get("/users/me", h.handleMe)
	r.With(h.RequireUser).Post("/logout", h.handleLogout)
}

// handleToken accepts either a JSON body or an OAuth2 password form.
func (h *Handler) handleToken(w http.ResponseWriter, r *http.Request) {
	creds, err := decodeCredentials(r)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if creds.Username == "" || creds.Password == "" {
		utils.RespondError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	token, err := h.accounts.Authenticate(r.Context(), creds.Username, creds.Password)
	switch {
	case errors.Is(err, accountService.ErrInvalidCredentials):
		w.Header().Set("WWW-Authenticate", "Bearer")
		utils.RespondError(w, http.StatusUnauthorized, err.Error())
		return
	case errors.Is(err, accountService.ErrInactiveUser):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.logger.Error().Err(err).Msg("token issue failed")
		utils.RespondError(w, http.StatusInternalServerError, "could not issue token")
		return
	}

	h.logger.Info().Str("username", creds.Username).Msg("token issued")
	utils.RespondJSON(w, http.StatusOK, authmodel.TokenResponse{AccessToken: token, TokenType: "bearer"})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	utils.RespondJSON(w, http.StatusOK, user.Identity())
}

// handleLogout revokes the bearer token the request was made with.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	token, _ := TokenFromContext(r.Context())
	h.accounts.Revoke(r.Context(), token)

	user, _ := UserFromContext(r.Context())
	h.logger.Info().Str("username", user.Username).Msg("token revoked")
	w.WriteHeader(http.StatusNoContent)
}

// RequireUser rejects requests without a valid bearer token and stores the
// resolved account in the request context.
func (h *Handler) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := remote.BearerToken(r.Header.Get("Authorization"))
		if !ok {
			w.Header().Set("WWW-Authenticate", "Bearer")
			utils.RespondError(w, http.StatusUnauthorized, "not authenticated")
			return
		}

		user, err := h.accounts.Resolve(r.Context(), token)
		if err != nil {
			w.Header().Set("WWW-Authenticate", "Bearer")
			utils.RespondError(w, http.StatusUnauthorized, "could not validate credentials")
			return
		}

		ctx := context.WithValue(WithUser(r.Context(), user), tokenKey{}, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user account.User) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// UserFromContext returns the account stored by RequireUser.
func UserFromContext(ctx context.Context) (account.User, bool) {
	user, ok := ctx.Value(userKey{}).(account.User)
	return user, ok
}

// TokenFromContext returns the bearer token RequireUser accepted.
func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenKey{}).(string)
	return token, ok
}

func decodeCredentials(r *http.Request) (authmodel.Credentials, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/x-www-form-urlencoded" {
		if err := r.ParseForm(); err != nil {
			return authmodel.Credentials{}, err
		}
		return authmodel.Credentials{
			Username: r.PostForm.Get("username"),
			Password: r.PostForm.Get("password"),
		}, nil
	}

	var creds authmodel.Credentials
	err := json.NewDecoder(r.Body).Decode(&creds)
	return creds, err
}
