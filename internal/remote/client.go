package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/zhouzirui/z-tavern/client/internal/model/auth"
	"github.com/zhouzirui/z-tavern/client/internal/model/chat"
)

const (
	tokenPath  = "/api/token"
	mePath     = "/api/users/me"
	chatPath   = "/api/chat"
	logoutPath = "/api/logout"

	maxErrorBody = 4 << 10
)

// Client talks to the tavern API over HTTP+JSON.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	logger  zerolog.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout bounds every call. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLogger sets the client logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger.With().Str("component", "remote").Logger() }
}

// NewClient creates a Client rooted at baseURL, e.g. "http://localhost:8080".
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    http.DefaultClient,
		timeout: 30 * time.Second,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ExchangeCredentials trades a username/password pair for an access token.
func (c *Client) ExchangeCredentials(ctx context.Context, username, password string) (string, error) {
	var out auth.TokenResponse
	in := auth.Credentials{Username: username, Password: password}
	if err := c.do(ctx, http.MethodPost, tokenPath, nil, in, &out); err != nil {
		return "", fmt.Errorf("exchange credentials: %w", err)
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("exchange credentials: %w", ErrEmptyToken)
	}
	return out.AccessToken, nil
}

// VerifyIdentity resolves the user behind the credential supplied by authz.
func (c *Client) VerifyIdentity(ctx context.Context, authz Authorizer) (auth.Identity, error) {
	var out auth.Identity
	if err := c.do(ctx, http.MethodGet, mePath, authz, nil, &out); err != nil {
		return auth.Identity{}, fmt.Errorf("verify identity: %w", err)
	}
	if out.ID == "" {
		return auth.Identity{}, fmt.Errorf("verify identity: response has no id")
	}
	return out, nil
}

// RevokeCredential asks the server to invalidate the credential supplied by
// authz.
func (c *Client) RevokeCredential(ctx context.Context, authz Authorizer) error {
	if err := c.do(ctx, http.MethodPost, logoutPath, authz, nil, nil); err != nil {
		return fmt.Errorf("revoke credential: %w", err)
	}
	return nil
}

// SubmitChat sends one user message and returns the reply text.
func (c *Client) SubmitChat(ctx context.Context, authz Authorizer, message string) (string, error) {
	var out chat.Response
	if err := c.do(ctx, http.MethodPost, chatPath, authz, chat.Request{Message: message}, &out); err != nil {
		return "", fmt.Errorf("submit chat: %w", err)
	}
	return replyText(out)
}

func replyText(out chat.Response) (string, error) {
	if out.Rejected() {
		if out.Error != "" {
			return "", fmt.Errorf("submit chat: %w: %s", ErrReplyRejected, out.Error)
		}
		return "", fmt.Errorf("submit chat: %w", ErrReplyRejected)
	}
	return out.Response, nil
}

func (c *Client) do(ctx context.Context, method, path string, authz Authorizer, in, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	authorize(req.Header, authz)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("remote call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var payload struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	msg := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &payload) == nil {
		switch {
		case payload.Error != "":
			msg = payload.Error
		case payload.Detail != "":
			msg = payload.Detail
		}
	}
	return &StatusError{Code: resp.StatusCode, Message: msg}
}
