// Package remote implements the request/response calls the client makes
// against the tavern API: credential exchange, identity verification and the
// chat exchange, over HTTP+JSON or a websocket.
package remote

import (
	"net/http"
	"strings"
)

// Authorizer decorates an outbound request with credentials. It is consulted
// when the request is built, so the value in effect at call time is used.
type Authorizer interface {
	Authorize(h http.Header)
}

// Bearer authorizes requests with a fixed token.
type Bearer string

func (b Bearer) Authorize(h http.Header) {
	SetBearer(h, string(b))
}

// SetBearer writes the Authorization header for token. An empty token leaves
// the header unset.
func SetBearer(h http.Header, token string) {
	if token == "" {
		h.Del("Authorization")
		return
	}
	h.Set("Authorization", "Bearer "+token)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

func authorize(h http.Header, auth Authorizer) {
	if auth != nil {
		auth.Authorize(h)
	}
}
