package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/z-tavern/client/internal/model/chat"
)

const chatSocketPath = "/api/chat/ws"

// WebSocketChat carries chat exchanges over a websocket. The bearer credential
// travels in the handshake, so the connection is re-dialled whenever the
// credential returned by the Authorizer changes.
type WebSocketChat struct {
	url     string
	dialer  *websocket.Dialer
	timeout time.Duration
	logger  zerolog.Logger

	mu       sync.Mutex
	conn     *websocket.Conn
	dialedAs string
}

// NewWebSocketChat creates a websocket chat transport for the API at baseURL.
// http and https schemes are mapped onto ws and wss.
func NewWebSocketChat(baseURL string, timeout time.Duration, logger zerolog.Logger) *WebSocketChat {
	u := strings.TrimRight(baseURL, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return &WebSocketChat{
		url:     u + chatSocketPath,
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		timeout: timeout,
		logger:  logger.With().Str("component", "remote.ws").Logger(),
	}
}

// SubmitChat sends one user message over the socket and waits for the reply.
func (w *WebSocketChat) SubmitChat(ctx context.Context, authz Authorizer, message string) (string, error) {
	header := http.Header{}
	authorize(header, authz)
	credential := header.Get("Authorization")

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn != nil && w.dialedAs != credential {
		w.closeLocked()
	}
	if w.conn == nil {
		if err := w.dialLocked(ctx, header, credential); err != nil {
			return "", fmt.Errorf("submit chat: %w", err)
		}
	}

	deadline := time.Time{}
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}
	if w.timeout > 0 {
		if d := time.Now().Add(w.timeout); deadline.IsZero() || d.Before(deadline) {
			deadline = d
		}
	}
	conn := w.conn
	_ = conn.SetWriteDeadline(deadline)
	_ = conn.SetReadDeadline(deadline)

	stop := context.AfterFunc(ctx, func() {
		// Unblocks a pending read when the caller gives up.
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	if err := conn.WriteJSON(chat.Request{Message: message}); err != nil {
		w.closeLocked()
		return "", fmt.Errorf("submit chat: write: %w", err)
	}

	var out chat.Response
	if err := conn.ReadJSON(&out); err != nil {
		w.closeLocked()
		if ctx.Err() != nil {
			return "", fmt.Errorf("submit chat: %w", ctx.Err())
		}
		// The server closes with a policy violation once the handshake
		// credential stops resolving.
		var ce *websocket.CloseError
		if errors.As(err, &ce) && ce.Code == websocket.ClosePolicyViolation {
			return "", fmt.Errorf("submit chat: %w", &StatusError{Code: http.StatusUnauthorized, Message: ce.Text})
		}
		return "", fmt.Errorf("submit chat: read: %w", err)
	}
	return replyText(out)
}

// Close drops the current connection, if any.
func (w *WebSocketChat) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closeLocked()
	return nil
}

func (w *WebSocketChat) dialLocked(ctx context.Context, header http.Header, credential string) error {
	conn, resp, err := w.dialer.DialContext(ctx, w.url, header)
	if err != nil {
		if resp != nil {
			return &StatusError{Code: resp.StatusCode, Message: "websocket handshake rejected"}
		}
		return fmt.Errorf("dial %s: %w", w.url, err)
	}
	w.logger.Debug().Str("url", w.url).Msg("chat socket connected")
	w.conn = conn
	w.dialedAs = credential
	return nil
}

func (w *WebSocketChat) closeLocked() {
	if w.conn == nil {
		return
	}
	_ = w.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	_ = w.conn.Close()
	w.conn = nil
	w.dialedAs = ""
}
