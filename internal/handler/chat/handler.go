package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	authHandler "github.com/zhouzirui/z-tavern/client/internal/handler/auth"
	"github.com/zhouzirui/z-tavern/client/internal/model/account"
	"github.com/zhouzirui/z-tavern/client/internal/model/chat"
	"github.com/zhouzirui/z-tavern/client/internal/service/ai"
	chatService "github.com/zhouzirui/z-tavern/client/internal/service/chat"
	"github.com/zhouzirui/z-tavern/client/pkg/utils"
)

// ChatPermission is the role permission required to talk to the bot.
const ChatPermission = "chat"

// Resolver maps a bearer token back to the account it was issued to.
type Resolver interface {
	Resolve(ctx context.Context, token string) (account.User, error)
}

// Handler 聊天服务的HTTP处理器
type Handler struct {
	chatSvc   *chatService.Service
	responder ai.Responder
	accounts  Resolver
	logger    zerolog.Logger
	upgrader  websocket.Upgrader
}

// New 创建聊天处理器
func New(chatSvc *chatService.Service, responder ai.Responder, accounts Resolver, logger zerolog.Logger) *Handler {
	return &Handler{
		chatSvc:   chatSvc,
		responder: responder,
		accounts:  accounts,
		logger:    logger.With().Str("component", "handler.chat").Logger(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册聊天相关的路由。调用方负责挂载认证中间件。
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleChat)
	r.Get("/chat/ws", h.handleSocket)
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	user, ok := authHandler.UserFromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var payload chat.Request
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	status, out := h.exchange(r.Context(), user, payload.Message)
	utils.RespondJSON(w, status, out)
}

// handleSocket serves one chat exchange per text frame until the peer leaves.
// The handshake token is resolved again before every frame; once it stops
// resolving the socket is closed with a policy violation.
func (h *Handler) handleSocket(w http.ResponseWriter, r *http.Request) {
	user, ok := authHandler.UserFromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	token, _ := authHandler.TokenFromContext(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("upgrade failed")
		return
	}
	defer conn.Close()

	logger := h.logger.With().Str("user", user.ID).Logger()
	logger.Debug().Msg("chat socket opened")

	for {
		var payload chat.Request
		if err := conn.ReadJSON(&payload); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn().Err(err).Msg("chat socket read failed")
			}
			return
		}

		if h.accounts != nil {
			current, err := h.accounts.Resolve(r.Context(), token)
			if err != nil {
				logger.Info().Err(err).Msg("chat socket credential no longer valid")
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "token expired"),
					time.Now().Add(time.Second))
				return
			}
			user = current
		}

		_, out := h.exchange(r.Context(), user, payload.Message)
		if err := conn.WriteJSON(out); err != nil {
			logger.Warn().Err(err).Msg("chat socket write failed")
			return
		}
	}
}

// exchange records the user's message, asks the responder and records the
// reply. Failures are reported through the Response body as well as the status.
func (h *Handler) exchange(ctx context.Context, user account.User, message string) (int, chat.Response) {
	if !user.Role.Permissions[ChatPermission] {
		return http.StatusForbidden, chat.Failure("chat permission required")
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return http.StatusBadRequest, chat.Failure("message is required")
	}

	history, err := h.chatSvc.LoadTranscript(ctx, user.ID)
	if err != nil {
		h.logger.Error().Err(err).Str("user", user.ID).Msg("load transcript failed")
		return http.StatusInternalServerError, chat.Failure("could not load conversation")
	}

	reply, err := h.responder.Respond(ctx, user.ID, history, message)
	if err != nil {
		h.logger.Error().Err(err).Str("user", user.ID).Msg("responder failed")
		return http.StatusBadGateway, chat.Failure("assistant unavailable")
	}

	if _, err := h.chatSvc.SaveMessage(ctx, chat.Message{UserID: user.ID, Content: message}); err != nil {
		h.logger.Warn().Err(err).Msg("save user message failed")
	}
	if _, err := h.chatSvc.SaveMessage(ctx, chat.Message{UserID: user.ID, Content: reply, IsBot: true}); err != nil {
		h.logger.Warn().Err(err).Msg("save reply failed")
	}

	return http.StatusOK, chat.Reply(reply)
}
