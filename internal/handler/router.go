package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/z-tavern/client/internal/handler/auth"
	"github.com/zhouzirui/z-tavern/client/internal/handler/chat"
	accountService "github.com/zhouzirui/z-tavern/client/internal/service/account"
	"github.com/zhouzirui/z-tavern/client/internal/service/ai"
	chatService "github.com/zhouzirui/z-tavern/client/internal/service/chat"
	"github.com/zhouzirui/z-tavern/client/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(accounts *accountService.Service, chatSvc *chatService.Service, responder ai.Responder, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	authHandler := auth.New(accounts, logger)
	chatHandler := chat.New(chatSvc, responder, accounts, logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(api chi.Router) {
		authHandler.RegisterRoutes(api)

		api.Group(func(protected chi.Router) {
			protected.Use(authHandler.RequireUser)
			chatHandler.RegisterRoutes(protected)
		})
	})

	return r
}

// requestLogger writes one access line per request through zerolog.
func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	logger = logger.With().Str("component", "http").Logger()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info().
					Str("request_id", middleware.GetReqID(r.Context())).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", ww.Status()).
					Int("bytes", ww.BytesWritten()).
					Dur("elapsed", time.Since(start)).
					Msg("request")
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
