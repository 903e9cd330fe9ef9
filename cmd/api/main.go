package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/z-tavern/client/internal/config"
	"github.com/zhouzirui/z-tavern/client/internal/handler"
	"github.com/zhouzirui/z-tavern/client/internal/logging"
	"github.com/zhouzirui/z-tavern/client/internal/model/account"
	"github.com/zhouzirui/z-tavern/client/internal/model/project"
	accountService "github.com/zhouzirui/z-tavern/client/internal/service/account"
	"github.com/zhouzirui/z-tavern/client/internal/service/ai"
	"github.com/zhouzirui/z-tavern/client/internal/service/chat"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fallback := logging.New(config.LogConfig{Level: "info", Pretty: true}, os.Stderr)
		fallback.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := logging.New(cfg.Log, os.Stderr)
	if envErr != nil {
		logger.Warn().Err(envErr).Msg("failed to load .env file, continuing with system environment variables only")
	}

	users := account.NewMemoryStore(account.Seed())
	accounts := accountService.NewService(users, cfg.Auth.TokenTTL)
	chatService := chat.NewService()

	var responder ai.Responder = ai.EchoResponder{}
	if cfg.AI.Enabled() {
		workspace := ai.NewWorkspace(project.NewMemoryStore(project.Seed()), users)
		tools, err := workspace.Tools()
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to build assistant tools")
		}
		aiService, err := ai.NewService(ctx, cfg.AI, logger, ai.WithTools(tools...))
		if err != nil {
			logger.Warn().Err(err).Msg("failed to initialize AI service, falling back to echo replies - 请检查 Ark 模型相关环境变量")
		} else {
			responder = aiService
			logger.Info().Str("model", cfg.AI.Model).Msg("AI service initialized")
		}
	} else {
		logger.Info().Msg("Ark 凭证未配置，使用回声回复")
	}

	router := handler.NewRouter(accounts, chatService, responder, logger)

	startServer(ctx, cfg.Server, router, logger)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, logger zerolog.Logger) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info().Str("addr", addr).Msg("Z Tavern backend listening")
	if err := runServer(ctx, srv); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
