package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/zhouzirui/z-tavern/client/internal/config"
	"github.com/zhouzirui/z-tavern/client/internal/exchange"
	"github.com/zhouzirui/z-tavern/client/internal/logging"
	"github.com/zhouzirui/z-tavern/client/internal/observability"
	"github.com/zhouzirui/z-tavern/client/internal/remote"
	"github.com/zhouzirui/z-tavern/client/internal/session"
	"github.com/zhouzirui/z-tavern/client/internal/storage"
	"github.com/zhouzirui/z-tavern/client/internal/tui"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "z-tavern:", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// The terminal belongs to the UI, so logs go to a file.
	logFile, err := os.OpenFile(cfg.Client.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	logCfg := cfg.Log
	logCfg.Pretty = false
	logger := logging.New(logCfg, logFile)
	if envErr != nil {
		logger.Debug().Err(envErr).Msg("no .env file, using system environment only")
	}

	store, closeStore, err := openStore(ctx, cfg.Client)
	if err != nil {
		return err
	}
	defer closeStore()

	client := remote.NewClient(cfg.Client.BaseURL,
		remote.WithTimeout(cfg.Client.RequestTimeout),
		remote.WithLogger(logger))

	var exchanger exchange.Exchanger = client
	if cfg.Client.ChatTransport == config.TransportWebSocket {
		ws := remote.NewWebSocketChat(cfg.Client.BaseURL, cfg.Client.RequestTimeout, logger)
		defer ws.Close()
		exchanger = ws
	}

	events := observability.NewLogObserver(logger)
	relay := tui.NewRelay()

	manager := session.NewManager(store, client, relay,
		session.WithLogger(logger),
		session.WithObserver(events),
		session.WithObserver(relay))

	pipeline := exchange.New(exchanger, manager,
		exchange.WithLogger(logger),
		exchange.WithObserver(events),
		exchange.WithObserver(relay))
	unsubscribe := manager.Subscribe(pipeline)
	defer unsubscribe()

	program := tea.NewProgram(tui.New(ctx, manager, pipeline), tea.WithAltScreen(), tea.WithContext(ctx))
	relay.Attach(program)

	logger.Info().
		Str("api", cfg.Client.BaseURL).
		Str("store", cfg.Client.Store).
		Str("transport", cfg.Client.ChatTransport).
		Msg("client starting")

	if _, err := program.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("run ui: %w", err)
	}
	return nil
}

func openStore(ctx context.Context, cfg config.ClientConfig) (storage.Store, func(), error) {
	switch cfg.Store {
	case config.StoreMemory:
		return storage.NewMemoryStore(), func() {}, nil
	case config.StoreSQLite:
		db, err := storage.OpenSQLite(ctx, cfg.StorePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open credential store: %w", err)
		}
		return db, func() { _ = db.Close() }, nil
	default:
		return storage.NewFileStore(cfg.StorePath), func() {}, nil
	}
}

