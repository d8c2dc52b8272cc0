package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/swipesafe/backend/internal/config"
	"github.com/zhouzirui/swipesafe/backend/internal/handler"
	"github.com/zhouzirui/swipesafe/backend/internal/logger"
	"github.com/zhouzirui/swipesafe/backend/internal/service/call"
	"github.com/zhouzirui/swipesafe/backend/internal/service/progress"
	"github.com/zhouzirui/swipesafe/backend/internal/service/scenario"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Server.LogLevel)
	if envErr != nil {
		slog.Warn("failed to load .env file, continuing with system environment variables only", "err", envErr)
	}

	client, scammerSvc, err := scenario.Setup(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialize persona service", "err", err)
		os.Exit(1)
	}

	store, err := progress.Open(cfg.Progress.DSN)
	if err != nil {
		slog.Error("failed to open progress store", "dsn", cfg.Progress.DSN, "err", err)
		os.Exit(1)
	}
	defer store.Close()

	manager := call.NewManager(client, store, cfg.Call)
	if err := manager.StartReaper(); err != nil {
		slog.Error("failed to start session reaper", "err", err)
		os.Exit(1)
	}

	deps := handler.Dependencies{Calls: manager, Progress: store}
	if scammerSvc != nil {
		deps.Scammer = scammerSvc
	}
	router := handler.NewRouter(deps)

	if err := startServer(ctx, cfg.Server, router); err != nil {
		slog.Error("server error", "err", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := manager.Shutdown(shutdownCtx); err != nil {
		slog.Warn("call sessions did not finish before shutdown deadline", "err", err)
	}
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) error {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	slog.Info("SwipeSafe backend listening", "addr", addr)
	return runServer(ctx, srv)
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
