// Command nse-server runs the NSE store explorer server.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lukasberz/nse/internal/config"
	"github.com/lukasberz/nse/internal/index"
	"github.com/lukasberz/nse/internal/nix"
	"github.com/lukasberz/nse/internal/server"
	"github.com/lukasberz/nse/internal/service"
)

func main() {
	dataDir := flag.String("data-dir", envOrDefault("NSE_DATA_DIR", "/var/lib/nse"), "Data directory")
	listen := flag.String("listen", os.Getenv("NSE_LISTEN"), "Listen address (overrides config)")
	adminToken := flag.String("admin-token", os.Getenv("NSE_ADMIN_TOKEN"), "Admin API token")
	logLevel := flag.String("log-level", envOrDefault("NSE_LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", envOrDefault("NSE_LOG_FORMAT", "json"), "Log format (json, text)")
	flag.Parse()

	// Setup logger
	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}
	if *logFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	cfg, err := config.LoadOrInit(*dataDir)
	if err != nil {
		logger.Error("failed to load configuration", "error", err, "path", *dataDir)
		os.Exit(1)
	}
	if *listen != "" {
		cfg.Listen = *listen
	}

	idx, err := index.New(cfg.DatabasePath())
	if err != nil {
		logger.Error("failed to open index", "error", err)
		os.Exit(1)
	}
	defer idx.Close()

	if err := idx.Initialize(); err != nil {
		logger.Error("failed to initialize index", "error", err)
		os.Exit(1)
	}

	tokens, err := index.OpenTokenStore(cfg.TokensPath())
	if err != nil {
		logger.Error("failed to open token store", "error", err)
		os.Exit(1)
	}
	defer tokens.Close()

	client := nix.NewClient(nix.NewExecRunner(cfg.NixBinary), cfg.Registry, cfg.StrictDeleteStderr)
	svc := service.New(cfg.StoresBase(), idx.Stores(), idx.Packages(), client, logger)

	serverCfg := server.DefaultServerConfig()
	serverCfg.AdminToken = *adminToken

	h := server.Handler(svc, tokens, &adminStore{idx: idx, tokens: tokens}, serverCfg, logger)

	srv := &http.Server{
		Addr:         cfg.Listen,
		Handler:      h,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute, // package builds block the request
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(_ net.Listener) context.Context { return context.Background() },
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("starting nse-server", "listen", cfg.Listen, "data_dir", *dataDir)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	logger.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	logger.Info("server stopped")
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// adminStore bridges the admin endpoints to the index and token store.
type adminStore struct {
	idx    *index.Index
	tokens *index.TokenStore
}

func (a *adminStore) CreateUser(ctx context.Context, username string) (int64, error) {
	return a.idx.CreateUser(ctx, username)
}

func (a *adminStore) CreateToken(userID int64, desc string) (string, *index.TokenInfo, error) {
	return a.tokens.Create(userID, desc)
}
