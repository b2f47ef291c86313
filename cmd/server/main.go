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

	"github.com/lmittmann/tint"

	"github.com/mkarpov/inboxdeck/internal/api"
	"github.com/mkarpov/inboxdeck/internal/config"
	"github.com/mkarpov/inboxdeck/internal/database"
	"github.com/mkarpov/inboxdeck/internal/imap"
	"github.com/mkarpov/inboxdeck/internal/mailbox"
	"github.com/mkarpov/inboxdeck/internal/oauth"
	"github.com/mkarpov/inboxdeck/internal/secrets"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup logger
	logger := setupLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting inboxdeck server")

	// Connect to database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Run migrations
	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("database migrations completed")

	// Create components
	cipher, err := secrets.New(cfg.EncryptionKey)
	if err != nil {
		logger.Error("failed to create token cipher", "error", err)
		os.Exit(1)
	}

	oauthClient := oauth.NewClient(oauth.ClientConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
	})
	refresher := oauth.NewRefresher(oauthClient, db, cipher, logger)
	reader := imap.NewReader(imap.ReaderConfig{
		Server:      cfg.IMAPServer,
		DialTimeout: cfg.IMAPDialTimeout,
		AuthTimeout: cfg.IMAPAuthTimeout,
	}, logger)
	svc := mailbox.NewService(db, refresher, reader, cfg.FetchLimit, logger)

	server := api.NewServer(cfg, svc, oauthClient, db, cipher, logger)
	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.Handler(),
	}

	// Setup graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh

		logger.Info("received shutdown signal", "signal", sig)
		shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shut down cleanly", "error", err)
		}
	}()

	logger.Info("server is running", "addr", cfg.ListenAddr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func setupLogger(level, format string) *slog.Logger {
	var handler slog.Handler
	logLevel := parseLevel(level)

	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: logLevel,
		})
	} else {
		// Pretty colored output for console
		handler = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      logLevel,
			TimeFormat: time.DateTime,
			NoColor:    false,
		})
	}

	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
