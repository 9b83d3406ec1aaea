// Package main is the entry point for the calendar assistant server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/calendar-assistant/backend/internal/api"
	"github.com/calendar-assistant/backend/internal/api/handlers"
	"github.com/calendar-assistant/backend/internal/app"
	"github.com/calendar-assistant/backend/internal/calendar"
	"github.com/calendar-assistant/backend/internal/config"
	"github.com/calendar-assistant/backend/internal/users"
	"github.com/calendar-assistant/backend/internal/websocket"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
var version = "dev"

func main() {
	addr := flag.String("addr", ":8080", "HTTP server address")
	dataDir := flag.String("data", "", "Data directory, overrides DATA_DIR")
	staticDir := flag.String("static", "", "Directory for static frontend files")
	healthCheck := flag.Bool("health-check", false, "Run health check and exit")
	flag.Parse()

	// Health check mode for Docker HEALTHCHECK
	if *healthCheck {
		if err := runHealthCheck(*addr); err != nil {
			fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	if *dataDir != "" {
		os.Setenv("DATA_DIR", *dataDir)
	}
	if envVer := os.Getenv("VERSION"); envVer != "" {
		version = envVer
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger := config.NewLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	if err := run(cfg, *addr, *staticDir, logger); err != nil {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, addr, staticDir string, logger *slog.Logger) error {
	logger.Info("Starting calendar assistant", "version", version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	services, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer services.Close()

	cache, err := calendar.NewGatewayCache(cfg.CacheSize, logger)
	if err != nil {
		return err
	}

	hub := websocket.NewHub(logger)
	go hub.Run(ctx)
	events := websocket.NewEventBroadcaster(hub, logger)
	sessions := handlers.NewSessions(services.Connector, cache, logger)

	scheduler := users.NewScheduler(services.Users, sessions, events, logger)
	if err := scheduler.Start(ctx, cfg.ExpirySchedule); err != nil {
		return err
	}
	defer scheduler.Stop()

	router := api.NewRouter(api.Dependencies{
		Parser:         services.Parser,
		Users:          services.Users,
		Sessions:       sessions,
		Hub:            hub,
		Events:         events,
		Scheduler:      scheduler,
		Version:        version,
		Location:       cfg.Location,
		AllowedOrigins: cfg.AllowedOrigins,
		StaticDir:      staticDir,
		Logger:         logger,
	})

	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server listening", "addr", addr,
			"users", services.Users.Count(),
			"ai_parser", services.Parser.Available())
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serving: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	logger.Info("Server stopped")
	return nil
}

// runHealthCheck performs a health check against the running server.
func runHealthCheck(addr string) error {
	resp, err := http.Get("http://localhost" + addr + "/api/events/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
