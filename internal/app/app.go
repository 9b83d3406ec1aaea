// Package app assembles the services shared by the server and the console
// client from a Config.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/calendar-assistant/backend/internal/calendar"
	"github.com/calendar-assistant/backend/internal/config"
	"github.com/calendar-assistant/backend/internal/parser"
	"github.com/calendar-assistant/backend/internal/storage"
	"github.com/calendar-assistant/backend/internal/users"
)

// Services are the long-lived components built from a Config.
type Services struct {
	Users     *users.Manager
	Connector calendar.Connector
	Parser    *parser.Parser

	db *storage.DB
}

// New opens the user store, loads the registry and picks the calendar
// connector and AI backend. Missing credentials degrade to the in-memory
// calendar or an unavailable parser rather than failing.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Services, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory %q: %w", cfg.DataDir, err)
	}

	s := &Services{}

	var snapshot storage.UserSnapshot
	switch cfg.UserStore {
	case config.StoreSQLite:
		db, err := storage.NewDB(ctx, cfg.UserSnapshotPath())
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		if err := storage.RunMigrations(ctx, db, logger); err != nil {
			db.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
		s.db = db
		snapshot = storage.NewUserRepository(db)
	default:
		snapshot = storage.NewFileSnapshot(cfg.UserSnapshotPath())
	}
	logger.Info("User store ready", "backend", cfg.UserStore, "path", cfg.UserSnapshotPath())

	s.Users = users.NewManager(ctx, snapshot, cfg.TokensDir, logger)

	if len(cfg.GoogleCredentials) > 0 {
		connector, err := calendar.NewGoogleConnector(cfg.GoogleCredentials, cfg.RedirectURL, cfg.Location, logger)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("configuring Google Calendar: %w", err)
		}
		s.Connector = connector
	} else {
		logger.Warn("No Google credentials found, using an in-memory calendar")
		s.Connector = calendar.NewMemoryConnector(true)
	}

	var completer parser.Completer
	if cfg.AIAPIKey != "" {
		completer = parser.NewOpenAICompleter(cfg.AIAPIKey, cfg.AIBaseURL, cfg.AIModel)
	} else {
		logger.Warn("No AI API key configured, natural language parsing is disabled")
	}
	s.Parser = parser.New(completer, logger)

	return s, nil
}

// Close releases the database, if one was opened.
func (s *Services) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
