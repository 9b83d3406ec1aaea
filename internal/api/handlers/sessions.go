package handlers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/calendar-assistant/backend/internal/calendar"
	"github.com/calendar-assistant/backend/internal/storage/models"
)

// Sessions hands out calendar gateways per user and keeps the connected ones
// in a bounded cache.
type Sessions struct {
	connector calendar.Connector
	cache     *calendar.GatewayCache
	logger    *slog.Logger
}

// NewSessions creates a session registry over connector.
func NewSessions(connector calendar.Connector, cache *calendar.GatewayCache, logger *slog.Logger) *Sessions {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Sessions{connector: connector, cache: cache, logger: logger}
}

// Cached returns the cached gateway for userID, if any.
func (s *Sessions) Cached(userID string) (calendar.UserGateway, bool) {
	return s.cache.Get(userID)
}

// Gateway returns the cached gateway when it still holds a credential.
// Otherwise it connects again, which picks up stored tokens, and caches the
// new gateway once it is available. The result may still be unavailable.
func (s *Sessions) Gateway(ctx context.Context, user models.User) (calendar.UserGateway, error) {
	if g, ok := s.cache.Get(user.UserID); ok && g.Available() {
		return g, nil
	}

	g, err := s.connector.Connect(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("connecting calendar for %s: %w", user.UserID, err)
	}
	if g.Available() {
		s.cache.Add(user.UserID, g)
		s.logger.Info("Calendar connected", "user_id", user.UserID)
	}
	return g, nil
}

// Begin connects a fresh gateway for an authorization flow and caches it, so
// the callback can complete the flow on the same instance.
func (s *Sessions) Begin(ctx context.Context, user models.User) (calendar.UserGateway, error) {
	g, err := s.connector.Connect(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("connecting calendar for %s: %w", user.UserID, err)
	}
	s.cache.Add(user.UserID, g)
	return g, nil
}

// Forget drops the user's cached gateway and reports whether one was cached.
func (s *Sessions) Forget(userID string) bool {
	return s.cache.Remove(userID)
}

// Len returns the number of cached gateways.
func (s *Sessions) Len() int {
	return s.cache.Len()
}
