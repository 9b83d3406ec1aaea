package calendar

import (
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize bounds the number of connected users kept in memory.
const DefaultCacheSize = 256

// GatewayCache holds connected gateways keyed by user id. It is safe for
// concurrent use; the least recently used entry is dropped when full.
type GatewayCache struct {
	entries *lru.Cache[string, UserGateway]
}

// NewGatewayCache creates a cache holding at most size gateways.
func NewGatewayCache(size int, logger *slog.Logger) (*GatewayCache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	entries, err := lru.NewWithEvict(size, func(userID string, _ UserGateway) {
		logger.Debug("Calendar gateway evicted", "user", userID)
	})
	if err != nil {
		return nil, fmt.Errorf("creating gateway cache: %w", err)
	}
	return &GatewayCache{entries: entries}, nil
}

// Get returns the cached gateway for userID.
func (c *GatewayCache) Get(userID string) (UserGateway, bool) {
	return c.entries.Get(userID)
}

// Add caches g for userID, replacing any previous gateway.
func (c *GatewayCache) Add(userID string, g UserGateway) {
	c.entries.Add(userID, g)
}

// Remove drops the gateway for userID and reports whether one was cached.
func (c *GatewayCache) Remove(userID string) bool {
	return c.entries.Remove(userID)
}

// Len returns the number of cached gateways.
func (c *GatewayCache) Len() int {
	return c.entries.Len()
}
