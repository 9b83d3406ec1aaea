package handlers

import (
	"net/http"
	"time"

	"github.com/calendar-assistant/backend/internal/api/middleware"
	"github.com/calendar-assistant/backend/internal/parser"
	"github.com/calendar-assistant/backend/internal/users"
	"github.com/calendar-assistant/backend/internal/websocket"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status            string `json:"status"`
	AIParserAvailable bool   `json:"aiParserAvailable"`
	ActiveUsers       int    `json:"activeUsers"`
	RegisteredUsers   int    `json:"registeredUsers"`
	Timestamp         int64  `json:"timestamp"`
}

// HealthCheck reports whether the parser is configured and how many users
// are registered and connected.
func HealthCheck(p *parser.Parser, registry *users.Manager, sessions *Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, HealthResponse{
			Status:            "OK",
			AIParserAvailable: p.Available(),
			ActiveUsers:       sessions.Len(),
			RegisteredUsers:   registry.Count(),
			Timestamp:         time.Now().UnixMilli(),
		})
	}
}

// StatusResponse represents the system status response.
type StatusResponse struct {
	Version            string `json:"version"`
	AIParserAvailable  bool   `json:"aiParserAvailable"`
	RegisteredUsers    int    `json:"registeredUsers"`
	AuthenticatedUsers int    `json:"authenticatedUsers"`
	ConnectedCalendars int    `json:"connectedCalendars"`
	WebSocketClients   int    `json:"websocketClients"`
	NextLoginSweepAt   string `json:"nextLoginSweepAt,omitempty"`
}

// Status returns a handler that provides system status information. hub and
// scheduler may be nil.
func Status(version string, p *parser.Parser, registry *users.Manager, sessions *Sessions, hub *websocket.Hub, scheduler *users.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all := registry.GetAllUsers()
		authenticated := 0
		for _, u := range all {
			if u.Authenticated {
				authenticated++
			}
		}

		response := StatusResponse{
			Version:            version,
			AIParserAvailable:  p.Available(),
			RegisteredUsers:    len(all),
			AuthenticatedUsers: authenticated,
			ConnectedCalendars: sessions.Len(),
		}
		if hub != nil {
			response.WebSocketClients = hub.ClientCount()
		}
		if scheduler != nil {
			if next := scheduler.NextRun(); next != nil {
				response.NextLoginSweepAt = next.UTC().Format(time.RFC3339)
			}
		}

		middleware.WriteJSON(w, http.StatusOK, response)
	}
}
