// Package api provides HTTP routing and handlers for the REST API.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/calendar-assistant/backend/internal/api/handlers"
	"github.com/calendar-assistant/backend/internal/api/middleware"
	"github.com/calendar-assistant/backend/internal/parser"
	"github.com/calendar-assistant/backend/internal/users"
	"github.com/calendar-assistant/backend/internal/websocket"
)

// Dependencies are the services the handlers share.
type Dependencies struct {
	Parser   *parser.Parser
	Users    *users.Manager
	Sessions *handlers.Sessions
	Hub      *websocket.Hub
	Events   *websocket.EventBroadcaster
	Location *time.Location
	Version  string

	// Scheduler, when set, is reported on the status endpoint.
	Scheduler *users.Scheduler

	AllowedOrigins []string
	// StaticDir, when set, is served at the root for a bundled frontend.
	StaticDir string
	Logger    *slog.Logger
}

// NewRouter creates and configures the HTTP router with all API routes.
func NewRouter(d Dependencies) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	loc := d.Location
	if loc == nil {
		loc = time.Local
	}

	r := mux.NewRouter()

	r.Use(middleware.Logging(logger))
	r.Use(middleware.ErrorRecovery(logger))

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/status", handlers.Status(d.Version, d.Parser, d.Users, d.Sessions, d.Hub, d.Scheduler)).Methods("GET")

	// Event endpoints
	events := api.PathPrefix("/events").Subrouter()
	events.HandleFunc("/health", handlers.HealthCheck(d.Parser, d.Users, d.Sessions)).Methods("GET")
	events.HandleFunc("/parse", handlers.ParseEvent(d.Parser, logger)).Methods("POST")
	events.HandleFunc("/create", handlers.CreateEvent(d.Users, d.Sessions, d.Events, logger)).Methods("POST")
	events.HandleFunc("/process", handlers.ProcessEvent(d.Parser, d.Users, d.Sessions, d.Events, logger)).Methods("POST")
	events.HandleFunc("/calendar.ics", handlers.ExportCalendar(d.Users, d.Sessions, loc, logger)).Methods("GET")
	events.HandleFunc("/conflicts", handlers.CheckConflicts(d.Users, d.Sessions, logger)).Methods("GET")
	events.HandleFunc("/import", handlers.ImportCalendar(d.Users, d.Sessions, d.Events, loc, logger)).Methods("POST")
	events.HandleFunc("", handlers.ListEvents(d.Users, d.Sessions, loc, logger)).Methods("GET")
	events.HandleFunc("/{eventId}", handlers.UpdateEvent(d.Users, d.Sessions, d.Events, logger)).Methods("PUT")
	events.HandleFunc("/{eventId}", handlers.DeleteEvent(d.Users, d.Sessions, d.Events, logger)).Methods("DELETE")

	// OAuth endpoints
	events.HandleFunc("/auth/check/{userId}", handlers.AuthCheck(d.Users, d.Sessions, logger)).Methods("GET")
	events.HandleFunc("/auth/url/{userId}", handlers.AuthURL(d.Users, d.Sessions, logger)).Methods("GET")
	events.HandleFunc("/auth/callback", handlers.AuthCallback(d.Users, d.Sessions, d.Events, logger)).Methods("GET")
	events.HandleFunc("/cache/{userId}", handlers.ClearCache(d.Sessions, d.Events, logger)).Methods("DELETE")

	// User endpoints
	api.HandleFunc("/users/register", handlers.RegisterUser(d.Users, d.Events, logger)).Methods("POST")
	api.HandleFunc("/users/login", handlers.LoginUser(d.Users)).Methods("POST")
	api.HandleFunc("/users", handlers.ListUsers(d.Users)).Methods("GET")
	api.HandleFunc("/users/{userId}", handlers.GetUser(d.Users)).Methods("GET")
	api.HandleFunc("/users/{userId}", handlers.DeleteUser(d.Users, d.Sessions, d.Events)).Methods("DELETE")
	api.HandleFunc("/users/{userId}/logout", handlers.LogoutUser(d.Users, d.Sessions)).Methods("POST")

	// WebSocket endpoint
	if d.Hub != nil {
		api.HandleFunc("/ws", handlers.WebSocketUpgrade(d.Hub, d.AllowedOrigins, logger)).Methods("GET")
	}

	if d.StaticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(d.StaticDir)))
	}

	return middleware.CORS(d.AllowedOrigins)(r)
}
