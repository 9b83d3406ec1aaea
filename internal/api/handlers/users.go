package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/calendar-assistant/backend/internal/api/middleware"
	"github.com/calendar-assistant/backend/internal/users"
	ws "github.com/calendar-assistant/backend/internal/websocket"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

type loginRequest struct {
	Email string `json:"email"`
}

// RegisterUser creates a user, or returns the existing one with that email.
func RegisterUser(registry *users.Manager, events *ws.EventBroadcaster, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if err := decodeJSON(w, r, &req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}
		if strings.TrimSpace(req.Email) == "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "email is required")
			return
		}

		user, created, err := registry.RegisterUser(r.Context(), req.Username, req.Email)
		if err != nil {
			logger.Error("Failed to register user", "error", err)
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to register user")
			return
		}
		if created {
			events.UserRegistered(user)
		}

		middleware.WriteJSON(w, http.StatusOK, userDTOFrom(user))
	}
}

// ListUsers returns every registered user.
func ListUsers(registry *users.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all := registry.GetAllUsers()
		out := make([]UserDTO, 0, len(all))
		for _, u := range all {
			out = append(out, userDTOFrom(u))
		}
		middleware.WriteJSON(w, http.StatusOK, out)
	}
}

// LoginUser marks the user with the given email as logged in.
func LoginUser(registry *users.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := decodeJSON(w, r, &req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}

		user, err := registry.LoginUser(r.Context(), req.Email)
		if errors.Is(err, users.ErrUserNotFound) {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "User not found with email: "+req.Email)
			return
		}
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to log in")
			return
		}
		middleware.WriteJSON(w, http.StatusOK, userDTOFrom(user))
	}
}

// GetUser returns a single user.
func GetUser(registry *users.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := registry.GetUserByID(mux.Vars(r)["userId"])
		if !ok {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "User not found")
			return
		}
		middleware.WriteJSON(w, http.StatusOK, userDTOFrom(user))
	}
}

// LogoutUser clears the user's logged-in flag and drops their gateway.
func LogoutUser(registry *users.Manager, sessions *Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := mux.Vars(r)["userId"]
		user, err := registry.LogoutUser(r.Context(), userID)
		if errors.Is(err, users.ErrUserNotFound) {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "User not found")
			return
		}
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to log out")
			return
		}
		sessions.Forget(userID)
		middleware.WriteJSON(w, http.StatusOK, userDTOFrom(user))
	}
}

// DeleteUser removes the user, their stored credentials and their gateway.
func DeleteUser(registry *users.Manager, sessions *Sessions, events *ws.EventBroadcaster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := mux.Vars(r)["userId"]
		if err := registry.DeleteUser(r.Context(), userID); err != nil {
			if errors.Is(err, users.ErrUserNotFound) {
				middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "User not found")
				return
			}
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to delete user")
			return
		}
		sessions.Forget(userID)
		events.UserDeleted(userID)

		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"message": "User deleted",
			"userId":  userID,
		})
	}
}
