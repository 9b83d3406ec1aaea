package handlers

import (
	"bytes"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/calendar-assistant/backend/internal/api/middleware"
	"github.com/calendar-assistant/backend/internal/calendar"
	"github.com/calendar-assistant/backend/internal/users"
	ws "github.com/calendar-assistant/backend/internal/websocket"
)

// AuthCheck reports whether the user has a working calendar connection.
// Unknown users get 200 with needsAuth set.
func AuthCheck(registry *users.Manager, sessions *Sessions, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := mux.Vars(r)["userId"]
		user, ok := registry.GetUserByID(userID)
		if !ok {
			middleware.WriteJSON(w, http.StatusOK, map[string]any{
				"needsAuth": true,
				"error":     "User not found",
			})
			return
		}

		gateway, err := sessions.Gateway(r.Context(), user)
		if err != nil {
			logger.Error("Failed to check authentication status", "user_id", userID, "error", err)
			middleware.WriteJSON(w, http.StatusInternalServerError, map[string]any{
				"needsAuth": true,
				"error":     "Failed to check authentication status",
			})
			return
		}

		needsAuth := gateway == nil || !gateway.Available()
		middleware.WriteJSON(w, http.StatusOK, map[string]any{
			"needsAuth":     needsAuth,
			"userEmail":     user.Email,
			"authenticated": !needsAuth,
		})
	}
}

// AuthURL starts an authorization flow and returns the provider consent URL.
func AuthURL(registry *users.Manager, sessions *Sessions, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := mux.Vars(r)["userId"]
		user, ok := registry.GetUserByID(userID)
		if !ok {
			middleware.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "User not found"})
			return
		}

		gateway, err := sessions.Begin(r.Context(), user)
		if err != nil {
			logger.Error("Failed to initialize OAuth", "user_id", userID, "error", err)
			middleware.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to initialize OAuth"})
			return
		}
		authURL, err := gateway.AuthorizationURL()
		if err != nil || authURL == "" {
			sessions.Forget(userID)
			logger.Error("Failed to generate OAuth URL", "user_id", userID, "error", err)
			middleware.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to generate OAuth URL"})
			return
		}

		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"authUrl": authURL,
			"message": "Please authenticate with Google",
		})
	}
}

var callbackPage = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
<h2>{{.Title}}</h2>
<p>{{.Message}}</p>
<script>
  if (window.opener) {
    window.opener.postMessage({type: "OAUTH_COMPLETE", success: {{.Success}}, userId: {{.UserID}}, message: {{.Message}}}, "*");
    setTimeout(function () { window.close(); }, 1500);
  }
</script>
</body>
</html>
`))

type callbackView struct {
	Title   string
	Message string
	Success bool
	UserID  string
}

// AuthCallback completes an authorization flow and renders a page that tells
// the opening window how it went.
func AuthCallback(registry *users.Manager, sessions *Sessions, events *ws.EventBroadcaster, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		state := q.Get("state")
		userID, _, err := calendar.ParseState(state)
		if err != nil {
			renderCallback(w, http.StatusBadRequest, callbackView{Title: "Authentication failed", Message: "Invalid authorization state."}, logger)
			return
		}

		fail := func(status int, message string) {
			events.AuthCompleted(userID, false, message)
			renderCallback(w, status, callbackView{Title: "Authentication failed", Message: message, UserID: userID}, logger)
		}

		if reason := q.Get("error"); reason != "" {
			logger.Info("Authorization declined", "user_id", userID, "reason", reason)
			fail(http.StatusBadRequest, "Authorization was declined: "+reason)
			return
		}

		if _, ok := registry.GetUserByID(userID); !ok {
			fail(http.StatusNotFound, "User not found")
			return
		}
		gateway, ok := sessions.Cached(userID)
		if !ok {
			fail(http.StatusBadRequest, "Authorization request expired. Please try again.")
			return
		}

		if err := gateway.CompleteAuthorization(r.Context(), q.Get("code"), state); err != nil {
			logger.Warn("Authorization failed", "user_id", userID, "error", err)
			fail(http.StatusBadRequest, calendar.ErrorMessage(err))
			return
		}

		if _, err := registry.SetAuthenticated(r.Context(), userID, true); err != nil {
			logger.Warn("Could not mark user authenticated", "user_id", userID, "error", err)
		}
		events.AuthCompleted(userID, true, "")
		logger.Info("Authorization completed", "user_id", userID)
		renderCallback(w, http.StatusOK, callbackView{
			Title:   "Authentication successful",
			Message: "You can close this window and return to the app.",
			Success: true,
			UserID:  userID,
		}, logger)
	}
}

func renderCallback(w http.ResponseWriter, status int, view callbackView, logger *slog.Logger) {
	var buf bytes.Buffer
	if err := callbackPage.Execute(&buf, view); err != nil {
		logger.Error("Failed to render callback page", "user_id", view.UserID, "error", err)
		http.Error(w, view.Title, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		logger.Warn("Failed to write callback page", "user_id", view.UserID, "error", err)
	}
}

// ClearCache drops the user's cached gateway so the next call reconnects.
func ClearCache(sessions *Sessions, events *ws.EventBroadcaster, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := mux.Vars(r)["userId"]
		removed := sessions.Forget(userID)
		logger.Info("Cleared calendar cache", "user_id", userID, "cached", removed)
		events.CacheCleared(userID)

		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"message": "Cache cleared successfully",
			"userId":  userID,
		})
	}
}
