package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/calendar-assistant/backend/internal/api/middleware"
	"github.com/calendar-assistant/backend/internal/calendar"
	"github.com/calendar-assistant/backend/internal/parser"
	"github.com/calendar-assistant/backend/internal/presenter"
	"github.com/calendar-assistant/backend/internal/storage/models"
	"github.com/calendar-assistant/backend/internal/usecase"
	"github.com/calendar-assistant/backend/internal/users"
	ws "github.com/calendar-assistant/backend/internal/websocket"
)

// UserIDHeader names the caller on calendar endpoints.
const UserIDHeader = "User-Id"

const (
	msgUserNotFound  = "User not found. Please login again."
	msgAuthRequired  = "Google Calendar authentication required. Please authenticate first."
	msgUnexpected    = "An unexpected error occurred. Please try again."
	msgEmptyInput    = "Please provide an event description"
	msgInvalidFormat = "Invalid date or time format. Use YYYY-MM-DD and HH:MM."
)

// ParseEvent returns the structured form of a natural-language request
// without touching the calendar.
func ParseEvent(p *parser.Parser, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body NaturalLanguageRequest
		if err := decodeJSON(w, r, &body); err != nil || strings.TrimSpace(body.Text) == "" {
			middleware.WriteJSON(w, http.StatusBadRequest, parsedEventError(msgEmptyInput))
			return
		}

		req := p.ParseNaturalLanguage(r.Context(), body.Text)
		if !req.Successful {
			logger.Info("Parse failed", "error", req.ErrorMessage)
			middleware.WriteJSON(w, http.StatusBadRequest, parsedEventFromRequest(req))
			return
		}

		middleware.WriteJSON(w, http.StatusOK, parsedEventFromRequest(req))
	}
}

// connectCaller resolves the User-Id header to a user with an available
// gateway. On failure it writes the response and returns false.
func connectCaller(w http.ResponseWriter, r *http.Request, registry *users.Manager, sessions *Sessions, logger *slog.Logger) (models.User, calendar.UserGateway, bool) {
	userID := r.Header.Get(UserIDHeader)
	user, ok := registry.GetUserByID(userID)
	if !ok {
		middleware.WriteJSON(w, http.StatusUnauthorized, eventResponseError(msgUserNotFound))
		return models.User{}, nil, false
	}

	gateway, err := sessions.Gateway(r.Context(), user)
	if err != nil {
		logger.Error("Failed to connect calendar", "user_id", userID, "error", err)
		middleware.WriteJSON(w, http.StatusInternalServerError, eventResponseError(msgUnexpected))
		return models.User{}, nil, false
	}
	if !gateway.Available() {
		middleware.WriteJSON(w, http.StatusUnauthorized, eventResponseError(msgAuthRequired))
		return models.User{}, nil, false
	}
	return user, gateway, true
}

// CreateEvent adds an event from a structured form to the caller's calendar.
func CreateEvent(registry *users.Manager, sessions *Sessions, events *ws.EventBroadcaster, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body CreateEventDTO
		if err := decodeJSON(w, r, &body); err != nil {
			middleware.WriteJSON(w, http.StatusBadRequest, eventResponseError("Invalid request body"))
			return
		}

		user, gateway, ok := connectCaller(w, r, registry, sessions, logger)
		if !ok {
			return
		}

		if strings.TrimSpace(body.Title) == "" {
			middleware.WriteJSON(w, http.StatusBadRequest, eventResponseError("Event title is required"))
			return
		}
		if body.Date == "" || body.StartTime == "" {
			middleware.WriteJSON(w, http.StatusBadRequest, eventResponseError("Event date and start time are required"))
			return
		}
		req, err := body.toEventRequest(models.ActionCreate)
		if err != nil {
			middleware.WriteJSON(w, http.StatusBadRequest, eventResponseError(msgInvalidFormat))
			return
		}

		capture := presenter.NewCapture()
		usecase.NewCreateEventInteractor(gateway, capture, logger).Execute(r.Context(), req)

		resp, ok := capture.Response()
		if !ok {
			logger.Error("Create produced no response", "user_id", user.UserID)
			middleware.WriteJSON(w, http.StatusInternalServerError, eventResponseError(msgUnexpected))
			return
		}
		if !resp.Success {
			logger.Warn("Failed to create event", "user_id", user.UserID, "code", resp.ErrorCode, "message", resp.Message)
			middleware.WriteJSON(w, http.StatusBadRequest, eventResponseFrom(resp))
			return
		}

		announce(events, user.UserID, resp, "")
		middleware.WriteJSON(w, http.StatusOK, eventResponseFrom(resp))
	}
}

// ProcessEvent runs the whole pipeline: parse the text, then create, view,
// update or delete according to the parsed action.
func ProcessEvent(p *parser.Parser, registry *users.Manager, sessions *Sessions, events *ws.EventBroadcaster, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body NaturalLanguageRequest
		if err := decodeJSON(w, r, &body); err != nil || strings.TrimSpace(body.Text) == "" {
			middleware.WriteJSON(w, http.StatusBadRequest, eventResponseError(msgEmptyInput))
			return
		}

		user, gateway, ok := connectCaller(w, r, registry, sessions, logger)
		if !ok {
			return
		}

		req := p.ParseNaturalLanguage(r.Context(), body.Text)
		capture := presenter.NewCapture()
		usecase.NewDispatcher(gateway, logger).Dispatch(r.Context(), req, capture)
		respond(w, events, user.UserID, capture, req.EventID, logger)
	}
}

// ListEvents returns the caller's events on ?date=, or from ?date= through
// ?end= inclusive.
func ListEvents(registry *users.Manager, sessions *Sessions, loc *time.Location, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start, end, ok := dateRange(w, r, "date", "end", loc, 0)
		if !ok {
			return
		}

		user, gateway, ok := connectCaller(w, r, registry, sessions, logger)
		if !ok {
			return
		}

		capture := presenter.NewCapture()
		view := usecase.NewViewEventsInteractor(gateway, capture, logger)
		if start == end {
			req := models.EventRequest{ActionType: models.ActionView, Date: &start, Successful: true}
			view.Execute(r.Context(), req)
		} else {
			view.ExecuteRange(r.Context(), start, end)
		}
		respond(w, nil, user.UserID, capture, "", logger)
	}
}

// UpdateEvent changes the event named in the path. Empty body fields keep
// their stored values.
func UpdateEvent(registry *users.Manager, sessions *Sessions, events *ws.EventBroadcaster, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eventID := mux.Vars(r)["eventId"]

		var body CreateEventDTO
		if err := decodeJSON(w, r, &body); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}
		req, err := body.toEventRequest(models.ActionUpdate)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, msgInvalidFormat)
			return
		}
		req.EventID = eventID

		user, gateway, ok := connectCaller(w, r, registry, sessions, logger)
		if !ok {
			return
		}

		capture := presenter.NewCapture()
		usecase.NewUpdateEventInteractor(gateway, capture, logger).Execute(r.Context(), req)
		respond(w, events, user.UserID, capture, eventID, logger)
	}
}

// CheckConflicts lists the caller's events that overlap the slot given by
// ?date=, ?startTime= and ?endTime=. Without a start time the slot is the
// whole day.
func CheckConflicts(registry *users.Manager, sessions *Sessions, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		body := CreateEventDTO{Date: q.Get("date"), StartTime: q.Get("startTime"), EndTime: q.Get("endTime")}
		if body.Date == "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "date is required")
			return
		}
		req, err := body.toEventRequest(models.ActionCreate)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, msgInvalidFormat)
			return
		}

		user, gateway, ok := connectCaller(w, r, registry, sessions, logger)
		if !ok {
			return
		}

		conflicts, err := usecase.NewConflictChecker(gateway).Conflicts(r.Context(), req.ToEvent())
		if err != nil {
			logger.Warn("Conflict check failed", "user_id", user.UserID, "error", err)
			resp := models.ErrorResponse("Failed to retrieve events: "+calendar.ErrorMessage(err), calendar.ErrorCode(err))
			middleware.WriteJSON(w, statusFor(resp.ErrorCode), resp)
			return
		}
		middleware.WriteJSON(w, http.StatusOK, map[string]any{
			"hasConflict": len(conflicts) > 0,
			"conflicts":   conflicts,
		})
	}
}

// DeleteEvent removes the event named in the path.
func DeleteEvent(registry *users.Manager, sessions *Sessions, events *ws.EventBroadcaster, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eventID := mux.Vars(r)["eventId"]

		user, gateway, ok := connectCaller(w, r, registry, sessions, logger)
		if !ok {
			return
		}

		capture := presenter.NewCapture()
		req := models.EventRequest{ActionType: models.ActionDelete, EventID: eventID, Successful: true}
		usecase.NewDeleteEventInteractor(gateway, capture, logger).Execute(r.Context(), req)
		respond(w, events, user.UserID, capture, eventID, logger)
	}
}

// respond writes the captured EventResponse and announces successful changes.
func respond(w http.ResponseWriter, events *ws.EventBroadcaster, userID string, capture *presenter.Capture, eventID string, logger *slog.Logger) {
	resp, ok := capture.Response()
	if !ok {
		logger.Error("Interactor produced no response", "user_id", userID)
		middleware.WriteJSON(w, http.StatusInternalServerError, eventResponseError(msgUnexpected))
		return
	}
	if !resp.Success {
		middleware.WriteJSON(w, statusFor(resp.ErrorCode), resp)
		return
	}
	announce(events, userID, resp, eventID)
	middleware.WriteJSON(w, http.StatusOK, resp)
}

func statusFor(code string) int {
	switch code {
	case models.ErrCodeEventNotFound:
		return http.StatusNotFound
	case models.ErrCodeAuthRequired:
		return http.StatusUnauthorized
	default:
		return http.StatusBadRequest
	}
}

func announce(events *ws.EventBroadcaster, userID string, resp models.EventResponse, eventID string) {
	switch resp.ActionPerformed {
	case models.ActionCreate:
		if resp.CreatedEvent != nil {
			events.EventCreated(userID, *resp.CreatedEvent)
		}
	case models.ActionUpdate:
		if resp.CreatedEvent != nil {
			events.EventUpdated(userID, *resp.CreatedEvent)
		}
	case models.ActionDelete:
		events.EventDeleted(userID, eventID)
	}
}

// dateRange reads a start and end date from the query. A missing start is
// today in loc; a missing end is start plus defaultDays.
func dateRange(w http.ResponseWriter, r *http.Request, startKey, endKey string, loc *time.Location, defaultDays int) (models.Date, models.Date, bool) {
	q := r.URL.Query()
	start := models.DateOf(time.Now().In(loc))
	if s := q.Get(startKey); s != "" {
		d, err := models.ParseDate(s)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "Invalid "+startKey+": use YYYY-MM-DD")
			return models.Date{}, models.Date{}, false
		}
		start = d
	}

	end := start.AddDays(defaultDays)
	if s := q.Get(endKey); s != "" {
		d, err := models.ParseDate(s)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "Invalid "+endKey+": use YYYY-MM-DD")
			return models.Date{}, models.Date{}, false
		}
		end = d
	}
	if end.Before(start) {
		middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, endKey+" must not be before "+startKey)
		return models.Date{}, models.Date{}, false
	}
	return start, end, true
}
