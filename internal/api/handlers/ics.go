package handlers

import (
	"bytes"
	"log/slog"
	"net/http"
	"time"

	"github.com/calendar-assistant/backend/internal/api/middleware"
	"github.com/calendar-assistant/backend/internal/calendar"
	"github.com/calendar-assistant/backend/internal/presenter"
	"github.com/calendar-assistant/backend/internal/storage/models"
	"github.com/calendar-assistant/backend/internal/usecase"
	"github.com/calendar-assistant/backend/internal/users"
	ws "github.com/calendar-assistant/backend/internal/websocket"
)

// exportDays is the default span of the calendar feed.
const exportDays = 30

// ExportCalendar writes the caller's events from ?start= through ?end= as an
// iCalendar feed.
func ExportCalendar(registry *users.Manager, sessions *Sessions, loc *time.Location, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start, end, ok := dateRange(w, r, "start", "end", loc, exportDays)
		if !ok {
			return
		}

		user, gateway, ok := connectCaller(w, r, registry, sessions, logger)
		if !ok {
			return
		}

		found, err := gateway.EventsInRange(r.Context(), start, end)
		if err != nil {
			resp := models.ErrorResponse("Failed to retrieve events: "+calendar.ErrorMessage(err), calendar.ErrorCode(err))
			middleware.WriteJSON(w, statusFor(resp.ErrorCode), resp)
			return
		}

		var buf bytes.Buffer
		if err := calendar.WriteICS(&buf, found, loc, time.Now()); err != nil {
			logger.Error("Failed to encode calendar", "user_id", user.UserID, "error", err)
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to encode calendar")
			return
		}

		w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="calendar.ics"`)
		w.Write(buf.Bytes())
	}
}

// ImportResult summarizes an iCalendar import.
type ImportResult struct {
	Imported int             `json:"imported"`
	Events   []models.Event  `json:"events"`
	Failures []ImportFailure `json:"failures,omitempty"`
}

// ImportFailure names an event that could not be created.
type ImportFailure struct {
	Title     string `json:"title"`
	Message   string `json:"message"`
	ErrorCode string `json:"errorCode"`
}

// ImportCalendar creates every VEVENT of an uploaded iCalendar file in the
// caller's calendar. Each event goes through the create use case on its own.
func ImportCalendar(registry *users.Manager, sessions *Sessions, events *ws.EventBroadcaster, loc *time.Location, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, gateway, ok := connectCaller(w, r, registry, sessions, logger)
		if !ok {
			return
		}

		parsed, err := calendar.ReadICS(http.MaxBytesReader(w, r.Body, maxBodyBytes), loc)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "Invalid iCalendar data")
			return
		}

		result := ImportResult{Events: []models.Event{}}
		for _, e := range parsed {
			date := e.Date
			req := models.EventRequest{
				ActionType:  models.ActionCreate,
				Title:       e.Title,
				Description: e.Description,
				Date:        &date,
				StartTime:   e.StartTime,
				EndTime:     e.EndTime,
				Location:    e.Location,
				Successful:  true,
			}

			capture := presenter.NewCapture()
			usecase.NewCreateEventInteractor(gateway, capture, logger).Execute(r.Context(), req)
			resp, _ := capture.Response()
			if !resp.Success {
				result.Failures = append(result.Failures, ImportFailure{Title: e.Title, Message: resp.Message, ErrorCode: resp.ErrorCode})
				continue
			}
			result.Imported++
			result.Events = append(result.Events, *resp.CreatedEvent)
			announce(events, user.UserID, resp, "")
		}

		logger.Info("Calendar imported", "user_id", user.UserID, "imported", result.Imported, "failed", len(result.Failures))
		middleware.WriteJSON(w, http.StatusOK, result)
	}
}
