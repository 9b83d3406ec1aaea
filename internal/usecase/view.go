package usecase

import (
	"context"
	"log/slog"

	"github.com/calendar-assistant/backend/internal/calendar"
	"github.com/calendar-assistant/backend/internal/storage/models"
)

// ViewEventsInteractor lists the events on a single day or across a range
// of days.
type ViewEventsInteractor struct {
	gateway   calendar.Gateway
	presenter Presenter
	logger    *slog.Logger
}

// NewViewEventsInteractor creates the interactor.
func NewViewEventsInteractor(gateway calendar.Gateway, presenter Presenter, logger *slog.Logger) *ViewEventsInteractor {
	return &ViewEventsInteractor{gateway: gateway, presenter: presenter, logger: discardLogger(logger)}
}

// Execute lists the events on req.Date.
func (i *ViewEventsInteractor) Execute(ctx context.Context, req models.EventRequest) {
	if req.ActionType != models.ActionView || !req.IsValid() {
		present(i.presenter, invalidRequest(req))
		return
	}
	present(i.presenter, i.view(ctx, *req.Date, *req.Date))
}

// ExecuteRange lists the events starting between start and end inclusive.
func (i *ViewEventsInteractor) ExecuteRange(ctx context.Context, start, end models.Date) {
	if end.Before(start) {
		present(i.presenter, models.ErrorResponse("End date must not be before start date", models.ErrCodeInvalidRequest))
		return
	}
	present(i.presenter, i.view(ctx, start, end))
}

func (i *ViewEventsInteractor) view(ctx context.Context, start, end models.Date) models.EventResponse {
	if !i.gateway.Available() {
		return serviceUnavailable()
	}

	label := start.String()
	if start != end {
		label += " to " + end.String()
	}
	events, err := i.gateway.EventsInRange(ctx, start, end)
	if err != nil {
		i.logger.Error("Failed to list events", "start", start, "end", end, "error", err)
		return models.ErrorResponse("Failed to retrieve events: "+calendar.ErrorMessage(err), calendar.ErrorCode(err))
	}
	return models.ViewSuccess(events, label)
}
