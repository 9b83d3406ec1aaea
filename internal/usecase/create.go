package usecase

import (
	"context"
	"log/slog"

	"github.com/calendar-assistant/backend/internal/calendar"
	"github.com/calendar-assistant/backend/internal/storage/models"
)

// CreateEventInteractor adds a new event to the calendar.
type CreateEventInteractor struct {
	gateway   calendar.Gateway
	presenter Presenter
	logger    *slog.Logger
}

// NewCreateEventInteractor creates the interactor.
func NewCreateEventInteractor(gateway calendar.Gateway, presenter Presenter, logger *slog.Logger) *CreateEventInteractor {
	return &CreateEventInteractor{gateway: gateway, presenter: presenter, logger: discardLogger(logger)}
}

// Execute validates req, creates the event and presents the result.
func (i *CreateEventInteractor) Execute(ctx context.Context, req models.EventRequest) {
	present(i.presenter, i.create(ctx, req))
}

func (i *CreateEventInteractor) create(ctx context.Context, req models.EventRequest) models.EventResponse {
	if req.ActionType != models.ActionCreate || !req.IsValid() {
		return invalidRequest(req)
	}
	if !i.gateway.Available() {
		return serviceUnavailable()
	}

	created, err := i.gateway.CreateEvent(ctx, req.ToEvent())
	if err != nil {
		i.logger.Error("Failed to create event", "title", req.Title, "error", err)
		return models.ErrorResponse("Failed to create event: "+calendar.ErrorMessage(err), calendar.ErrorCode(err))
	}

	i.logger.Info("Event created", "event_id", created.ID, "date", created.Date)
	return models.CreateSuccess(created)
}
