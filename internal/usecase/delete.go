package usecase

import (
	"context"
	"log/slog"

	"github.com/calendar-assistant/backend/internal/calendar"
	"github.com/calendar-assistant/backend/internal/storage/models"
)

// DeleteEventInteractor removes an event by id or by title and date.
type DeleteEventInteractor struct {
	gateway   calendar.Gateway
	presenter Presenter
	logger    *slog.Logger
}

// NewDeleteEventInteractor creates the interactor.
func NewDeleteEventInteractor(gateway calendar.Gateway, presenter Presenter, logger *slog.Logger) *DeleteEventInteractor {
	return &DeleteEventInteractor{gateway: gateway, presenter: presenter, logger: discardLogger(logger)}
}

func (i *DeleteEventInteractor) Execute(ctx context.Context, req models.EventRequest) {
	present(i.presenter, i.delete(ctx, req))
}

func (i *DeleteEventInteractor) delete(ctx context.Context, req models.EventRequest) models.EventResponse {
	if req.ActionType != models.ActionDelete || !req.IsValid() {
		return invalidRequest(req)
	}
	if !i.gateway.Available() {
		return serviceUnavailable()
	}

	target, failure := resolveEvent(ctx, i.gateway, req)
	if failure != nil {
		return *failure
	}

	if err := i.gateway.DeleteEvent(ctx, target.ID); err != nil {
		i.logger.Error("Failed to delete event", "event_id", target.ID, "error", err)
		return models.ErrorResponse("Failed to delete event: "+calendar.ErrorMessage(err), calendar.ErrorCode(err))
	}

	i.logger.Info("Event deleted", "event_id", target.ID)
	return models.DeleteSuccess(target.Title)
}
