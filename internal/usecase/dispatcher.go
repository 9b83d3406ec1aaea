package usecase

import (
	"context"
	"log/slog"

	"github.com/calendar-assistant/backend/internal/calendar"
	"github.com/calendar-assistant/backend/internal/storage/models"
)

// Dispatcher routes a parsed request to the interactor for its action.
type Dispatcher struct {
	gateway calendar.Gateway
	logger  *slog.Logger
}

// NewDispatcher creates a dispatcher over gateway.
func NewDispatcher(gateway calendar.Gateway, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{gateway: gateway, logger: discardLogger(logger)}
}

// Interactor returns the interactor for action bound to presenter, or nil when
// the action is not supported.
func (d *Dispatcher) Interactor(action models.ActionType, presenter Presenter) Interactor {
	switch action {
	case models.ActionCreate:
		return NewCreateEventInteractor(d.gateway, presenter, d.logger)
	case models.ActionView:
		return NewViewEventsInteractor(d.gateway, presenter, d.logger)
	case models.ActionDelete:
		return NewDeleteEventInteractor(d.gateway, presenter, d.logger)
	case models.ActionUpdate:
		return NewUpdateEventInteractor(d.gateway, presenter, d.logger)
	default:
		return nil
	}
}

// Dispatch executes req with the matching interactor. Unsupported actions are
// presented as invalid requests.
func (d *Dispatcher) Dispatch(ctx context.Context, req models.EventRequest, presenter Presenter) {
	interactor := d.Interactor(req.ActionType, presenter)
	if interactor == nil {
		d.logger.Warn("Unsupported action", "action", req.ActionType)
		resp := invalidRequest(req)
		if req.Successful {
			resp = models.ErrorResponse(msgInvalidRequest+"unsupported action "+string(req.ActionType), models.ErrCodeInvalidRequest)
		}
		present(presenter, resp)
		return
	}
	interactor.Execute(ctx, req)
}
