// Package usecase holds the calendar interactors. Each interactor validates a
// request, talks to a calendar.Gateway and hands exactly one response to its
// Presenter.
package usecase

import (
	"context"
	"log/slog"

	"github.com/calendar-assistant/backend/internal/storage/models"
)

// Presenter receives the outcome of an interactor.
type Presenter interface {
	PresentSuccess(resp models.EventResponse)
	PresentFailure(resp models.EventResponse)
}

// Interactor executes one kind of calendar request.
type Interactor interface {
	Execute(ctx context.Context, req models.EventRequest)
}

// Messages shared by the interactors.
const (
	msgInvalidRequest     = "Invalid event request: "
	msgServiceUnavailable = "Calendar service is not available. Please check your connection."
)

// present delivers resp to exactly one of the presenter's methods.
func present(p Presenter, resp models.EventResponse) {
	if resp.Success {
		p.PresentSuccess(resp)
		return
	}
	p.PresentFailure(resp)
}

func invalidRequest(req models.EventRequest) models.EventResponse {
	reason := req.ErrorMessage
	if reason == "" {
		reason = "missing required fields for " + string(req.ActionType)
	}
	return models.ErrorResponse(msgInvalidRequest+reason, models.ErrCodeInvalidRequest)
}

func serviceUnavailable() models.EventResponse {
	return models.ErrorResponse(msgServiceUnavailable, models.ErrCodeServiceUnavailable)
}

func discardLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return logger
}
