package usecase

import (
	"context"
	"log/slog"

	"github.com/calendar-assistant/backend/internal/calendar"
	"github.com/calendar-assistant/backend/internal/storage/models"
)

// UpdateEventInteractor changes an existing event. Fields left empty in the
// request keep their stored values.
type UpdateEventInteractor struct {
	gateway   calendar.Gateway
	presenter Presenter
	logger    *slog.Logger
}

// NewUpdateEventInteractor creates the interactor.
func NewUpdateEventInteractor(gateway calendar.Gateway, presenter Presenter, logger *slog.Logger) *UpdateEventInteractor {
	return &UpdateEventInteractor{gateway: gateway, presenter: presenter, logger: discardLogger(logger)}
}

func (i *UpdateEventInteractor) Execute(ctx context.Context, req models.EventRequest) {
	present(i.presenter, i.update(ctx, req))
}

func (i *UpdateEventInteractor) update(ctx context.Context, req models.EventRequest) models.EventResponse {
	if req.ActionType != models.ActionUpdate || !req.IsValid() {
		return invalidRequest(req)
	}
	if !i.gateway.Available() {
		return serviceUnavailable()
	}

	target, failure := resolveEvent(ctx, i.gateway, req)
	if failure != nil {
		return *failure
	}

	updated, err := i.gateway.UpdateEvent(ctx, merge(target, req))
	if err != nil {
		i.logger.Error("Failed to update event", "event_id", target.ID, "error", err)
		return models.ErrorResponse("Failed to update event: "+calendar.ErrorMessage(err), calendar.ErrorCode(err))
	}

	i.logger.Info("Event updated", "event_id", updated.ID)
	return models.UpdateSuccess(updated)
}

// merge applies the request to the stored event. An event found by id takes
// every non-empty field. An event found by title keeps the title, date and
// start time that identified it. A new start time without an end keeps the
// stored duration.
func merge(stored models.Event, req models.EventRequest) models.Event {
	out := stored
	if req.Description != "" {
		out.Description = req.Description
	}
	if req.Location != "" {
		out.Location = req.Location
	}

	byID := req.EventID != ""
	if byID && req.Title != "" {
		out.Title = req.Title
	}
	if byID && req.Date != nil {
		out.Date = *req.Date
	}

	switch {
	case byID && req.StartTime != nil:
		duration := models.DefaultEventDuration
		if d := stored.Duration(); d > 0 {
			duration = d
		}
		start := *req.StartTime
		end := start.Add(duration)
		if req.EndTime != nil {
			end = *req.EndTime
		}
		out.StartTime = &start
		out.EndTime = &end
	case req.EndTime != nil && out.StartTime != nil:
		end := *req.EndTime
		out.EndTime = &end
	}
	return out
}
