package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/calendar-assistant/backend/internal/calendar"
	"github.com/calendar-assistant/backend/internal/storage/models"
)

// resolveEvent finds the single event a delete or update request refers to.
// An explicit id wins. Otherwise the title is matched case-insensitively
// against the events on the request date, narrowed by start time when given.
func resolveEvent(ctx context.Context, gateway calendar.Gateway, req models.EventRequest) (models.Event, *models.EventResponse) {
	if req.EventID != "" {
		e, err := gateway.Event(ctx, req.EventID)
		if err != nil {
			resp := lookupFailure(err)
			return models.Event{}, &resp
		}
		return e, nil
	}

	events, err := gateway.EventsForDate(ctx, *req.Date)
	if err != nil {
		resp := lookupFailure(err)
		return models.Event{}, &resp
	}

	var matches []models.Event
	for _, e := range events {
		if !strings.EqualFold(strings.TrimSpace(e.Title), strings.TrimSpace(req.Title)) {
			continue
		}
		if req.StartTime != nil && (e.StartTime == nil || *e.StartTime != *req.StartTime) {
			continue
		}
		matches = append(matches, e)
	}

	switch len(matches) {
	case 0:
		resp := models.ErrorResponse(fmt.Sprintf("No event named '%s' found on %s", req.Title, req.Date), models.ErrCodeEventNotFound)
		return models.Event{}, &resp
	case 1:
		return matches[0], nil
	default:
		resp := models.ErrorResponse(fmt.Sprintf("Found %d events named '%s' on %s. Please specify a start time.", len(matches), req.Title, req.Date), models.ErrCodeInvalidRequest)
		return models.Event{}, &resp
	}
}

func lookupFailure(err error) models.EventResponse {
	return models.ErrorResponse("Failed to find event: "+calendar.ErrorMessage(err), calendar.ErrorCode(err))
}
