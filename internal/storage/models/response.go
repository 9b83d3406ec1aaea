package models

import "fmt"

// Error codes carried by failed responses.
const (
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	ErrCodeAuthRequired       = "AUTH_REQUIRED"
	ErrCodeAPIError           = "API_ERROR"
	ErrCodeUnknown            = "UNKNOWN_ERROR"
	ErrCodeCalendar           = "CALENDAR_ERROR"
	ErrCodeEventNotFound      = "EVENT_NOT_FOUND"
)

// EventResponse is the outcome of a use case, handed to a presenter.
type EventResponse struct {
	Success         bool       `json:"success"`
	Message         string     `json:"message"`
	ActionPerformed ActionType `json:"actionPerformed,omitempty"`
	CreatedEvent    *Event     `json:"createdEvent,omitempty"`
	Events          []Event    `json:"events,omitempty"`
	ErrorCode       string     `json:"errorCode,omitempty"`
}

// CreateSuccess builds the response for a newly created event.
func CreateSuccess(e Event) EventResponse {
	return EventResponse{
		Success:         true,
		Message:         fmt.Sprintf("Event '%s' created for %s at %s", e.Title, e.Date, e.TimeLabel()),
		ActionPerformed: ActionCreate,
		CreatedEvent:    &e,
	}
}

// ViewSuccess builds the response for a listing of events. dateInfo names
// the date or range that was queried.
func ViewSuccess(events []Event, dateInfo string) EventResponse {
	msg := fmt.Sprintf("Found %d event(s) for %s", len(events), dateInfo)
	if len(events) == 0 {
		msg = fmt.Sprintf("No events found for %s", dateInfo)
	}
	if events == nil {
		events = []Event{}
	}
	return EventResponse{
		Success:         true,
		Message:         msg,
		ActionPerformed: ActionView,
		Events:          events,
	}
}

// DeleteSuccess builds the response for a removed event.
func DeleteSuccess(title string) EventResponse {
	return EventResponse{
		Success:         true,
		Message:         fmt.Sprintf("Event '%s' deleted successfully", title),
		ActionPerformed: ActionDelete,
	}
}

// UpdateSuccess builds the response for a modified event.
func UpdateSuccess(e Event) EventResponse {
	return EventResponse{
		Success:         true,
		Message:         fmt.Sprintf("Event '%s' updated successfully", e.Title),
		ActionPerformed: ActionUpdate,
		CreatedEvent:    &e,
	}
}

// ErrorResponse builds a failed response. An empty code becomes UNKNOWN_ERROR.
func ErrorResponse(message, code string) EventResponse {
	if code == "" {
		code = ErrCodeUnknown
	}
	return EventResponse{
		Success:   false,
		Message:   message,
		ErrorCode: code,
	}
}
