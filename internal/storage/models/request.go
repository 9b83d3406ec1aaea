package models

import (
	"fmt"
	"strings"
	"time"
)

// ActionType is the intent extracted from a natural-language request.
type ActionType string

// ActionType constants
const (
	ActionCreate  ActionType = "CREATE"
	ActionView    ActionType = "VIEW"
	ActionDelete  ActionType = "DELETE"
	ActionUpdate  ActionType = "UPDATE"
	ActionUnknown ActionType = "UNKNOWN"
)

// DefaultEventDuration is applied when a request has a start time but no end time.
const DefaultEventDuration = time.Hour

// EventRequest is the structured form of a user's calendar intent.
type EventRequest struct {
	ActionType   ActionType `json:"actionType"`
	Title        string     `json:"title,omitempty"`
	Description  string     `json:"description,omitempty"`
	Date         *Date      `json:"date,omitempty"`
	StartTime    *TimeOfDay `json:"startTime,omitempty"`
	EndTime      *TimeOfDay `json:"endTime,omitempty"`
	Location     string     `json:"location,omitempty"`
	EventID      string     `json:"eventId,omitempty"`
	RawQuery     string     `json:"rawQuery,omitempty"`
	Successful   bool       `json:"successful"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
}

// FailedRequest returns an unsuccessful request carrying the reason and the raw input.
func FailedRequest(message, raw string) EventRequest {
	return EventRequest{
		ActionType:   ActionUnknown,
		RawQuery:     raw,
		Successful:   false,
		ErrorMessage: message,
	}
}

// IsValid reports whether the request carries enough information for its action.
func (r EventRequest) IsValid() bool {
	if !r.Successful {
		return false
	}

	switch r.ActionType {
	case ActionCreate:
		return r.Title != "" && r.Date != nil
	case ActionView:
		return r.Date != nil
	case ActionDelete, ActionUpdate:
		return r.EventID != "" || (r.Title != "" && r.Date != nil)
	default:
		return false
	}
}

// ToEvent converts the request into an Event. A missing end time defaults to
// one hour after the start.
func (r EventRequest) ToEvent() Event {
	e := Event{
		ID:          r.EventID,
		Title:       r.Title,
		Description: r.Description,
		Location:    r.Location,
	}
	if r.Date != nil {
		e.Date = *r.Date
	}
	if r.StartTime != nil {
		start := *r.StartTime
		e.StartTime = &start
		end := start.Add(DefaultEventDuration)
		if r.EndTime != nil {
			end = *r.EndTime
		}
		e.EndTime = &end
	} else if r.EndTime != nil {
		end := *r.EndTime
		e.EndTime = &end
	}
	return e
}

// Summary describes the request for logs and console output.
func (r EventRequest) Summary() string {
	if !r.Successful {
		return "Failed: " + r.ErrorMessage
	}

	var b strings.Builder
	b.WriteString(string(r.ActionType))
	if r.Title != "" {
		fmt.Fprintf(&b, " %q", r.Title)
	}
	if r.Date != nil {
		fmt.Fprintf(&b, " on %s", r.Date)
	}
	if r.StartTime != nil {
		fmt.Fprintf(&b, " at %s", r.StartTime)
	}
	if r.EndTime != nil {
		fmt.Fprintf(&b, " until %s", r.EndTime)
	}
	if r.Location != "" {
		fmt.Fprintf(&b, " (%s)", r.Location)
	}
	return b.String()
}
