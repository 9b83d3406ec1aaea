// Package calendar provides calendar provider access for one user at a time,
// the per-user gateway cache and iCalendar export.
package calendar

import (
	"context"
	"errors"
	"fmt"

	"github.com/calendar-assistant/backend/internal/storage/models"
)

// Gateway reads and writes events in one user's calendar.
type Gateway interface {
	CreateEvent(ctx context.Context, event models.Event) (models.Event, error)
	Event(ctx context.Context, eventID string) (models.Event, error)
	EventsForDate(ctx context.Context, date models.Date) ([]models.Event, error)
	// EventsInRange returns events starting on or after start and before the
	// day after end, ordered by start time.
	EventsInRange(ctx context.Context, start, end models.Date) ([]models.Event, error)
	DeleteEvent(ctx context.Context, eventID string) error
	UpdateEvent(ctx context.Context, event models.Event) (models.Event, error)

	// Available reports whether a usable credential is bound. It never
	// contacts the provider.
	Available() bool
}

// UserGateway is a Gateway bound to a single user that can run the
// out-of-band authorization flow.
type UserGateway interface {
	Gateway

	User() models.User
	AuthorizationURL() (string, error)
	CompleteAuthorization(ctx context.Context, code, state string) error
}

// Connector builds a UserGateway for a user.
type Connector interface {
	Connect(ctx context.Context, user models.User) (UserGateway, error)
}

// Error is a provider failure with a machine-readable code.
type Error struct {
	Code    string
	Message string
	Err     error
}

// NewError creates a calendar error.
func NewError(code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil && e.Err.Error() != e.Message {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorCode returns the code of a calendar error in err's chain. Typed errors
// without a code report CALENDAR_ERROR, anything else API_ERROR.
func ErrorCode(err error) string {
	var calErr *Error
	if errors.As(err, &calErr) {
		if calErr.Code == "" {
			return models.ErrCodeCalendar
		}
		return calErr.Code
	}
	return models.ErrCodeAPIError
}

// ErrorMessage returns the human message of a calendar error in err's chain,
// or err's text for other errors.
func ErrorMessage(err error) string {
	var calErr *Error
	if errors.As(err, &calErr) {
		return calErr.Message
	}
	return err.Error()
}

// ErrUnavailable is returned by gateways without a usable credential.
var ErrUnavailable = NewError(models.ErrCodeServiceUnavailable, "Calendar service not available", nil)

// ErrEventNotFound is wrapped by errors for event ids that do not exist.
var ErrEventNotFound = errors.New("event not found")
