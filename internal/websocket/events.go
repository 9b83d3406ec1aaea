package websocket

import (
	"log/slog"

	"github.com/calendar-assistant/backend/internal/storage/models"
)

// EventBroadcaster turns calendar and account changes into WebSocket
// messages. A nil broadcaster drops everything.
type EventBroadcaster struct {
	hub    *Hub
	logger *slog.Logger
}

// NewEventBroadcaster creates a new event broadcaster.
func NewEventBroadcaster(hub *Hub, logger *slog.Logger) *EventBroadcaster {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &EventBroadcaster{hub: hub, logger: logger}
}

// EventCreated announces a new calendar event.
func (b *EventBroadcaster) EventCreated(userID string, e models.Event) {
	b.publish(userID, NewMessage(TypeEventCreated, EventPayload{UserID: userID, Event: e}))
}

// EventUpdated announces a changed calendar event.
func (b *EventBroadcaster) EventUpdated(userID string, e models.Event) {
	b.publish(userID, NewMessage(TypeEventUpdated, EventPayload{UserID: userID, Event: e}))
}

// EventDeleted announces a removed calendar event. eventID is empty when the
// event was found by title.
func (b *EventBroadcaster) EventDeleted(userID, eventID string) {
	b.publish(userID, NewMessage(TypeEventDeleted, EventDeletedPayload{UserID: userID, EventID: eventID}))
}

// AuthCompleted reports the outcome of an OAuth callback.
func (b *EventBroadcaster) AuthCompleted(userID string, success bool, message string) {
	b.publish(userID, NewMessage(TypeAuthCompleted, AuthPayload{UserID: userID, Success: success, Message: message}))
}

// LoginExpired tells the user's clients that they must authenticate again.
func (b *EventBroadcaster) LoginExpired(u models.User) {
	b.publish(u.UserID, NewMessage(TypeAuthExpired, UserPayload{UserID: u.UserID, Email: u.Email}))
}

// CacheCleared reports that a user's gateway was dropped.
func (b *EventBroadcaster) CacheCleared(userID string) {
	b.publish(userID, NewMessage(TypeCacheCleared, UserPayload{UserID: userID}))
}

// UserRegistered announces a new account to every client.
func (b *EventBroadcaster) UserRegistered(u models.User) {
	b.publish("", NewMessage(TypeUserRegistered, UserPayload{UserID: u.UserID, Email: u.Email}))
}

// UserDeleted announces a removed account to every client.
func (b *EventBroadcaster) UserDeleted(userID string) {
	b.publish("", NewMessage(TypeUserDeleted, UserPayload{UserID: userID}))
}

// Notification sends a notification to all connected clients.
func (b *EventBroadcaster) Notification(level, title, message string) {
	b.publish("", NewMessage(TypeNotification, NotificationPayload{
		Level:       level,
		Title:       title,
		Message:     message,
		Dismissible: true,
	}))
}

func (b *EventBroadcaster) publish(userID string, msg Message) {
	if b == nil || b.hub == nil {
		return
	}
	data, err := msg.JSON()
	if err != nil {
		b.logger.Error("Error encoding WebSocket message", "type", msg.Type, "error", err)
		return
	}
	b.hub.Publish(userID, data)
}
