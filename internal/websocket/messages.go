package websocket

import (
	"encoding/json"
	"time"

	"github.com/calendar-assistant/backend/internal/storage/models"
)

// MessageType identifies the type of WebSocket message.
type MessageType string

const (
	// Server -> Client event types
	TypeEventCreated   MessageType = "event.created"
	TypeEventUpdated   MessageType = "event.updated"
	TypeEventDeleted   MessageType = "event.deleted"
	TypeAuthCompleted  MessageType = "auth.completed"
	TypeAuthExpired    MessageType = "auth.expired"
	TypeCacheCleared   MessageType = "cache.cleared"
	TypeUserRegistered MessageType = "user.registered"
	TypeUserDeleted    MessageType = "user.deleted"
	TypeNotification   MessageType = "notification"

	// Client -> Server command types
	TypePing MessageType = "ping"

	// Server -> Client response types
	TypePong  MessageType = "pong"
	TypeError MessageType = "error"
)

// Message represents a WebSocket message envelope.
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   any         `json:"payload"`
}

// NewMessage creates a new message with the current timestamp.
func NewMessage(msgType MessageType, payload any) Message {
	return Message{
		Type:      msgType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// JSON serializes the message to JSON bytes.
func (m Message) JSON() ([]byte, error) {
	return json.Marshal(m)
}

// EventPayload is the payload for event.created and event.updated.
type EventPayload struct {
	UserID string       `json:"user_id"`
	Event  models.Event `json:"event"`
}

// EventDeletedPayload is the payload for event.deleted.
type EventDeletedPayload struct {
	UserID  string `json:"user_id"`
	EventID string `json:"event_id,omitempty"`
}

// AuthPayload is the payload for auth.completed.
type AuthPayload struct {
	UserID  string `json:"user_id"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// UserPayload is the payload for auth.expired, cache.cleared and the user.*
// events.
type UserPayload struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
}

// NotificationPayload is the payload for notification events.
type NotificationPayload struct {
	Level       string `json:"level"` // info, warning, error, success
	Title       string `json:"title"`
	Message     string `json:"message"`
	Dismissible bool   `json:"dismissible"`
}

// ErrorPayload is the payload for error messages.
type ErrorPayload struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	OriginalType string `json:"original_type,omitempty"`
}
