package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/calendar-assistant/backend/internal/storage/models"
)

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case data, ok := <-c.Send():
		if !ok {
			t.Fatalf("client %q channel closed", c.UserID())
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("decoding message: %v", err)
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatalf("client %q received nothing", c.UserID())
	}
	return Message{}
}

func TestHubRoutesByUser(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(nil)
	go hub.Run(ctx)

	ada := NewClient(hub, "user_ada")
	grace := NewClient(hub, "user_grace")
	watcher := NewClient(hub, "")
	for _, c := range []*Client{ada, grace, watcher} {
		hub.Register(c)
	}

	b := NewEventBroadcaster(hub, nil)
	b.EventCreated("user_ada", models.Event{ID: "evt_1", Title: "Lunch"})
	b.Notification("info", "Maintenance", "Back soon")

	if got := receive(t, ada).Type; got != TypeEventCreated {
		t.Errorf("ada first message = %q, want %q", got, TypeEventCreated)
	}
	if got := receive(t, watcher).Type; got != TypeNotification {
		t.Errorf("anonymous client first message = %q, want %q (no per-user events)", got, TypeNotification)
	}
	if got := receive(t, grace).Type; got != TypeNotification {
		t.Errorf("grace first message = %q, want %q (no event for another user)", got, TypeNotification)
	}
}

func TestHubClosesClientsOnShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(nil)
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	c := NewClient(hub, "user_ada")
	hub.Register(c)
	hub.Broadcast([]byte(`{"type":"notification"}`))
	receive(t, c)
	if hub.ClientCount() != 1 {
		t.Fatalf("ClientCount() = %d, want 1", hub.ClientCount())
	}

	cancel()
	<-done
	if _, ok := <-c.Send(); ok {
		t.Error("client channel still open after shutdown")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() after shutdown = %d, want 0", hub.ClientCount())
	}
}

func TestNilBroadcasterIsSafe(t *testing.T) {
	var b *EventBroadcaster
	b.EventDeleted("user_ada", "evt_1")
	b.UserRegistered(models.User{UserID: "user_ada"})
}
