// Package websocket pushes calendar notifications to connected browsers.
package websocket

import (
	"context"
	"log/slog"
	"sync"
)

// outbound is a message queued for delivery. A set client receives it alone.
// A set userID reaches only that user's clients; an empty one reaches all.
type outbound struct {
	client *Client
	userID string
	data   []byte
}

// Hub maintains the set of active WebSocket clients and fans messages out to
// them.
type Hub struct {
	clients map[*Client]struct{}

	broadcast  chan outbound
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mu     sync.RWMutex
	logger *slog.Logger
}

// NewHub creates a new WebSocket hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan outbound, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run delivers messages until ctx is done, then closes every client.
// This should be called in a goroutine.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("WebSocket client connected", "user_id", client.userID, "total", total)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("WebSocket client disconnected", "user_id", client.userID, "total", total)

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

func (h *Hub) deliver(msg outbound) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		if msg.client != nil && msg.client != client {
			continue
		}
		if msg.userID != "" && client.userID != msg.userID {
			continue
		}
		select {
		case client.send <- msg.data:
		default:
			// Slow client: drop it rather than stall everyone else.
			close(client.send)
			delete(h.clients, client)
		}
	}
}

// Broadcast sends a message to all connected clients.
func (h *Hub) Broadcast(message []byte) {
	h.Publish("", message)
}

// Publish sends a message to the clients watching userID.
func (h *Hub) Publish(userID string, message []byte) {
	select {
	case h.broadcast <- outbound{userID: userID, data: message}:
	default:
		h.logger.Warn("Broadcast channel full, dropping message")
	}
}

// SendTo queues a message for one client. It is dropped if the client has
// already left.
func (h *Hub) SendTo(client *Client, message []byte) {
	select {
	case h.broadcast <- outbound{client: client, data: message}:
	default:
		h.logger.Warn("Broadcast channel full, dropping message")
	}
}

// Register adds a client to the hub. It does nothing once the hub stopped.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Client is one WebSocket connection. A client with an empty userID receives
// only broadcasts.
type Client struct {
	hub    *Hub
	userID string
	send   chan []byte
}

// NewClient creates a new WebSocket client watching userID.
func NewClient(hub *Hub, userID string) *Client {
	return &Client{
		hub:    hub,
		userID: userID,
		send:   make(chan []byte, 256),
	}
}

// Send returns the send channel for the client.
func (c *Client) Send() chan []byte {
	return c.send
}

// UserID returns the user the client watches.
func (c *Client) UserID() string {
	return c.userID
}
