package calendar

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"sync"

	"github.com/calendar-assistant/backend/internal/storage/models"
	"github.com/google/uuid"
)

// Operation names used with MemoryGateway.FailWith.
const (
	OpCreate = "create"
	OpGet    = "get"
	OpList   = "list"
	OpDelete = "delete"
	OpUpdate = "update"
)

// MemoryGateway is an in-process UserGateway. It backs the console client's
// offline mode and tests.
type MemoryGateway struct {
	mu        sync.Mutex
	user      models.User
	available bool
	events    map[string]models.Event
	nextID    int
	pending   map[string]struct{}
	failures  map[string]error
	calls     map[string]int
}

// NewMemoryGateway creates an empty gateway for user.
func NewMemoryGateway(user models.User, available bool) *MemoryGateway {
	return &MemoryGateway{
		user:      user,
		available: available,
		events:    make(map[string]models.Event),
		pending:   make(map[string]struct{}),
		failures:  make(map[string]error),
		calls:     make(map[string]int),
	}
}

// SetAvailable toggles whether the gateway has a usable credential.
func (m *MemoryGateway) SetAvailable(available bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.available = available
}

// FailWith makes every later call of op return err. A nil err clears it.
func (m *MemoryGateway) FailWith(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, op)
		return
	}
	m.failures[op] = err
}

// Calls returns how many times op reached the store.
func (m *MemoryGateway) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// Events returns every stored event in start order.
func (m *MemoryGateway) Events() []models.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedLocked(func(models.Event) bool { return true })
}

func (m *MemoryGateway) User() models.User {
	return m.user
}

func (m *MemoryGateway) Available() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.available
}

// begin records a call to op and returns the error it should fail with.
func (m *MemoryGateway) begin(op string) error {
	if !m.available {
		return ErrUnavailable
	}
	m.calls[op]++
	return m.failures[op]
}

func (m *MemoryGateway) CreateEvent(_ context.Context, event models.Event) (models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(OpCreate); err != nil {
		return models.Event{}, err
	}

	m.nextID++
	event.ID = fmt.Sprintf("evt_%d", m.nextID)
	m.events[event.ID] = event
	return event, nil
}

func (m *MemoryGateway) Event(_ context.Context, eventID string) (models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(OpGet); err != nil {
		return models.Event{}, err
	}

	e, ok := m.events[eventID]
	if !ok {
		return models.Event{}, NewError(models.ErrCodeEventNotFound, "Event not found", ErrEventNotFound)
	}
	return e, nil
}

func (m *MemoryGateway) EventsForDate(ctx context.Context, date models.Date) ([]models.Event, error) {
	return m.EventsInRange(ctx, date, date)
}

func (m *MemoryGateway) EventsInRange(_ context.Context, start, end models.Date) ([]models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(OpList); err != nil {
		return nil, err
	}

	return m.sortedLocked(func(e models.Event) bool {
		return !e.Date.Before(start) && !end.Before(e.Date)
	}), nil
}

func (m *MemoryGateway) DeleteEvent(_ context.Context, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(OpDelete); err != nil {
		return err
	}

	if _, ok := m.events[eventID]; !ok {
		return NewError(models.ErrCodeEventNotFound, "Event not found", ErrEventNotFound)
	}
	delete(m.events, eventID)
	return nil
}

// UpdateEvent overwrites title, description and location, and the times when
// event carries a start time.
func (m *MemoryGateway) UpdateEvent(_ context.Context, event models.Event) (models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(OpUpdate); err != nil {
		return models.Event{}, err
	}

	stored, ok := m.events[event.ID]
	if !ok {
		return models.Event{}, NewError(models.ErrCodeEventNotFound, "Event not found", ErrEventNotFound)
	}
	stored.Title = event.Title
	stored.Description = event.Description
	stored.Location = event.Location
	if event.StartTime != nil && !event.Date.IsZero() {
		stored.Date = event.Date
		stored.StartTime = event.StartTime
		stored.EndTime = event.EndTime
	}
	m.events[event.ID] = stored
	return stored, nil
}

func (m *MemoryGateway) AuthorizationURL() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	nonce := uuid.NewString()
	m.pending[nonce] = struct{}{}
	return "memory://authorize?state=" + url.QueryEscape(NewState(m.user.UserID, nonce)), nil
}

// CompleteAuthorization accepts any non-empty code for a pending state.
func (m *MemoryGateway) CompleteAuthorization(_ context.Context, code, state string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	userID, nonce, err := ParseState(state)
	if err != nil || userID != m.user.UserID {
		return NewError(models.ErrCodeAuthRequired, "Invalid authorization state", err)
	}
	if _, ok := m.pending[nonce]; !ok {
		return NewError(models.ErrCodeAuthRequired, "Authorization request expired. Please try again.", nil)
	}
	delete(m.pending, nonce)
	if code == "" {
		return NewError(models.ErrCodeAuthRequired, "Failed to exchange authorization code", nil)
	}
	m.available = true
	return nil
}

func (m *MemoryGateway) sortedLocked(keep func(models.Event) bool) []models.Event {
	events := []models.Event{}
	for _, e := range m.events {
		if keep(e) {
			events = append(events, e)
		}
	}
	sort.Slice(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if a.Date != b.Date {
			return a.Date.Before(b.Date)
		}
		switch {
		case a.StartTime == nil && b.StartTime == nil:
			return a.ID < b.ID
		case a.StartTime == nil:
			return true
		case b.StartTime == nil:
			return false
		case *a.StartTime != *b.StartTime:
			return a.StartTime.String() < b.StartTime.String()
		default:
			return a.ID < b.ID
		}
	})
	return events
}

// MemoryConnector hands out one MemoryGateway per user.
type MemoryConnector struct {
	mu        sync.Mutex
	available bool
	gateways  map[string]*MemoryGateway
}

// NewMemoryConnector creates a connector whose new gateways start with the
// given availability.
func NewMemoryConnector(available bool) *MemoryConnector {
	return &MemoryConnector{available: available, gateways: make(map[string]*MemoryGateway)}
}

func (c *MemoryConnector) Connect(_ context.Context, user models.User) (UserGateway, error) {
	return c.Gateway(user), nil
}

// Gateway returns the user's gateway, creating it if needed.
func (c *MemoryConnector) Gateway(user models.User) *MemoryGateway {
	c.mu.Lock()
	defer c.mu.Unlock()
	g, ok := c.gateways[user.UserID]
	if !ok {
		g = NewMemoryGateway(user, c.available)
		c.gateways[user.UserID] = g
	}
	return g
}
