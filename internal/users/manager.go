// Package users keeps the registry of people who use the assistant and the
// directories holding their calendar credentials.
package users

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/calendar-assistant/backend/internal/storage"
	"github.com/calendar-assistant/backend/internal/storage/models"
)

var (
	// ErrUserNotFound is returned when no user matches an id or email.
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailRequired is returned when registering without an email.
	ErrEmailRequired = errors.New("email is required")
)

// Manager is the only writer of the user registry. Every change is written
// through to the snapshot; a failed write is logged and the change is kept.
type Manager struct {
	mu        sync.RWMutex
	users     map[string]models.User
	snapshot  storage.UserSnapshot
	tokensDir string
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source used for login timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager loads the registry from snapshot. A snapshot that cannot be read
// is logged and the registry starts empty. A nil snapshot keeps users in
// memory only.
func NewManager(ctx context.Context, snapshot storage.UserSnapshot, tokensDir string, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	m := &Manager{
		users:     make(map[string]models.User),
		snapshot:  snapshot,
		tokensDir: tokensDir,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	if err := os.MkdirAll(tokensDir, 0700); err != nil {
		logger.Warn("Could not create tokens directory", "dir", tokensDir, "error", err)
	}

	if snapshot != nil {
		loaded, err := snapshot.LoadUsers(ctx)
		if err != nil {
			logger.Warn("Could not load users, starting with an empty registry", "error", err)
			loaded = nil
		}
		for _, u := range loaded {
			m.users[u.UserID] = u
		}
		logger.Info("User registry loaded", "users", len(m.users))
	}
	return m
}

// RegisterUser adds a user. When a user with the same email (ignoring case)
// already exists, that user is returned unchanged.
func (m *Manager) RegisterUser(ctx context.Context, username, email string) (models.User, bool, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return models.User{}, false, ErrEmailRequired
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.findByEmailLocked(email); ok {
		m.logger.Info("User with this email already exists", "user_id", existing.UserID)
		return existing, false, nil
	}

	id := m.newIDLocked()
	u := models.User{
		UserID:         id,
		Username:       strings.TrimSpace(username),
		Email:          email,
		CalendarID:     models.DefaultCalendarID,
		TokensLocation: filepath.Join(m.tokensDir, id),
		CreatedAt:      m.now().UTC(),
	}
	if err := os.MkdirAll(u.TokensLocation, 0700); err != nil {
		m.logger.Warn("Could not create user token directory", "user_id", id, "error", err)
	}

	m.users[id] = u
	m.saveLocked(ctx)
	m.logger.Info("User registered", "user_id", id)
	return u, true, nil
}

// LoginUser marks the user with email as authenticated and records the time.
func (m *Manager) LoginUser(ctx context.Context, email string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.findByEmailLocked(strings.TrimSpace(email))
	if !ok {
		return models.User{}, ErrUserNotFound
	}
	now := m.now().UTC()
	u.Authenticated = true
	u.LastLogin = &now
	m.users[u.UserID] = u
	m.saveLocked(ctx)
	return u, nil
}

// LogoutUser clears the user's authenticated flag.
func (m *Manager) LogoutUser(ctx context.Context, userID string) (models.User, error) {
	return m.SetAuthenticated(ctx, userID, false)
}

// SetAuthenticated records whether the user holds a working credential.
// Granting a credential counts as a login.
func (m *Manager) SetAuthenticated(ctx context.Context, userID string, authenticated bool) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		return models.User{}, ErrUserNotFound
	}
	if !authenticated && !u.Authenticated {
		return u, nil
	}
	u.Authenticated = authenticated
	if authenticated {
		now := m.now().UTC()
		u.LastLogin = &now
	}
	m.users[userID] = u
	m.saveLocked(ctx)
	return u, nil
}

// ExpireLogins logs out every authenticated user whose last login is older
// than models.ReauthenticationInterval and returns them.
func (m *Manager) ExpireLogins(ctx context.Context) []models.User {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var expired []models.User
	for id, u := range m.users {
		if !u.Authenticated || !u.NeedsReauthentication(now) {
			continue
		}
		u.Authenticated = false
		m.users[id] = u
		expired = append(expired, u)
	}
	if len(expired) == 0 {
		return nil
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].UserID < expired[j].UserID })
	m.saveLocked(ctx)
	return expired
}

// GetUserByID returns the user with userID.
func (m *Manager) GetUserByID(userID string) (models.User, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[userID]
	return u, ok
}

// GetAllUsers returns every user ordered by registration time.
func (m *Manager) GetAllUsers() []models.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sortedLocked()
}

// Count returns the number of registered users.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users)
}

// DeleteUser removes the user and their token directory.
func (m *Manager) DeleteUser(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	delete(m.users, userID)

	if u.TokensLocation != "" {
		if err := os.RemoveAll(u.TokensLocation); err != nil {
			m.logger.Warn("Could not delete user tokens", "user_id", userID, "error", err)
		}
	}
	m.saveLocked(ctx)
	m.logger.Info("User deleted", "user_id", userID)
	return nil
}

func (m *Manager) findByEmailLocked(email string) (models.User, bool) {
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return u, true
		}
	}
	return models.User{}, false
}

// newIDLocked returns "user_" plus eight hex digits, retrying on the rare
// collision with an existing id.
func (m *Manager) newIDLocked() string {
	for {
		id := "user_" + storage.GenerateID()[:8]
		if _, taken := m.users[id]; !taken {
			return id
		}
	}
}

func (m *Manager) sortedLocked() []models.User {
	out := make([]models.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}

func (m *Manager) saveLocked(ctx context.Context) {
	if m.snapshot == nil {
		return
	}
	if err := m.snapshot.SaveUsers(ctx, m.sortedLocked()); err != nil {
		m.logger.Warn("Could not save users", "error", err)
	}
}
