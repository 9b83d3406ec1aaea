package users

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/calendar-assistant/backend/internal/websocket"
)

// DefaultExpirySchedule is how often stale logins are swept.
const DefaultExpirySchedule = "@every 1h"

// SessionForgetter drops a user's connected calendar.
type SessionForgetter interface {
	Forget(userID string) bool
}

// Scheduler runs periodic maintenance over the user registry.
type Scheduler struct {
	cron     *cron.Cron
	users    *Manager
	sessions SessionForgetter
	events   *websocket.EventBroadcaster
	logger   *slog.Logger

	mu      sync.Mutex
	entryID cron.EntryID
	running bool
}

// NewScheduler creates a scheduler. sessions and events may be nil.
func NewScheduler(users *Manager, sessions SessionForgetter, events *websocket.EventBroadcaster, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scheduler{
		cron:     cron.New(),
		users:    users,
		sessions: sessions,
		events:   events,
		logger:   logger,
	}
}

// Start schedules the login sweep with a cron spec such as "@every 1h" and
// starts the scheduler. An empty spec uses DefaultExpirySchedule.
func (s *Scheduler) Start(ctx context.Context, spec string) error {
	if spec == "" {
		spec = DefaultExpirySchedule
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("scheduler already started")
	}

	id, err := s.cron.AddFunc(spec, func() { s.ExpireLogins(ctx) })
	if err != nil {
		return fmt.Errorf("scheduling login expiry %q: %w", spec, err)
	}
	s.entryID = id
	s.running = true
	s.cron.Start()

	s.logger.Info("User scheduler started", "expiry_schedule", spec)
	return nil
}

// Stop waits for a running sweep to finish and stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
	s.logger.Info("User scheduler stopped")
}

// ExpireLogins logs out users whose login went stale, drops their calendar
// sessions and tells their clients. It returns how many were expired.
func (s *Scheduler) ExpireLogins(ctx context.Context) int {
	expired := s.users.ExpireLogins(ctx)
	for _, u := range expired {
		if s.sessions != nil {
			s.sessions.Forget(u.UserID)
		}
		s.events.LoginExpired(u)
		s.logger.Info("Login expired", "user_id", u.UserID)
	}
	if len(expired) > 0 {
		s.events.Notification("info", "Logins expired",
			fmt.Sprintf("%d user(s) must authenticate again", len(expired)))
	}
	return len(expired)
}

// NextRun returns when the next sweep is due, or nil when not started.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	next := s.cron.Entry(s.entryID).Next
	if next.IsZero() {
		return nil
	}
	return &next
}
