package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/calendar-assistant/backend/internal/calendar"
	"github.com/calendar-assistant/backend/internal/storage/models"
)

// Conflict is an existing event that overlaps a proposed one.
type Conflict struct {
	EventID      string            `json:"eventId"`
	Title        string            `json:"title"`
	AllDay       bool              `json:"allDay"`
	OverlapStart *models.TimeOfDay `json:"overlapStart,omitempty"`
	OverlapEnd   *models.TimeOfDay `json:"overlapEnd,omitempty"`
}

// ConflictChecker finds events that overlap a proposed time slot.
type ConflictChecker struct {
	gateway calendar.Gateway
}

// NewConflictChecker creates a checker over gateway.
func NewConflictChecker(gateway calendar.Gateway) *ConflictChecker {
	return &ConflictChecker{gateway: gateway}
}

// Conflicts returns the events on proposed's date that overlap it, other
// than proposed itself. Timed events without an end are taken to last
// models.DefaultEventDuration.
func (c *ConflictChecker) Conflicts(ctx context.Context, proposed models.Event) ([]Conflict, error) {
	existing, err := c.gateway.EventsForDate(ctx, proposed.Date)
	if err != nil {
		return nil, fmt.Errorf("checking conflicts: %w", err)
	}

	proposed = withDefaultEnd(proposed)
	conflicts := []Conflict{}
	for _, e := range existing {
		if proposed.ID != "" && e.ID == proposed.ID {
			continue
		}
		e = withDefaultEnd(e)
		if !proposed.OverlapsWith(e) {
			continue
		}

		conflict := Conflict{EventID: e.ID, Title: e.Title, AllDay: e.IsAllDay()}
		if !e.IsAllDay() && !proposed.IsAllDay() {
			conflict.OverlapStart, conflict.OverlapEnd = overlap(proposed, e)
		}
		conflicts = append(conflicts, conflict)
	}
	return conflicts, nil
}

// HasConflict reports whether proposed overlaps any existing event.
func (c *ConflictChecker) HasConflict(ctx context.Context, proposed models.Event) (bool, error) {
	conflicts, err := c.Conflicts(ctx, proposed)
	if err != nil {
		return false, err
	}
	return len(conflicts) > 0, nil
}

func withDefaultEnd(e models.Event) models.Event {
	if e.StartTime != nil && e.EndTime == nil {
		end := e.StartTime.Add(models.DefaultEventDuration)
		e.EndTime = &end
	}
	return e
}

// overlap returns the shared part of two overlapping timed events.
func overlap(a, b models.Event) (*models.TimeOfDay, *models.TimeOfDay) {
	aStart, aEnd := minutesOf(*a.StartTime), minutesOf(*a.StartTime)+int(a.Duration()/time.Minute)
	bStart, bEnd := minutesOf(*b.StartTime), minutesOf(*b.StartTime)+int(b.Duration()/time.Minute)

	midnight := models.TimeOfDay{}
	start := midnight.Add(time.Duration(max(aStart, bStart)) * time.Minute)
	end := midnight.Add(time.Duration(min(aEnd, bEnd)) * time.Minute)
	return &start, &end
}

func minutesOf(t models.TimeOfDay) int {
	return t.Hour*60 + t.Minute
}
