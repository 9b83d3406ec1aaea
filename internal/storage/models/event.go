// Package models contains the domain models for the application.
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Layouts used on the wire and in the AI response block.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Date is a calendar date without a time zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate parses an ISO date (YYYY-MM-DD).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// DateOf returns the date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// In returns midnight of the date in loc.
func (d Date) In(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// AddDays returns the date n days later (or earlier for negative n).
func (d Date) AddDays(n int) Date {
	return DateOf(d.In(time.UTC).AddDate(0, 0, n))
}

// Before reports whether d is strictly before other.
func (d Date) Before(other Date) bool {
	return d.In(time.UTC).Before(other.In(time.UTC))
}

// IsZero reports whether the date is unset.
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// TimeOfDay is a wall-clock time with minute precision.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses a 24-hour HH:MM time. Both fields must be two digits.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	if len(s) != len(TimeLayout) || s[2] != ':' {
		return TimeOfDay{}, fmt.Errorf("parsing time %q: want HH:MM", s)
	}
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("parsing time %q: %w", s, err)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// TimeOfDayOf returns the wall-clock time of t.
func TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}
}

// Add returns the time shifted by d, wrapping around midnight.
func (t TimeOfDay) Add(d time.Duration) TimeOfDay {
	const day = 24 * 60
	mins := (t.minutes() + int(d/time.Minute)) % day
	if mins < 0 {
		mins += day
	}
	return TimeOfDay{Hour: mins / 60, Minute: mins % 60}
}

// On combines the time with a date in loc.
func (t TimeOfDay) On(d Date, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, t.Hour, t.Minute, 0, 0, loc)
}

func (t TimeOfDay) minutes() int {
	return t.Hour*60 + t.Minute
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Event is a calendar event. A nil StartTime means an all-day event.
type Event struct {
	ID          string     `json:"id,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Date        Date       `json:"date"`
	StartTime   *TimeOfDay `json:"startTime,omitempty"`
	EndTime     *TimeOfDay `json:"endTime,omitempty"`
	Location    string     `json:"location,omitempty"`
}

// IsAllDay reports whether the event has no start time.
func (e Event) IsAllDay() bool {
	return e.StartTime == nil
}

// Duration returns the time between start and end, or zero when either is missing.
// An end before the start is treated as ending on the following day.
func (e Event) Duration() time.Duration {
	if e.StartTime == nil || e.EndTime == nil {
		return 0
	}
	mins := e.EndTime.minutes() - e.StartTime.minutes()
	if mins < 0 {
		mins += 24 * 60
	}
	return time.Duration(mins) * time.Minute
}

// OverlapsWith reports whether two timed events on the same date overlap.
// All-day events overlap everything on their date.
func (e Event) OverlapsWith(other Event) bool {
	if e.Date != other.Date {
		return false
	}
	if e.IsAllDay() || other.IsAllDay() {
		return true
	}
	aStart, aEnd := e.span()
	bStart, bEnd := other.span()
	return aStart < bEnd && bStart < aEnd
}

func (e Event) span() (int, int) {
	start := e.StartTime.minutes()
	return start, start + int(e.Duration()/time.Minute)
}

// IsPast reports whether the event started before now. now's location is
// used to interpret the event's wall-clock fields.
func (e Event) IsPast(now time.Time) bool {
	today := DateOf(now)
	if e.Date != today {
		return e.Date.Before(today)
	}
	if e.StartTime == nil {
		return false
	}
	return e.StartTime.On(e.Date, now.Location()).Before(now)
}

// TimeLabel describes when the event happens for human-facing messages.
func (e Event) TimeLabel() string {
	if e.StartTime == nil {
		return "all day"
	}
	return e.StartTime.String()
}
