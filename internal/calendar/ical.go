package calendar

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/calendar-assistant/backend/internal/storage/models"
	"github.com/emersion/go-ical"
	"github.com/google/uuid"
)

// ProductID identifies feeds written by WriteICS.
const ProductID = "-//calendar-assistant//EN"

// uidDomain suffixes exported event ids to make them globally unique.
const uidDomain = "@calendar-assistant"

// WriteICS encodes events as an iCalendar feed. Wall-clock times are read in
// loc and written in UTC.
func WriteICS(w io.Writer, events []models.Event, loc *time.Location, now time.Time) error {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, ProductID)

	for _, e := range events {
		cal.Children = append(cal.Children, toICal(e, loc, now))
	}

	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("encoding calendar: %w", err)
	}
	return nil
}

func toICal(e models.Event, loc *time.Location, now time.Time) *ical.Component {
	uid := e.ID
	if uid == "" {
		uid = uuid.NewString()
	}

	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, uid+uidDomain)
	ve.Props.SetText(ical.PropSummary, e.Title)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, now.UTC())

	if e.StartTime == nil {
		ve.Props.SetDate(ical.PropDateTimeStart, e.Date.In(time.UTC))
		ve.Props.SetDate(ical.PropDateTimeEnd, e.Date.AddDays(1).In(time.UTC))
	} else {
		start := e.StartTime.On(e.Date, loc)
		end := start.Add(models.DefaultEventDuration)
		if e.EndTime != nil {
			end = e.EndTime.On(e.Date, loc)
			if !end.After(start) {
				end = end.AddDate(0, 0, 1)
			}
		}
		ve.Props.SetDateTime(ical.PropDateTimeStart, start.UTC())
		ve.Props.SetDateTime(ical.PropDateTimeEnd, end.UTC())
	}

	if e.Description != "" {
		ve.Props.SetText(ical.PropDescription, e.Description)
	}
	if e.Location != "" {
		ve.Props.SetText(ical.PropLocation, e.Location)
	}
	return ve
}

// ReadICS decodes every VEVENT in r. Floating times are read in loc and
// events without a start are skipped. Imported events carry no id.
func ReadICS(r io.Reader, loc *time.Location) ([]models.Event, error) {
	dec := ical.NewDecoder(r)

	var events []models.Event
	for {
		cal, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading calendar: %w", err)
		}

		for _, ve := range cal.Events() {
			e, ok := fromICal(ve, loc)
			if ok {
				events = append(events, e)
			}
		}
	}
	return events, nil
}

func fromICal(ve ical.Event, loc *time.Location) (models.Event, bool) {
	startProp := ve.Props.Get(ical.PropDateTimeStart)
	if startProp == nil {
		return models.Event{}, false
	}
	start, err := ve.DateTimeStart(loc)
	if err != nil {
		return models.Event{}, false
	}

	e := models.Event{}
	e.Title, _ = ve.Props.Text(ical.PropSummary)
	e.Description, _ = ve.Props.Text(ical.PropDescription)
	e.Location, _ = ve.Props.Text(ical.PropLocation)

	if startProp.ValueType() == ical.ValueDate {
		e.Date = models.DateOf(start)
		return e, true
	}

	start = start.In(loc)
	e.Date = models.DateOf(start)
	st := models.TimeOfDayOf(start)
	e.StartTime = &st

	if end, err := ve.DateTimeEnd(loc); err == nil && !end.IsZero() {
		et := models.TimeOfDayOf(end.In(loc))
		e.EndTime = &et
	}
	return e, true
}
