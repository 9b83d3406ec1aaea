package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/calendar-assistant/backend/internal/calendar"
	"github.com/calendar-assistant/backend/internal/presenter"
	"github.com/calendar-assistant/backend/internal/storage/models"
	"github.com/google/go-cmp/cmp"
)

var testUser = models.User{UserID: "user_1234abcd", Email: "ada@example.com", CalendarID: models.DefaultCalendarID}

func day(y, m, d int) *models.Date {
	return &models.Date{Year: y, Month: time.Month(m), Day: d}
}

func at(h, m int) *models.TimeOfDay {
	return &models.TimeOfDay{Hour: h, Minute: m}
}

func createRequest(title string) models.EventRequest {
	return models.EventRequest{
		ActionType: models.ActionCreate,
		Title:      title,
		Date:       day(2025, 10, 31),
		StartTime:  at(14, 0),
		Successful: true,
	}
}

func run(t *testing.T, i Interactor, req models.EventRequest, capture *presenter.Capture) models.EventResponse {
	t.Helper()
	i.Execute(context.Background(), req)
	if capture.Calls() != 1 {
		t.Fatalf("presenter called %d times, want exactly 1", capture.Calls())
	}
	resp, _ := capture.Response()
	return resp
}

func TestCreateEventInteractor(t *testing.T) {
	tests := []struct {
		name        string
		available   bool
		failWith    error
		req         models.EventRequest
		wantSuccess bool
		wantCode    string
		wantMessage string
		wantCreates int
	}{
		{
			name:        "creates event with default duration",
			available:   true,
			req:         createRequest("Team sync"),
			wantSuccess: true,
			wantMessage: "Event 'Team sync' created for 2025-10-31 at 14:00",
			wantCreates: 1,
		},
		{
			name:        "failed parse is invalid",
			available:   true,
			req:         models.FailedRequest("Could not extract event title", "lunch?"),
			wantCode:    models.ErrCodeInvalidRequest,
			wantMessage: "Invalid event request: Could not extract event title",
		},
		{
			name:      "missing title is invalid",
			available: true,
			req: models.EventRequest{
				ActionType: models.ActionCreate,
				Date:       day(2025, 10, 31),
				Successful: true,
			},
			wantCode:    models.ErrCodeInvalidRequest,
			wantMessage: "Invalid event request: missing required fields for CREATE",
		},
		{
			name:      "wrong action is invalid",
			available: true,
			req: models.EventRequest{
				ActionType: models.ActionView,
				Date:       day(2025, 10, 31),
				Successful: true,
			},
			wantCode:    models.ErrCodeInvalidRequest,
			wantMessage: "Invalid event request: missing required fields for VIEW",
		},
		{
			name:        "unavailable gateway is never called",
			req:         createRequest("Team sync"),
			wantCode:    models.ErrCodeServiceUnavailable,
			wantMessage: "Calendar service is not available. Please check your connection.",
		},
		{
			name:        "gateway error keeps its code",
			available:   true,
			failWith:    calendar.NewError(models.ErrCodeAuthRequired, "Token has been expired or revoked.", nil),
			req:         createRequest("Team sync"),
			wantCode:    models.ErrCodeAuthRequired,
			wantMessage: "Failed to create event: Token has been expired or revoked.",
			wantCreates: 1,
		},
		{
			name:        "untyped error is an API error",
			available:   true,
			failWith:    errors.New("connection reset"),
			req:         createRequest("Team sync"),
			wantCode:    models.ErrCodeAPIError,
			wantMessage: "Failed to create event: connection reset",
			wantCreates: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := calendar.NewMemoryGateway(testUser, tt.available)
			gw.FailWith(calendar.OpCreate, tt.failWith)
			capture := presenter.NewCapture()

			resp := run(t, NewCreateEventInteractor(gw, capture, nil), tt.req, capture)

			if resp.Success != tt.wantSuccess {
				t.Errorf("Success = %v, want %v", resp.Success, tt.wantSuccess)
			}
			if resp.ErrorCode != tt.wantCode {
				t.Errorf("ErrorCode = %q, want %q", resp.ErrorCode, tt.wantCode)
			}
			if resp.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", resp.Message, tt.wantMessage)
			}
			if got := gw.Calls(calendar.OpCreate); got != tt.wantCreates {
				t.Errorf("CreateEvent calls = %d, want %d", got, tt.wantCreates)
			}
		})
	}
}

func TestCreateEventInteractorStoresEvent(t *testing.T) {
	gw := calendar.NewMemoryGateway(testUser, true)
	capture := presenter.NewCapture()
	req := createRequest("Dentist")
	req.Location = "Main St"

	resp := run(t, NewCreateEventInteractor(gw, capture, nil), req, capture)

	want := models.Event{
		ID:        "evt_1",
		Title:     "Dentist",
		Date:      *day(2025, 10, 31),
		StartTime: at(14, 0),
		EndTime:   at(15, 0),
		Location:  "Main St",
	}
	if diff := cmp.Diff(&want, resp.CreatedEvent); diff != "" {
		t.Errorf("CreatedEvent mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]models.Event{want}, gw.Events()); diff != "" {
		t.Errorf("stored events mismatch (-want +got):\n%s", diff)
	}
}

func seed(t *testing.T, gw *calendar.MemoryGateway, events ...models.Event) []models.Event {
	t.Helper()
	var out []models.Event
	for _, e := range events {
		created, err := gw.CreateEvent(context.Background(), e)
		if err != nil {
			t.Fatalf("seed CreateEvent: %v", err)
		}
		out = append(out, created)
	}
	return out
}

func TestViewEventsInteractor(t *testing.T) {
	gw := calendar.NewMemoryGateway(testUser, true)
	seed(t, gw,
		models.Event{Title: "Lunch", Date: *day(2025, 10, 31), StartTime: at(12, 0), EndTime: at(13, 0)},
		models.Event{Title: "Halloween", Date: *day(2025, 10, 31)},
		models.Event{Title: "Other day", Date: *day(2025, 11, 1), StartTime: at(9, 0), EndTime: at(10, 0)},
	)

	capture := presenter.NewCapture()
	req := models.EventRequest{ActionType: models.ActionView, Date: day(2025, 10, 31), Successful: true}
	resp := run(t, NewViewEventsInteractor(gw, capture, nil), req, capture)

	if !resp.Success {
		t.Fatalf("view failed: %s", resp.Message)
	}
	if resp.Message != "Found 2 event(s) for 2025-10-31" {
		t.Errorf("Message = %q", resp.Message)
	}
	var titles []string
	for _, e := range resp.Events {
		titles = append(titles, e.Title)
	}
	if diff := cmp.Diff([]string{"Halloween", "Lunch"}, titles); diff != "" {
		t.Errorf("titles mismatch (-want +got):\n%s", diff)
	}

	capture = presenter.NewCapture()
	req.Date = day(2025, 12, 25)
	resp = run(t, NewViewEventsInteractor(gw, capture, nil), req, capture)
	if resp.Message != "No events found for 2025-12-25" || resp.Events == nil {
		t.Errorf("empty day: Message = %q, Events = %v", resp.Message, resp.Events)
	}
}

func TestViewEventsInteractorRange(t *testing.T) {
	gw := calendar.NewMemoryGateway(testUser, true)
	seed(t, gw,
		models.Event{Title: "Lunch", Date: *day(2025, 10, 31), StartTime: at(12, 0), EndTime: at(13, 0)},
		models.Event{Title: "Brunch", Date: *day(2025, 11, 2), StartTime: at(11, 0), EndTime: at(12, 0)},
		models.Event{Title: "Later", Date: *day(2025, 11, 9)},
	)

	capture := presenter.NewCapture()
	NewViewEventsInteractor(gw, capture, nil).ExecuteRange(context.Background(), *day(2025, 10, 31), *day(2025, 11, 2))
	resp, _ := capture.Response()
	if !resp.Success || resp.Message != "Found 2 event(s) for 2025-10-31 to 2025-11-02" {
		t.Fatalf("range view = %+v", resp)
	}

	capture = presenter.NewCapture()
	NewViewEventsInteractor(gw, capture, nil).ExecuteRange(context.Background(), *day(2025, 11, 2), *day(2025, 10, 31))
	resp, _ = capture.Response()
	if resp.Success || resp.ErrorCode != models.ErrCodeInvalidRequest {
		t.Errorf("reversed range = %+v, want INVALID_REQUEST", resp)
	}

	capture = presenter.NewCapture()
	gw.FailWith(calendar.OpList, calendar.NewError(models.ErrCodeAPIError, "quota", nil))
	NewViewEventsInteractor(gw, capture, nil).ExecuteRange(context.Background(), *day(2025, 10, 31), *day(2025, 11, 2))
	resp, _ = capture.Response()
	if resp.Success || resp.ErrorCode != models.ErrCodeAPIError || capture.Calls() != 1 {
		t.Errorf("failing range = %+v, calls = %d", resp, capture.Calls())
	}
}

func TestDeleteEventInteractor(t *testing.T) {
	tests := []struct {
		name        string
		req         models.EventRequest
		wantSuccess bool
		wantCode    string
		wantLeft    int
	}{
		{
			name:        "by id",
			req:         models.EventRequest{ActionType: models.ActionDelete, EventID: "evt_1", Successful: true},
			wantSuccess: true,
			wantLeft:    2,
		},
		{
			name:        "by title and time",
			req:         models.EventRequest{ActionType: models.ActionDelete, Title: "standup", Date: day(2025, 10, 31), StartTime: at(9, 0), Successful: true},
			wantSuccess: true,
			wantLeft:    2,
		},
		{
			name:     "ambiguous title",
			req:      models.EventRequest{ActionType: models.ActionDelete, Title: "Standup", Date: day(2025, 10, 31), Successful: true},
			wantCode: models.ErrCodeInvalidRequest,
			wantLeft: 3,
		},
		{
			name:     "unknown title",
			req:      models.EventRequest{ActionType: models.ActionDelete, Title: "Gym", Date: day(2025, 10, 31), Successful: true},
			wantCode: models.ErrCodeEventNotFound,
			wantLeft: 3,
		},
		{
			name:     "unknown id",
			req:      models.EventRequest{ActionType: models.ActionDelete, EventID: "evt_99", Successful: true},
			wantCode: models.ErrCodeEventNotFound,
			wantLeft: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := calendar.NewMemoryGateway(testUser, true)
			seed(t, gw,
				models.Event{Title: "Review", Date: *day(2025, 10, 31), StartTime: at(11, 0), EndTime: at(12, 0)},
				models.Event{Title: "Standup", Date: *day(2025, 10, 31), StartTime: at(9, 0), EndTime: at(9, 15)},
				models.Event{Title: "Standup", Date: *day(2025, 10, 31), StartTime: at(16, 0), EndTime: at(16, 15)},
			)
			capture := presenter.NewCapture()

			resp := run(t, NewDeleteEventInteractor(gw, capture, nil), tt.req, capture)

			if resp.Success != tt.wantSuccess || resp.ErrorCode != tt.wantCode {
				t.Errorf("got success=%v code=%q (%s), want success=%v code=%q",
					resp.Success, resp.ErrorCode, resp.Message, tt.wantSuccess, tt.wantCode)
			}
			if got := len(gw.Events()); got != tt.wantLeft {
				t.Errorf("events left = %d, want %d", got, tt.wantLeft)
			}
		})
	}
}

func TestUpdateEventInteractor(t *testing.T) {
	gw := calendar.NewMemoryGateway(testUser, true)
	seeded := seed(t, gw, models.Event{
		Title: "Review", Date: *day(2025, 10, 31), StartTime: at(11, 0), EndTime: at(11, 30), Location: "Room 1",
	})

	capture := presenter.NewCapture()
	req := models.EventRequest{
		ActionType: models.ActionUpdate,
		EventID:    seeded[0].ID,
		StartTime:  at(15, 0),
		Location:   "Room 2",
		Successful: true,
	}
	resp := run(t, NewUpdateEventInteractor(gw, capture, nil), req, capture)
	if !resp.Success {
		t.Fatalf("update failed: %s", resp.Message)
	}

	want := []models.Event{{
		ID: seeded[0].ID, Title: "Review", Date: *day(2025, 10, 31), StartTime: at(15, 0), EndTime: at(15, 30), Location: "Room 2",
	}}
	if diff := cmp.Diff(want, gw.Events()); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
	if resp.Message != "Event 'Review' updated successfully" {
		t.Errorf("Message = %q", resp.Message)
	}
}

func TestUpdateByTitleKeepsIdentity(t *testing.T) {
	stored := models.Event{ID: "evt_1", Title: "Review", Date: *day(2025, 10, 31), StartTime: at(11, 0), EndTime: at(12, 0)}
	req := models.EventRequest{
		ActionType:  models.ActionUpdate,
		Title:       "review",
		Date:        day(2025, 10, 31),
		EndTime:     at(12, 30),
		Description: "bring slides",
		Successful:  true,
	}

	got := merge(stored, req)
	want := stored
	want.EndTime = at(12, 30)
	want.Description = "bring slides"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("merge mismatch (-want +got):\n%s", diff)
	}
}

func TestDispatcher(t *testing.T) {
	gw := calendar.NewMemoryGateway(testUser, true)
	d := NewDispatcher(gw, nil)

	capture := presenter.NewCapture()
	d.Dispatch(context.Background(), createRequest("Team sync"), capture)
	if resp, _ := capture.Response(); !resp.Success || resp.ActionPerformed != models.ActionCreate {
		t.Errorf("create dispatch = %+v", resp)
	}

	capture = presenter.NewCapture()
	d.Dispatch(context.Background(), models.EventRequest{ActionType: models.ActionUnknown, Successful: true}, capture)
	resp, _ := capture.Response()
	if resp.Success || resp.ErrorCode != models.ErrCodeInvalidRequest {
		t.Errorf("unknown dispatch = %+v", resp)
	}
	if capture.Calls() != 1 {
		t.Errorf("presenter called %d times, want 1", capture.Calls())
	}
}
