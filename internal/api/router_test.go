package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/calendar-assistant/backend/internal/api/handlers"
	"github.com/calendar-assistant/backend/internal/calendar"
	"github.com/calendar-assistant/backend/internal/parser"
	"github.com/calendar-assistant/backend/internal/storage/models"
	"github.com/calendar-assistant/backend/internal/users"
	"github.com/google/go-cmp/cmp"
)

type stubCompleter struct {
	text string
	err  error
}

func (s *stubCompleter) Complete(context.Context, string) (string, error) {
	return s.text, s.err
}

type testServer struct {
	handler   http.Handler
	users     *users.Manager
	connector *calendar.MemoryConnector
	sessions  *handlers.Sessions
	ai        *stubCompleter
}

func newTestServer(t *testing.T, connected bool) *testServer {
	t.Helper()
	cache, err := calendar.NewGatewayCache(8, nil)
	if err != nil {
		t.Fatal(err)
	}
	ts := &testServer{
		users:     users.NewManager(context.Background(), nil, filepath.Join(t.TempDir(), "tokens"), nil),
		connector: calendar.NewMemoryConnector(connected),
		ai:        &stubCompleter{},
	}
	ts.sessions = handlers.NewSessions(ts.connector, cache, nil)
	clock := func() time.Time { return time.Date(2025, 10, 30, 9, 0, 0, 0, time.UTC) }

	ts.handler = NewRouter(Dependencies{
		Parser:         parser.New(ts.ai, nil, parser.WithClock(clock)),
		Users:          ts.users,
		Sessions:       ts.sessions,
		Location:       time.UTC,
		AllowedOrigins: []string{"http://localhost:3000"},
	})
	return ts
}

func (ts *testServer) register(t *testing.T, email string) models.User {
	t.Helper()
	u, _, err := ts.users.RegisterUser(context.Background(), "Tester", email)
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func (ts *testServer) do(t *testing.T, method, target, userID, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set(handlers.UserIDHeader, userID)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, true)
	ts.register(t, "ada@example.com")

	rec := ts.do(t, "GET", "/api/events/health", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	got := decode[handlers.HealthResponse](t, rec)
	if got.Status != "OK" || !got.AIParserAvailable || got.RegisteredUsers != 1 || got.ActiveUsers != 0 || got.Timestamp == 0 {
		t.Errorf("health = %+v", got)
	}
}

func TestParseEvent(t *testing.T) {
	ts := newTestServer(t, true)

	rec := ts.do(t, "POST", "/api/events/parse", "", `{"text":"   "}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty text status = %d, want 400", rec.Code)
	}
	if got := decode[handlers.ParsedEventDTO](t, rec); got.ErrorMessage != "Please provide an event description" {
		t.Errorf("empty text error = %q", got.ErrorMessage)
	}

	ts.ai.text = "ACTION: CREATE\nTITLE: Lunch with Sam\nDATE: 2025-10-31\nSTART_TIME: 12:30\nEND_TIME: empty\nLOCATION: Cafe"
	rec = ts.do(t, "POST", "/api/events/parse", "", `{"text":"lunch with sam tomorrow at 12:30 at the cafe"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	want := handlers.ParsedEventDTO{
		ActionType: "CREATE",
		Title:      "Lunch with Sam",
		Date:       "2025-10-31",
		StartTime:  "12:30",
		Location:   "Cafe",
		Successful: true,
	}
	if diff := cmp.Diff(want, decode[handlers.ParsedEventDTO](t, rec)); diff != "" {
		t.Errorf("parse mismatch (-want +got):\n%s", diff)
	}

	ts.ai.err = errors.New("quota exceeded")
	rec = ts.do(t, "POST", "/api/events/parse", "", `{"text":"lunch"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("AI failure status = %d, want 400", rec.Code)
	}
}

func TestCreateEvent(t *testing.T) {
	const body = `{"title":"Dentist","date":"2025-10-31","startTime":"14:00","location":"Main St"}`

	tests := []struct {
		name       string
		connected  bool
		userID     func(u models.User) string
		body       string
		failWith   error
		wantStatus int
		want       handlers.EventResponseDTO
	}{
		{
			name:       "unknown user",
			connected:  true,
			userID:     func(models.User) string { return "user_missing" },
			body:       body,
			wantStatus: http.StatusUnauthorized,
			want:       handlers.EventResponseDTO{Message: "User not found. Please login again.", ErrorCode: "ERROR"},
		},
		{
			name:       "not authenticated",
			body:       body,
			wantStatus: http.StatusUnauthorized,
			want:       handlers.EventResponseDTO{Message: "Google Calendar authentication required. Please authenticate first.", ErrorCode: "ERROR"},
		},
		{
			name:       "missing title",
			connected:  true,
			body:       `{"date":"2025-10-31","startTime":"14:00"}`,
			wantStatus: http.StatusBadRequest,
			want:       handlers.EventResponseDTO{Message: "Event title is required", ErrorCode: "ERROR"},
		},
		{
			name:       "missing start time",
			connected:  true,
			body:       `{"title":"Dentist","date":"2025-10-31"}`,
			wantStatus: http.StatusBadRequest,
			want:       handlers.EventResponseDTO{Message: "Event date and start time are required", ErrorCode: "ERROR"},
		},
		{
			name:       "provider failure",
			connected:  true,
			body:       body,
			failWith:   calendar.NewError(models.ErrCodeAPIError, "Backend Error", nil),
			wantStatus: http.StatusBadRequest,
			want:       handlers.EventResponseDTO{Message: "Failed to create event: Backend Error", ErrorCode: models.ErrCodeAPIError},
		},
		{
			name:       "created",
			connected:  true,
			body:       body,
			wantStatus: http.StatusOK,
			want:       handlers.EventResponseDTO{Success: true, Message: "Event 'Dentist' created for 2025-10-31 at 14:00"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, tt.connected)
			u := ts.register(t, "ada@example.com")
			ts.connector.Gateway(u).FailWith(calendar.OpCreate, tt.failWith)

			userID := u.UserID
			if tt.userID != nil {
				userID = tt.userID(u)
			}
			rec := ts.do(t, "POST", "/api/events/create", userID, tt.body)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body)
			}
			if diff := cmp.Diff(tt.want, decode[handlers.EventResponseDTO](t, rec)); diff != "" {
				t.Errorf("body mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAuthorizationFlow(t *testing.T) {
	ts := newTestServer(t, false)
	u := ts.register(t, "ada@example.com")

	rec := ts.do(t, "GET", "/api/events/auth/check/user_missing", "", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"error":"User not found"`) {
		t.Errorf("unknown user check = %d %s", rec.Code, rec.Body)
	}
	if rec := ts.do(t, "GET", "/api/events/auth/url/user_missing", "", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown user url status = %d, want 404", rec.Code)
	}

	check := decode[map[string]any](t, ts.do(t, "GET", "/api/events/auth/check/"+u.UserID, "", ""))
	if check["needsAuth"] != true || check["userEmail"] != "ada@example.com" {
		t.Errorf("check before auth = %v", check)
	}

	rec = ts.do(t, "GET", "/api/events/auth/url/"+u.UserID, "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("auth url status = %d", rec.Code)
	}
	body := decode[map[string]string](t, rec)
	if body["message"] != "Please authenticate with Google" {
		t.Errorf("message = %q", body["message"])
	}
	authURL, err := url.Parse(body["authUrl"])
	if err != nil {
		t.Fatal(err)
	}
	state := authURL.Query().Get("state")

	callback := "/api/events/auth/callback?" + url.Values{"code": {"ok"}, "state": {state}}.Encode()
	rec = ts.do(t, "GET", callback, "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("callback status = %d: %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("callback Content-Type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "OAUTH_COMPLETE") {
		t.Error("callback page does not notify the opener")
	}

	check = decode[map[string]any](t, ts.do(t, "GET", "/api/events/auth/check/"+u.UserID, "", ""))
	if check["needsAuth"] != false || check["authenticated"] != true {
		t.Errorf("check after auth = %v", check)
	}
	if stored, _ := ts.users.GetUserByID(u.UserID); !stored.Authenticated {
		t.Error("user not marked authenticated")
	}

	// The state was consumed.
	if rec := ts.do(t, "GET", callback, "", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("replayed callback status = %d, want 400", rec.Code)
	}
}

func TestClearCache(t *testing.T) {
	ts := newTestServer(t, true)
	u := ts.register(t, "ada@example.com")

	ts.do(t, "GET", "/api/events/auth/check/"+u.UserID, "", "")
	if ts.sessions.Len() != 1 {
		t.Fatalf("sessions = %d, want 1", ts.sessions.Len())
	}

	rec := ts.do(t, "DELETE", "/api/events/cache/"+u.UserID, "", "")
	want := map[string]string{"message": "Cache cleared successfully", "userId": u.UserID}
	if diff := cmp.Diff(want, decode[map[string]string](t, rec)); diff != "" {
		t.Errorf("body mismatch (-want +got):\n%s", diff)
	}
	if ts.sessions.Len() != 0 {
		t.Errorf("sessions after clear = %d, want 0", ts.sessions.Len())
	}
}

func TestUsersEndpoints(t *testing.T) {
	ts := newTestServer(t, true)

	rec := ts.do(t, "POST", "/api/users/register", "", `{"username":"Ada","email":"ada@example.com"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("register status = %d", rec.Code)
	}
	ada := decode[handlers.UserDTO](t, rec)

	again := decode[handlers.UserDTO](t, ts.do(t, "POST", "/api/users/register", "", `{"username":"Other","email":"ADA@example.com"}`))
	if diff := cmp.Diff(ada, again); diff != "" {
		t.Errorf("duplicate register mismatch (-want +got):\n%s", diff)
	}
	if rec := ts.do(t, "POST", "/api/users/register", "", `{"username":"Nobody"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("register without email status = %d, want 400", rec.Code)
	}

	list := decode[[]handlers.UserDTO](t, ts.do(t, "GET", "/api/users", "", ""))
	if diff := cmp.Diff([]handlers.UserDTO{ada}, list); diff != "" {
		t.Errorf("list mismatch (-want +got):\n%s", diff)
	}

	login := decode[handlers.UserDTO](t, ts.do(t, "POST", "/api/users/login", "", `{"email":"ada@example.com"}`))
	if !login.Authenticated {
		t.Error("login did not authenticate")
	}
	if rec := ts.do(t, "POST", "/api/users/login", "", `{"email":"nobody@example.com"}`); rec.Code != http.StatusNotFound {
		t.Errorf("unknown login status = %d, want 404", rec.Code)
	}

	logout := decode[handlers.UserDTO](t, ts.do(t, "POST", "/api/users/"+ada.UserID+"/logout", "", ""))
	if logout.Authenticated {
		t.Error("logout left user authenticated")
	}

	if rec := ts.do(t, "DELETE", "/api/users/"+ada.UserID, "", ""); rec.Code != http.StatusOK {
		t.Errorf("delete status = %d", rec.Code)
	}
	if rec := ts.do(t, "GET", "/api/users/"+ada.UserID, "", ""); rec.Code != http.StatusNotFound {
		t.Errorf("get deleted user status = %d, want 404", rec.Code)
	}
}

func TestProcessAndManageEvents(t *testing.T) {
	ts := newTestServer(t, true)
	u := ts.register(t, "ada@example.com")

	ts.ai.text = "ACTION: CREATE\nTITLE: Standup\nDATE: 2025-10-31\nSTART_TIME: 09:00\nEND_TIME: 09:15\nLOCATION: empty"
	rec := ts.do(t, "POST", "/api/events/process", u.UserID, `{"text":"standup tomorrow 9 to 9:15"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("process create status = %d: %s", rec.Code, rec.Body)
	}
	created := decode[models.EventResponse](t, rec)
	if created.CreatedEvent == nil {
		t.Fatal("no created event in response")
	}
	id := created.CreatedEvent.ID

	list := decode[models.EventResponse](t, ts.do(t, "GET", "/api/events?date=2025-10-31", u.UserID, ""))
	if len(list.Events) != 1 || list.Events[0].ID != id {
		t.Errorf("list = %+v", list)
	}
	ranged := decode[models.EventResponse](t, ts.do(t, "GET", "/api/events?date=2025-10-30&end=2025-11-02", u.UserID, ""))
	if len(ranged.Events) != 1 || ranged.Message != "Found 1 event(s) for 2025-10-30 to 2025-11-02" {
		t.Errorf("range list = %+v", ranged)
	}

	rec = ts.do(t, "PUT", "/api/events/"+id, u.UserID, `{"location":"Room 4"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d: %s", rec.Code, rec.Body)
	}
	if got := decode[models.EventResponse](t, rec).CreatedEvent; got == nil || got.Location != "Room 4" || got.Title != "Standup" {
		t.Errorf("updated event = %+v", got)
	}

	rec = ts.do(t, "GET", "/api/events/calendar.ics?start=2025-10-01&end=2025-11-30", u.UserID, "")
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Errorf("export Content-Type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "SUMMARY:Standup") {
		t.Errorf("export body missing event:\n%s", rec.Body)
	}

	ts.ai.text = "ACTION: DELETE\nTITLE: standup\nDATE: 2025-10-31\nSTART_TIME: empty\nEND_TIME: empty\nLOCATION: empty"
	rec = ts.do(t, "POST", "/api/events/process", u.UserID, `{"text":"cancel standup tomorrow"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("process delete status = %d: %s", rec.Code, rec.Body)
	}

	if rec := ts.do(t, "DELETE", "/api/events/"+id, u.UserID, ""); rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
	if rec := ts.do(t, "GET", "/api/events?date=tomorrow", u.UserID, ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad date status = %d, want 400", rec.Code)
	}
}

func TestImportCalendar(t *testing.T) {
	ts := newTestServer(t, true)
	u := ts.register(t, "ada@example.com")

	feed := strings.Join([]string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//test//EN",
		"BEGIN:VEVENT",
		"UID:1@test",
		"DTSTAMP:20251030T090000Z",
		"DTSTART:20251031T150000Z",
		"DTEND:20251031T160000Z",
		"SUMMARY:Review",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:2@test",
		"DTSTAMP:20251030T090000Z",
		"DTSTART;VALUE=DATE:20251101",
		"SUMMARY:",
		"END:VEVENT",
		"END:VCALENDAR",
		"",
	}, "\r\n")

	req := httptest.NewRequest("POST", "/api/events/import", strings.NewReader(feed))
	req.Header.Set(handlers.UserIDHeader, u.UserID)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("import status = %d: %s", rec.Code, rec.Body)
	}
	got := decode[handlers.ImportResult](t, rec)
	if got.Imported != 1 || len(got.Failures) != 1 {
		t.Errorf("import = %+v, want 1 imported and 1 failure", got)
	}
	if len(got.Events) == 1 && got.Events[0].Title != "Review" {
		t.Errorf("imported %q, want Review", got.Events[0].Title)
	}
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t, true)

	req := httptest.NewRequest("OPTIONS", "/api/events/create", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestStatus(t *testing.T) {
	ts := newTestServer(t, true)
	u := ts.register(t, "ada@example.com")
	if _, err := ts.users.SetAuthenticated(context.Background(), u.UserID, true); err != nil {
		t.Fatal(err)
	}
	ts.register(t, "grace@example.com")

	rec := ts.do(t, "GET", "/api/status", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	want := handlers.StatusResponse{AIParserAvailable: true, RegisteredUsers: 2, AuthenticatedUsers: 1}
	if diff := cmp.Diff(want, decode[handlers.StatusResponse](t, rec)); diff != "" {
		t.Errorf("status mismatch (-want +got):\n%s", diff)
	}
}

func TestCheckConflicts(t *testing.T) {
	ts := newTestServer(t, true)
	u := ts.register(t, "ada@example.com")
	ts.do(t, "POST", "/api/events/create", u.UserID, `{"title":"Dentist","date":"2025-10-31","startTime":"14:00","endTime":"15:00"}`)

	type result struct {
		HasConflict bool `json:"hasConflict"`
		Conflicts   []struct {
			Title string `json:"title"`
		} `json:"conflicts"`
	}

	got := decode[result](t, ts.do(t, "GET", "/api/events/conflicts?date=2025-10-31&startTime=14:30", u.UserID, ""))
	if !got.HasConflict || len(got.Conflicts) != 1 || got.Conflicts[0].Title != "Dentist" {
		t.Errorf("overlapping slot = %+v", got)
	}

	got = decode[result](t, ts.do(t, "GET", "/api/events/conflicts?date=2025-10-31&startTime=15:00", u.UserID, ""))
	if got.HasConflict {
		t.Errorf("free slot = %+v", got)
	}

	if rec := ts.do(t, "GET", "/api/events/conflicts", u.UserID, ""); rec.Code != http.StatusBadRequest {
		t.Errorf("missing date status = %d, want 400", rec.Code)
	}
}
