package calendar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/calendar-assistant/backend/internal/storage/models"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// RefreshWindow is how close to expiry a credential is refreshed before use.
const RefreshWindow = 60 * time.Second

// GoogleConnector builds Google Calendar gateways sharing one OAuth client.
type GoogleConnector struct {
	config *oauth2.Config
	loc    *time.Location
	logger *slog.Logger
	opts   []option.ClientOption
}

// NewGoogleConnector parses OAuth client credentials (the JSON downloaded
// from the Google console) and returns a connector. A non-empty redirectURL
// overrides the one in the credentials.
func NewGoogleConnector(credentialsJSON []byte, redirectURL string, loc *time.Location, logger *slog.Logger, opts ...option.ClientOption) (*GoogleConnector, error) {
	config, err := google.ConfigFromJSON(credentialsJSON, gcal.CalendarScope)
	if err != nil {
		return nil, fmt.Errorf("parsing client credentials: %w", err)
	}
	if redirectURL != "" {
		config.RedirectURL = redirectURL
	}
	return &GoogleConnector{config: config, loc: loc, logger: logger, opts: opts}, nil
}

// Connect returns a gateway bound to the user's token directory.
func (c *GoogleConnector) Connect(_ context.Context, user models.User) (UserGateway, error) {
	if user.TokensLocation == "" {
		return nil, fmt.Errorf("user %s has no token location", user.UserID)
	}
	return NewGoogleGateway(c.config, user, c.loc, c.logger, c.opts...), nil
}

// GoogleGateway is a Gateway backed by one user's Google Calendar.
type GoogleGateway struct {
	config *oauth2.Config
	user   models.User
	loc    *time.Location
	logger *slog.Logger
	opts   []option.ClientOption

	mu      sync.Mutex
	token   *oauth2.Token
	service *gcal.Service
	pending map[string]struct{}
}

// NewGoogleGateway loads the user's stored credential. Without one the
// gateway is unavailable until CompleteAuthorization succeeds.
func NewGoogleGateway(config *oauth2.Config, user models.User, loc *time.Location, logger *slog.Logger, opts ...option.ClientOption) *GoogleGateway {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	g := &GoogleGateway{
		config:  config,
		user:    user,
		loc:     loc,
		logger:  logger.With("user", user.UserID),
		opts:    opts,
		pending: make(map[string]struct{}),
	}

	tok, err := LoadToken(user.TokensLocation)
	switch {
	case err != nil:
		g.logger.Warn("Ignoring unreadable calendar credential", "error", err)
	case tok == nil:
		g.logger.Info("No stored calendar credential")
	default:
		g.token = tok
	}
	return g
}

// User returns the user the gateway is bound to.
func (g *GoogleGateway) User() models.User {
	return g.user
}

// Available reports whether the bound credential is unexpired or refreshable.
func (g *GoogleGateway) Available() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return usable(g.token)
}

func usable(tok *oauth2.Token) bool {
	if tok == nil {
		return false
	}
	if tok.RefreshToken != "" {
		return true
	}
	return tok.AccessToken != "" && (tok.Expiry.IsZero() || time.Until(tok.Expiry) > RefreshWindow)
}

// AuthorizationURL returns the consent page URL. Its state carries the user
// id and a nonce that CompleteAuthorization checks.
func (g *GoogleGateway) AuthorizationURL() (string, error) {
	nonce := uuid.NewString()

	g.mu.Lock()
	g.pending[nonce] = struct{}{}
	g.mu.Unlock()

	return g.config.AuthCodeURL(
		NewState(g.user.UserID, nonce),
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	), nil
}

// CompleteAuthorization exchanges the code returned to the redirect URL and
// stores the resulting credential.
func (g *GoogleGateway) CompleteAuthorization(ctx context.Context, code, state string) error {
	userID, nonce, err := ParseState(state)
	if err != nil || userID != g.user.UserID {
		return NewError(models.ErrCodeAuthRequired, "Invalid authorization state", err)
	}

	g.mu.Lock()
	_, ok := g.pending[nonce]
	delete(g.pending, nonce)
	g.mu.Unlock()
	if !ok {
		return NewError(models.ErrCodeAuthRequired, "Authorization request expired. Please try again.", nil)
	}

	tok, err := g.config.Exchange(context.WithoutCancel(ctx), code)
	if err != nil {
		return NewError(models.ErrCodeAuthRequired, "Failed to exchange authorization code", err)
	}
	if err := SaveToken(g.user.TokensLocation, tok); err != nil {
		return NewError(models.ErrCodeCalendar, "Failed to store calendar credential", err)
	}

	g.mu.Lock()
	g.token = tok
	g.service = nil
	g.mu.Unlock()

	g.logger.Info("Calendar authorization completed")
	return nil
}

// calendarService returns the API client, building it on first use. The
// client refreshes the credential when RefreshWindow or less remains.
func (g *GoogleGateway) calendarService(ctx context.Context) (*gcal.Service, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !usable(g.token) {
		return nil, ErrUnavailable
	}
	if g.service != nil {
		return g.service, nil
	}

	base := context.WithoutCancel(ctx)
	refresher := g.config.TokenSource(base, &oauth2.Token{RefreshToken: g.token.RefreshToken})
	ts := oauth2.ReuseTokenSourceWithExpiry(g.token, &persistingTokenSource{src: refresher, save: g.storeRefreshed}, RefreshWindow)

	opts := append([]option.ClientOption{option.WithHTTPClient(oauth2.NewClient(base, ts))}, g.opts...)
	svc, err := gcal.NewService(base, opts...)
	if err != nil {
		return nil, NewError(models.ErrCodeServiceUnavailable, "Calendar service not available", err)
	}
	g.service = svc
	return svc, nil
}

func (g *GoogleGateway) storeRefreshed(tok *oauth2.Token) {
	g.mu.Lock()
	g.token = tok
	g.mu.Unlock()

	if err := SaveToken(g.user.TokensLocation, tok); err != nil {
		g.logger.Warn("Failed to persist refreshed credential", "error", err)
		return
	}
	g.logger.Debug("Refreshed calendar credential", "expiry", tok.Expiry)
}

// wrapError converts a provider failure into an *Error. Authorization
// failures drop the bound credential so the gateway reports unavailable.
func (g *GoogleGateway) wrapError(err error) error {
	var apiErr *googleapi.Error
	var retrieveErr *oauth2.RetrieveError

	switch {
	case errors.As(err, &retrieveErr),
		errors.As(err, &apiErr) && (apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden):
		g.mu.Lock()
		g.token = nil
		g.service = nil
		g.mu.Unlock()
		return NewError(models.ErrCodeAuthRequired, "Google Calendar authorization expired. Please authenticate again.", err)
	case errors.As(err, &apiErr) && (apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone):
		return NewError(models.ErrCodeEventNotFound, "Event not found", errors.Join(ErrEventNotFound, err))
	case errors.As(err, &apiErr) && apiErr.Message != "":
		return NewError(models.ErrCodeAPIError, apiErr.Message, err)
	default:
		return NewError(models.ErrCodeAPIError, err.Error(), err)
	}
}

func (g *GoogleGateway) calendarID() string {
	if g.user.CalendarID != "" {
		return g.user.CalendarID
	}
	return models.DefaultCalendarID
}

// CreateEvent inserts event and returns it with the provider-assigned id.
func (g *GoogleGateway) CreateEvent(ctx context.Context, event models.Event) (models.Event, error) {
	svc, err := g.calendarService(ctx)
	if err != nil {
		return models.Event{}, err
	}

	item := &gcal.Event{
		Summary:     event.Title,
		Description: event.Description,
		Location:    event.Location,
	}
	g.setTimes(item, event)

	created, err := svc.Events.Insert(g.calendarID(), item).Context(context.WithoutCancel(ctx)).Do()
	if err != nil {
		return models.Event{}, g.wrapError(err)
	}
	g.logger.Info("Created calendar event", "event_id", created.Id)
	return g.fromGoogle(created), nil
}

// Event fetches a single event by id.
func (g *GoogleGateway) Event(ctx context.Context, eventID string) (models.Event, error) {
	svc, err := g.calendarService(ctx)
	if err != nil {
		return models.Event{}, err
	}
	item, err := svc.Events.Get(g.calendarID(), eventID).Context(context.WithoutCancel(ctx)).Do()
	if err != nil {
		return models.Event{}, g.wrapError(err)
	}
	return g.fromGoogle(item), nil
}

// EventsForDate returns the events starting on date.
func (g *GoogleGateway) EventsForDate(ctx context.Context, date models.Date) ([]models.Event, error) {
	return g.EventsInRange(ctx, date, date)
}

// EventsInRange lists events starting between start and end inclusive.
func (g *GoogleGateway) EventsInRange(ctx context.Context, start, end models.Date) ([]models.Event, error) {
	svc, err := g.calendarService(ctx)
	if err != nil {
		return nil, err
	}

	events := []models.Event{}
	err = svc.Events.List(g.calendarID()).
		TimeMin(start.In(g.loc).Format(time.RFC3339)).
		TimeMax(end.AddDays(1).In(g.loc).Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Pages(context.WithoutCancel(ctx), func(page *gcal.Events) error {
			for _, item := range page.Items {
				e := g.fromGoogle(item)
				// The provider matches on overlap; keep only events that start in range.
				if e.Date.Before(start) || end.Before(e.Date) {
					continue
				}
				events = append(events, e)
			}
			return nil
		})
	if err != nil {
		return nil, g.wrapError(err)
	}
	return events, nil
}

// DeleteEvent removes the event with eventID.
func (g *GoogleGateway) DeleteEvent(ctx context.Context, eventID string) error {
	svc, err := g.calendarService(ctx)
	if err != nil {
		return err
	}
	if err := svc.Events.Delete(g.calendarID(), eventID).Context(context.WithoutCancel(ctx)).Do(); err != nil {
		return g.wrapError(err)
	}
	g.logger.Info("Deleted calendar event", "event_id", eventID)
	return nil
}

// UpdateEvent fetches the stored event and overwrites its title, description
// and location. Start and end are replaced when event carries a start time.
func (g *GoogleGateway) UpdateEvent(ctx context.Context, event models.Event) (models.Event, error) {
	if event.ID == "" {
		return models.Event{}, NewError(models.ErrCodeAPIError, "Event id is required", nil)
	}
	svc, err := g.calendarService(ctx)
	if err != nil {
		return models.Event{}, err
	}

	callCtx := context.WithoutCancel(ctx)
	item, err := svc.Events.Get(g.calendarID(), event.ID).Context(callCtx).Do()
	if err != nil {
		return models.Event{}, g.wrapError(err)
	}

	item.Summary = event.Title
	item.Description = event.Description
	item.Location = event.Location
	if event.StartTime != nil && !event.Date.IsZero() {
		g.setTimes(item, event)
	}

	updated, err := svc.Events.Update(g.calendarID(), event.ID, item).Context(callCtx).Do()
	if err != nil {
		return models.Event{}, g.wrapError(err)
	}
	g.logger.Info("Updated calendar event", "event_id", updated.Id)
	return g.fromGoogle(updated), nil
}

// setTimes writes event's date and times onto item. Events without a start
// time become all-day events.
func (g *GoogleGateway) setTimes(item *gcal.Event, event models.Event) {
	if event.StartTime == nil {
		item.Start = &gcal.EventDateTime{Date: event.Date.String()}
		item.End = &gcal.EventDateTime{Date: event.Date.AddDays(1).String()}
		return
	}

	start := event.StartTime.On(event.Date, g.loc)
	end := start.Add(models.DefaultEventDuration)
	if event.EndTime != nil {
		end = event.EndTime.On(event.Date, g.loc)
		if !end.After(start) {
			end = end.AddDate(0, 0, 1)
		}
	}

	zone := g.loc.String()
	if g.loc == time.Local {
		zone = ""
	}
	item.Start = &gcal.EventDateTime{DateTime: start.Format(time.RFC3339), TimeZone: zone}
	item.End = &gcal.EventDateTime{DateTime: end.Format(time.RFC3339), TimeZone: zone}
}

func (g *GoogleGateway) fromGoogle(item *gcal.Event) models.Event {
	e := models.Event{
		ID:          item.Id,
		Title:       item.Summary,
		Description: item.Description,
		Location:    item.Location,
	}
	if item.Start == nil {
		return e
	}

	if item.Start.DateTime != "" {
		start, err := time.Parse(time.RFC3339, item.Start.DateTime)
		if err != nil {
			g.logger.Warn("Unparseable event start", "event_id", item.Id, "value", item.Start.DateTime)
			return e
		}
		start = start.In(g.loc)
		e.Date = models.DateOf(start)
		st := models.TimeOfDayOf(start)
		e.StartTime = &st

		if item.End != nil && item.End.DateTime != "" {
			if end, err := time.Parse(time.RFC3339, item.End.DateTime); err == nil {
				et := models.TimeOfDayOf(end.In(g.loc))
				e.EndTime = &et
			}
		}
		return e
	}

	if d, err := models.ParseDate(item.Start.Date); err == nil {
		e.Date = d
	}
	return e
}
