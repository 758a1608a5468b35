// Package google implements the calendar gateway on top of the Google
// Calendar v3 API.
package google

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/guilherme-santos/calgateway/internal"
)

const maxPageSize = 2500

type Config struct {
	// Endpoint overrides the API base URL, tests point it to a fake server.
	Endpoint string
	// HTTPClient is the transport wrapped with the bearer token.
	HTTPClient        *http.Client
	DefaultCalendarID string
	Logger            *slog.Logger
	Now               internal.Clock
}

type Client struct {
	endpoint   string
	httpClient *http.Client
	calendarID string
	logger     *slog.Logger
	now        internal.Clock
}

var _ internal.Gateway = (*Client)(nil)

func NewClient(cfg Config) *Client {
	c := &Client{
		endpoint:   cfg.Endpoint,
		httpClient: cfg.HTTPClient,
		calendarID: cfg.DefaultCalendarID,
		logger:     internal.LoggerOrDiscard(cfg.Logger),
		now:        cfg.Now,
	}
	if c.httpClient == nil {
		c.httpClient = http.DefaultClient
	}
	if c.calendarID == "" {
		c.calendarID = "primary"
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// ListCalendars returns every calendar on the account's calendar list.
func (c *Client) ListCalendars(ctx context.Context, cred *internal.Credential) ([]internal.Calendar, error) {
	svc, err := c.calendarSvc(ctx, cred)
	if err != nil {
		return nil, err
	}

	var calendars []internal.Calendar
	err = svc.CalendarList.List().Pages(ctx, func(page *calendar.CalendarList) error {
		for _, entry := range page.Items {
			name := entry.SummaryOverride
			if name == "" {
				name = entry.Summary
			}
			calendars = append(calendars, internal.Calendar{
				ID:       entry.Id,
				Name:     name,
				TimeZone: internal.NormalizeTimeZone(entry.TimeZone),
				Primary:  entry.Primary,
				CanEdit:  entry.AccessRole == "owner" || entry.AccessRole == "writer",
			})
		}
		return nil
	})
	if err != nil {
		return nil, c.classify(ctx, "list calendars", err)
	}
	return calendars, nil
}

func (c *Client) ListEvents(ctx context.Context, cred *internal.Credential, req internal.ListRequest) ([]internal.Event, error) {
	svc, err := c.calendarSvc(ctx, cred)
	if err != nil {
		return nil, err
	}
	calID := c.calendar(req.CalendarID)

	call := svc.Events.
		List(calID).
		Context(ctx).
		ShowDeleted(false).
		SingleEvents(true).
		OrderBy("startTime").
		TimeMin(req.Window.Start.UTC().Format(time.RFC3339)).
		TimeMax(req.Window.End.UTC().Format(time.RFC3339))
	if req.Limit > 0 && req.Limit < maxPageSize {
		call = call.MaxResults(int64(req.Limit))
	}

	var (
		events        []internal.Event
		nextPageToken string
	)
	for {
		page, err := call.PageToken(nextPageToken).Do()
		if err != nil {
			return nil, c.classify(ctx, "list events", err)
		}
		for _, item := range page.Items {
			if item.Start != nil && item.Start.TimeZone == "" {
				item.Start.TimeZone = page.TimeZone
			}
			e, err := ToCanonical(item, calID, c.logger)
			if err != nil {
				c.logger.Warn("google: skipping event", "event", item.Id, "error", err)
				continue
			}
			events = append(events, e)
			if req.Limit > 0 && len(events) == req.Limit {
				return events, nil
			}
		}
		nextPageToken = page.NextPageToken
		if nextPageToken == "" {
			break
		}
	}
	return events, nil
}

func (c *Client) CreateEvent(ctx context.Context, cred *internal.Credential, e internal.Event) (*internal.Event, error) {
	svc, err := c.calendarSvc(ctx, cred)
	if err != nil {
		return nil, err
	}
	calID := c.calendar(e.CalendarID)

	payload := FromCanonical(e)
	payload.Id = ""
	payload.HtmlLink = ""

	gevent, err := svc.Events.Insert(calID, payload).Context(ctx).Do()
	if err != nil {
		return nil, c.classify(ctx, "create event", err)
	}
	return c.canonical(gevent, calID)
}

func (c *Client) UpdateEvent(ctx context.Context, cred *internal.Credential, id string, p internal.EventPatch) (*internal.Event, error) {
	svc, err := c.calendarSvc(ctx, cred)
	if err != nil {
		return nil, err
	}
	calID := c.calendar(p.CalendarID)

	gevent, err := svc.Events.Patch(calID, id, patchEvent(p)).Context(ctx).Do()
	if err != nil {
		return nil, c.classify(ctx, "update event", err)
	}
	return c.canonical(gevent, calID)
}

// DeleteEvent reports an event that is gone as a not found error, so a
// repeated delete is never mistaken for a success.
func (c *Client) DeleteEvent(ctx context.Context, cred *internal.Credential, id, calendarID string) error {
	svc, err := c.calendarSvc(ctx, cred)
	if err != nil {
		return err
	}
	err = svc.Events.Delete(c.calendar(calendarID), id).Context(ctx).Do()
	if err != nil {
		return c.classify(ctx, "delete event", err)
	}
	return nil
}

// QueryFreeBusy always includes the owner's calendar next to the requested
// emails. A calendar the provider could not resolve is logged and skipped.
func (c *Client) QueryFreeBusy(ctx context.Context, cred *internal.Credential, req internal.FreeBusyRequest) ([]internal.Interval, error) {
	svc, err := c.calendarSvc(ctx, cred)
	if err != nil {
		return nil, err
	}

	items := []*calendar.FreeBusyRequestItem{{Id: c.calendarID}}
	for _, email := range req.Emails {
		items = append(items, &calendar.FreeBusyRequestItem{Id: email})
	}
	res, err := svc.Freebusy.Query(&calendar.FreeBusyRequest{
		TimeMin: req.Window.Start.UTC().Format(time.RFC3339),
		TimeMax: req.Window.End.UTC().Format(time.RFC3339),
		Items:   items,
	}).Context(ctx).Do()
	if err != nil {
		return nil, c.classify(ctx, "free busy", err)
	}

	var busy []internal.Interval
	for id, cal := range res.Calendars {
		for _, e := range cal.Errors {
			c.logger.Warn("google: free busy unavailable", "calendar", id, "reason", e.Reason)
		}
		for _, period := range cal.Busy {
			start, end, err := timedInterval(period.Start, period.End)
			if err != nil {
				c.logger.Warn("google: skipping busy period", "calendar", id, "error", err)
				continue
			}
			busy = append(busy, internal.Interval{Start: start, End: end})
		}
	}
	return busy, nil
}

func (c *Client) canonical(gevent *calendar.Event, calID string) (*internal.Event, error) {
	e, err := ToCanonical(gevent, calID, c.logger)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (c *Client) calendar(id string) string {
	if id == "" {
		return c.calendarID
	}
	return id
}

func (c *Client) calendarSvc(ctx context.Context, cred *internal.Credential) (*calendar.Service, error) {
	if cred == nil || cred.AccessToken == "" {
		return nil, internal.Authenticationf("google", nil, "missing access token")
	}
	tok := &oauth2.Token{
		AccessToken: cred.AccessToken,
		TokenType:   "Bearer",
		Expiry:      cred.Expiry,
	}
	httpClient := oauth2.NewClient(context.WithValue(ctx, oauth2.HTTPClient, c.httpClient), oauth2.StaticTokenSource(tok))

	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if c.endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.endpoint))
	}
	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, internal.NewError(internal.KindPermanent, "google", "creating calendar service", err)
	}
	return svc, nil
}

// classify turns a Google API failure into a classified error. Rate limit
// reasons come back as 403 and are treated as transient.
func (c *Client) classify(ctx context.Context, op string, err error) error {
	var gErr *googleapi.Error
	if !errors.As(err, &gErr) {
		return internal.TransportError(ctx, "google: "+op, err)
	}

	var retryAfter time.Duration
	if gErr.Header != nil {
		retryAfter = internal.ParseRetryAfter(gErr.Header.Get("Retry-After"), c.now())
	}
	classified := internal.ProviderError("google: "+op, gErr.Code, retryAfter, gErr.Message, err)
	if isRateLimited(gErr) {
		classified.Kind = internal.KindTransient
	}
	c.logger.Debug("google: request failed", "op", op, "status", gErr.Code, "kind", classified.Kind)
	return classified
}

func isRateLimited(gErr *googleapi.Error) bool {
	for _, item := range gErr.Errors {
		switch item.Reason {
		case "rateLimitExceeded", "userRateLimitExceeded":
			return true
		}
	}
	return false
}
