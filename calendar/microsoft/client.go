// Package microsoft implements the calendar gateway on top of the Microsoft
// Graph REST API.
package microsoft

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/oauth2"

	"github.com/guilherme-santos/calgateway/internal"
)

const (
	DefaultBaseURL = "https://graph.microsoft.com/v1.0"

	// Graph caps $top on calendarView.
	maxPageSize = 1000

	preferHeader = `outlook.timezone="UTC", outlook.body-content-type="text"`
)

type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *slog.Logger
	Now        internal.Clock
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	now        internal.Clock
}

var _ internal.Gateway = (*Client)(nil)

func NewClient(cfg Config) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: cfg.HTTPClient,
		logger:     internal.LoggerOrDiscard(cfg.Logger),
		now:        cfg.Now,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

type eventsPage struct {
	Value    []graphEvent `json:"value"`
	NextLink string       `json:"@odata.nextLink"`
}

type graphCalendar struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	CanEdit           bool   `json:"canEdit"`
	IsDefaultCalendar bool   `json:"isDefaultCalendar"`
}

type calendarsPage struct {
	Value    []graphCalendar `json:"value"`
	NextLink string          `json:"@odata.nextLink"`
}

// ListCalendars follows every page of the account's calendars. Graph keeps
// no zone per calendar, so TimeZone is left empty.
func (c *Client) ListCalendars(ctx context.Context, cred *internal.Credential) ([]internal.Calendar, error) {
	var calendars []internal.Calendar
	next := "/me/calendars?$select=id,name,canEdit,isDefaultCalendar"
	for next != "" {
		var page calendarsPage
		if err := c.do(ctx, cred, "list calendars", http.MethodGet, next, nil, &page); err != nil {
			return nil, err
		}
		for _, g := range page.Value {
			calendars = append(calendars, internal.Calendar{
				ID:      g.ID,
				Name:    g.Name,
				Primary: g.IsDefaultCalendar,
				CanEdit: g.CanEdit,
			})
		}
		next = page.NextLink
	}
	return calendars, nil
}

func (c *Client) ListEvents(ctx context.Context, cred *internal.Credential, req internal.ListRequest) ([]internal.Event, error) {
	graphEvents, err := c.calendarView(ctx, cred, req.CalendarID, req.Window, req.Limit)
	if err != nil {
		return nil, err
	}
	events := make([]internal.Event, 0, len(graphEvents))
	for _, g := range graphEvents {
		e, err := ToCanonical(g, calendarName(req.CalendarID), c.logger)
		if err != nil {
			c.logger.Warn("microsoft: skipping event", "event", g.ID, "error", err)
			continue
		}
		events = append(events, e)
	}
	return events, nil
}

func (c *Client) calendarView(ctx context.Context, cred *internal.Credential, calendarID string, window internal.Interval, limit int) ([]graphEvent, error) {
	params := url.Values{}
	params.Set("startDateTime", window.Start.UTC().Format(time.RFC3339))
	params.Set("endDateTime", window.End.UTC().Format(time.RFC3339))
	params.Set("$orderby", "start/dateTime")
	top := maxPageSize
	if limit > 0 && limit < top {
		top = limit
	}
	params.Set("$top", strconv.Itoa(top))

	next := calendarPath(calendarID) + "/calendarView?" + params.Encode()
	var events []graphEvent
	for next != "" {
		var page eventsPage
		if err := c.do(ctx, cred, "list events", http.MethodGet, next, nil, &page); err != nil {
			return nil, err
		}
		for _, g := range page.Value {
			events = append(events, g)
			if limit > 0 && len(events) == limit {
				return events, nil
			}
		}
		next = page.NextLink
	}
	return events, nil
}

func (c *Client) CreateEvent(ctx context.Context, cred *internal.Credential, e internal.Event) (*internal.Event, error) {
	payload := FromCanonical(e)
	payload.ID = ""
	payload.WebLink = ""
	payload.IsCancelled = false

	var created graphEvent
	if err := c.do(ctx, cred, "create event", http.MethodPost, calendarPath(e.CalendarID)+"/events", payload, &created); err != nil {
		return nil, err
	}
	return c.canonical(created, calendarName(e.CalendarID))
}

// UpdateEvent patches the set fields of p. Graph has no writable cancelled
// state, a cancelled status goes through the cancel action once the other
// fields are applied.
func (c *Client) UpdateEvent(ctx context.Context, cred *internal.Credential, id string, p internal.EventPatch) (*internal.Event, error) {
	path := calendarPath(p.CalendarID) + "/events/" + url.PathEscape(id)
	cancel := p.Status != nil && *p.Status == internal.StatusCancelled
	if cancel {
		p.Status = nil
	}

	var updated graphEvent
	switch {
	case !p.IsEmpty():
		if err := c.do(ctx, cred, "update event", http.MethodPatch, path, patchEvent(p), &updated); err != nil {
			return nil, err
		}
	case cancel:
		if err := c.do(ctx, cred, "get event", http.MethodGet, path, nil, &updated); err != nil {
			return nil, err
		}
	}
	if cancel {
		if err := c.do(ctx, cred, "cancel event", http.MethodPost, path+"/cancel", cancelRequest{}, nil); err != nil {
			return nil, err
		}
		updated.IsCancelled = true
	}
	return c.canonical(updated, calendarName(p.CalendarID))
}

type cancelRequest struct {
	Comment string `json:"comment,omitempty"`
}

func (c *Client) DeleteEvent(ctx context.Context, cred *internal.Credential, id, calendarID string) error {
	path := calendarPath(calendarID) + "/events/" + url.PathEscape(id)
	return c.do(ctx, cred, "delete event", http.MethodDelete, path, nil, nil)
}

type scheduleRequest struct {
	Schedules                []string      `json:"schedules"`
	StartTime                graphDateTime `json:"startTime"`
	EndTime                  graphDateTime `json:"endTime"`
	AvailabilityViewInterval int           `json:"availabilityViewInterval"`
}

type scheduleResponse struct {
	Value []struct {
		ScheduleID    string `json:"scheduleId"`
		ScheduleItems []struct {
			Status string        `json:"status"`
			Start  graphDateTime `json:"start"`
			End    graphDateTime `json:"end"`
		} `json:"scheduleItems"`
		Error *struct {
			Message      string `json:"message"`
			ResponseCode string `json:"responseCode"`
		} `json:"error"`
	} `json:"value"`
}

// QueryFreeBusy reads the owner's busy time from the calendar view and the
// attendees' from getSchedule. Schedules Graph cannot resolve are skipped.
func (c *Client) QueryFreeBusy(ctx context.Context, cred *internal.Credential, req internal.FreeBusyRequest) ([]internal.Interval, error) {
	own, err := c.calendarView(ctx, cred, "", req.Window, 0)
	if err != nil {
		return nil, err
	}
	var busy []internal.Interval
	for _, g := range own {
		if g.IsCancelled || g.ShowAs == "free" {
			continue
		}
		e, err := ToCanonical(g, "", c.logger)
		if err != nil {
			c.logger.Warn("microsoft: skipping event", "event", g.ID, "error", err)
			continue
		}
		busy = append(busy, e.Interval())
	}
	if len(req.Emails) == 0 {
		return busy, nil
	}

	body := scheduleRequest{
		Schedules:                req.Emails,
		StartTime:                graphDateTime{DateTime: req.Window.Start.UTC().Format(graphDateTimeFormat), TimeZone: "UTC"},
		EndTime:                  graphDateTime{DateTime: req.Window.End.UTC().Format(graphDateTimeFormat), TimeZone: "UTC"},
		AvailabilityViewInterval: 30,
	}
	var res scheduleResponse
	if err := c.do(ctx, cred, "free busy", http.MethodPost, "/me/calendar/getSchedule", body, &res); err != nil {
		return nil, err
	}
	for _, schedule := range res.Value {
		if schedule.Error != nil {
			c.logger.Warn("microsoft: free busy unavailable", "schedule", schedule.ScheduleID, "reason", schedule.Error.ResponseCode)
			continue
		}
		for _, item := range schedule.ScheduleItems {
			if item.Status == "free" {
				continue
			}
			start, err := parseDateTime(item.Start)
			if err != nil {
				c.logger.Warn("microsoft: skipping schedule item", "schedule", schedule.ScheduleID, "error", err)
				continue
			}
			end, err := parseDateTime(item.End)
			if err != nil {
				c.logger.Warn("microsoft: skipping schedule item", "schedule", schedule.ScheduleID, "error", err)
				continue
			}
			busy = append(busy, internal.NewInterval(start, end))
		}
	}
	return busy, nil
}

func (c *Client) canonical(g graphEvent, calendarID string) (*internal.Event, error) {
	e, err := ToCanonical(g, calendarID, c.logger)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// calendarPath addresses the default calendar unless id names another one.
func calendarPath(id string) string {
	if id == "" || id == "primary" {
		return "/me"
	}
	return "/me/calendars/" + url.PathEscape(id)
}

func calendarName(id string) string {
	if id == "" {
		return "primary"
	}
	return id
}

type graphError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// do sends one Graph request. path is relative to the base URL unless it is
// an absolute next link returned by a previous page.
func (c *Client) do(ctx context.Context, cred *internal.Credential, op, method, path string, in, out any) error {
	if cred == nil || cred.AccessToken == "" {
		return internal.Authenticationf("microsoft", nil, "missing access token")
	}
	op = "microsoft: " + op

	target := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		target = c.baseURL + path
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return internal.NewError(internal.KindPermanent, op, "encoding request", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return internal.NewError(internal.KindPermanent, op, "building request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Prefer", preferHeader)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := oauth2.NewClient(context.WithValue(ctx, oauth2.HTTPClient, c.httpClient), oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: cred.AccessToken,
		TokenType:   "Bearer",
	}))
	client.Timeout = c.httpClient.Timeout
	resp, err := client.Do(req)
	if err != nil {
		return internal.TransportError(ctx, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		detail := strings.TrimSpace(string(b))
		var gErr graphError
		if json.Unmarshal(b, &gErr) == nil && gErr.Error.Code != "" {
			detail = fmt.Sprintf("%s: %s", gErr.Error.Code, gErr.Error.Message)
		}
		retryAfter := internal.ParseRetryAfter(resp.Header.Get("Retry-After"), c.now())
		c.logger.Debug("microsoft: request failed", "op", op, "status", resp.StatusCode)
		return internal.ProviderError(op, resp.StatusCode, retryAfter, detail, nil)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return internal.NewError(internal.KindTransient, op, "decoding response", err)
	}
	return nil
}
