package microsoft

import (
	"log/slog"
	"time"

	"github.com/guilherme-santos/calgateway/internal"
)

// Graph serializes local date times with seven fractional digits and no offset.
const graphDateTimeFormat = "2006-01-02T15:04:05.0000000"

type graphEvent struct {
	ID                    string          `json:"id,omitempty"`
	Subject               string          `json:"subject,omitempty"`
	Body                  *graphBody      `json:"body,omitempty"`
	Location              *graphLocation  `json:"location,omitempty"`
	Start                 *graphDateTime  `json:"start,omitempty"`
	End                   *graphDateTime  `json:"end,omitempty"`
	OriginalStartTimeZone string          `json:"originalStartTimeZone,omitempty"`
	IsAllDay              bool            `json:"isAllDay,omitempty"`
	IsCancelled           bool            `json:"isCancelled,omitempty"`
	ShowAs                string          `json:"showAs,omitempty"`
	Attendees             []graphAttendee `json:"attendees,omitempty"`
	WebLink               string          `json:"webLink,omitempty"`
}

// graphPatch only serializes the properties being changed.
type graphPatch struct {
	Subject   *string          `json:"subject,omitempty"`
	Body      *graphBody       `json:"body,omitempty"`
	Location  *graphLocation   `json:"location,omitempty"`
	Start     *graphDateTime   `json:"start,omitempty"`
	End       *graphDateTime   `json:"end,omitempty"`
	ShowAs    *string          `json:"showAs,omitempty"`
	Attendees *[]graphAttendee `json:"attendees,omitempty"`
}

type graphBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type graphLocation struct {
	DisplayName string `json:"displayName"`
}

type graphDateTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type graphAttendee struct {
	EmailAddress *graphEmailAddress `json:"emailAddress,omitempty"`
	Type         string             `json:"type,omitempty"`
	Status       *graphResponse     `json:"status,omitempty"`
}

type graphEmailAddress struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

type graphResponse struct {
	Response string `json:"response"`
}

// ToCanonical maps a Graph event. Attendees without a usable address are
// logged and dropped.
func ToCanonical(g graphEvent, calendarID string, logger *slog.Logger) (internal.Event, error) {
	logger = internal.LoggerOrDiscard(logger)

	if g.Start == nil || g.End == nil {
		return internal.Event{}, internal.NewError(internal.KindPartialMapping, "microsoft: event", "start and end are required", nil)
	}

	// Graph reports Windows zone names, the canonical zone is IANA.
	tz := internal.NormalizeTimeZone(g.OriginalStartTimeZone)
	if tz == "" {
		tz = internal.NormalizeTimeZone(g.Start.TimeZone)
	}

	e := internal.Event{
		ID:         g.ID,
		CalendarID: calendarID,
		Title:      g.Subject,
		TimeZone:   tz,
		AllDay:     g.IsAllDay,
		WebLink:    g.WebLink,
		Status:     eventStatus(g),
	}
	if g.Body != nil {
		e.Description = g.Body.Content
	}
	if g.Location != nil {
		e.Location = g.Location.DisplayName
	}

	start, err := parseDateTime(*g.Start)
	if err != nil {
		return internal.Event{}, internal.NewError(internal.KindPartialMapping, "microsoft: event "+g.ID, "invalid start", err)
	}
	end, err := parseDateTime(*g.End)
	if err != nil {
		return internal.Event{}, internal.NewError(internal.KindPartialMapping, "microsoft: event "+g.ID, "invalid end", err)
	}
	if g.IsAllDay {
		// All-day events are floating, only their dates are meaningful.
		loc := e.Zone()
		first := internal.NewDate(start.Year(), start.Month(), start.Day(), loc)
		last := internal.NewDate(end.Year(), end.Month(), end.Day(), loc).AddDate(0, 0, -1)
		e.Start, e.End = first.UTC(), last.EndOfDay().UTC()
	} else {
		e.Start, e.End = start.UTC(), end.UTC()
	}

	for _, a := range g.Attendees {
		if a.EmailAddress == nil {
			logger.Warn("microsoft: skipping attendee without address", "event", g.ID)
			continue
		}
		email, err := internal.ParseEmail(a.EmailAddress.Address)
		if err != nil {
			logger.Warn("microsoft: skipping attendee", "event", g.ID, "error", err)
			continue
		}
		att := internal.Attendee{Email: email, Name: a.EmailAddress.Name}
		if a.Status != nil {
			att.ResponseStatus = responseStatus(a.Status.Response)
		}
		e.Attendees = append(e.Attendees, att)
	}
	return e, nil
}

func parseDateTime(dt graphDateTime) (time.Time, error) {
	loc := internal.LoadLocation(internal.NormalizeTimeZone(dt.TimeZone))
	formats := []string{graphDateTimeFormat, "2006-01-02T15:04:05"}
	var err error
	for _, format := range formats {
		var t time.Time
		if t, err = time.ParseInLocation(format, dt.DateTime, loc); err == nil {
			return t, nil
		}
	}
	return time.Parse(time.RFC3339, dt.DateTime)
}

func eventStatus(g graphEvent) internal.EventStatus {
	switch {
	case g.IsCancelled:
		return internal.StatusCancelled
	case g.ShowAs == "tentative":
		return internal.StatusTentative
	default:
		return internal.StatusConfirmed
	}
}

func responseStatus(s string) internal.ResponseStatus {
	switch s {
	case "accepted", "organizer":
		return internal.Accepted
	case "tentativelyAccepted":
		return internal.Tentative
	case "declined":
		return internal.Declined
	case "none", "notResponded":
		return internal.NeedsAction
	}
	return ""
}

func graphResponseStatus(s internal.ResponseStatus) *graphResponse {
	switch s {
	case internal.Accepted:
		return &graphResponse{Response: "accepted"}
	case internal.Tentative:
		return &graphResponse{Response: "tentativelyAccepted"}
	case internal.Declined:
		return &graphResponse{Response: "declined"}
	case internal.NeedsAction:
		return &graphResponse{Response: "notResponded"}
	}
	return nil
}

// FromCanonical builds the Graph payload of e.
func FromCanonical(e internal.Event) graphEvent {
	g := graphEvent{
		ID:          e.ID,
		Subject:     e.Title,
		IsAllDay:    e.AllDay,
		IsCancelled: e.Status == internal.StatusCancelled,
		ShowAs:      showAs(e.Status),
		Attendees:   graphAttendees(e.Attendees),
		WebLink:     e.WebLink,
	}
	if e.Description != "" {
		g.Body = &graphBody{ContentType: "text", Content: e.Description}
	}
	if e.Location != "" {
		g.Location = &graphLocation{DisplayName: e.Location}
	}
	g.Start, g.End = graphDateTimes(e.Start, e.End, e.TimeZone, e.AllDay)
	return g
}

func showAs(s internal.EventStatus) string {
	if s == internal.StatusTentative {
		return "tentative"
	}
	return "busy"
}

func graphAttendees(attendees []internal.Attendee) []graphAttendee {
	out := make([]graphAttendee, 0, len(attendees))
	for _, a := range attendees {
		out = append(out, graphAttendee{
			EmailAddress: &graphEmailAddress{Address: a.Email, Name: a.Name},
			Type:         "required",
			Status:       graphResponseStatus(a.ResponseStatus),
		})
	}
	return out
}

func graphDateTimes(start, end time.Time, tz string, allDay bool) (*graphDateTime, *graphDateTime) {
	tz = internal.ZoneName(tz)
	loc := internal.LoadLocation(tz)
	if allDay {
		first := internal.NewDateFromTime(start.In(loc))
		next := internal.NewDateFromTime(end.In(loc)).AddDate(0, 0, 1)
		return &graphDateTime{DateTime: first.Format(graphDateTimeFormat), TimeZone: tz},
			&graphDateTime{DateTime: next.Format(graphDateTimeFormat), TimeZone: tz}
	}
	return &graphDateTime{DateTime: start.In(loc).Format(graphDateTimeFormat), TimeZone: tz},
		&graphDateTime{DateTime: end.In(loc).Format(graphDateTimeFormat), TimeZone: tz}
}

func patchEvent(p internal.EventPatch) graphPatch {
	var g graphPatch
	g.Subject = p.Title
	if p.Description != nil {
		g.Body = &graphBody{ContentType: "text", Content: *p.Description}
	}
	if p.Location != nil {
		g.Location = &graphLocation{DisplayName: *p.Location}
	}
	if p.Interval != nil {
		var tz string
		if p.TimeZone != nil {
			tz = *p.TimeZone
		}
		g.Start, g.End = graphDateTimes(p.Interval.Start, p.Interval.End, tz, false)
	}
	if p.Status != nil {
		s := showAs(*p.Status)
		g.ShowAs = &s
	}
	if p.Attendees != nil {
		attendees := graphAttendees(p.Attendees)
		g.Attendees = &attendees
	}
	return g
}
