package google

import (
	"log/slog"
	"time"

	"google.golang.org/api/calendar/v3"

	"github.com/guilherme-santos/calgateway/internal"
)

// ToCanonical maps a Google event. A broken attendee is logged and dropped,
// only an event without usable start and end fails as a whole.
func ToCanonical(ev *calendar.Event, calendarID string, logger *slog.Logger) (internal.Event, error) {
	logger = internal.LoggerOrDiscard(logger)

	if ev == nil || ev.Start == nil || ev.End == nil {
		return internal.Event{}, internal.NewError(internal.KindPartialMapping, "google: event", "start and end are required", nil)
	}

	e := internal.Event{
		ID:          ev.Id,
		CalendarID:  calendarID,
		Title:       ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		TimeZone:    internal.NormalizeTimeZone(ev.Start.TimeZone),
		WebLink:     ev.HtmlLink,
		Status:      internal.ParseEventStatus(ev.Status),
	}

	var err error
	if ev.Start.Date != "" {
		e.AllDay = true
		e.Start, e.End, err = allDayInterval(ev.Start.Date, ev.End.Date, e.Zone())
	} else {
		e.Start, e.End, err = timedInterval(ev.Start.DateTime, ev.End.DateTime)
	}
	if err != nil {
		return internal.Event{}, internal.NewError(internal.KindPartialMapping, "google: event "+ev.Id, "invalid time", err)
	}

	for _, a := range ev.Attendees {
		if a == nil {
			continue
		}
		email, err := internal.ParseEmail(a.Email)
		if err != nil {
			logger.Warn("google: skipping attendee", "event", ev.Id, "error", err)
			continue
		}
		e.Attendees = append(e.Attendees, internal.Attendee{
			Email:          email,
			Name:           a.DisplayName,
			ResponseStatus: responseStatus(a.ResponseStatus),
		})
	}
	return e, nil
}

// The end date of an all-day event is exclusive, the canonical end is the
// last second of the previous day.
func allDayInterval(start, end string, loc *time.Location) (time.Time, time.Time, error) {
	s, err := internal.ParseDate(start, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	e := s.AddDate(0, 0, 1)
	if end != "" {
		if e, err = internal.ParseDate(end, loc); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	return s.UTC(), e.AddDate(0, 0, -1).EndOfDay().UTC(), nil
}

func timedInterval(start, end string) (time.Time, time.Time, error) {
	s, err := time.Parse(time.RFC3339, start)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	e, err := time.Parse(time.RFC3339, end)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return s.UTC(), e.UTC(), nil
}

func responseStatus(s string) internal.ResponseStatus {
	switch rs := internal.ResponseStatus(s); rs {
	case internal.NeedsAction, internal.Declined, internal.Tentative, internal.Accepted:
		return rs
	}
	return ""
}

// FromCanonical builds the Google payload of e.
func FromCanonical(e internal.Event) *calendar.Event {
	ev := &calendar.Event{
		Id:          e.ID,
		Summary:     e.Title,
		Description: e.Description,
		Location:    e.Location,
		HtmlLink:    e.WebLink,
		Status:      e.Status.String(),
		Reminders: &calendar.EventReminders{
			UseDefault: true,
		},
	}
	ev.Start, ev.End = eventDateTimes(e.Start, e.End, e.TimeZone, e.AllDay)
	for _, a := range e.Attendees {
		ev.Attendees = append(ev.Attendees, &calendar.EventAttendee{
			Email:          a.Email,
			DisplayName:    a.Name,
			ResponseStatus: a.ResponseStatus.String(),
		})
	}
	return ev
}

func eventDateTimes(start, end time.Time, tz string, allDay bool) (*calendar.EventDateTime, *calendar.EventDateTime) {
	tz = internal.ZoneName(tz)
	loc := internal.LoadLocation(tz)
	if allDay {
		return &calendar.EventDateTime{
				Date:     start.In(loc).Format(internal.DateFormat),
				TimeZone: tz,
			}, &calendar.EventDateTime{
				Date:     internal.NewDateFromTime(end.In(loc)).AddDate(0, 0, 1).String(),
				TimeZone: tz,
			}
	}
	return &calendar.EventDateTime{
			DateTime: start.In(loc).Format(time.RFC3339),
			TimeZone: tz,
		}, &calendar.EventDateTime{
			DateTime: end.In(loc).Format(time.RFC3339),
			TimeZone: tz,
		}
}

// patchEvent only carries the fields set on p.
func patchEvent(p internal.EventPatch) *calendar.Event {
	ev := &calendar.Event{}
	if p.Title != nil {
		ev.Summary = *p.Title
	}
	if p.Description != nil {
		ev.Description = *p.Description
		ev.ForceSendFields = append(ev.ForceSendFields, "Description")
	}
	if p.Location != nil {
		ev.Location = *p.Location
		ev.ForceSendFields = append(ev.ForceSendFields, "Location")
	}
	if p.Status != nil {
		ev.Status = p.Status.String()
	}
	if p.Interval != nil {
		var tz string
		if p.TimeZone != nil {
			tz = *p.TimeZone
		}
		ev.Start, ev.End = eventDateTimes(p.Interval.Start, p.Interval.End, tz, false)
	}
	if p.Attendees != nil {
		ev.Attendees = []*calendar.EventAttendee{}
		for _, a := range p.Attendees {
			ev.Attendees = append(ev.Attendees, &calendar.EventAttendee{
				Email:          a.Email,
				DisplayName:    a.Name,
				ResponseStatus: a.ResponseStatus.String(),
			})
		}
		ev.ForceSendFields = append(ev.ForceSendFields, "Attendees")
	}
	return ev
}
