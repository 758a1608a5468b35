package internal

import (
	"net/mail"
	"strings"
	"time"
)

// Event is the provider-agnostic calendar event. Start and End are kept in UTC,
// TimeZone only records how the event is displayed on its calendar.
type Event struct {
	ID          string
	CalendarID  string
	Title       string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	TimeZone    string
	AllDay      bool
	Attendees   []Attendee
	WebLink     string
	Status      EventStatus
}

// Interval returns the [Start, End) range of the event.
func (e Event) Interval() Interval {
	return Interval{Start: e.Start, End: e.End}
}

// Zone loads the event time zone, falling back to UTC.
func (e Event) Zone() *time.Location {
	return LoadLocation(e.TimeZone)
}

// Validate rejects events that must never reach a provider.
func (e Event) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return Validationf("event", "title is required")
	}
	if err := e.Interval().Validate(); err != nil {
		return err
	}
	for _, a := range e.Attendees {
		if err := a.Validate(); err != nil {
			return err
		}
	}
	return nil
}

type EventStatus string

func (s EventStatus) String() string {
	return string(s)
}

const (
	StatusConfirmed EventStatus = "confirmed"
	StatusTentative EventStatus = "tentative"
	StatusCancelled EventStatus = "cancelled"
)

// ParseEventStatus maps an arbitrary provider value, anything unknown is confirmed.
func ParseEventStatus(s string) EventStatus {
	switch EventStatus(strings.ToLower(s)) {
	case StatusTentative:
		return StatusTentative
	case StatusCancelled:
		return StatusCancelled
	default:
		return StatusConfirmed
	}
}

type Attendee struct {
	Email          string
	Name           string
	ResponseStatus ResponseStatus
}

func (a Attendee) Validate() error {
	if _, err := ParseEmail(a.Email); err != nil {
		return err
	}
	return nil
}

// ParseEmail returns the bare address when s is a single valid mailbox.
func ParseEmail(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", Validationf("attendee", "email is required")
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return "", Validationf("attendee", "invalid email %q", s)
	}
	return addr.Address, nil
}

type ResponseStatus string

func (s ResponseStatus) String() string {
	return string(s)
}

const (
	NeedsAction ResponseStatus = "needsAction"
	Declined    ResponseStatus = "declined"
	Tentative   ResponseStatus = "tentative"
	Accepted    ResponseStatus = "accepted"
)

// EventPatch carries the fields of a partial update, nil means unchanged.
type EventPatch struct {
	CalendarID  string
	Title       *string
	Description *string
	Location    *string
	Interval    *Interval
	TimeZone    *string
	Attendees   []Attendee
	Status      *EventStatus
}

func (p EventPatch) Validate() error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return Validationf("event", "title cannot be empty")
	}
	if p.Interval != nil {
		if err := p.Interval.Validate(); err != nil {
			return err
		}
	} else if p.TimeZone != nil {
		return Validationf("event", "time zone can only change together with the interval")
	}
	for _, a := range p.Attendees {
		if err := a.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (p EventPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Location == nil &&
		p.Interval == nil && p.TimeZone == nil && p.Attendees == nil && p.Status == nil
}
