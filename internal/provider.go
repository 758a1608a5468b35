package internal

import (
	"context"
	"strings"
	"time"
)

// Provider is the closed set of supported calendar providers.
type Provider int

const (
	ProviderGoogle Provider = iota + 1
	ProviderMicrosoft
)

func (p Provider) String() string {
	switch p {
	case ProviderGoogle:
		return "google"
	case ProviderMicrosoft:
		return "microsoft"
	default:
		return "unknown"
	}
}

// ParseProvider is the only place a provider name is compared as a string.
func ParseProvider(s string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "google":
		return ProviderGoogle, nil
	case "microsoft":
		return ProviderMicrosoft, nil
	}
	return 0, Validationf("provider", "unsupported provider %q", s)
}

type Mux interface {
	Get(Provider) (Gateway, error)
}

type ListRequest struct {
	Window     Interval
	CalendarID string
	Limit      int
}

type FreeBusyRequest struct {
	Window Interval
	// Emails of the calendars to query, empty means the owner's calendar.
	Emails []string
}

// Calendar is one calendar visible to the account.
type Calendar struct {
	ID       string
	Name     string
	TimeZone string
	Primary  bool
	CanEdit  bool
}

// Gateway is implemented by every provider adapter. Errors are classified
// with *Error so callers never inspect transport details.
type Gateway interface {
	ListCalendars(_ context.Context, _ *Credential) ([]Calendar, error)
	ListEvents(_ context.Context, _ *Credential, _ ListRequest) ([]Event, error)
	CreateEvent(_ context.Context, _ *Credential, _ Event) (*Event, error)
	UpdateEvent(_ context.Context, _ *Credential, id string, _ EventPatch) (*Event, error)
	DeleteEvent(_ context.Context, _ *Credential, id, calendarID string) error
	QueryFreeBusy(_ context.Context, _ *Credential, _ FreeBusyRequest) ([]Interval, error)
}

// Clock is injected wherever the current time matters.
type Clock func() time.Time
