// Package orchestrator is the caller facing side of the engine: it resolves
// provider and credential, runs the gateway call and records the outcome.
package orchestrator

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/guilherme-santos/calgateway/internal"
	"github.com/guilherme-santos/calgateway/internal/availability"
)

type (
	Mux      = internal.Mux
	Event    = internal.Event
	Interval = internal.Interval
)

// Credentials hands out usable access tokens per (user, provider) pair.
type Credentials interface {
	Credential(_ context.Context, userID string, _ internal.Provider) (*internal.Credential, error)
	ForceRefresh(_ context.Context, userID string, _ internal.Provider, stale *internal.Credential) (*internal.Credential, error)
}

// AuditLog persists one record per orchestrated call.
type AuditLog interface {
	AppendAuditRecord(context.Context, internal.AuditRecord) error
}

const (
	DefaultListLimit    = 250
	DefaultAuditTimeout = 5 * time.Second
)

type Orchestrator struct {
	mux    Mux
	creds  Credentials
	audit  AuditLog
	logger *slog.Logger
	now    internal.Clock
	wg     sync.WaitGroup

	DefaultCalendarID string
	ListLimit         int
	// Policy is used by FindFreeSlots when the caller passes none.
	Policy       availability.WorkingHoursPolicy
	AuditTimeout time.Duration
}

func New(mux Mux, creds Credentials, audit AuditLog, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		mux:               mux,
		creds:             creds,
		audit:             audit,
		logger:            internal.LoggerOrDiscard(logger),
		now:               time.Now,
		DefaultCalendarID: "primary",
		ListLimit:         DefaultListLimit,
		Policy:            availability.DefaultPolicy(time.UTC),
		AuditTimeout:      DefaultAuditTimeout,
	}
}

// SetClock replaces the wall clock used for audit timestamps and slot search.
func (o *Orchestrator) SetClock(now internal.Clock) {
	o.now = now
}

// Wait blocks until every pending audit write has finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// ListCalendars returns the calendars the account can see, audited as a list.
func (o *Orchestrator) ListCalendars(ctx context.Context, userID, provider string) ([]internal.Calendar, error) {
	rec := internal.AuditRecord{Action: internal.ActionList}

	var calendars []internal.Calendar
	err := o.run(ctx, userID, provider, &rec, func() error { return nil }, func(gw internal.Gateway, cred *internal.Credential) (err error) {
		calendars, err = gw.ListCalendars(ctx, cred)
		return err
	})
	if err != nil {
		return nil, err
	}
	return calendars, nil
}

func (o *Orchestrator) ListEvents(ctx context.Context, userID, provider string, window Interval, calendarID string) ([]Event, error) {
	rec := internal.AuditRecord{Action: internal.ActionList}
	rec.Start, rec.End = timeRange(window)

	var events []Event
	err := o.run(ctx, userID, provider, &rec, window.Validate, func(gw internal.Gateway, cred *internal.Credential) (err error) {
		events, err = gw.ListEvents(ctx, cred, internal.ListRequest{
			Window:     window.UTC(),
			CalendarID: o.calendar(calendarID),
			Limit:      o.ListLimit,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// FindFreeSlots combines the owner's busy time with the attendees' and
// searches it for slots of at least duration. A policy without days falls
// back to the orchestrator's default policy.
func (o *Orchestrator) FindFreeSlots(ctx context.Context, userID, provider string, window Interval, duration time.Duration, policy availability.WorkingHoursPolicy, attendees ...string) ([]availability.FreeSlot, error) {
	rec := internal.AuditRecord{Action: internal.ActionAvailability}
	rec.Start, rec.End = timeRange(window)

	if len(policy.Days) == 0 {
		policy = o.Policy
	}
	validate := func() error {
		if err := window.Validate(); err != nil {
			return err
		}
		if duration <= 0 {
			return internal.Validationf("availability", "duration must be positive")
		}
		if err := policy.Validate(); err != nil {
			return err
		}
		for _, email := range attendees {
			if _, err := internal.ParseEmail(email); err != nil {
				return err
			}
		}
		return nil
	}

	var slots []availability.FreeSlot
	err := o.run(ctx, userID, provider, &rec, validate, func(gw internal.Gateway, cred *internal.Credential) error {
		busy, err := gw.QueryFreeBusy(ctx, cred, internal.FreeBusyRequest{Window: window.UTC(), Emails: attendees})
		if err != nil {
			return err
		}
		slots, err = availability.Calculator{Now: o.now}.FindFreeSlots(window, duration, busy, policy)
		return err
	})
	if err != nil {
		return nil, err
	}
	return slots, nil
}

func (o *Orchestrator) CreateEvent(ctx context.Context, userID, provider string, e Event) (*Event, error) {
	rec := internal.AuditRecord{Action: internal.ActionCreate, EventTitle: e.Title}
	rec.Start, rec.End = timeRange(e.Interval())

	e.Start, e.End = e.Start.UTC(), e.End.UTC()
	e.CalendarID = o.calendar(e.CalendarID)

	var created *Event
	err := o.run(ctx, userID, provider, &rec, e.Validate, func(gw internal.Gateway, cred *internal.Credential) (err error) {
		created, err = gw.CreateEvent(ctx, cred, e)
		if err == nil {
			rec.EventID = created.ID
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateEvent changes only the fields set on patch.
func (o *Orchestrator) UpdateEvent(ctx context.Context, userID, provider, eventID string, patch internal.EventPatch) (*Event, error) {
	rec := internal.AuditRecord{Action: internal.ActionUpdate, EventID: eventID}
	if patch.Title != nil {
		rec.EventTitle = *patch.Title
	}
	if patch.Interval != nil {
		rec.Start, rec.End = timeRange(*patch.Interval)
		utc := patch.Interval.UTC()
		patch.Interval = &utc
	}
	patch.CalendarID = o.calendar(patch.CalendarID)

	validate := func() error {
		if strings.TrimSpace(eventID) == "" {
			return internal.Validationf("event", "event id is required")
		}
		if patch.IsEmpty() {
			return internal.Validationf("event", "nothing to update")
		}
		return patch.Validate()
	}

	var updated *Event
	err := o.run(ctx, userID, provider, &rec, validate, func(gw internal.Gateway, cred *internal.Credential) (err error) {
		updated, err = gw.UpdateEvent(ctx, cred, eventID, patch)
		if err == nil {
			rec.EventTitle = updated.Title
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// RescheduleEvent moves an event to a new interval, leaving everything else as is.
func (o *Orchestrator) RescheduleEvent(ctx context.Context, userID, provider, eventID string, iv Interval) (*Event, error) {
	return o.UpdateEvent(ctx, userID, provider, eventID, internal.EventPatch{Interval: &iv})
}

// CancelEvent deletes the event from calendarID, the default calendar when empty.
func (o *Orchestrator) CancelEvent(ctx context.Context, userID, provider, eventID, calendarID string) (bool, error) {
	rec := internal.AuditRecord{Action: internal.ActionDelete, EventID: eventID}

	validate := func() error {
		if strings.TrimSpace(eventID) == "" {
			return internal.Validationf("event", "event id is required")
		}
		return nil
	}
	err := o.run(ctx, userID, provider, &rec, validate, func(gw internal.Gateway, cred *internal.Credential) error {
		return gw.DeleteEvent(ctx, cred, eventID, o.calendar(calendarID))
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// run validates locally, resolves gateway and credential, and performs call.
// A call rejected for its credential is replayed once with a refreshed one.
// Whatever happens, exactly one audit record is emitted.
func (o *Orchestrator) run(
	ctx context.Context,
	userID, providerName string,
	rec *internal.AuditRecord,
	validate func() error,
	call func(internal.Gateway, *internal.Credential) error,
) (err error) {
	rec.UserID = userID
	defer func() {
		o.emit(ctx, *rec, err)
	}()

	p, err := internal.ParseProvider(providerName)
	if err != nil {
		return err
	}
	rec.Provider = p

	if strings.TrimSpace(userID) == "" {
		return internal.Validationf("orchestrator", "user id is required")
	}
	if err := validate(); err != nil {
		return err
	}

	gw, err := o.mux.Get(p)
	if err != nil {
		return err
	}
	cred, err := o.creds.Credential(ctx, userID, p)
	if err != nil {
		return err
	}

	err = call(gw, cred)
	if internal.KindOf(err) != internal.KindAuthentication || ctx.Err() != nil {
		return err
	}

	o.logger.Info("orchestrator: credential rejected, refreshing once", append(internal.AccountAttrs(internal.Account{UserID: userID, Provider: p}), "error", err)...)
	cred, err = o.creds.ForceRefresh(ctx, userID, p, cred)
	if err != nil {
		return err
	}
	return call(gw, cred)
}

// emit writes rec in the background. A failed write is only logged.
func (o *Orchestrator) emit(ctx context.Context, rec internal.AuditRecord, callErr error) {
	rec.ID = uuid.NewString()
	rec.CreatedAt = o.now().UTC()
	rec.Success = callErr == nil
	if callErr != nil {
		rec.Error = callErr.Error()
	}
	if o.audit == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.AuditTimeout)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer cancel()

		if err := o.audit.AppendAuditRecord(ctx, rec); err != nil {
			o.logger.Error("orchestrator: writing audit record",
				"user", rec.UserID, "provider", rec.Provider.String(), "action", rec.Action, "error", err)
		}
	}()
}

func (o *Orchestrator) calendar(id string) string {
	if id == "" {
		return o.DefaultCalendarID
	}
	return id
}

func timeRange(iv Interval) (*time.Time, *time.Time) {
	if iv.Start.IsZero() || iv.End.IsZero() {
		return nil, nil
	}
	start, end := iv.Start.UTC(), iv.End.UTC()
	return &start, &end
}
