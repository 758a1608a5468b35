// Package retry decorates a calendar gateway with bounded exponential backoff
// on transient failures.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/guilherme-santos/calgateway/internal"
)

// Policy mirrors an exponential wait of multiplier * 2^(attempt-1), clamped
// to [MinDelay, MaxDelay].
type Policy struct {
	MaxAttempts int
	MinDelay    time.Duration
	MaxDelay    time.Duration
	Multiplier  time.Duration
}

var DefaultPolicy = Policy{
	MaxAttempts: 5,
	MinDelay:    4 * time.Second,
	MaxDelay:    10 * time.Second,
	Multiplier:  time.Second,
}

// Backoff returns the wait after the given failed attempt, counting from 1.
func (p Policy) Backoff(attempt int) time.Duration {
	d := p.Multiplier
	for i := 1; i < attempt && d < p.MaxDelay; i++ {
		d *= 2
	}
	if d < p.MinDelay {
		d = p.MinDelay
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

type Option func(*Gateway)

func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) {
		g.logger = internal.LoggerOrDiscard(l)
	}
}

// WithSleep replaces the wait between attempts, it must return ctx.Err()
// when ctx is done first.
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(g *Gateway) {
		g.sleep = sleep
	}
}

// Gateway retries the calls of the wrapped gateway.
type Gateway struct {
	next   internal.Gateway
	policy Policy
	logger *slog.Logger
	sleep  func(context.Context, time.Duration) error
}

var _ internal.Gateway = (*Gateway)(nil)

func New(next internal.Gateway, policy Policy, opts ...Option) *Gateway {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	g := &Gateway{
		next:   next,
		policy: policy,
		logger: internal.LoggerOrDiscard(nil),
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// do runs fn until it succeeds, fails with anything but a transient error,
// ctx is done or the attempts are exhausted.
func (g *Gateway) do(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 1; ; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		err = fn()
		if err == nil || !internal.IsTransient(err) {
			return err
		}
		if attempt == g.policy.MaxAttempts {
			break
		}

		wait := internal.RetryAfterOf(err)
		if wait <= 0 {
			wait = g.policy.Backoff(attempt)
		}
		g.logger.Warn("retry: transient failure", "op", op, "attempt", attempt, "wait", wait, "error", err)
		if err := g.sleep(ctx, wait); err != nil {
			return err
		}
	}
	return &internal.Error{
		Kind:    internal.KindTransient,
		Op:      op,
		Message: fmt.Sprintf("operation failed after %d attempts", g.policy.MaxAttempts),
		Err:     err,
	}
}

func (g *Gateway) ListCalendars(ctx context.Context, cred *internal.Credential) ([]internal.Calendar, error) {
	var calendars []internal.Calendar
	err := g.do(ctx, "list calendars", func() (err error) {
		calendars, err = g.next.ListCalendars(ctx, cred)
		return err
	})
	return calendars, err
}

func (g *Gateway) ListEvents(ctx context.Context, cred *internal.Credential, req internal.ListRequest) ([]internal.Event, error) {
	var events []internal.Event
	err := g.do(ctx, "list events", func() (err error) {
		events, err = g.next.ListEvents(ctx, cred, req)
		return err
	})
	return events, err
}

func (g *Gateway) CreateEvent(ctx context.Context, cred *internal.Credential, e internal.Event) (*internal.Event, error) {
	var created *internal.Event
	err := g.do(ctx, "create event", func() (err error) {
		created, err = g.next.CreateEvent(ctx, cred, e)
		return err
	})
	return created, err
}

func (g *Gateway) UpdateEvent(ctx context.Context, cred *internal.Credential, id string, p internal.EventPatch) (*internal.Event, error) {
	var updated *internal.Event
	err := g.do(ctx, "update event", func() (err error) {
		updated, err = g.next.UpdateEvent(ctx, cred, id, p)
		return err
	})
	return updated, err
}

func (g *Gateway) DeleteEvent(ctx context.Context, cred *internal.Credential, id, calendarID string) error {
	return g.do(ctx, "delete event", func() error {
		return g.next.DeleteEvent(ctx, cred, id, calendarID)
	})
}

func (g *Gateway) QueryFreeBusy(ctx context.Context, cred *internal.Credential, req internal.FreeBusyRequest) ([]internal.Interval, error) {
	var busy []internal.Interval
	err := g.do(ctx, "free busy", func() (err error) {
		busy, err = g.next.QueryFreeBusy(ctx, cred, req)
		return err
	})
	return busy, err
}
