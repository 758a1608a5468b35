// Package availability computes free time slots from busy intervals and a
// working hours policy. Everything here is pure and safe for concurrent use.
package availability

import (
	"slices"
	"time"

	"github.com/guilherme-santos/calgateway/internal"
)

// FreeSlot lies inside one working window, is disjoint from every busy
// interval and is at least as long as the requested duration.
type FreeSlot = internal.Interval

type Calculator struct {
	Now internal.Clock
}

// FindFreeSlots uses the wall clock to avoid proposing slots in the past.
func FindFreeSlots(window internal.Interval, duration time.Duration, busy []internal.Interval, policy WorkingHoursPolicy) ([]FreeSlot, error) {
	return Calculator{Now: time.Now}.FindFreeSlots(window, duration, busy, policy)
}

func (c Calculator) FindFreeSlots(window internal.Interval, duration time.Duration, busy []internal.Interval, policy WorkingHoursPolicy) ([]FreeSlot, error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}
	if duration <= 0 {
		return nil, internal.Validationf("availability", "duration must be positive")
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	var now time.Time
	if c.Now != nil {
		now = c.Now()
	}

	sorted := make([]internal.Interval, 0, len(busy))
	for _, b := range busy {
		if b.End.After(b.Start) {
			sorted = append(sorted, b.UTC())
		}
	}
	slices.SortFunc(sorted, func(a, b internal.Interval) int {
		return a.Start.Compare(b.Start)
	})

	loc := policy.location()
	slots := []FreeSlot{}

	// next indexes the first busy interval not yet consumed; horizon is the
	// latest end among consumed ones, it carries busy time across days.
	var (
		next    int
		horizon time.Time
	)
	lastDay := internal.NewDateFromTime(window.End.In(loc))
	for day := internal.NewDateFromTime(window.Start.In(loc)); !day.After(lastDay.Time); day = day.AddDate(0, 0, 1) {
		work, ok := policy.window(day)
		if !ok {
			continue
		}
		dayStart := latest(work.Start, window.Start, now)
		dayEnd := earliest(work.End, window.End)
		if !dayStart.Before(dayEnd) {
			continue
		}

		for next < len(sorted) && !sorted[next].Start.After(dayStart) {
			horizon = latest(horizon, sorted[next].End)
			next++
		}
		cursor := latest(dayStart, horizon)

		for next < len(sorted) && sorted[next].Start.Before(dayEnd) {
			b := sorted[next]
			if !cursor.Add(duration).After(b.Start) {
				slots = append(slots, FreeSlot{Start: cursor.UTC(), End: b.Start.UTC()})
			}
			cursor = latest(cursor, b.End)
			horizon = latest(horizon, b.End)
			next++
		}
		if !cursor.Add(duration).After(dayEnd) {
			slots = append(slots, FreeSlot{Start: cursor.UTC(), End: dayEnd.UTC()})
		}
	}
	return slots, nil
}

func latest(ts ...time.Time) time.Time {
	var m time.Time
	for _, t := range ts {
		if t.After(m) {
			m = t
		}
	}
	return m
}

func earliest(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
