package availability

import (
	"fmt"
	"strings"
	"time"

	"github.com/guilherme-santos/calgateway/internal"
)

// TimeOfDay is a wall clock offset from midnight.
type TimeOfDay struct {
	Hour   int
	Minute int
}

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return TimeOfDay{}, internal.Validationf("working hours", "invalid time of day %q", s)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

func (t TimeOfDay) minutes() int {
	return t.Hour*60 + t.Minute
}

type Hours struct {
	Start TimeOfDay
	End   TimeOfDay
}

// WorkingHoursPolicy holds at most one window per weekday; a weekday without
// one is unavailable all day.
type WorkingHoursPolicy struct {
	Days     map[time.Weekday]Hours
	Location *time.Location
}

// DefaultPolicy is Monday to Friday, 09:00 to 17:00.
func DefaultPolicy(loc *time.Location) WorkingHoursPolicy {
	return Weekdays(TimeOfDay{Hour: 9}, TimeOfDay{Hour: 17}, loc)
}

func Weekdays(start, end TimeOfDay, loc *time.Location) WorkingHoursPolicy {
	p := WorkingHoursPolicy{Days: map[time.Weekday]Hours{}, Location: loc}
	for d := time.Monday; d <= time.Friday; d++ {
		p.Days[d] = Hours{Start: start, End: end}
	}
	return p
}

func (p WorkingHoursPolicy) Validate() error {
	for day, h := range p.Days {
		if h.Start.minutes() < 0 || h.End.minutes() > 24*60 {
			return internal.Validationf("working hours", "%s window out of range", day)
		}
		if h.End.minutes() <= h.Start.minutes() {
			return internal.Validationf("working hours", "%s ends at %s before it starts at %s", day, h.End, h.Start)
		}
	}
	return nil
}

func (p WorkingHoursPolicy) location() *time.Location {
	if p.Location == nil {
		return time.UTC
	}
	return p.Location
}

// window returns the working interval of day, ok is false on days off.
func (p WorkingHoursPolicy) window(day internal.Date) (internal.Interval, bool) {
	h, ok := p.Days[day.Weekday()]
	if !ok {
		return internal.Interval{}, false
	}
	return internal.Interval{
		Start: day.At(h.Start.Hour, h.Start.Minute, 0),
		End:   day.At(h.End.Hour, h.End.Minute, 0),
	}, true
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
}

// ParseWeekday accepts english names or their three letter prefix.
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) >= 3 {
		if d, ok := weekdayNames[s[:3]]; ok {
			return d, nil
		}
	}
	return 0, internal.Validationf("working hours", "unknown weekday %q", s)
}
