package internal

import "time"

const DateFormat = "2006-01-02"

// Date is a calendar day anchored at midnight of its location.
type Date struct {
	time.Time
}

func NewDateFromTime(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day(), t.Location())
}

func NewDate(year int, month time.Month, day int, loc *time.Location) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, loc)}
}

func (d Date) AddDate(years, months, days int) Date {
	t := d.Time.AddDate(years, months, days)
	return NewDate(t.Year(), t.Month(), t.Day(), t.Location())
}

// At returns the instant at the given wall clock time on d.
func (d Date) At(hour, minute, sec int) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), hour, minute, sec, 0, d.Location())
}

// EndOfDay is the last second of d, the inclusive end of an all-day event.
func (d Date) EndOfDay() time.Time {
	return d.At(23, 59, 59)
}

func ParseDate(value string, loc *time.Location) (Date, error) {
	t, err := time.ParseInLocation(DateFormat, value, loc)
	if err != nil {
		return Date{}, err
	}
	return NewDateFromTime(t), nil
}

func (d Date) String() string {
	return d.Format(DateFormat)
}
