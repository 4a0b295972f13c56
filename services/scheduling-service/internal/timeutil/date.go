package timeutil

import (
	"fmt"
	"time"
)

// MinutesPerDay is the exclusive upper bound for a minute-of-day value.
// A window ending at MinutesPerDay ends exactly at the next local midnight,
// which avoids the 1-second gap a 23:59:59 sentinel would leave.
const MinutesPerDay = 24 * 60

// Date is a calendar date with no timezone attached. Entities store dates
// and minute-of-day pairs; conversion to absolute instants happens only
// through At, with an explicit location.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func DateOf(t time.Time) Date {
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
	}
	return DateOf(t), nil
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// At returns the instant at the given minute of day in loc. minute may be
// MinutesPerDay, meaning midnight at the start of the following day.
// Around DST gaps time.Date normalizes nonexistent wall times forward.
func (d Date) At(minute int, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, minute, 0, 0, loc)
}

func (d Date) Weekday() time.Weekday {
	return d.At(12*60, time.UTC).Weekday()
}

func (d Date) AddDays(n int) Date {
	return DateOf(d.At(12*60, time.UTC).AddDate(0, 0, n))
}

func (d Date) Before(o Date) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

func (d Date) After(o Date) bool {
	return o.Before(d)
}

func (d Date) Equal(o Date) bool {
	return d == o
}

// DaysUntil returns the number of calendar days from d to o (negative if o
// precedes d).
func (d Date) DaysUntil(o Date) int {
	a := d.At(0, time.UTC)
	b := o.At(0, time.UTC)
	return int(b.Sub(a) / (24 * time.Hour))
}
