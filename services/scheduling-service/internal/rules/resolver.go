// Package rules resolves which availability window(s) apply to an organizer
// on a given date: a date override fully supersedes recurring weekly rules.
package rules

import (
	"github.com/rifat-karim/meetslot/services/scheduling-service/internal/model"
	"github.com/rifat-karim/meetslot/services/scheduling-service/internal/timeutil"
)

// LocalRange is an organizer-local window on a single calendar date with a
// half-open minute range [StartMinute, EndMinute). Midnight-spanning rules
// are represented as two LocalRanges rather than a sentinel end time.
type LocalRange struct {
	Date        timeutil.Date
	StartMinute int
	EndMinute   int
}

// Resolution is the outcome of resolving a single date. DayBlocked is only
// set by an explicit is_available=false override; a date with no matching
// rules simply has zero ranges.
type Resolution struct {
	DayBlocked bool
	Ranges     []LocalRange
}

// Resolve determines the authoritative windows for the date. Same-day rules
// are all unioned; overlap between them is handled later by slot merging.
func Resolve(date timeutil.Date, eventTypeID string, weekly []model.AvailabilityRule, overrides []model.DateOverrideRule) Resolution {
	if ov, ok := overrideFor(date, eventTypeID, overrides); ok {
		if !ov.IsAvailable {
			return Resolution{DayBlocked: true}
		}
		// An available override without explicit times opens no window;
		// the regular rules stay superseded either way.
		if ov.StartMinute == nil || ov.EndMinute == nil {
			return Resolution{}
		}
		return Resolution{Ranges: split(date, *ov.StartMinute, *ov.EndMinute)}
	}

	var out []LocalRange
	for _, r := range weekly {
		if !r.IsActive || r.DayOfWeek != date.Weekday() || !r.AppliesTo(eventTypeID) {
			continue
		}
		out = append(out, split(date, r.StartMinute, r.EndMinute)...)
	}
	return Resolution{Ranges: out}
}

func overrideFor(date timeutil.Date, eventTypeID string, overrides []model.DateOverrideRule) (model.DateOverrideRule, bool) {
	for _, ov := range overrides {
		if ov.IsActive && ov.Date.Equal(date) && ov.AppliesTo(eventTypeID) {
			return ov, true
		}
	}
	return model.DateOverrideRule{}, false
}

// split turns a (possibly midnight-spanning) minute range into one or two
// single-date ranges with exclusive ends.
func split(date timeutil.Date, startMin, endMin int) []LocalRange {
	if endMin < startMin {
		return []LocalRange{
			{Date: date, StartMinute: startMin, EndMinute: timeutil.MinutesPerDay},
			{Date: date.AddDays(1), StartMinute: 0, EndMinute: endMin},
		}
	}
	if endMin == startMin {
		return nil
	}
	return []LocalRange{{Date: date, StartMinute: startMin, EndMinute: endMin}}
}
