// Package conflict evaluates a candidate slot against every conflict
// source: manual and synced blocks, recurring blocks, external calendar
// busy times, buffered bookings with group capacity, daily booking limits,
// and the booking notice/horizon bounds.
package conflict

import (
	"time"

	"github.com/rifat-karim/meetslot/services/scheduling-service/internal/model"
	"github.com/rifat-karim/meetslot/services/scheduling-service/internal/timeutil"
)

type Verdict int

const (
	// Free means the candidate passed every predicate.
	Free Verdict = iota
	// Blocked means some conflict source rejected the candidate; the
	// generator keeps probing later starts in the same window.
	Blocked
	// BeyondHorizon means the candidate starts after the maximum
	// scheduling horizon. Starts only grow within a window, so the
	// generator stops the window entirely.
	BeyondHorizon
)

// Checker holds one request's immutable conflict inputs. It is built once
// per computation and queried for every candidate slot.
type Checker struct {
	Now           time.Time
	Zone          *time.Location // organizer zone
	EventType     model.EventType
	Settings      model.SlotSettings
	Blocks        []model.BlockedTime
	Recurring     []model.RecurringBlockedTime
	Busy          []timeutil.Interval
	Bookings      []model.Booking
	AttendeeCount int
}

// Check runs the predicates in a fixed order: cheap time-bound checks
// first, then overlap sources, then the daily limit. Any one of them
// rejecting the candidate is final.
func (c *Checker) Check(start, end time.Time) Verdict {
	if start.Before(c.Now.Add(time.Duration(c.EventType.MinNoticeMinutes) * time.Minute)) {
		return Blocked
	}
	if c.EventType.MaxHorizonMinutes > 0 &&
		start.After(c.Now.Add(time.Duration(c.EventType.MaxHorizonMinutes)*time.Minute)) {
		return BeyondHorizon
	}
	if c.blockedByBlockedTimes(start, end) {
		return Blocked
	}
	if c.blockedByRecurring(start, end) {
		return Blocked
	}
	if c.blockedByBusyTimes(start, end) {
		return Blocked
	}
	if c.blockedByBookings(start, end) {
		return Blocked
	}
	if c.exceedsDailyLimit(start) {
		return Blocked
	}
	return Free
}

func (c *Checker) blockedByBlockedTimes(start, end time.Time) bool {
	for _, b := range c.Blocks {
		if !b.IsActive {
			continue
		}
		if timeutil.Overlaps(start, end, b.Start, b.End) {
			return true
		}
	}
	return false
}

// blockedByRecurring tests the candidate against recurring blocks anchored
// on the candidate's organizer-local date AND the previous date: a
// midnight-spanning block that started yesterday still covers this
// morning.
func (c *Checker) blockedByRecurring(start, end time.Time) bool {
	date := timeutil.DateOf(start.In(c.Zone))
	for _, blk := range c.Recurring {
		for _, anchor := range []timeutil.Date{date.AddDays(-1), date} {
			if !blk.AppliesOn(anchor) {
				continue
			}
			for _, iv := range c.recurringRanges(blk, anchor) {
				if timeutil.Overlaps(start, end, iv.Start, iv.End) {
					return true
				}
			}
		}
	}
	return false
}

// recurringRanges converts one occurrence of a recurring block into UTC
// intervals, splitting midnight-spanning blocks into two sub-ranges.
func (c *Checker) recurringRanges(blk model.RecurringBlockedTime, anchor timeutil.Date) []timeutil.Interval {
	if blk.SpansMidnight() {
		return []timeutil.Interval{
			{
				Start: anchor.At(blk.StartMinute, c.Zone).UTC(),
				End:   anchor.At(timeutil.MinutesPerDay, c.Zone).UTC(),
			},
			{
				Start: anchor.AddDays(1).At(0, c.Zone).UTC(),
				End:   anchor.AddDays(1).At(blk.EndMinute, c.Zone).UTC(),
			},
		}
	}
	return []timeutil.Interval{
		{
			Start: anchor.At(blk.StartMinute, c.Zone).UTC(),
			End:   anchor.At(blk.EndMinute, c.Zone).UTC(),
		},
	}
}

func (c *Checker) blockedByBusyTimes(start, end time.Time) bool {
	for _, b := range c.Busy {
		if timeutil.Overlaps(start, end, b.Start, b.End) {
			return true
		}
	}
	return false
}

// blockedByBookings buffers the candidate with the requested event type's
// buffers and each booking with its own event type's buffers before the
// overlap test. The only non-conflicting overlap is joining an existing
// group session: same event type, identical start/end, and enough spare
// capacity for the requested attendees.
func (c *Checker) blockedByBookings(start, end time.Time) bool {
	candStart := start.Add(-c.Settings.BufferBefore)
	candEnd := end.Add(c.Settings.BufferAfter)

	for _, b := range c.Bookings {
		if b.Status != model.BookingConfirmed {
			continue
		}
		bStart := b.Start.Add(-time.Duration(b.BufferBefore) * time.Minute)
		bEnd := b.End.Add(time.Duration(b.BufferAfter) * time.Minute)
		if !timeutil.Overlaps(candStart, candEnd, bStart, bEnd) {
			continue
		}
		if c.EventType.IsGroup() &&
			b.EventTypeID == c.EventType.ID &&
			b.Start.Equal(start) && b.End.Equal(end) &&
			b.ConfirmedAttendees+c.AttendeeCount <= c.EventType.MaxAttendees {
			continue
		}
		return true
	}
	return false
}

func (c *Checker) exceedsDailyLimit(start time.Time) bool {
	if c.EventType.MaxBookingsPerDay <= 0 {
		return false
	}
	date := timeutil.DateOf(start.In(c.Zone))
	count := 0
	for _, b := range c.Bookings {
		if b.Status != model.BookingConfirmed || b.EventTypeID != c.EventType.ID {
			continue
		}
		if timeutil.DateOf(b.Start.In(c.Zone)).Equal(date) {
			count++
		}
	}
	return count >= c.EventType.MaxBookingsPerDay
}

// AvailableSpots returns the spot count to advertise on a free slot. For
// group events it is the remaining capacity of the exact-time session if
// one exists, otherwise full capacity. Non-group slots seat exactly one.
func (c *Checker) AvailableSpots(start, end time.Time) int {
	if !c.EventType.IsGroup() {
		if c.AttendeeCount == 1 {
			return 1
		}
		return 0
	}
	for _, b := range c.Bookings {
		if b.Status == model.BookingConfirmed &&
			b.EventTypeID == c.EventType.ID &&
			b.Start.Equal(start) && b.End.Equal(end) {
			spots := c.EventType.MaxAttendees - b.ConfirmedAttendees
			if spots < 0 {
				return 0
			}
			return spots
		}
	}
	return c.EventType.MaxAttendees
}
