package conflict

import (
	"testing"
	"time"

	"github.com/rifat-karim/meetslot/services/scheduling-service/internal/model"
	"github.com/rifat-karim/meetslot/services/scheduling-service/internal/timeutil"
)

// Monday 2026-01-05. now is the preceding Friday noon so notice checks
// don't interfere unless a test sets them.
var (
	testNow = time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)
	monday  = time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
)

func newChecker() *Checker {
	return &Checker{
		Now:  testNow,
		Zone: time.UTC,
		EventType: model.EventType{
			ID:              "et1",
			OrganizerID:     "org1",
			DurationMinutes: 30,
			MaxAttendees:    1,
			IsActive:        true,
		},
		Settings: model.SlotSettings{
			SlotDuration: 30 * time.Minute,
			SlotInterval: 30 * time.Minute,
		},
		AttendeeCount: 1,
	}
}

func at(h, m int) time.Time { return monday.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute) }

func TestCheck_Free(t *testing.T) {
	c := newChecker()
	if v := c.Check(at(10, 0), at(10, 30)); v != Free {
		t.Fatalf("expected Free, got %v", v)
	}
}

func TestCheck_MinNotice(t *testing.T) {
	c := newChecker()
	c.Now = at(9, 45)
	c.EventType.MinNoticeMinutes = 60
	if v := c.Check(at(10, 0), at(10, 30)); v != Blocked {
		t.Fatalf("expected Blocked within notice, got %v", v)
	}
	if v := c.Check(at(11, 0), at(11, 30)); v != Free {
		t.Fatalf("expected Free past notice, got %v", v)
	}
}

func TestCheck_BeyondHorizonStopsWindow(t *testing.T) {
	c := newChecker()
	c.EventType.MaxHorizonMinutes = 24 * 60
	if v := c.Check(at(10, 0), at(10, 30)); v != BeyondHorizon {
		t.Fatalf("expected BeyondHorizon, got %v", v)
	}
}

func TestCheck_BlockedTimeOverlap(t *testing.T) {
	c := newChecker()
	c.Blocks = []model.BlockedTime{{
		Start: at(12, 0), End: at(13, 0), Source: "manual", IsActive: true,
	}}
	if v := c.Check(at(12, 0), at(12, 30)); v != Blocked {
		t.Fatal("overlap with block must be Blocked")
	}
	// A block ending exactly at candidate start does not conflict.
	if v := c.Check(at(13, 0), at(13, 30)); v != Free {
		t.Fatal("touching block must not conflict")
	}
	c.Blocks[0].IsActive = false
	if v := c.Check(at(12, 0), at(12, 30)); v != Free {
		t.Fatal("inactive block must be ignored")
	}
}

func TestCheck_RecurringBlock(t *testing.T) {
	c := newChecker()
	c.Recurring = []model.RecurringBlockedTime{{
		DayOfWeek: time.Monday, StartMinute: 12 * 60, EndMinute: 13 * 60, IsActive: true,
	}}
	if v := c.Check(at(12, 30), at(13, 0)); v != Blocked {
		t.Fatal("recurring lunch block must reject candidate")
	}
	if v := c.Check(at(13, 0), at(13, 30)); v != Free {
		t.Fatal("candidate after recurring block must be free")
	}
}

func TestCheck_RecurringBlockSpansMidnight(t *testing.T) {
	c := newChecker()
	// Sunday 23:00 to Monday 01:00.
	c.Recurring = []model.RecurringBlockedTime{{
		DayOfWeek: time.Sunday, StartMinute: 23 * 60, EndMinute: 60, IsActive: true,
	}}
	// Monday 00:30 falls in the spill of Sunday's block.
	if v := c.Check(at(0, 30), at(1, 0)); v != Blocked {
		t.Fatal("midnight spill of previous day's block must reject candidate")
	}
	if v := c.Check(at(1, 0), at(1, 30)); v != Free {
		t.Fatal("candidate after the spill must be free")
	}
}

func TestCheck_RecurringBlockDateBounds(t *testing.T) {
	c := newChecker()
	past := timeutil.Date{Year: 2025, Month: time.December, Day: 1}
	end := timeutil.Date{Year: 2025, Month: time.December, Day: 31}
	c.Recurring = []model.RecurringBlockedTime{{
		DayOfWeek: time.Monday, StartMinute: 10 * 60, EndMinute: 11 * 60,
		StartDate: &past, EndDate: &end, IsActive: true,
	}}
	if v := c.Check(at(10, 0), at(10, 30)); v != Free {
		t.Fatal("expired recurring block must not apply")
	}
}

func TestCheck_BusyTimes(t *testing.T) {
	c := newChecker()
	c.Busy = []timeutil.Interval{{Start: at(14, 0), End: at(15, 0)}}
	if v := c.Check(at(14, 30), at(15, 0)); v != Blocked {
		t.Fatal("external busy time must reject candidate")
	}
}

func TestCheck_BookingUsesOwnBuffers(t *testing.T) {
	c := newChecker()
	// Existing booking 10:00-10:30 with 15 min buffer after from its own
	// event type. Candidate 10:30-11:00 collides with that buffer.
	c.Bookings = []model.Booking{{
		ID: "b1", EventTypeID: "et-other", Start: at(10, 0), End: at(10, 30),
		Status: model.BookingConfirmed, ConfirmedAttendees: 1, BufferAfter: 15,
	}}
	if v := c.Check(at(10, 30), at(11, 0)); v != Blocked {
		t.Fatal("booking's own buffer must reject adjacent candidate")
	}
	if v := c.Check(at(10, 45), at(11, 15)); v != Free {
		t.Fatal("candidate clear of the buffer must be free")
	}
}

func TestCheck_CandidateBuffersApply(t *testing.T) {
	c := newChecker()
	c.Settings.BufferBefore = 15 * time.Minute
	c.Bookings = []model.Booking{{
		ID: "b1", EventTypeID: "et-other", Start: at(10, 0), End: at(10, 30),
		Status: model.BookingConfirmed, ConfirmedAttendees: 1,
	}}
	// Candidate 10:30 with 15 min buffer-before reaches back into the booking.
	if v := c.Check(at(10, 30), at(11, 0)); v != Blocked {
		t.Fatal("candidate buffer-before must reject touching booking")
	}
}

func TestCheck_CancelledBookingIgnored(t *testing.T) {
	c := newChecker()
	c.Bookings = []model.Booking{{
		ID: "b1", EventTypeID: "et1", Start: at(10, 0), End: at(10, 30),
		Status: model.BookingCancelled, ConfirmedAttendees: 1,
	}}
	if v := c.Check(at(10, 0), at(10, 30)); v != Free {
		t.Fatal("cancelled booking must not conflict")
	}
}

func TestCheck_GroupCapacityJoin(t *testing.T) {
	c := newChecker()
	c.EventType.MaxAttendees = 3
	c.Bookings = []model.Booking{{
		ID: "b1", EventTypeID: "et1", Start: at(10, 0), End: at(10, 30),
		Status: model.BookingConfirmed, ConfirmedAttendees: 2,
	}}

	// One more attendee fits (2+1 <= 3).
	c.AttendeeCount = 1
	if v := c.Check(at(10, 0), at(10, 30)); v != Free {
		t.Fatal("join within capacity must be Free")
	}
	if spots := c.AvailableSpots(at(10, 0), at(10, 30)); spots != 1 {
		t.Fatalf("expected 1 remaining spot, got %d", spots)
	}

	// Two more would exceed capacity (2+2 > 3).
	c.AttendeeCount = 2
	if v := c.Check(at(10, 0), at(10, 30)); v != Blocked {
		t.Fatal("join beyond capacity must be Blocked")
	}

	// Same event type but different times is a hard conflict.
	c.AttendeeCount = 1
	if v := c.Check(at(10, 15), at(10, 45)); v != Blocked {
		t.Fatal("partial overlap with group session must be Blocked")
	}
}

func TestCheck_GroupJoinStillBlockedByBlockedTime(t *testing.T) {
	c := newChecker()
	c.EventType.MaxAttendees = 3
	c.Bookings = []model.Booking{{
		ID: "b1", EventTypeID: "et1", Start: at(10, 0), End: at(10, 30),
		Status: model.BookingConfirmed, ConfirmedAttendees: 1,
	}}
	c.Blocks = []model.BlockedTime{{
		Start: at(10, 0), End: at(11, 0), Source: "manual", IsActive: true,
	}}

	// Spare capacity does not override a block created after the session.
	if v := c.Check(at(10, 0), at(10, 30)); v != Blocked {
		t.Fatal("joinable session under a block must be Blocked")
	}

	c.Blocks = nil
	c.Recurring = []model.RecurringBlockedTime{{
		DayOfWeek: time.Monday, StartMinute: 10 * 60, EndMinute: 11 * 60, IsActive: true,
	}}
	if v := c.Check(at(10, 0), at(10, 30)); v != Blocked {
		t.Fatal("joinable session under a recurring block must be Blocked")
	}
}

func TestAvailableSpots_GroupWithoutSession(t *testing.T) {
	c := newChecker()
	c.EventType.MaxAttendees = 4
	if spots := c.AvailableSpots(at(9, 0), at(9, 30)); spots != 4 {
		t.Fatalf("expected full capacity, got %d", spots)
	}
}

func TestCheck_DailyBookingLimit(t *testing.T) {
	c := newChecker()
	c.EventType.MaxBookingsPerDay = 2
	c.Bookings = []model.Booking{
		{ID: "b1", EventTypeID: "et1", Start: at(9, 0), End: at(9, 30), Status: model.BookingConfirmed, ConfirmedAttendees: 1},
		{ID: "b2", EventTypeID: "et1", Start: at(11, 0), End: at(11, 30), Status: model.BookingConfirmed, ConfirmedAttendees: 1},
		// Different event type does not count toward the limit.
		{ID: "b3", EventTypeID: "et-other", Start: at(13, 0), End: at(13, 30), Status: model.BookingConfirmed, ConfirmedAttendees: 1},
	}
	if v := c.Check(at(15, 0), at(15, 30)); v != Blocked {
		t.Fatal("daily limit reached must reject candidate")
	}
	// Next day is unaffected.
	tuesday := at(24+15, 0)
	if v := c.Check(tuesday, tuesday.Add(30*time.Minute)); v != Free {
		t.Fatal("limit must be scoped to the local date")
	}
}
