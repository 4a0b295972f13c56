package rules

import (
	"testing"
	"time"

	"github.com/rifat-karim/meetslot/services/scheduling-service/internal/model"
	"github.com/rifat-karim/meetslot/services/scheduling-service/internal/timeutil"
)

var monday = timeutil.Date{Year: 2026, Month: time.January, Day: 5}

func weeklyRule(day time.Weekday, start, end int, eventTypes ...string) model.AvailabilityRule {
	return model.AvailabilityRule{
		ID:           "r1",
		OrganizerID:  "org1",
		DayOfWeek:    day,
		StartMinute:  start,
		EndMinute:    end,
		EventTypeIDs: eventTypes,
		IsActive:     true,
	}
}

func TestResolve_WeeklyRule(t *testing.T) {
	res := Resolve(monday, "et1", []model.AvailabilityRule{weeklyRule(time.Monday, 9*60, 17*60)}, nil)
	if res.DayBlocked {
		t.Fatal("day should not be blocked")
	}
	if len(res.Ranges) != 1 {
		t.Fatalf("expected 1 range, got %d", len(res.Ranges))
	}
	r := res.Ranges[0]
	if !r.Date.Equal(monday) || r.StartMinute != 9*60 || r.EndMinute != 17*60 {
		t.Fatalf("unexpected range %+v", r)
	}
}

func TestResolve_WrongWeekdayYieldsNothing(t *testing.T) {
	res := Resolve(monday, "et1", []model.AvailabilityRule{weeklyRule(time.Tuesday, 9*60, 17*60)}, nil)
	if res.DayBlocked || len(res.Ranges) != 0 {
		t.Fatalf("expected empty resolution, got %+v", res)
	}
}

func TestResolve_EventTypeScope(t *testing.T) {
	weekly := []model.AvailabilityRule{weeklyRule(time.Monday, 9*60, 17*60, "other")}
	if res := Resolve(monday, "et1", weekly, nil); len(res.Ranges) != 0 {
		t.Fatal("scoped rule must not apply to a different event type")
	}
	if res := Resolve(monday, "other", weekly, nil); len(res.Ranges) != 1 {
		t.Fatal("scoped rule must apply to its event type")
	}
}

func TestResolve_BlockedOverrideWinsOverRules(t *testing.T) {
	weekly := []model.AvailabilityRule{weeklyRule(time.Monday, 9*60, 17*60)}
	overrides := []model.DateOverrideRule{{
		ID: "o1", OrganizerID: "org1", Date: monday, IsAvailable: false, IsActive: true,
	}}
	res := Resolve(monday, "et1", weekly, overrides)
	if !res.DayBlocked {
		t.Fatal("expected DayBlocked from unavailable override")
	}
	if len(res.Ranges) != 0 {
		t.Fatal("blocked day must have no ranges")
	}
}

func TestResolve_AvailableOverrideSupersedesRules(t *testing.T) {
	weekly := []model.AvailabilityRule{weeklyRule(time.Monday, 9*60, 17*60)}
	start, end := 13*60, 15*60
	overrides := []model.DateOverrideRule{{
		ID: "o1", OrganizerID: "org1", Date: monday, IsAvailable: true,
		StartMinute: &start, EndMinute: &end, IsActive: true,
	}}
	res := Resolve(monday, "et1", weekly, overrides)
	if len(res.Ranges) != 1 {
		t.Fatalf("expected 1 range, got %d", len(res.Ranges))
	}
	if res.Ranges[0].StartMinute != start || res.Ranges[0].EndMinute != end {
		t.Fatalf("override window not used: %+v", res.Ranges[0])
	}
}

func TestResolve_AvailableOverrideWithoutTimes(t *testing.T) {
	weekly := []model.AvailabilityRule{weeklyRule(time.Monday, 9*60, 17*60)}
	overrides := []model.DateOverrideRule{{
		ID: "o1", OrganizerID: "org1", Date: monday, IsAvailable: true, IsActive: true,
	}}
	res := Resolve(monday, "et1", weekly, overrides)
	if res.DayBlocked || len(res.Ranges) != 0 {
		t.Fatalf("override without times must yield zero windows, got %+v", res)
	}
}

func TestResolve_MidnightSpanSplitsIntoTwoRanges(t *testing.T) {
	// 22:00 Monday to 02:00 Tuesday.
	res := Resolve(monday, "et1", []model.AvailabilityRule{weeklyRule(time.Monday, 22*60, 2*60)}, nil)
	if len(res.Ranges) != 2 {
		t.Fatalf("expected 2 ranges, got %d", len(res.Ranges))
	}
	first, second := res.Ranges[0], res.Ranges[1]
	if first.StartMinute != 22*60 || first.EndMinute != timeutil.MinutesPerDay {
		t.Fatalf("unexpected first half %+v", first)
	}
	if !second.Date.Equal(monday.AddDays(1)) || second.StartMinute != 0 || second.EndMinute != 2*60 {
		t.Fatalf("unexpected second half %+v", second)
	}
}

func TestResolve_MultipleSameDayRulesUnion(t *testing.T) {
	weekly := []model.AvailabilityRule{
		weeklyRule(time.Monday, 9*60, 12*60),
		weeklyRule(time.Monday, 14*60, 17*60),
	}
	res := Resolve(monday, "et1", weekly, nil)
	if len(res.Ranges) != 2 {
		t.Fatalf("expected both windows, got %d", len(res.Ranges))
	}
}

func TestResolve_ZeroLengthWindowDropped(t *testing.T) {
	res := Resolve(monday, "et1", []model.AvailabilityRule{weeklyRule(time.Monday, 9*60, 9*60)}, nil)
	if len(res.Ranges) != 0 {
		t.Fatal("equal start and end must yield no window")
	}
}
