package availcache

import (
	"testing"
	"time"

	"github.com/rifat-karim/meetslot/services/scheduling-service/internal/timeutil"
)

func TestKeyString(t *testing.T) {
	k := Key{
		OrganizerID:   "org1",
		EventTypeID:   "et1",
		Date:          timeutil.Date{Year: 2026, Month: time.January, Day: 5},
		Timezone:      "America/New_York",
		AttendeeCount: 2,
	}
	want := "avail:org1:et1:2026-01-05:America/New_York:2"
	if got := k.String(); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestKeyString_VariantsDiffer(t *testing.T) {
	base := Key{OrganizerID: "org1", EventTypeID: "et1",
		Date: timeutil.Date{Year: 2026, Month: time.January, Day: 5}, Timezone: "UTC", AttendeeCount: 1}
	other := base
	other.AttendeeCount = 3
	if base.String() == other.String() {
		t.Fatal("attendee count must be part of the key")
	}
	other = base
	other.Timezone = "Asia/Tokyo"
	if base.String() == other.String() {
		t.Fatal("timezone must be part of the key")
	}
}

func TestDirtyKey(t *testing.T) {
	if got := dirtyKey("org1"); got != "avail:dirty:org1" {
		t.Fatalf("unexpected dirty key %q", got)
	}
}
