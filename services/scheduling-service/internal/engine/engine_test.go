package engine

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rifat-karim/meetslot/services/scheduling-service/internal/availcache"
	"github.com/rifat-karim/meetslot/services/scheduling-service/internal/busytime"
	"github.com/rifat-karim/meetslot/services/scheduling-service/internal/model"
	"github.com/rifat-karim/meetslot/services/scheduling-service/internal/storage"
	"github.com/rifat-karim/meetslot/services/scheduling-service/internal/timeutil"
)

var (
	testNow = time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)
	monday  = timeutil.Date{Year: 2026, Month: time.January, Day: 5}
)

type fakeStore struct {
	snap *model.AvailabilitySnapshot
	err  error
}

func (f *fakeStore) Snapshot(_ context.Context, _ storage.SnapshotQuery) (*model.AvailabilitySnapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	// The engine mutates nothing, but hand out a shallow copy anyway.
	snap := *f.snap
	return &snap, nil
}

type fakeBusy struct {
	intervals []busytime.Interval
	warnings  []string
}

func (f *fakeBusy) Fetch(_ context.Context, _ string, _, _ time.Time) ([]busytime.Interval, []string) {
	return f.intervals, f.warnings
}

type fakeCache struct {
	entries map[string]*availcache.Entry
	puts    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]*availcache.Entry{}}
}

func (f *fakeCache) Get(_ context.Context, key availcache.Key) (*availcache.Entry, error) {
	return f.entries[key.String()], nil
}

func (f *fakeCache) Put(_ context.Context, key availcache.Key, e availcache.Entry) error {
	f.puts++
	f.entries[key.String()] = &e
	return nil
}

func baseSnapshot() *model.AvailabilitySnapshot {
	return &model.AvailabilitySnapshot{
		Profile: model.OrganizerProfile{OrganizerID: "org1", Timezone: "UTC"},
		EventType: model.EventType{
			ID: "et1", OrganizerID: "org1", DurationMinutes: 30,
			MaxAttendees: 1, SlotIntervalMinutes: 30, IsActive: true,
		},
		Rules: []model.AvailabilityRule{{
			ID: "r1", OrganizerID: "org1", DayOfWeek: time.Monday,
			StartMinute: 9 * 60, EndMinute: 17 * 60, IsActive: true,
		}},
	}
}

func newTestEngine(store Store, busy BusyFetcher, cache SlotCache) *Engine {
	e := New(store, busy, cache, slog.Default())
	e.now = func() time.Time { return testNow }
	return e
}

func request() Request {
	return Request{
		OrganizerID:     "org1",
		EventTypeID:     "et1",
		StartDate:       monday,
		EndDate:         monday,
		InviteeTimezone: "UTC",
	}
}

func TestCompute_FullMonday(t *testing.T) {
	eng := newTestEngine(&fakeStore{snap: baseSnapshot()}, nil, nil)
	res, err := eng.ComputeAvailableSlots(context.Background(), request())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.TotalSlots != 16 {
		t.Fatalf("expected 16 slots, got %d", res.TotalSlots)
	}
	if res.CacheHit {
		t.Fatal("no cache configured, must not report a hit")
	}
	first := res.Slots[0]
	if !first.Start.Equal(monday.At(9*60, time.UTC)) {
		t.Fatalf("expected first slot 09:00, got %s", first.Start)
	}
	if first.LocalStart.IsZero() {
		t.Fatal("invitee-localized times must be attached")
	}
}

func TestCompute_BlockedOverrideYieldsNothing(t *testing.T) {
	snap := baseSnapshot()
	snap.Overrides = []model.DateOverrideRule{{
		ID: "o1", OrganizerID: "org1", Date: monday, IsAvailable: false, IsActive: true,
	}}
	eng := newTestEngine(&fakeStore{snap: snap}, nil, nil)
	res, err := eng.ComputeAvailableSlots(context.Background(), request())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.TotalSlots != 0 {
		t.Fatalf("blocked day must yield zero slots, got %d", res.TotalSlots)
	}
}

func TestCompute_BusyTimesRemoveSlots(t *testing.T) {
	busy := &fakeBusy{intervals: []busytime.Interval{{
		Start:  monday.At(12*60, time.UTC),
		End:    monday.At(13*60, time.UTC),
		Source: "google_calendar",
	}}}
	eng := newTestEngine(&fakeStore{snap: baseSnapshot()}, busy, nil)
	res, err := eng.ComputeAvailableSlots(context.Background(), request())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.TotalSlots != 14 {
		t.Fatalf("expected 14 slots with busy hour removed, got %d", res.TotalSlots)
	}
}

func TestCompute_ProviderWarningsPropagateAndSkipCache(t *testing.T) {
	cache := newFakeCache()
	busy := &fakeBusy{warnings: []string{"calendar provider google unavailable; its busy times were skipped"}}
	eng := newTestEngine(&fakeStore{snap: baseSnapshot()}, busy, cache)
	res, err := eng.ComputeAvailableSlots(context.Background(), request())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Warnings) != 1 {
		t.Fatalf("expected 1 warning, got %v", res.Warnings)
	}
	if cache.puts != 0 {
		t.Fatal("degraded results must not be cached")
	}
}

func TestCompute_SingleDayCaching(t *testing.T) {
	cache := newFakeCache()
	eng := newTestEngine(&fakeStore{snap: baseSnapshot()}, nil, cache)

	res, err := eng.ComputeAvailableSlots(context.Background(), request())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.CacheHit {
		t.Fatal("first computation must miss")
	}
	if cache.puts != 1 {
		t.Fatalf("expected 1 cache write, got %d", cache.puts)
	}

	res2, err := eng.ComputeAvailableSlots(context.Background(), request())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res2.CacheHit {
		t.Fatal("second computation must hit the cache")
	}
	if res2.TotalSlots != res.TotalSlots {
		t.Fatalf("cached result differs: %d vs %d", res2.TotalSlots, res.TotalSlots)
	}
}

func TestCompute_MultiDayBypassesCache(t *testing.T) {
	cache := newFakeCache()
	eng := newTestEngine(&fakeStore{snap: baseSnapshot()}, nil, cache)
	req := request()
	req.EndDate = monday.AddDays(6)
	res, err := eng.ComputeAvailableSlots(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cache.puts != 0 {
		t.Fatal("multi-day requests must not be cached")
	}
	// The week has exactly one rule day.
	if res.TotalSlots != 16 {
		t.Fatalf("expected 16 slots across the week, got %d", res.TotalSlots)
	}
}

func TestCompute_MultiInviteeRanking(t *testing.T) {
	eng := newTestEngine(&fakeStore{snap: baseSnapshot()}, nil, nil)
	req := request()
	req.InviteeTimezones = []string{"America/New_York", "Europe/London"}
	res, err := eng.ComputeAvailableSlots(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.TotalSlots == 0 {
		t.Fatal("expected ranked slots")
	}
	for i := 1; i < len(res.Slots); i++ {
		if res.Slots[i].FairnessScore > res.Slots[i-1].FairnessScore {
			t.Fatal("output must be sorted non-increasing by fairness score")
		}
	}
	if len(res.Slots[0].InviteeTimes) != 2 {
		t.Fatalf("expected invitee times for both zones, got %+v", res.Slots[0].InviteeTimes)
	}
}

func TestCompute_MultiInviteeResultsNotCached(t *testing.T) {
	cache := newFakeCache()
	eng := newTestEngine(&fakeStore{snap: baseSnapshot()}, nil, cache)

	multi := request()
	multi.InviteeTimezones = []string{"America/New_York", "Asia/Tokyo"}
	res, err := eng.ComputeAvailableSlots(context.Background(), multi)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.TotalSlots >= 16 {
		t.Fatalf("ranking should reduce the slot set, got %d", res.TotalSlots)
	}
	if cache.puts != 0 {
		t.Fatal("reconciled results must not be cached")
	}

	// A plain request on the same key must compute the full set, not be
	// served the reconciled subset.
	plain, err := eng.ComputeAvailableSlots(context.Background(), request())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plain.CacheHit {
		t.Fatal("plain request must not hit after a multi-invitee computation")
	}
	if plain.TotalSlots != 16 {
		t.Fatalf("expected the full 16 slots, got %d", plain.TotalSlots)
	}
}

func TestCompute_BadInviteeZoneSkippedWithWarning(t *testing.T) {
	eng := newTestEngine(&fakeStore{snap: baseSnapshot()}, nil, nil)
	req := request()
	req.InviteeTimezones = []string{"UTC", "Mars/OlympusMons"}
	res, err := eng.ComputeAvailableSlots(context.Background(), req)
	if err != nil {
		t.Fatalf("a bad per-invitee zone must not abort: %v", err)
	}
	if len(res.Warnings) != 1 {
		t.Fatalf("expected 1 warning, got %v", res.Warnings)
	}
	// Only one valid zone remains, so ranking is skipped.
	if res.TotalSlots != 16 {
		t.Fatalf("expected the unranked 16 slots, got %d", res.TotalSlots)
	}
}

func TestCompute_InvalidInput(t *testing.T) {
	eng := newTestEngine(&fakeStore{snap: baseSnapshot()}, nil, nil)
	cases := []func(*Request){
		func(r *Request) { r.OrganizerID = "" },
		func(r *Request) { r.EventTypeID = "" },
		func(r *Request) { r.StartDate = timeutil.Date{} },
		func(r *Request) { r.EndDate = monday.AddDays(-1) },
		func(r *Request) { r.EndDate = monday.AddDays(90) },
		func(r *Request) { r.InviteeTimezone = "" },
		func(r *Request) { r.InviteeTimezone = "Not/AZone" },
		func(r *Request) { r.AttendeeCount = -2 },
		func(r *Request) { r.AttendeeCount = 3 }, // exceeds 1:1 capacity
	}
	for i, mutate := range cases {
		req := request()
		mutate(&req)
		if _, err := eng.ComputeAvailableSlots(context.Background(), req); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("case %d: expected ErrInvalidInput, got %v", i, err)
		}
	}
}

func TestCompute_UnknownOrganizerIsInvalidInput(t *testing.T) {
	eng := newTestEngine(&fakeStore{err: pgx.ErrNoRows}, nil, nil)
	if _, err := eng.ComputeAvailableSlots(context.Background(), request()); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown organizer, got %v", err)
	}
}
