package booking

import (
	"errors"
	"testing"
	"time"
)

func TestExpandRecurrence_Daily(t *testing.T) {
	start := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	occ, err := ExpandRecurrence(start, FreqDaily, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []time.Time{
		start,
		time.Date(2026, 1, 6, 10, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 7, 10, 0, 0, 0, time.UTC),
	}
	if len(occ) != len(want) {
		t.Fatalf("expected %d occurrences, got %d", len(want), len(occ))
	}
	for i := range want {
		if !occ[i].Equal(want[i]) {
			t.Fatalf("occurrence %d: expected %s, got %s", i, want[i], occ[i])
		}
	}
}

func TestExpandRecurrence_Weekly(t *testing.T) {
	start := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	occ, err := ExpandRecurrence(start, "Weekly", 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	last := occ[len(occ)-1]
	if !last.Equal(time.Date(2026, 1, 26, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected last occurrence Jan 26, got %s", last)
	}
	if last.Weekday() != start.Weekday() {
		t.Fatal("weekly occurrences must keep the weekday")
	}
}

func TestExpandRecurrence_MonthlyNormalizesShortMonths(t *testing.T) {
	start := time.Date(2026, 1, 31, 9, 0, 0, 0, time.UTC)
	occ, err := ExpandRecurrence(start, FreqMonthly, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Jan 31 + 1 month normalizes past February's end.
	if !occ[1].Equal(time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected Mar 3 for the February occurrence, got %s", occ[1])
	}
}

func TestExpandRecurrence_CountBounds(t *testing.T) {
	start := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	if _, err := ExpandRecurrence(start, FreqDaily, 0); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for zero count, got %v", err)
	}
	if _, err := ExpandRecurrence(start, FreqDaily, 53); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid above the occurrence cap, got %v", err)
	}
	if occ, err := ExpandRecurrence(start, FreqDaily, 52); err != nil || len(occ) != 52 {
		t.Fatalf("expected 52 occurrences at the cap, got %d (%v)", len(occ), err)
	}
}

func TestExpandRecurrence_UnknownFrequency(t *testing.T) {
	start := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	if _, err := ExpandRecurrence(start, "fortnightly", 2); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for unknown frequency, got %v", err)
	}
}
