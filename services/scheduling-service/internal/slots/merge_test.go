package slots

import (
	"reflect"
	"testing"
	"time"

	"github.com/rifat-karim/meetslot/services/scheduling-service/internal/model"
)

func slot(start time.Time, minutes, spots int) model.Slot {
	return model.Slot{
		Start:           start,
		End:             start.Add(time.Duration(minutes) * time.Minute),
		DurationMinutes: minutes,
		AvailableSpots:  spots,
	}
}

func TestMerge_OverlapCoalesces(t *testing.T) {
	base := mondayUTC.Add(9 * time.Hour)
	in := []model.Slot{
		slot(base, 30, 3),
		slot(base.Add(15*time.Minute), 30, 1),
	}
	got := Merge(in, 0)
	if len(got) != 1 {
		t.Fatalf("expected 1 merged slot, got %d", len(got))
	}
	m := got[0]
	if !m.Start.Equal(base) || !m.End.Equal(base.Add(45*time.Minute)) {
		t.Fatalf("unexpected merged bounds %+v", m)
	}
	if m.DurationMinutes != 45 {
		t.Fatalf("expected recomputed duration 45, got %d", m.DurationMinutes)
	}
	if m.AvailableSpots != 1 {
		t.Fatalf("expected min spots 1, got %d", m.AvailableSpots)
	}
}

func TestMerge_TouchingSlotsStayDiscrete(t *testing.T) {
	base := mondayUTC.Add(9 * time.Hour)
	in := []model.Slot{
		slot(base, 30, 1),
		slot(base.Add(30*time.Minute), 30, 1),
	}
	if got := Merge(in, 0); len(got) != 2 {
		t.Fatalf("back-to-back slots must stay separate, got %d", len(got))
	}
}

func TestMerge_ToleranceFoldsNearbySlots(t *testing.T) {
	base := mondayUTC.Add(9 * time.Hour)
	in := []model.Slot{
		slot(base, 30, 1),
		slot(base.Add(33*time.Minute), 30, 1),
	}
	if got := Merge(in, 5*time.Minute); len(got) != 1 {
		t.Fatalf("3 minute gap within tolerance must merge, got %d", len(got))
	}
	if got := Merge(in, 2*time.Minute); len(got) != 2 {
		t.Fatalf("gap beyond tolerance must not merge, got %d", len(got))
	}
}

func TestMerge_SortsUnorderedInput(t *testing.T) {
	base := mondayUTC.Add(9 * time.Hour)
	in := []model.Slot{
		slot(base.Add(2*time.Hour), 30, 1),
		slot(base, 30, 1),
	}
	got := Merge(in, 0)
	if len(got) != 2 || !got[0].Start.Equal(base) {
		t.Fatalf("expected time-ascending output, got %+v", got)
	}
}

func TestMerge_Idempotent(t *testing.T) {
	base := mondayUTC.Add(9 * time.Hour)
	in := []model.Slot{
		slot(base, 30, 2),
		slot(base.Add(20*time.Minute), 30, 1),
		slot(base.Add(90*time.Minute), 30, 1),
	}
	once := Merge(in, 0)
	twice := Merge(once, 0)
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("merge not idempotent:\nonce  %+v\ntwice %+v", once, twice)
	}
}

func TestMerge_NoOverlapInvariant(t *testing.T) {
	base := mondayUTC.Add(9 * time.Hour)
	in := []model.Slot{
		slot(base, 30, 1),
		slot(base.Add(10*time.Minute), 30, 1),
		slot(base.Add(25*time.Minute), 45, 1),
		slot(base.Add(3*time.Hour), 30, 1),
	}
	got := Merge(in, 0)
	for i := 1; i < len(got); i++ {
		if got[i].Start.Before(got[i-1].End) {
			t.Fatalf("slots %d and %d overlap: %+v %+v", i-1, i, got[i-1], got[i])
		}
	}
}
