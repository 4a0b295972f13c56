package slots

import (
	"sort"
	"time"

	"github.com/rifat-karim/meetslot/services/scheduling-service/internal/model"
)

// Merge coalesces overlapping slots into continuous blocks. With zero
// tolerance only true overlaps merge, so back-to-back discrete slots stay
// separate; a positive tolerance additionally folds slots whose gap is at
// most the tolerance. The merged slot takes the minimum AvailableSpots of
// its parts, which is the conservative choice for group capacity. Merge is
// a pure reduction: re-merging its output is a no-op.
func Merge(in []model.Slot, tolerance time.Duration) []model.Slot {
	if len(in) <= 1 {
		return append([]model.Slot(nil), in...)
	}
	sorted := append([]model.Slot(nil), in...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	out := []model.Slot{sorted[0]}
	for _, next := range sorted[1:] {
		cur := &out[len(out)-1]
		if !cur.End.Add(tolerance).After(next.Start) {
			out = append(out, next)
			continue
		}
		if next.End.After(cur.End) {
			cur.End = next.End
		}
		cur.DurationMinutes = int(cur.End.Sub(cur.Start) / time.Minute)
		if next.AvailableSpots < cur.AvailableSpots {
			cur.AvailableSpots = next.AvailableSpots
		}
	}
	return out
}
