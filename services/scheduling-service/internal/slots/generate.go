// Package slots walks resolved availability windows in fixed steps,
// filters candidates through the conflict checker, and post-processes the
// output (merge, DST safety, invitee localization).
package slots

import (
	"time"

	"github.com/rifat-karim/meetslot/services/scheduling-service/internal/conflict"
	"github.com/rifat-karim/meetslot/services/scheduling-service/internal/model"
	"github.com/rifat-karim/meetslot/services/scheduling-service/internal/rules"
)

// Generate produces the free slots inside one organizer-local window.
//
// The advance is asymmetric on purpose: a blocked candidate moves forward
// by just the slot interval so the scan stays dense through blocked
// regions, while an emitted slot moves forward by the larger of the
// interval and the minimum gap so two offered slots are never closer than
// the configured gap.
func Generate(win rules.LocalRange, zone *time.Location, checker *conflict.Checker) []model.Slot {
	settings := checker.Settings
	rangeStart := win.Date.At(win.StartMinute, zone).UTC()
	rangeEnd := win.Date.At(win.EndMinute, zone).UTC()
	if settings.SlotDuration <= 0 || !rangeEnd.After(rangeStart) {
		return nil
	}

	freeAdvance := settings.SlotInterval
	if settings.MinimumGap > freeAdvance {
		freeAdvance = settings.MinimumGap
	}

	var out []model.Slot
	for cur := rangeStart; !cur.Add(settings.SlotDuration).After(rangeEnd); {
		end := cur.Add(settings.SlotDuration)
		switch checker.Check(cur, end) {
		case conflict.BeyondHorizon:
			return out
		case conflict.Blocked:
			cur = cur.Add(settings.SlotInterval)
		default:
			out = append(out, model.Slot{
				Start:           cur,
				End:             end,
				DurationMinutes: int(settings.SlotDuration / time.Minute),
				AvailableSpots:  checker.AvailableSpots(cur, end),
			})
			cur = cur.Add(freeAdvance)
		}
	}
	return out
}
