// Package reconcile intersects organizer-side slots against every
// invitee's local "reasonable hours" and ranks the survivors by a fairness
// score.
package reconcile

import (
	"sort"
	"time"

	"github.com/rifat-karim/meetslot/services/scheduling-service/internal/model"
)

// Zone pairs an IANA name with its loaded location. Callers validate the
// names up front; invalid zones never reach this package.
type Zone struct {
	Name string
	Loc  *time.Location
}

// Hours is the half-open [Start, End) local-hour window every invitee must
// fall inside.
type Hours struct {
	Start int
	End   int
}

// Rank rejects slots that are unreasonable for any invitee (outside the
// hours window, or rendered across a local date boundary) and sorts the
// rest by descending fairness. The sort is stable, so equal scores keep
// their time-ascending order.
func Rank(in []model.Slot, zones []Zone, hours Hours) []model.Slot {
	if len(zones) <= 1 {
		return in
	}

	out := make([]model.Slot, 0, len(in))
	for _, s := range in {
		times, ok := localize(s, zones, hours)
		if !ok {
			continue
		}
		s.InviteeTimes = times
		s.FairnessScore = score(times)
		out = append(out, s)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].FairnessScore > out[j].FairnessScore
	})
	return out
}

func localize(s model.Slot, zones []Zone, hours Hours) (map[string]model.LocalTime, bool) {
	times := make(map[string]model.LocalTime, len(zones))
	var firstY, firstD int
	for i, z := range zones {
		start := s.Start.In(z.Loc)
		end := s.End.In(z.Loc)
		if start.Hour() < hours.Start || end.Hour() > hours.End {
			return nil, false
		}
		// Cross-midnight local display is disallowed even when the slot
		// itself is valid in UTC. That includes the slot landing on
		// different calendar dates for different invitees.
		if start.Year() != end.Year() || start.YearDay() != end.YearDay() {
			return nil, false
		}
		if i == 0 {
			firstY, firstD = start.Year(), start.YearDay()
		} else if start.Year() != firstY || start.YearDay() != firstD {
			return nil, false
		}
		times[z.Name] = model.LocalTime{Start: start, End: end}
	}
	return times, true
}

// score averages a fixed five-tier bucket score of each invitee's local
// start hour: 10-16h is ideal, widening bands degrade to zero.
func score(times map[string]model.LocalTime) float64 {
	if len(times) == 0 {
		return 0
	}
	total := 0
	for _, lt := range times {
		total += hourScore(lt.Start.Hour())
	}
	return float64(total) / float64(len(times))
}

func hourScore(h int) int {
	switch {
	case h >= 10 && h <= 16:
		return 100
	case h >= 8 && h <= 18:
		return 80
	case h >= 7 && h <= 20:
		return 60
	case h >= 6 && h <= 22:
		return 40
	default:
		return 0
	}
}
