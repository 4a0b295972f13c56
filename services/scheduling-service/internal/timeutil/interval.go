package timeutil

import (
	"fmt"
	"sort"
	"time"
)

// Interval is a half-open [Start, End) range of UTC instants.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two half-open intervals intersect. An interval
// ending exactly when the other starts does not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// MergeIntervals returns the union of the given intervals as a sorted,
// non-overlapping list. Adjacent intervals are coalesced. The input is not
// modified.
func MergeIntervals(in []Interval) []Interval {
	if len(in) <= 1 {
		return append([]Interval(nil), in...)
	}
	sorted := append([]Interval(nil), in...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	out := []Interval{sorted[0]}
	for _, next := range sorted[1:] {
		last := &out[len(out)-1]
		if !next.Start.After(last.End) {
			if next.End.After(last.End) {
				last.End = next.End
			}
			continue
		}
		out = append(out, next)
	}
	return out
}

// SameUTCOffset reports whether both instants map to the same UTC offset in
// loc. A mismatch means a DST (or other zone) transition falls between them.
func SameUTCOffset(a, b time.Time, loc *time.Location) bool {
	_, offA := a.In(loc).Zone()
	_, offB := b.In(loc).Zone()
	return offA == offB
}

// LoadZone validates and loads an IANA timezone name. Unlike
// time.LoadLocation it rejects the empty string and "Local", which are not
// meaningful coming from an API caller.
func LoadZone(name string) (*time.Location, error) {
	if name == "" || name == "Local" {
		return nil, fmt.Errorf("invalid timezone %q", name)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q", name)
	}
	return loc, nil
}
