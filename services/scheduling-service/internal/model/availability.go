package model

import (
	"time"

	"github.com/rifat-karim/meetslot/services/scheduling-service/internal/timeutil"
)

// AvailabilityRule is a weekly recurring availability window. EndMinute may
// be numerically smaller than StartMinute, meaning the window continues past
// local midnight into the next calendar day. Multiple rules may exist for
// the same weekday (e.g. a morning and an evening block).
type AvailabilityRule struct {
	ID           string
	OrganizerID  string
	DayOfWeek    time.Weekday
	StartMinute  int
	EndMinute    int
	EventTypeIDs []string // empty = applies to every event type
	IsActive     bool
}

func (r AvailabilityRule) SpansMidnight() bool {
	return r.EndMinute < r.StartMinute
}

func (r AvailabilityRule) AppliesTo(eventTypeID string) bool {
	return scopedTo(r.EventTypeIDs, eventTypeID)
}

// DateOverrideRule fully supersedes all AvailabilityRules for its date.
// With IsAvailable=false the whole day is blocked; with IsAvailable=true its
// own times (when set) define the only window for the date.
type DateOverrideRule struct {
	ID           string
	OrganizerID  string
	Date         timeutil.Date
	IsAvailable  bool
	StartMinute  *int
	EndMinute    *int
	EventTypeIDs []string
	IsActive     bool
}

func (o DateOverrideRule) SpansMidnight() bool {
	return o.StartMinute != nil && o.EndMinute != nil && *o.EndMinute < *o.StartMinute
}

func (o DateOverrideRule) AppliesTo(eventTypeID string) bool {
	return scopedTo(o.EventTypeIDs, eventTypeID)
}

// RecurringBlockedTime is a standing weekly unavailability (e.g. lunch). It
// does not replace availability rules; it filters candidate slots produced
// from them. Optional date bounds limit the weeks it applies to.
type RecurringBlockedTime struct {
	ID          string
	OrganizerID string
	Name        string
	DayOfWeek   time.Weekday
	StartMinute int
	EndMinute   int
	StartDate   *timeutil.Date
	EndDate     *timeutil.Date
	IsActive    bool
}

func (b RecurringBlockedTime) SpansMidnight() bool {
	return b.EndMinute < b.StartMinute
}

// AppliesOn reports whether the block is in effect on the given date:
// matching weekday and within the optional date bounds.
func (b RecurringBlockedTime) AppliesOn(d timeutil.Date) bool {
	if !b.IsActive || d.Weekday() != b.DayOfWeek {
		return false
	}
	if b.StartDate != nil && d.Before(*b.StartDate) {
		return false
	}
	if b.EndDate != nil && d.After(*b.EndDate) {
		return false
	}
	return true
}

// BlockedTime is a one-off absolute block, either organizer-created
// ("manual") or mirrored from an external calendar ("<provider>_calendar").
type BlockedTime struct {
	ID                string
	OrganizerID       string
	Start             time.Time
	End               time.Time
	Reason            string
	Source            string
	ExternalID        string
	ExternalUpdatedAt *time.Time
	IsActive          bool
}

// BufferTime holds per-organizer slot defaults (get-or-create singleton).
// Event types may override individual values; see ResolveSlotSettings.
type BufferTime struct {
	OrganizerID         string
	DefaultBufferBefore int
	DefaultBufferAfter  int
	MinimumGap          int
	SlotIntervalMinutes int
	// AdjacencyToleranceMinutes folds gaps up to this size when adjacent
	// free slots are merged. Zero keeps discrete slots separate.
	AdjacencyToleranceMinutes int
}

// OrganizerProfile carries the organizer's timezone and the reasonable-hours
// window used for multi-invitee reconciliation.
type OrganizerProfile struct {
	OrganizerID          string
	Timezone             string
	ReasonableHoursStart int
	ReasonableHoursEnd   int
}

func scopedTo(ids []string, eventTypeID string) bool {
	if len(ids) == 0 {
		return true
	}
	for _, id := range ids {
		if id == eventTypeID {
			return true
		}
	}
	return false
}
