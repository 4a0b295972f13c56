package model

import (
	"time"

	"github.com/rifat-karim/meetslot/services/scheduling-service/internal/timeutil"
)

// EventType is consumed read-only by the availability engine. Buffer
// overrides are pointers: nil means "use the organizer's BufferTime
// default", while an explicit zero disables the buffer for this type.
type EventType struct {
	ID                  string
	OrganizerID         string
	Name                string
	DurationMinutes     int
	BufferBefore        *int
	BufferAfter         *int
	MinNoticeMinutes    int
	MinCancelMinutes    int
	MaxHorizonMinutes   int
	MaxBookingsPerDay   int // 0 = unlimited
	MaxAttendees        int // >1 = group event
	SlotIntervalMinutes int // 0 = use organizer default
	ActiveFrom          *timeutil.Date
	ActiveUntil         *timeutil.Date
	IsActive            bool
}

func (e EventType) IsGroup() bool {
	return e.MaxAttendees > 1
}

// CanBookOn reports whether the event type accepts bookings on the date.
func (e EventType) CanBookOn(d timeutil.Date) bool {
	if !e.IsActive {
		return false
	}
	if e.ActiveFrom != nil && d.Before(*e.ActiveFrom) {
		return false
	}
	if e.ActiveUntil != nil && d.After(*e.ActiveUntil) {
		return false
	}
	return true
}

// Booking statuses. Only confirmed bookings participate in conflict checks.
const (
	BookingConfirmed   = "confirmed"
	BookingCancelled   = "cancelled"
	BookingRescheduled = "rescheduled"
)

// Booking is an existing reservation. BufferBefore/After are the buffers of
// the booking's OWN event type, denormalized at load time so the conflict
// filter never needs a second lookup.
type Booking struct {
	ID                 string
	OrganizerID        string
	EventTypeID        string
	Start              time.Time
	End                time.Time
	Status             string
	ConfirmedAttendees int
	BufferBefore       int
	BufferAfter        int
}

// SlotSettings is the per-request resolution of every knob that shapes slot
// generation, with precedence event-type override > organizer default >
// system default.
type SlotSettings struct {
	SlotDuration       time.Duration
	BufferBefore       time.Duration
	BufferAfter        time.Duration
	SlotInterval       time.Duration
	MinimumGap         time.Duration
	AdjacencyTolerance time.Duration
	ReasonableStart    int
	ReasonableEnd      int
}

const (
	defaultSlotIntervalMinutes = 15
	defaultReasonableStart     = 7
	defaultReasonableEnd       = 22
)

func ResolveSlotSettings(et EventType, buf BufferTime, prof OrganizerProfile) SlotSettings {
	s := SlotSettings{
		SlotDuration:       time.Duration(et.DurationMinutes) * time.Minute,
		BufferBefore:       time.Duration(buf.DefaultBufferBefore) * time.Minute,
		BufferAfter:        time.Duration(buf.DefaultBufferAfter) * time.Minute,
		MinimumGap:         time.Duration(buf.MinimumGap) * time.Minute,
		AdjacencyTolerance: time.Duration(buf.AdjacencyToleranceMinutes) * time.Minute,
		ReasonableStart:    defaultReasonableStart,
		ReasonableEnd:      defaultReasonableEnd,
	}
	if et.BufferBefore != nil {
		s.BufferBefore = time.Duration(*et.BufferBefore) * time.Minute
	}
	if et.BufferAfter != nil {
		s.BufferAfter = time.Duration(*et.BufferAfter) * time.Minute
	}
	switch {
	case et.SlotIntervalMinutes > 0:
		s.SlotInterval = time.Duration(et.SlotIntervalMinutes) * time.Minute
	case buf.SlotIntervalMinutes > 0:
		s.SlotInterval = time.Duration(buf.SlotIntervalMinutes) * time.Minute
	default:
		s.SlotInterval = defaultSlotIntervalMinutes * time.Minute
	}
	if prof.ReasonableHoursStart > 0 || prof.ReasonableHoursEnd > 0 {
		s.ReasonableStart = prof.ReasonableHoursStart
		s.ReasonableEnd = prof.ReasonableHoursEnd
	}
	return s
}
