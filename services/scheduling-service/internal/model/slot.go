package model

import "time"

// Slot is the engine's output value. It is never persisted; cached copies
// live in Redis as JSON.
type Slot struct {
	Start           time.Time            `json:"start_time"`
	End             time.Time            `json:"end_time"`
	DurationMinutes int                  `json:"duration_minutes"`
	AvailableSpots  int                  `json:"available_spots"`
	LocalStart      time.Time            `json:"local_start_time,omitzero"`
	LocalEnd        time.Time            `json:"local_end_time,omitzero"`
	FairnessScore   float64              `json:"fairness_score,omitempty"`
	InviteeTimes    map[string]LocalTime `json:"invitee_times,omitempty"`
}

// LocalTime is a slot's start/end rendered in one invitee's timezone.
type LocalTime struct {
	Start time.Time `json:"start_time"`
	End   time.Time `json:"end_time"`
}

// AvailabilitySnapshot is everything the engine needs to compute slots for
// one request, loaded in a single storage round trip.
type AvailabilitySnapshot struct {
	Profile   OrganizerProfile
	EventType EventType
	Buffer    BufferTime
	Rules     []AvailabilityRule
	Overrides []DateOverrideRule
	Blocks    []BlockedTime
	Recurring []RecurringBlockedTime
	Bookings  []Booking
}
