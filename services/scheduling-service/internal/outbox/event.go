package outbox

import (
	"encoding/json"
	"fmt"
	"time"
)

// Scheduling event types. Each type is its own Kafka topic. Booking events
// double as the audit feed for reservation changes.
const (
	EventBookingCreated     = "scheduling.booking.created.v1"
	EventBookingCancelled   = "scheduling.booking.cancelled.v1"
	EventBookingRescheduled = "scheduling.booking.rescheduled.v1"
	EventAvailabilityChange = "scheduling.availability.changed.v1"
	EventWaitlistSlotOpened = "scheduling.waitlist.slot_opened.v1"
)

// Event is the domain event envelope written to the outbox table.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// BookingEvent builds a booking lifecycle event keyed by booking ID.
func BookingEvent(eventType, bookingID, organizerID, eventTypeID string, start, end time.Time) (Event, error) {
	payload, err := json.Marshal(map[string]any{
		"booking_id":    bookingID,
		"organizer_id":  organizerID,
		"event_type_id": eventTypeID,
		"start_time":    start.UTC().Format(time.RFC3339),
		"end_time":      end.UTC().Format(time.RFC3339),
		"occurred_at":   time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return Event{}, fmt.Errorf("encode booking event: %w", err)
	}
	return Event{
		AggregateType: "booking",
		AggregateID:   bookingID,
		EventType:     eventType,
		Payload:       payload,
	}, nil
}

// AvailabilityChanged signals that an organizer's availability data mutated.
// scope is a date string or "*" for organizer-wide changes.
func AvailabilityChanged(organizerID, kind, scope string) (Event, error) {
	payload, err := json.Marshal(map[string]any{
		"organizer_id": organizerID,
		"kind":         kind,
		"scope":        scope,
		"occurred_at":  time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return Event{}, fmt.Errorf("encode availability event: %w", err)
	}
	return Event{
		AggregateType: "availability",
		AggregateID:   organizerID,
		EventType:     EventAvailabilityChange,
		Payload:       payload,
	}, nil
}

// WaitlistSlotOpened notifies the longest-waiting invitee that a cancelled
// slot is free again.
func WaitlistSlotOpened(entryID, organizerID, eventTypeID, inviteeEmail string, start, end time.Time) (Event, error) {
	payload, err := json.Marshal(map[string]any{
		"waitlist_entry_id": entryID,
		"organizer_id":      organizerID,
		"event_type_id":     eventTypeID,
		"invitee_email":     inviteeEmail,
		"start_time":        start.UTC().Format(time.RFC3339),
		"end_time":          end.UTC().Format(time.RFC3339),
		"occurred_at":       time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return Event{}, fmt.Errorf("encode waitlist event: %w", err)
	}
	return Event{
		AggregateType: "waitlist_entry",
		AggregateID:   entryID,
		EventType:     EventWaitlistSlotOpened,
		Payload:       payload,
	}, nil
}
