package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/rifat-karim/meetslot/services/scheduling-service/internal/model"
	"github.com/rifat-karim/meetslot/services/scheduling-service/internal/timeutil"
)

// SnapshotQuery bounds the absolute data (blocks, bookings) loaded for one
// availability computation. Rules and recurring blocks are loaded whole:
// they are small and date resolution happens in memory.
type SnapshotQuery struct {
	OrganizerID string
	EventTypeID string
	From        time.Time
	To          time.Time
}

// Snapshot loads everything one availability computation needs. Each booking
// carries the buffers of its own event type so the conflict filter never
// does a per-booking lookup.
func (r *Repository) Snapshot(ctx context.Context, q SnapshotQuery) (*model.AvailabilitySnapshot, error) {
	snap := &model.AvailabilitySnapshot{}

	prof, err := r.GetProfile(ctx, q.OrganizerID)
	if err != nil {
		return nil, fmt.Errorf("load organizer profile: %w", err)
	}
	snap.Profile = prof

	et, err := r.GetEventType(ctx, q.OrganizerID, q.EventTypeID)
	if err != nil {
		return nil, fmt.Errorf("load event type: %w", err)
	}
	snap.EventType = et

	buf, err := r.GetBufferTime(ctx, q.OrganizerID)
	if err != nil {
		return nil, fmt.Errorf("load buffer settings: %w", err)
	}
	snap.Buffer = buf

	if snap.Rules, err = r.listRules(ctx, q.OrganizerID); err != nil {
		return nil, fmt.Errorf("load availability rules: %w", err)
	}
	if snap.Overrides, err = r.listOverrides(ctx, q.OrganizerID); err != nil {
		return nil, fmt.Errorf("load date overrides: %w", err)
	}
	if snap.Blocks, err = r.listBlocks(ctx, q.OrganizerID, q.From, q.To); err != nil {
		return nil, fmt.Errorf("load blocked times: %w", err)
	}
	if snap.Recurring, err = r.listRecurring(ctx, q.OrganizerID); err != nil {
		return nil, fmt.Errorf("load recurring blocks: %w", err)
	}
	if snap.Bookings, err = r.listBookings(ctx, q.OrganizerID, q.From, q.To); err != nil {
		return nil, fmt.Errorf("load bookings: %w", err)
	}
	return snap, nil
}

func (r *Repository) GetProfile(ctx context.Context, organizerID string) (model.OrganizerProfile, error) {
	var p model.OrganizerProfile
	err := r.pool.QueryRow(ctx, `
		SELECT organizer_id::text, timezone, reasonable_hours_start, reasonable_hours_end
		FROM organizer_profiles
		WHERE organizer_id = $1
	`, organizerID).Scan(&p.OrganizerID, &p.Timezone, &p.ReasonableHoursStart, &p.ReasonableHoursEnd)
	if err != nil {
		return model.OrganizerProfile{}, err
	}
	return p, nil
}

func (r *Repository) GetEventType(ctx context.Context, organizerID, eventTypeID string) (model.EventType, error) {
	var et model.EventType
	var activeFrom, activeUntil *time.Time
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, organizer_id::text, name, duration_minutes,
			buffer_before, buffer_after, min_notice_minutes, min_cancel_minutes, max_horizon_minutes,
			max_bookings_per_day, max_attendees, slot_interval_minutes,
			active_from, active_until, is_active
		FROM event_types
		WHERE id = $1 AND organizer_id = $2
	`, eventTypeID, organizerID).Scan(
		&et.ID,
		&et.OrganizerID,
		&et.Name,
		&et.DurationMinutes,
		&et.BufferBefore,
		&et.BufferAfter,
		&et.MinNoticeMinutes,
		&et.MinCancelMinutes,
		&et.MaxHorizonMinutes,
		&et.MaxBookingsPerDay,
		&et.MaxAttendees,
		&et.SlotIntervalMinutes,
		&activeFrom,
		&activeUntil,
		&et.IsActive,
	)
	if err != nil {
		return model.EventType{}, err
	}
	et.ActiveFrom = toDate(activeFrom)
	et.ActiveUntil = toDate(activeUntil)
	return et, nil
}

// GetBufferTime returns the organizer's buffer settings, creating the row
// with zero values on first access.
func (r *Repository) GetBufferTime(ctx context.Context, organizerID string) (model.BufferTime, error) {
	var b model.BufferTime
	err := r.pool.QueryRow(ctx, `
		INSERT INTO buffer_times (organizer_id)
		VALUES ($1)
		ON CONFLICT (organizer_id) DO UPDATE SET organizer_id = EXCLUDED.organizer_id
		RETURNING organizer_id::text, default_buffer_before, default_buffer_after,
			minimum_gap_minutes, slot_interval_minutes, adjacency_tolerance_minutes
	`, organizerID).Scan(
		&b.OrganizerID,
		&b.DefaultBufferBefore,
		&b.DefaultBufferAfter,
		&b.MinimumGap,
		&b.SlotIntervalMinutes,
		&b.AdjacencyToleranceMinutes,
	)
	if err != nil {
		return model.BufferTime{}, err
	}
	return b, nil
}

func (r *Repository) listRules(ctx context.Context, organizerID string) ([]model.AvailabilityRule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, organizer_id::text, day_of_week, start_minute, end_minute,
			COALESCE(event_type_ids, '{}'), is_active
		FROM availability_rules
		WHERE organizer_id = $1 AND is_active = true
		ORDER BY day_of_week, start_minute
	`, organizerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AvailabilityRule
	for rows.Next() {
		var rule model.AvailabilityRule
		var dow int
		if err := rows.Scan(&rule.ID, &rule.OrganizerID, &dow, &rule.StartMinute,
			&rule.EndMinute, &rule.EventTypeIDs, &rule.IsActive); err != nil {
			return nil, err
		}
		rule.DayOfWeek = time.Weekday(dow)
		out = append(out, rule)
	}
	return out, rows.Err()
}

func (r *Repository) listOverrides(ctx context.Context, organizerID string) ([]model.DateOverrideRule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, organizer_id::text, override_date, is_available,
			start_minute, end_minute, COALESCE(event_type_ids, '{}'), is_active
		FROM date_override_rules
		WHERE organizer_id = $1 AND is_active = true
		ORDER BY override_date
	`, organizerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.DateOverrideRule
	for rows.Next() {
		var o model.DateOverrideRule
		var day time.Time
		if err := rows.Scan(&o.ID, &o.OrganizerID, &day, &o.IsAvailable,
			&o.StartMinute, &o.EndMinute, &o.EventTypeIDs, &o.IsActive); err != nil {
			return nil, err
		}
		o.Date = timeutil.DateOf(day)
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *Repository) listBlocks(ctx context.Context, organizerID string, from, to time.Time) ([]model.BlockedTime, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, organizer_id::text, start_time, end_time,
			COALESCE(reason, ''), source, COALESCE(external_id, ''), external_updated_at, is_active
		FROM blocked_times
		WHERE organizer_id = $1
			AND is_active = true
			AND start_time < $3
			AND end_time > $2
		ORDER BY start_time
	`, organizerID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.BlockedTime
	for rows.Next() {
		var b model.BlockedTime
		if err := rows.Scan(&b.ID, &b.OrganizerID, &b.Start, &b.End,
			&b.Reason, &b.Source, &b.ExternalID, &b.ExternalUpdatedAt, &b.IsActive); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *Repository) listRecurring(ctx context.Context, organizerID string) ([]model.RecurringBlockedTime, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, organizer_id::text, COALESCE(name, ''), day_of_week,
			start_minute, end_minute, start_date, end_date, is_active
		FROM recurring_blocked_times
		WHERE organizer_id = $1 AND is_active = true
		ORDER BY day_of_week, start_minute
	`, organizerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.RecurringBlockedTime
	for rows.Next() {
		var b model.RecurringBlockedTime
		var dow int
		var startDate, endDate *time.Time
		if err := rows.Scan(&b.ID, &b.OrganizerID, &b.Name, &dow,
			&b.StartMinute, &b.EndMinute, &startDate, &endDate, &b.IsActive); err != nil {
			return nil, err
		}
		b.DayOfWeek = time.Weekday(dow)
		b.StartDate = toDate(startDate)
		b.EndDate = toDate(endDate)
		out = append(out, b)
	}
	return out, rows.Err()
}

// listBookings joins event_types so each booking carries its own buffers.
// The window is widened by a day on each side so buffered conflicts near
// the range edges are still visible.
func (r *Repository) listBookings(ctx context.Context, organizerID string, from, to time.Time) ([]model.Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT b.id::text, b.organizer_id::text, b.event_type_id::text,
			b.start_time, b.end_time, b.status, b.confirmed_attendees,
			COALESCE(et.buffer_before, bt.default_buffer_before, 0),
			COALESCE(et.buffer_after, bt.default_buffer_after, 0)
		FROM bookings b
		JOIN event_types et ON et.id = b.event_type_id
		LEFT JOIN buffer_times bt ON bt.organizer_id = b.organizer_id
		WHERE b.organizer_id = $1
			AND b.status = 'confirmed'
			AND b.start_time < $3 + interval '1 day'
			AND b.end_time > $2 - interval '1 day'
		ORDER BY b.start_time
	`, organizerID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Booking
	for rows.Next() {
		var b model.Booking
		if err := rows.Scan(&b.ID, &b.OrganizerID, &b.EventTypeID,
			&b.Start, &b.End, &b.Status, &b.ConfirmedAttendees,
			&b.BufferBefore, &b.BufferAfter); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func toDate(t *time.Time) *timeutil.Date {
	if t == nil {
		return nil
	}
	d := timeutil.DateOf(*t)
	return &d
}
