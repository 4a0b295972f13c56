package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rifat-karim/meetslot/services/scheduling-service/internal/model"
)

// Booking mutations run inside a caller-owned transaction so the conflict
// re-check, the write and the outbox insert commit atomically. The bookings
// table carries an exclusion constraint on (organizer_id, buffered range)
// as the final arbiter when two transactions race.

func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

func (r *Repository) InsertBooking(ctx context.Context, tx pgx.Tx, b *model.Booking) error {
	return tx.QueryRow(ctx, `
		INSERT INTO bookings
			(organizer_id, event_type_id, start_time, end_time, status, confirmed_attendees, buffer_before, buffer_after)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id::text
	`, b.OrganizerID, b.EventTypeID, b.Start, b.End, b.Status,
		b.ConfirmedAttendees, b.BufferBefore, b.BufferAfter).Scan(&b.ID)
}

func (r *Repository) GetBookingForUpdate(ctx context.Context, tx pgx.Tx, organizerID, bookingID string) (model.Booking, error) {
	var b model.Booking
	err := tx.QueryRow(ctx, `
		SELECT id::text, organizer_id::text, event_type_id::text,
			start_time, end_time, status, confirmed_attendees, buffer_before, buffer_after
		FROM bookings
		WHERE id = $1 AND organizer_id = $2
		FOR UPDATE
	`, bookingID, organizerID).Scan(
		&b.ID,
		&b.OrganizerID,
		&b.EventTypeID,
		&b.Start,
		&b.End,
		&b.Status,
		&b.ConfirmedAttendees,
		&b.BufferBefore,
		&b.BufferAfter,
	)
	if err != nil {
		return model.Booking{}, err
	}
	return b, nil
}

// GetGroupSessionForUpdate locks the confirmed booking of the same event
// type at exactly the candidate times, if one exists. Joining attendees
// increment it instead of inserting a second row.
func (r *Repository) GetGroupSessionForUpdate(ctx context.Context, tx pgx.Tx, organizerID, eventTypeID string, start, end time.Time) (model.Booking, bool, error) {
	var b model.Booking
	err := tx.QueryRow(ctx, `
		SELECT id::text, organizer_id::text, event_type_id::text,
			start_time, end_time, status, confirmed_attendees, buffer_before, buffer_after
		FROM bookings
		WHERE organizer_id = $1
			AND event_type_id = $2
			AND start_time = $3
			AND end_time = $4
			AND status = 'confirmed'
		FOR UPDATE
	`, organizerID, eventTypeID, start, end).Scan(
		&b.ID,
		&b.OrganizerID,
		&b.EventTypeID,
		&b.Start,
		&b.End,
		&b.Status,
		&b.ConfirmedAttendees,
		&b.BufferBefore,
		&b.BufferAfter,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Booking{}, false, nil
	}
	if err != nil {
		return model.Booking{}, false, err
	}
	return b, true, nil
}

func (r *Repository) AddAttendees(ctx context.Context, tx pgx.Tx, bookingID string, count int) (int, error) {
	var total int
	err := tx.QueryRow(ctx, `
		UPDATE bookings
		SET confirmed_attendees = confirmed_attendees + $2, updated_at = now()
		WHERE id = $1
		RETURNING confirmed_attendees
	`, bookingID, count).Scan(&total)
	return total, err
}

func (r *Repository) CancelBooking(ctx context.Context, tx pgx.Tx, organizerID, bookingID, reason string) (time.Time, error) {
	var cancelledAt time.Time
	err := tx.QueryRow(ctx, `
		UPDATE bookings
		SET status = 'cancelled',
			cancelled_at = now(),
			cancellation_reason = $3,
			updated_at = now()
		WHERE id = $1 AND organizer_id = $2 AND status = 'confirmed'
		RETURNING cancelled_at
	`, bookingID, organizerID, reason).Scan(&cancelledAt)
	return cancelledAt, err
}

func (r *Repository) RescheduleBooking(ctx context.Context, tx pgx.Tx, organizerID, bookingID string, start, end time.Time) error {
	tag, err := tx.Exec(ctx, `
		UPDATE bookings
		SET start_time = $3, end_time = $4, updated_at = now()
		WHERE id = $1 AND organizer_id = $2 AND status = 'confirmed'
	`, bookingID, organizerID, start, end)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ListConfirmedAround returns confirmed bookings overlapping the widened
// window, with per-booking buffers, locked against concurrent mutation.
// Used by the in-transaction re-check before a write.
func (r *Repository) ListConfirmedAround(ctx context.Context, tx pgx.Tx, organizerID string, from, to time.Time) ([]model.Booking, error) {
	rows, err := tx.Query(ctx, `
		SELECT id::text, organizer_id::text, event_type_id::text,
			start_time, end_time, status, confirmed_attendees, buffer_before, buffer_after
		FROM bookings
		WHERE organizer_id = $1
			AND status = 'confirmed'
			AND start_time < $3 + interval '1 day'
			AND end_time > $2 - interval '1 day'
		ORDER BY start_time
		FOR UPDATE
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

// WaitlistEntry is an invitee waiting for a specific slot to open.
type WaitlistEntry struct {
	ID           string
	OrganizerID  string
	EventTypeID  string
	Start        time.Time
	End          time.Time
	InviteeEmail string
	CreatedAt    time.Time
}

// OldestWaitlisted returns the longest-waiting active entry for the exact
// slot, or ok=false when nobody is waiting.
func (r *Repository) OldestWaitlisted(ctx context.Context, tx pgx.Tx, organizerID, eventTypeID string, start, end time.Time) (WaitlistEntry, bool, error) {
	var e WaitlistEntry
	err := tx.QueryRow(ctx, `
		SELECT id::text, organizer_id::text, event_type_id::text,
			start_time, end_time, invitee_email, created_at
		FROM waitlist_entries
		WHERE organizer_id = $1
			AND event_type_id = $2
			AND start_time = $3
			AND end_time = $4
			AND is_active = true
		ORDER BY created_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`, organizerID, eventTypeID, start, end).Scan(
		&e.ID, &e.OrganizerID, &e.EventTypeID, &e.Start, &e.End, &e.InviteeEmail, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return WaitlistEntry{}, false, nil
	}
	if err != nil {
		return WaitlistEntry{}, false, err
	}
	return e, true, nil
}

func (r *Repository) DeactivateWaitlistEntry(ctx context.Context, tx pgx.Tx, entryID string) error {
	_, err := tx.Exec(ctx, `
		UPDATE waitlist_entries
		SET is_active = false, updated_at = now()
		WHERE id = $1
	`, entryID)
	return err
}
