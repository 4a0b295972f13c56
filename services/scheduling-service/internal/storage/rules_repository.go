package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rifat-karim/meetslot/services/scheduling-service/internal/availcache"
	"github.com/rifat-karim/meetslot/services/scheduling-service/internal/model"
	"github.com/rifat-karim/meetslot/services/scheduling-service/internal/timeutil"
)

// Every mutation returns the cache scopes it dirties. Weekly rules, recurring
// blocks and buffer settings affect an unbounded set of dates, so they dirty
// the whole organizer; date-scoped data dirties only the dates it touches.

func (r *Repository) CreateRule(ctx context.Context, rule *model.AvailabilityRule) ([]availcache.DirtyScope, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO availability_rules (organizer_id, day_of_week, start_minute, end_minute, event_type_ids, is_active)
		VALUES ($1, $2, $3, $4, $5, true)
		RETURNING id::text
	`, rule.OrganizerID, int(rule.DayOfWeek), rule.StartMinute, rule.EndMinute, rule.EventTypeIDs).Scan(&rule.ID)
	if err != nil {
		return nil, err
	}
	return wholeOrganizer(rule.OrganizerID), nil
}

func (r *Repository) UpdateRule(ctx context.Context, rule *model.AvailabilityRule) ([]availcache.DirtyScope, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE availability_rules
		SET day_of_week = $3, start_minute = $4, end_minute = $5, event_type_ids = $6, is_active = $7, updated_at = now()
		WHERE id = $1 AND organizer_id = $2
	`, rule.ID, rule.OrganizerID, int(rule.DayOfWeek), rule.StartMinute, rule.EndMinute, rule.EventTypeIDs, rule.IsActive)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, pgx.ErrNoRows
	}
	return wholeOrganizer(rule.OrganizerID), nil
}

func (r *Repository) DeleteRule(ctx context.Context, organizerID, ruleID string) ([]availcache.DirtyScope, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE availability_rules
		SET is_active = false, updated_at = now()
		WHERE id = $1 AND organizer_id = $2 AND is_active = true
	`, ruleID, organizerID)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, pgx.ErrNoRows
	}
	return wholeOrganizer(organizerID), nil
}

func (r *Repository) CreateOverride(ctx context.Context, o *model.DateOverrideRule) ([]availcache.DirtyScope, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO date_override_rules
			(organizer_id, override_date, is_available, start_minute, end_minute, event_type_ids, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, true)
		RETURNING id::text
	`, o.OrganizerID, o.Date.String(), o.IsAvailable, o.StartMinute, o.EndMinute, o.EventTypeIDs).Scan(&o.ID)
	if err != nil {
		return nil, err
	}
	return overrideScopes(*o), nil
}

func (r *Repository) UpdateOverride(ctx context.Context, o *model.DateOverrideRule) ([]availcache.DirtyScope, error) {
	var prevDate time.Time
	err := r.pool.QueryRow(ctx, `
		UPDATE date_override_rules
		SET override_date = $3, is_available = $4, start_minute = $5, end_minute = $6,
			event_type_ids = $7, is_active = $8, updated_at = now()
		WHERE id = $1 AND organizer_id = $2
		RETURNING (SELECT override_date FROM date_override_rules WHERE id = $1)
	`, o.ID, o.OrganizerID, o.Date.String(), o.IsAvailable, o.StartMinute, o.EndMinute,
		o.EventTypeIDs, o.IsActive).Scan(&prevDate)
	if err != nil {
		return nil, err
	}
	// Both the old and the new date are dirty when the override moved. The
	// day after the old date is included for midnight-spanning windows.
	scopes := overrideScopes(*o)
	if prev := timeutil.DateOf(prevDate); !prev.Equal(o.Date) {
		scopes = append(scopes,
			availcache.DirtyScope{OrganizerID: o.OrganizerID, Date: prev},
			availcache.DirtyScope{OrganizerID: o.OrganizerID, Date: prev.AddDays(1)})
	}
	return scopes, nil
}

func (r *Repository) DeleteOverride(ctx context.Context, organizerID, overrideID string) ([]availcache.DirtyScope, error) {
	var day time.Time
	err := r.pool.QueryRow(ctx, `
		UPDATE date_override_rules
		SET is_active = false, updated_at = now()
		WHERE id = $1 AND organizer_id = $2 AND is_active = true
		RETURNING override_date
	`, overrideID, organizerID).Scan(&day)
	if err != nil {
		return nil, err
	}
	d := timeutil.DateOf(day)
	return []availcache.DirtyScope{
		{OrganizerID: organizerID, Date: d},
		{OrganizerID: organizerID, Date: d.AddDays(1)},
	}, nil
}

// CreateBlock inserts an absolute block. loc is the organizer's timezone,
// used to translate the block's UTC span into dirty local dates.
func (r *Repository) CreateBlock(ctx context.Context, b *model.BlockedTime, loc *time.Location) ([]availcache.DirtyScope, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO blocked_times (organizer_id, start_time, end_time, reason, source, external_id, external_updated_at, is_active)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, true)
		RETURNING id::text
	`, b.OrganizerID, b.Start, b.End, b.Reason, b.Source, b.ExternalID, b.ExternalUpdatedAt).Scan(&b.ID)
	if err != nil {
		return nil, err
	}
	return blockScopes(b.OrganizerID, b.Start, b.End, loc), nil
}

func (r *Repository) DeleteBlock(ctx context.Context, organizerID, blockID string, loc *time.Location) ([]availcache.DirtyScope, error) {
	var start, end time.Time
	err := r.pool.QueryRow(ctx, `
		UPDATE blocked_times
		SET is_active = false, updated_at = now()
		WHERE id = $1 AND organizer_id = $2 AND is_active = true
		RETURNING start_time, end_time
	`, blockID, organizerID).Scan(&start, &end)
	if err != nil {
		return nil, err
	}
	return blockScopes(organizerID, start, end, loc), nil
}

func (r *Repository) CreateRecurringBlock(ctx context.Context, b *model.RecurringBlockedTime) ([]availcache.DirtyScope, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO recurring_blocked_times
			(organizer_id, name, day_of_week, start_minute, end_minute, start_date, end_date, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, true)
		RETURNING id::text
	`, b.OrganizerID, b.Name, int(b.DayOfWeek), b.StartMinute, b.EndMinute,
		dateArg(b.StartDate), dateArg(b.EndDate)).Scan(&b.ID)
	if err != nil {
		return nil, err
	}
	return wholeOrganizer(b.OrganizerID), nil
}

func (r *Repository) DeleteRecurringBlock(ctx context.Context, organizerID, blockID string) ([]availcache.DirtyScope, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE recurring_blocked_times
		SET is_active = false, updated_at = now()
		WHERE id = $1 AND organizer_id = $2 AND is_active = true
	`, blockID, organizerID)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, pgx.ErrNoRows
	}
	return wholeOrganizer(organizerID), nil
}

func (r *Repository) UpdateBufferTime(ctx context.Context, b *model.BufferTime) ([]availcache.DirtyScope, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO buffer_times
			(organizer_id, default_buffer_before, default_buffer_after, minimum_gap_minutes,
			 slot_interval_minutes, adjacency_tolerance_minutes)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (organizer_id) DO UPDATE SET
			default_buffer_before = EXCLUDED.default_buffer_before,
			default_buffer_after = EXCLUDED.default_buffer_after,
			minimum_gap_minutes = EXCLUDED.minimum_gap_minutes,
			slot_interval_minutes = EXCLUDED.slot_interval_minutes,
			adjacency_tolerance_minutes = EXCLUDED.adjacency_tolerance_minutes,
			updated_at = now()
	`, b.OrganizerID, b.DefaultBufferBefore, b.DefaultBufferAfter, b.MinimumGap,
		b.SlotIntervalMinutes, b.AdjacencyToleranceMinutes)
	if err != nil {
		return nil, err
	}
	return wholeOrganizer(b.OrganizerID), nil
}

func wholeOrganizer(organizerID string) []availcache.DirtyScope {
	return []availcache.DirtyScope{{OrganizerID: organizerID}}
}

// overrideScopes dirties the override's date plus the next one, since a
// midnight-spanning window contributes slots to the following local date.
func overrideScopes(o model.DateOverrideRule) []availcache.DirtyScope {
	return []availcache.DirtyScope{
		{OrganizerID: o.OrganizerID, Date: o.Date},
		{OrganizerID: o.OrganizerID, Date: o.Date.AddDays(1)},
	}
}

func blockScopes(organizerID string, start, end time.Time, loc *time.Location) []availcache.DirtyScope {
	first := timeutil.DateOf(start.In(loc))
	last := timeutil.DateOf(end.In(loc))
	var scopes []availcache.DirtyScope
	for d := first; !d.After(last); d = d.AddDays(1) {
		scopes = append(scopes, availcache.DirtyScope{OrganizerID: organizerID, Date: d})
	}
	return scopes
}

func dateArg(d *timeutil.Date) any {
	if d == nil {
		return nil
	}
	return d.String()
}
