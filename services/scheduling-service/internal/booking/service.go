// Package booking implements the reservation lifecycle. Every write runs in
// one transaction: conflict re-check under row locks, the booking mutation,
// and the outbox event commit together. The exclusion constraint on the
// bookings table is the final arbiter when two transactions race past the
// in-memory re-check.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rifat-karim/meetslot/services/scheduling-service/internal/availcache"
	"github.com/rifat-karim/meetslot/services/scheduling-service/internal/conflict"
	"github.com/rifat-karim/meetslot/services/scheduling-service/internal/model"
	"github.com/rifat-karim/meetslot/services/scheduling-service/internal/outbox"
	"github.com/rifat-karim/meetslot/services/scheduling-service/internal/rules"
	"github.com/rifat-karim/meetslot/services/scheduling-service/internal/storage"
	"github.com/rifat-karim/meetslot/services/scheduling-service/internal/timeutil"
)

var (
	// ErrSlotTaken means the requested time conflicts with existing state.
	ErrSlotTaken = errors.New("slot no longer available")
	// ErrOutsideWindow means the time falls outside the organizer's
	// availability windows or violates notice/horizon bounds.
	ErrOutsideWindow = errors.New("time outside bookable window")
	ErrNotFound      = errors.New("booking not found")
	// ErrCancelNotice means the cancellation arrived later than the event
	// type's minimum cancel notice allows.
	ErrCancelNotice = errors.New("too late to cancel")
	ErrInvalid      = errors.New("invalid booking request")
)

// DirtyMarker receives the cache scopes a mutation invalidates.
type DirtyMarker interface {
	MarkDirty(ctx context.Context, scope availcache.DirtyScope) error
}

type Service struct {
	repo   *storage.Repository
	outbox *outbox.Repository
	cache  DirtyMarker
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo *storage.Repository, ob *outbox.Repository, cache DirtyMarker, logger *slog.Logger) *Service {
	return &Service{repo: repo, outbox: ob, cache: cache, logger: logger, now: time.Now}
}

type CreateRequest struct {
	OrganizerID   string
	EventTypeID   string
	Start         time.Time
	AttendeeCount int
}

// Create books the requested start time. For group event types an existing
// session at the exact same time is joined instead of creating a second
// booking, subject to capacity.
func (s *Service) Create(ctx context.Context, req CreateRequest) (model.Booking, error) {
	if req.AttendeeCount == 0 {
		req.AttendeeCount = 1
	}
	if req.OrganizerID == "" || req.EventTypeID == "" || req.Start.IsZero() || req.AttendeeCount < 1 {
		return model.Booking{}, ErrInvalid
	}

	snap, orgZone, err := s.loadSnapshot(ctx, req.OrganizerID, req.EventTypeID, req.Start)
	if err != nil {
		return model.Booking{}, err
	}
	settings := model.ResolveSlotSettings(snap.EventType, snap.Buffer, snap.Profile)
	start := req.Start.UTC()
	end := start.Add(settings.SlotDuration)

	if req.AttendeeCount > 1 && req.AttendeeCount > snap.EventType.MaxAttendees {
		return model.Booking{}, fmt.Errorf("%w: attendee count exceeds capacity", ErrInvalid)
	}
	if err := s.checkWindow(snap, orgZone, start, end); err != nil {
		return model.Booking{}, err
	}
	now := s.now()
	if start.Before(now.Add(time.Duration(snap.EventType.MinNoticeMinutes) * time.Minute)) {
		return model.Booking{}, fmt.Errorf("%w: minimum notice not met", ErrOutsideWindow)
	}
	if snap.EventType.MaxHorizonMinutes > 0 &&
		start.After(now.Add(time.Duration(snap.EventType.MaxHorizonMinutes)*time.Minute)) {
		return model.Booking{}, fmt.Errorf("%w: beyond scheduling horizon", ErrOutsideWindow)
	}

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return model.Booking{}, fmt.Errorf("begin booking tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if snap.EventType.IsGroup() {
		session, found, err := s.repo.GetGroupSessionForUpdate(ctx, tx, req.OrganizerID, req.EventTypeID, start, end)
		if err != nil {
			return model.Booking{}, fmt.Errorf("lock group session: %w", err)
		}
		if found {
			if session.ConfirmedAttendees+req.AttendeeCount > snap.EventType.MaxAttendees {
				return model.Booking{}, fmt.Errorf("%w: group session full", ErrSlotTaken)
			}
			// The session predates this request, but blocks or recurring
			// windows created since may overlap it. Excluding the session
			// itself keeps the group-join exception out of the way.
			if err := s.recheck(ctx, tx, snap, settings, start, end, req.AttendeeCount, session.ID); err != nil {
				return model.Booking{}, err
			}
			total, err := s.repo.AddAttendees(ctx, tx, session.ID, req.AttendeeCount)
			if err != nil {
				return model.Booking{}, fmt.Errorf("join group session: %w", err)
			}
			session.ConfirmedAttendees = total
			if err := s.emitBooking(ctx, tx, outbox.EventBookingCreated, session); err != nil {
				return model.Booking{}, err
			}
			if err := tx.Commit(ctx); err != nil {
				return model.Booking{}, fmt.Errorf("commit group join: %w", err)
			}
			s.markDirty(ctx, req.OrganizerID, timeutil.DateOf(start.In(orgZone)))
			return session, nil
		}
	}

	if err := s.recheck(ctx, tx, snap, settings, start, end, req.AttendeeCount, ""); err != nil {
		return model.Booking{}, err
	}

	b := model.Booking{
		OrganizerID:        req.OrganizerID,
		EventTypeID:        req.EventTypeID,
		Start:              start,
		End:                end,
		Status:             model.BookingConfirmed,
		ConfirmedAttendees: req.AttendeeCount,
		BufferBefore:       int(settings.BufferBefore / time.Minute),
		BufferAfter:        int(settings.BufferAfter / time.Minute),
	}
	if err := s.repo.InsertBooking(ctx, tx, &b); err != nil {
		if storage.IsConflict(err) {
			return model.Booking{}, ErrSlotTaken
		}
		return model.Booking{}, fmt.Errorf("insert booking: %w", err)
	}
	if err := s.emitBooking(ctx, tx, outbox.EventBookingCreated, b); err != nil {
		return model.Booking{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		if storage.IsConflict(err) {
			return model.Booking{}, ErrSlotTaken
		}
		return model.Booking{}, fmt.Errorf("commit booking: %w", err)
	}
	s.markDirty(ctx, req.OrganizerID, timeutil.DateOf(start.In(orgZone)))
	return b, nil
}

// Cancel releases a booking and, when someone is waitlisted for the exact
// slot, emits a slot-opened event for the longest-waiting entry.
func (s *Service) Cancel(ctx context.Context, organizerID, bookingID, reason string) error {
	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin cancel tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	b, err := s.repo.GetBookingForUpdate(ctx, tx, organizerID, bookingID)
	if err != nil {
		if storage.IsNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("lock booking: %w", err)
	}
	if b.Status != model.BookingConfirmed {
		return ErrNotFound
	}

	et, err := s.repo.GetEventType(ctx, organizerID, b.EventTypeID)
	if err != nil {
		return fmt.Errorf("load event type: %w", err)
	}
	if et.MinCancelMinutes > 0 &&
		s.now().Add(time.Duration(et.MinCancelMinutes)*time.Minute).After(b.Start) {
		return ErrCancelNotice
	}

	if _, err := s.repo.CancelBooking(ctx, tx, organizerID, bookingID, reason); err != nil {
		if storage.IsNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("cancel booking: %w", err)
	}
	if err := s.emitBooking(ctx, tx, outbox.EventBookingCancelled, b); err != nil {
		return err
	}

	if entry, found, err := s.repo.OldestWaitlisted(ctx, tx, organizerID, b.EventTypeID, b.Start, b.End); err != nil {
		return fmt.Errorf("check waitlist: %w", err)
	} else if found {
		evt, err := outbox.WaitlistSlotOpened(entry.ID, entry.OrganizerID, entry.EventTypeID, entry.InviteeEmail, entry.Start, entry.End)
		if err != nil {
			return err
		}
		if err := s.outbox.Insert(ctx, tx, evt); err != nil {
			return fmt.Errorf("emit waitlist event: %w", err)
		}
		if err := s.repo.DeactivateWaitlistEntry(ctx, tx, entry.ID); err != nil {
			return fmt.Errorf("deactivate waitlist entry: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit cancel: %w", err)
	}
	s.markDirtyBookingDate(ctx, organizerID, b.Start)
	return nil
}

// Reschedule moves a booking to a new start time. Both the old and the new
// date become dirty.
func (s *Service) Reschedule(ctx context.Context, organizerID, bookingID string, newStart time.Time) (model.Booking, error) {
	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return model.Booking{}, fmt.Errorf("begin reschedule tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	b, err := s.repo.GetBookingForUpdate(ctx, tx, organizerID, bookingID)
	if err != nil {
		if storage.IsNotFound(err) {
			return model.Booking{}, ErrNotFound
		}
		return model.Booking{}, fmt.Errorf("lock booking: %w", err)
	}
	if b.Status != model.BookingConfirmed {
		return model.Booking{}, ErrNotFound
	}

	snap, orgZone, err := s.loadSnapshot(ctx, organizerID, b.EventTypeID, newStart)
	if err != nil {
		return model.Booking{}, err
	}
	settings := model.ResolveSlotSettings(snap.EventType, snap.Buffer, snap.Profile)
	start := newStart.UTC()
	end := start.Add(settings.SlotDuration)

	if err := s.checkWindow(snap, orgZone, start, end); err != nil {
		return model.Booking{}, err
	}
	// The booking being moved must not conflict with itself.
	if err := s.recheck(ctx, tx, snap, settings, start, end, b.ConfirmedAttendees, b.ID); err != nil {
		return model.Booking{}, err
	}

	oldStart := b.Start
	if err := s.repo.RescheduleBooking(ctx, tx, organizerID, bookingID, start, end); err != nil {
		if storage.IsConflict(err) {
			return model.Booking{}, ErrSlotTaken
		}
		return model.Booking{}, fmt.Errorf("reschedule booking: %w", err)
	}
	b.Start, b.End = start, end
	if err := s.emitBooking(ctx, tx, outbox.EventBookingRescheduled, b); err != nil {
		return model.Booking{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		if storage.IsConflict(err) {
			return model.Booking{}, ErrSlotTaken
		}
		return model.Booking{}, fmt.Errorf("commit reschedule: %w", err)
	}
	s.markDirty(ctx, organizerID, timeutil.DateOf(oldStart.In(orgZone)))
	s.markDirty(ctx, organizerID, timeutil.DateOf(start.In(orgZone)))
	return b, nil
}

func (s *Service) loadSnapshot(ctx context.Context, organizerID, eventTypeID string, around time.Time) (*model.AvailabilitySnapshot, *time.Location, error) {
	snap, err := s.repo.Snapshot(ctx, storage.SnapshotQuery{
		OrganizerID: organizerID,
		EventTypeID: eventTypeID,
		From:        around.Add(-24 * time.Hour),
		To:          around.Add(48 * time.Hour),
	})
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, nil, fmt.Errorf("%w: unknown organizer or event type", ErrInvalid)
		}
		return nil, nil, fmt.Errorf("load booking snapshot: %w", err)
	}
	orgZone, err := timeutil.LoadZone(snap.Profile.Timezone)
	if err != nil {
		return nil, nil, fmt.Errorf("organizer timezone %q: %w", snap.Profile.Timezone, err)
	}
	return snap, orgZone, nil
}

// checkWindow verifies [start,end) lies inside a resolved availability
// window on the organizer's local date. Midnight-spanning windows make the
// previous date's resolution relevant too.
func (s *Service) checkWindow(snap *model.AvailabilitySnapshot, orgZone *time.Location, start, end time.Time) error {
	local := start.In(orgZone)
	date := timeutil.DateOf(local)
	if !snap.EventType.CanBookOn(date) {
		return ErrOutsideWindow
	}
	for _, anchor := range []timeutil.Date{date.AddDays(-1), date} {
		res := rules.Resolve(anchor, snap.EventType.ID, snap.Rules, snap.Overrides)
		if res.DayBlocked && anchor.Equal(date) {
			return ErrOutsideWindow
		}
		for _, win := range res.Ranges {
			winStart := win.Date.At(win.StartMinute, orgZone)
			winEnd := win.Date.At(win.EndMinute, orgZone)
			if !start.Before(winStart) && !end.After(winEnd) {
				return nil
			}
		}
	}
	return ErrOutsideWindow
}

// recheck re-runs the conflict predicates under row locks, replacing the
// snapshot's bookings with freshly locked rows.
func (s *Service) recheck(ctx context.Context, tx pgx.Tx, snap *model.AvailabilitySnapshot, settings model.SlotSettings, start, end time.Time, attendees int, excludeID string) error {
	locked, err := s.repo.ListConfirmedAround(ctx, tx, snap.Profile.OrganizerID, start, end)
	if err != nil {
		return fmt.Errorf("lock surrounding bookings: %w", err)
	}
	if excludeID != "" {
		kept := locked[:0]
		for _, b := range locked {
			if b.ID != excludeID {
				kept = append(kept, b)
			}
		}
		locked = kept
	}
	orgZone, err := timeutil.LoadZone(snap.Profile.Timezone)
	if err != nil {
		return fmt.Errorf("organizer timezone %q: %w", snap.Profile.Timezone, err)
	}
	checker := &conflict.Checker{
		Now:           s.now(),
		Zone:          orgZone,
		EventType:     snap.EventType,
		Settings:      settings,
		Blocks:        snap.Blocks,
		Recurring:     snap.Recurring,
		Bookings:      locked,
		AttendeeCount: attendees,
	}
	if checker.Check(start, end) != conflict.Free {
		return ErrSlotTaken
	}
	return nil
}

func (s *Service) emitBooking(ctx context.Context, tx pgx.Tx, eventType string, b model.Booking) error {
	evt, err := outbox.BookingEvent(eventType, b.ID, b.OrganizerID, b.EventTypeID, b.Start, b.End)
	if err != nil {
		return err
	}
	if err := s.outbox.Insert(ctx, tx, evt); err != nil {
		return fmt.Errorf("emit %s: %w", eventType, err)
	}
	return nil
}

func (s *Service) markDirty(ctx context.Context, organizerID string, date timeutil.Date) {
	if s.cache == nil {
		return
	}
	if err := s.cache.MarkDirty(ctx, availcache.DirtyScope{OrganizerID: organizerID, Date: date}); err != nil {
		s.logger.Warn("cache dirty mark failed", "organizer_id", organizerID, "date", date.String(), "err", err)
	}
}

func (s *Service) markDirtyBookingDate(ctx context.Context, organizerID string, start time.Time) {
	prof, err := s.repo.GetProfile(ctx, organizerID)
	if err != nil {
		s.markDirty(ctx, organizerID, timeutil.Date{})
		return
	}
	loc, err := timeutil.LoadZone(prof.Timezone)
	if err != nil {
		s.markDirty(ctx, organizerID, timeutil.Date{})
		return
	}
	s.markDirty(ctx, organizerID, timeutil.DateOf(start.In(loc)))
}
