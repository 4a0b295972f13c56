// Package engine orchestrates one availability computation: load a data
// snapshot, resolve rules into windows, generate candidate slots, merge,
// localize, and optionally rank for multiple invitees. It is the only
// package that touches the cache and the busy-time fetcher.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/rifat-karim/meetslot/services/scheduling-service/internal/availcache"
	"github.com/rifat-karim/meetslot/services/scheduling-service/internal/busytime"
	"github.com/rifat-karim/meetslot/services/scheduling-service/internal/conflict"
	"github.com/rifat-karim/meetslot/services/scheduling-service/internal/model"
	"github.com/rifat-karim/meetslot/services/scheduling-service/internal/reconcile"
	"github.com/rifat-karim/meetslot/services/scheduling-service/internal/rules"
	"github.com/rifat-karim/meetslot/services/scheduling-service/internal/slots"
	"github.com/rifat-karim/meetslot/services/scheduling-service/internal/storage"
	"github.com/rifat-karim/meetslot/services/scheduling-service/internal/timeutil"
)

// ErrInvalidInput marks request validation failures. Handlers map it to a
// 400 response; everything else is a 500.
var ErrInvalidInput = errors.New("invalid availability request")

// maxRangeDays bounds one request so a misbehaving client cannot ask for a
// year of slots in one call.
const maxRangeDays = 62

type Store interface {
	Snapshot(ctx context.Context, q storage.SnapshotQuery) (*model.AvailabilitySnapshot, error)
}

type BusyFetcher interface {
	Fetch(ctx context.Context, organizerID string, from, to time.Time) ([]busytime.Interval, []string)
}

type SlotCache interface {
	Get(ctx context.Context, key availcache.Key) (*availcache.Entry, error)
	Put(ctx context.Context, key availcache.Key, e availcache.Entry) error
}

type Request struct {
	OrganizerID      string
	EventTypeID      string
	StartDate        timeutil.Date
	EndDate          timeutil.Date
	InviteeTimezone  string
	AttendeeCount    int
	InviteeTimezones []string
}

type Metrics struct {
	SnapshotMillis int64 `json:"snapshot_ms"`
	BusyMillis     int64 `json:"busy_fetch_ms"`
	GenerateMillis int64 `json:"generate_ms"`
	TotalMillis    int64 `json:"total_ms"`
	Windows        int   `json:"windows"`
	RawSlots       int   `json:"raw_slots"`
}

type Result struct {
	Slots      []model.Slot `json:"slots"`
	Warnings   []string     `json:"warnings,omitempty"`
	TotalSlots int          `json:"total_slots"`
	CacheHit   bool         `json:"cache_hit"`
	Metrics    Metrics      `json:"metrics"`
}

type Engine struct {
	store  Store
	busy   BusyFetcher
	cache  SlotCache
	logger *slog.Logger
	now    func() time.Time
}

func New(store Store, busy BusyFetcher, cache SlotCache, logger *slog.Logger) *Engine {
	return &Engine{store: store, busy: busy, cache: cache, logger: logger, now: time.Now}
}

// ComputeAvailableSlots is the service's core operation. The cache is
// consulted only for single-day requests; multi-day requests always
// compute, because the per-date variants would multiply cache entries
// without a matching hit rate.
func (e *Engine) ComputeAvailableSlots(ctx context.Context, req Request) (*Result, error) {
	started := e.now()

	req, err := e.normalize(req)
	if err != nil {
		return nil, err
	}

	ctx, span := otel.Tracer("engine").Start(ctx, "availability.compute",
		trace.WithAttributes(
			attribute.String("organizer.id", req.OrganizerID),
			attribute.String("event_type.id", req.EventTypeID),
			attribute.String("range.start", req.StartDate.String()),
			attribute.String("range.end", req.EndDate.String()),
			attribute.Int("attendee.count", req.AttendeeCount),
		),
	)
	defer span.End()

	// Multi-invitee results are filtered and ranked, but the cache key
	// does not encode the zone list; caching them would serve the reduced
	// set to later plain requests on the same key.
	cacheable := req.StartDate.Equal(req.EndDate) &&
		e.cache != nil && len(req.InviteeTimezones) <= 1
	cacheKey := availcache.Key{
		OrganizerID:   req.OrganizerID,
		EventTypeID:   req.EventTypeID,
		Date:          req.StartDate,
		Timezone:      req.InviteeTimezone,
		AttendeeCount: req.AttendeeCount,
	}
	if cacheable {
		entry, err := e.cache.Get(ctx, cacheKey)
		if err != nil {
			e.logger.Warn("availability cache read failed; computing", "err", err)
		} else if entry != nil {
			span.AddEvent("cache.hit")
			return &Result{
				Slots:      entry.Slots,
				TotalSlots: len(entry.Slots),
				CacheHit:   true,
				Metrics:    Metrics{TotalMillis: time.Since(started).Milliseconds()},
			}, nil
		}
	}

	res, err := e.compute(ctx, req, span)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	res.Metrics.TotalMillis = time.Since(started).Milliseconds()

	// Degraded results (provider warnings) are not cached: a later request
	// may see the provider recovered.
	if cacheable && len(res.Warnings) == 0 {
		entry := availcache.Entry{
			Slots:      res.Slots,
			ComputedAt: e.now().UTC(),
			ComputeMS:  res.Metrics.TotalMillis,
		}
		if err := e.cache.Put(ctx, cacheKey, entry); err != nil {
			e.logger.Warn("availability cache write failed", "err", err)
		}
	}
	return res, nil
}

func (e *Engine) compute(ctx context.Context, req Request, span trace.Span) (*Result, error) {
	inviteeZone, err := timeutil.LoadZone(req.InviteeTimezone)
	if err != nil {
		return nil, fmt.Errorf("%w: invitee timezone: %v", ErrInvalidInput, err)
	}

	snapStart := e.now()
	// From is anchored a day early so windows spilling over midnight into
	// StartDate see their blocked-time context.
	firstAnchor := req.StartDate.AddDays(-1)
	snap, err := e.store.Snapshot(ctx, storage.SnapshotQuery{
		OrganizerID: req.OrganizerID,
		EventTypeID: req.EventTypeID,
		From:        firstAnchor.At(0, time.UTC),
		To:          req.EndDate.AddDays(2).At(0, time.UTC),
	})
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, fmt.Errorf("%w: unknown organizer or event type", ErrInvalidInput)
		}
		return nil, fmt.Errorf("load availability snapshot: %w", err)
	}
	snapMillis := time.Since(snapStart).Milliseconds()
	span.AddEvent("snapshot.loaded")

	orgZone, err := timeutil.LoadZone(snap.Profile.Timezone)
	if err != nil {
		return nil, fmt.Errorf("organizer timezone %q: %w", snap.Profile.Timezone, err)
	}
	if req.AttendeeCount > 1 && req.AttendeeCount > snap.EventType.MaxAttendees {
		return nil, fmt.Errorf("%w: attendee count exceeds event capacity", ErrInvalidInput)
	}
	settings := model.ResolveSlotSettings(snap.EventType, snap.Buffer, snap.Profile)

	busyStart := e.now()
	var busy []timeutil.Interval
	var warnings []string
	if e.busy != nil {
		raw, busyWarnings := e.busy.Fetch(ctx, req.OrganizerID,
			firstAnchor.At(0, orgZone), req.EndDate.AddDays(2).At(0, orgZone))
		for _, b := range raw {
			busy = append(busy, timeutil.Interval{Start: b.Start, End: b.End})
		}
		warnings = append(warnings, busyWarnings...)
	}
	busyMillis := time.Since(busyStart).Milliseconds()
	span.AddEvent("busy.fetched")

	checker := &conflict.Checker{
		Now:           e.now(),
		Zone:          orgZone,
		EventType:     snap.EventType,
		Settings:      settings,
		Blocks:        snap.Blocks,
		Recurring:     snap.Recurring,
		Busy:          busy,
		Bookings:      snap.Bookings,
		AttendeeCount: req.AttendeeCount,
	}

	genStart := e.now()
	var raw []model.Slot
	windows := 0
	// Anchoring one day early catches windows that span midnight into the
	// requested range; ranges outside [StartDate, EndDate] are dropped so
	// the result stays within the dates the caller asked for.
	for d := firstAnchor; !d.After(req.EndDate); d = d.AddDays(1) {
		if !snap.EventType.CanBookOn(d) {
			continue
		}
		resolution := rules.Resolve(d, req.EventTypeID, snap.Rules, snap.Overrides)
		if resolution.DayBlocked {
			continue
		}
		for _, win := range resolution.Ranges {
			if win.Date.Before(req.StartDate) || win.Date.After(req.EndDate) {
				continue
			}
			windows++
			raw = append(raw, slots.Generate(win, orgZone, checker)...)
		}
	}
	span.AddEvent("slots.generated", trace.WithAttributes(attribute.Int("slots.raw", len(raw))))

	merged := slots.Merge(raw, settings.AdjacencyTolerance)
	final := slots.Localize(merged, orgZone, inviteeZone, e.logger)

	if len(req.InviteeTimezones) > 1 {
		zones, zoneWarnings := loadZones(req.InviteeTimezones)
		warnings = append(warnings, zoneWarnings...)
		// Ranking still runs when at least two valid zones remain; a
		// request degraded to one zone keeps the plain slot list.
		if len(zones) > 1 {
			final = reconcile.Rank(final, zones, reconcile.Hours{
				Start: settings.ReasonableStart,
				End:   settings.ReasonableEnd,
			})
		}
	}
	genMillis := time.Since(genStart).Milliseconds()

	return &Result{
		Slots:      final,
		Warnings:   warnings,
		TotalSlots: len(final),
		Metrics: Metrics{
			SnapshotMillis: snapMillis,
			BusyMillis:     busyMillis,
			GenerateMillis: genMillis,
			Windows:        windows,
			RawSlots:       len(raw),
		},
	}, nil
}

func (e *Engine) normalize(req Request) (Request, error) {
	if req.OrganizerID == "" {
		return req, fmt.Errorf("%w: organizer_id is required", ErrInvalidInput)
	}
	if req.EventTypeID == "" {
		return req, fmt.Errorf("%w: event_type_id is required", ErrInvalidInput)
	}
	if req.StartDate.IsZero() || req.EndDate.IsZero() {
		return req, fmt.Errorf("%w: start_date and end_date are required", ErrInvalidInput)
	}
	if req.EndDate.Before(req.StartDate) {
		return req, fmt.Errorf("%w: end_date precedes start_date", ErrInvalidInput)
	}
	if req.StartDate.DaysUntil(req.EndDate) >= maxRangeDays {
		return req, fmt.Errorf("%w: date range exceeds %d days", ErrInvalidInput, maxRangeDays)
	}
	if req.InviteeTimezone == "" {
		return req, fmt.Errorf("%w: invitee_timezone is required", ErrInvalidInput)
	}
	if req.AttendeeCount == 0 {
		req.AttendeeCount = 1
	}
	if req.AttendeeCount < 1 {
		return req, fmt.Errorf("%w: attendee_count must be positive", ErrInvalidInput)
	}
	return req, nil
}

// loadZones resolves the per-invitee zone names. An invalid name degrades
// that invitee to a warning instead of failing the computation.
func loadZones(names []string) ([]reconcile.Zone, []string) {
	zones := make([]reconcile.Zone, 0, len(names))
	var warnings []string
	for _, name := range names {
		loc, err := timeutil.LoadZone(name)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("invitee timezone %q is invalid and was skipped", name))
			continue
		}
		zones = append(zones, reconcile.Zone{Name: name, Loc: loc})
	}
	return zones, warnings
}
