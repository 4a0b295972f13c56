package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/rifat-karim/meetslot/services/scheduling-service/internal/availcache"
	"github.com/rifat-karim/meetslot/services/scheduling-service/internal/model"
	"github.com/rifat-karim/meetslot/services/scheduling-service/internal/outbox"
	"github.com/rifat-karim/meetslot/services/scheduling-service/internal/storage"
	"github.com/rifat-karim/meetslot/services/scheduling-service/internal/timeutil"
)

// AvailabilityHandler owns the organizer-facing CRUD for rules, overrides,
// blocks and buffer settings. Every successful mutation dirty-marks the
// returned cache scopes and emits an availability changed event.
type AvailabilityHandler struct {
	repo   *storage.Repository
	outbox *outbox.Repository
	cache  *availcache.Cache
	logger *slog.Logger
}

func NewAvailabilityHandler(repo *storage.Repository, ob *outbox.Repository, cache *availcache.Cache, logger *slog.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{repo: repo, outbox: ob, cache: cache, logger: logger}
}

type ruleRequest struct {
	OrganizerID  string   `json:"organizer_id"`
	RuleID       string   `json:"rule_id,omitempty"`
	DayOfWeek    int      `json:"day_of_week"`
	StartMinute  int      `json:"start_minute"`
	EndMinute    int      `json:"end_minute"`
	EventTypeIDs []string `json:"event_type_ids,omitempty"`
}

func (h *AvailabilityHandler) Rules(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if !decode(w, r, &req) {
		return
	}
	if req.OrganizerID == "" {
		http.Error(w, "organizer_id is required", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodPost:
		if req.DayOfWeek < 0 || req.DayOfWeek > 6 || !validMinutes(req.StartMinute, req.EndMinute) {
			http.Error(w, "invalid rule window", http.StatusBadRequest)
			return
		}
		rule := model.AvailabilityRule{
			OrganizerID:  req.OrganizerID,
			DayOfWeek:    time.Weekday(req.DayOfWeek),
			StartMinute:  req.StartMinute,
			EndMinute:    req.EndMinute,
			EventTypeIDs: req.EventTypeIDs,
			IsActive:     true,
		}
		scopes, err := h.repo.CreateRule(r.Context(), &rule)
		if err != nil {
			h.fail(w, "create availability rule", err)
			return
		}
		h.invalidate(r.Context(), req.OrganizerID, "rule", scopes)
		writeJSON(w, http.StatusCreated, map[string]string{"rule_id": rule.ID})
	case http.MethodPut:
		if req.RuleID == "" {
			http.Error(w, "rule_id is required", http.StatusBadRequest)
			return
		}
		if req.DayOfWeek < 0 || req.DayOfWeek > 6 || !validMinutes(req.StartMinute, req.EndMinute) {
			http.Error(w, "invalid rule window", http.StatusBadRequest)
			return
		}
		rule := model.AvailabilityRule{
			ID:           req.RuleID,
			OrganizerID:  req.OrganizerID,
			DayOfWeek:    time.Weekday(req.DayOfWeek),
			StartMinute:  req.StartMinute,
			EndMinute:    req.EndMinute,
			EventTypeIDs: req.EventTypeIDs,
			IsActive:     true,
		}
		scopes, err := h.repo.UpdateRule(r.Context(), &rule)
		if err != nil {
			if storage.IsNotFound(err) {
				http.Error(w, "rule not found", http.StatusNotFound)
				return
			}
			h.fail(w, "update availability rule", err)
			return
		}
		h.invalidate(r.Context(), req.OrganizerID, "rule", scopes)
		writeJSON(w, http.StatusOK, map[string]string{"rule_id": rule.ID})
	case http.MethodDelete:
		scopes, err := h.repo.DeleteRule(r.Context(), req.OrganizerID, req.RuleID)
		if err != nil {
			if storage.IsNotFound(err) {
				http.Error(w, "rule not found", http.StatusNotFound)
				return
			}
			h.fail(w, "delete availability rule", err)
			return
		}
		h.invalidate(r.Context(), req.OrganizerID, "rule", scopes)
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type overrideRequest struct {
	OrganizerID  string   `json:"organizer_id"`
	OverrideID   string   `json:"override_id,omitempty"`
	Date         string   `json:"date"`
	IsAvailable  bool     `json:"is_available"`
	StartMinute  *int     `json:"start_minute,omitempty"`
	EndMinute    *int     `json:"end_minute,omitempty"`
	EventTypeIDs []string `json:"event_type_ids,omitempty"`
}

func (h *AvailabilityHandler) Overrides(w http.ResponseWriter, r *http.Request) {
	var req overrideRequest
	if !decode(w, r, &req) {
		return
	}
	if req.OrganizerID == "" {
		http.Error(w, "organizer_id is required", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodPost:
		date, err := timeutil.ParseDate(strings.TrimSpace(req.Date))
		if err != nil {
			http.Error(w, "invalid date", http.StatusBadRequest)
			return
		}
		if (req.StartMinute == nil) != (req.EndMinute == nil) {
			http.Error(w, "start_minute and end_minute must be set together", http.StatusBadRequest)
			return
		}
		if req.StartMinute != nil && !validMinutes(*req.StartMinute, *req.EndMinute) {
			http.Error(w, "invalid override window", http.StatusBadRequest)
			return
		}
		o := model.DateOverrideRule{
			OrganizerID:  req.OrganizerID,
			Date:         date,
			IsAvailable:  req.IsAvailable,
			StartMinute:  req.StartMinute,
			EndMinute:    req.EndMinute,
			EventTypeIDs: req.EventTypeIDs,
			IsActive:     true,
		}
		scopes, err := h.repo.CreateOverride(r.Context(), &o)
		if err != nil {
			h.fail(w, "create date override", err)
			return
		}
		h.invalidate(r.Context(), req.OrganizerID, "override", scopes)
		writeJSON(w, http.StatusCreated, map[string]string{"override_id": o.ID})
	case http.MethodPut:
		if req.OverrideID == "" {
			http.Error(w, "override_id is required", http.StatusBadRequest)
			return
		}
		date, err := timeutil.ParseDate(strings.TrimSpace(req.Date))
		if err != nil {
			http.Error(w, "invalid date", http.StatusBadRequest)
			return
		}
		if (req.StartMinute == nil) != (req.EndMinute == nil) {
			http.Error(w, "start_minute and end_minute must be set together", http.StatusBadRequest)
			return
		}
		if req.StartMinute != nil && !validMinutes(*req.StartMinute, *req.EndMinute) {
			http.Error(w, "invalid override window", http.StatusBadRequest)
			return
		}
		o := model.DateOverrideRule{
			ID:           req.OverrideID,
			OrganizerID:  req.OrganizerID,
			Date:         date,
			IsAvailable:  req.IsAvailable,
			StartMinute:  req.StartMinute,
			EndMinute:    req.EndMinute,
			EventTypeIDs: req.EventTypeIDs,
			IsActive:     true,
		}
		scopes, err := h.repo.UpdateOverride(r.Context(), &o)
		if err != nil {
			if storage.IsNotFound(err) {
				http.Error(w, "override not found", http.StatusNotFound)
				return
			}
			h.fail(w, "update date override", err)
			return
		}
		h.invalidate(r.Context(), req.OrganizerID, "override", scopes)
		writeJSON(w, http.StatusOK, map[string]string{"override_id": o.ID})
	case http.MethodDelete:
		scopes, err := h.repo.DeleteOverride(r.Context(), req.OrganizerID, req.OverrideID)
		if err != nil {
			if storage.IsNotFound(err) {
				http.Error(w, "override not found", http.StatusNotFound)
				return
			}
			h.fail(w, "delete date override", err)
			return
		}
		h.invalidate(r.Context(), req.OrganizerID, "override", scopes)
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type blockRequest struct {
	OrganizerID string `json:"organizer_id"`
	BlockID     string `json:"block_id,omitempty"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Reason      string `json:"reason,omitempty"`
	Source      string `json:"source,omitempty"`
	ExternalID  string `json:"external_id,omitempty"`
}

func (h *AvailabilityHandler) Blocks(w http.ResponseWriter, r *http.Request) {
	var req blockRequest
	if !decode(w, r, &req) {
		return
	}
	if req.OrganizerID == "" {
		http.Error(w, "organizer_id is required", http.StatusBadRequest)
		return
	}
	loc, err := h.organizerZone(r.Context(), req.OrganizerID)
	if err != nil {
		h.fail(w, "load organizer profile", err)
		return
	}

	switch r.Method {
	case http.MethodPost:
		start, err := time.Parse(time.RFC3339, req.StartTime)
		if err != nil {
			http.Error(w, "invalid start_time", http.StatusBadRequest)
			return
		}
		end, err := time.Parse(time.RFC3339, req.EndTime)
		if err != nil {
			http.Error(w, "invalid end_time", http.StatusBadRequest)
			return
		}
		if !end.After(start) {
			http.Error(w, "end_time must be after start_time", http.StatusBadRequest)
			return
		}
		source := strings.TrimSpace(req.Source)
		if source == "" {
			source = "manual"
		}
		b := model.BlockedTime{
			OrganizerID: req.OrganizerID,
			Start:       start.UTC(),
			End:         end.UTC(),
			Reason:      strings.TrimSpace(req.Reason),
			Source:      source,
			ExternalID:  strings.TrimSpace(req.ExternalID),
			IsActive:    true,
		}
		scopes, err := h.repo.CreateBlock(r.Context(), &b, loc)
		if err != nil {
			h.fail(w, "create blocked time", err)
			return
		}
		h.invalidate(r.Context(), req.OrganizerID, "block", scopes)
		writeJSON(w, http.StatusCreated, map[string]string{"block_id": b.ID})
	case http.MethodDelete:
		scopes, err := h.repo.DeleteBlock(r.Context(), req.OrganizerID, req.BlockID, loc)
		if err != nil {
			if storage.IsNotFound(err) {
				http.Error(w, "block not found", http.StatusNotFound)
				return
			}
			h.fail(w, "delete blocked time", err)
			return
		}
		h.invalidate(r.Context(), req.OrganizerID, "block", scopes)
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type recurringBlockRequest struct {
	OrganizerID string `json:"organizer_id"`
	BlockID     string `json:"block_id,omitempty"`
	Name        string `json:"name,omitempty"`
	DayOfWeek   int    `json:"day_of_week"`
	StartMinute int    `json:"start_minute"`
	EndMinute   int    `json:"end_minute"`
	StartDate   string `json:"start_date,omitempty"`
	EndDate     string `json:"end_date,omitempty"`
}

func (h *AvailabilityHandler) RecurringBlocks(w http.ResponseWriter, r *http.Request) {
	var req recurringBlockRequest
	if !decode(w, r, &req) {
		return
	}
	if req.OrganizerID == "" {
		http.Error(w, "organizer_id is required", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodPost:
		if req.DayOfWeek < 0 || req.DayOfWeek > 6 || !validMinutes(req.StartMinute, req.EndMinute) {
			http.Error(w, "invalid recurring block window", http.StatusBadRequest)
			return
		}
		b := model.RecurringBlockedTime{
			OrganizerID: req.OrganizerID,
			Name:        strings.TrimSpace(req.Name),
			DayOfWeek:   time.Weekday(req.DayOfWeek),
			StartMinute: req.StartMinute,
			EndMinute:   req.EndMinute,
			IsActive:    true,
		}
		var err error
		if b.StartDate, err = optionalDate(req.StartDate); err != nil {
			http.Error(w, "invalid start_date", http.StatusBadRequest)
			return
		}
		if b.EndDate, err = optionalDate(req.EndDate); err != nil {
			http.Error(w, "invalid end_date", http.StatusBadRequest)
			return
		}
		scopes, err := h.repo.CreateRecurringBlock(r.Context(), &b)
		if err != nil {
			h.fail(w, "create recurring block", err)
			return
		}
		h.invalidate(r.Context(), req.OrganizerID, "recurring_block", scopes)
		writeJSON(w, http.StatusCreated, map[string]string{"block_id": b.ID})
	case http.MethodDelete:
		scopes, err := h.repo.DeleteRecurringBlock(r.Context(), req.OrganizerID, req.BlockID)
		if err != nil {
			if storage.IsNotFound(err) {
				http.Error(w, "recurring block not found", http.StatusNotFound)
				return
			}
			h.fail(w, "delete recurring block", err)
			return
		}
		h.invalidate(r.Context(), req.OrganizerID, "recurring_block", scopes)
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type bufferRequest struct {
	OrganizerID               string `json:"organizer_id"`
	DefaultBufferBefore       int    `json:"default_buffer_before"`
	DefaultBufferAfter        int    `json:"default_buffer_after"`
	MinimumGap                int    `json:"minimum_gap_minutes"`
	SlotIntervalMinutes       int    `json:"slot_interval_minutes"`
	AdjacencyToleranceMinutes int    `json:"adjacency_tolerance_minutes"`
}

func (h *AvailabilityHandler) Buffer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req bufferRequest
	if !decode(w, r, &req) {
		return
	}
	if req.OrganizerID == "" {
		http.Error(w, "organizer_id is required", http.StatusBadRequest)
		return
	}
	if req.DefaultBufferBefore < 0 || req.DefaultBufferAfter < 0 || req.MinimumGap < 0 ||
		req.SlotIntervalMinutes < 0 || req.AdjacencyToleranceMinutes < 0 {
		http.Error(w, "buffer values must be non-negative", http.StatusBadRequest)
		return
	}

	b := model.BufferTime{
		OrganizerID:               req.OrganizerID,
		DefaultBufferBefore:       req.DefaultBufferBefore,
		DefaultBufferAfter:        req.DefaultBufferAfter,
		MinimumGap:                req.MinimumGap,
		SlotIntervalMinutes:       req.SlotIntervalMinutes,
		AdjacencyToleranceMinutes: req.AdjacencyToleranceMinutes,
	}
	scopes, err := h.repo.UpdateBufferTime(r.Context(), &b)
	if err != nil {
		h.fail(w, "update buffer settings", err)
		return
	}
	h.invalidate(r.Context(), req.OrganizerID, "buffer", scopes)
	w.WriteHeader(http.StatusNoContent)
}

// invalidate dirty-marks the scopes and emits one availability changed
// event. Cache and outbox failures are logged, not surfaced: the mutation
// already committed.
func (h *AvailabilityHandler) invalidate(ctx context.Context, organizerID, kind string, scopes []availcache.DirtyScope) {
	scopeLabel := availcache.WildcardDate
	for _, scope := range scopes {
		if h.cache != nil {
			if err := h.cache.MarkDirty(ctx, scope); err != nil {
				h.logger.Warn("cache dirty mark failed", "organizer_id", organizerID, "err", err)
			}
		}
		if !scope.Date.IsZero() {
			scopeLabel = scope.Date.String()
		}
	}
	evt, err := outbox.AvailabilityChanged(organizerID, kind, scopeLabel)
	if err == nil {
		err = h.outbox.InsertStandalone(ctx, evt)
	}
	if err != nil {
		h.logger.Warn("availability changed event not emitted", "organizer_id", organizerID, "err", err)
	}
}

func (h *AvailabilityHandler) organizerZone(ctx context.Context, organizerID string) (*time.Location, error) {
	prof, err := h.repo.GetProfile(ctx, organizerID)
	if err != nil {
		return nil, err
	}
	return timeutil.LoadZone(prof.Timezone)
}

func (h *AvailabilityHandler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op+" failed", "err", err)
	http.Error(w, op+" failed", http.StatusInternalServerError)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return false
	}
	return true
}

func validMinutes(start, end int) bool {
	return start >= 0 && start < timeutil.MinutesPerDay &&
		end >= 0 && end <= timeutil.MinutesPerDay &&
		start != end
}

func optionalDate(s string) (*timeutil.Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	d, err := timeutil.ParseDate(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
