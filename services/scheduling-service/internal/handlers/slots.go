package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/rifat-karim/meetslot/services/scheduling-service/internal/engine"
	"github.com/rifat-karim/meetslot/services/scheduling-service/internal/timeutil"
)

type SlotsHandler struct {
	engine *engine.Engine
	logger *slog.Logger
}

func NewSlotsHandler(eng *engine.Engine, logger *slog.Logger) *SlotsHandler {
	return &SlotsHandler{engine: eng, logger: logger}
}

type slotsQueryRequest struct {
	OrganizerID      string   `json:"organizer_id"`
	EventTypeID      string   `json:"event_type_id"`
	StartDate        string   `json:"start_date"`
	EndDate          string   `json:"end_date"`
	InviteeTimezone  string   `json:"invitee_timezone"`
	AttendeeCount    int      `json:"attendee_count"`
	InviteeTimezones []string `json:"invitee_timezones"`
}

// Query computes available slots for an organizer's event type over a date
// range, rendered in the invitee's timezone.
func (h *SlotsHandler) Query(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req slotsQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	startDate, err := timeutil.ParseDate(strings.TrimSpace(req.StartDate))
	if err != nil {
		http.Error(w, "invalid start_date", http.StatusBadRequest)
		return
	}
	endDate := startDate
	if strings.TrimSpace(req.EndDate) != "" {
		endDate, err = timeutil.ParseDate(strings.TrimSpace(req.EndDate))
		if err != nil {
			http.Error(w, "invalid end_date", http.StatusBadRequest)
			return
		}
	}

	res, err := h.engine.ComputeAvailableSlots(r.Context(), engine.Request{
		OrganizerID:      strings.TrimSpace(req.OrganizerID),
		EventTypeID:      strings.TrimSpace(req.EventTypeID),
		StartDate:        startDate,
		EndDate:          endDate,
		InviteeTimezone:  strings.TrimSpace(req.InviteeTimezone),
		AttendeeCount:    req.AttendeeCount,
		InviteeTimezones: req.InviteeTimezones,
	})
	if err != nil {
		if errors.Is(err, engine.ErrInvalidInput) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("availability computation failed", "err", err)
		http.Error(w, "failed to compute availability", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
