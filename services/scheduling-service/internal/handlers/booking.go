package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/rifat-karim/meetslot/services/scheduling-service/internal/booking"
)

type BookingHandler struct {
	svc    *booking.Service
	logger *slog.Logger
}

func NewBookingHandler(svc *booking.Service, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{svc: svc, logger: logger}
}

type createBookingRequest struct {
	OrganizerID     string `json:"organizer_id"`
	EventTypeID     string `json:"event_type_id"`
	StartTime       string `json:"start_time"`
	AttendeeCount   int    `json:"attendee_count,omitempty"`
	Recurrence      string `json:"recurrence,omitempty"`
	RecurrenceCount int    `json:"recurrence_count,omitempty"`
}

type bookingResponse struct {
	BookingID          string `json:"booking_id"`
	StartTime          string `json:"start_time"`
	EndTime            string `json:"end_time"`
	ConfirmedAttendees int    `json:"confirmed_attendees"`
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req createBookingRequest
	if !decode(w, r, &req) {
		return
	}
	start, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		http.Error(w, "invalid start_time", http.StatusBadRequest)
		return
	}

	createReq := booking.CreateRequest{
		OrganizerID:   strings.TrimSpace(req.OrganizerID),
		EventTypeID:   strings.TrimSpace(req.EventTypeID),
		Start:         start,
		AttendeeCount: req.AttendeeCount,
	}

	if req.Recurrence != "" {
		res, err := h.svc.CreateRecurring(r.Context(), createReq, req.Recurrence, req.RecurrenceCount)
		if err != nil {
			h.writeBookingError(w, err)
			return
		}
		items := make([]bookingResponse, 0, len(res.Bookings))
		for _, b := range res.Bookings {
			items = append(items, toBookingResponse(b.ID, b.Start, b.End, b.ConfirmedAttendees))
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"bookings": items,
			"warnings": res.Warnings,
		})
		return
	}

	b, err := h.svc.Create(r.Context(), createReq)
	if err != nil {
		h.writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBookingResponse(b.ID, b.Start, b.End, b.ConfirmedAttendees))
}

type cancelBookingRequest struct {
	OrganizerID string `json:"organizer_id"`
	BookingID   string `json:"booking_id"`
	Reason      string `json:"reason,omitempty"`
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req cancelBookingRequest
	if !decode(w, r, &req) {
		return
	}
	if req.OrganizerID == "" || req.BookingID == "" {
		http.Error(w, "organizer_id and booking_id are required", http.StatusBadRequest)
		return
	}
	if err := h.svc.Cancel(r.Context(), req.OrganizerID, req.BookingID, strings.TrimSpace(req.Reason)); err != nil {
		h.writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"booking_id": req.BookingID, "status": "cancelled"})
}

type rescheduleBookingRequest struct {
	OrganizerID string `json:"organizer_id"`
	BookingID   string `json:"booking_id"`
	StartTime   string `json:"start_time"`
}

func (h *BookingHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req rescheduleBookingRequest
	if !decode(w, r, &req) {
		return
	}
	if req.OrganizerID == "" || req.BookingID == "" {
		http.Error(w, "organizer_id and booking_id are required", http.StatusBadRequest)
		return
	}
	start, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		http.Error(w, "invalid start_time", http.StatusBadRequest)
		return
	}
	b, err := h.svc.Reschedule(r.Context(), req.OrganizerID, req.BookingID, start)
	if err != nil {
		h.writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(b.ID, b.Start, b.End, b.ConfirmedAttendees))
}

func (h *BookingHandler) writeBookingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrInvalid):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, booking.ErrNotFound):
		http.Error(w, "booking not found", http.StatusNotFound)
	case errors.Is(err, booking.ErrSlotTaken):
		http.Error(w, "slot no longer available", http.StatusConflict)
	case errors.Is(err, booking.ErrOutsideWindow), errors.Is(err, booking.ErrCancelNotice):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		h.logger.Error("booking operation failed", "err", err)
		http.Error(w, "booking operation failed", http.StatusInternalServerError)
	}
}

func toBookingResponse(id string, start, end time.Time, attendees int) bookingResponse {
	return bookingResponse{
		BookingID:          id,
		StartTime:          start.UTC().Format(time.RFC3339),
		EndTime:            end.UTC().Format(time.RFC3339),
		ConfirmedAttendees: attendees,
	}
}
