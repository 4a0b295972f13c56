package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rifat-karim/meetslot/services/scheduling-service/internal/engine"
	"github.com/rifat-karim/meetslot/services/scheduling-service/internal/model"
	"github.com/rifat-karim/meetslot/services/scheduling-service/internal/storage"
)

type stubStore struct {
	snap *model.AvailabilitySnapshot
}

func (s *stubStore) Snapshot(context.Context, storage.SnapshotQuery) (*model.AvailabilitySnapshot, error) {
	snap := *s.snap
	return &snap, nil
}

func newSlotsHandler() *SlotsHandler {
	store := &stubStore{snap: &model.AvailabilitySnapshot{
		Profile: model.OrganizerProfile{OrganizerID: "org1", Timezone: "UTC"},
		EventType: model.EventType{
			ID: "et1", OrganizerID: "org1", DurationMinutes: 30,
			MaxAttendees: 1, SlotIntervalMinutes: 30, IsActive: true,
		},
		Rules: []model.AvailabilityRule{{
			ID: "r1", OrganizerID: "org1", DayOfWeek: time.Monday,
			StartMinute: 9 * 60, EndMinute: 17 * 60, IsActive: true,
		}},
	}}
	return NewSlotsHandler(engine.New(store, nil, nil, slog.Default()), slog.Default())
}

func postJSON(t *testing.T, h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestSlotsQuery_OK(t *testing.T) {
	h := newSlotsHandler()
	rec := postJSON(t, h.Query, `{
		"organizer_id": "org1",
		"event_type_id": "et1",
		"start_date": "2026-01-05",
		"invitee_timezone": "UTC"
	}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var res struct {
		TotalSlots int `json:"total_slots"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if res.TotalSlots != 16 {
		t.Fatalf("expected 16 slots, got %d", res.TotalSlots)
	}
}

func TestSlotsQuery_EndDateDefaultsToStart(t *testing.T) {
	h := newSlotsHandler()
	rec := postJSON(t, h.Query, `{
		"organizer_id": "org1",
		"event_type_id": "et1",
		"start_date": "2026-01-05",
		"end_date": "",
		"invitee_timezone": "UTC"
	}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestSlotsQuery_Validation(t *testing.T) {
	h := newSlotsHandler()
	cases := []struct {
		name string
		body string
	}{
		{"bad json", `{`},
		{"bad start date", `{"organizer_id":"org1","event_type_id":"et1","start_date":"Jan 5","invitee_timezone":"UTC"}`},
		{"bad end date", `{"organizer_id":"org1","event_type_id":"et1","start_date":"2026-01-05","end_date":"soon","invitee_timezone":"UTC"}`},
		{"missing organizer", `{"event_type_id":"et1","start_date":"2026-01-05","invitee_timezone":"UTC"}`},
		{"missing timezone", `{"organizer_id":"org1","event_type_id":"et1","start_date":"2026-01-05"}`},
		{"bad timezone", `{"organizer_id":"org1","event_type_id":"et1","start_date":"2026-01-05","invitee_timezone":"Mars/Olympus"}`},
		{"inverted range", `{"organizer_id":"org1","event_type_id":"et1","start_date":"2026-01-05","end_date":"2026-01-01","invitee_timezone":"UTC"}`},
	}
	for _, tc := range cases {
		if rec := postJSON(t, h.Query, tc.body); rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", tc.name, rec.Code)
		}
	}
}

func TestSlotsQuery_MethodNotAllowed(t *testing.T) {
	h := newSlotsHandler()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.Query(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestBookingCreate_Validation(t *testing.T) {
	h := NewBookingHandler(nil, slog.Default())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.Create(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}

	if rec := postJSON(t, h.Create, `not json`); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad json: expected 400, got %d", rec.Code)
	}
	if rec := postJSON(t, h.Create, `{"organizer_id":"org1","event_type_id":"et1","start_time":"tomorrow"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad start_time: expected 400, got %d", rec.Code)
	}
}

func TestBookingCancel_RequiresIDs(t *testing.T) {
	h := NewBookingHandler(nil, slog.Default())
	if rec := postJSON(t, h.Cancel, `{"organizer_id":"org1"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing booking_id: expected 400, got %d", rec.Code)
	}
	if rec := postJSON(t, h.Cancel, `{"booking_id":"b1"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing organizer_id: expected 400, got %d", rec.Code)
	}
}

func TestAvailabilityRules_Validation(t *testing.T) {
	h := NewAvailabilityHandler(nil, nil, nil, slog.Default())

	if rec := postJSON(t, h.Rules, `{`); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad json: expected 400, got %d", rec.Code)
	}
	if rec := postJSON(t, h.Rules, `{"day_of_week":1,"start_minute":540,"end_minute":1020}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing organizer_id: expected 400, got %d", rec.Code)
	}

	windows := []string{
		`{"organizer_id":"org1","day_of_week":7,"start_minute":540,"end_minute":1020}`,
		`{"organizer_id":"org1","day_of_week":1,"start_minute":-10,"end_minute":1020}`,
		`{"organizer_id":"org1","day_of_week":1,"start_minute":540,"end_minute":1500}`,
		`{"organizer_id":"org1","day_of_week":1,"start_minute":540,"end_minute":540}`,
	}
	for i, body := range windows {
		if rec := postJSON(t, h.Rules, body); rec.Code != http.StatusBadRequest {
			t.Fatalf("window case %d: expected 400, got %d", i, rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"organizer_id":"org1"}`))
	rec := httptest.NewRecorder()
	h.Rules(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestValidMinutes(t *testing.T) {
	cases := []struct {
		start, end int
		want       bool
	}{
		{0, 1440, true},
		{540, 1020, true},
		{1020, 540, true}, // spans midnight
		{-1, 600, false},
		{1440, 600, false},
		{600, 1441, false},
		{600, 600, false},
	}
	for _, tc := range cases {
		if got := validMinutes(tc.start, tc.end); got != tc.want {
			t.Fatalf("validMinutes(%d, %d) = %v, want %v", tc.start, tc.end, got, tc.want)
		}
	}
}
