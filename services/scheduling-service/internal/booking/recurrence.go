package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rifat-karim/meetslot/services/scheduling-service/internal/model"
)

// Recurrence frequencies. Monthly uses calendar-month arithmetic, so a
// Jan 31 start lands on the normalized date the following months.
const (
	FreqDaily   = "daily"
	FreqWeekly  = "weekly"
	FreqMonthly = "monthly"
)

const maxOccurrences = 52

// ExpandRecurrence returns the occurrence start times for a recurring
// booking, the first occurrence included.
func ExpandRecurrence(start time.Time, freq string, count int) ([]time.Time, error) {
	if count < 1 {
		return nil, fmt.Errorf("%w: occurrence count must be positive", ErrInvalid)
	}
	if count > maxOccurrences {
		return nil, fmt.Errorf("%w: occurrence count exceeds %d", ErrInvalid, maxOccurrences)
	}
	occurrences := make([]time.Time, 0, count)
	cur := start
	for i := 0; i < count; i++ {
		occurrences = append(occurrences, cur)
		switch strings.ToLower(freq) {
		case FreqDaily:
			cur = cur.AddDate(0, 0, 1)
		case FreqWeekly:
			cur = cur.AddDate(0, 0, 7)
		case FreqMonthly:
			cur = cur.AddDate(0, 1, 0)
		default:
			return nil, fmt.Errorf("%w: unknown recurrence frequency %q", ErrInvalid, freq)
		}
	}
	return occurrences, nil
}

// RecurringResult reports the outcome of one recurring create. Occurrences
// that could not be booked are skipped with a warning rather than failing
// the whole series.
type RecurringResult struct {
	Bookings []model.Booking
	Warnings []string
}

// CreateRecurring books each occurrence through the full create path so
// every one gets the same conflict guarantees as a single booking.
func (s *Service) CreateRecurring(ctx context.Context, req CreateRequest, freq string, count int) (*RecurringResult, error) {
	occurrences, err := ExpandRecurrence(req.Start, freq, count)
	if err != nil {
		return nil, err
	}
	res := &RecurringResult{}
	for _, occ := range occurrences {
		occReq := req
		occReq.Start = occ
		b, err := s.Create(ctx, occReq)
		if err != nil {
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("occurrence %s skipped: %v", occ.UTC().Format(time.RFC3339), err))
			continue
		}
		res.Bookings = append(res.Bookings, b)
	}
	return res, nil
}
