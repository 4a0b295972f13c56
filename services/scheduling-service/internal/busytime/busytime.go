// Package busytime fetches busy intervals from external calendar
// integrations. Provider failures are never fatal to an availability
// computation: a failed provider contributes no busy times and a warning,
// because a provider outage must not block an organizer's whole calendar.
package busytime

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Interval is one busy period reported by a provider. Source is a label
// like "google_calendar" used for warnings and block reconciliation.
type Interval struct {
	Start  time.Time
	End    time.Time
	Source string
}

// Provider is one external calendar source.
type Provider interface {
	Name() string
	BusyTimes(ctx context.Context, organizerID string, from, to time.Time) ([]Interval, error)
}

// Fetcher queries all configured providers with a bounded per-call timeout.
type Fetcher struct {
	providers []Provider
	timeout   time.Duration
	logger    *slog.Logger
}

func NewFetcher(providers []Provider, timeout time.Duration, logger *slog.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Fetcher{providers: providers, timeout: timeout, logger: logger}
}

// Fetch returns the union of busy intervals from every reachable provider
// plus one warning per provider that failed or timed out.
func (f *Fetcher) Fetch(ctx context.Context, organizerID string, from, to time.Time) ([]Interval, []string) {
	var busy []Interval
	var warnings []string
	for _, p := range f.providers {
		callCtx, cancel := context.WithTimeout(ctx, f.timeout)
		intervals, err := p.BusyTimes(callCtx, organizerID, from, to)
		cancel()
		if err != nil {
			if f.logger != nil {
				f.logger.Warn("busy time fetch failed; continuing without provider",
					"provider", p.Name(), "err", err)
			}
			warnings = append(warnings, fmt.Sprintf("calendar provider %s unavailable; its busy times were skipped", p.Name()))
			continue
		}
		busy = append(busy, intervals...)
	}
	return busy, warnings
}
