package busytime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// HTTPProvider talks to a calendar connector service over JSON. The
// connector exposes GET {baseURL}/busy?organizer_id=&from=&to= and returns
// {"busy":[{"start":RFC3339,"end":RFC3339}]}.
type HTTPProvider struct {
	name    string
	baseURL string
	client  *http.Client
}

func NewHTTPProvider(name, baseURL string, client *http.Client) *HTTPProvider {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &HTTPProvider{name: name, baseURL: baseURL, client: client}
}

func (p *HTTPProvider) Name() string { return p.name }

func (p *HTTPProvider) BusyTimes(ctx context.Context, organizerID string, from, to time.Time) ([]Interval, error) {
	q := url.Values{}
	q.Set("organizer_id", organizerID)
	q.Set("from", from.UTC().Format(time.RFC3339))
	q.Set("to", to.UTC().Format(time.RFC3339))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/busy?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build busy request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch busy times from %s: %w", p.name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("connector %s returned status %d", p.name, resp.StatusCode)
	}

	var body struct {
		Busy []struct {
			Start time.Time `json:"start"`
			End   time.Time `json:"end"`
		} `json:"busy"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode busy response from %s: %w", p.name, err)
	}

	out := make([]Interval, 0, len(body.Busy))
	for _, b := range body.Busy {
		if !b.End.After(b.Start) {
			continue
		}
		out = append(out, Interval{Start: b.Start.UTC(), End: b.End.UTC(), Source: p.name})
	}
	return out, nil
}
