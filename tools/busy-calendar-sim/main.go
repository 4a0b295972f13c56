// busy-calendar-sim serves the external-calendar busy endpoint so the
// scheduling service can be exercised locally without a real connector.
// Busy windows are given as comma-separated RFC3339 pairs:
//
//	busy-calendar-sim -addr :9090 -busy 2026-01-05T12:00:00Z/2026-01-05T13:00:00Z
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"
)

type window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func main() {
	var (
		addr = flag.String("addr", getenv("ADDR", ":9090"), "listen address")
		spec = flag.String("busy", getenv("BUSY_WINDOWS", ""), "comma-separated start/end RFC3339 pairs")
	)
	flag.Parse()

	windows, err := parseWindows(*spec)
	if err != nil {
		fatal(err.Error())
	}

	http.HandleFunc("/busy", func(w http.ResponseWriter, r *http.Request) {
		from, err := time.Parse(time.RFC3339, r.URL.Query().Get("from"))
		if err != nil {
			http.Error(w, "invalid from", http.StatusBadRequest)
			return
		}
		to, err := time.Parse(time.RFC3339, r.URL.Query().Get("to"))
		if err != nil {
			http.Error(w, "invalid to", http.StatusBadRequest)
			return
		}
		var busy []window
		for _, win := range windows {
			if win.Start.Before(to) && win.End.After(from) {
				busy = append(busy, win)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"busy": busy})
	})

	log.Printf("busy-calendar-sim listening on %s with %d windows", *addr, len(windows))
	if err := http.ListenAndServe(*addr, nil); err != nil {
		fatal(err.Error())
	}
}

func parseWindows(spec string) ([]window, error) {
	var windows []window
	for _, pair := range strings.Split(spec, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		startRaw, endRaw, ok := strings.Cut(pair, "/")
		if !ok {
			return nil, fmt.Errorf("window %q: expected start/end", pair)
		}
		start, err := time.Parse(time.RFC3339, startRaw)
		if err != nil {
			return nil, fmt.Errorf("window %q: %v", pair, err)
		}
		end, err := time.Parse(time.RFC3339, endRaw)
		if err != nil {
			return nil, fmt.Errorf("window %q: %v", pair, err)
		}
		if !end.After(start) {
			return nil, fmt.Errorf("window %q: end must follow start", pair)
		}
		windows = append(windows, window{Start: start, End: end})
	}
	return windows, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, "error: "+msg)
	os.Exit(1)
}
