package runtime

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// ReadyCheck verifies one dependency for /readyz. A nil Check is skipped.
type ReadyCheck struct {
	Name  string
	Check func(context.Context) error
}

const checkTimeout = 2 * time.Second

// NewBaseMuxWithReady returns a mux pre-wired with /healthz (liveness,
// always ok) and /readyz (runs every check, 503 listing the failures).
func NewBaseMuxWithReady(checks ...ReadyCheck) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if failed := runChecks(r.Context(), checks); len(failed) > 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(strings.Join(failed, "; ")))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

func runChecks(ctx context.Context, checks []ReadyCheck) []string {
	var failed []string
	for _, c := range checks {
		if c.Check == nil {
			continue
		}
		checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := c.Check(checkCtx)
		cancel()
		if err != nil {
			name := c.Name
			if name == "" {
				name = "dependency"
			}
			failed = append(failed, name+": "+err.Error())
		}
	}
	return failed
}
