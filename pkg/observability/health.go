package observability

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/ghxstship/atlvs-sub007/pkg/httputil"
)

// CheckFunc probes a single dependency.
type CheckFunc func(ctx context.Context) error

// HealthChecker aggregates dependency probes for liveness and readiness
// endpoints.
type HealthChecker struct {
	mu      sync.RWMutex
	checks  map[string]CheckFunc
	timeout time.Duration
}

// NewHealthChecker creates a checker with a per-check timeout.
func NewHealthChecker(timeout time.Duration) *HealthChecker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthChecker{
		checks:  make(map[string]CheckFunc),
		timeout: timeout,
	}
}

// Register adds a named dependency check.
func (h *HealthChecker) Register(name string, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// Run executes all checks and returns per-check errors, nil entries meaning
// healthy.
func (h *HealthChecker) Run(ctx context.Context) map[string]error {
	h.mu.RLock()
	checks := make(map[string]CheckFunc, len(h.checks))
	for name, c := range h.checks {
		checks[name] = c
	}
	h.mu.RUnlock()

	results := make(map[string]error, len(checks))
	for name, check := range checks {
		cctx, cancel := context.WithTimeout(ctx, h.timeout)
		results[name] = check(cctx)
		cancel()
	}
	return results
}

// LivenessHandler always reports the process as up.
func (h *HealthChecker) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

// ReadinessHandler reports 503 when any dependency check fails.
func (h *HealthChecker) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		results := h.Run(r.Context())
		status := http.StatusOK
		body := map[string]string{"status": "ready"}
		for name, err := range results {
			if err != nil {
				status = http.StatusServiceUnavailable
				body["status"] = "not ready"
				body[name] = err.Error()
			} else {
				body[name] = "ok"
			}
		}
		httputil.WriteJSON(w, status, body)
	})
}
