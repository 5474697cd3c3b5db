package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"
)

// Check probes one dependency
type Check func(ctx context.Context) error

// Health answers liveness, readiness and detailed health probes
type Health struct {
	checks   map[string]Check
	critical map[string]bool
	timeout  time.Duration
}

// NewHealth creates a prober. Critical checks decide readiness.
func NewHealth() *Health {
	return &Health{
		checks:   make(map[string]Check),
		critical: make(map[string]bool),
		timeout:  3 * time.Second,
	}
}

// Add registers a check
func (h *Health) Add(name string, critical bool, check Check) *Health {
	h.checks[name] = check
	h.critical[name] = critical
	return h
}

func (h *Health) run(ctx context.Context, onlyCritical bool) (map[string]interface{}, bool) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	healthy := true
	results := make(map[string]interface{}, len(names))
	for _, name := range names {
		if onlyCritical && !h.critical[name] {
			continue
		}
		if err := h.checks[name](ctx); err != nil {
			healthy = false
			results[name] = map[string]interface{}{"status": "unhealthy", "error": err.Error()}
			continue
		}
		results[name] = map[string]interface{}{"status": "healthy"}
	}
	return results, healthy
}

// HealthHandler reports every check
func (h *Health) HealthHandler(w http.ResponseWriter, r *http.Request) {
	checks, healthy := h.run(r.Context(), false)
	status, code := "ok", http.StatusOK
	if !healthy {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().Unix(),
		"checks":    checks,
	})
}

// LivenessHandler returns 200 while the process runs
func (h *Health) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "alive",
		"timestamp": time.Now().Unix(),
	})
}

// ReadinessHandler returns 200 when every critical dependency answers
func (h *Health) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	if _, healthy := h.run(r.Context(), true); !healthy {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":    "not_ready",
			"timestamp": time.Now().Unix(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ready",
		"timestamp": time.Now().Unix(),
	})
}
