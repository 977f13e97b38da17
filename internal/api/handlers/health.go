package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"
)

// HealthCheck is the readiness report.
type HealthCheck struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version"`
	GitCommit string                 `json:"git_commit"`
	Checks    map[string]CheckResult `json:"checks"`
	Timestamp string                 `json:"timestamp"`
}

type CheckResult struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	LatencyMs int64  `json:"latency_ms,omitempty"`
}

// CheckFunc probes one dependency.
type CheckFunc func(ctx context.Context) error

type dependencyCheck struct {
	name     string
	required bool
	check    CheckFunc
}

// HealthChecker runs dependency probes for /readyz. A failing required
// check makes the server unready; an optional one only degrades it.
type HealthChecker struct {
	mu        sync.RWMutex
	checks    []dependencyCheck
	version   string
	gitCommit string
	timeout   time.Duration
	now       func() time.Time
}

func NewHealthChecker(version, gitCommit string) *HealthChecker {
	return &HealthChecker{
		version:   version,
		gitCommit: gitCommit,
		timeout:   2 * time.Second,
		now:       time.Now,
	}
}

func (h *HealthChecker) Register(name string, required bool, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, dependencyCheck{name: name, required: required, check: check})
	sort.Slice(h.checks, func(i, j int) bool { return h.checks[i].name < h.checks[j].name })
}

// Healthz is the liveness probe.
func (h *HealthChecker) Healthz() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondHealth(w, http.StatusOK, HealthCheck{
			Status:    "ok",
			Version:   h.version,
			GitCommit: h.gitCommit,
			Timestamp: h.now().UTC().Format(time.RFC3339),
		})
	})
}

// Readyz is the readiness probe.
func (h *HealthChecker) Readyz() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
			respondHealth(w, http.StatusServiceUnavailable, HealthCheck{Status: "shutting_down"})
			return
		default:
		}

		h.mu.RLock()
		checks := append([]dependencyCheck(nil), h.checks...)
		h.mu.RUnlock()

		report := HealthCheck{
			Status:    "ready",
			Version:   h.version,
			GitCommit: h.gitCommit,
			Checks:    make(map[string]CheckResult, len(checks)),
			Timestamp: h.now().UTC().Format(time.RFC3339),
		}
		status := http.StatusOK

		for _, dep := range checks {
			result := h.run(r.Context(), dep)
			report.Checks[dep.name] = result
			switch {
			case result.Status == "fail":
				report.Status = "unready"
				status = http.StatusServiceUnavailable
			case result.Status == "warn" && report.Status == "ready":
				report.Status = "degraded"
			}
		}

		respondHealth(w, status, report)
	})
}

func (h *HealthChecker) run(ctx context.Context, dep dependencyCheck) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	start := time.Now()
	err := dep.check(ctx)
	latency := time.Since(start).Milliseconds()
	if err == nil {
		return CheckResult{Status: "pass", LatencyMs: latency}
	}

	status := "warn"
	if dep.required {
		status = "fail"
	}
	return CheckResult{Status: status, Message: err.Error(), LatencyMs: latency}
}

func respondHealth(w http.ResponseWriter, status int, body HealthCheck) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
