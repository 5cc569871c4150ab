package metrics

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Health states
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	StatusReady     = "ready"
	StatusNotReady  = "not_ready"
)

// HealthStatus is the body of the health and readiness endpoints
type HealthStatus struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components,omitempty"`
	Message    string            `json:"message,omitempty"`
	Version    string            `json:"version,omitempty"`
	Uptime     string            `json:"uptime,omitempty"`
}

// Probe checks one component, returning nil when it is healthy
type Probe func(ctx context.Context) error

type component struct {
	probe    Probe
	critical bool
}

// HealthChecker runs component probes for the health endpoints
type HealthChecker struct {
	mu         sync.RWMutex
	components map[string]component
	startTime  time.Time
	version    string
	timeout    time.Duration
}

// NewHealthChecker creates a checker reporting the given version
func NewHealthChecker(version string) *HealthChecker {
	return &HealthChecker{
		components: make(map[string]component),
		startTime:  time.Now(),
		version:    version,
		timeout:    5 * time.Second,
	}
}

// Register adds a probe. Critical components gate readiness.
func (h *HealthChecker) Register(name string, critical bool, probe Probe) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.components[name] = component{probe: probe, critical: critical}
}

// Health runs every probe
func (h *HealthChecker) Health(ctx context.Context) HealthStatus {
	status := StatusHealthy
	components, failed := h.run(ctx, false)
	if len(failed) > 0 {
		status = StatusUnhealthy
	}
	return h.status(status, components, "")
}

// Readiness runs the critical probes
func (h *HealthChecker) Readiness(ctx context.Context) HealthStatus {
	status := StatusReady
	message := ""
	components, failed := h.run(ctx, true)
	if len(failed) > 0 {
		status = StatusNotReady
		message = "waiting for " + failed[0]
	}
	return h.status(status, components, message)
}

func (h *HealthChecker) run(ctx context.Context, criticalOnly bool) (map[string]string, []string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	results := make(map[string]string, len(h.components))
	var failed []string
	for name, c := range h.components {
		if criticalOnly && !c.critical {
			continue
		}
		if err := c.probe(ctx); err != nil {
			results[name] = StatusUnhealthy + ": " + err.Error()
			failed = append(failed, name)
			continue
		}
		results[name] = StatusHealthy
	}
	sort.Strings(failed)
	return results, failed
}

func (h *HealthChecker) status(status string, components map[string]string, message string) HealthStatus {
	return HealthStatus{
		Status:     status,
		Timestamp:  time.Now(),
		Components: components,
		Message:    message,
		Version:    h.version,
		Uptime:     time.Since(h.startTime).Round(time.Second).String(),
	}
}

// HealthHandler serves /health
func (h *HealthChecker) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := h.Health(r.Context())
		code := http.StatusOK
		if health.Status != StatusHealthy {
			code = http.StatusServiceUnavailable
		}
		writeStatus(w, code, health)
	}
}

// ReadyHandler serves /ready
func (h *HealthChecker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		readiness := h.Readiness(r.Context())
		code := http.StatusOK
		if readiness.Status != StatusReady {
			code = http.StatusServiceUnavailable
		}
		writeStatus(w, code, readiness)
	}
}

func writeStatus(w http.ResponseWriter, code int, body HealthStatus) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
