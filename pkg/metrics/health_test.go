package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ok(context.Context) error { return nil }

func TestHealthAllHealthy(t *testing.T) {
	h := NewHealthChecker("1.0.0")
	h.Register("store", true, ok)
	h.Register("events", false, ok)

	health := h.Health(context.Background())
	assert.Equal(t, StatusHealthy, health.Status)
	assert.Len(t, health.Components, 2)
	assert.Equal(t, "1.0.0", health.Version)
}

func TestHealthOneUnhealthy(t *testing.T) {
	h := NewHealthChecker("")
	h.Register("store", true, ok)
	h.Register("events", false, func(context.Context) error { return errors.New("nats disconnected") })

	health := h.Health(context.Background())
	assert.Equal(t, StatusUnhealthy, health.Status)
	assert.Equal(t, "unhealthy: nats disconnected", health.Components["events"])

	// non-critical failures do not gate readiness
	assert.Equal(t, StatusReady, h.Readiness(context.Background()).Status)
}

func TestReadinessCriticalFailure(t *testing.T) {
	h := NewHealthChecker("")
	h.Register("store", true, func(context.Context) error { return errors.New("closed") })

	readiness := h.Readiness(context.Background())
	assert.Equal(t, StatusNotReady, readiness.Status)
	assert.Equal(t, "waiting for store", readiness.Message)
}

func TestHandlers(t *testing.T) {
	h := NewHealthChecker("")
	h.Register("store", true, func(context.Context) error { return errors.New("closed") })

	tests := []struct {
		name    string
		handler http.HandlerFunc
		code    int
		status  string
	}{
		{name: "health", handler: h.HealthHandler(), code: http.StatusServiceUnavailable, status: StatusUnhealthy},
		{name: "ready", handler: h.ReadyHandler(), code: http.StatusServiceUnavailable, status: StatusNotReady},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.handler(rec, httptest.NewRequest(http.MethodGet, "/"+tt.name, nil))

			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body HealthStatus
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.status, body.Status)
		})
	}
}
