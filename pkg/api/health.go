package api

import (
	"net/http"
	"time"

	"github.com/cuemby/catena/pkg/metrics"
)

var startTime = time.Now()

// VersionResponse is the body of GET /
type VersionResponse struct {
	Versions []string `json:"versions"`
}

func (s *Server) registerHealthRoutes() {
	s.router.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, VersionResponse{Versions: []string{"v1"}})
	}).Methods(http.MethodGet)

	if s.cfg.Health != nil {
		s.router.HandleFunc("/health", s.cfg.Health.HealthHandler()).Methods(http.MethodGet)
		s.router.HandleFunc("/ready", s.cfg.Health.ReadyHandler()).Methods(http.MethodGet)
	} else {
		s.router.HandleFunc("/health", livenessHandler).Methods(http.MethodGet)
		s.router.HandleFunc("/ready", livenessHandler).Methods(http.MethodGet)
	}
	s.router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
}

// livenessHandler reports 200 whenever the process is serving
func livenessHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "alive",
		"uptime": time.Since(startTime).Round(time.Second).String(),
	})
}
