package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cuemby/catena/pkg/types"
)

type errorBody struct {
	Error string `json:"error"`
	// Orphaned lists cloud instances a failed call may have left behind
	Orphaned []string `json:"orphaned_instances,omitempty"`
}

// StatusCode maps an error kind to its HTTP status
func StatusCode(err error) int {
	switch {
	case errors.Is(err, types.ErrValidation), errors.Is(err, types.ErrConfig):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, types.ErrCloudProvider), errors.Is(err, types.ErrProvisioning):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := StatusCode(err)
	body := errorBody{Error: err.Error()}

	var orphaned *types.OrphanedResourcesError
	if errors.As(err, &orphaned) {
		body.Orphaned = orphaned.Leaked()
	}

	event := s.logger.Warn()
	if code >= http.StatusInternalServerError {
		event = s.logger.Error()
	}
	event.Err(err).Str("method", r.Method).Str("path", r.URL.Path).Int("status", code).Msg("Request failed")

	writeJSON(w, code, body)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
