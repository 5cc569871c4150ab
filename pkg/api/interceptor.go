package api

import (
	"mime"
	"net/http"
)

// ReadOnly rejects every method that could change state. It backs the
// --read-only server mode used for audit and dashboard deployments.
func ReadOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isReadOnlyMethod(r.Method) {
			writeJSON(w, http.StatusForbidden, errorBody{Error: "write operations are disabled on this server"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isReadOnlyMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// RequireJSON rejects request bodies that are not JSON
func RequireJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
			if err != nil || mediaType != "application/json" {
				writeJSON(w, http.StatusUnsupportedMediaType, errorBody{Error: "this API only supports requests encoded as JSON"})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
