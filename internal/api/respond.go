package api

import (
	"encoding/json"
	"net/http"
)

type errorResponse struct {
	Detail string `json:"detail"`
}

// writeJSON writes v as a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a sanitized error body. Every error that leaves the API
// passes through the sanitizer here; handlers never write raw error text.
// A non-nil context is scanned for PHI field names but never echoed.
func (s *Server) writeError(w http.ResponseWriter, status int, msg string, context map[string]any) {
	safe := s.sanitizer.SanitizeWithContext(msg, context)
	writeJSON(w, status, errorResponse{Detail: safe})
}
