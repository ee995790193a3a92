package server

import (
	"net/http"
)

// Version is the service version reported by /health
const Version = "1.0.0"

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":  "healthy",
		"version": Version,
		"service": "sharpe",
	}

	if db := s.container.ClientDataDB; db != nil {
		if err := db.QuickCheck(r.Context()); err != nil {
			s.log.Error().Err(err).Msg("Cache database health check failed")
			response["status"] = "degraded"
			response["cache"] = err.Error()
			s.writeJSON(w, http.StatusServiceUnavailable, response)
			return
		}
		response["cache"] = "ok"
	} else {
		response["cache"] = "disabled"
	}

	s.writeJSON(w, http.StatusOK, response)
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(s.log, w, status, data)
}
