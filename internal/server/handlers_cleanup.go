package server

import (
	"net/http"
	"strconv"
)

// handleCleanupStats reports session counts and cleanup eligibility
// without mutating anything.
func (s *Server) handleCleanupStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.GetStats(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, stats)
}

// handleCleanupRun triggers a cleanup batch. Query parameters select the
// behavior: dry_run (default true, so a bare POST is harmless) and policy
// (delete or deactivate, default delete).
func (s *Server) handleCleanupRun(w http.ResponseWriter, r *http.Request) {
	dryRun := true
	if raw := r.URL.Query().Get("dry_run"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			s.writeJSON(w, http.StatusBadRequest, map[string]string{
				"detail": "dry_run must be a boolean",
			})
			return
		}
		dryRun = parsed
	}

	policy := r.URL.Query().Get("policy")
	switch policy {
	case "", "delete":
		s.writeJSON(w, http.StatusOK, s.engine.CleanupExpired(r.Context(), dryRun))
	case "deactivate":
		s.writeJSON(w, http.StatusOK, s.engine.DeactivateInactive(r.Context(), dryRun))
	default:
		s.writeJSON(w, http.StatusBadRequest, map[string]string{
			"detail": "policy must be delete or deactivate",
		})
	}
}
