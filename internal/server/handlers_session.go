package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/llmscope/playground/pkg/session"
)

// sessionResponse combines session metadata with aggregate metrics.
type sessionResponse struct {
	SessionID    string                 `json:"session_id"`
	CreatedAt    time.Time              `json:"created_at"`
	LastActivity time.Time              `json:"last_activity"`
	IsActive     bool                   `json:"is_active"`
	Metadata     map[string]interface{} `json:"metadata"`
	EventCount   int                    `json:"event_count"`
	TotalTokens  int64                  `json:"total_tokens"`
	TotalCost    float64                `json:"total_cost"`
}

type sessionMetricsResponse struct {
	SessionID   string   `json:"session_id"`
	EventCount  int      `json:"event_count"`
	TotalTokens int64    `json:"total_tokens"`
	TotalCost   float64  `json:"total_cost"`
	ModelsUsed  []string `json:"models_used"`
}

func (s *Server) sessionWithMetrics(r *http.Request, sess *session.Session) (*sessionResponse, error) {
	metrics, err := s.ledger.Aggregate(r.Context(), sess)
	if err != nil {
		return nil, err
	}

	return &sessionResponse{
		SessionID:    sess.Token,
		CreatedAt:    sess.CreatedAt,
		LastActivity: sess.LastActivity,
		IsActive:     sess.IsActive,
		Metadata:     sess.Metadata,
		EventCount:   metrics.EventCount,
		TotalTokens:  metrics.TotalTokens,
		TotalCost:    metrics.TotalCostUSD,
	}, nil
}

// handleCreateSession mints a fresh session and sets its cookie. The
// cookie lifetime equals the retention window.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	token := uuid.NewString()

	sess, err := s.sessions.Create(r.Context(), token)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.options.CookieName,
		Value:    sess.Token,
		HttpOnly: true,
		MaxAge:   int(s.options.CookieMaxAge.Seconds()),
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
	})

	s.writeJSON(w, http.StatusOK, map[string]string{
		"session_id": sess.Token,
		"message":    "Session created successfully",
	})
}

// handleGetSession returns a session by explicit token without touching
// its activity timestamp.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.GetByToken(r.Context(), r.PathValue("token"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp, err := s.sessionWithMetrics(r, sess)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, resp)
}

// handleGetCurrentSession resolves (or creates) the caller's session.
func (s *Server) handleGetCurrentSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.resolveSession(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp, err := s.sessionWithMetrics(r, sess)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) resetSession(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	deleted, err := s.ledger.DeleteAllForSession(r.Context(), sess)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if _, err := s.sessions.ResetMetadata(r.Context(), sess); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.Info().
		Str("token", sess.Token).
		Int64("events_deleted", deleted).
		Msg("Session reset")

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"message":    "Session reset successfully",
		"session_id": sess.Token,
		"deleted":    deleted,
	})
}

// handleResetSession clears the events and metadata of a session
// addressed by token; the session record itself survives.
func (s *Server) handleResetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.GetByToken(r.Context(), r.PathValue("token"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.resetSession(w, r, sess)
}

// handleResetCurrentSession resets the caller's resolved session.
func (s *Server) handleResetCurrentSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.resolveSession(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.resetSession(w, r, sess)
}

// handleCurrentSessionMetrics returns the caller's aggregate metrics.
func (s *Server) handleCurrentSessionMetrics(w http.ResponseWriter, r *http.Request) {
	sess, err := s.resolveSession(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	metrics, err := s.ledger.Aggregate(r.Context(), sess)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, sessionMetricsResponse{
		SessionID:   sess.Token,
		EventCount:  metrics.EventCount,
		TotalTokens: metrics.TotalTokens,
		TotalCost:   metrics.TotalCostUSD,
		ModelsUsed:  metrics.Models,
	})
}

// handleDeleteSession permanently removes a session and all its events.
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.GetByToken(r.Context(), r.PathValue("token"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.sessions.Delete(r.Context(), sess); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"message":    "Session deleted successfully",
		"session_id": sess.Token,
	})
}
