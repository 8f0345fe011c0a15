package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/llmscope/playground/pkg/event"
)

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Response string `json:"response"`
	EventID  string `json:"event_id"`
}

// handleChat proxies one message to the configured model provider and
// records exactly one ledger event for the attempt, success or failure.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	sess, err := s.resolveSession(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if !sess.IsActive {
		s.writeJSON(w, http.StatusForbidden, map[string]string{
			"detail": "Session is inactive. Create a new session to continue.",
		})
		return
	}

	if s.rateLimiter != nil && !s.rateLimiter.CheckLimit(sess.Token) {
		retryAfter := s.rateLimiter.GetRetryAfter(sess.Token)
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		s.writeJSON(w, http.StatusTooManyRequests, map[string]string{
			"detail": "Rate limit exceeded. Please try again later.",
		})
		return
	}

	if s.chat == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"detail": "No model provider configured",
		})
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{
			"detail": "Request body must contain a non-empty message",
		})
		return
	}

	messages, _ := json.Marshal([]map[string]string{
		{"role": "user", "content": req.Message},
	})

	ctx, cancel := context.WithTimeout(r.Context(), s.options.ChatTimeout)
	defer cancel()

	start := time.Now()
	result, err := s.chat.Chat(ctx, req.Message)
	latency := time.Since(start).Milliseconds()

	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("provider", s.chat.Name()).
			Str("model", s.chat.Model()).
			Msg("Provider call failed")

		// Best effort: a failed attempt still belongs in the ledger, but a
		// secondary recording failure must not mask the provider error.
		if _, recErr := s.ledger.RecordError(
			r.Context(), sess, s.chat.Model(), s.chat.Name(), chatEndpoint, err.Error(),
		); recErr != nil {
			s.logger.Error().Err(recErr).Msg("Failed to record error event")
		}

		s.writeJSON(w, http.StatusBadGateway, map[string]string{
			"detail": fmt.Sprintf("Provider request failed: %v", err),
		})
		return
	}

	ev, err := s.ledger.RecordSuccess(r.Context(), sess, event.Invocation{
		Model:            s.chat.Model(),
		Provider:         s.chat.Name(),
		Endpoint:         chatEndpoint,
		TokensPrompt:     result.TokensPrompt,
		TokensCompletion: result.TokensCompletion,
		LatencyMs:        latency,
		Messages:         string(messages),
		Response:         result.Text,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, chatResponse{
		Response: result.Text,
		EventID:  ev.ID,
	})
}

const chatEndpoint = "/api/v1/chat"

// handleRecentEvents returns the caller's newest events. The limit query
// parameter caps the page, defaulting to 50.
func (s *Server) handleRecentEvents(w http.ResponseWriter, r *http.Request) {
	sess, err := s.resolveSession(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	events, err := s.ledger.ListRecent(r.Context(), sess, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"session_id": sess.Token,
		"events":     events,
		"count":      len(events),
	})
}
