package event

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/llmscope/playground/pkg/session"
	"github.com/llmscope/playground/pkg/store"
)

// Ledger is the sole writer of event rows.
type Ledger struct {
	db     *sql.DB
	pricer *Pricer
	logger zerolog.Logger
}

// NewLedger creates an event ledger over the shared tracking database.
func NewLedger(db *store.DB, pricer *Pricer, logger zerolog.Logger) *Ledger {
	return &Ledger{
		db:     db.SQL(),
		pricer: pricer,
		logger: logger.With().Str("component", "event_ledger").Logger(),
	}
}

// RecordSuccess persists one success event for the session, computing
// total tokens and cost from the invocation's usage.
func (l *Ledger) RecordSuccess(ctx context.Context, sess *session.Session, inv Invocation) (*Event, error) {
	cost, err := l.pricer.Cost(inv.Provider, inv.Model, inv.TokensPrompt, inv.TokensCompletion)
	if err != nil {
		return nil, err
	}

	latency := inv.LatencyMs
	ev := &Event{
		ID:               uuid.NewString(),
		Time:             time.Now(),
		SessionID:        sess.ID,
		Model:            inv.Model,
		Provider:         inv.Provider,
		Endpoint:         inv.Endpoint,
		TokensPrompt:     inv.TokensPrompt,
		TokensCompletion: inv.TokensCompletion,
		TokensTotal:      inv.TokensPrompt + inv.TokensCompletion,
		LatencyMs:        &latency,
		CostUSD:          cost,
		Messages:         inv.Messages,
		Response:         inv.Response,
		Status:           StatusSuccess,
		HasError:         false,
	}

	if err := l.insert(ctx, ev); err != nil {
		return nil, err
	}

	l.logger.Debug().
		Str("session_id", sess.ID).
		Str("model", ev.Model).
		Int("tokens_total", ev.TokensTotal).
		Float64("cost_usd", ev.CostUSD).
		Msg("Recorded success event")

	return ev, nil
}

// RecordError persists one error event with zero usage and zero cost. The
// ledger never silently drops a failed attempt.
func (l *Ledger) RecordError(ctx context.Context, sess *session.Session, model, provider, endpoint, errorMessage string) (*Event, error) {
	ev := &Event{
		ID:           uuid.NewString(),
		Time:         time.Now(),
		SessionID:    sess.ID,
		Model:        model,
		Provider:     provider,
		Endpoint:     endpoint,
		Status:       StatusError,
		HasError:     true,
		ErrorMessage: errorMessage,
	}

	if err := l.insert(ctx, ev); err != nil {
		return nil, err
	}

	l.logger.Debug().
		Str("session_id", sess.ID).
		Str("error", errorMessage).
		Msg("Recorded error event")

	return ev, nil
}

func (l *Ledger) insert(ctx context.Context, ev *Event) error {
	var latency interface{}
	if ev.LatencyMs != nil {
		latency = *ev.LatencyMs
	}

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO events (
			id, time, session_id, model, provider, endpoint,
			tokens_prompt, tokens_completion, tokens_total,
			latency_ms, cost_usd, messages, response,
			status, has_error, error_message
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		ev.ID, ev.Time.UnixMilli(), ev.SessionID, ev.Model, ev.Provider, ev.Endpoint,
		ev.TokensPrompt, ev.TokensCompletion, ev.TokensTotal,
		latency, ev.CostUSD, ev.Messages, ev.Response,
		ev.Status, boolToInt(ev.HasError), ev.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// ListRecent returns up to limit events for the session, newest first.
func (l *Ledger) ListRecent(ctx context.Context, sess *session.Session, limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT id, time, session_id, model, provider, endpoint,
			tokens_prompt, tokens_completion, tokens_total,
			latency_ms, cost_usd, messages, response,
			status, has_error, error_message
		FROM events
		WHERE session_id = ?
		ORDER BY time DESC
		LIMIT ?
	`, sess.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent events: %w", err)
	}
	defer rows.Close()

	events := []*Event{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list recent events: %w", err)
	}

	return events, nil
}

// Aggregate sums the session's ledger. A session with zero events yields
// zero counts and an empty model set.
func (l *Ledger) Aggregate(ctx context.Context, sess *session.Session) (*Metrics, error) {
	var m Metrics
	err := l.db.QueryRowContext(ctx, `
		SELECT COUNT(id), COALESCE(SUM(tokens_total), 0), COALESCE(SUM(cost_usd), 0)
		FROM events WHERE session_id = ?
	`, sess.ID).Scan(&m.EventCount, &m.TotalTokens, &m.TotalCostUSD)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate events: %w", err)
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT DISTINCT model FROM events
		WHERE session_id = ? AND model IS NOT NULL AND model != ''
	`, sess.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query distinct models: %w", err)
	}
	defer rows.Close()

	m.Models = []string{}
	for rows.Next() {
		var model string
		if err := rows.Scan(&model); err != nil {
			return nil, fmt.Errorf("failed to scan model: %w", err)
		}
		m.Models = append(m.Models, model)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query distinct models: %w", err)
	}

	return &m, nil
}

// CountForSessions counts events owned by any of the given sessions.
// Used by the cleanup engine's sizing phase before anything is mutated.
func (l *Ledger) CountForSessions(ctx context.Context, sessionIDs []string) (int64, error) {
	if len(sessionIDs) == 0 {
		return 0, nil
	}

	placeholders := strings.Repeat("?,", len(sessionIDs))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]interface{}, len(sessionIDs))
	for i, id := range sessionIDs {
		args[i] = id
	}

	var n int64
	query := "SELECT COUNT(*) FROM events WHERE session_id IN (" + placeholders + ")"
	if err := l.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count events for sessions: %w", err)
	}
	return n, nil
}

// DeleteAllForSession removes every event owned by the session, returning
// the number of rows deleted. Used by session reset.
func (l *Ledger) DeleteAllForSession(ctx context.Context, sess *session.Session) (int64, error) {
	res, err := l.db.ExecContext(ctx, "DELETE FROM events WHERE session_id = ?", sess.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete session events: %w", err)
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to delete session events: %w", err)
	}

	l.logger.Info().
		Str("session_id", sess.ID).
		Int64("deleted", deleted).
		Msg("Deleted all events for session")

	return deleted, nil
}

func scanEvent(rows *sql.Rows) (*Event, error) {
	var (
		ev       Event
		timeMs   int64
		model    sql.NullString
		provider sql.NullString
		endpoint sql.NullString
		latency  sql.NullInt64
		messages sql.NullString
		response sql.NullString
		errMsg   sql.NullString
		hasError int
	)

	err := rows.Scan(
		&ev.ID, &timeMs, &ev.SessionID, &model, &provider, &endpoint,
		&ev.TokensPrompt, &ev.TokensCompletion, &ev.TokensTotal,
		&latency, &ev.CostUSD, &messages, &response,
		&ev.Status, &hasError, &errMsg,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan event row: %w", err)
	}

	ev.Time = time.UnixMilli(timeMs)
	ev.Model = model.String
	ev.Provider = provider.String
	ev.Endpoint = endpoint.String
	ev.Messages = messages.String
	ev.Response = response.String
	ev.ErrorMessage = errMsg.String
	ev.HasError = hasError != 0
	if latency.Valid {
		v := latency.Int64
		ev.LatencyMs = &v
	}

	return &ev, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
