// Package cleanup reclaims sessions that have gone idle past a configured
// window. Two policies: hard delete (session and its events removed) and
// soft deactivation (is_active flipped, events untouched). Both support a
// dry run that performs the same selection without mutating storage.
package cleanup

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/llmscope/playground/pkg/event"
	"github.com/llmscope/playground/pkg/session"
)

// Default windows, matching the service defaults.
const (
	DefaultRetentionWindow  = 7 * 24 * time.Hour
	DefaultInactivityWindow = 24 * time.Hour
)

// Engine runs cleanup batches against the session store. Each invocation
// is a batch, not a long-lived process; it is triggered by a timer or an
// administrative call and is safe to run alongside live traffic.
type Engine struct {
	sessions   *session.Store
	events     *event.Ledger
	retention  time.Duration
	inactivity time.Duration
	logger     zerolog.Logger
}

// NewEngine creates a cleanup engine. Zero windows fall back to defaults.
func NewEngine(sessions *session.Store, events *event.Ledger, retention, inactivity time.Duration, logger zerolog.Logger) *Engine {
	if retention == 0 {
		retention = DefaultRetentionWindow
	}
	if inactivity == 0 {
		inactivity = DefaultInactivityWindow
	}

	return &Engine{
		sessions:   sessions,
		events:     events,
		retention:  retention,
		inactivity: inactivity,
		logger:     logger.With().Str("component", "cleanup").Logger(),
	}
}

// RetentionWindow returns the hard-delete window.
func (e *Engine) RetentionWindow() time.Duration {
	return e.retention
}

// Result reports a hard-delete cleanup batch. Failures are surfaced here
// rather than propagated past the engine's boundary.
type Result struct {
	Success             bool   `json:"success"`
	DryRun              bool   `json:"dry_run"`
	SessionsDeleted     int    `json:"sessions_deleted"`
	EventsDeleted       int64  `json:"events_deleted"`
	SessionsWouldDelete int    `json:"sessions_would_delete,omitempty"`
	EventsWouldDelete   int64  `json:"events_would_delete,omitempty"`
	Message             string `json:"message"`
	Error               string `json:"error,omitempty"`
}

// DeactivateResult reports a soft-deactivation cleanup batch.
type DeactivateResult struct {
	Success                bool   `json:"success"`
	DryRun                 bool   `json:"dry_run"`
	SessionsMarkedInactive int    `json:"sessions_marked_inactive"`
	SessionsWouldMark      int    `json:"sessions_would_mark,omitempty"`
	Message                string `json:"message"`
	Error                  string `json:"error,omitempty"`
}

// Stats is a read-side snapshot for monitoring; computing it never
// triggers cleanup.
type Stats struct {
	TotalSessions    int       `json:"total_sessions"`
	ActiveSessions   int       `json:"active_sessions"`
	InactiveSessions int       `json:"inactive_sessions"`
	ExpiredSessions  int       `json:"expired_sessions"`
	InactiveLast24h  int       `json:"inactive_24h"`
	RetentionWindow  string    `json:"retention_window"`
	CutoffTime       time.Time `json:"cutoff_time"`
}

// CleanupExpired removes sessions idle past the retention window,
// cascading their events. With dryRun set it only reports what the batch
// would remove. Deletion is per-session idempotent: the cutoff predicate
// is re-checked inside each delete, so a session touched after the scan
// survives and a session already gone is not an error.
func (e *Engine) CleanupExpired(ctx context.Context, dryRun bool) *Result {
	cutoff := time.Now().Add(-e.retention)

	e.logger.Info().
		Bool("dry_run", dryRun).
		Time("cutoff", cutoff).
		Msg("Starting expired session cleanup")

	expired, err := e.sessions.ListIdleSince(ctx, cutoff, false)
	if err != nil {
		return failedResult(dryRun, err)
	}

	if len(expired) == 0 {
		return &Result{
			Success: true,
			DryRun:  dryRun,
			Message: "No expired sessions found",
		}
	}

	ids := make([]string, len(expired))
	for i, sess := range expired {
		ids[i] = sess.ID
	}

	eventCount, err := e.events.CountForSessions(ctx, ids)
	if err != nil {
		return failedResult(dryRun, err)
	}

	e.logger.Info().
		Int("sessions", len(expired)).
		Int64("events", eventCount).
		Msg("Found expired sessions")

	if dryRun {
		return &Result{
			Success:             true,
			DryRun:              true,
			SessionsWouldDelete: len(expired),
			EventsWouldDelete:   eventCount,
			Message:             fmt.Sprintf("DRY RUN: Would delete %d sessions and %d events", len(expired), eventCount),
		}
	}

	var (
		sessionsDeleted int
		eventsDeleted   int64
	)
	for _, sess := range expired {
		deleted, events, err := e.sessions.DeleteIfIdleSince(ctx, sess.ID, cutoff)
		if err != nil {
			e.logger.Error().Err(err).Str("token", sess.Token).Msg("Cleanup batch aborted")
			res := failedResult(false, err)
			res.SessionsDeleted = sessionsDeleted
			res.EventsDeleted = eventsDeleted
			return res
		}
		if !deleted {
			// Touched after the scan snapshot; leave it alone
			e.logger.Debug().Str("token", sess.Token).Msg("Session no longer expired, skipping")
			continue
		}
		sessionsDeleted++
		eventsDeleted += events

		e.logger.Debug().
			Str("token", sess.Token).
			Time("last_activity", sess.LastActivity).
			Msg("Expired session deleted")
	}

	e.logger.Info().
		Int("sessions_deleted", sessionsDeleted).
		Int64("events_deleted", eventsDeleted).
		Msg("Expired session cleanup complete")

	return &Result{
		Success:         true,
		DryRun:          false,
		SessionsDeleted: sessionsDeleted,
		EventsDeleted:   eventsDeleted,
		Message:         fmt.Sprintf("Successfully deleted %d sessions and %d events", sessionsDeleted, eventsDeleted),
	}
}

// DeactivateInactive marks active sessions idle past the inactivity window
// as inactive. Events are left fully intact.
func (e *Engine) DeactivateInactive(ctx context.Context, dryRun bool) *DeactivateResult {
	cutoff := time.Now().Add(-e.inactivity)

	e.logger.Info().
		Bool("dry_run", dryRun).
		Time("cutoff", cutoff).
		Msg("Starting inactive session cleanup")

	idle, err := e.sessions.ListIdleSince(ctx, cutoff, true)
	if err != nil {
		return &DeactivateResult{
			Success: false,
			DryRun:  dryRun,
			Error:   err.Error(),
			Message: fmt.Sprintf("Inactive session cleanup failed: %s", err),
		}
	}

	if len(idle) == 0 {
		return &DeactivateResult{
			Success: true,
			DryRun:  dryRun,
			Message: "No inactive sessions found",
		}
	}

	if dryRun {
		return &DeactivateResult{
			Success:           true,
			DryRun:            true,
			SessionsWouldMark: len(idle),
			Message:           fmt.Sprintf("DRY RUN: Would mark %d sessions as inactive", len(idle)),
		}
	}

	marked := 0
	for _, sess := range idle {
		ok, err := e.sessions.DeactivateIfIdleSince(ctx, sess.ID, cutoff)
		if err != nil {
			e.logger.Error().Err(err).Str("token", sess.Token).Msg("Deactivation batch aborted")
			return &DeactivateResult{
				Success:                false,
				SessionsMarkedInactive: marked,
				Error:                  err.Error(),
				Message:                fmt.Sprintf("Inactive session cleanup failed: %s", err),
			}
		}
		if ok {
			marked++
		}
	}

	e.logger.Info().Int("marked", marked).Msg("Marked sessions as inactive")

	return &DeactivateResult{
		Success:                true,
		DryRun:                 false,
		SessionsMarkedInactive: marked,
		Message:                fmt.Sprintf("Successfully marked %d sessions as inactive", marked),
	}
}

// GetStats returns a snapshot of session counts and cleanup eligibility.
func (e *Engine) GetStats(ctx context.Context) (*Stats, error) {
	now := time.Now()
	cutoff := now.Add(-e.retention)

	total, err := e.sessions.CountAll(ctx)
	if err != nil {
		return nil, err
	}
	active, err := e.sessions.CountActive(ctx)
	if err != nil {
		return nil, err
	}
	expired, err := e.sessions.CountIdleSince(ctx, cutoff, false)
	if err != nil {
		return nil, err
	}
	inactive24h, err := e.sessions.CountIdleSince(ctx, now.Add(-24*time.Hour), true)
	if err != nil {
		return nil, err
	}

	return &Stats{
		TotalSessions:    total,
		ActiveSessions:   active,
		InactiveSessions: total - active,
		ExpiredSessions:  expired,
		InactiveLast24h:  inactive24h,
		RetentionWindow:  e.retention.String(),
		CutoffTime:       cutoff,
	}, nil
}

func failedResult(dryRun bool, err error) *Result {
	return &Result{
		Success: false,
		DryRun:  dryRun,
		Error:   err.Error(),
		Message: fmt.Sprintf("Session cleanup failed: %s", err),
	}
}
