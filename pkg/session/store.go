package session

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/llmscope/playground/pkg/store"
)

// Store is the sole writer of session rows. All methods are safe for
// concurrent invocation; consistency relies on the storage engine's
// transaction isolation, not on in-process locks.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewStore creates a session store over the shared tracking database.
func NewStore(db *store.DB, logger zerolog.Logger) *Store {
	return &Store{
		db:     db.SQL(),
		logger: logger.With().Str("component", "session_store").Logger(),
	}
}

// Create inserts a new session for token. Fails with ErrConflict if the
// token is already taken.
func (s *Store) Create(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, fmt.Errorf("session token cannot be empty")
	}

	now := time.Now()
	sess := &Session{
		ID:           uuid.NewString(),
		Token:        token,
		CreatedAt:    now,
		LastActivity: now,
		Metadata:     map[string]interface{}{},
		IsActive:     true,
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, token, created_at, last_activity, metadata, is_active)
		VALUES (?, ?, ?, ?, '{}', 1)
	`, sess.ID, sess.Token, now.UnixMilli(), now.UnixMilli())
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.logger.Info().Str("token", token).Msg("Session created")
	return sess, nil
}

// GetOrCreate looks up a session by token, creating it on first sighting
// and touching last_activity otherwise. Two concurrent first sightings of
// the same fresh token are resolved by the token's uniqueness constraint:
// the losing insert falls through to the fetch path.
func (s *Store) GetOrCreate(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, fmt.Errorf("session token cannot be empty")
	}

	now := time.Now()

	// INSERT OR IGNORE leaves an existing row untouched, so the create and
	// the concurrent-loser paths converge without application locking.
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, token, created_at, last_activity, metadata, is_active)
		VALUES (?, ?, ?, ?, '{}', 1)
		ON CONFLICT(token) DO NOTHING
	`, uuid.NewString(), token, now.UnixMilli(), now.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to upsert session: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to upsert session: %w", err)
	}

	if inserted == 0 {
		// Existing session: bump activity, last writer wins on wall clock
		if _, err := s.db.ExecContext(ctx,
			"UPDATE sessions SET last_activity = ? WHERE token = ?",
			now.UnixMilli(), token,
		); err != nil {
			return nil, fmt.Errorf("failed to touch session: %w", err)
		}
	} else {
		s.logger.Info().Str("token", token).Msg("Session created on first sighting")
	}

	return s.GetByToken(ctx, token)
}

// GetByToken returns the session for token without touching last_activity.
func (s *Store) GetByToken(ctx context.Context, token string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, token, created_at, last_activity, metadata, is_active
		FROM sessions WHERE token = ?
	`, token)
	return scanSession(row)
}

// GetByID returns the session with the given internal id.
func (s *Store) GetByID(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, token, created_at, last_activity, metadata, is_active
		FROM sessions WHERE id = ?
	`, id)
	return scanSession(row)
}

// ResetMetadata replaces the session's metadata with an empty document and
// bumps last_activity. is_active is left untouched.
func (s *Store) ResetMetadata(ctx context.Context, sess *Session) (*Session, error) {
	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		"UPDATE sessions SET metadata = '{}', last_activity = ? WHERE id = ?",
		now.UnixMilli(), sess.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to reset session metadata: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}

	return s.GetByID(ctx, sess.ID)
}

// Delete removes the session and all of its events in one transaction.
func (s *Store) Delete(ctx context.Context, sess *Session) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin delete transaction: %w", err)
	}
	defer tx.Rollback()

	// Events are deleted explicitly so the cascade is part of the contract,
	// not a schema side effect. The FK cascade remains as a backstop.
	if _, err := tx.ExecContext(ctx, "DELETE FROM events WHERE session_id = ?", sess.ID); err != nil {
		return fmt.Errorf("failed to delete session events: %w", err)
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", sess.ID)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit session delete: %w", err)
	}

	s.logger.Info().Str("token", sess.Token).Msg("Session deleted")
	return nil
}

// DeleteIfIdleSince deletes the session only if its last_activity is still
// before cutoff at delete time, guarding against sessions touched between
// the cleanup scan and the apply phase. Returns whether the session was
// deleted and how many events went with it.
func (s *Store) DeleteIfIdleSince(ctx context.Context, id string, cutoff time.Time) (bool, int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, 0, fmt.Errorf("failed to begin delete transaction: %w", err)
	}
	defer tx.Rollback()

	var events int64
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM events WHERE session_id = ?", id,
	).Scan(&events); err != nil {
		return false, 0, fmt.Errorf("failed to count session events: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM events WHERE session_id = ?", id); err != nil {
		return false, 0, fmt.Errorf("failed to delete session events: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		"DELETE FROM sessions WHERE id = ? AND last_activity < ?",
		id, cutoff.UnixMilli(),
	)
	if err != nil {
		return false, 0, fmt.Errorf("failed to delete session: %w", err)
	}

	// A session touched after the scan no longer matches the cutoff; the
	// rollback restores its events.
	if n, _ := res.RowsAffected(); n == 0 {
		return false, 0, nil
	}

	if err := tx.Commit(); err != nil {
		return false, 0, fmt.Errorf("failed to commit session delete: %w", err)
	}

	return true, events, nil
}

// DeactivateIfIdleSince flips is_active to false when the session is still
// idle past cutoff. Events are left untouched. Already-deactivated or
// freshly touched sessions report false without error.
func (s *Store) DeactivateIfIdleSince(ctx context.Context, id string, cutoff time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE sessions SET is_active = 0 WHERE id = ? AND is_active = 1 AND last_activity < ?",
		id, cutoff.UnixMilli(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to deactivate session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to deactivate session: %w", err)
	}
	return n > 0, nil
}

// ListIdleSince returns sessions whose last_activity is before cutoff,
// optionally restricted to active ones. Ordering is unspecified.
func (s *Store) ListIdleSince(ctx context.Context, cutoff time.Time, activeOnly bool) ([]*Session, error) {
	query := `
		SELECT id, token, created_at, last_activity, metadata, is_active
		FROM sessions WHERE last_activity < ?
	`
	if activeOnly {
		query += " AND is_active = 1"
	}

	rows, err := s.db.QueryContext(ctx, query, cutoff.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to list idle sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list idle sessions: %w", err)
	}

	return sessions, nil
}

// CountAll returns the total number of sessions.
func (s *Store) CountAll(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sessions").Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return n, nil
}

// CountActive returns the number of sessions with is_active set.
func (s *Store) CountActive(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sessions WHERE is_active = 1").Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count active sessions: %w", err)
	}
	return n, nil
}

// CountIdleSince counts sessions idle past cutoff, optionally active-only.
func (s *Store) CountIdleSince(ctx context.Context, cutoff time.Time, activeOnly bool) (int, error) {
	query := "SELECT COUNT(*) FROM sessions WHERE last_activity < ?"
	if activeOnly {
		query += " AND is_active = 1"
	}

	var n int
	if err := s.db.QueryRowContext(ctx, query, cutoff.UnixMilli()).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count idle sessions: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (*Session, error) {
	var (
		sess         Session
		createdMs    int64
		activityMs   int64
		metadataText string
		active       int
	)

	err := row.Scan(&sess.ID, &sess.Token, &createdMs, &activityMs, &metadataText, &active)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan session row: %w", err)
	}

	sess.CreatedAt = time.UnixMilli(createdMs)
	sess.LastActivity = time.UnixMilli(activityMs)
	sess.Metadata = parseMetadata(metadataText)
	sess.IsActive = active != 0

	return &sess, nil
}

// isUniqueViolation reports whether err is a sqlite unique constraint error.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
