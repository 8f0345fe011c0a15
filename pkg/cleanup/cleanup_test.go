package cleanup

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llmscope/playground/pkg/event"
	"github.com/llmscope/playground/pkg/session"
	"github.com/llmscope/playground/pkg/store"
)

type testEnv struct {
	engine   *Engine
	sessions *session.Store
	ledger   *event.Ledger
	db       *store.DB
}

func createTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	logger := zerolog.New(os.Stdout).Level(zerolog.Disabled)

	db, err := store.Open(dbPath, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sessions := session.NewStore(db, logger)
	pricer := event.NewPricer(nil, event.Rate{PromptPer1K: 0.003, CompletionPer1K: 0.015}, false)
	ledger := event.NewLedger(db, pricer, logger)

	return &testEnv{
		engine:   NewEngine(sessions, ledger, 7*24*time.Hour, 24*time.Hour, logger),
		sessions: sessions,
		ledger:   ledger,
		db:       db,
	}
}

// seedSession creates a session whose last_activity is age in the past,
// with the given number of events.
func (env *testEnv) seedSession(t *testing.T, token string, age time.Duration, events int) *session.Session {
	t.Helper()
	ctx := context.Background()

	sess, err := env.sessions.Create(ctx, token)
	require.NoError(t, err)

	for i := 0; i < events; i++ {
		_, err := env.ledger.RecordSuccess(ctx, sess, event.Invocation{
			Model:            "claude-3-5-sonnet-20241022",
			Provider:         "anthropic",
			TokensPrompt:     100,
			TokensCompletion: 50,
			LatencyMs:        10,
		})
		require.NoError(t, err)
	}

	_, err = env.db.SQL().Exec(
		"UPDATE sessions SET last_activity = ? WHERE id = ?",
		time.Now().Add(-age).UnixMilli(), sess.ID,
	)
	require.NoError(t, err)

	return sess
}

func TestCleanupExpired(t *testing.T) {
	env := createTestEnv(t)
	ctx := context.Background()

	env.seedSession(t, "expired", 8*24*time.Hour, 3)
	fresh := env.seedSession(t, "fresh", time.Hour, 2)

	result := env.engine.CleanupExpired(ctx, false)

	assert.True(t, result.Success)
	assert.False(t, result.DryRun)
	assert.Equal(t, 1, result.SessionsDeleted)
	assert.Equal(t, int64(3), result.EventsDeleted)
	assert.Equal(t, "Successfully deleted 1 sessions and 3 events", result.Message)

	_, err := env.sessions.GetByToken(ctx, "expired")
	assert.ErrorIs(t, err, session.ErrNotFound)

	// Fresh session and its events untouched
	kept, err := env.sessions.GetByToken(ctx, "fresh")
	require.NoError(t, err)
	n, err := env.ledger.CountForSessions(ctx, []string{kept.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	_ = fresh
}

func TestCleanupExpired_DryRun(t *testing.T) {
	env := createTestEnv(t)
	ctx := context.Background()

	env.seedSession(t, "expired", 8*24*time.Hour, 3)

	result := env.engine.CleanupExpired(ctx, true)

	assert.True(t, result.Success)
	assert.True(t, result.DryRun)
	assert.Equal(t, 1, result.SessionsWouldDelete)
	assert.Equal(t, int64(3), result.EventsWouldDelete)
	assert.Zero(t, result.SessionsDeleted)
	assert.Equal(t, "DRY RUN: Would delete 1 sessions and 3 events", result.Message)

	// Nothing changed
	sess, err := env.sessions.GetByToken(ctx, "expired")
	require.NoError(t, err)
	n, err := env.ledger.CountForSessions(ctx, []string{sess.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestCleanupExpired_Empty(t *testing.T) {
	env := createTestEnv(t)

	result := env.engine.CleanupExpired(context.Background(), false)

	assert.True(t, result.Success)
	assert.Equal(t, "No expired sessions found", result.Message)
	assert.Zero(t, result.SessionsDeleted)
}

func TestCleanupExpired_InactiveSessionsAlsoDeleted(t *testing.T) {
	env := createTestEnv(t)
	ctx := context.Background()

	sess := env.seedSession(t, "deactivated", 8*24*time.Hour, 1)
	ok, err := env.sessions.DeactivateIfIdleSince(ctx, sess.ID, time.Now())
	require.NoError(t, err)
	require.True(t, ok)

	result := env.engine.CleanupExpired(ctx, false)

	assert.True(t, result.Success)
	assert.Equal(t, 1, result.SessionsDeleted)
}

func TestDeactivateInactive(t *testing.T) {
	env := createTestEnv(t)
	ctx := context.Background()

	idle := env.seedSession(t, "idle", 30*time.Hour, 2)
	env.seedSession(t, "fresh", time.Hour, 1)

	result := env.engine.DeactivateInactive(ctx, false)

	assert.True(t, result.Success)
	assert.Equal(t, 1, result.SessionsMarkedInactive)
	assert.Equal(t, "Successfully marked 1 sessions as inactive", result.Message)

	got, err := env.sessions.GetByID(ctx, idle.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	// Deactivation never touches the ledger
	n, err := env.ledger.CountForSessions(ctx, []string{idle.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestDeactivateInactive_DryRun(t *testing.T) {
	env := createTestEnv(t)
	ctx := context.Background()

	idle := env.seedSession(t, "idle", 30*time.Hour, 0)

	result := env.engine.DeactivateInactive(ctx, true)

	assert.True(t, result.Success)
	assert.True(t, result.DryRun)
	assert.Equal(t, 1, result.SessionsWouldMark)
	assert.Zero(t, result.SessionsMarkedInactive)

	got, err := env.sessions.GetByID(ctx, idle.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)
}

func TestDeactivateInactive_Empty(t *testing.T) {
	env := createTestEnv(t)

	result := env.engine.DeactivateInactive(context.Background(), false)

	assert.True(t, result.Success)
	assert.Equal(t, "No inactive sessions found", result.Message)
}

func TestGetStats(t *testing.T) {
	env := createTestEnv(t)
	ctx := context.Background()

	env.seedSession(t, "expired", 8*24*time.Hour, 0)
	idle := env.seedSession(t, "idle", 30*time.Hour, 0)
	env.seedSession(t, "fresh", time.Hour, 0)

	ok, err := env.sessions.DeactivateIfIdleSince(ctx, idle.ID, time.Now())
	require.NoError(t, err)
	require.True(t, ok)

	stats, err := env.engine.GetStats(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.TotalSessions)
	assert.Equal(t, 2, stats.ActiveSessions)
	assert.Equal(t, 1, stats.InactiveSessions)
	assert.Equal(t, 1, stats.ExpiredSessions)
	assert.Equal(t, 1, stats.InactiveLast24h)
	assert.Equal(t, "168h0m0s", stats.RetentionWindow)
	assert.WithinDuration(t, time.Now().Add(-7*24*time.Hour), stats.CutoffTime, time.Minute)
}

func TestNewEngine_DefaultWindows(t *testing.T) {
	env := createTestEnv(t)

	e := NewEngine(env.sessions, env.ledger, 0, 0, zerolog.Nop())
	assert.Equal(t, DefaultRetentionWindow, e.retention)
	assert.Equal(t, DefaultInactivityWindow, e.inactivity)
}
