package event

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llmscope/playground/pkg/session"
	"github.com/llmscope/playground/pkg/store"
)

func createTestLedger(t *testing.T) (*Ledger, *session.Store) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	logger := zerolog.New(os.Stdout).Level(zerolog.Disabled)

	db, err := store.Open(dbPath, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	pricer := NewPricer(map[string]Rate{
		"anthropic/claude-3-5-sonnet-20241022": {PromptPer1K: 0.003, CompletionPer1K: 0.015},
	}, Rate{PromptPer1K: 0.003, CompletionPer1K: 0.015}, false)

	return NewLedger(db, pricer, logger), session.NewStore(db, logger)
}

func TestRecordSuccess(t *testing.T) {
	l, sessions := createTestLedger(t)
	ctx := context.Background()

	sess, err := sessions.Create(ctx, "token-1")
	require.NoError(t, err)

	ev, err := l.RecordSuccess(ctx, sess, Invocation{
		Model:            "claude-3-5-sonnet-20241022",
		Provider:         "anthropic",
		Endpoint:         "/api/v1/chat",
		TokensPrompt:     1000,
		TokensCompletion: 500,
		LatencyMs:        321,
		Messages:         `[{"role":"user","content":"hi"}]`,
		Response:         "hello",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, sess.ID, ev.SessionID)
	assert.Equal(t, 1500, ev.TokensTotal)
	assert.InDelta(t, 0.0105, ev.CostUSD, 1e-9)
	assert.Equal(t, StatusSuccess, ev.Status)
	assert.False(t, ev.HasError)
	require.NotNil(t, ev.LatencyMs)
	assert.Equal(t, int64(321), *ev.LatencyMs)
}

func TestRecordError(t *testing.T) {
	l, sessions := createTestLedger(t)
	ctx := context.Background()

	sess, err := sessions.Create(ctx, "token-1")
	require.NoError(t, err)

	ev, err := l.RecordError(ctx, sess, "claude-3-5-sonnet-20241022", "anthropic", "/api/v1/chat", "upstream timeout")
	require.NoError(t, err)

	assert.Equal(t, StatusError, ev.Status)
	assert.True(t, ev.HasError)
	assert.Equal(t, "upstream timeout", ev.ErrorMessage)
	assert.Zero(t, ev.TokensTotal)
	assert.Zero(t, ev.CostUSD)
	assert.Nil(t, ev.LatencyMs)
}

func TestListRecent(t *testing.T) {
	l, sessions := createTestLedger(t)
	ctx := context.Background()

	sess, err := sessions.Create(ctx, "token-1")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := l.RecordSuccess(ctx, sess, Invocation{
			Model:            "claude-3-5-sonnet-20241022",
			Provider:         "anthropic",
			TokensPrompt:     100,
			TokensCompletion: 50,
			LatencyMs:        10,
		})
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}

	events, err := l.ListRecent(ctx, sess, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.False(t, events[0].Time.Before(events[1].Time))
}

func TestListRecent_NullableColumns(t *testing.T) {
	l, sessions := createTestLedger(t)
	ctx := context.Background()

	sess, err := sessions.Create(ctx, "token-1")
	require.NoError(t, err)

	_, err = l.RecordError(ctx, sess, "", "", "", "boom")
	require.NoError(t, err)

	events, err := l.ListRecent(ctx, sess, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Nil(t, events[0].LatencyMs)
	assert.Empty(t, events[0].Model)
}

func TestListRecent_IsolatedBySession(t *testing.T) {
	l, sessions := createTestLedger(t)
	ctx := context.Background()

	a, err := sessions.Create(ctx, "a")
	require.NoError(t, err)
	b, err := sessions.Create(ctx, "b")
	require.NoError(t, err)

	_, err = l.RecordSuccess(ctx, a, Invocation{Model: "m", Provider: "anthropic"})
	require.NoError(t, err)

	events, err := l.ListRecent(ctx, b, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestAggregate(t *testing.T) {
	l, sessions := createTestLedger(t)
	ctx := context.Background()

	sess, err := sessions.Create(ctx, "token-1")
	require.NoError(t, err)

	_, err = l.RecordSuccess(ctx, sess, Invocation{
		Model:            "claude-3-5-sonnet-20241022",
		Provider:         "anthropic",
		TokensPrompt:     1000,
		TokensCompletion: 500,
		LatencyMs:        10,
	})
	require.NoError(t, err)

	_, err = l.RecordError(ctx, sess, "claude-3-5-sonnet-20241022", "anthropic", "", "boom")
	require.NoError(t, err)

	m, err := l.Aggregate(ctx, sess)
	require.NoError(t, err)

	assert.Equal(t, 2, m.EventCount)
	assert.Equal(t, int64(1500), m.TotalTokens)
	assert.InDelta(t, 0.0105, m.TotalCostUSD, 1e-9)
	assert.Equal(t, []string{"claude-3-5-sonnet-20241022"}, m.Models)
}

func TestAggregate_EmptySession(t *testing.T) {
	l, sessions := createTestLedger(t)
	ctx := context.Background()

	sess, err := sessions.Create(ctx, "token-1")
	require.NoError(t, err)

	m, err := l.Aggregate(ctx, sess)
	require.NoError(t, err)

	assert.Zero(t, m.EventCount)
	assert.Zero(t, m.TotalTokens)
	assert.Zero(t, m.TotalCostUSD)
	assert.Empty(t, m.Models)
	assert.NotNil(t, m.Models)
}

func TestCountForSessions(t *testing.T) {
	l, sessions := createTestLedger(t)
	ctx := context.Background()

	a, err := sessions.Create(ctx, "a")
	require.NoError(t, err)
	b, err := sessions.Create(ctx, "b")
	require.NoError(t, err)

	_, err = l.RecordSuccess(ctx, a, Invocation{Model: "m", Provider: "anthropic"})
	require.NoError(t, err)
	_, err = l.RecordSuccess(ctx, b, Invocation{Model: "m", Provider: "anthropic"})
	require.NoError(t, err)

	n, err := l.CountForSessions(ctx, []string{a.ID, b.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = l.CountForSessions(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDeleteAllForSession(t *testing.T) {
	l, sessions := createTestLedger(t)
	ctx := context.Background()

	sess, err := sessions.Create(ctx, "token-1")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := l.RecordSuccess(ctx, sess, Invocation{Model: "m", Provider: "anthropic"})
		require.NoError(t, err)
	}

	deleted, err := l.DeleteAllForSession(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)

	events, err := l.ListRecent(ctx, sess, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}
