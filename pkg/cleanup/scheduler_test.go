package cleanup

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_StartStop(t *testing.T) {
	env := createTestEnv(t)

	s := NewScheduler(env.engine, time.Hour, zerolog.Nop())
	assert.False(t, s.IsRunning())

	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())

	assert.Error(t, s.Start())

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())

	assert.Error(t, s.Stop())
}

func TestScheduler_DefaultInterval(t *testing.T) {
	env := createTestEnv(t)

	s := NewScheduler(env.engine, 0, zerolog.Nop())
	assert.Equal(t, 24*time.Hour, s.interval)
}
