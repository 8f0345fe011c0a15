package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	root := GetRootCmd()

	assert.Equal(t, "playground", root.Use)
	assert.Equal(t, version, root.Version)
	assert.Equal(t, version, GetVersion())
}

func TestSubcommandsRegistered(t *testing.T) {
	root := GetRootCmd()

	names := map[string]bool{}
	for _, cmd := range root.Commands() {
		names[cmd.Name()] = true
	}

	assert.True(t, names["serve"])
	assert.True(t, names["cleanup"])
}

func TestGlobalFlags(t *testing.T) {
	root := GetRootCmd()

	require.NotNil(t, root.PersistentFlags().Lookup("config"))
	require.NotNil(t, root.PersistentFlags().Lookup("log-level"))
}

func TestCleanupFlags(t *testing.T) {
	require.NotNil(t, cleanupCmd.Flags().Lookup("dry-run"))
	require.NotNil(t, cleanupCmd.Flags().Lookup("deactivate"))
}
