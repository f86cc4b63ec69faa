package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "ingatd by Fyrsmith Labs")
	assert.Contains(t, out.String(), "Version:")
}

func TestPrintJSON(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printJSON(&out, map[string]string{"mode": "local"}))
	assert.Contains(t, out.String(), `"mode": "local"`)
}

func TestRootCommandHasSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, want := range []string{"serve", "supervise", "status", "ingest", "search", "recent", "projects", "backends", "version"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}
