package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSettingsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")

	s, err := LoadSettings(path, EmbeddingConfig{Backend: "hash", Model: "ingat/simple-hash", Dimensions: 256})
	require.NoError(t, err)

	sel := s.Embedding()
	assert.Equal(t, "hash", sel.Backend)
	assert.Equal(t, "ingat/simple-hash", sel.Model)
	assert.Equal(t, 256, sel.Dimensions)
}

func TestSetEmbeddingPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")

	s, err := LoadSettings(path, EmbeddingConfig{Backend: "hash"})
	require.NoError(t, err)

	require.NoError(t, s.SetEmbedding(EmbeddingSelection{Backend: "fastembed", Model: "BAAI/bge-small-en-v1.5"}))

	// A fresh load sees the persisted selection, not the defaults.
	reloaded, err := LoadSettings(path, EmbeddingConfig{Backend: "hash"})
	require.NoError(t, err)
	assert.Equal(t, "fastembed", reloaded.Embedding().Backend)
	assert.Equal(t, "BAAI/bge-small-en-v1.5", reloaded.Embedding().Model)
}

func TestLoadSettingsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := LoadSettings(path, EmbeddingConfig{Backend: "hash"})
	assert.Error(t, err)
}
