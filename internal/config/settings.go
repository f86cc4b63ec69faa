package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// EmbeddingSelection is the live embedding backend choice. It is persisted
// inside the data directory so the owning service and a later local-mode
// client agree on which engine embeds new records.
type EmbeddingSelection struct {
	Backend    string `json:"backend"`
	Model      string `json:"model,omitempty"`
	Dimensions int    `json:"dimensions,omitempty"`
}

// Settings manages the runtime settings file. Unlike the static Config it is
// mutated at runtime, but only through SetEmbedding — backend identity is an
// explicit injected dependency, never ambient global state.
type Settings struct {
	path string

	mu        sync.RWMutex
	embedding EmbeddingSelection
}

// LoadSettings reads the settings file, falling back to the configured
// embedding defaults when the file is absent or unreadable.
func LoadSettings(path string, defaults EmbeddingConfig) (*Settings, error) {
	s := &Settings{
		path: path,
		embedding: EmbeddingSelection{
			Backend:    defaults.Backend,
			Model:      defaults.Model,
			Dimensions: defaults.Dimensions,
		},
	}

	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file %s: %w", path, err)
	}

	var persisted struct {
		Embedding EmbeddingSelection `json:"embedding"`
	}
	if err := json.Unmarshal(content, &persisted); err != nil {
		return nil, fmt.Errorf("failed to parse settings file %s: %w", path, err)
	}
	if persisted.Embedding.Backend != "" {
		s.embedding = persisted.Embedding
	}

	return s, nil
}

// Embedding returns the current selection.
func (s *Settings) Embedding() EmbeddingSelection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.embedding
}

// SetEmbedding updates the selection and persists it to disk.
func (s *Settings) SetEmbedding(sel EmbeddingSelection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	payload, err := json.MarshalIndent(struct {
		Embedding EmbeddingSelection `json:"embedding"`
	}{Embedding: sel}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	if err := os.WriteFile(s.path, payload, 0o600); err != nil {
		return fmt.Errorf("failed to write settings file %s: %w", s.path, err)
	}

	s.embedding = sel
	return nil
}
