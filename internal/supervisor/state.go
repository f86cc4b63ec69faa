package supervisor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Phase is the supervisor's persisted lifecycle phase.
type Phase string

const (
	PhaseMonitoring Phase = "monitoring"
	PhaseRestarting Phase = "restarting"
	PhaseStopped    Phase = "stopped"
)

// PersistedState survives supervisor restarts so a new supervisor can
// reconcile against what the previous one believed.
type PersistedState struct {
	Phase      Phase     `json:"phase"`
	ServicePID int       `json:"service_pid,omitempty"`
	Failures   int       `json:"failures"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// LoadState reads the state file. An absent file yields a zero state; a
// corrupt file is discarded rather than trusted.
func LoadState(path string) (PersistedState, error) {
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return PersistedState{}, nil
	}
	if err != nil {
		return PersistedState{}, fmt.Errorf("failed to read supervisor state %s: %w", path, err)
	}

	var state PersistedState
	if err := json.Unmarshal(content, &state); err != nil {
		return PersistedState{}, nil
	}
	return state, nil
}

// SaveState writes the state file, creating the directory if needed.
func SaveState(path string, state PersistedState) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	state.UpdatedAt = time.Now().UTC()
	payload, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode supervisor state: %w", err)
	}

	if err := os.WriteFile(path, payload, 0o600); err != nil {
		return fmt.Errorf("failed to write supervisor state %s: %w", path, err)
	}
	return nil
}
