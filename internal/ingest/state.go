package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// State tracks the content digest of the last applied batch per source file,
// so re-applying an identical extraction is a no-op.
type State struct {
	// Digests maps source file path to the digest of its last applied batch.
	Digests map[string]string `json:"digests,omitempty"`
	// LastApplyTime is when a batch was last applied.
	LastApplyTime time.Time `json:"last_apply_time,omitempty"`
}

// Digest returns the recorded digest for path, or "".
func (s *State) Digest(path string) string {
	return s.Digests[path]
}

// SetDigest records the digest for path.
func (s *State) SetDigest(path, digest string) {
	if s.Digests == nil {
		s.Digests = make(map[string]string)
	}
	s.Digests[path] = digest
	s.LastApplyTime = time.Now().UTC()
}

// Forget drops the recorded digest for path.
func (s *State) Forget(path string) {
	delete(s.Digests, path)
}

// LoadState reads ingest state from the given file path.
// Returns an empty state (no error) if the file does not exist.
func LoadState(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &State{}, nil
		}
		return nil, fmt.Errorf("read ingest state: %w", err)
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("unmarshal ingest state: %w", err)
	}
	return &state, nil
}

// Save writes the ingest state to the given file path.
func (s *State) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal ingest state: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write ingest state: %w", err)
	}
	return nil
}
