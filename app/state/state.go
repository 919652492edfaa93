package state

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// MaxSeenIDs caps the persisted seen-set. Oldest ids are evicted first, so a
// long-running deployment keeps catching near-term duplicates without the
// state file growing unbounded.
const MaxSeenIDs = 5000

// State carries everything the pipeline remembers between runs.
type State struct {
	SeenCanonicalIDs       []string   `json:"seen_canonical_ids"`
	LastRunAt              *time.Time `json:"last_run_at"`
	YouTubeRoundRobinIndex int        `json:"youtube_round_robin_index"`

	seen map[string]struct{}
}

// NewState returns an empty default state.
func NewState() *State {
	return &State{
		SeenCanonicalIDs: []string{},
		seen:             make(map[string]struct{}),
	}
}

// Contains reports whether a canonical id has already been delivered.
func (s *State) Contains(id string) bool {
	_, ok := s.seen[id]
	return ok
}

// Record adds a canonical id to the seen-set. Recording an id twice is a no-op,
// so insertion order (and therefore eviction order) is preserved.
func (s *State) Record(id string) {
	if _, ok := s.seen[id]; ok {
		return
	}
	s.seen[id] = struct{}{}
	s.SeenCanonicalIDs = append(s.SeenCanonicalIDs, id)
}

// rebuildIndex restores the lookup map after unmarshaling.
func (s *State) rebuildIndex() {
	s.seen = make(map[string]struct{}, len(s.SeenCanonicalIDs))
	for _, id := range s.SeenCanonicalIDs {
		s.seen[id] = struct{}{}
	}
}

// Store loads and persists run state from a JSON file. With persistence
// disabled (dry run) it still loads, but Persist never touches the file.
type Store struct {
	path           string
	persistEnabled bool
}

func NewStore(path string, persistEnabled bool) *Store {
	return &Store{path: path, persistEnabled: persistEnabled}
}

// Load reads the state file. A missing file yields an empty default state,
// not an error; a corrupt file is an error.
func (s *Store) Load() (*State, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		slog.Debug("No state file found, starting with empty state", "path", s.path)
		return NewState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	st := NewState()
	if err := json.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}
	st.rebuildIndex()

	slog.Debug("State loaded", "path", s.path, "seen_ids", len(st.SeenCanonicalIDs))
	return st, nil
}

// Persist truncates the seen-set to the most recent MaxSeenIDs entries and
// writes the state atomically (temp file, then rename) so a crash mid-write
// never corrupts a previously valid state file.
func (s *Store) Persist(st *State) error {
	if !s.persistEnabled {
		slog.Debug("Persistence disabled, skipping state save", "path", s.path)
		return nil
	}

	if len(st.SeenCanonicalIDs) > MaxSeenIDs {
		evicted := st.SeenCanonicalIDs[:len(st.SeenCanonicalIDs)-MaxSeenIDs]
		for _, id := range evicted {
			delete(st.seen, id)
		}
		st.SeenCanonicalIDs = append([]string(nil), st.SeenCanonicalIDs[len(st.SeenCanonicalIDs)-MaxSeenIDs:]...)
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create state directory: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}

	return nil
}
