package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// RosterStore holds the current advisor roster and persists updates to a JSON
// file beside the database. The file, when present, overrides the advisors
// from the YAML config so roster edits survive restarts.
type RosterStore struct {
	path string

	mu       sync.RWMutex
	advisors []AdvisorConfig
}

type rosterFile struct {
	Advisors []AdvisorConfig `json:"advisors"`
}

// NewRosterStore seeds the store with the configured advisors and applies the
// persisted roster file when one exists.
func NewRosterStore(path string, defaults []AdvisorConfig) (*RosterStore, error) {
	s := &RosterStore{path: path, advisors: cloneAdvisors(defaults)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read roster file: %w", err)
	}

	var f rosterFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse roster file %s: %w", path, err)
	}
	if len(f.Advisors) > 0 {
		s.advisors = f.Advisors
	}
	return s, nil
}

// Current returns a snapshot of the roster in seat order.
func (s *RosterStore) Current() []AdvisorConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAdvisors(s.advisors)
}

// Replace swaps the roster and persists it.
func (s *RosterStore) Replace(advisors []AdvisorConfig) error {
	data, err := json.MarshalIndent(rosterFile{Advisors: advisors}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode roster: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create roster dir: %w", err)
		}
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write roster file: %w", err)
	}

	s.mu.Lock()
	s.advisors = cloneAdvisors(advisors)
	s.mu.Unlock()
	return nil
}

func cloneAdvisors(in []AdvisorConfig) []AdvisorConfig {
	out := make([]AdvisorConfig, len(in))
	copy(out, in)
	return out
}
