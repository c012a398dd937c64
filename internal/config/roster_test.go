package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRosterStoreUsesDefaultsWithoutFile(t *testing.T) {
	defaults := []AdvisorConfig{{ID: "skeptic", Name: "The Skeptic", Model: "main"}}
	s, err := NewRosterStore(filepath.Join(t.TempDir(), "council_config.json"), defaults)
	require.NoError(t, err)
	require.Equal(t, defaults, s.Current())
}

func TestRosterStorePersistedFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "council_config.json")
	persisted := `{"advisors":[{"id":"visionary","name":"The Visionary","model":"main","prompt_file":"","description":""}]}`
	require.NoError(t, os.WriteFile(path, []byte(persisted), 0o644))

	s, err := NewRosterStore(path, []AdvisorConfig{{ID: "skeptic", Name: "The Skeptic", Model: "main"}})
	require.NoError(t, err)

	current := s.Current()
	require.Len(t, current, 1)
	require.Equal(t, "visionary", current[0].ID)
}

func TestRosterStoreReplacePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "council_config.json")
	s, err := NewRosterStore(path, []AdvisorConfig{{ID: "skeptic", Name: "The Skeptic", Model: "main"}})
	require.NoError(t, err)

	next := []AdvisorConfig{{ID: "pragmatist", Name: "The Pragmatist", Model: "main"}}
	require.NoError(t, s.Replace(next))
	require.Equal(t, next, s.Current())

	// A fresh store picks up the persisted roster.
	reloaded, err := NewRosterStore(path, []AdvisorConfig{{ID: "skeptic", Name: "The Skeptic", Model: "main"}})
	require.NoError(t, err)
	require.Equal(t, next, reloaded.Current())
}

func TestRosterStoreRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "council_config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewRosterStore(path, nil)
	require.Error(t, err)
}

func TestRosterStoreSnapshotIsolation(t *testing.T) {
	s, err := NewRosterStore(filepath.Join(t.TempDir(), "council_config.json"), []AdvisorConfig{{ID: "skeptic", Name: "The Skeptic", Model: "main"}})
	require.NoError(t, err)

	snap := s.Current()
	snap[0].Name = "Mutated"
	require.Equal(t, "The Skeptic", s.Current()[0].Name)
}
