package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	return path
}

func TestLoadConfigFromFile(t *testing.T) {
	cfgPath := writeConfig(t, `
version: "0.1"
providers:
  ollama:
    type: ollama
    base_url: http://localhost:11434
    timeout: 30s
models:
  main:
    provider: ollama
    model: llama3.1:8b
    temperature: 0.7
    default: true
advisors:
  - id: skeptic
    name: The Skeptic
    model: main
council:
  chairman: main
`)

	cfg, err := Load(cfgPath)
	require.NoError(t, err)
	require.Equal(t, "ollama", cfg.Models["main"].Provider)
	require.Equal(t, 30*time.Second, cfg.Providers["ollama"].Timeout)
	require.Equal(t, "main", cfg.Council.Chairman)
	require.Len(t, cfg.Advisors, 1)

	// Defaults fill unspecified sections.
	require.Equal(t, 300, cfg.Council.CallTimeoutSeconds)
	require.Equal(t, 10, cfg.Council.HistoryWindow)
	require.Equal(t, "prompts", cfg.Persona.PromptsDir)
	require.Equal(t, "data/quorum.db", cfg.Storage.Path)
}

func TestEnvOverrides(t *testing.T) {
	cfgPath := writeConfig(t, `
providers:
  ollama:
    type: ollama
models:
  main:
    provider: ollama
    model: llama3.1:8b
    default: true
advisors:
  - id: skeptic
    name: The Skeptic
    model: main
council:
  chairman: main
`)

	t.Setenv("QUORUM_COUNCIL_CALL_TIMEOUT_SECONDS", "42")
	cfg, err := Load(cfgPath)
	require.NoError(t, err)
	require.Equal(t, 42, cfg.Council.CallTimeoutSeconds)
	require.Equal(t, 42*time.Second, cfg.Council.CallTimeout())
}

func baseValidConfig() Config {
	return Config{
		Providers: map[string]ProviderConfig{
			"ollama": {Type: "ollama"},
		},
		Models: map[string]ModelConfig{
			"main": {Provider: "ollama", Model: "llama3.1:8b", Default: true},
		},
		Advisors: []AdvisorConfig{
			{ID: "skeptic", Name: "The Skeptic", Model: "main"},
		},
		Council: CouncilConfig{Chairman: "main", CallTimeoutSeconds: 300},
		Storage: StorageConfig{Path: "data/quorum.db"},
	}
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	cfg := baseValidConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidateFailsOnUnknownProvider(t *testing.T) {
	cfg := baseValidConfig()
	cfg.Models["main"] = ModelConfig{Provider: "missing", Default: true}
	require.Error(t, cfg.Validate())
}

func TestValidateFailsOnUnknownAdvisorModel(t *testing.T) {
	cfg := baseValidConfig()
	cfg.Advisors[0].Model = "missing"
	require.Error(t, cfg.Validate())
}

func TestValidateFailsOnDuplicateAdvisorIDs(t *testing.T) {
	cfg := baseValidConfig()
	cfg.Advisors = append(cfg.Advisors, AdvisorConfig{ID: "skeptic", Name: "Other", Model: "main"})
	require.Error(t, cfg.Validate())
}

func TestValidateFailsOnMissingChairman(t *testing.T) {
	cfg := baseValidConfig()
	cfg.Council.Chairman = ""
	require.Error(t, cfg.Validate())

	cfg = baseValidConfig()
	cfg.Council.Chairman = "missing"
	require.Error(t, cfg.Validate())
}

func TestValidateFailsOnEmptyRoster(t *testing.T) {
	cfg := baseValidConfig()
	cfg.Advisors = nil
	require.Error(t, cfg.Validate())
}

func TestTitleModelOrChairman(t *testing.T) {
	c := CouncilConfig{Chairman: "main"}
	require.Equal(t, "main", c.TitleModelOrChairman())

	c.TitleModel = "fast"
	require.Equal(t, "fast", c.TitleModelOrChairman())
}
