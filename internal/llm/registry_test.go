package llm_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quorumlabs/quorum/internal/config"
	"github.com/quorumlabs/quorum/internal/llm"
	"github.com/quorumlabs/quorum/internal/llm/configbuilder"
	llmmock "github.com/quorumlabs/quorum/internal/llm/mock"
)

func TestRegistryResolve(t *testing.T) {
	reg := llm.NewRegistry()
	mockProvider := &llmmock.Provider{NameValue: "mock"}
	reg.RegisterProvider("mock", mockProvider)
	reg.RegisterModel("default", llm.ModelRoute{
		Provider:    "mock",
		Model:       "dummy",
		Temperature: 0.2,
	}, true)

	p, route, err := reg.Resolve("")
	require.NoError(t, err)
	require.Equal(t, mockProvider, p)
	require.Equal(t, "dummy", route.Model)
}

func TestRegistryResolveUnknownModel(t *testing.T) {
	reg := llm.NewRegistry()
	_, _, err := reg.Resolve("missing")
	require.Error(t, err)
}

func TestRegistryModelListing(t *testing.T) {
	reg := llm.NewRegistry()
	reg.RegisterProvider("mock", &llmmock.Provider{})
	reg.RegisterModel("zeta", llm.ModelRoute{Provider: "mock", Model: "z"}, false)
	reg.RegisterModel("alpha", llm.ModelRoute{Provider: "mock", Model: "a"}, true)

	require.Equal(t, []string{"alpha", "zeta"}, reg.Models())
	require.Equal(t, "alpha", reg.DefaultModel())
}

func TestBuildRegistryFromConfig(t *testing.T) {
	cfg := &config.Config{
		Providers: map[string]config.ProviderConfig{
			"ollama": {Type: "ollama", BaseURL: "http://localhost:11434"},
		},
		Models: map[string]config.ModelConfig{
			"main": {Provider: "ollama", Model: "llama3.1:8b", Default: true},
		},
	}

	reg, err := configbuilder.BuildRegistryFromConfig(cfg)
	require.NoError(t, err)

	p, _, err := reg.Resolve("main")
	require.NoError(t, err)
	require.Equal(t, "ollama", p.Name())
}

func TestBuildRegistryRejectsUnknownProviderType(t *testing.T) {
	cfg := &config.Config{
		Providers: map[string]config.ProviderConfig{
			"weird": {Type: "telepathy"},
		},
		Models: map[string]config.ModelConfig{
			"main": {Provider: "weird", Model: "x", Default: true},
		},
	}

	_, err := configbuilder.BuildRegistryFromConfig(cfg)
	require.Error(t, err)
}
