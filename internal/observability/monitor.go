package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// RunningModel describes one model currently loaded by the Ollama runtime.
type RunningModel struct {
	Name      string    `json:"name"`
	Model     string    `json:"model"`
	Size      int64     `json:"size"`
	SizeVRAM  int64     `json:"size_vram"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RuntimeStatus is a snapshot of the local model runtime.
type RuntimeStatus struct {
	Reachable       bool           `json:"reachable"`
	Version         string         `json:"version,omitempty"`
	AvailableModels []string       `json:"available_models"`
	RunningModels   []RunningModel `json:"running_models"`
	Error           string         `json:"error,omitempty"`
}

// OllamaProbe polls an Ollama server for liveness and loaded models.
type OllamaProbe struct {
	baseURL string
	client  *http.Client
}

// NewOllamaProbe builds a probe against the given Ollama base URL.
func NewOllamaProbe(baseURL string) *OllamaProbe {
	return &OllamaProbe{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

// Status checks the runtime. An unreachable server is reported in the
// snapshot, not as an error.
func (p *OllamaProbe) Status(ctx context.Context) RuntimeStatus {
	status := RuntimeStatus{AvailableModels: []string{}, RunningModels: []RunningModel{}}

	var version struct {
		Version string `json:"version"`
	}
	if err := p.get(ctx, "/api/version", &version); err != nil {
		status.Error = err.Error()
		return status
	}
	status.Reachable = true
	status.Version = version.Version

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := p.get(ctx, "/api/tags", &tags); err != nil {
		status.Error = err.Error()
		return status
	}
	for _, m := range tags.Models {
		status.AvailableModels = append(status.AvailableModels, m.Name)
	}

	var ps struct {
		Models []RunningModel `json:"models"`
	}
	if err := p.get(ctx, "/api/ps", &ps); err != nil {
		status.Error = err.Error()
		return status
	}
	if ps.Models != nil {
		status.RunningModels = ps.Models
	}
	return status
}

func (p *OllamaProbe) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	res, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("probe %s: %w", path, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("probe %s: status %d", path, res.StatusCode)
	}
	return json.NewDecoder(res.Body).Decode(out)
}
