// Package ollama talks to a local Ollama daemon over its native chat API.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/quorumlabs/quorum/internal/llm"
)

const defaultBaseURL = "http://127.0.0.1:11434"

// Provider is a chat-only Ollama client. Runtime introspection (installed
// tags, loaded models) lives in the observability probe, not here.
type Provider struct {
	name    string
	client  *http.Client
	baseURL string
}

// NewProvider constructs an Ollama provider. A zero timeout leaves the
// client without a deadline; callers bound each request via context.
func NewProvider(name, baseURL string, timeout time.Duration) *Provider {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Provider{
		name:    name,
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return p.name
}

type chatPayload struct {
	Model    string                 `json:"model"`
	Messages []chatMessage          `json:"messages"`
	Stream   bool                   `json:"stream"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatReply struct {
	Message chatMessage `json:"message"`
}

// Chat runs one non-streaming completion against /api/chat.
func (p *Provider) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	if req.Model == "" {
		return llm.ChatResponse{}, fmt.Errorf("ollama: model is required")
	}

	payload := chatPayload{
		Model:    req.Model,
		Messages: make([]chatMessage, 0, len(req.Messages)),
		Options:  tuningOptions(req),
	}
	for _, m := range req.Messages {
		payload.Messages = append(payload.Messages, chatMessage{Role: string(m.Role), Content: m.Content})
	}

	var reply chatReply
	if err := p.postJSON(ctx, "/api/chat", payload, &reply); err != nil {
		return llm.ChatResponse{}, err
	}

	return llm.ChatResponse{
		Message: llm.ChatMessage{
			Role:    llm.Role(reply.Message.Role),
			Content: reply.Message.Content,
		},
		FinishReason: "stop",
		ProviderName: p.name,
		Model:        req.Model,
	}, nil
}

// Stream satisfies the provider contract by wrapping Chat in a single chunk.
// The deliberation pipeline consumes whole responses, not token deltas.
func (p *Provider) Stream(ctx context.Context, req llm.ChatRequest) (<-chan llm.StreamChunk, <-chan error) {
	ch := make(chan llm.StreamChunk, 1)
	errCh := make(chan error, 1)

	go func() {
		defer close(ch)
		defer close(errCh)

		resp, err := p.Chat(ctx, req)
		if err != nil {
			errCh <- err
			return
		}
		ch <- llm.StreamChunk{Content: resp.Message.Content, FinishReason: resp.FinishReason}
	}()

	return ch, errCh
}

// tuningOptions maps the generic request knobs onto Ollama's options block.
// Zero values are omitted so model defaults stay in effect.
func tuningOptions(req llm.ChatRequest) map[string]interface{} {
	opts := map[string]interface{}{}
	if req.Temperature > 0 {
		opts["temperature"] = req.Temperature
	}
	if req.MaxTokens > 0 {
		opts["num_predict"] = req.MaxTokens
	}
	if len(opts) == 0 {
		return nil
	}
	return opts
}

func (p *Provider) postJSON(ctx context.Context, path string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("ollama: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("ollama: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		msg, _ := io.ReadAll(res.Body)
		return fmt.Errorf("ollama: %s returned %d: %s", path, res.StatusCode, string(msg))
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("ollama: decode response: %w", err)
	}
	return nil
}
